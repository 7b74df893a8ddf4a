/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"screenwriter/internal/domain"
	"screenwriter/internal/storage"
)

const defaultClientTimeout = 15 * time.Second

// Client talks to the screenplay API. It satisfies the element load/save contract,
// so an editing session can persist through a remote server.
type Client struct {
	BaseURL string
	Token   string // bearer token, sent when set
	client  *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.client = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:   token,
		client:  &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps 404 to domain.ErrNotFound and 400 to domain.ErrValidation.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest:
		return domain.ErrValidation
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var env struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		return &StatusError{Method: method, Path: u.Path, StatusCode: resp.StatusCode, Message: msg}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func scriptPath(id string, rest ...string) string {
	p := "/api/scripts/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// LoadElements fetches the element sequence of a script.
func (c *Client) LoadElements(ctx context.Context, id string) ([]domain.ScriptElement, error) {
	els := []domain.ScriptElement{}
	if err := c.do(ctx, http.MethodGet, scriptPath(id, "elements"), nil, &els); err != nil {
		return nil, err
	}
	return els, nil
}

// SaveElements replaces the element sequence of a script on the server.
func (c *Client) SaveElements(ctx context.Context, id string, els []domain.ScriptElement) error {
	return c.do(ctx, http.MethodPut, scriptPath(id, "elements"), domain.CloneElements(els), nil)
}

// ListScripts returns scripts, optionally filtered by status.
func (c *Client) ListScripts(ctx context.Context, f storage.ScriptFilter) ([]domain.Script, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/api/scripts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list []domain.Script
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetScript fetches one script.
func (c *Client) GetScript(ctx context.Context, id string) (domain.Script, error) {
	var sc domain.Script
	err := c.do(ctx, http.MethodGet, scriptPath(id), nil, &sc)
	return sc, err
}

// CreateScript creates a script.
func (c *Client) CreateScript(ctx context.Context, in domain.ScriptCreate) (domain.Script, error) {
	var sc domain.Script
	err := c.do(ctx, http.MethodPost, "/api/scripts", in, &sc)
	return sc, err
}

// UpdateScript applies a partial update.
func (c *Client) UpdateScript(ctx context.Context, id string, u domain.ScriptUpdate) (domain.Script, error) {
	var sc domain.Script
	err := c.do(ctx, http.MethodPatch, scriptPath(id), u, &sc)
	return sc, err
}

// DeleteScript deletes a script.
func (c *Client) DeleteScript(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, scriptPath(id), nil, nil)
}

// ListRevisions returns recent element revisions, newest first.
func (c *Client) ListRevisions(ctx context.Context, id string, limit int) ([]domain.ScriptRevision, error) {
	path := scriptPath(id, "revisions")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var revs []domain.ScriptRevision
	if err := c.do(ctx, http.MethodGet, path, nil, &revs); err != nil {
		return nil, err
	}
	return revs, nil
}

// PublishScript creates a draft blog post from a script.
func (c *Client) PublishScript(ctx context.Context, id string) (domain.BlogPost, error) {
	var p domain.BlogPost
	err := c.do(ctx, http.MethodPost, scriptPath(id, "publish"), nil, &p)
	return p, err
}

// SearchScripts runs a text search on the server.
func (c *Client) SearchScripts(ctx context.Context, sq storage.SearchQuery) ([]storage.SearchResult, error) {
	q := url.Values{}
	q.Set("q", sq.Text)
	if sq.Status != "" {
		q.Set("status", string(sq.Status))
	}
	if sq.Limit > 0 {
		q.Set("limit", strconv.Itoa(sq.Limit))
	}
	if sq.Offset > 0 {
		q.Set("offset", strconv.Itoa(sq.Offset))
	}
	var res []storage.SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/search?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Ping checks the server's readiness endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/readyz", nil, nil)
}
