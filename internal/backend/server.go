/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend serves the screenplay repository over HTTP and provides a client for it.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"screenwriter/internal/domain"
	applog "screenwriter/internal/log"
	"screenwriter/internal/storage"
	"screenwriter/internal/version"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// Repository is the persistence surface the server exposes. *storage.Store implements it.
type Repository interface {
	Ping(ctx context.Context) error

	ListScripts(ctx context.Context, f storage.ScriptFilter) ([]domain.Script, error)
	GetScript(ctx context.Context, id string) (domain.Script, error)
	CreateScript(ctx context.Context, in domain.ScriptCreate) (domain.Script, error)
	UpdateScript(ctx context.Context, id string, u domain.ScriptUpdate) (domain.Script, error)
	DeleteScript(ctx context.Context, id string) error
	LoadElements(ctx context.Context, id string) ([]domain.ScriptElement, error)
	SaveElements(ctx context.Context, id string, els []domain.ScriptElement) error
	ListRevisions(ctx context.Context, id string, limit int) ([]domain.ScriptRevision, error)
	SearchScripts(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error)
	PublishScript(ctx context.Context, scriptID string) (domain.BlogPost, error)

	ListCharacters(ctx context.Context) ([]domain.CharacterProfile, error)
	GetCharacter(ctx context.Context, id string) (domain.CharacterProfile, error)
	CreateCharacter(ctx context.Context, in domain.CharacterCreate) (domain.CharacterProfile, error)
	UpdateCharacter(ctx context.Context, id string, u domain.CharacterUpdate) (domain.CharacterProfile, error)
	DeleteCharacter(ctx context.Context, id string) error
	LinkCharacter(ctx context.Context, scriptID, characterID string) error
	UnlinkCharacter(ctx context.Context, scriptID, characterID string) error
	ScriptCharacters(ctx context.Context, scriptID string) ([]domain.CharacterProfile, error)

	ListBlogPosts(ctx context.Context, status domain.Status) ([]domain.BlogPost, error)
	GetBlogPost(ctx context.Context, id string) (domain.BlogPost, error)
	CreateBlogPost(ctx context.Context, in domain.BlogPostCreate) (domain.BlogPost, error)
	UpdateBlogPost(ctx context.Context, id string, u domain.BlogPostUpdate) (domain.BlogPost, error)
	DeleteBlogPost(ctx context.Context, id string) error
}

var _ Repository = (*storage.Store)(nil)

// Server is the HTTP API over a Repository.
type Server struct {
	repo   Repository
	logger *slog.Logger
	md     goldmark.Markdown
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithServerLogger overrides the request logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer builds a server around repo.
func NewServer(repo Repository, opts ...ServerOption) *Server {
	s := &Server{
		repo:   repo,
		logger: applog.WithComponent("backend"),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Typographer),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /version", s.handleVersion)

	mux.HandleFunc("GET /api/scripts", s.listScripts)
	mux.HandleFunc("POST /api/scripts", s.createScript)
	mux.HandleFunc("GET /api/scripts/{id}", s.getScript)
	mux.HandleFunc("PATCH /api/scripts/{id}", s.updateScript)
	mux.HandleFunc("DELETE /api/scripts/{id}", s.deleteScript)
	mux.HandleFunc("GET /api/scripts/{id}/elements", s.getElements)
	mux.HandleFunc("PUT /api/scripts/{id}/elements", s.putElements)
	mux.HandleFunc("GET /api/scripts/{id}/revisions", s.listRevisions)
	mux.HandleFunc("POST /api/scripts/{id}/publish", s.publishScript)
	mux.HandleFunc("GET /api/scripts/{id}/characters", s.scriptCharacters)
	mux.HandleFunc("POST /api/scripts/{id}/characters", s.linkCharacter)
	mux.HandleFunc("DELETE /api/scripts/{id}/characters/{cid}", s.unlinkCharacter)
	mux.HandleFunc("GET /api/search", s.search)

	mux.HandleFunc("GET /api/characters", s.listCharacters)
	mux.HandleFunc("POST /api/characters", s.createCharacter)
	mux.HandleFunc("GET /api/characters/{id}", s.getCharacter)
	mux.HandleFunc("PATCH /api/characters/{id}", s.updateCharacter)
	mux.HandleFunc("DELETE /api/characters/{id}", s.deleteCharacter)

	mux.HandleFunc("GET /api/blogposts", s.listBlogPosts)
	mux.HandleFunc("POST /api/blogposts", s.createBlogPost)
	mux.HandleFunc("GET /api/blogposts/{id}", s.getBlogPost)
	mux.HandleFunc("PATCH /api/blogposts/{id}", s.updateBlogPost)
	mux.HandleFunc("DELETE /api/blogposts/{id}", s.deleteBlogPost)
	mux.HandleFunc("GET /api/blogposts/{id}/html", s.blogPostHTML)

	return s.withLogging(withSecurityHeaders(mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("err", err))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("db not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("screenwriter " + version.String()))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		lvl := slog.LevelDebug
		if rec.status >= 500 {
			lvl = slog.LevelError
		}
		s.logger.Log(r.Context(), lvl, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("dur", time.Since(start)),
		)
	})
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// --- Helpers: JSON ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// fail maps err onto a status: validation 400, not found 404, anything else 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Error("request failed", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.Invalid("read body: %v", err)
	}
	return b, nil
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("decode body: %v", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.Invalid("%s must be a non-negative integer", key)
	}
	return n, nil
}

func queryStatus(r *http.Request) (domain.Status, error) {
	st := domain.Status(r.URL.Query().Get("status"))
	if st != "" && !st.Valid() {
		return "", domain.Invalid("unknown status %q", st)
	}
	return st, nil
}
