/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"screenwriter/internal/domain"
)

// SearchQuery describes a script search. Text is matched case-insensitively against
// title, logline and element content. Limit/Offset implement pagination; a zero Limit means 50.
type SearchQuery struct {
	Text   string
	Status domain.Status
	Limit  int
	Offset int
}

// SearchResult is a single matching script.
// Snippet is an excerpt of the first matching element with the match wrapped in [ ] markers.
type SearchResult struct {
	ScriptID  string             `json:"script_id"`
	Title     string             `json:"title"`
	Status    domain.Status      `json:"status"`
	ElementID string             `json:"element_id,omitempty"`
	Type      domain.ElementType `json:"type,omitempty"`
	Snippet   string             `json:"snippet,omitempty"`
}

const snippetRadius = 30

// SearchScripts finds scripts containing q.Text, most recently updated first.
func (s *Store) SearchScripts(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	text := strings.TrimSpace(q.Text)
	var sb strings.Builder
	var args []any
	sb.WriteString(`SELECT id, title, status, elements FROM scripts WHERE 1=1`)
	if text != "" {
		pat := "%" + likeEscape(strings.ToLower(text)) + "%"
		sb.WriteString(` AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(logline) LIKE ? ESCAPE '\' OR LOWER(CAST(elements AS TEXT)) LIKE ? ESCAPE '\')`)
		args = append(args, pat, pat, pat)
	}
	if q.Status != "" {
		sb.WriteString(` AND status = ?`)
		args = append(args, string(q.Status))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	sb.WriteString(` ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`)
	args = append(args, limit, max(q.Offset, 0))

	rows, err := s.db.QueryContext(ctx, s.rebind(sb.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("search scripts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []SearchResult{}
	for rows.Next() {
		var (
			r      SearchResult
			status string
			els    []domain.ScriptElement
		)
		if err := rows.Scan(&r.ScriptID, &r.Title, &status, jsonColumn{&els}); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Status = domain.Status(status)
		if text != "" {
			for _, el := range els {
				if snip, ok := snippet(el.Content, text); ok {
					r.ElementID, r.Type, r.Snippet = el.ID, el.Type, snip
					break
				}
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet returns content around the first case-insensitive occurrence of term.
func snippet(content, term string) (string, bool) {
	lc, lt := strings.ToLower(content), strings.ToLower(term)
	// lowercasing can change byte lengths; only trust offsets when it did not
	if len(lc) != len(content) {
		if strings.Contains(lc, lt) {
			return content, true
		}
		return "", false
	}
	i := strings.Index(lc, lt)
	if i < 0 {
		return "", false
	}
	j := i + len(term)
	start, end := i, j
	for n := 0; start > 0 && n < snippetRadius; n++ {
		_, size := utf8.DecodeLastRuneInString(content[:start])
		start -= size
	}
	for n := 0; end < len(content) && n < snippetRadius; n++ {
		_, size := utf8.DecodeRuneInString(content[end:])
		end += size
	}
	var b strings.Builder
	if start > 0 {
		b.WriteString("…")
	}
	b.WriteString(content[start:i])
	b.WriteString("[")
	b.WriteString(content[i:j])
	b.WriteString("]")
	b.WriteString(content[j:end])
	if end < len(content) {
		b.WriteString("…")
	}
	return b.String(), true
}
