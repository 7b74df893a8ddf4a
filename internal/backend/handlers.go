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
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"screenwriter/internal/domain"
	"screenwriter/internal/storage"
)

// scripts

func (s *Server) listScripts(w http.ResponseWriter, r *http.Request) {
	st, err := queryStatus(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.repo.ListScripts(r.Context(), storage.ScriptFilter{Status: st, Limit: limit})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createScript(w http.ResponseWriter, r *http.Request) {
	var in domain.ScriptCreate
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	sc, err := s.repo.CreateScript(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) getScript(w http.ResponseWriter, r *http.Request) {
	sc, err := s.repo.GetScript(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) updateScript(w http.ResponseWriter, r *http.Request) {
	var u domain.ScriptUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.fail(w, r, err)
		return
	}
	sc, err := s.repo.UpdateScript(r.Context(), r.PathValue("id"), u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) deleteScript(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteScript(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getElements(w http.ResponseWriter, r *http.Request) {
	els, err := s.repo.LoadElements(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, els)
}

// putElements replaces the element sequence. The body is checked against the element schema first.
func (s *Server) putElements(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := storage.ValidateElementsJSON(body); err != nil {
		s.fail(w, r, err)
		return
	}
	var els []domain.ScriptElement
	if err := json.Unmarshal(body, &els); err != nil {
		s.fail(w, r, domain.Invalid("decode elements: %v", err))
		return
	}
	if err := s.repo.SaveElements(r.Context(), r.PathValue("id"), els); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRevisions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.repo.GetScript(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	revs, err := s.repo.ListRevisions(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revs)
}

func (s *Server) publishScript(w http.ResponseWriter, r *http.Request) {
	post, err := s.repo.PublishScript(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) scriptCharacters(w http.ResponseWriter, r *http.Request) {
	cast, err := s.repo.ScriptCharacters(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cast)
}

type linkRequest struct {
	CharacterID string `json:"character_id"`
}

func (s *Server) linkCharacter(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.CharacterID) == "" {
		s.fail(w, r, domain.Invalid("character_id is required"))
		return
	}
	id := r.PathValue("id")
	if err := s.repo.LinkCharacter(r.Context(), id, req.CharacterID); err != nil {
		s.fail(w, r, err)
		return
	}
	cast, err := s.repo.ScriptCharacters(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cast)
}

func (s *Server) unlinkCharacter(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.UnlinkCharacter(r.Context(), r.PathValue("id"), r.PathValue("cid")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	st, err := queryStatus(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.repo.SearchScripts(r.Context(), storage.SearchQuery{
		Text:   r.URL.Query().Get("q"),
		Status: st,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// characters

func (s *Server) listCharacters(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.ListCharacters(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createCharacter(w http.ResponseWriter, r *http.Request) {
	var in domain.CharacterCreate
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.repo.CreateCharacter(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getCharacter(w http.ResponseWriter, r *http.Request) {
	c, err := s.repo.GetCharacter(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateCharacter(w http.ResponseWriter, r *http.Request) {
	var u domain.CharacterUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.repo.UpdateCharacter(r.Context(), r.PathValue("id"), u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCharacter(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteCharacter(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// blog posts

func (s *Server) listBlogPosts(w http.ResponseWriter, r *http.Request) {
	st, err := queryStatus(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.repo.ListBlogPosts(r.Context(), st)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createBlogPost(w http.ResponseWriter, r *http.Request) {
	var in domain.BlogPostCreate
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.repo.CreateBlogPost(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getBlogPost(w http.ResponseWriter, r *http.Request) {
	p, err := s.repo.GetBlogPost(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateBlogPost(w http.ResponseWriter, r *http.Request) {
	var u domain.BlogPostUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.repo.UpdateBlogPost(r.Context(), r.PathValue("id"), u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteBlogPost(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteBlogPost(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// blogPostHTML renders the post's markdown body as a standalone HTML page.
func (s *Server) blogPostHTML(w http.ResponseWriter, r *http.Request) {
	p, err := s.repo.GetBlogPost(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := s.RenderMarkdown(p.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "<!doctype html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(p.Title))
	if d := p.SEO.MetaDescription; d != "" {
		fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", html.EscapeString(d))
	}
	if len(p.SEO.Keywords) > 0 {
		fmt.Fprintf(&b, "<meta name=\"keywords\" content=\"%s\">\n", html.EscapeString(strings.Join(p.SEO.Keywords, ", ")))
	}
	fmt.Fprintf(&b, "</head>\n<body>\n<article>\n<h1>%s</h1>\n", html.EscapeString(p.Title))
	b.WriteString(body)
	b.WriteString("</article>\n</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Bytes())
}

// RenderMarkdown converts markdown to an HTML fragment.
func (s *Server) RenderMarkdown(md string) (string, error) {
	var b bytes.Buffer
	if err := s.md.Convert([]byte(md), &b); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return b.String(), nil
}
