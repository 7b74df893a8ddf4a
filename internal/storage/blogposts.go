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
	"log/slog"
	"strings"

	"screenwriter/internal/domain"
	"screenwriter/internal/screenplay"
)

const blogPostColumns = `id, title, slug, content, excerpt, seo_metadata, status, source_script_id, published_at, created_at, updated_at`

func scanBlogPost(row interface{ Scan(...any) error }) (domain.BlogPost, error) {
	var (
		p                           domain.BlogPost
		status                      string
		source                      *string
		published, created, updated dbTime
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, jsonColumn{&p.SEO}, &status, &source, &published, &created, &updated); err != nil {
		return domain.BlogPost{}, err
	}
	p.Status = domain.Status(status)
	if source != nil {
		p.SourceScriptID = *source
	}
	p.PublishedAt = published.ptr()
	p.CreatedAt, p.UpdatedAt = created.T, updated.T
	return p, nil
}

// ListBlogPosts returns posts newest first, optionally filtered by status.
func (s *Store) ListBlogPosts(ctx context.Context, status domain.Status) ([]domain.BlogPost, error) {
	q := `SELECT ` + blogPostColumns + ` FROM blog_posts`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.BlogPost{}
	for rows.Next() {
		p, err := scanBlogPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blog post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetBlogPost returns one post.
func (s *Store) GetBlogPost(ctx context.Context, id string) (domain.BlogPost, error) {
	p, err := scanBlogPost(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+blogPostColumns+` FROM blog_posts WHERE id = ?`), id))
	if err != nil {
		return domain.BlogPost{}, notFound(err, "blog post", id)
	}
	return p, nil
}

// CreateBlogPost inserts a post. An empty slug is derived from the title; a slug
// already taken gets a numeric suffix.
func (s *Store) CreateBlogPost(ctx context.Context, in domain.BlogPostCreate) (domain.BlogPost, error) {
	if err := in.Validate(); err != nil {
		return domain.BlogPost{}, err
	}
	if in.SourceScriptID != "" {
		if _, err := s.GetScript(ctx, in.SourceScriptID); err != nil {
			return domain.BlogPost{}, err
		}
	}
	now := s.now()
	p := domain.BlogPost{
		ID:             s.newID(),
		Title:          strings.TrimSpace(in.Title),
		Content:        in.Content,
		Excerpt:        in.Excerpt,
		SEO:            in.SEO,
		Status:         in.Status,
		SourceScriptID: in.SourceScriptID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Status == "" {
		p.Status = domain.StatusDraft
	}
	if p.Status == domain.StatusPublished {
		p.PublishedAt = &now
	}
	if p.Excerpt == "" {
		p.Excerpt = excerptOf(p.Content)
	}
	slug, err := s.uniqueSlug(ctx, firstNonEmpty(in.Slug, domain.Slugify(p.Title), "post"))
	if err != nil {
		return domain.BlogPost{}, err
	}
	p.Slug = slug

	seo, err := jsonArg(p.SEO)
	if err != nil {
		return domain.BlogPost{}, err
	}
	var source any
	if p.SourceScriptID != "" {
		source = p.SourceScriptID
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO blog_posts (`+blogPostColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Title, p.Slug, p.Content, p.Excerpt, seo, string(p.Status), source, s.nullTimeArg(p.PublishedAt), s.timeArg(p.CreatedAt), s.timeArg(p.UpdatedAt))
	if err != nil {
		return domain.BlogPost{}, fmt.Errorf("insert blog post: %w", err)
	}
	s.logger.Info("blog post created", slog.String("id", p.ID), slog.String("slug", p.Slug))
	return p, nil
}

// UpdateBlogPost applies the non-nil fields of u. Moving to published stamps published_at once.
func (s *Store) UpdateBlogPost(ctx context.Context, id string, u domain.BlogPostUpdate) (domain.BlogPost, error) {
	if err := u.Validate(); err != nil {
		return domain.BlogPost{}, err
	}
	cur, err := s.GetBlogPost(ctx, id)
	if err != nil {
		return domain.BlogPost{}, err
	}
	now := s.now()
	var set setClause
	if u.Title != nil {
		set.add("title", strings.TrimSpace(*u.Title))
	}
	if u.Slug != nil && *u.Slug != cur.Slug {
		slug, err := s.uniqueSlug(ctx, *u.Slug)
		if err != nil {
			return domain.BlogPost{}, err
		}
		set.add("slug", slug)
	}
	if u.Content != nil {
		set.add("content", *u.Content)
	}
	if u.Excerpt != nil {
		set.add("excerpt", *u.Excerpt)
	}
	if u.SEO != nil {
		seo, err := jsonArg(*u.SEO)
		if err != nil {
			return domain.BlogPost{}, err
		}
		set.add("seo_metadata", seo)
	}
	if u.Status != nil {
		set.add("status", string(*u.Status))
		if *u.Status == domain.StatusPublished && cur.PublishedAt == nil {
			set.add("published_at", s.timeArg(now))
		}
	}
	if set.empty() {
		return cur, nil
	}
	set.add("updated_at", s.timeArg(now))
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE blog_posts SET `+set.sql()+` WHERE id = ?`), append(set.args, id)...)
	if err != nil {
		return domain.BlogPost{}, fmt.Errorf("update blog post: %w", err)
	}
	if err := affectedOne(res, "blog post", id); err != nil {
		return domain.BlogPost{}, err
	}
	return s.GetBlogPost(ctx, id)
}

// DeleteBlogPost removes a post.
func (s *Store) DeleteBlogPost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM blog_posts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete blog post: %w", err)
	}
	return affectedOne(res, "blog post", id)
}

// PublishScript creates a draft blog post whose body is the script rendered as markdown.
func (s *Store) PublishScript(ctx context.Context, scriptID string) (domain.BlogPost, error) {
	sc, err := s.GetScript(ctx, scriptID)
	if err != nil {
		return domain.BlogPost{}, err
	}
	body := screenplay.RenderMarkdown(sc.Elements)
	return s.CreateBlogPost(ctx, domain.BlogPostCreate{
		Title:          sc.Title,
		Content:        body,
		Excerpt:        firstNonEmpty(sc.Logline, excerptOf(body)),
		SEO:            domain.SEOMetadata{MetaTitle: sc.Title, MetaDescription: sc.Logline, Keywords: nonEmpty(sc.Metadata.Genre)},
		SourceScriptID: sc.ID,
	})
}

func (s *Store) uniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for i := 2; i < 1000; i++ {
		var n int
		if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM blog_posts WHERE slug = ?`), slug).Scan(&n); err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if n == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", domain.Invalid("no free slug for %q", base)
}

// excerptOf returns the first paragraph of markdown, trimmed to 200 runes.
func excerptOf(md string) string {
	para := strings.TrimSpace(md)
	if i := strings.Index(para, "\n\n"); i >= 0 {
		para = para[:i]
	}
	para = strings.TrimLeft(para, "#> ")
	r := []rune(para)
	if len(r) > 200 {
		return string(r[:199]) + "…"
	}
	return para
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
