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
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"screenwriter/internal/domain"
)

// UntitledScript is the title given to scripts first created by an element save.
const UntitledScript = "Untitled"

// language=SQL
const scriptColumns = `id, title, logline, elements, status, metadata, created_at, updated_at`

func scanScript(row interface{ Scan(...any) error }) (domain.Script, error) {
	var (
		sc               domain.Script
		status           string
		created, updated dbTime
	)
	sc.Elements = []domain.ScriptElement{}
	err := row.Scan(&sc.ID, &sc.Title, &sc.Logline, jsonColumn{&sc.Elements}, &status, jsonColumn{&sc.Metadata}, &created, &updated)
	if err != nil {
		return domain.Script{}, err
	}
	if sc.Elements == nil {
		sc.Elements = []domain.ScriptElement{}
	}
	sc.Status = domain.Status(status)
	sc.CreatedAt, sc.UpdatedAt = created.T, updated.T
	return sc, nil
}

// ScriptFilter narrows ListScripts.
type ScriptFilter struct {
	Status domain.Status
	Limit  int
}

// ListScripts returns scripts ordered by most recently updated.
func (s *Store) ListScripts(ctx context.Context, f ScriptFilter) ([]domain.Script, error) {
	q := `SELECT ` + scriptColumns + ` FROM scripts`
	var args []any
	if f.Status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY updated_at DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.Script{}
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("scan script: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetScript returns one script.
func (s *Store) GetScript(ctx context.Context, id string) (domain.Script, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+scriptColumns+` FROM scripts WHERE id = ?`), id)
	sc, err := scanScript(row)
	if err != nil {
		return domain.Script{}, notFound(err, "script", id)
	}
	return sc, nil
}

// CreateScript inserts a new draft script.
func (s *Store) CreateScript(ctx context.Context, in domain.ScriptCreate) (domain.Script, error) {
	if err := in.Validate(); err != nil {
		return domain.Script{}, err
	}
	now := s.now()
	sc := domain.Script{
		ID:        s.newID(),
		Title:     strings.TrimSpace(in.Title),
		Logline:   in.Logline,
		Elements:  domain.CloneElements(in.Elements),
		Status:    domain.StatusDraft,
		Metadata:  in.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.insertScript(ctx, s.db, sc); err != nil {
		return domain.Script{}, err
	}
	s.logger.Info("script created", slog.String("id", sc.ID), slog.String("title", sc.Title))
	return sc, nil
}

func (s *Store) insertScript(ctx context.Context, q queryer, sc domain.Script) error {
	els, err := jsonArg(sc.Elements)
	if err != nil {
		return err
	}
	meta, err := jsonArg(sc.Metadata)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, s.rebind(`INSERT INTO scripts (`+scriptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		sc.ID, sc.Title, sc.Logline, els, string(sc.Status), meta, s.timeArg(sc.CreatedAt), s.timeArg(sc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert script: %w", err)
	}
	return nil
}

// UpdateScript applies the non-nil fields of u. Element changes are recorded as a revision.
func (s *Store) UpdateScript(ctx context.Context, id string, u domain.ScriptUpdate) (domain.Script, error) {
	if err := u.Validate(); err != nil {
		return domain.Script{}, err
	}
	if u.Empty() {
		return s.GetScript(ctx, id)
	}
	now := s.now()
	var set setClause
	if u.Title != nil {
		set.add("title", strings.TrimSpace(*u.Title))
	}
	if u.Logline != nil {
		set.add("logline", *u.Logline)
	}
	if u.Status != nil {
		set.add("status", string(*u.Status))
	}
	if u.Metadata != nil {
		meta, err := jsonArg(*u.Metadata)
		if err != nil {
			return domain.Script{}, err
		}
		set.add("metadata", meta)
	}
	if u.Elements != nil {
		els, err := jsonArg(domain.CloneElements(*u.Elements))
		if err != nil {
			return domain.Script{}, err
		}
		set.add("elements", els)
	}
	set.add("updated_at", s.timeArg(now))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE scripts SET `+set.sql()+` WHERE id = ?`), append(set.args, id)...)
		if err != nil {
			return fmt.Errorf("update script: %w", err)
		}
		if err := affectedOne(res, "script", id); err != nil {
			return err
		}
		if u.Elements != nil {
			return s.recordRevision(ctx, tx, id, *u.Elements)
		}
		return nil
	})
	if err != nil {
		return domain.Script{}, err
	}
	return s.GetScript(ctx, id)
}

// DeleteScript removes a script with its revisions and character links.
func (s *Store) DeleteScript(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// explicit deletes so SQLite databases opened without foreign keys stay clean
		for _, q := range []string{
			`DELETE FROM script_revisions WHERE script_id = ?`,
			`DELETE FROM script_characters WHERE script_id = ?`,
			`UPDATE blog_posts SET source_script_id = NULL WHERE source_script_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
				return fmt.Errorf("delete script dependents: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM scripts WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete script: %w", err)
		}
		return affectedOne(res, "script", id)
	})
}

// LoadElements returns the element sequence of a script.
func (s *Store) LoadElements(ctx context.Context, id string) ([]domain.ScriptElement, error) {
	els := []domain.ScriptElement{}
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT elements FROM scripts WHERE id = ?`), id).Scan(jsonColumn{&els})
	if err != nil {
		return nil, notFound(err, "script", id)
	}
	if els == nil {
		els = []domain.ScriptElement{}
	}
	return els, nil
}

// SaveElements replaces the element sequence of a script in one transaction and records a
// revision. A script that does not exist yet is created as an untitled draft.
func (s *Store) SaveElements(ctx context.Context, id string, els []domain.ScriptElement) error {
	if err := domain.ValidateElements(els); err != nil {
		return err
	}
	els = domain.CloneElements(els)
	payload, err := jsonArg(els)
	if err != nil {
		return err
	}
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE scripts SET elements = ?, updated_at = ? WHERE id = ?`), payload, s.timeArg(now), id)
		if err != nil {
			return fmt.Errorf("save elements: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			sc := domain.Script{ID: id, Title: UntitledScript, Elements: els, Status: domain.StatusDraft, CreatedAt: now, UpdatedAt: now}
			if err := s.insertScript(ctx, tx, sc); err != nil {
				return err
			}
			s.logger.Info("script created by save", slog.String("id", id))
		}
		return s.recordRevision(ctx, tx, id, els)
	})
}

// language=SQL
const pruneRevisionsSQL = `DELETE FROM script_revisions WHERE script_id = ? AND id NOT IN (
	SELECT id FROM script_revisions WHERE script_id = ? ORDER BY id DESC LIMIT ?
)`

func (s *Store) recordRevision(ctx context.Context, q queryer, id string, els []domain.ScriptElement) error {
	payload, err := jsonArg(domain.CloneElements(els))
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, s.rebind(`INSERT INTO script_revisions (script_id, ts, elements) VALUES (?, ?, ?)`), id, s.timeArg(s.now()), payload); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	if s.revisionKeep > 0 {
		if _, err := q.ExecContext(ctx, s.rebind(pruneRevisionsSQL), id, id, s.revisionKeep); err != nil {
			return fmt.Errorf("prune revisions: %w", err)
		}
	}
	return nil
}

// ListRevisions returns up to limit most recent element revisions of a script, newest first.
func (s *Store) ListRevisions(ctx context.Context, id string, limit int) ([]domain.ScriptRevision, error) {
	if limit <= 0 {
		limit = DefaultRevisionKeep
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT ts, elements FROM script_revisions WHERE script_id = ? ORDER BY id DESC LIMIT ?`), id, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.ScriptRevision{}
	for rows.Next() {
		var (
			ts  dbTime
			rev = domain.ScriptRevision{ScriptID: id, Elements: []domain.ScriptElement{}}
		)
		if err := rows.Scan(&ts, jsonColumn{&rev.Elements}); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		rev.TS = ts.T
		out = append(out, rev)
	}
	return out, rows.Err()
}

// PruneRevisions keeps the keepLast newest revisions of a script and reports how many were deleted.
func (s *Store) PruneRevisions(ctx context.Context, id string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, s.rebind(pruneRevisionsSQL), id, id, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}
	return res.RowsAffected()
}
