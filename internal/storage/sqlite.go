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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "screenwriter/internal/log"
	"screenwriter/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// sqliteSchemaVersion tracks the local SQLite schema.
// Bump this when you perform schema changes and add a migration step.
const sqliteSchemaVersion = 2

// OpenSQLite opens (creating if needed) the SQLite database at path, enables WAL mode
// and foreign keys, and brings the schema up to date.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers; embedded use never needs more.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := runSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("sqlite ready")
	return newStore(db, SQLite), nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh database: start at 0 so every migration runs
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 0, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// sqliteMigrations holds the statements of each schema step; index i upgrades to version i+1.
var sqliteMigrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS scripts (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			logline    TEXT NOT NULL DEFAULT '',
			elements   TEXT NOT NULL DEFAULT '[]',
			status     TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft','review','published')),
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS characters (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			personality_traits TEXT NOT NULL DEFAULT '[]',
			voice_notes        TEXT NOT NULL DEFAULT '',
			avatar_url         TEXT NOT NULL DEFAULT '',
			created_at         TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS script_characters (
			script_id    TEXT NOT NULL REFERENCES scripts(id) ON DELETE CASCADE,
			character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			PRIMARY KEY (script_id, character_id)
		);`,
		`CREATE TABLE IF NOT EXISTS blog_posts (
			id               TEXT PRIMARY KEY,
			title            TEXT NOT NULL,
			slug             TEXT NOT NULL UNIQUE,
			content          TEXT NOT NULL DEFAULT '',
			excerpt          TEXT NOT NULL DEFAULT '',
			seo_metadata     TEXT NOT NULL DEFAULT '{}',
			status           TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft','review','published')),
			source_script_id TEXT REFERENCES scripts(id) ON DELETE SET NULL,
			published_at     TEXT,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS script_revisions (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			script_id TEXT NOT NULL REFERENCES scripts(id) ON DELETE CASCADE,
			ts        TEXT NOT NULL,
			elements  TEXT NOT NULL
		);`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_scripts_status_updated ON scripts(status, updated_at);`,
		`CREATE INDEX IF NOT EXISTS idx_blog_posts_status_created ON blog_posts(status, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_script_revisions_script ON script_revisions(script_id, id);`,
	},
}

// runSQLiteMigrations applies incremental schema migrations up to sqliteSchemaVersion,
// one transaction per step.
func runSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > sqliteSchemaVersion {
		// Do not downgrade.
		return nil
	}
	for cur < sqliteSchemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range sqliteMigrations[next-1] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// SchemaVersion reports the schema version recorded in a SQLite store.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if s.dialect == Postgres {
		var v int64
		err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
		return int(v), err
	}
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}
