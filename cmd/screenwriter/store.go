/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"

	"screenwriter/internal/backend"
	"screenwriter/internal/config"
	"screenwriter/internal/domain"
	"screenwriter/internal/storage"
)

// scriptStore is what the CLI needs from any configured persistence driver.
type scriptStore interface {
	ListScripts(ctx context.Context, f storage.ScriptFilter) ([]domain.Script, error)
	GetScript(ctx context.Context, id string) (domain.Script, error)
	CreateScript(ctx context.Context, in domain.ScriptCreate) (domain.Script, error)
	LoadElements(ctx context.Context, id string) ([]domain.ScriptElement, error)
	SaveElements(ctx context.Context, id string, els []domain.ScriptElement) error
	Close() error
}

var errNoDatabaseURL = errors.New("postgres driver needs a database URL (set SCW_DATABASE_URL or store it in the keyring)")

func openStore(ctx context.Context, cfg config.AppConfig, sec config.Secrets) (scriptStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite, config.DriverPostgres:
		return openSQLStore(ctx, cfg, sec)
	case config.DriverFiles:
		fs, err := storage.NewFileStore(cfg.Storage.FilesRoot)
		if err != nil {
			return nil, err
		}
		return fileScripts{fs}, nil
	case config.DriverRemote:
		c := backend.NewClient(cfg.Backend.BaseURL, sec.BackendToken, backend.WithTimeout(cfg.Backend.Timeout()))
		return remoteScripts{c}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// openSQLStore opens the database behind the sqlite and postgres drivers.
func openSQLStore(ctx context.Context, cfg config.AppConfig, sec config.Secrets) (*storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		return storage.OpenSQLite(ctx, cfg.Storage.SQLitePath)
	case config.DriverPostgres:
		if sec.DatabaseURL == "" {
			return nil, errNoDatabaseURL
		}
		return storage.OpenPostgres(ctx, sec.DatabaseURL)
	}
	return nil, fmt.Errorf("driver %q has no database; use sqlite or postgres", cfg.Storage.Driver)
}

type fileScripts struct{ *storage.FileStore }

func (f fileScripts) ListScripts(ctx context.Context, flt storage.ScriptFilter) ([]domain.Script, error) {
	all, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sc := range all {
		if flt.Status != "" && sc.Status != flt.Status {
			continue
		}
		out = append(out, sc)
		if flt.Limit > 0 && len(out) == flt.Limit {
			break
		}
	}
	return out, nil
}

func (f fileScripts) GetScript(ctx context.Context, id string) (domain.Script, error) {
	return f.Get(ctx, id)
}

func (f fileScripts) CreateScript(ctx context.Context, in domain.ScriptCreate) (domain.Script, error) {
	return f.Create(ctx, in)
}

func (fileScripts) Close() error { return nil }

type remoteScripts struct{ *backend.Client }

func (remoteScripts) Close() error { return nil }
