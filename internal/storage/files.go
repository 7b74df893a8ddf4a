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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"screenwriter/internal/domain"
	applog "screenwriter/internal/log"
)

const (
	// BackupsDirName holds timestamped copies of replaced document files.
	BackupsDirName = "backups"
	docExt         = ".json"
	backupStamp    = "20060102T150405.000000000"
	// DefaultBackupKeep is how many backups per document survive a save.
	DefaultBackupKeep = 20
)

var reDocID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// FileStore keeps one JSON file per script under a root directory. Writes go to a
// temp file that is renamed over the target, under an advisory file lock, after
// copying the previous version into backups/.
type FileStore struct {
	root       string
	backupKeep int
	lockWait   time.Duration
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("files root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create files root: %w", err)
	}
	return &FileStore{
		root:       root,
		backupKeep: DefaultBackupKeep,
		lockWait:   5 * time.Second,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		logger:     applog.WithComponent("storage").With(slog.String("store", "files"), slog.String("root", root)),
	}, nil
}

// Root returns the directory holding the documents.
func (f *FileStore) Root() string { return f.root }

func (f *FileStore) path(id string) (string, error) {
	if !reDocID.MatchString(id) {
		return "", domain.Invalid("invalid document id %q", id)
	}
	return filepath.Join(f.root, id+docExt), nil
}

// List returns every readable script, most recently updated first.
func (f *FileStore) List(ctx context.Context) ([]domain.Script, error) {
	ents, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("read files root: %w", err)
	}
	out := []domain.Script{}
	for _, e := range ents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, docExt) || strings.HasPrefix(name, ".") {
			continue
		}
		sc, err := f.Get(ctx, strings.TrimSuffix(name, docExt))
		if err != nil {
			f.logger.Warn("skip unreadable document", slog.String("file", name), slog.Any("err", err))
			continue
		}
		out = append(out, sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Get reads a script. A document that fails to parse or validate is recovered from its newest backup.
func (f *FileStore) Get(_ context.Context, id string) (domain.Script, error) {
	p, err := f.path(id)
	if err != nil {
		return domain.Script{}, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Script{}, fmt.Errorf("script %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Script{}, fmt.Errorf("read %s: %w", p, err)
	}
	sc, perr := decodeScript(b)
	if perr == nil {
		return sc, nil
	}
	sc, berr := f.latestBackup(id)
	if berr != nil {
		return domain.Script{}, fmt.Errorf("parse %s: %w; backup attempt: %v", p, perr, berr)
	}
	f.logger.Warn("recovered document from backup", slog.String("id", id), slog.Any("err", perr))
	return sc, nil
}

func decodeScript(b []byte) (domain.Script, error) {
	if err := ValidateScriptJSON(b); err != nil {
		return domain.Script{}, err
	}
	var sc domain.Script
	if err := json.Unmarshal(b, &sc); err != nil {
		return domain.Script{}, err
	}
	if sc.Elements == nil {
		sc.Elements = []domain.ScriptElement{}
	}
	return sc, nil
}

// Create writes a new draft script file.
func (f *FileStore) Create(ctx context.Context, in domain.ScriptCreate) (domain.Script, error) {
	if err := in.Validate(); err != nil {
		return domain.Script{}, err
	}
	now := f.now()
	sc := domain.Script{
		ID:        f.newID(),
		Title:     strings.TrimSpace(in.Title),
		Logline:   in.Logline,
		Elements:  domain.CloneElements(in.Elements),
		Status:    domain.StatusDraft,
		Metadata:  in.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.write(ctx, sc); err != nil {
		return domain.Script{}, err
	}
	return sc, nil
}

// Delete removes a script file and its backups.
func (f *FileStore) Delete(ctx context.Context, id string) error {
	p, err := f.path(id)
	if err != nil {
		return err
	}
	unlock, err := f.lock(ctx, p)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(p); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("script %s: %w", id, domain.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	for _, b := range f.backups(id) {
		_ = os.Remove(b)
	}
	return nil
}

// LoadElements returns the element sequence of a script.
func (f *FileStore) LoadElements(ctx context.Context, id string) ([]domain.ScriptElement, error) {
	sc, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sc.Elements, nil
}

// SaveElements replaces the elements of a script, creating an untitled draft when
// the file does not exist.
func (f *FileStore) SaveElements(ctx context.Context, id string, els []domain.ScriptElement) error {
	if err := domain.ValidateElements(els); err != nil {
		return err
	}
	sc, err := f.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		now := f.now()
		sc = domain.Script{ID: id, Title: UntitledScript, Status: domain.StatusDraft, CreatedAt: now}
	case err != nil:
		return err
	}
	sc.Elements = domain.CloneElements(els)
	sc.UpdatedAt = f.now()
	return f.write(ctx, sc)
}

// Backups lists the backup files of a document, oldest first.
func (f *FileStore) Backups(id string) []string { return f.backups(id) }

func (f *FileStore) backups(id string) []string {
	ents, err := os.ReadDir(filepath.Join(f.root, BackupsDirName))
	if err != nil {
		return nil
	}
	var out []string
	prefix := id + docExt + "."
	for _, e := range ents {
		if name := e.Name(); strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(f.root, BackupsDirName, name))
		}
	}
	sort.Strings(out) // the timestamp in the name sorts lexicographically
	return out
}

func (f *FileStore) latestBackup(id string) (domain.Script, error) {
	bs := f.backups(id)
	for i := len(bs) - 1; i >= 0; i-- {
		b, err := os.ReadFile(bs[i])
		if err != nil {
			continue
		}
		if sc, err := decodeScript(b); err == nil {
			return sc, nil
		}
	}
	return domain.Script{}, errors.New("no usable backup")
}

func (f *FileStore) lock(ctx context.Context, docPath string) (func(), error) {
	fl := flock.New(docPath + ".lock")
	lctx, cancel := context.WithTimeout(ctx, f.lockWait)
	defer cancel()
	ok, err := fl.TryLockContext(lctx, 20*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", filepath.Base(docPath), err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: busy", filepath.Base(docPath))
	}
	return func() { _ = fl.Unlock() }, nil
}

// write stores sc with backup, temp file and rename.
func (f *FileStore) write(ctx context.Context, sc domain.Script) error {
	p, err := f.path(sc.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	data = append(data, '\n')

	unlock, err := f.lock(ctx, p)
	if err != nil {
		return err
	}
	defer unlock()

	if _, statErr := os.Stat(p); statErr == nil {
		stamp := f.now().Format(backupStamp)
		bpath := filepath.Join(f.root, BackupsDirName, fmt.Sprintf("%s%s.%s.bak", sc.ID, docExt, stamp))
		if cerr := copyFile(p, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
		f.pruneBackups(sc.ID)
	}

	temp := filepath.Join(f.root, fmt.Sprintf(".%s.tmp-%d-%d", sc.ID, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp document: %w", werr)
	}
	if rerr := os.Rename(temp, p); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	return nil
}

func (f *FileStore) pruneBackups(id string) {
	if f.backupKeep <= 0 {
		return
	}
	bs := f.backups(id)
	for len(bs) > f.backupKeep {
		_ = os.Remove(bs[0])
		bs = bs[1:]
	}
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
