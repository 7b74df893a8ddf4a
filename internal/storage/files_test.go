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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"screenwriter/internal/domain"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "scripts"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	// distinct, increasing timestamps keep backup names ordered
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	fs.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
	return fs
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()

	if _, err := fs.LoadElements(ctx, "doc-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing doc: %v", err)
	}
	if err := fs.SaveElements(ctx, "doc-1", sampleElements()); err != nil {
		t.Fatalf("SaveElements: %v", err)
	}
	got, err := fs.LoadElements(ctx, "doc-1")
	if err != nil {
		t.Fatalf("LoadElements: %v", err)
	}
	want := sampleElements()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	sc, err := fs.Get(ctx, "doc-1")
	if err != nil || sc.Title != UntitledScript || sc.Status != domain.StatusDraft {
		t.Fatalf("Get = %+v, %v", sc, err)
	}

	// no temp files are left behind
	ents, _ := os.ReadDir(fs.Root())
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStore_BackupsAndRecovery(t *testing.T) {
	fs := newTestFileStore(t)
	fs.backupKeep = 2
	ctx := context.Background()

	for _, c := range []string{"v1", "v2", "v3", "v4"} {
		els := []domain.ScriptElement{{ID: "a", Type: domain.Action, Content: c}}
		if err := fs.SaveElements(ctx, "doc", els); err != nil {
			t.Fatalf("save %s: %v", c, err)
		}
	}
	bs := fs.Backups("doc")
	if len(bs) != 2 {
		t.Fatalf("backups = %d, want 2", len(bs))
	}

	// corrupt the live document; Get falls back to the newest backup (v3)
	p := filepath.Join(fs.Root(), "doc.json")
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	els, err := fs.LoadElements(ctx, "doc")
	if err != nil {
		t.Fatalf("LoadElements after corruption: %v", err)
	}
	if len(els) != 1 || els[0].Content != "v3" {
		t.Fatalf("recovered %+v, want v3", els)
	}
}

func TestFileStore_SchemaViolationFallsBack(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	p := filepath.Join(fs.Root(), "bad.json")
	// valid JSON, unknown element type, no backups
	doc := `{"id":"bad","title":"T","status":"draft","elements":[{"id":"a","type":"montage","content":""}],"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := fs.Get(ctx, "bad")
	if err == nil || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFileStore_CreateListDelete(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()

	a, err := fs.Create(ctx, domain.ScriptCreate{Title: "Alpha", Elements: sampleElements()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := fs.Create(ctx, domain.ScriptCreate{Title: "Beta"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fs.Create(ctx, domain.ScriptCreate{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("untitled create: %v", err)
	}
	// a stray file is skipped by List
	if err := os.WriteFile(filepath.Join(fs.Root(), "stray.json"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := fs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("List order = %+v", list)
	}
	if got, _ := fs.Get(ctx, b.ID); got.Elements == nil {
		t.Fatal("elements must decode as an empty slice")
	}

	if err := fs.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := fs.Delete(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		if err := fs.SaveElements(ctx, id, nil); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("id %q: %v", id, err)
		}
	}
}

func TestNewFileStore_EmptyRoot(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Fatal("expected error")
	}
}
