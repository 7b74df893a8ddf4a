/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"screenwriter/internal/domain"
)

type fakeDoc struct {
	id  string
	els []domain.ScriptElement
	mu  sync.Mutex
}

func (d *fakeDoc) DocumentID() string { return d.id }

func (d *fakeDoc) Snapshot() []domain.ScriptElement {
	d.mu.Lock()
	defer d.mu.Unlock()
	return domain.CloneElements(d.els)
}

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

func findFile(t *testing.T, dir, prefix, suffix string) string {
	t.Helper()
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), suffix) {
			return filepath.Join(dir, f.Name())
		}
	}
	return ""
}

func TestRecover_WritesReportAndRescue(t *testing.T) {
	silenceStderr(t)
	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	dir := t.TempDir()
	doc := &fakeDoc{id: "doc/1", els: []domain.ScriptElement{
		{ID: "a", Type: domain.SceneHeading, Content: "INT. ATTIC - NIGHT"},
		{ID: "b", Type: domain.Action, Content: "Dust."},
	}}

	func() {
		defer Recover(dir, doc)
		panic("boom")
	}()

	report := findFile(t, dir, "crash-", ".log")
	if report == "" {
		t.Fatalf("expected crash report in %s", dir)
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) || !bytes.Contains(b, []byte("Document: doc/1")) {
		t.Fatalf("report content: %s", b)
	}

	rescue := findFile(t, dir, "rescue-doc_1-", ".json")
	if rescue == "" {
		t.Fatalf("expected rescue file in %s", dir)
	}
	r, err := LoadRescue(rescue)
	if err != nil {
		t.Fatalf("LoadRescue: %v", err)
	}
	if r.DocumentID != "doc/1" || len(r.Elements) != 2 || r.Elements[0].Content != "INT. ATTIC - NIGHT" {
		t.Fatalf("rescue = %+v", r)
	}

	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
}

func TestRecover_NoPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()

	dir := t.TempDir()
	func() {
		defer Recover(dir, nil)
	}()
	if called {
		t.Fatal("exit must not be called without a panic")
	}
	if files, _ := os.ReadDir(dir); len(files) != 0 {
		t.Fatalf("unexpected files: %v", files)
	}
}

func TestRescue_LockedDocumentTimesOut(t *testing.T) {
	old := rescueTimeout
	rescueTimeout = 50 * time.Millisecond
	defer func() { rescueTimeout = old }()

	doc := &fakeDoc{id: "stuck"}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if _, err := rescueDocument(t.TempDir(), doc); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestWriteReportCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, report, err := writeReport(dir, nil, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("report written to %s, want under %s", path, dir)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Equal(b, report) {
		t.Fatal("returned report differs from file")
	}
	s := string(b)
	if !strings.Contains(s, "Screenwriter Crash Report") || !strings.Contains(s, "Panic: kaboom") {
		t.Fatalf("report content: %s", s)
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{"": "untitled", "abc-1_x": "abc-1_x", "../x y": "___x_y"}
	for in, want := range cases {
		if got := safeName(in); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}
