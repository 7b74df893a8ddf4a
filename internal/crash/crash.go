/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report, rescues the open document and exits.
package crash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"screenwriter/internal/domain"
	applog "screenwriter/internal/log"
	"screenwriter/internal/telemetry"
	"screenwriter/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// rescueTimeout bounds how long Recover waits for a document snapshot. The panicking
// goroutine may still hold the document lock.
var rescueTimeout = time.Second

// Document is the open document at the time of a crash. *editor.Session implements it.
type Document interface {
	DocumentID() string
	Snapshot() []domain.ScriptElement
}

// Rescue is the JSON file written for a rescued document.
type Rescue struct {
	DocumentID string                 `json:"document_id"`
	RescuedAt  time.Time              `json:"rescued_at"`
	Version    string                 `json:"version"`
	Elements   []domain.ScriptElement `json:"elements"`
}

// Recover captures a panic, logs an error with stacktrace, writes an error report
// file into dir, rescues doc (if provided) next to it, and exits with code 2.
//
// Usage: defer crash.Recover(dir, session)
func Recover(dir string, doc Document) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		if dir == "" {
			dir = os.TempDir()
		}
		reportPath, report, err := writeReport(dir, doc, r, stack)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		if doc != nil {
			if path, err := rescueDocument(dir, doc); err != nil {
				l.Error("document rescue failed", slog.Any("err", err))
			} else {
				l.Info("document rescued", slog.String("path", path))
				_, _ = fmt.Fprintf(os.Stderr, "Unsaved work was rescued to: %s\n", path)
			}
		}
		if report != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := telemetry.UploadCrash(ctx, report); err == nil {
				l.Info("crash report uploaded")
			}
			cancel()
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

func writeReport(dir string, doc Document, panicVal any, stack []byte) (string, []byte, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, err
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405.000")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Screenwriter Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if doc != nil {
		_, _ = fmt.Fprintf(&buf, "Document: %s\n", doc.DocumentID())
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := writeFileSync(path, buf.Bytes()); err != nil {
		return path, buf.Bytes(), err
	}
	return path, buf.Bytes(), nil
}

// rescueDocument writes the document's current elements to rescue-<id>-<stamp>.json.
func rescueDocument(dir string, doc Document) (string, error) {
	ch := make(chan []domain.ScriptElement, 1)
	go func() { ch <- doc.Snapshot() }()
	var els []domain.ScriptElement
	select {
	case els = <-ch:
	case <-time.After(rescueTimeout):
		return "", fmt.Errorf("snapshot of %s timed out", doc.DocumentID())
	}
	now := time.Now().UTC()
	b, err := json.MarshalIndent(Rescue{
		DocumentID: doc.DocumentID(),
		RescuedAt:  now,
		Version:    version.String(),
		Elements:   domain.CloneElements(els),
	}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("rescue-%s-%s.json", safeName(doc.DocumentID()), now.Format("20060102-150405.000")))
	return path, writeFileSync(path, b)
}

// LoadRescue reads a rescue file written by Recover.
func LoadRescue(path string) (Rescue, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Rescue{}, err
	}
	var r Rescue
	if err := json.Unmarshal(b, &r); err != nil {
		return Rescue{}, fmt.Errorf("parse rescue %s: %w", path, err)
	}
	if r.Elements == nil {
		r.Elements = []domain.ScriptElement{}
	}
	return r, nil
}

func safeName(id string) string {
	b := []byte(id)
	for i, c := range b {
		ok := c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
		if !ok {
			b[i] = '_'
		}
	}
	if len(b) == 0 {
		return "untitled"
	}
	return string(b)
}

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
