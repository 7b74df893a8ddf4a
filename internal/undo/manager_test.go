/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"

	"screenwriter/internal/domain"
)

func snap(doc, content string, ts time.Time, coalesce bool) Snapshot {
	return Snapshot{
		DocumentID: doc,
		Elements:   []domain.ScriptElement{{ID: "e1", Type: domain.Action, Content: content}},
		TS:         ts,
		Coalesce:   coalesce,
	}
}

func content(s Snapshot) string { return s.Elements[0].Content }

func TestUndoRedoSwapsState(t *testing.T) {
	m := NewManager(Config{MaxPerDocument: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	m.Push(snap("d", "a", t0, false))
	m.Push(snap("d", "b", t0.Add(time.Second), false))
	if _, docs, total := m.Stats(); docs != 1 || total != 2 {
		t.Fatalf("expected 1 document and 2 snapshots, got docs=%d total=%d", docs, total)
	}

	s, ok := m.Undo("d", snap("", "c", t0.Add(2*time.Second), false))
	if !ok || content(s) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v %q", ok, content(s))
	}
	s, ok = m.Undo("d", s)
	if !ok || content(s) != "a" {
		t.Fatalf("second undo expected 'a', got ok=%v %q", ok, content(s))
	}
	if m.CanUndo("d") {
		t.Fatalf("undo stack should be empty")
	}

	s, ok = m.Redo("d", s)
	if !ok || content(s) != "b" {
		t.Fatalf("redo expected 'b', got ok=%v %q", ok, content(s))
	}
	s, ok = m.Redo("d", s)
	if !ok || content(s) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v %q", ok, content(s))
	}
	if m.CanRedo("d") {
		t.Fatalf("redo stack should be empty")
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Now()
	m.Push(snap("d", "a", t0, false))
	if _, ok := m.Undo("d", snap("", "b", t0, false)); !ok {
		t.Fatalf("undo failed")
	}
	if !m.CanRedo("d") {
		t.Fatalf("expected redo available")
	}
	m.Push(snap("d", "x", t0.Add(time.Second), false))
	if m.CanRedo("d") {
		t.Fatalf("new change should clear redo")
	}
}

func TestCoalesceKeepsPreBurstState(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(snap("d", "", t0, true))
	m.Push(snap("d", "H", t0.Add(10*time.Millisecond), true))
	m.Push(snap("d", "He", t0.Add(40*time.Millisecond), true))
	// extended window: still inside 50ms of the previous keystroke
	m.Push(snap("d", "Hel", t0.Add(80*time.Millisecond), true))
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo("d", snap("", "Hell", t0, false))
	if !ok || content(s) != "" {
		t.Fatalf("expected pre-burst snapshot, got ok=%v %q", ok, content(s))
	}

	// structural snapshots never coalesce
	m.Push(snap("d", "x", t0, false))
	m.Push(snap("d", "y", t0.Add(time.Millisecond), false))
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("expected 2 snapshots, got %d", total)
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024, MaxPerDocument: 2, MinInterval: time.Millisecond})
	for i := 0; i < 10; i++ {
		m.Push(snap("d", "xxxxx", time.Now().Add(time.Duration(i)*time.Second), false))
	}
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("expected MaxPerDocument cap to limit to 2, got %d", total)
	}
}

func TestGlobalPruneAcrossDocuments(t *testing.T) {
	// sizes: id "e1" (2) + type "action" (6) + 4 bytes of content = 12 per snapshot
	m := NewManager(Config{MaxBytes: 30, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.Push(snap("old", "xxxx", t0, false))
	m.Push(snap("new", "yyyy", t0.Add(time.Second), false))
	m.Push(snap("new", "zzzz", t0.Add(2*time.Second), false))

	if m.CanUndo("old") {
		t.Fatalf("expected oldest document history to be pruned")
	}
	if !m.CanUndo("new") {
		t.Fatalf("expected newer document to keep history")
	}
}

func TestClearAndStats(t *testing.T) {
	m := NewManager(Config{MaxPerDocument: 10})
	m.Push(snap("d", "abcdef", time.Now(), false))
	if _, ok := m.Undo("d", snap("", "g", time.Now(), false)); !ok {
		t.Fatalf("undo failed")
	}
	m.Push(snap("d", "abcdef", time.Now(), false))
	if tb, docs, total := m.Stats(); tb == 0 || docs != 1 || total != 1 {
		t.Fatalf("unexpected stats before clear: tb=%d docs=%d total=%d", tb, docs, total)
	}
	m.Clear("d")
	if tb, docs, total := m.Stats(); tb != 0 || docs != 0 || total != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d docs=%d total=%d", tb, docs, total)
	}
}
