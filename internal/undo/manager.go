/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded undo/redo history for open documents.
package undo

import (
	"sync"
	"time"

	"screenwriter/internal/domain"
)

// Snapshot is the state of one document before a mutation.
// TS is when the snapshot was captured. Coalesce marks snapshots taken before
// typing edits; consecutive coalescing snapshots inside MinInterval collapse
// into the oldest one so a burst of keystrokes undoes as a single step.
type Snapshot struct {
	DocumentID string
	Elements   []domain.ScriptElement
	Focus      int
	TS         time.Time
	Coalesce   bool
}

func (s Snapshot) size() int {
	n := 0
	for _, el := range s.Elements {
		n += len(el.ID) + len(el.Type) + len(el.Content)
	}
	return n
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerDocument limits the number of snapshots kept per document (0 means unlimited).
	MaxPerDocument int
	// MinInterval is the coalescing window for typing snapshots.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per document with size safeguards.
// It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// accounting covers both stacks
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// Push records the state before a mutation and clears the document's redo stack.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked(s.DocumentID)
	stack := m.undo[s.DocumentID]
	if n := len(stack); n > 0 && s.Coalesce {
		last := &stack[n-1]
		if last.Coalesce && s.TS.Sub(last.TS) < m.cfg.MinInterval {
			// Keep the pre-burst state, extend the window.
			last.TS = s.TS
			return
		}
	}
	m.undo[s.DocumentID] = append(stack, s)
	m.totalBytes += s.size()
	m.enforceCapsLocked(s.DocumentID)
}

// Undo pops the latest snapshot of a document and remembers current for Redo.
func (m *Manager) Undo(docID string, current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[docID]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[docID] = stack[:len(stack)-1]
	m.totalBytes -= s.size()
	current.DocumentID = docID
	current.Coalesce = false
	m.redo[docID] = append(m.redo[docID], current)
	m.totalBytes += current.size()
	return s, true
}

// Redo pops the latest undone state and pushes current back onto the undo stack.
func (m *Manager) Redo(docID string, current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[docID]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[docID] = r[:len(r)-1]
	m.totalBytes -= s.size()
	current.DocumentID = docID
	current.Coalesce = false
	m.undo[docID] = append(m.undo[docID], current)
	m.totalBytes += current.size()
	m.enforceCapsLocked(docID)
	return s, true
}

// CanUndo reports whether Undo would succeed.
func (m *Manager) CanUndo(docID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[docID]) > 0
}

// CanRedo reports whether Redo would succeed.
func (m *Manager) CanRedo(docID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[docID]) > 0
}

// Clear drops both stacks of a document to free memory.
func (m *Manager) Clear(docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[docID] {
		m.totalBytes -= s.size()
	}
	m.dropRedoLocked(docID)
	delete(m.undo, docID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, documents int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	documents = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, documents, totalSnapshots
}

func (m *Manager) dropRedoLocked(docID string) {
	for _, s := range m.redo[docID] {
		m.totalBytes -= s.size()
	}
	delete(m.redo, docID)
}

func (m *Manager) enforceCapsLocked(docID string) {
	if m.cfg.MaxPerDocument > 0 {
		stack := m.undo[docID]
		if len(stack) > m.cfg.MaxPerDocument {
			toDrop := len(stack) - m.cfg.MaxPerDocument
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= stack[i].size()
			}
			m.undo[docID] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest undo entries across all documents.
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestDoc := ""
		found := false
		var oldestTS time.Time
		for doc, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestDoc = doc
				oldestTS = stack[0].TS
				found = true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestDoc]
		m.totalBytes -= stack[0].size()
		m.undo[oldestDoc] = stack[1:]
		if len(m.undo[oldestDoc]) == 0 {
			delete(m.undo, oldestDoc)
		}
	}
}
