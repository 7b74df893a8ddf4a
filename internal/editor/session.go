/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor holds the editing state of one open screenplay: the ordered
// element sequence, the focused element and the structural commands a host UI
// routes keystrokes into.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"screenwriter/internal/domain"
	applog "screenwriter/internal/log"
	"screenwriter/internal/screenplay"
	"screenwriter/internal/undo"
)

// InitialElementID is the id given to the element synthesized for an empty document.
const InitialElementID = "element-initial"

// FocusMover is implemented by hosts that can move input focus to an element.
// It is called after the session lock is released.
type FocusMover interface {
	FocusElement(index int)
}

// Loader loads the element sequence of a document.
type Loader interface {
	LoadElements(ctx context.Context, documentID string) ([]domain.ScriptElement, error)
}

// Options configure a Session. The zero value is usable.
type Options struct {
	NewID  func() string
	Undo   *undo.Manager
	Focus  FocusMover
	Now    func() time.Time
	Logger *slog.Logger
}

// Session is one editing session over a document. All commands are serialized
// by an internal mutex, so readers never observe a half-applied command.
type Session struct {
	mu       sync.Mutex
	docID    string
	elements []domain.ScriptElement
	focus    int
	revision uint64
	saved    uint64
	isNew    bool

	newID   func() string
	history *undo.Manager
	mover   FocusMover
	now     func() time.Time
	logger  *slog.Logger
}

// New starts a session over a copy of elements. An empty sequence gets one empty action element.
func New(docID string, elements []domain.ScriptElement, opts Options) *Session {
	s := &Session{
		docID:    docID,
		elements: domain.CloneElements(elements),
		newID:    opts.NewID,
		history:  opts.Undo,
		mover:    opts.Focus,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.history == nil {
		s.history = undo.NewManager(undo.Config{MaxPerDocument: 200})
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = applog.WithComponent("editor")
	}
	s.logger = applog.WithDocument(s.logger, docID)
	if len(s.elements) == 0 {
		s.elements = []domain.ScriptElement{{ID: InitialElementID, Type: domain.Action, Content: ""}}
	}
	return s
}

// Open loads a document through loader. A document the loader does not know
// opens as a new, empty document; any other failure is a PersistenceError.
func Open(ctx context.Context, loader Loader, docID string, opts Options) (*Session, error) {
	els, err := loader.LoadElements(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		s := New(docID, nil, opts)
		s.isNew = true
		s.logger.Info("document not found; starting empty")
		return s, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", DocumentID: docID, Err: err}
	}
	return New(docID, els, opts), nil
}

// SetFocusMover attaches the host focus capability.
func (s *Session) SetFocusMover(m FocusMover) {
	s.mu.Lock()
	s.mover = m
	s.mu.Unlock()
}

// DocumentID returns the id of the document being edited.
func (s *Session) DocumentID() string { return s.docID }

// IsNew reports whether Open found no stored document.
func (s *Session) IsNew() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNew
}

// Snapshot returns a deep copy of the current sequence.
func (s *Session) Snapshot() []domain.ScriptElement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneElements(s.elements)
}

// Versioned returns a copy of the sequence together with the revision it reflects.
func (s *Session) Versioned() ([]domain.ScriptElement, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneElements(s.elements), s.revision
}

// MarkSaved records that the state at rev has been persisted.
func (s *Session) MarkSaved(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev > s.saved {
		s.saved = rev
	}
}

// Dirty reports whether there are mutations newer than the last save.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision > s.saved
}

// Revision is a counter bumped by every mutating command.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Len returns the number of elements.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.elements)
}

// Element returns a copy of the element at index.
func (s *Session) Element(index int) (domain.ScriptElement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.elements) {
		return domain.ScriptElement{}, false
	}
	return s.elements[index], true
}

// FocusIndex returns the element that currently has input focus.
func (s *Session) FocusIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

// Focus records which element has input focus. It never mutates the sequence.
func (s *Session) Focus(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inRange(index) {
		return s.invalid("focus", index)
	}
	s.focus = index
	return nil
}

// ContentChanged reclassifies the element at index from its new text and the element before it.
func (s *Session) ContentChanged(index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inRange(index) {
		return s.invalid("content changed", index)
	}
	var prev *domain.ScriptElement
	if index > 0 {
		prev = &s.elements[index-1]
	}
	content, typ := screenplay.AutoFormatLine(text, prev)
	el := &s.elements[index]
	if el.Content == content && el.Type == typ {
		return nil
	}
	s.pushLocked(true)
	el.Content, el.Type = content, typ
	s.revision++
	return nil
}

// CycleType moves the element at index to the next type in screenplay.ElementCycle
// and re-applies that type's casing.
func (s *Session) CycleType(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inRange(index) {
		return s.invalid("cycle type", index)
	}
	s.pushLocked(false)
	el := &s.elements[index]
	el.Type = screenplay.NextType(el.Type)
	el.Content = screenplay.FormatText(el.Content, el.Type)
	s.revision++
	return nil
}

// Split inserts an empty action element after index and focuses it.
// The element at index keeps its full content.
func (s *Session) Split(index int) error {
	s.mu.Lock()
	if !s.inRange(index) {
		err := s.invalid("split", index)
		s.mu.Unlock()
		return err
	}
	s.pushLocked(false)
	s.insertLocked(index+1, domain.ScriptElement{ID: s.newID(), Type: domain.Action})
	return s.moveFocusAndUnlock(index + 1)
}

// DeleteMerge removes the element at index when it is empty and not the only one,
// then focuses the element before it.
func (s *Session) DeleteMerge(index int) error {
	s.mu.Lock()
	if !s.inRange(index) || s.elements[index].Content != "" || len(s.elements) < 2 {
		err := s.invalid("delete", index)
		s.mu.Unlock()
		return err
	}
	s.pushLocked(false)
	s.elements = append(s.elements[:index], s.elements[index+1:]...)
	s.revision++
	return s.moveFocusAndUnlock(max(0, index-1))
}

// AppendNew adds an empty action element at the end and focuses it.
func (s *Session) AppendNew() error {
	s.mu.Lock()
	s.pushLocked(false)
	s.insertLocked(len(s.elements), domain.ScriptElement{ID: s.newID(), Type: domain.Action})
	return s.moveFocusAndUnlock(len(s.elements) - 1)
}

// Undo restores the state before the last command.
func (s *Session) Undo() error {
	s.mu.Lock()
	prev, ok := s.history.Undo(s.docID, s.currentLocked())
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: nothing to undo", domain.ErrInvalidOperation)
	}
	return s.restoreAndUnlock(prev)
}

// Redo re-applies the last undone command.
func (s *Session) Redo() error {
	s.mu.Lock()
	next, ok := s.history.Redo(s.docID, s.currentLocked())
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: nothing to redo", domain.ErrInvalidOperation)
	}
	return s.restoreAndUnlock(next)
}

// Close releases the undo history held for the document.
func (s *Session) Close() {
	s.history.Clear(s.docID)
}

func (s *Session) restoreAndUnlock(snap undo.Snapshot) error {
	s.elements = domain.CloneElements(snap.Elements)
	if len(s.elements) == 0 {
		s.elements = []domain.ScriptElement{{ID: s.newID(), Type: domain.Action}}
	}
	s.revision++
	return s.moveFocusAndUnlock(min(max(0, snap.Focus), len(s.elements)-1))
}

func (s *Session) insertLocked(at int, el domain.ScriptElement) {
	s.elements = append(s.elements, domain.ScriptElement{})
	copy(s.elements[at+1:], s.elements[at:])
	s.elements[at] = el
	s.revision++
}

// moveFocusAndUnlock sets focus, releases the lock and tells the host.
func (s *Session) moveFocusAndUnlock(index int) error {
	s.focus = index
	mover := s.mover
	s.mu.Unlock()
	if mover != nil {
		mover.FocusElement(index)
	}
	return nil
}

func (s *Session) currentLocked() undo.Snapshot {
	return undo.Snapshot{
		DocumentID: s.docID,
		Elements:   domain.CloneElements(s.elements),
		Focus:      s.focus,
		TS:         s.now(),
	}
}

func (s *Session) pushLocked(coalesce bool) {
	snap := s.currentLocked()
	snap.Coalesce = coalesce
	s.history.Push(snap)
}

func (s *Session) inRange(index int) bool { return index >= 0 && index < len(s.elements) }

func (s *Session) invalid(op string, index int) error {
	s.logger.Debug("ignored command", slog.String("op", op), slog.Int("index", index), slog.Int("len", len(s.elements)))
	return fmt.Errorf("%w: %s at index %d", domain.ErrInvalidOperation, op, index)
}
