/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenwriter/internal/autosave"
	"screenwriter/internal/domain"
	"screenwriter/internal/editor"
)

func newModel(t *testing.T, opts Options) (*Model, *editor.Session) {
	t.Helper()
	n := 0
	sess := editor.New("doc-1", nil, editor.Options{NewID: func() string {
		n++
		return "el-" + string(rune('a'+n))
	}})
	return New(sess, opts), sess
}

func press(m *Model, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func types(sess *editor.Session) []domain.ElementType {
	var out []domain.ElementType
	for _, el := range sess.Snapshot() {
		out = append(out, el.Type)
	}
	return out
}

func TestTypingFlowClassifiesLines(t *testing.T) {
	m, sess := newModel(t, Options{})

	typeText(m, "int. kitchen - night")
	assert.Equal(t, "INT. KITCHEN - NIGHT", m.input.Value())
	press(m, tea.KeyEnter)
	typeText(m, "Rain.")
	press(m, tea.KeyEnter)
	typeText(m, "MAYA")
	press(m, tea.KeyEnter)
	typeText(m, "Hello.")

	assert.Equal(t, []domain.ElementType{
		domain.SceneHeading, domain.Action, domain.Character, domain.Dialogue,
	}, types(sess))
	assert.Equal(t, 3, m.focus)
	assert.Equal(t, "Hello.", m.input.Value())
	assert.True(t, sess.Dirty())
}

func TestBackspaceOnEmptyDeletes(t *testing.T) {
	m, sess := newModel(t, Options{})
	typeText(m, "Rain.")
	press(m, tea.KeyEnter)
	require.Equal(t, 2, sess.Len())
	require.Equal(t, 1, m.focus)

	press(m, tea.KeyBackspace)
	assert.Equal(t, 1, sess.Len())
	assert.Equal(t, 0, m.focus)
	assert.Equal(t, "Rain.", m.input.Value())

	// With text, backspace edits instead of deleting.
	press(m, tea.KeyBackspace)
	assert.Equal(t, 1, sess.Len())
	assert.Equal(t, "Rain", m.input.Value())

	// The only element is never deleted.
	press(m, tea.KeyBackspace)
	press(m, tea.KeyBackspace)
	press(m, tea.KeyBackspace)
	press(m, tea.KeyBackspace)
	require.Equal(t, "", m.input.Value())
	press(m, tea.KeyBackspace)
	assert.Equal(t, 1, sess.Len())
}

func TestTabCyclesTypeWithUndoRedo(t *testing.T) {
	m, sess := newModel(t, Options{})
	typeText(m, "MAYA")
	press(m, tea.KeyEnter)
	typeText(m, "Hello.")
	el, _ := sess.Element(1)
	require.Equal(t, domain.Dialogue, el.Type)

	press(m, tea.KeyTab)
	el, _ = sess.Element(1)
	assert.Equal(t, domain.Parenthetical, el.Type)
	assert.Equal(t, "Hello.", m.input.Value())

	press(m, tea.KeyCtrlZ)
	el, _ = sess.Element(1)
	assert.Equal(t, domain.Dialogue, el.Type)

	press(m, tea.KeyCtrlR)
	el, _ = sess.Element(1)
	assert.Equal(t, domain.Parenthetical, el.Type)

	press(m, tea.KeyCtrlR)
	assert.Equal(t, "Nothing to redo", m.status)
}

func TestArrowsMoveFocus(t *testing.T) {
	m, sess := newModel(t, Options{})
	typeText(m, "EXT. ROOF - DAY")
	press(m, tea.KeyCtrlN)
	typeText(m, "Wind.")
	require.Equal(t, 1, m.focus)

	press(m, tea.KeyUp)
	assert.Equal(t, 0, m.focus)
	assert.Equal(t, 0, sess.FocusIndex())
	assert.Equal(t, "EXT. ROOF - DAY", m.input.Value())

	press(m, tea.KeyUp)
	assert.Equal(t, 0, m.focus)

	press(m, tea.KeyDown)
	assert.Equal(t, 1, m.focus)
	assert.Equal(t, "Wind.", m.input.Value())
}

func TestCopyRendersScript(t *testing.T) {
	var copied string
	m, _ := newModel(t, Options{Clipboard: func(s string) error {
		copied = s
		return nil
	}})
	typeText(m, "int. hall - day")

	cmd := press(m, tea.KeyCtrlE)
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, StatusMsg("Copied script to clipboard"), msg)
	assert.Equal(t, "INT. HALL - DAY\n", copied)

	m.Update(msg)
	assert.Equal(t, "Copied script to clipboard", m.status)
}

func TestCopyFailureShowsStatus(t *testing.T) {
	m, _ := newModel(t, Options{Clipboard: func(string) error { return errors.New("no display") }})
	msg := press(m, tea.KeyCtrlE)()
	assert.Equal(t, StatusMsg("Copy failed: no display"), msg)
}

func TestStatusClearsOnlyForLatestMessage(t *testing.T) {
	m, _ := newModel(t, Options{})
	m.Update(StatusMsg("first"))
	first := m.statusSeq
	m.Update(StatusMsg("second"))

	m.Update(clearStatusMsg{seq: first})
	assert.Equal(t, "second", m.status)
	m.Update(clearStatusMsg{seq: m.statusSeq})
	assert.Empty(t, m.status)
}

type fakeSaver struct {
	mu    sync.Mutex
	err   error
	saved [][]domain.ScriptElement
}

func (f *fakeSaver) SaveElements(_ context.Context, _ string, els []domain.ScriptElement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, els)
	return nil
}

func startCoordinator(t *testing.T, m *Model, sess *editor.Session, saver autosave.Saver) {
	t.Helper()
	c := autosave.New(sess, saver, autosave.Config{}, autosave.WithObserver(m.OnSaveResult))
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)
	m.SetCoordinator(c)
}

func nextSave(t *testing.T, m *Model) tea.Msg {
	t.Helper()
	ch := make(chan tea.Msg, 1)
	go func() { ch <- m.waitForSave()() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no save result")
		return nil
	}
}

func TestSaveKeySavesNow(t *testing.T) {
	m, sess := newModel(t, Options{})
	saver := &fakeSaver{}
	startCoordinator(t, m, sess, saver)
	typeText(m, "Rain.")

	press(m, tea.KeyCtrlS)
	assert.Equal(t, "Saving…", m.status)

	m.Update(nextSave(t, m))
	assert.Equal(t, "Saved 1 elements", m.status)
	assert.False(t, m.statusErr)
	assert.False(t, sess.Dirty())
	saver.mu.Lock()
	require.Len(t, saver.saved, 1)
	assert.Equal(t, "Rain.", saver.saved[0][0].Content)
	saver.mu.Unlock()
}

func TestSaveFailureStaysVisibleAndEditingContinues(t *testing.T) {
	m, sess := newModel(t, Options{})
	saver := &fakeSaver{err: errors.New("disk full")}
	startCoordinator(t, m, sess, saver)
	typeText(m, "Rain.")

	press(m, tea.KeyCtrlS)
	m.Update(nextSave(t, m))
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "Save failed")
	assert.Contains(t, m.status, "disk full")

	typeText(m, " More.")
	assert.Equal(t, "Rain. More.", m.input.Value())
	assert.True(t, m.statusErr)
	assert.Contains(t, m.View(), "Save failed")

	saver.mu.Lock()
	saver.err = nil
	saver.mu.Unlock()
	press(m, tea.KeyCtrlS)
	m.Update(nextSave(t, m))
	assert.False(t, m.statusErr)
	assert.Equal(t, "Saved 1 elements", m.status)
}

func TestSaveWithoutCoordinator(t *testing.T) {
	m, _ := newModel(t, Options{})
	press(m, tea.KeyCtrlS)
	assert.True(t, m.statusErr)
	assert.Equal(t, "Saving is not configured", m.status)
}

func TestEscQuits(t *testing.T) {
	m, _ := newModel(t, Options{})
	cmd := press(m, tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Nil(t, m.waitForSave()())
}

func TestViewShowsElements(t *testing.T) {
	m, _ := newModel(t, Options{Title: "Kettle"})
	typeText(m, "int. kitchen - night")
	press(m, tea.KeyEnter)
	typeText(m, "MAYA")
	press(m, tea.KeyEnter)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	v := m.View()
	assert.Contains(t, v, "Kettle")
	assert.Contains(t, v, "INT. KITCHEN - NIGHT")
	assert.Contains(t, v, "MAYA")
	assert.Contains(t, v, "SCENE")
	assert.Contains(t, v, "3/3")
	assert.Contains(t, v, "modified")
}

func TestWindowKeepsFocusVisible(t *testing.T) {
	m, _ := newModel(t, Options{})
	m.height = 10
	m.focus = 40
	start, end := m.window(50)
	assert.Equal(t, 5, end-start)
	assert.True(t, start <= 40 && 40 < end)

	m.focus = 49
	start, end = m.window(50)
	assert.Equal(t, 50, end)
	assert.Equal(t, 45, start)

	m.height = 0
	start, end = m.window(3)
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)
}
