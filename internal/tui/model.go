/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package tui is the terminal editor: one line input per screenplay element,
// keys routed to editor.Session commands and save outcomes shown in a status bar.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"screenwriter/internal/autosave"
	"screenwriter/internal/domain"
	"screenwriter/internal/editor"
	applog "screenwriter/internal/log"
	"screenwriter/internal/screenplay"
)

// DefaultStatusTimeout is how long an informational status stays visible.
const DefaultStatusTimeout = 3 * time.Second

// StatusMsg shows a transient message in the status bar.
type StatusMsg string

type clearStatusMsg struct{ seq int }

type saveResultMsg autosave.Result

// Options configure a Model. Only the session is required.
type Options struct {
	Title         string
	Coordinator   *autosave.Coordinator
	Clipboard     func(string) error
	StatusTimeout time.Duration
	Logger        *slog.Logger
}

// Model is the bubbletea model of one editing session.
type Model struct {
	sess   *editor.Session
	coord  *autosave.Coordinator
	copyFn func(string) error
	logger *slog.Logger
	title  string

	input  textinput.Model
	focus  int
	width  int
	height int

	status    string
	statusErr bool
	statusSeq int
	statusTTL time.Duration
	saving    bool
	lastSaved time.Time

	results chan autosave.Result
	done    chan struct{}
	closed  bool
}

// New builds the editor view over sess and registers itself as the session's focus mover.
func New(sess *editor.Session, opts Options) *Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "…"
	m := &Model{
		sess:      sess,
		coord:     opts.Coordinator,
		copyFn:    opts.Clipboard,
		logger:    opts.Logger,
		title:     opts.Title,
		input:     in,
		statusTTL: opts.StatusTimeout,
		results:   make(chan autosave.Result, 8),
		done:      make(chan struct{}),
	}
	if m.copyFn == nil {
		m.copyFn = clipboard.WriteAll
	}
	if m.logger == nil {
		m.logger = applog.WithComponent("tui")
	}
	if m.statusTTL <= 0 {
		m.statusTTL = DefaultStatusTimeout
	}
	if m.title == "" {
		m.title = sess.DocumentID()
	}
	m.input.Focus()
	sess.SetFocusMover(m)
	m.focus = sess.FocusIndex()
	m.syncInput(false)
	return m
}

// SetCoordinator attaches the autosave coordinator used by the save key.
// The coordinator is usually built after the model so it can observe into OnSaveResult.
func (m *Model) SetCoordinator(c *autosave.Coordinator) { m.coord = c }

// OnSaveResult is an autosave observer. It never blocks the save loop.
func (m *Model) OnSaveResult(r autosave.Result) {
	select {
	case m.results <- r:
	default:
		m.logger.Warn("save result dropped; ui is behind", slog.String("trigger", string(r.Trigger)))
	}
}

// FocusElement moves the input to the element at index.
func (m *Model) FocusElement(index int) {
	m.focus = index
	m.syncInput(false)
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForSave())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(0, m.width-labelWidth-1)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StatusMsg:
		return m, m.setStatus(string(msg), false)

	case clearStatusMsg:
		if msg.seq == m.statusSeq && !m.statusErr {
			m.status = ""
		}
		return m, nil

	case saveResultMsg:
		return m, tea.Batch(m.handleSave(autosave.Result(msg)), m.waitForSave())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch msg.String() {
	case "esc", "ctrl+c":
		m.close()
		return m, tea.Quit
	case "tab":
		err = m.sess.CycleType(m.focus)
	case "enter":
		err = m.sess.Split(m.focus)
	case "up":
		err = m.sess.Focus(m.focus - 1)
	case "down":
		err = m.sess.Focus(m.focus + 1)
	case "ctrl+n":
		err = m.sess.AppendNew()
	case "ctrl+z":
		if err = m.sess.Undo(); errors.Is(err, domain.ErrInvalidOperation) {
			m.refresh()
			return m, m.setStatus("Nothing to undo", false)
		}
	case "ctrl+r":
		if err = m.sess.Redo(); errors.Is(err, domain.ErrInvalidOperation) {
			m.refresh()
			return m, m.setStatus("Nothing to redo", false)
		}
	case "ctrl+s":
		return m, m.saveNow()
	case "ctrl+e":
		return m, m.copyScript()
	case "backspace":
		if m.input.Value() != "" {
			return m, m.edit(msg)
		}
		err = m.sess.DeleteMerge(m.focus)
	default:
		return m, m.edit(msg)
	}
	if err != nil && !errors.Is(err, domain.ErrInvalidOperation) {
		m.logger.Error("command failed", slog.String("key", msg.String()), slog.Any("error", err))
	}
	m.refresh()
	return m, nil
}

// edit forwards a key to the input and reclassifies the element when its text changed.
func (m *Model) edit(msg tea.KeyMsg) tea.Cmd {
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	after := m.input.Value()
	if after == before {
		return cmd
	}
	if err := m.sess.ContentChanged(m.focus, after); err != nil {
		m.logger.Debug("content change ignored", slog.Any("error", err))
	}
	m.syncInput(true)
	return cmd
}

// refresh re-reads the focus index from the session and reloads the input.
func (m *Model) refresh() {
	if f := m.sess.FocusIndex(); f != m.focus {
		m.focus = f
		m.syncInput(false)
		return
	}
	m.syncInput(true)
}

func (m *Model) syncInput(keepCursor bool) {
	el, ok := m.sess.Element(m.focus)
	if !ok {
		return
	}
	pos := m.input.Position()
	m.input.SetValue(el.Content)
	if keepCursor {
		m.input.SetCursor(min(pos, len([]rune(el.Content))))
	} else {
		m.input.CursorEnd()
	}
}

func (m *Model) saveNow() tea.Cmd {
	if m.coord == nil {
		return m.setStatus("Saving is not configured", true)
	}
	if !m.coord.SaveNow() {
		return m.setStatus("Save already queued", false)
	}
	m.saving = true
	return m.setStatus("Saving…", false)
}

func (m *Model) handleSave(r autosave.Result) tea.Cmd {
	m.saving = m.coord != nil && m.coord.Saving()
	if r.Err != nil {
		m.logger.Warn("save failed", slog.String("trigger", string(r.Trigger)), slog.Any("error", r.Err))
		return m.setStatus(fmt.Sprintf("Save failed: %v", r.Err), true)
	}
	m.lastSaved = r.Finished
	if r.Trigger == autosave.TriggerManual || m.statusErr {
		return m.setStatus(fmt.Sprintf("Saved %d elements", r.Elements), false)
	}
	return nil
}

func (m *Model) copyScript() tea.Cmd {
	text := screenplay.RenderText(m.sess.Snapshot())
	copyFn := m.copyFn
	return func() tea.Msg {
		if err := copyFn(text); err != nil {
			return StatusMsg("Copy failed: " + err.Error())
		}
		return StatusMsg("Copied script to clipboard")
	}
}

// setStatus shows text. Errors stay until the next successful save;
// anything else clears itself after the status timeout.
func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.status = text
	m.statusErr = isErr
	if isErr {
		return nil
	}
	seq := m.statusSeq
	return tea.Tick(m.statusTTL, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })
}

func (m *Model) waitForSave() tea.Cmd {
	results, done := m.results, m.done
	return func() tea.Msg {
		select {
		case r := <-results:
			return saveResultMsg(r)
		case <-done:
			return nil
		}
	}
}

func (m *Model) close() {
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

// Run shows m full screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, m *Model, opts ...tea.ProgramOption) error {
	defer m.close()
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run editor: %w", err)
	}
	return nil
}
