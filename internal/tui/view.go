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
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"screenwriter/internal/domain"
)

const labelWidth = 7

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	labelStyle  = lipgloss.NewStyle().Width(labelWidth).Foreground(lipgloss.Color("241"))
	activeLabel = labelStyle.Foreground(lipgloss.Color("170")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1)
	errorStyle = statusStyle.Background(lipgloss.Color("160"))
)

var labels = map[domain.ElementType]string{
	domain.SceneHeading:  "SCENE",
	domain.Action:        "ACTION",
	domain.Character:     "CHAR",
	domain.Dialogue:      "DIAL",
	domain.Parenthetical: "PAREN",
	domain.Transition:    "TRANS",
}

// Indents are a terminal-sized version of the printed page columns.
var indents = map[domain.ElementType]uint{
	domain.Character:     16,
	domain.Parenthetical: 12,
	domain.Dialogue:      8,
	domain.Transition:    30,
}

const helpText = "tab type · enter new · ⌫ on empty delete · ↑/↓ move · ctrl+s save · ctrl+z/ctrl+r undo/redo · ctrl+e copy · esc quit"

func (m *Model) View() string {
	els := m.sess.Snapshot()
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	start, end := m.window(len(els))
	width := m.width - labelWidth
	if width <= 0 {
		width = 80
	}
	for i := start; i < end; i++ {
		el := els[i]
		pad := indents[el.Type]
		var body string
		label := labelStyle.Render(labels[el.Type])
		if i == m.focus {
			label = activeLabel.Render(labels[el.Type])
			body = strings.Repeat(" ", int(pad)) + m.input.View()
		} else {
			wrap := max(10, width-int(pad))
			body = indent.String(wordwrap.String(el.Content, wrap), pad)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, label, body))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(helpText))
	b.WriteString("\n")
	b.WriteString(m.statusBar(els))
	return b.String()
}

// window returns the element range that fits the terminal, keeping focus visible.
func (m *Model) window(n int) (int, int) {
	rows := m.height - 5
	if m.height == 0 || rows >= n {
		return 0, n
	}
	rows = max(1, rows)
	start := max(0, m.focus-rows/2)
	end := min(n, start+rows)
	return max(0, end-rows), end
}

func (m *Model) statusBar(els []domain.ScriptElement) string {
	state := "saved"
	switch {
	case m.saving:
		state = "saving"
	case m.sess.Dirty():
		state = "modified"
	}
	typ := domain.ElementType("")
	if m.focus >= 0 && m.focus < len(els) {
		typ = els[m.focus].Type
	}
	parts := []string{state, fmt.Sprintf("%d/%d %s", m.focus+1, len(els), labels[typ])}
	if !m.lastSaved.IsZero() {
		parts = append(parts, "last save "+m.lastSaved.Format("15:04:05"))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	style := statusStyle
	if m.statusErr {
		style = errorStyle
	}
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(strings.Join(parts, " │ "))
}
