/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package screenplay

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenwriter/internal/domain"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
}

const sample = `int. kitchen - day

Jane pours coffee.

JANE
(yawning)
Morning already?

cut to:
`

func TestParseText(t *testing.T) {
	els := ParseText(sample, seqIDs())
	require.Len(t, els, 6)

	want := []domain.ScriptElement{
		{ID: "e1", Type: domain.SceneHeading, Content: "INT. KITCHEN - DAY"},
		{ID: "e2", Type: domain.Action, Content: "Jane pours coffee."},
		{ID: "e3", Type: domain.Character, Content: "JANE"},
		{ID: "e4", Type: domain.Dialogue, Content: "(yawning)"},
		// Only the line directly after a cue or parenthetical is dialogue.
		{ID: "e5", Type: domain.Action, Content: "Morning already?"},
		{ID: "e6", Type: domain.Transition, Content: "CUT TO:"},
	}
	assert.Equal(t, want, els)
}

func TestParseTextEmptyAndDefaultIDs(t *testing.T) {
	els := ParseText("\n\n  \n", nil)
	require.NotNil(t, els)
	assert.Empty(t, els)

	els = ParseText("She runs.\r\nHe follows.\r\n", nil)
	require.Len(t, els, 2)
	assert.NotEqual(t, els[0].ID, els[1].ID)
	assert.Len(t, els[0].ID, 36)
	assert.Equal(t, "She runs.", els[0].Content)
}

func TestRenderText(t *testing.T) {
	els := []domain.ScriptElement{
		{ID: "1", Type: domain.SceneHeading, Content: "INT. KITCHEN - DAY"},
		{ID: "2", Type: domain.Character, Content: "JANE"},
		{ID: "3", Type: domain.Parenthetical, Content: "(yawning)"},
		{ID: "4", Type: domain.Dialogue, Content: "Morning already?"},
		{ID: "5", Type: domain.Transition, Content: "CUT TO:"},
	}
	out := RenderText(els)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "INT. KITCHEN - DAY", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, strings.Repeat(" ", 22)+"JANE", lines[2])
	assert.Equal(t, strings.Repeat(" ", 16)+"(yawning)", lines[3])
	assert.Equal(t, strings.Repeat(" ", 10)+"Morning already?", lines[4])
	assert.Equal(t, "", lines[5])
	assert.Equal(t, strings.Repeat(" ", 45)+"CUT TO:", lines[6])
	assert.Equal(t, "", RenderText(nil))
}

func TestRenderTextWrapsDialogue(t *testing.T) {
	long := strings.Repeat("word ", 20)
	out := RenderText([]domain.ScriptElement{{Type: domain.Dialogue, Content: long}})
	for _, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		assert.LessOrEqual(t, len(strings.TrimSpace(l)), 35)
		assert.True(t, strings.HasPrefix(l, strings.Repeat(" ", 10)), "line %q", l)
	}
}

func TestRenderMarkdown(t *testing.T) {
	els := []domain.ScriptElement{
		{Type: domain.SceneHeading, Content: "INT. KITCHEN - DAY"},
		{Type: domain.Action, Content: "Jane pours *hot* coffee."},
		{Type: domain.Character, Content: "JANE"},
		{Type: domain.Parenthetical, Content: "(yawning)"},
		{Type: domain.Dialogue, Content: "Morning already?"},
		{Type: domain.Action, Content: ""},
		{Type: domain.Transition, Content: "CUT TO:"},
	}
	want := "### INT. KITCHEN - DAY\n\n" +
		"Jane pours \\*hot\\* coffee.\n\n" +
		"> **JANE**\n>\n> *(yawning)*\n>\n> Morning already?\n\n" +
		"**CUT TO:**\n"
	assert.Equal(t, want, RenderMarkdown(els))
	assert.Equal(t, "", RenderMarkdown(nil))
}
