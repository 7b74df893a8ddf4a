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
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"screenwriter/internal/domain"
)

// layout describes where an element type sits on a plain-text page.
type layout struct {
	indent uint
	width  int
}

// Page columns follow the usual 60-column screenplay body.
var layouts = map[domain.ElementType]layout{
	domain.SceneHeading:  {indent: 0, width: 60},
	domain.Action:        {indent: 0, width: 60},
	domain.Character:     {indent: 22, width: 38},
	domain.Parenthetical: {indent: 16, width: 28},
	domain.Dialogue:      {indent: 10, width: 35},
	domain.Transition:    {indent: 45, width: 15},
}

// joinsPrevious reports whether t continues a dialogue block without a blank line.
func joinsPrevious(t, prev domain.ElementType) bool {
	switch t {
	case domain.Dialogue, domain.Parenthetical:
		return prev == domain.Character || prev == domain.Parenthetical || prev == domain.Dialogue
	}
	return false
}

// RenderText lays elements out as an indented plain-text screenplay.
func RenderText(elements []domain.ScriptElement) string {
	var b strings.Builder
	var prev domain.ElementType
	for i, el := range elements {
		if i > 0 {
			b.WriteString("\n")
			if !joinsPrevious(el.Type, prev) {
				b.WriteString("\n")
			}
		}
		l, ok := layouts[el.Type]
		if !ok {
			l = layouts[domain.Action]
		}
		text := wordwrap.String(strings.TrimSpace(el.Content), l.width)
		b.WriteString(indent.String(text, l.indent))
		prev = el.Type
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "#", `\#`, "<", "&lt;", ">", "&gt;",
)

// RenderMarkdown renders elements as markdown suitable for a blog post body.
// Cues, parentheticals and dialogue are grouped into one block quote per speech.
func RenderMarkdown(elements []domain.ScriptElement) string {
	var blocks []string
	var speech []string
	flush := func() {
		if len(speech) > 0 {
			blocks = append(blocks, "> "+strings.Join(speech, "\n>\n> "))
			speech = nil
		}
	}
	for _, el := range elements {
		text := mdEscaper.Replace(strings.TrimSpace(el.Content))
		if text == "" {
			continue
		}
		switch el.Type {
		case domain.SceneHeading:
			flush()
			blocks = append(blocks, "### "+text)
		case domain.Character:
			flush()
			speech = append(speech, "**"+text+"**")
		case domain.Parenthetical:
			speech = append(speech, "*"+text+"*")
		case domain.Dialogue:
			speech = append(speech, text)
		case domain.Transition:
			flush()
			blocks = append(blocks, "**"+text+"**")
		default:
			flush()
			blocks = append(blocks, text)
		}
	}
	flush()
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}
