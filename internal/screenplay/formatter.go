/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package screenplay classifies raw editor lines into screenplay element types
// and normalizes their casing. Everything here is pure: no I/O, no shared state.
package screenplay

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"screenwriter/internal/domain"
)

// MaxCharacterCueLen is the longest trimmed line (in runes) still considered a character cue.
const MaxCharacterCueLen = 30

// ElementCycle is the order in which an explicit retype steps through element types.
var ElementCycle = []domain.ElementType{
	domain.SceneHeading,
	domain.Action,
	domain.Character,
	domain.Dialogue,
	domain.Parenthetical,
	domain.Transition,
}

var (
	reSceneHeading = regexp.MustCompile(`(?i)^(?:INT\./EXT\.|INT/EXT\.|I/E\.|INT\.|EXT\.)`)
	// A cue is uppercase letters with inner spaces, dots, apostrophes or hyphens,
	// ending on a letter, optionally followed by a voice extension.
	reCharacterCue = regexp.MustCompile(`^\p{Lu}(?:[\p{Lu} .'\-]*\p{Lu})?(?:\s*\((?:V\.O\.|O\.S\.|O\.C\.|CONT'D)\))?$`)
	reTransitionTo = regexp.MustCompile(`(?i)TO:$`)
	// FADE or CUT alone or followed by IN, OUT or TO; "Cut the onions." stays action.
	reTransitionOp = regexp.MustCompile(`(?i)^(?:FADE|CUT)(?:\s+(?:IN|OUT|TO)\b.*|\s*[.:]?)$`)
)

// AutoFormatLine decides the element type of content given the element before it
// (nil at the top of the document) and returns the content normalized for that type.
// Rules are tried in order and the first match wins:
//
//  1. scene heading prefix (INT., EXT., INT./EXT., INT/EXT., I/E.), any case
//  2. any non-empty line after a character cue or parenthetical is dialogue,
//     whitespace-only included
//  3. short uppercase name after action, dialogue or nothing is a character cue
//  4. text wrapped in parentheses is a parenthetical
//  5. "... TO:" or FADE/CUT followed by IN, OUT, TO or nothing, any case, is a transition
//  6. anything else, including empty and other blank lines, is action
func AutoFormatLine(content string, previous *domain.ScriptElement) (string, domain.ElementType) {
	t := Classify(content, previous)
	return FormatText(content, t), t
}

// Classify returns only the element type AutoFormatLine would pick.
func Classify(content string, previous *domain.ScriptElement) domain.ElementType {
	if content == "" {
		return domain.Action
	}
	trimmed := strings.TrimSpace(content)
	if reSceneHeading.MatchString(trimmed) {
		return domain.SceneHeading
	}
	var prev domain.ElementType
	if previous != nil {
		prev = previous.Type
	}
	if prev == domain.Character || prev == domain.Parenthetical {
		return domain.Dialogue
	}
	if trimmed == "" {
		return domain.Action
	}
	if isCharacterCue(trimmed) && (previous == nil || prev == domain.Action || prev == domain.Dialogue) {
		return domain.Character
	}
	if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
		return domain.Parenthetical
	}
	if reTransitionTo.MatchString(trimmed) || reTransitionOp.MatchString(trimmed) {
		return domain.Transition
	}
	return domain.Action
}

func isCharacterCue(trimmed string) bool {
	return utf8.RuneCountInString(trimmed) <= MaxCharacterCueLen && reCharacterCue.MatchString(trimmed)
}

// FormatText applies the casing rule of t to content: scene headings, character
// cues and transitions are uppercased, every other type keeps its casing.
// FormatText(FormatText(s, t), t) == FormatText(s, t).
func FormatText(content string, t domain.ElementType) string {
	if !uppercased(t) {
		return content
	}
	// A Caser keeps state and is not safe for concurrent use.
	return cases.Upper(language.Und).String(content)
}

func uppercased(t domain.ElementType) bool {
	switch t {
	case domain.SceneHeading, domain.Character, domain.Transition:
		return true
	}
	return false
}

// NextType returns the type after t in ElementCycle, wrapping around.
// Types outside the cycle advance to its first entry.
func NextType(t domain.ElementType) domain.ElementType {
	for i, c := range ElementCycle {
		if c == t {
			return ElementCycle[(i+1)%len(ElementCycle)]
		}
	}
	return ElementCycle[0]
}
