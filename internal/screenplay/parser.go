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
	"bufio"
	"strings"

	"github.com/google/uuid"

	"screenwriter/internal/domain"
)

// ParseText turns a plain-text screenplay into elements, one per non-blank line,
// classified with AutoFormatLine. A blank line clears the preceding-element
// context, so a cue-like line after a blank is judged as if it opened the document.
// newID supplies element ids; nil means random UUIDs.
func ParseText(text string, newID func() string) []domain.ScriptElement {
	if newID == nil {
		newID = uuid.NewString
	}
	out := []domain.ScriptElement{}
	var prev *domain.ScriptElement

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimRight(scanner.Text(), "\r"))
		if line == "" {
			prev = nil
			continue
		}
		content, t := AutoFormatLine(line, prev)
		out = append(out, domain.ScriptElement{ID: newID(), Type: t, Content: content})
		prev = &out[len(out)-1]
	}
	return out
}
