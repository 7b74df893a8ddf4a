/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxTitleLen bounds script and blog post titles.
const MaxTitleLen = 200

// ValidateElements checks that every element has a non-empty unique id and a known type.
func ValidateElements(els []ScriptElement) error {
	seen := make(map[string]int, len(els))
	for i, el := range els {
		if strings.TrimSpace(el.ID) == "" {
			return Invalid("element %d: id is required", i)
		}
		if j, dup := seen[el.ID]; dup {
			return Invalid("element %d: id %q already used by element %d", i, el.ID, j)
		}
		seen[el.ID] = i
		if !el.Type.Valid() {
			return Invalid("element %d: unknown type %q", i, el.Type)
		}
	}
	return nil
}

func validateTitle(title string) error {
	t := strings.TrimSpace(title)
	if t == "" {
		return Invalid("title is required")
	}
	if len([]rune(t)) > MaxTitleLen {
		return Invalid("title longer than %d characters", MaxTitleLen)
	}
	return nil
}

// Validate checks a script creation request.
func (c ScriptCreate) Validate() error {
	if err := validateTitle(c.Title); err != nil {
		return err
	}
	return ValidateElements(c.Elements)
}

// Validate checks the fields present in a script update.
func (u ScriptUpdate) Validate() error {
	if u.Title != nil {
		if err := validateTitle(*u.Title); err != nil {
			return err
		}
	}
	if u.Status != nil && !u.Status.Valid() {
		return Invalid("unknown status %q", *u.Status)
	}
	if u.Elements != nil {
		return ValidateElements(*u.Elements)
	}
	return nil
}

// Validate checks a character creation request.
func (c CharacterCreate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("name is required")
	}
	return nil
}

// Validate checks the fields present in a character update.
func (u CharacterUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return Invalid("name must not be empty")
	}
	return nil
}

// Validate checks a blog post creation request.
func (c BlogPostCreate) Validate() error {
	if err := validateTitle(c.Title); err != nil {
		return err
	}
	if c.Status != "" && !c.Status.Valid() {
		return Invalid("unknown status %q", c.Status)
	}
	if c.Slug != "" && Slugify(c.Slug) != c.Slug {
		return Invalid("slug %q is not normalized", c.Slug)
	}
	return nil
}

// Validate checks the fields present in a blog post update.
func (u BlogPostUpdate) Validate() error {
	if u.Title != nil {
		if err := validateTitle(*u.Title); err != nil {
			return err
		}
	}
	if u.Status != nil && !u.Status.Valid() {
		return Invalid("unknown status %q", *u.Status)
	}
	if u.Slug != nil && (*u.Slug == "" || Slugify(*u.Slug) != *u.Slug) {
		return Invalid("slug %q is not normalized", *u.Slug)
	}
	return nil
}

// Slugify lowercases s, strips diacritics and joins alphanumeric runs with hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
