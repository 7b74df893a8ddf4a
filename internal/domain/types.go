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

import "time"

// This file defines the core data model structures for screenwriter.
// Scripts serialize to JSON with snake_case keys so the same shape is used by
// the database columns, the HTTP API and the file store.

// ElementType classifies a single screenplay line.
type ElementType string

const (
	SceneHeading  ElementType = "scene_heading"
	Character     ElementType = "character"
	Dialogue      ElementType = "dialogue"
	Parenthetical ElementType = "parenthetical"
	Transition    ElementType = "transition"
	Action        ElementType = "action"
)

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	switch t {
	case SceneHeading, Character, Dialogue, Parenthetical, Transition, Action:
		return true
	}
	return false
}

// ScriptElement is one line of a screenplay. Its position is its index in the
// owning slice; there is no position field.
type ScriptElement struct {
	ID      string      `json:"id"`
	Type    ElementType `json:"type"`
	Content string      `json:"content"`
}

// CloneElements returns a copy of els that shares no backing array with it.
// A nil input yields an empty, non-nil slice so it always encodes as [].
func CloneElements(els []ScriptElement) []ScriptElement {
	out := make([]ScriptElement, len(els))
	copy(out, els)
	return out
}

// Status is the editorial state shared by scripts and blog posts.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReview    Status = "review"
	StatusPublished Status = "published"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusReview || s == StatusPublished
}

// ScriptMetadata holds optional descriptive data for a script.
type ScriptMetadata struct {
	Author      string `json:"author,omitempty"`
	Genre       string `json:"genre,omitempty"`
	DraftNumber int    `json:"draft_number,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Script is a screenplay document and its elements.
type Script struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Logline   string          `json:"logline,omitempty"`
	Elements  []ScriptElement `json:"elements"`
	Status    Status          `json:"status"`
	Metadata  ScriptMetadata  `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ScriptCreate is the input for creating a script. Title is required.
type ScriptCreate struct {
	Title    string          `json:"title"`
	Logline  string          `json:"logline,omitempty"`
	Elements []ScriptElement `json:"elements,omitempty"`
	Metadata ScriptMetadata  `json:"metadata,omitempty"`
}

// ScriptUpdate carries only the fields a caller wants to change; nil means untouched.
type ScriptUpdate struct {
	Title    *string          `json:"title,omitempty"`
	Logline  *string          `json:"logline,omitempty"`
	Elements *[]ScriptElement `json:"elements,omitempty"`
	Status   *Status          `json:"status,omitempty"`
	Metadata *ScriptMetadata  `json:"metadata,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ScriptUpdate) Empty() bool {
	return u.Title == nil && u.Logline == nil && u.Elements == nil && u.Status == nil && u.Metadata == nil
}

// ScriptRevision is one entry of a script's element history.
type ScriptRevision struct {
	ScriptID string          `json:"script_id"`
	TS       time.Time       `json:"ts"`
	Elements []ScriptElement `json:"elements"`
}

// CharacterProfile is a cast member independent of any single script.
type CharacterProfile struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	PersonalityTraits []string  `json:"personality_traits"`
	VoiceNotes        string    `json:"voice_notes,omitempty"`
	AvatarURL         string    `json:"avatar_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// CharacterCreate is the input for creating a character. Name is required.
type CharacterCreate struct {
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	PersonalityTraits []string `json:"personality_traits,omitempty"`
	VoiceNotes        string   `json:"voice_notes,omitempty"`
	AvatarURL         string   `json:"avatar_url,omitempty"`
}

// CharacterUpdate carries optional character changes.
type CharacterUpdate struct {
	Name              *string   `json:"name,omitempty"`
	Description       *string   `json:"description,omitempty"`
	PersonalityTraits *[]string `json:"personality_traits,omitempty"`
	VoiceNotes        *string   `json:"voice_notes,omitempty"`
	AvatarURL         *string   `json:"avatar_url,omitempty"`
}

// SEOMetadata is attached to blog posts.
type SEOMetadata struct {
	MetaTitle       string   `json:"meta_title,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	OGImage         string   `json:"og_image,omitempty"`
}

// BlogPost is a markdown article, optionally derived from a script.
type BlogPost struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Slug           string      `json:"slug"`
	Content        string      `json:"content"`
	Excerpt        string      `json:"excerpt"`
	SEO            SEOMetadata `json:"seo_metadata"`
	Status         Status      `json:"status"`
	SourceScriptID string      `json:"source_script_id,omitempty"`
	PublishedAt    *time.Time  `json:"published_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// BlogPostCreate is the input for creating a post. Title is required; the slug
// is derived from the title when empty.
type BlogPostCreate struct {
	Title          string      `json:"title"`
	Slug           string      `json:"slug,omitempty"`
	Content        string      `json:"content,omitempty"`
	Excerpt        string      `json:"excerpt,omitempty"`
	SEO            SEOMetadata `json:"seo_metadata,omitempty"`
	Status         Status      `json:"status,omitempty"`
	SourceScriptID string      `json:"source_script_id,omitempty"`
}

// BlogPostUpdate carries optional post changes.
type BlogPostUpdate struct {
	Title   *string      `json:"title,omitempty"`
	Slug    *string      `json:"slug,omitempty"`
	Content *string      `json:"content,omitempty"`
	Excerpt *string      `json:"excerpt,omitempty"`
	SEO     *SEOMetadata `json:"seo_metadata,omitempty"`
	Status  *Status      `json:"status,omitempty"`
}
