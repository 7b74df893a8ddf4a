/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"screenwriter/internal/domain"
)

const characterColumns = `id, name, description, personality_traits, voice_notes, avatar_url, created_at`

func scanCharacter(row interface{ Scan(...any) error }) (domain.CharacterProfile, error) {
	var (
		c       domain.CharacterProfile
		created dbTime
	)
	c.PersonalityTraits = []string{}
	if err := row.Scan(&c.ID, &c.Name, &c.Description, jsonColumn{&c.PersonalityTraits}, &c.VoiceNotes, &c.AvatarURL, &created); err != nil {
		return domain.CharacterProfile{}, err
	}
	if c.PersonalityTraits == nil {
		c.PersonalityTraits = []string{}
	}
	c.CreatedAt = created.T
	return c, nil
}

func (s *Store) queryCharacters(ctx context.Context, q string, args ...any) ([]domain.CharacterProfile, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.CharacterProfile{}
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCharacters returns all characters by name.
func (s *Store) ListCharacters(ctx context.Context) ([]domain.CharacterProfile, error) {
	return s.queryCharacters(ctx, `SELECT `+characterColumns+` FROM characters ORDER BY name, id`)
}

// GetCharacter returns one character.
func (s *Store) GetCharacter(ctx context.Context, id string) (domain.CharacterProfile, error) {
	c, err := scanCharacter(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+characterColumns+` FROM characters WHERE id = ?`), id))
	if err != nil {
		return domain.CharacterProfile{}, notFound(err, "character", id)
	}
	return c, nil
}

// CreateCharacter inserts a character.
func (s *Store) CreateCharacter(ctx context.Context, in domain.CharacterCreate) (domain.CharacterProfile, error) {
	if err := in.Validate(); err != nil {
		return domain.CharacterProfile{}, err
	}
	c := domain.CharacterProfile{
		ID:                s.newID(),
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		PersonalityTraits: append([]string{}, in.PersonalityTraits...),
		VoiceNotes:        in.VoiceNotes,
		AvatarURL:         in.AvatarURL,
		CreatedAt:         s.now(),
	}
	traits, err := jsonArg(c.PersonalityTraits)
	if err != nil {
		return domain.CharacterProfile{}, err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO characters (`+characterColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.Name, c.Description, traits, c.VoiceNotes, c.AvatarURL, s.timeArg(c.CreatedAt))
	if err != nil {
		return domain.CharacterProfile{}, fmt.Errorf("insert character: %w", err)
	}
	return c, nil
}

// UpdateCharacter applies the non-nil fields of u.
func (s *Store) UpdateCharacter(ctx context.Context, id string, u domain.CharacterUpdate) (domain.CharacterProfile, error) {
	if err := u.Validate(); err != nil {
		return domain.CharacterProfile{}, err
	}
	var set setClause
	if u.Name != nil {
		set.add("name", strings.TrimSpace(*u.Name))
	}
	if u.Description != nil {
		set.add("description", *u.Description)
	}
	if u.PersonalityTraits != nil {
		traits, err := jsonArg(append([]string{}, (*u.PersonalityTraits)...))
		if err != nil {
			return domain.CharacterProfile{}, err
		}
		set.add("personality_traits", traits)
	}
	if u.VoiceNotes != nil {
		set.add("voice_notes", *u.VoiceNotes)
	}
	if u.AvatarURL != nil {
		set.add("avatar_url", *u.AvatarURL)
	}
	if set.empty() {
		return s.GetCharacter(ctx, id)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE characters SET `+set.sql()+` WHERE id = ?`), append(set.args, id)...)
	if err != nil {
		return domain.CharacterProfile{}, fmt.Errorf("update character: %w", err)
	}
	if err := affectedOne(res, "character", id); err != nil {
		return domain.CharacterProfile{}, err
	}
	return s.GetCharacter(ctx, id)
}

// DeleteCharacter removes a character and its script links.
func (s *Store) DeleteCharacter(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM script_characters WHERE character_id = ?`), id); err != nil {
			return fmt.Errorf("unlink character: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM characters WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete character: %w", err)
		}
		return affectedOne(res, "character", id)
	})
}

// LinkCharacter records that a character appears in a script. Linking twice is a no-op.
func (s *Store) LinkCharacter(ctx context.Context, scriptID, characterID string) error {
	if _, err := s.GetScript(ctx, scriptID); err != nil {
		return err
	}
	if _, err := s.GetCharacter(ctx, characterID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO script_characters (script_id, character_id) VALUES (?, ?) ON CONFLICT DO NOTHING`), scriptID, characterID)
	if err != nil {
		return fmt.Errorf("link character: %w", err)
	}
	return nil
}

// UnlinkCharacter removes a character from a script.
func (s *Store) UnlinkCharacter(ctx context.Context, scriptID, characterID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM script_characters WHERE script_id = ? AND character_id = ?`), scriptID, characterID)
	if err != nil {
		return fmt.Errorf("unlink character: %w", err)
	}
	return affectedOne(res, "character link", scriptID+"/"+characterID)
}

// ScriptCharacters lists the characters linked to a script.
func (s *Store) ScriptCharacters(ctx context.Context, scriptID string) ([]domain.CharacterProfile, error) {
	if _, err := s.GetScript(ctx, scriptID); err != nil {
		return nil, err
	}
	return s.queryCharacters(ctx, `SELECT c.id, c.name, c.description, c.personality_traits, c.voice_notes, c.avatar_url, c.created_at
		FROM characters c JOIN script_characters sc ON sc.character_id = c.id
		WHERE sc.script_id = ? ORDER BY c.name, c.id`, scriptID)
}
