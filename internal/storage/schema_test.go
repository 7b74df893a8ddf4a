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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"screenwriter/internal/domain"
)

func TestValidateElementsJSON(t *testing.T) {
	good, _ := json.Marshal(sampleElements())
	if err := ValidateElementsJSON(good); err != nil {
		t.Fatalf("valid elements rejected: %v", err)
	}
	cases := map[string]string{
		"not an array":  `{"id":"a"}`,
		"missing id":    `[{"type":"action","content":"x"}]`,
		"unknown type":  `[{"id":"a","type":"montage","content":"x"}]`,
		"extra field":   `[{"id":"a","type":"action","content":"x","position":3}]`,
		"malformed":     `[{"id":`,
		"content type":  `[{"id":"a","type":"action","content":5}]`,
		"empty id":      `[{"id":"","type":"action","content":"x"}]`,
		"null elements": `null`,
	}
	for name, in := range cases {
		if err := ValidateElementsJSON([]byte(in)); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestValidateScriptJSON(t *testing.T) {
	sc := domain.Script{
		ID:        "s1",
		Title:     "Night Shift",
		Elements:  sampleElements(),
		Status:    domain.StatusReview,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	b, _ := json.Marshal(sc)
	if err := ValidateScriptJSON(b); err != nil {
		t.Fatalf("valid script rejected: %v", err)
	}
	sc.Status = "archived"
	b, _ = json.Marshal(sc)
	if err := ValidateScriptJSON(b); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad status: %v", err)
	}
}
