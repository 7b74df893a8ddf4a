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
	"embed"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"screenwriter/internal/domain"
)

//go:embed schema/*.json
var schemaFS embed.FS

type compiledSchema struct {
	once   sync.Once
	name   string
	schema *gojsonschema.Schema
	err    error
}

func (c *compiledSchema) get() (*gojsonschema.Schema, error) {
	c.once.Do(func() {
		b, err := schemaFS.ReadFile("schema/" + c.name)
		if err != nil {
			c.err = err
			return
		}
		c.schema, c.err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	})
	return c.schema, c.err
}

var (
	elementsSchema = &compiledSchema{name: "elements.schema.json"}
	scriptSchema   = &compiledSchema{name: "script.schema.json"}
)

// ValidateElementsJSON checks a JSON element array against the embedded schema.
// Violations are reported as domain.ErrValidation.
func ValidateElementsJSON(data []byte) error { return validateWith(elementsSchema, data) }

// ValidateScriptJSON checks a script document file against the embedded schema.
func ValidateScriptJSON(data []byte) error { return validateWith(scriptSchema, data) }

func validateWith(c *compiledSchema, data []byte) error {
	s, err := c.get()
	if err != nil {
		return fmt.Errorf("load schema %s: %w", c.name, err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		// not JSON at all
		return domain.Invalid("malformed json: %v", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return domain.Invalid("%s", strings.Join(msgs, "; "))
}
