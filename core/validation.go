// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Name must not be empty or whitespace only
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyRecordID)
	}

	if strings.TrimSpace(record.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyRecordName)
	}

	return nil
}

// ValidateLabel checks a single stored label.
// Labels are free text but must contain a non-space character.
func ValidateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidLabel, ErrEmptyLabel)
	}
	return nil
}

// ValidateScore checks that a judge score lies within [0,100].
func ValidateScore(score float64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: got %v", ErrScoreOutOfRange, score)
	}
	return nil
}

// ValidateTemplate validates a Template according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Text must contain the given slot placeholder, e.g. "{food_name}"
//   - Version must not be negative
func ValidateTemplate(tmpl *Template, slot string) error {
	if tmpl == nil {
		return fmt.Errorf("%w: template is nil", ErrInvalidTemplate)
	}
	if strings.TrimSpace(tmpl.Text) == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidTemplate)
	}
	if slot != "" && !strings.Contains(tmpl.Text, "{"+slot+"}") {
		return fmt.Errorf("%w: missing {%s} slot", ErrInvalidTemplate, slot)
	}
	if tmpl.Version < 0 {
		return fmt.Errorf("%w: negative version %d", ErrInvalidTemplate, tmpl.Version)
	}
	return nil
}
