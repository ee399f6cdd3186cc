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

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyRecordID indicates the record ID is empty.
	ErrEmptyRecordID = errors.New("record id cannot be empty")

	// ErrEmptyRecordName indicates the record name is empty.
	ErrEmptyRecordName = errors.New("record name cannot be empty")

	// ErrInvalidLabel indicates a label failed validation.
	ErrInvalidLabel = errors.New("invalid label")

	// ErrEmptyLabel indicates a label is empty or whitespace only.
	ErrEmptyLabel = errors.New("label cannot be empty")

	// ErrInvalidTemplate indicates a Template failed validation.
	ErrInvalidTemplate = errors.New("invalid template")

	// ErrScoreOutOfRange indicates a judge score outside [0,100].
	ErrScoreOutOfRange = errors.New("score must be between 0 and 100")
)
