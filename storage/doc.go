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


// Package storage provides the storage abstraction layer for tagger.
//
// This package defines repository interfaces that decouple the labelling loop
// from the store that holds the catalog, the tags and the instruction template.
// Implementations live in subpackages:
//
//   - badger: embedded key/value store, the default for runs
//   - sqlite: relational store with food_info, food_tag and food_info_tag tables
//   - file: template kept in a markdown file with YAML frontmatter
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - CatalogRepository: ordered, read-mostly list of records to label
//   - TagRepository: get-or-create tags and idempotent record links
//   - TemplateRepository: single durable instruction template slot
//   - CheckpointRepository: run progress for restarts
//
// # Usage
//
// Open a badger store and use it for every repository:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	catalog := badger.NewCatalogRepository(backend)
//	tags := badger.NewTagRepository(backend)
//
// Use in tests with in-memory storage:
//
//	catalog, tags, backend, err := badger.NewMemoryRepositories()
//
// # Catalog Order
//
// Catalog order is insertion order and must be stable between runs.
// The tagger resumes by skipping the first N records in that order.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
