package storage

import (
	"context"

	"github.com/poiesic/tagger/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// CatalogRepository provides read access to the record catalog.
// Catalog order is the order records were first added and is stable
// across runs, which is what makes skip-count resumption work.
type CatalogRepository interface {
	Repository
	// AddRecords adds records to the catalog.
	// Re-adding an existing ID updates its name but keeps its position.
	AddRecords(ctx context.Context, records ...*core.Record) error

	// GetRecord retrieves a single record by ID.
	// Returns ErrRecordNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id string) (*core.Record, error)

	// ListIDs returns every record ID in catalog order.
	ListIDs(ctx context.Context) ([]string, error)

	// ListRecords returns up to limit records in catalog order starting at offset.
	// A limit <= 0 returns everything after offset.
	ListRecords(ctx context.Context, offset, limit int) ([]*core.Record, error)

	// ListRecordsFrom returns up to limit records in catalog order whose
	// catalog position is at least from, and the position to pass on the
	// next call. Positions are opaque and may have gaps; 0 starts at the
	// beginning. Unlike ListRecords it does not walk the skipped records.
	ListRecordsFrom(ctx context.Context, from uint64, limit int) ([]*core.Record, uint64, error)

	// Count returns the number of records in the catalog.
	Count(ctx context.Context) (int, error)
}

// TagRepository persists tags and their links to catalog records.
type TagRepository interface {
	Repository
	// GetOrCreateTag returns the tag with the given name, creating it if needed.
	// Safe to call repeatedly with the same name.
	GetOrCreateTag(ctx context.Context, name string) (*core.Tag, error)

	// Link associates a tag with a record. Linking twice is a no-op.
	Link(ctx context.Context, recordID string, tagID core.ID) error

	// AddRecordTags gets or creates every label and links it to the record.
	// Returns ErrRecordNotFound if the record is not in the catalog.
	AddRecordTags(ctx context.Context, recordID string, labels core.LabelSet) error

	// GetRecordTags returns the names of the tags linked to a record, sorted.
	GetRecordTags(ctx context.Context, recordID string) ([]string, error)

	// RemoveRecordTags unlinks the named tags from a record.
	// With no labels every tag of the record is unlinked.
	// Tags themselves are kept.
	RemoveRecordTags(ctx context.Context, recordID string, labels ...string) error
}

// TemplateRepository holds the single durable instruction template.
type TemplateRepository interface {
	// LoadTemplate returns the stored template.
	// Returns nil, nil if no template was ever saved.
	LoadTemplate(ctx context.Context) (*core.Template, error)

	// SaveTemplate overwrites the stored template.
	SaveTemplate(ctx context.Context, tmpl *core.Template) error
}

// CheckpointRepository stores per-run progress checkpoints.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint, replacing any previous one.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the latest checkpoint.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context) (*core.Checkpoint, error)
}
