package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
)

// TemplateRepository implements storage.TemplateRepository for BadgerDB.
// The template lives under a single fixed key.
type TemplateRepository struct {
	backend *Backend
}

var _ storage.TemplateRepository = (*TemplateRepository)(nil)

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(backend *Backend) *TemplateRepository {
	return &TemplateRepository{backend: backend}
}

// LoadTemplate returns the stored template, or nil, nil when none was saved.
func (r *TemplateRepository) LoadTemplate(ctx context.Context) (*core.Template, error) {
	var tmpl *core.Template
	err := r.backend.WithView(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(templateKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			tmpl, err = storage.UnmarshalTemplate(val)
			return err
		})
	})
	return tmpl, err
}

// SaveTemplate overwrites the stored template.
func (r *TemplateRepository) SaveTemplate(ctx context.Context, tmpl *core.Template) error {
	if err := core.ValidateTemplate(tmpl, ""); err != nil {
		return err
	}
	if tmpl.UpdatedAt.IsZero() {
		tmpl.UpdatedAt = time.Now().UTC()
	}
	return r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		return tx.Set([]byte(templateKey), storage.MarshalTemplate(tmpl))
	})
}
