package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
)

// TagRepository implements storage.TagRepository for BadgerDB.
type TagRepository struct {
	backend *Backend
}

var _ storage.TagRepository = (*TagRepository)(nil)

// NewTagRepository creates a new TagRepository.
func NewTagRepository(backend *Backend) (*TagRepository, error) {
	return &TagRepository{
		backend: backend,
	}, nil
}

// Close releases resources. TagRepository has no resources to release.
func (r *TagRepository) Close() error {
	return nil
}

// GetOrCreateTag returns the tag with the given name, creating it if needed.
func (r *TagRepository) GetOrCreateTag(ctx context.Context, name string) (*core.Tag, error) {
	if err := core.ValidateLabel(name); err != nil {
		return nil, err
	}
	var tag *core.Tag
	err := r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		var err error
		tag, err = getOrCreateTag(tx, name)
		return err
	})
	return tag, err
}

// Link associates a tag with a record.
func (r *TagRepository) Link(ctx context.Context, recordID string, tagID core.ID) error {
	return r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		if _, err := tx.Get(makeTagKey(tagID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("tag %d: %w", tagID, storage.ErrNotFound)
			}
			return err
		}
		return tx.Set(makeFoodTagKey(recordID, tagID), nil)
	})
}

// AddRecordTags gets or creates every label and links it to the record
// in a single transaction.
func (r *TagRepository) AddRecordTags(ctx context.Context, recordID string, labels core.LabelSet) error {
	for _, label := range labels {
		if err := core.ValidateLabel(label); err != nil {
			return err
		}
	}
	return r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		record, err := readRecord(tx, recordID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: %s", storage.ErrRecordNotFound, recordID)
		}
		for _, label := range labels {
			tag, err := getOrCreateTag(tx, label)
			if err != nil {
				return err
			}
			if err := tx.Set(makeFoodTagKey(recordID, tag.Id), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRecordTags returns the names of the tags linked to a record, sorted.
func (r *TagRepository) GetRecordTags(ctx context.Context, recordID string) ([]string, error) {
	var names []string
	err := r.backend.WithView(ctx, func(tx *badger.Txn) error {
		ids, err := linkedTagIDs(tx, recordID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			tag, err := readTag(tx, id)
			if err != nil {
				return err
			}
			if tag != nil {
				names = append(names, tag.Name)
			}
		}
		return nil
	})
	slices.Sort(names)
	return names, err
}

// RemoveRecordTags unlinks the named tags from a record.
func (r *TagRepository) RemoveRecordTags(ctx context.Context, recordID string, labels ...string) error {
	return r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		if len(labels) == 0 {
			ids, err := linkedTagIDs(tx, recordID)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := tx.Delete(makeFoodTagKey(recordID, id)); err != nil {
					return err
				}
			}
			return nil
		}
		for _, label := range labels {
			if err := tx.Delete(makeFoodTagKey(recordID, core.IDFromContent(label))); err != nil {
				return err
			}
		}
		return nil
	})
}

// getOrCreateTag looks a tag up by name and stores it when missing.
func getOrCreateTag(tx *badger.Txn, name string) (*core.Tag, error) {
	item, err := tx.Get(makeTagNameKey(name))
	if err == nil {
		var id core.ID
		err = item.Value(func(val []byte) error {
			id, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		tag, err := readTag(tx, id)
		if err != nil {
			return nil, err
		}
		if tag != nil {
			return tag, nil
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, err
	}

	tag := &core.Tag{
		Id:         core.IDFromContent(name),
		Name:       name,
		InsertedAt: time.Now().UTC(),
	}
	if err := tx.Set(makeTagKey(tag.Id), storage.MarshalTag(tag)); err != nil {
		return nil, err
	}
	if err := tx.Set(makeTagNameKey(name), storage.MarshalID(tag.Id)); err != nil {
		return nil, err
	}
	return tag, nil
}

// linkedTagIDs returns the IDs of every tag linked to a record.
func linkedTagIDs(tx *badger.Txn, recordID string) ([]core.ID, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = makePartialFoodTagKey(recordID)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []core.ID
	for iter.Rewind(); iter.Valid(); iter.Next() {
		id, ok := tagIDFromFoodTagKey(iter.Item().KeyCopy(nil))
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readTag is a helper to read a tag within a transaction.
// Returns nil, nil if the tag doesn't exist.
func readTag(tx *badger.Txn, id core.ID) (*core.Tag, error) {
	item, err := tx.Get(makeTagKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var tag *core.Tag
	err = item.Value(func(val []byte) error {
		var err error
		tag, err = storage.UnmarshalTag(val)
		return err
	})
	return tag, err
}
