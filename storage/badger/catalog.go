package badger

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
)

// CatalogRepository implements storage.CatalogRepository for BadgerDB.
// Records are ordered by a badger sequence assigned on first insert.
type CatalogRepository struct {
	backend *Backend
	posSeq  *badger.Sequence
}

var _ storage.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(backend *Backend) (*CatalogRepository, error) {
	posSeq, err := backend.GetSequence(foodOrderSeq)
	if err != nil {
		return nil, err
	}
	return &CatalogRepository{
		backend: backend,
		posSeq:  posSeq,
	}, nil
}

// Close releases the position sequence.
func (r *CatalogRepository) Close() error {
	return r.posSeq.Release()
}

// AddRecords adds records to the catalog.
func (r *CatalogRepository) AddRecords(ctx context.Context, records ...*core.Record) error {
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return err
		}
	}
	return r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		for _, record := range records {
			posKey := makeFoodPosKey(record.ID)
			_, err := tx.Get(posKey)
			switch {
			case err == nil:
				// Known record keeps its position
			case errors.Is(err, badger.ErrKeyNotFound):
				pos, err := r.posSeq.Next()
				if err != nil {
					return err
				}
				posBytes := make([]byte, 8)
				binary.BigEndian.PutUint64(posBytes, pos)
				if err := tx.Set(posKey, posBytes); err != nil {
					return err
				}
				if err := tx.Set(makeFoodOrderKey(pos), []byte(record.ID)); err != nil {
					return err
				}
			default:
				return err
			}

			if err := tx.Set(makeFoodKey(record.ID), storage.MarshalRecord(record)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRecord retrieves a single record by ID.
func (r *CatalogRepository) GetRecord(ctx context.Context, id string) (*core.Record, error) {
	var result *core.Record
	err := r.backend.WithView(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrRecordNotFound
		}
		return nil
	})
	return result, err
}

// ListIDs returns every record ID in catalog order.
func (r *CatalogRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.backend.WithView(ctx, func(tx *badger.Txn) error {
		return iterateOrder(tx, func(id string) (bool, error) {
			ids = append(ids, id)
			return true, nil
		})
	})
	return ids, err
}

// ListRecords returns up to limit records in catalog order starting at offset.
func (r *CatalogRepository) ListRecords(ctx context.Context, offset, limit int) ([]*core.Record, error) {
	if offset < 0 {
		return nil, storage.ErrInvalidQuery
	}
	var result []*core.Record
	err := r.backend.WithView(ctx, func(tx *badger.Txn) error {
		index := 0
		return iterateOrder(tx, func(id string) (bool, error) {
			if index < offset {
				index++
				return true, nil
			}
			if err := ctx.Err(); err != nil {
				return false, err
			}
			record, err := readRecord(tx, id)
			if err != nil {
				return false, err
			}
			if record != nil {
				result = append(result, record)
			}
			index++
			return limit <= 0 || len(result) < limit, nil
		})
	})
	return result, err
}

// ListRecordsFrom seeks the order index to position from and returns up to
// limit records.
func (r *CatalogRepository) ListRecordsFrom(ctx context.Context, from uint64, limit int) ([]*core.Record, uint64, error) {
	var result []*core.Record
	next := from
	err := r.backend.WithView(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(foodOrderPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeFoodOrderKey(from)); iter.Valid(); iter.Next() {
			if limit > 0 && len(result) >= limit {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			pos, ok := posFromOrderKey(item.Key())
			if !ok {
				continue
			}
			var id string
			err := item.Value(func(val []byte) error {
				id = string(val)
				return nil
			})
			if err != nil {
				return err
			}
			record, err := readRecord(tx, id)
			if err != nil {
				return err
			}
			next = pos + 1
			if record != nil {
				result = append(result, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, from, err
	}
	return result, next, nil
}

// Count returns the number of records in the catalog.
func (r *CatalogRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithView(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(foodOrderPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// iterateOrder walks the catalog order index, calling fn with each record ID
// until fn returns false or an error.
func iterateOrder(tx *badger.Txn, fn func(id string) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(foodOrderPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var id string
		err := iter.Item().Value(func(val []byte) error {
			id = string(val)
			return nil
		})
		if err != nil {
			return err
		}
		more, err := fn(id)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// readRecord is a helper to read a catalog record within a transaction.
// Returns nil, nil if the record doesn't exist.
func readRecord(tx *badger.Txn, id string) (*core.Record, error) {
	item, err := tx.Get(makeFoodKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.Record
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord(val)
		return err
	})
	return record, err
}
