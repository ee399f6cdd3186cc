package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed catalog, tag and template persistence.
// A single Store satisfies every repository interface it implements.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ storage.CatalogRepository  = (*Store)(nil)
	_ storage.TagRepository      = (*Store)(nil)
	_ storage.TemplateRepository = (*Store)(nil)
)

// New opens the database at dbPath and applies the schema.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Pragmas are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{
		db:     db,
		logger: slog.Default().With("component", "sqlite-store"),
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// AddRecords inserts catalog records, updating the name of known IDs.
func (s *Store) AddRecords(ctx context.Context, records ...*core.Record) error {
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return err
		}
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO food_info (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, record := range records {
			if _, err := stmt.ExecContext(ctx, record.ID, record.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRecord retrieves a record by ID
func (s *Store) GetRecord(ctx context.Context, id string) (*core.Record, error) {
	record := &core.Record{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM food_info WHERE id = ?`, id).
		Scan(&record.ID, &record.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListIDs returns every record ID in catalog order
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM food_info ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRecords returns a page of records in catalog order
func (s *Store) ListRecords(ctx context.Context, offset, limit int) ([]*core.Record, error) {
	if offset < 0 {
		return nil, storage.ErrInvalidQuery
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM food_info ORDER BY seq LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*core.Record
	for rows.Next() {
		record := &core.Record{}
		if err := rows.Scan(&record.ID, &record.Name); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListRecordsFrom returns a page of records whose seq is at least from
func (s *Store) ListRecordsFrom(ctx context.Context, from uint64, limit int) ([]*core.Record, uint64, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, name FROM food_info WHERE seq >= ? ORDER BY seq LIMIT ?`, int64(from), limit)
	if err != nil {
		return nil, from, err
	}
	defer rows.Close()

	next := from
	var records []*core.Record
	for rows.Next() {
		var seq int64
		record := &core.Record{}
		if err := rows.Scan(&seq, &record.ID, &record.Name); err != nil {
			return nil, from, err
		}
		records = append(records, record)
		next = uint64(seq) + 1
	}
	if err := rows.Err(); err != nil {
		return nil, from, err
	}
	return records, next, nil
}

// Count returns the number of catalog records
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM food_info`).Scan(&count)
	return count, err
}

// GetOrCreateTag returns the named tag, inserting it when missing.
func (s *Store) GetOrCreateTag(ctx context.Context, name string) (*core.Tag, error) {
	if err := core.ValidateLabel(name); err != nil {
		return nil, err
	}
	var tag *core.Tag
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		tag, err = getOrCreateTag(ctx, tx, name)
		return err
	})
	return tag, err
}

// Link associates a tag with a record. Existing links are left alone.
func (s *Store) Link(ctx context.Context, recordID string, tagID core.ID) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM food_tag WHERE id = ?`, int64(tagID)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("tag %d: %w", tagID, storage.ErrNotFound)
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO food_info_tag (food_id, tag_id) VALUES (?, ?)`, recordID, int64(tagID))
	return err
}

// AddRecordTags gets or creates every label and links it to the record.
func (s *Store) AddRecordTags(ctx context.Context, recordID string, labels core.LabelSet) error {
	for _, label := range labels {
		if err := core.ValidateLabel(label); err != nil {
			return err
		}
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM food_info WHERE id = ?`, recordID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", storage.ErrRecordNotFound, recordID)
		}
		if err != nil {
			return err
		}
		for _, label := range labels {
			tag, err := getOrCreateTag(ctx, tx, label)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO food_info_tag (food_id, tag_id) VALUES (?, ?)`,
				recordID, int64(tag.Id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRecordTags returns the sorted tag names linked to a record.
func (s *Store) GetRecordTags(ctx context.Context, recordID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name FROM food_tag t
		JOIN food_info_tag ft ON ft.tag_id = t.id
		WHERE ft.food_id = ?
		ORDER BY t.name
	`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RemoveRecordTags unlinks the named tags, or all tags when none are named.
func (s *Store) RemoveRecordTags(ctx context.Context, recordID string, labels ...string) error {
	if len(labels) == 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM food_info_tag WHERE food_id = ?`, recordID)
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, label := range labels {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM food_info_tag
				WHERE food_id = ? AND tag_id IN (SELECT id FROM food_tag WHERE name = ?)
			`, recordID, label); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadTemplate returns the stored template, or nil, nil when none was saved.
func (s *Store) LoadTemplate(ctx context.Context) (*core.Template, error) {
	tmpl := &core.Template{}
	err := s.db.QueryRowContext(ctx,
		`SELECT text, version, score, updated_at FROM tagging_prompt WHERE slot = 1`).
		Scan(&tmpl.Text, &tmpl.Version, &tmpl.Score, &tmpl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

// SaveTemplate overwrites the stored template.
func (s *Store) SaveTemplate(ctx context.Context, tmpl *core.Template) error {
	if err := core.ValidateTemplate(tmpl, ""); err != nil {
		return err
	}
	if tmpl.UpdatedAt.IsZero() {
		tmpl.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tagging_prompt (slot, text, version, score, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			text = excluded.text,
			version = excluded.version,
			score = excluded.score,
			updated_at = excluded.updated_at
	`, tmpl.Text, tmpl.Version, tmpl.Score, tmpl.UpdatedAt)
	return err
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "err", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func getOrCreateTag(ctx context.Context, tx *sql.Tx, name string) (*core.Tag, error) {
	id := core.IDFromContent(name)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO food_tag (id, name, inserted_at) VALUES (?, ?, ?)`,
		int64(id), name, time.Now().UTC()); err != nil {
		return nil, err
	}

	tag := &core.Tag{}
	var rawID int64
	err := tx.QueryRowContext(ctx, `SELECT id, name, inserted_at FROM food_tag WHERE name = ?`, name).
		Scan(&rawID, &tag.Name, &tag.InsertedAt)
	if err != nil {
		return nil, err
	}
	tag.Id = core.ID(rawID)
	return tag, nil
}
