package tagging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
)

const defaultPageSize = 1000

// Cursor walks the catalog in its stable order and remembers which records
// are done. Each catalog record is read once per run; records that were
// scanned but not yet processed are kept in memory and offered again.
// It is not safe for concurrent use.
type Cursor struct {
	catalog   storage.CatalogRepository
	skipCount int
	pageSize  int
	logger    *slog.Logger

	processed map[string]struct{}
	failed    map[string]struct{}
	seeded    bool

	scanPos uint64          // catalog position of the next unread record
	scanned int             // records read so far
	pending []pendingRecord // scanned, unprocessed, in catalog order
	prefix  int             // catalog positions [0, prefix) are all processed
	batches int
}

type pendingRecord struct {
	rec     core.Record
	ordinal int
}

// NewCursor creates a cursor that treats the first skipCount catalog records
// as already processed once the first batch is requested.
func NewCursor(catalog storage.CatalogRepository, skipCount int) *Cursor {
	if skipCount < 0 {
		skipCount = 0
	}
	return &Cursor{
		catalog:   catalog,
		skipCount: skipCount,
		pageSize:  defaultPageSize,
		processed: make(map[string]struct{}),
		failed:    make(map[string]struct{}),
		logger:    slog.Default().With("component", "cursor"),
	}
}

// seed marks the first skipCount catalog IDs processed. Runs once.
func (c *Cursor) seed(ctx context.Context) error {
	if c.seeded {
		return nil
	}
	if c.skipCount > 0 {
		ids, err := c.catalog.ListIDs(ctx)
		if err != nil {
			return fmt.Errorf("list catalog ids: %w", err)
		}
		n := min(c.skipCount, len(ids))
		for _, id := range ids[:n] {
			c.processed[id] = struct{}{}
		}
		c.logger.Info("skipping already processed records", "skip", c.skipCount, "marked", n)
	}
	c.seeded = true
	return nil
}

// NextBatch returns up to size unprocessed records in catalog order,
// leaving out records that failed earlier in this run.
// An empty result means every record has been processed or has failed.
func (c *Cursor) NextBatch(ctx context.Context, size int) ([]core.Record, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	if err := c.seed(ctx); err != nil {
		return nil, err
	}

	batch := make([]core.Record, 0, size)

	kept := c.pending[:0]
	for _, p := range c.pending {
		if _, done := c.processed[p.rec.ID]; done {
			continue
		}
		kept = append(kept, p)
		if _, failed := c.failed[p.rec.ID]; !failed && len(batch) < size {
			batch = append(batch, p.rec)
		}
	}
	c.pending = kept

	for len(batch) < size {
		page, next, err := c.catalog.ListRecordsFrom(ctx, c.scanPos, c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list catalog records: %w", err)
		}
		c.scanPos = next
		for _, rec := range page {
			ordinal := c.scanned
			c.scanned++
			if _, done := c.processed[rec.ID]; done {
				continue
			}
			c.pending = append(c.pending, pendingRecord{rec: *rec, ordinal: ordinal})
			if _, failed := c.failed[rec.ID]; !failed && len(batch) < size {
				batch = append(batch, *rec)
			}
		}
		if len(page) < c.pageSize {
			break
		}
	}

	c.prefix = c.scanned
	if len(c.pending) > 0 {
		c.prefix = c.pending[0].ordinal
	}

	if len(batch) > 0 {
		c.batches++
	}
	return batch, nil
}

// MarkProcessed records that id's labels have been persisted.
func (c *Cursor) MarkProcessed(id string) {
	c.processed[id] = struct{}{}
	delete(c.failed, id)
}

// MarkFailed excludes id from later batches of this run without counting it
// as processed. A new cursor will offer it again.
func (c *Cursor) MarkFailed(id string) {
	if _, done := c.processed[id]; !done {
		c.failed[id] = struct{}{}
	}
}

// Failed returns the number of records excluded by MarkFailed.
func (c *Cursor) Failed() int {
	return len(c.failed)
}

// IsProcessed reports whether id has been skipped or persisted.
func (c *Cursor) IsProcessed(id string) bool {
	_, ok := c.processed[id]
	return ok
}

// Processed returns the number of processed IDs.
func (c *Cursor) Processed() int {
	return len(c.processed)
}

// Batches returns how many non-empty batches have been handed out.
func (c *Cursor) Batches() int {
	return c.batches
}

// ResumeOffset returns the length of the fully processed catalog prefix seen
// by the last NextBatch call. Passing it as the skip count on restart loses
// no work.
func (c *Cursor) ResumeOffset() int {
	return c.prefix
}

// TotalRemaining returns how many catalog records are not yet processed.
func (c *Cursor) TotalRemaining(ctx context.Context) (int, error) {
	ids, err := c.catalog.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list catalog ids: %w", err)
	}
	remaining := 0
	for pos, id := range ids {
		if _, done := c.processed[id]; done {
			continue
		}
		if !c.seeded && pos < c.skipCount {
			continue
		}
		remaining++
	}
	return remaining, nil
}
