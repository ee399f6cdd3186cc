package tagging

import (
	"context"
	"testing"

	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_WalksCatalogInOrder(t *testing.T) {
	records := makeRecords(5)
	stores := setupStores(t, records...)
	ctx := context.Background()
	cursor := NewCursor(stores.catalog, 0)

	batch, err := cursor.NextBatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "F2"}, recordIDs(batch))

	// NextBatch does not mark anything.
	again, err := cursor.NextBatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "F2"}, recordIDs(again))
	assert.Equal(t, 0, cursor.Processed())

	cursor.MarkProcessed("F1")
	cursor.MarkProcessed("F2")
	batch, err = cursor.NextBatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"F3", "F4"}, recordIDs(batch))
	assert.Equal(t, "food 3", batch[0].Name)
}

func TestCursor_SkipSeedsProcessed(t *testing.T) {
	records := makeRecords(10)
	stores := setupStores(t, records...)
	ctx := context.Background()
	cursor := NewCursor(stores.catalog, 4)

	assert.Equal(t, 0, cursor.Processed(), "seeding waits for the first batch")

	batch, err := cursor.NextBatch(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"F5", "F6", "F7"}, recordIDs(batch))
	assert.GreaterOrEqual(t, cursor.Processed(), 4)
	for _, id := range []string{"F1", "F2", "F3", "F4"} {
		assert.True(t, cursor.IsProcessed(id), id)
	}
	assert.False(t, cursor.IsProcessed("F5"))
	assert.Equal(t, 4, cursor.ResumeOffset())
}

func TestCursor_SkipBeyondCatalog(t *testing.T) {
	stores := setupStores(t, makeRecords(3)...)
	cursor := NewCursor(stores.catalog, 10)

	batch, err := cursor.NextBatch(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 3, cursor.Processed())
}

func TestCursor_Terminates(t *testing.T) {
	records := makeRecords(7)
	stores := setupStores(t, records...)
	ctx := context.Background()
	cursor := NewCursor(stores.catalog, 0)

	var seen []string
	for {
		batch, err := cursor.NextBatch(ctx, 3)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		for _, rec := range batch {
			seen = append(seen, rec.ID)
			cursor.MarkProcessed(rec.ID)
		}
		require.LessOrEqual(t, cursor.Batches(), 3)
	}

	assert.Equal(t, recordIDs(records), seen)
	assert.Equal(t, 7, cursor.ResumeOffset())
	assert.Equal(t, 3, cursor.Batches())

	batch, err := cursor.NextBatch(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestCursor_FailedRecordsLeftForNextRun(t *testing.T) {
	records := makeRecords(4)
	stores := setupStores(t, records...)
	ctx := context.Background()
	cursor := NewCursor(stores.catalog, 0)

	batch, err := cursor.NextBatch(ctx, 2)
	require.NoError(t, err)
	cursor.MarkFailed(batch[0].ID)
	cursor.MarkProcessed(batch[1].ID)

	batch, err = cursor.NextBatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"F3", "F4"}, recordIDs(batch))
	assert.False(t, cursor.IsProcessed("F1"))
	assert.Equal(t, 1, cursor.Failed())
	assert.Equal(t, 0, cursor.ResumeOffset(), "F1 still blocks the prefix")

	cursor.MarkProcessed("F3")
	cursor.MarkProcessed("F4")
	batch, err = cursor.NextBatch(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, batch)

	// A fresh cursor offers the failed record again.
	next := NewCursor(stores.catalog, 0)
	batch, err = next.NextBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "F2", "F3", "F4"}, recordIDs(batch))
}

func TestCursor_Paging(t *testing.T) {
	records := makeRecords(25)
	stores := setupStores(t, records...)
	ctx := context.Background()
	cursor := NewCursor(stores.catalog, 0)
	cursor.pageSize = 4

	for _, id := range []string{"F1", "F2", "F3", "F4", "F5", "F7"} {
		cursor.MarkProcessed(id)
	}

	batch, err := cursor.NextBatch(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"F6", "F8", "F9", "F10", "F11", "F12"}, recordIDs(batch))
	assert.Equal(t, 5, cursor.ResumeOffset())
}

func TestCursor_TotalRemaining(t *testing.T) {
	stores := setupStores(t, makeRecords(10)...)
	ctx := context.Background()
	cursor := NewCursor(stores.catalog, 3)

	remaining, err := cursor.TotalRemaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining, "skip count applies before seeding")

	_, err = cursor.NextBatch(ctx, 2)
	require.NoError(t, err)
	cursor.MarkProcessed("F4")

	remaining, err = cursor.TotalRemaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, remaining)
}

func TestCursor_InvalidBatchSize(t *testing.T) {
	stores := setupStores(t, core.Record{ID: "F1", Name: "x"})
	_, err := NewCursor(stores.catalog, 0).NextBatch(context.Background(), 0)
	assert.Error(t, err)
}

// countingCatalog counts how many records the cursor reads.
type countingCatalog struct {
	storage.CatalogRepository
	read        int
	offsetCalls int
}

func (c *countingCatalog) ListRecords(ctx context.Context, offset, limit int) ([]*core.Record, error) {
	c.offsetCalls++
	return c.CatalogRepository.ListRecords(ctx, offset, limit)
}

func (c *countingCatalog) ListRecordsFrom(ctx context.Context, from uint64, limit int) ([]*core.Record, uint64, error) {
	page, next, err := c.CatalogRepository.ListRecordsFrom(ctx, from, limit)
	c.read += len(page)
	return page, next, err
}

func TestCursor_ReadsEachRecordOnceAfterFailure(t *testing.T) {
	records := makeRecords(200)
	stores := setupStores(t, records...)
	ctx := context.Background()
	catalog := &countingCatalog{CatalogRepository: stores.catalog}
	cursor := NewCursor(catalog, 0)
	cursor.pageSize = 10

	var seen []string
	for {
		batch, err := cursor.NextBatch(ctx, 5)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		for _, rec := range batch {
			seen = append(seen, rec.ID)
			if rec.ID == "F1" {
				cursor.MarkFailed(rec.ID)
				continue
			}
			cursor.MarkProcessed(rec.ID)
		}
	}

	assert.Len(t, seen, 200)
	assert.Equal(t, 200, catalog.read, "each record is read from the catalog once")
	assert.Equal(t, 0, catalog.offsetCalls)
	assert.Equal(t, 0, cursor.ResumeOffset(), "F1 still blocks the prefix")
	assert.Equal(t, 1, cursor.Failed())
}

func TestCursor_ReoffersUnmarkedRecordsWithoutRereading(t *testing.T) {
	stores := setupStores(t, makeRecords(6)...)
	ctx := context.Background()
	catalog := &countingCatalog{CatalogRepository: stores.catalog}
	cursor := NewCursor(catalog, 0)
	cursor.pageSize = 4

	batch, err := cursor.NextBatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "F2"}, recordIDs(batch))
	cursor.MarkProcessed("F2")

	batch, err = cursor.NextBatch(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "F3", "F4"}, recordIDs(batch))
	assert.Equal(t, 4, catalog.read)

	cursor.MarkProcessed("F1")
	batch, err = cursor.NextBatch(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"F3", "F4", "F5"}, recordIDs(batch))
	assert.Equal(t, 6, catalog.read)
	assert.Equal(t, 2, cursor.ResumeOffset())
}
