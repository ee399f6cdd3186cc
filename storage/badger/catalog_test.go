package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *CatalogRepository {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	catalog, err := NewCatalogRepository(backend)
	require.NoError(t, err)
	t.Cleanup(func() {
		catalog.Close()
		backend.Close()
	})
	return catalog
}

func TestCatalog_AddAndGet(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	err := catalog.AddRecords(ctx, &core.Record{ID: "F1", Name: "김치찌개"})
	require.NoError(t, err)

	record, err := catalog.GetRecord(ctx, "F1")
	require.NoError(t, err)
	assert.Equal(t, "김치찌개", record.Name)

	_, err = catalog.GetRecord(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCatalog_RejectsInvalidRecord(t *testing.T) {
	catalog := newTestCatalog(t)

	err := catalog.AddRecords(context.Background(), &core.Record{ID: "F1", Name: " "})
	assert.ErrorIs(t, err, core.ErrInvalidRecord)
}

func TestCatalog_OrderIsInsertionOrder(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	// IDs chosen so lexical order differs from insertion order
	ids := []string{"F9", "F10", "F2", "A1"}
	for _, id := range ids {
		require.NoError(t, catalog.AddRecords(ctx, &core.Record{ID: id, Name: "food " + id}))
	}

	got, err := catalog.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	count, err := catalog.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCatalog_ReAddKeepsPosition(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, catalog.AddRecords(ctx,
		&core.Record{ID: "F1", Name: "김치찌개"},
		&core.Record{ID: "F2", Name: "현미밥"},
	))
	require.NoError(t, catalog.AddRecords(ctx, &core.Record{ID: "F1", Name: "김치 찌개"}))

	ids, err := catalog.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "F2"}, ids)

	record, err := catalog.GetRecord(ctx, "F1")
	require.NoError(t, err)
	assert.Equal(t, "김치 찌개", record.Name)
}

func TestCatalog_ListRecords(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, catalog.AddRecords(ctx, &core.Record{ID: fmt.Sprintf("F%d", i), Name: fmt.Sprintf("food %d", i)}))
	}

	tests := []struct {
		name    string
		offset  int
		limit   int
		wantIDs []string
	}{
		{"first page", 0, 3, []string{"F0", "F1", "F2"}},
		{"middle page", 4, 2, []string{"F4", "F5"}},
		{"tail", 8, 5, []string{"F8", "F9"}},
		{"unlimited", 7, 0, []string{"F7", "F8", "F9"}},
		{"past end", 20, 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := catalog.ListRecords(ctx, tt.offset, tt.limit)
			require.NoError(t, err)
			var ids []string
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	_, err := catalog.ListRecords(ctx, -1, 1)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestCatalog_Empty(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	count, err := catalog.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	ids, err := catalog.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCatalog_ListRecordsFrom(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		id := fmt.Sprintf("F%d", i)
		require.NoError(t, catalog.AddRecords(ctx, &core.Record{ID: id, Name: "food " + id}))
	}

	var ids []string
	var pos uint64
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10)
		page, next, err := catalog.ListRecordsFrom(ctx, pos, 3)
		require.NoError(t, err)
		for _, rec := range page {
			ids = append(ids, rec.ID)
		}
		if len(page) < 3 {
			break
		}
		assert.Greater(t, next, pos)
		pos = next
	}
	assert.Equal(t, []string{"F1", "F2", "F3", "F4", "F5", "F6", "F7"}, ids)

	// Records added later are found from the saved position.
	require.NoError(t, catalog.AddRecords(ctx, &core.Record{ID: "F8", Name: "food F8"}))
	page, _, err := catalog.ListRecordsFrom(ctx, pos, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "F7", page[0].ID)
	assert.Equal(t, "F8", page[1].ID)
}
