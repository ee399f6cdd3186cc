package tagging

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
	"github.com/poiesic/tagger/storage/badger"
	"github.com/stretchr/testify/require"
)

type testStores struct {
	catalog   storage.CatalogRepository
	tags      storage.TagRepository
	templates storage.TemplateRepository
	backend   *badger.Backend
}

// setupStores opens in-memory repositories holding records.
func setupStores(t *testing.T, records ...core.Record) *testStores {
	t.Helper()
	catalog, tags, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		tags.Close()
		catalog.Close()
		backend.Close()
	})

	if len(records) > 0 {
		ptrs := make([]*core.Record, len(records))
		for i := range records {
			ptrs[i] = &records[i]
		}
		require.NoError(t, catalog.AddRecords(context.Background(), ptrs...))
	}
	return &testStores{
		catalog:   catalog,
		tags:      tags,
		templates: badger.NewTemplateRepository(backend),
		backend:   backend,
	}
}

// makeRecords builds n records with IDs F1..Fn.
func makeRecords(n int) []core.Record {
	records := make([]core.Record, n)
	for i := range records {
		records[i] = core.Record{ID: fmt.Sprintf("F%d", i+1), Name: fmt.Sprintf("food %d", i+1)}
	}
	return records
}

func recordIDs(records []core.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// testConfig is a fast config with no waits.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	cfg.RetryDelay = 0
	cfg.BatchInterval = 0
	return cfg
}
