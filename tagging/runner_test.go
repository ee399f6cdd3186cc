package tagging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/tagger/ai/mock"
	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
	"github.com/poiesic/tagger/storage/badger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_EndToEndProduction(t *testing.T) {
	stores := setupStores(t, core.Record{ID: "F1", Name: "김치찌개"})
	ctx := context.Background()

	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, template, name string) (string, error) {
		return "태그: #한식, #국물요리", nil
	}

	runner, err := NewRunner(stores.catalog, stores.tags, gen, testConfig())
	require.NoError(t, err)

	summary, err := runner.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.CallCount())
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 1, summary.ResumeOffset)
	assert.Empty(t, summary.Failed)
	assert.NoError(t, summary.PersistErrors)
	assert.Len(t, summary.RunID, 26)

	tags, err := stores.tags.GetRecordTags(ctx, "F1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"한식", "국물요리"}, tags)

	// The catalog is exhausted for a cursor that knows F1 is done.
	cursor := NewCursor(stores.catalog, summary.ResumeOffset)
	batch, err := cursor.NextBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestRunner_ProductionSkipsFailures(t *testing.T) {
	records := makeRecords(5)
	stores := setupStores(t, records...)
	ctx := context.Background()

	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, template, name string) (string, error) {
		if name == "food 2" {
			return "", errors.New("model crashed")
		}
		return "태그: #x", nil
	}

	fs := afero.NewMemMapFs()
	cfg := testConfig()
	cfg.BatchSize = 2
	runner, err := NewRunner(stores.catalog, stores.tags, gen, cfg,
		WithProgressLog(NewProgressLog(fs, "progress.log")))
	require.NoError(t, err)

	summary, err := runner.Run(ctx)
	require.NoError(t, err, "record failures do not abort the run")

	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 4, summary.Processed)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "F2", summary.Failed[0].RecordID)
	assert.Equal(t, cfg.MaxRetries, summary.Failed[0].Attempts)
	assert.Equal(t, 1, summary.ResumeOffset, "F2 blocks the resumable prefix")
	assert.Equal(t, 3, summary.Batches)

	tags, err := stores.tags.GetRecordTags(ctx, "F2")
	require.NoError(t, err)
	assert.Empty(t, tags)

	data, err := afero.ReadFile(fs, "progress.log")
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "batch #1 complete")
	assert.Contains(t, log, "batch #3 complete")
	assert.Contains(t, log, "progress: 4/5 (80.00%)")
	assert.Contains(t, log, "id=F2")
	assert.NotContains(t, log, "run restarted")
}

func TestRunner_ResumeWithSkip(t *testing.T) {
	records := makeRecords(6)
	stores := setupStores(t, records...)
	ctx := context.Background()

	gen := mock.NewMockGenerator()
	fs := afero.NewMemMapFs()
	cfg := testConfig()
	cfg.SkipCount = 4
	runner, err := NewRunner(stores.catalog, stores.tags, gen, cfg,
		WithProgressLog(NewProgressLog(fs, "progress.log")))
	require.NoError(t, err)

	summary, err := runner.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"food 5", "food 6"}, gen.Names())
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 6, summary.Processed)
	assert.Equal(t, 6, summary.ResumeOffset)

	data, err := afero.ReadFile(fs, "progress.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "run restarted")
	assert.Contains(t, string(data), "skipped records: 4 (66.67%)")
}

func TestRunner_Tuning(t *testing.T) {
	records := makeRecords(3)
	stores := setupStores(t, records...)
	ctx := context.Background()

	gen := mock.NewMockGenerator()
	judge := mock.NewMockJudge()
	judge.JudgeFunc = scoreSequence(50, 95)

	fs := afero.NewMemMapFs()
	cfg := testConfig()
	cfg.Mode = ModeTuning
	runner, err := NewRunner(stores.catalog, stores.tags, gen, cfg,
		WithJudge(judge),
		WithTemplateStore(stores.templates),
		WithOptimizationLog(NewOptimizationLog(fs, "optimizer.log")))
	require.NoError(t, err)

	summary, err := runner.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 2, judge.CallCount())
	assert.Equal(t, 1, summary.Template.Version)
	assert.Equal(t, DefaultTemplate+" v", summary.Template.Text)

	stored, err := stores.templates.LoadTemplate(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, DefaultTemplate+" v", stored.Text)

	tags, err := stores.tags.GetRecordTags(ctx, "F3")
	require.NoError(t, err)
	assert.Equal(t, []string{"food3"}, tags)

	exists, err := afero.Exists(fs, "optimizer.log")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunner_TuningUsesStoredTemplate(t *testing.T) {
	stores := setupStores(t, makeRecords(1)...)
	ctx := context.Background()
	require.NoError(t, stores.templates.SaveTemplate(ctx, &core.Template{Text: "stored {food_name}", Version: 7}))

	gen := mock.NewMockGenerator()
	cfg := testConfig()
	cfg.Mode = ModeTuning
	runner, err := NewRunner(stores.catalog, stores.tags, gen, cfg,
		WithJudge(mock.NewMockJudge()), WithTemplateStore(stores.templates))
	require.NoError(t, err)

	summary, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"stored {food_name}"}, gen.Templates())
	assert.Equal(t, 7, summary.Template.Version)
}

func TestRunner_SeedsTemplateStore(t *testing.T) {
	stores := setupStores(t, makeRecords(1)...)
	ctx := context.Background()

	runner, err := NewRunner(stores.catalog, stores.tags, mock.NewMockGenerator(), testConfig(),
		WithTemplateStore(stores.templates))
	require.NoError(t, err)
	_, err = runner.Run(ctx)
	require.NoError(t, err)

	stored, err := stores.templates.LoadTemplate(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, DefaultTemplate, stored.Text)
	assert.Equal(t, 0, stored.Version)
}

func TestRunner_RejectsStoredTemplateWithoutSlot(t *testing.T) {
	stores := setupStores(t, makeRecords(1)...)
	ctx := context.Background()
	require.NoError(t, stores.templates.SaveTemplate(ctx, &core.Template{Text: "no slot here"}))

	runner, err := NewRunner(stores.catalog, stores.tags, mock.NewMockGenerator(), testConfig(),
		WithTemplateStore(stores.templates))
	require.NoError(t, err)
	_, err = runner.Run(ctx)
	assert.ErrorIs(t, err, ErrTemplateSlotMissing)
}

func TestRunner_Checkpoints(t *testing.T) {
	stores := setupStores(t, makeRecords(4)...)
	ctx := context.Background()
	checkpoints := badger.NewCheckpointRepository(stores.backend)

	cfg := testConfig()
	cfg.BatchSize = 3
	runner, err := NewRunner(stores.catalog, stores.tags, mock.NewMockGenerator(), cfg,
		WithCheckpoints(checkpoints))
	require.NoError(t, err)

	summary, err := runner.Run(ctx)
	require.NoError(t, err)

	cp, err := checkpoints.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, summary.RunID, cp.RunID)
	assert.Equal(t, 4, cp.Offset)
	assert.Equal(t, 4, cp.Processed)
}

func TestRunner_Console(t *testing.T) {
	stores := setupStores(t, makeRecords(3)...)
	var out bytes.Buffer
	cfg := testConfig()
	cfg.ReportInterval = 1

	runner, err := NewRunner(stores.catalog, stores.tags, mock.NewMockGenerator(), cfg, WithConsole(&out))
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "3/3 (100.0%)")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

// failingCatalog reports an unreachable store.
type failingCatalog struct {
	storage.CatalogRepository
	countErr error
	listErr  error
}

func (c *failingCatalog) Count(ctx context.Context) (int, error) {
	if c.countErr != nil {
		return 0, c.countErr
	}
	return c.CatalogRepository.Count(ctx)
}

func (c *failingCatalog) ListRecords(ctx context.Context, offset, limit int) ([]*core.Record, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.CatalogRepository.ListRecords(ctx, offset, limit)
}

func (c *failingCatalog) ListRecordsFrom(ctx context.Context, from uint64, limit int) ([]*core.Record, uint64, error) {
	if c.listErr != nil {
		return nil, from, c.listErr
	}
	return c.CatalogRepository.ListRecordsFrom(ctx, from, limit)
}

func TestRunner_CountFailureIsFatal(t *testing.T) {
	stores := setupStores(t, makeRecords(2)...)
	unreachable := errors.New("connection refused")
	catalog := &failingCatalog{CatalogRepository: stores.catalog, countErr: unreachable}

	gen := mock.NewMockGenerator()
	runner, err := NewRunner(catalog, stores.tags, gen, testConfig())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, unreachable)
	assert.Nil(t, summary)
	assert.Equal(t, 0, gen.CallCount())
}

func TestRunner_ListFailureAbortsRun(t *testing.T) {
	stores := setupStores(t, makeRecords(2)...)
	unreachable := errors.New("connection reset")
	catalog := &failingCatalog{CatalogRepository: stores.catalog, listErr: unreachable}

	runner, err := NewRunner(catalog, stores.tags, mock.NewMockGenerator(), testConfig())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, unreachable)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Succeeded)
}

// flakyTags fails to store one record.
type flakyTags struct {
	storage.TagRepository
	failID string
	err    error
}

func (f *flakyTags) AddRecordTags(ctx context.Context, recordID string, labels core.LabelSet) error {
	if recordID == f.failID {
		return f.err
	}
	return f.TagRepository.AddRecordTags(ctx, recordID, labels)
}

func TestRunner_PersistFailureIsPerRecord(t *testing.T) {
	stores := setupStores(t, makeRecords(3)...)
	writeErr := errors.New("constraint violated")
	tags := &flakyTags{TagRepository: stores.tags, failID: "F2", err: writeErr}

	runner, err := NewRunner(stores.catalog, tags, mock.NewMockGenerator(), testConfig())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.ErrorIs(t, summary.PersistErrors, writeErr)
	assert.Equal(t, 2, summary.Processed)
}

func TestRunner_ClosedStoreAbortsRun(t *testing.T) {
	stores := setupStores(t, makeRecords(3)...)
	tags := &flakyTags{TagRepository: stores.tags, failID: "F1", err: storage.ErrStorageClosed}

	runner, err := NewRunner(stores.catalog, tags, mock.NewMockGenerator(), testConfig())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Succeeded)
}

func TestRunner_ContextCanceled(t *testing.T) {
	stores := setupStores(t, makeRecords(3)...)
	ctx, cancel := context.WithCancel(context.Background())

	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, template, name string) (string, error) {
		if name == "food 2" {
			cancel()
		}
		return "태그: #x", nil
	}

	runner, err := NewRunner(stores.catalog, stores.tags, gen, testConfig())
	require.NoError(t, err)

	summary, err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestNewRunner_Validation(t *testing.T) {
	stores := setupStores(t)
	gen := mock.NewMockGenerator()

	_, err := NewRunner(nil, stores.tags, gen, nil)
	assert.ErrorIs(t, err, ErrCatalogRequired)

	_, err = NewRunner(stores.catalog, nil, gen, nil)
	assert.ErrorIs(t, err, ErrTagStoreRequired)

	_, err = NewRunner(stores.catalog, stores.tags, nil, nil)
	assert.ErrorIs(t, err, ErrGeneratorRequired)

	cfg := testConfig()
	cfg.Mode = ModeTuning
	_, err = NewRunner(stores.catalog, stores.tags, gen, cfg)
	assert.ErrorIs(t, err, ErrJudgeRequired)

	cfg = testConfig()
	cfg.BatchSize = 0
	_, err = NewRunner(stores.catalog, stores.tags, gen, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
