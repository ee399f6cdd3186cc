// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package tagging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/poiesic/tagger/ai"
	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
)

// RunSummary reports what a run did.
type RunSummary struct {
	RunID     string
	Mode      Mode
	Total     int
	Batches   int
	Succeeded int
	Processed int
	Failed    []core.Failure

	// PersistErrors joins every per-record persistence error.
	PersistErrors error

	// ResumeOffset is the skip count that resumes after this run.
	ResumeOffset int

	// Template is the template in effect when the run ended.
	Template core.Template

	Elapsed time.Duration
}

// Runner drives a tagging run over the whole catalog.
type Runner struct {
	catalog     storage.CatalogRepository
	tags        storage.TagRepository
	templates   storage.TemplateRepository
	checkpoints storage.CheckpointRepository
	generator   ai.Generator
	judge       ai.Judge
	config      *Config
	progress    *ProgressLog
	optLog      *OptimizationLog
	console     io.Writer
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithJudge sets the judge used in tuning mode.
func WithJudge(judge ai.Judge) RunnerOption {
	return func(r *Runner) {
		r.judge = judge
	}
}

// WithTemplateStore sets where the template is loaded from and revisions are written.
func WithTemplateStore(templates storage.TemplateRepository) RunnerOption {
	return func(r *Runner) {
		r.templates = templates
	}
}

// WithCheckpoints records the resume offset after every batch.
func WithCheckpoints(checkpoints storage.CheckpointRepository) RunnerOption {
	return func(r *Runner) {
		r.checkpoints = checkpoints
	}
}

// WithProgressLog sets the durable progress log.
func WithProgressLog(log *ProgressLog) RunnerOption {
	return func(r *Runner) {
		r.progress = log
	}
}

// WithOptimizationLog sets the judge exchange log used in tuning mode.
func WithOptimizationLog(log *OptimizationLog) RunnerOption {
	return func(r *Runner) {
		r.optLog = log
	}
}

// WithConsole enables periodic progress output on w.
func WithConsole(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.console = w
	}
}

// NewRunner creates a runner. The config is validated here.
func NewRunner(catalog storage.CatalogRepository, tags storage.TagRepository, generator ai.Generator, config *Config, opts ...RunnerOption) (*Runner, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if tags == nil {
		return nil, ErrTagStoreRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		catalog:   catalog,
		tags:      tags,
		generator: generator,
		config:    config,
		logger:    slog.Default().With("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if config.Mode == ModeTuning && r.judge == nil {
		return nil, ErrJudgeRequired
	}
	return r, nil
}

// batchState is the per-run state shared by the batch handlers.
type batchState struct {
	cursor  *Cursor
	invoker *Invoker
	tracker *ProgressTracker
	summary *RunSummary
}

// Run labels every unprocessed record. Record-level failures are reported in
// the summary; an error is returned only when the run cannot continue.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{
		RunID: ulid.Make().String(),
		Mode:  r.config.Mode,
	}
	logger := r.logger.With("run_id", summary.RunID)

	total, err := r.catalog.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count catalog: %w", err)
	}
	summary.Total = total

	tmpl, err := r.loadTemplate(ctx)
	if err != nil {
		return nil, err
	}
	summary.Template = tmpl

	skip := r.config.SkipCount
	if skip > 0 {
		logger.Info("resuming run", "total", total, "skip", skip)
		r.logProgress(func(l *ProgressLog) error { return l.Restart(total, skip) })
	} else {
		logger.Info("starting run", "total", total, "mode", r.config.Mode)
	}

	invokerOpts := []InvokerOption{
		WithRateLimit(r.config.RateLimit),
		WithBackoffMultiplier(r.config.BackoffMultiplier),
	}
	if r.progress != nil {
		invokerOpts = append(invokerOpts, WithFailureLog(r.progress))
	}
	state := &batchState{
		cursor:  NewCursor(r.catalog, skip),
		invoker: NewInvoker(r.generator, tmpl.Text, invokerOpts...),
		summary: summary,
	}

	var optimizer *Optimizer
	if r.config.Mode == ModeTuning {
		optimizer = NewOptimizer(state.invoker, r.judge, r.templates, r.config, r.optLog)
		optimizer.SetTemplate(tmpl)
	}

	if r.console != nil {
		state.tracker = NewProgressTracker(r.console, total, r.config.ReportInterval)
		state.tracker.Start(min(skip, total))
	}

	finish := func() {
		summary.Batches = state.cursor.Batches()
		summary.Processed = state.cursor.Processed()
		summary.ResumeOffset = state.cursor.ResumeOffset()
		if optimizer != nil {
			summary.Template = optimizer.Template()
		}
		summary.Elapsed = time.Since(start)
		if state.tracker != nil {
			state.tracker.Finish()
		}
	}

	for {
		batch, err := state.cursor.NextBatch(ctx, r.config.BatchSize)
		if err != nil {
			finish()
			return summary, fmt.Errorf("next batch: %w", err)
		}
		r.saveCheckpoint(ctx, summary.RunID, state.cursor)
		if len(batch) == 0 {
			break
		}

		number := state.cursor.Batches()
		logger.Info("batch started", "batch", number, "size", len(batch),
			"processed", state.cursor.Processed(), "total", total)

		if optimizer != nil {
			err = r.runTuning(ctx, optimizer, batch, state)
		} else {
			err = r.runProduction(ctx, batch, state)
		}
		if err != nil {
			finish()
			return summary, err
		}

		state.invoker.ResetHistory()
		r.logProgress(func(l *ProgressLog) error { return l.Batch(number, state.cursor.Processed(), total) })

		if err := sleepContext(ctx, r.config.BatchInterval); err != nil {
			finish()
			return summary, err
		}
	}

	finish()
	logger.Info("run complete",
		"processed", summary.Processed, "total", total,
		"succeeded", summary.Succeeded, "failed", len(summary.Failed),
		"elapsed", summary.Elapsed)
	return summary, nil
}

// runProduction labels and persists each record with the current template.
func (r *Runner) runProduction(ctx context.Context, batch []core.Record, state *batchState) error {
	for _, rec := range batch {
		labels, failure := state.invoker.InvokeWithRetry(ctx, rec, r.config.MaxRetries, r.config.RetryDelay)
		if err := ctx.Err(); err != nil {
			return err
		}
		if failure != nil {
			r.recordFailure(*failure, state)
			continue
		}
		if err := r.persist(ctx, rec, labels, state); err != nil {
			return err
		}
	}
	return nil
}

// runTuning optimises the template on the batch, then persists the labels of
// the final epoch.
func (r *Runner) runTuning(ctx context.Context, optimizer *Optimizer, batch []core.Record, state *batchState) error {
	result, err := optimizer.Run(ctx, batch)
	if err != nil {
		return err
	}
	r.logger.Info("batch optimised", "state", result.State, "epochs", result.Epochs,
		"template_version", result.Template.Version)

	for _, f := range result.Failures {
		r.recordFailure(f, state)
	}
	for _, rec := range batch {
		labels, ok := result.Labels[rec.ID]
		if !ok {
			state.cursor.MarkFailed(rec.ID)
			continue
		}
		if err := r.persist(ctx, rec, labels, state); err != nil {
			return err
		}
	}
	return nil
}

// persist stores one record's labels and advances the cursor. Only errors
// that make the store unusable are returned.
func (r *Runner) persist(ctx context.Context, rec core.Record, labels core.LabelSet, state *batchState) error {
	err := r.tags.AddRecordTags(ctx, rec.ID, labels)
	if err == nil {
		state.cursor.MarkProcessed(rec.ID)
		state.summary.Succeeded++
		if state.tracker != nil {
			state.tracker.Increment(1)
		}
		r.logger.Debug("labels stored", "record_id", rec.ID, "name", rec.Name, "labels", labels)
		return nil
	}

	if errors.Is(err, storage.ErrStorageClosed) || ctx.Err() != nil {
		return fmt.Errorf("persist record %s: %w", rec.ID, err)
	}
	r.logger.Error("failed to store labels", "record_id", rec.ID, "name", rec.Name, "err", err)
	state.summary.PersistErrors = errors.Join(state.summary.PersistErrors,
		fmt.Errorf("record %s: %w", rec.ID, err))
	state.cursor.MarkFailed(rec.ID)
	if state.tracker != nil {
		state.tracker.Fail()
	}
	return nil
}

func (r *Runner) recordFailure(f core.Failure, state *batchState) {
	state.summary.Failed = append(state.summary.Failed, f)
	state.cursor.MarkFailed(f.RecordID)
	if state.tracker != nil {
		state.tracker.Fail()
	}
}

// loadTemplate returns the stored template, seeding the store with the
// default when it is empty.
func (r *Runner) loadTemplate(ctx context.Context) (core.Template, error) {
	seed := core.Template{Text: DefaultTemplate, UpdatedAt: time.Now()}
	if r.templates == nil {
		return seed, nil
	}

	stored, err := r.templates.LoadTemplate(ctx)
	if err != nil {
		return core.Template{}, fmt.Errorf("load template: %w", err)
	}
	if stored == nil {
		if err := r.templates.SaveTemplate(ctx, &seed); err != nil {
			return core.Template{}, fmt.Errorf("seed template: %w", err)
		}
		return seed, nil
	}
	if err := ai.CheckTemplate(stored.Text); err != nil {
		return core.Template{}, fmt.Errorf("stored template version %d: %w", stored.Version, err)
	}
	return *stored, nil
}

func (r *Runner) saveCheckpoint(ctx context.Context, runID string, cursor *Cursor) {
	if r.checkpoints == nil {
		return
	}
	cp := &core.Checkpoint{
		RunID:     runID,
		Offset:    cursor.ResumeOffset(),
		Processed: cursor.Processed(),
		UpdatedAt: time.Now(),
	}
	if err := r.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		r.logger.Warn("failed to save checkpoint", "run_id", runID, "err", err)
	}
}

func (r *Runner) logProgress(write func(*ProgressLog) error) {
	if r.progress == nil {
		return
	}
	if err := write(r.progress); err != nil {
		r.logger.Warn("failed to write progress log", "err", err)
	}
}
