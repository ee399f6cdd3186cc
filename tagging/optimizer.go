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
	"log/slog"
	"time"

	"github.com/poiesic/tagger/ai"
	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
)

// State is a step of the per-batch optimisation loop.
type State int

const (
	StateGenerating State = iota
	StateJudging
	StateAccepted
	StateRevising
	StateAborted
	// StateExhausted means the epoch budget ran out without acceptance.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateGenerating:
		return "generating"
	case StateJudging:
		return "judging"
	case StateAccepted:
		return "accepted"
	case StateRevising:
		return "revising"
	case StateAborted:
		return "aborted"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// EpochResult is what the optimisation loop hands back for one batch.
type EpochResult struct {
	// State is the terminal state: accepted, aborted or exhausted.
	State State

	// Epochs is the number of generating phases run.
	Epochs int

	// Labels holds the final epoch's labels keyed by record ID. Records
	// missing here must not be persisted.
	Labels map[string]core.LabelSet

	// History is the final epoch's invocation history.
	History []core.Invocation

	// Failures lists the records that exhausted retries in the final epoch.
	Failures []core.Failure

	// Outcomes holds one entry per judged epoch.
	Outcomes []core.Outcome

	// Template is the template in effect after the loop.
	Template core.Template
}

// Optimizer runs the generate/judge loop for a batch until the judge accepts
// the template or the epoch budget is spent.
type Optimizer struct {
	invoker   *Invoker
	judge     ai.Judge
	templates storage.TemplateRepository
	config    *Config
	log       *OptimizationLog
	logger    *slog.Logger

	template core.Template
	batch    int
}

// NewOptimizer creates an optimizer that revises the invoker's template.
// templates and log may be nil.
func NewOptimizer(invoker *Invoker, judge ai.Judge, templates storage.TemplateRepository, config *Config, log *OptimizationLog) *Optimizer {
	return &Optimizer{
		invoker:   invoker,
		judge:     judge,
		templates: templates,
		config:    config,
		log:       log,
		logger:    slog.Default().With("component", "optimizer"),
		template:  core.Template{Text: invoker.Template()},
	}
}

// SetTemplate sets the versioned template the loop starts from.
func (o *Optimizer) SetTemplate(tmpl core.Template) {
	o.template = tmpl
	o.invoker.SetTemplate(tmpl.Text)
}

// Template returns the current versioned template.
func (o *Optimizer) Template() core.Template {
	return o.template
}

// Run optimises the template against batch. An error is returned only when
// ctx ends; every other failure is folded into the result.
func (o *Optimizer) Run(ctx context.Context, batch []core.Record) (*EpochResult, error) {
	o.batch++
	result := &EpochResult{State: StateGenerating}

	for epoch := 1; epoch <= o.config.MaxEpochs; epoch++ {
		result.Epochs = epoch
		o.invoker.ResetHistory()

		// Generating
		labels := make(map[string]core.LabelSet, len(batch))
		var failures []core.Failure
		for _, rec := range batch {
			ls, failure := o.invoker.InvokeWithRetry(ctx, rec, o.config.MaxRetries, o.config.RetryDelay)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if failure != nil {
				failures = append(failures, *failure)
				continue
			}
			labels[rec.ID] = ls
		}
		result.Labels = labels
		result.Failures = failures
		result.History = o.invoker.History()

		if len(failures) > len(batch)/2 {
			o.logger.Warn("too many failures, skipping judge",
				"batch", o.batch, "epoch", epoch, "failed", len(failures), "size", len(batch))
			continue
		}

		// Judging
		result.State = StateJudging
		outcome, verdict, err := o.judgeEpoch(ctx, epoch, result.History)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			o.logger.Warn("judge failed, keeping current template",
				"batch", o.batch, "epoch", epoch, "err", err)
			result.State = StateAborted
			break
		}
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Accepted {
			o.logger.Info("template accepted",
				"batch", o.batch, "epoch", epoch, "score", verdict.Score, "min_score", o.config.MinScore)
			result.State = StateAccepted
			break
		}

		// Revising
		result.State = StateRevising
		o.adopt(ctx, verdict)
	}

	if result.State != StateAccepted && result.State != StateAborted {
		result.State = StateExhausted
		if !o.config.PersistOnExhaustion {
			o.logger.Warn("epoch budget exhausted, labels discarded", "batch", o.batch, "epochs", result.Epochs)
			result.Labels = map[string]core.LabelSet{}
		} else {
			o.logger.Warn("epoch budget exhausted, persisting last labels", "batch", o.batch, "epochs", result.Epochs)
		}
	}
	result.Template = o.template
	return result, nil
}

// judgeEpoch sends one epoch to the judge and interprets the verdict.
func (o *Optimizer) judgeEpoch(ctx context.Context, epoch int, history []core.Invocation) (core.Outcome, core.Verdict, error) {
	entry := OptimizationEntry{
		Batch:  o.batch,
		Epoch:  epoch,
		Before: o.template.Text,
		Cases:  history,
	}

	raw, err := o.judge.Judge(ctx, o.template.Text, history)
	if err != nil {
		entry.State = StateAborted.String()
		entry.Error = err.Error()
		o.record(entry)
		return core.Outcome{}, core.Verdict{}, err
	}
	entry.Response = raw

	verdict, err := ParseVerdict(raw)
	if err == nil && verdict.Score < o.config.MinScore {
		// A revision is only usable if it still names the record.
		if slotErr := ai.CheckTemplate(verdict.RevisedTemplate); slotErr != nil {
			err = errors.Join(ErrVerdictUnparseable, slotErr)
		}
	}
	if err != nil {
		entry.State = StateAborted.String()
		entry.Error = err.Error()
		o.record(entry)
		return core.Outcome{}, core.Verdict{}, err
	}

	outcome := core.Outcome{
		RevisedTemplate: verdict.RevisedTemplate,
		Score:           verdict.Score,
		Accepted:        verdict.Score >= o.config.MinScore,
	}
	entry.Verdict = &verdict
	entry.Score = verdict.Score
	entry.Response = ""
	if outcome.Accepted {
		entry.State = StateAccepted.String()
	} else {
		entry.State = StateRevising.String()
		entry.After = verdict.RevisedTemplate
	}
	o.record(entry)
	return outcome, verdict, nil
}

// adopt makes the revised template current and writes it through.
func (o *Optimizer) adopt(ctx context.Context, verdict core.Verdict) {
	o.template = core.Template{
		Text:      verdict.RevisedTemplate,
		Version:   o.template.Version + 1,
		Score:     verdict.Score,
		UpdatedAt: time.Now(),
	}
	o.invoker.SetTemplate(o.template.Text)
	o.logger.Info("template revised", "batch", o.batch, "version", o.template.Version, "score", verdict.Score)

	if o.templates == nil {
		return
	}
	if err := o.templates.SaveTemplate(ctx, &o.template); err != nil {
		o.logger.Error("failed to persist revised template", "version", o.template.Version, "err", err)
	}
}

func (o *Optimizer) record(entry OptimizationEntry) {
	if o.log == nil {
		return
	}
	if err := o.log.Append(entry); err != nil {
		o.logger.Warn("failed to write optimisation log", "err", err)
	}
}
