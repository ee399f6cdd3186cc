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
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/tagger/ai"
	"github.com/poiesic/tagger/core"
	"golang.org/x/time/rate"
)

// Invoker calls the generator for one record at a time and keeps the
// invocation history the judge scores.
type Invoker struct {
	generator  ai.Generator
	parser     *Parser
	limiter    *rate.Limiter
	multiplier float64
	failures   *ProgressLog
	logger     *slog.Logger

	mu       sync.Mutex
	template string
	history  []core.Invocation
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithParser replaces the default output parser.
func WithParser(p *Parser) InvokerOption {
	return func(i *Invoker) {
		i.parser = p
	}
}

// WithRateLimit caps generator calls to perSecond. Zero or less disables it.
func WithRateLimit(perSecond float64) InvokerOption {
	return func(i *Invoker) {
		if perSecond > 0 {
			i.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithBackoffMultiplier grows the retry delay after every failed attempt.
func WithBackoffMultiplier(m float64) InvokerOption {
	return func(i *Invoker) {
		i.multiplier = m
	}
}

// WithFailureLog records retry-exhausted records in the progress log.
func WithFailureLog(log *ProgressLog) InvokerOption {
	return func(i *Invoker) {
		i.failures = log
	}
}

// NewInvoker creates an invoker that renders template for every call.
func NewInvoker(generator ai.Generator, template string, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		generator:  generator,
		parser:     defaultParser,
		multiplier: 1,
		template:   template,
		logger:     slog.Default().With("component", "invoker"),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Template returns the template currently used for generation.
func (i *Invoker) Template() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.template
}

// SetTemplate replaces the template used for subsequent calls.
func (i *Invoker) SetTemplate(template string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.template = template
}

// Invoke makes a single generator call for name and parses the result.
// Every successful call is appended to the history, even when it yields no labels.
func (i *Invoker) Invoke(ctx context.Context, name string) (core.LabelSet, error) {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	template := i.Template()
	raw, err := i.generator.Generate(ctx, template, name)
	if err != nil {
		return nil, err
	}

	labels, rejected := i.parser.Parse(raw)
	if len(labels) == 0 {
		i.logger.Debug("generation produced no labels", "name", name, "rejected", len(rejected))
	}

	i.mu.Lock()
	i.history = append(i.history, core.Invocation{
		Query:       name,
		RawResponse: raw,
		Labels:      labels,
		Timestamp:   time.Now(),
	})
	i.mu.Unlock()

	return labels, nil
}

// InvokeWithRetry labels rec with at most maxRetries generator calls, waiting
// retryDelay between them. It returns either the labels or a Failure, never both.
func (i *Invoker) InvokeWithRetry(ctx context.Context, rec core.Record, maxRetries int, retryDelay time.Duration) (core.LabelSet, *core.Failure) {
	var labels core.LabelSet
	attempts := 0
	err := RetryWithBackoff(ctx, func(attempt int) error {
		attempts = attempt
		out, err := i.Invoke(ctx, rec.Name)
		if err != nil {
			i.logger.Warn("generation attempt failed",
				"record_id", rec.ID, "name", rec.Name, "attempt", attempt, "max", maxRetries, "err", err)
			return err
		}
		labels = out
		return nil
	}, maxRetries, retryDelay, i.multiplier)
	if err == nil {
		return labels, nil
	}

	failure := &core.Failure{
		RecordID: rec.ID,
		Name:     rec.Name,
		Attempts: attempts,
		Err:      err,
	}
	if ctx.Err() != nil {
		i.logger.Debug("labelling interrupted", "record_id", rec.ID, "attempts", attempts, "err", err)
		return nil, failure
	}
	i.logger.Error("giving up on record",
		"record_id", rec.ID, "name", rec.Name, "attempts", attempts, "err", err)
	if i.failures != nil {
		if logErr := i.failures.Failure(failure); logErr != nil {
			i.logger.Warn("failed to write progress log", "err", logErr)
		}
	}
	return nil, failure
}

// History returns a copy of the invocations since the last reset.
func (i *Invoker) History() []core.Invocation {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]core.Invocation, len(i.history))
	copy(out, i.history)
	return out
}

// ResetHistory discards the recorded invocations.
func (i *Invoker) ResetHistory() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.history = nil
}

// LastFor returns the most recent invocation for name.
func (i *Invoker) LastFor(name string) (core.Invocation, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx := len(i.history) - 1; idx >= 0; idx-- {
		if i.history[idx].Query == name {
			return i.history[idx], true
		}
	}
	return core.Invocation{}, false
}
