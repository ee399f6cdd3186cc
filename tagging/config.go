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
	"fmt"
	"strings"
	"time"
)

// Mode selects how a run labels each batch.
type Mode string

const (
	// ModeProduction labels every record with the current template, no judging.
	ModeProduction Mode = "production"

	// ModeTuning runs the optimisation loop on every batch before persisting.
	ModeTuning Mode = "tuning"
)

// ParseMode converts a user-supplied mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeProduction:
		return ModeProduction, nil
	case ModeTuning:
		return ModeTuning, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

// Config controls a tagging run.
type Config struct {
	// BatchSize is the number of records pulled from the catalog per batch.
	BatchSize int

	// MaxEpochs bounds the generate/judge iterations per batch in tuning mode.
	MaxEpochs int

	// MinScore is the judge score at or above which a template is accepted.
	MinScore float64

	// SkipCount marks the first N catalog records as already processed.
	SkipCount int

	// MaxRetries is the total number of generation attempts per record.
	MaxRetries int

	// RetryDelay is the wait between generation attempts.
	RetryDelay time.Duration

	// BackoffMultiplier grows RetryDelay after each failed attempt.
	// Values <= 1 keep the delay constant.
	BackoffMultiplier float64

	// BatchInterval is the pause between batches.
	BatchInterval time.Duration

	// Mode selects production or tuning behavior.
	Mode Mode

	// ReportInterval is how many records pass between console progress reports.
	ReportInterval int

	// PersistOnExhaustion persists the last epoch's labels when the epoch
	// budget runs out without an accepted score.
	PersistOnExhaustion bool

	// RateLimit caps generator calls per second. Zero disables limiting.
	RateLimit float64
}

// DefaultConfig returns a Config with the stock run settings.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:           100,
		MaxEpochs:           10,
		MinScore:            85,
		MaxRetries:          20,
		RetryDelay:          5 * time.Second,
		BackoffMultiplier:   1,
		BatchInterval:       time.Second,
		Mode:                ModeProduction,
		ReportInterval:      10,
		PersistOnExhaustion: true,
	}
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MaxEpochs <= 0 {
		return fmt.Errorf("%w: max epochs must be positive, got %d", ErrInvalidConfig, c.MaxEpochs)
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("%w: min score must be between 0 and 100, got %v", ErrInvalidConfig, c.MinScore)
	}
	if c.SkipCount < 0 {
		return fmt.Errorf("%w: skip count cannot be negative", ErrInvalidConfig)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidMaxAttempts)
	}
	if c.RetryDelay < 0 || c.BatchInterval < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit cannot be negative", ErrInvalidConfig)
	}
	switch c.Mode {
	case ModeProduction, ModeTuning:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}
