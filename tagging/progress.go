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
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/poiesic/tagger/core"
	"github.com/spf13/afero"
)

const progressTimeFormat = "2006-01-02 15:04:05"

// ProgressLog is an append-only diagnostic log of a run.
// It is written but never read back by the tagger.
type ProgressLog struct {
	fs   afero.Fs
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewProgressLog creates a progress log appending to path on fs.
func NewProgressLog(fs afero.Fs, path string) *ProgressLog {
	return &ProgressLog{fs: fs, path: path, now: time.Now}
}

// Restart records where a resumed run starts.
func (l *ProgressLog) Restart(total, skip int) error {
	percent := 0.0
	if total > 0 {
		percent = float64(skip) / float64(total) * 100
	}
	return l.append(
		"run restarted",
		fmt.Sprintf("total records: %s", humanize.Comma(int64(total))),
		fmt.Sprintf("skipped records: %s (%.2f%%)", humanize.Comma(int64(skip)), percent),
		fmt.Sprintf("starting at record %s", humanize.Comma(int64(skip+1))),
	)
}

// Batch records a completed batch.
func (l *ProgressLog) Batch(batch, processed, total int) error {
	percent := 0.0
	if total > 0 {
		percent = float64(processed) / float64(total) * 100
	}
	return l.append(
		fmt.Sprintf("batch #%d complete", batch),
		fmt.Sprintf("progress: %d/%d (%.2f%%)", processed, total, percent),
	)
}

// Failure records a record that exhausted its retries.
func (l *ProgressLog) Failure(f *core.Failure) error {
	return l.append(fmt.Sprintf("labelling failed after %d attempts: id=%s, name=%s: %v",
		f.Attempts, f.RecordID, f.Name, f.Err))
}

func (l *ProgressLog) append(lines ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s ---\n", l.now().Format(progressTimeFormat))
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	f, err := l.fs.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open progress log: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("write progress log: %w", err)
	}
	return f.Close()
}

// ProgressTracker tracks and reports progress of a long-running operation.
// It provides thread-safe progress updates and periodic reporting.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	current        int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of records to process
// reportInterval: report progress every N records
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if reportInterval <= 0 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress from current.
func (p *ProgressTracker) Start(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = min(current, p.total)
	p.lastReported = p.current
	p.failed = 0
}

// Increment records delta more completed records.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current = min(p.current+delta, p.total)

	// Report if we've crossed a report interval
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Fail records a record that could not be labelled.
func (p *ProgressTracker) Fail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed++
}

// Finish prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer) // Print newline after final progress
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed.Seconds()
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %s/%s (%.1f%%) - %d failed - %.1f records/s",
		humanize.Comma(int64(p.current)), humanize.Comma(int64(p.total)), percentage, p.failed, rate)
}
