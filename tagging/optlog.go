package tagging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/poiesic/tagger/core"
	"github.com/spf13/afero"
)

// OptimizationEntry is one judge exchange.
type OptimizationEntry struct {
	Time     time.Time         `json:"time"`
	Batch    int               `json:"batch"`
	Epoch    int               `json:"epoch"`
	Before   string            `json:"before"`
	After    string            `json:"after,omitempty"`
	Score    float64           `json:"score"`
	State    string            `json:"state"`
	Cases    []core.Invocation `json:"output_cases"`
	Verdict  *core.Verdict     `json:"verdict,omitempty"`
	Response string            `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// OptimizationLog appends judge exchanges as JSON lines.
type OptimizationLog struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewOptimizationLog creates a log appending to path on fs.
func NewOptimizationLog(fs afero.Fs, path string) *OptimizationLog {
	return &OptimizationLog{fs: fs, path: path}
}

// Append writes entry as a single line.
func (l *OptimizationLog) Append(entry OptimizationEntry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode optimisation entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.fs.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open optimisation log: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write optimisation log: %w", err)
	}
	return f.Close()
}
