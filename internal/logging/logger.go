// Package logging provides leveled logging and coherence tracing for psios.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A CoherenceLogger for structured JSONL coherence traces
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug for full trace logging.
// At this level, every per-cycle coherence row is included.
const LevelTrace = slog.LevelDebug - 4

// DiffThreshold is the minimum coherence change, per domain, for a row to
// pass the Coherence filter. Mode transitions and other events bypass it.
const DiffThreshold = 0.01

// Sources tag where a trace row originated.
const (
	SourceEngine     = "engine"
	SourceExperiment = "experiment"
	SourceOptimizer  = "optimizer"
	SourceSystem     = "system"
)

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "error", "warn", "info", "debug", "trace"
// (case-insensitive). Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// CoherenceRecord is one row of the coherence trace.
type CoherenceRecord struct {
	RunID       string  `json:"run_id,omitempty"`
	Cycle       int     `json:"cycle"`
	Domain      string  `json:"domain"`
	Coherence   float64 `json:"coherence"`
	Mode        string  `json:"mode,omitempty"`
	Stability   float64 `json:"stability,omitempty"`
	Exploration float64 `json:"exploration,omitempty"`
	Ratio       float64 `json:"ratio,omitempty"`
	Source      string  `json:"source,omitempty"`
	Details     string  `json:"details,omitempty"`
	Time        string  `json:"time"`
}

// CoherenceLogger writes coherence trace rows to a JSONL file.
// It is safe for concurrent use. A nil CoherenceLogger is safe to use;
// all methods are no-ops on nil receiver.
type CoherenceLogger struct {
	mu   sync.Mutex
	file *os.File
	last map[string]float64
}

// NewCoherenceLogger creates a trace logger writing to path.
// At "info" level and above (the default), returns nil and no file is
// created. At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewCoherenceLogger(path string, level string) *CoherenceLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &CoherenceLogger{file: f, last: make(map[string]float64)}
}

// Coherence writes rec if the domain's coherence moved by at least
// DiffThreshold since its last written row. The first row for a domain
// always passes. Safe to call on nil receiver.
func (cl *CoherenceLogger) Coherence(rec CoherenceRecord) {
	if cl == nil || cl.file == nil {
		return
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	prev, seen := cl.last[rec.Domain]
	if seen && rec.Coherence-prev < DiffThreshold && prev-rec.Coherence < DiffThreshold {
		return
	}
	cl.last[rec.Domain] = rec.Coherence
	cl.write(rec)
}

// Log writes rec unconditionally, bypassing the diff filter.
// Safe to call on nil receiver.
func (cl *CoherenceLogger) Log(rec CoherenceRecord) {
	if cl == nil || cl.file == nil {
		return
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.write(rec)
}

// write appends rec as one JSONL line. Caller holds mu.
func (cl *CoherenceLogger) write(rec CoherenceRecord) {
	rec.Time = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = cl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (cl *CoherenceLogger) Close() {
	if cl == nil || cl.file == nil {
		return
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.file.Close()
	cl.file = nil
}
