package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Metrics collects per-run counters for archive creation and extraction
type Metrics struct {
	mu sync.RWMutex

	// Entry metrics
	EntriesTotal     int64
	BytesTotal       uint64
	LargestEntry     string
	LargestEntrySize uint64

	// Timing
	StartTime time.Time
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	EntriesTotal     int64
	BytesTotal       uint64
	LargestEntry     string
	LargestEntrySize uint64
	Elapsed          time.Duration
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// RecordEntry records one archived or extracted entry
func (m *Metrics) RecordEntry(name string, size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EntriesTotal++
	m.BytesTotal += size

	if m.LargestEntry == "" || size > m.LargestEntrySize {
		m.LargestEntry = name
		m.LargestEntrySize = size
	}
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		EntriesTotal:     m.EntriesTotal,
		BytesTotal:       m.BytesTotal,
		LargestEntry:     m.LargestEntry,
		LargestEntrySize: m.LargestEntrySize,
		Elapsed:          time.Since(m.StartTime),
	}
}

// GetMetrics returns metrics keyed by exported metric name
func (m *Metrics) GetMetrics() map[string]interface{} {
	s := m.Snapshot()

	return map[string]interface{}{
		"mytar_entries_total":         s.EntriesTotal,
		"mytar_bytes_total":           s.BytesTotal,
		"mytar_largest_entry_bytes":   s.LargestEntrySize,
		"mytar_elapsed_seconds_total": s.Elapsed.Seconds(),
	}
}

// LogSummary logs a summary of the run for the given operation
func (m *Metrics) LogSummary(logger zerolog.Logger, op string) {
	s := m.Snapshot()

	rate := float64(0)
	if s.Elapsed > 0 {
		rate = float64(s.BytesTotal) / s.Elapsed.Seconds()
	}

	logger.Info().
		Str("op", op).
		Int64("entries", s.EntriesTotal).
		Uint64("bytes", s.BytesTotal).
		Str("largest_entry", s.LargestEntry).
		Uint64("largest_entry_bytes", s.LargestEntrySize).
		Dur("elapsed", s.Elapsed).
		Float64("bytes_per_second", rate).
		Msg("metrics summary")
}
