package metrics

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEntry(t *testing.T) {
	m := NewMetrics()
	m.RecordEntry("small", 10)
	m.RecordEntry("big", 100)
	m.RecordEntry("empty", 0)

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.EntriesTotal)
	assert.Equal(t, uint64(110), s.BytesTotal)
	assert.Equal(t, "big", s.LargestEntry)
	assert.Equal(t, uint64(100), s.LargestEntrySize)

	values := m.GetMetrics()
	assert.Equal(t, int64(3), values["mytar_entries_total"])
	assert.Equal(t, uint64(110), values["mytar_bytes_total"])
}

func TestLogSummary(t *testing.T) {
	m := NewMetrics()
	m.RecordEntry("a.txt", 2)

	var buf bytes.Buffer
	m.LogSummary(zerolog.New(&buf), "create")

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "metrics summary", event["message"])
	assert.Equal(t, "create", event["op"])
	assert.Equal(t, float64(1), event["entries"])
	assert.Equal(t, "a.txt", event["largest_entry"])
}
