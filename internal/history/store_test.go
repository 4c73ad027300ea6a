package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	entries := []Entry{
		{ID: "a", ToolID: "pdf-convert", InputName: "one.pdf", TargetFormat: "docx",
			InputSize: 100, OutputSize: 90, DurationSeconds: 1.5, Status: "completed", CreatedAt: base},
		{ID: "b", ToolID: "image-convert", InputName: "two.png", TargetFormat: "jpg",
			InputSize: 200, Status: "error", Error: "decode failed", CreatedAt: base.Add(time.Minute)},
		{ID: "c", ToolID: "pdf-convert", InputName: "three.pdf", TargetFormat: "txt",
			InputSize: 300, OutputSize: 20, DurationSeconds: 0.5, Status: "completed", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, s.Record(e))
	}

	recent, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID, "newest first")
	assert.Equal(t, "b", recent[1].ID)
	assert.Equal(t, "decode failed", recent[1].Error)
}

func TestStatsAggregates(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record(Entry{ID: "a", ToolID: "pdf-convert", InputName: "a.pdf",
		TargetFormat: "docx", Status: "completed", DurationSeconds: 2.0}))
	require.NoError(t, s.Record(Entry{ID: "b", ToolID: "pdf-convert", InputName: "b.pdf",
		TargetFormat: "docx", Status: "completed", DurationSeconds: 4.0}))
	require.NoError(t, s.Record(Entry{ID: "c", ToolID: "image-convert", InputName: "c.png",
		TargetFormat: "jpg", Status: "error", Error: "boom"}))

	st, err := s.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.Total)
	assert.EqualValues(t, 2, st.Completed)
	assert.EqualValues(t, 1, st.Failed)
	assert.InDelta(t, 3.0, st.AvgDurationSecs, 0.001, "failed runs excluded from the average")
	assert.EqualValues(t, 2, st.ByTool["pdf-convert"])
	assert.EqualValues(t, 1, st.ByTool["image-convert"])
}

func TestRecordFromFile(t *testing.T) {
	s := openTestStore(t)

	rec := models.FileRecord{
		ID:     "rec-1",
		Name:   "photo.png",
		Size:   1234,
		ToolID: "image-convert",
		Status: models.FileStatusCompleted,
		Result: &models.ConversionResult{
			OutputRef:       "out-1",
			OutputSize:      987,
			OutputFormat:    "jpg",
			DurationSeconds: 0.8,
		},
	}
	require.NoError(t, s.RecordFromFile(rec, ""))

	recent, err := s.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "jpg", recent[0].TargetFormat, "target falls back to the result's format")
	assert.EqualValues(t, 987, recent[0].OutputSize)
}
