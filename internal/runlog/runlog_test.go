package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/cashflow/internal/classify"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:   testTime,
		RunID:       "run-20250115-abcd1234",
		Processed:   6,
		Successful:  4,
		Failed:      1,
		NeedsReview: 2,
		SuccessRate: decimal.RequireFromString("66.7"),
		Elapsed:     1500 * time.Millisecond,
	}
}

func TestAppend_NewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries[0]
	assert.Equal(t, testTime, got.Timestamp)
	assert.Equal(t, "run-20250115-abcd1234", got.RunID)
	assert.Equal(t, 4, got.Successful)
	assert.Equal(t, "66.7", got.SuccessRate.String())
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	e2 := testEntry()
	e2.RunID = "run-2"
	e2.Force = true
	require.NoError(t, Append(dir, []Entry{e2}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Force)
	assert.True(t, entries[1].Force)

	data, err := os.ReadFile(filepath.Join(dir, "logs", "run-log.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "run_id"), "header written once")
}

func TestRead_Missing(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFromStats(t *testing.T) {
	e := FromStats(classify.RunStats{
		RunID:          "run-x",
		StartedAt:      testTime,
		TotalProcessed: 3,
		Successful:     2,
		Failed:         1,
		SuccessRate:    decimal.RequireFromString("66.7"),
	})
	assert.Equal(t, "run-x", e.RunID)
	assert.Equal(t, 3, e.Processed)
	assert.Equal(t, testTime, e.Timestamp)
}

func TestUnmarshalEntry_Errors(t *testing.T) {
	good := MarshalEntry(testEntry())

	_, err := UnmarshalEntry(good[:3])
	assert.Error(t, err)

	bad := append([]string(nil), good...)
	bad[colProcessed] = "many"
	_, err = UnmarshalEntry(bad)
	assert.Error(t, err)

	bad = append([]string(nil), good...)
	bad[colTimestamp] = "yesterday"
	_, err = UnmarshalEntry(bad)
	assert.Error(t, err)
}
