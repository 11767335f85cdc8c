package performance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
)

func TestSaveAndLoadAggregateRoundTrips(t *testing.T) {
	store := NewStore(t.TempDir())
	agg := models.DailyAggregate{
		Date:       "2026-01-01",
		TradeCount: 2,
		Wins:       1,
		Losses:     1,
		NetPL:      money.FromFloat(20),
	}

	require.NoError(t, store.SaveAggregate(agg))
	loaded, ok := store.LoadAggregate("2026-01-01")
	require.True(t, ok)
	assert.Equal(t, agg.TradeCount, loaded.TradeCount)
	assert.True(t, agg.NetPL.Equal(loaded.NetPL))
}

func TestLoadAggregateMissingReturnsFalse(t *testing.T) {
	store := NewStore(t.TempDir())
	_, ok := store.LoadAggregate("2026-01-01")
	assert.False(t, ok)
}

func TestLoadAggregateCorruptFileReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-01-01.json"), []byte("not json"), 0o644))

	_, ok := store.LoadAggregate("2026-01-01")
	assert.False(t, ok)
}

func TestSaveAndLoadIndexRoundTrips(t *testing.T) {
	store := NewStore(t.TempDir())
	idx := Index{Entries: map[string]IndexEntry{
		"2026-01-01": {Checksum: "abc123", LastOffset: 3},
	}}

	require.NoError(t, store.SaveIndex(idx))
	loaded := store.LoadIndex()
	require.Contains(t, loaded.Entries, "2026-01-01")
	assert.Equal(t, "abc123", loaded.Entries["2026-01-01"].Checksum)
}

func TestLoadIndexMissingReturnsEmptyNotNil(t *testing.T) {
	store := NewStore(t.TempDir())
	idx := store.LoadIndex()
	assert.NotNil(t, idx.Entries)
	assert.Empty(t, idx.Entries)
}

func TestChecksumFileMatchesSameContentDiffersOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("line one\n"), 0o644))
	sum1 := ChecksumFile(path)

	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o644))
	sum2 := ChecksumFile(path)

	assert.NotEmpty(t, sum1)
	assert.NotEqual(t, sum1, sum2)
}

func TestChecksumFileMissingReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", ChecksumFile(filepath.Join(t.TempDir(), "absent.jsonl")))
}

func TestNeedsRebuildWhenAggregateMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	assert.True(t, store.NeedsRebuild("2026-01-01", filepath.Join(t.TempDir(), "log.jsonl")))
}

func TestNeedsRebuildWhenChecksumMismatches(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	logPath := filepath.Join(dir, "2026-01-01.jsonl")
	require.NoError(t, os.WriteFile(logPath, []byte("original\n"), 0o644))

	require.NoError(t, store.SaveAggregate(models.DailyAggregate{Date: "2026-01-01"}))
	idx := Index{Entries: map[string]IndexEntry{
		"2026-01-01": {Checksum: ChecksumFile(logPath)},
	}}
	require.NoError(t, store.SaveIndex(idx))

	assert.False(t, store.NeedsRebuild("2026-01-01", logPath))

	require.NoError(t, os.WriteFile(logPath, []byte("changed\n"), 0o644))
	assert.True(t, store.NeedsRebuild("2026-01-01", logPath))
}
