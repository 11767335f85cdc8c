package performance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTradeLogMissingFileReturnsEmptyNoError(t *testing.T) {
	records, err := ReadTradeLog(filepath.Join(t.TempDir(), "2026-01-01.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestReadTradeLogSkipsTruncatedTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2026-01-01.jsonl")
	body := `{"event":"trade.executed","symbol":"AAPL","shares":10}
{"event":"trade.executed","symbol":"MSFT","shares":5}
{"event":"trade.executed","symbol":"GOOG","share` // truncated trailing line
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	records, err := ReadTradeLog(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "AAPL", records[0].Symbol)
	assert.Equal(t, "MSFT", records[1].Symbol)
}

func TestReadTradeLogSkipsNonTradeExecutedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2026-01-01.jsonl")
	body := `{"event":"trade.rejected","symbol":"AAPL"}
{"event":"trade.executed","symbol":"MSFT"}
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	records, err := ReadTradeLog(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "MSFT", records[0].Symbol)
}
