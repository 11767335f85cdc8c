package auditlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWritesNewlineDelimitedJSON(t *testing.T) {
	dir := t.TempDir()
	logger := New(dir)
	defer func() { _ = logger.Close() }()

	logger.Event(DomainTrading, "trade.rejected", "corr-1", map[string]any{"symbol": "AAPL"})
	logger.Event(DomainTrading, "trade.rejected", "corr-2", map[string]any{"symbol": "MSFT"})
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "trading_bot.jsonl"))
	require.NoError(t, err)

	lines := splitLines(data)
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "trade.rejected", rec["event"])
	assert.Equal(t, "corr-1", rec["correlation_id"])
	assert.Equal(t, "AAPL", rec["symbol"])
}

func TestUnknownDomainFallsBackToTrading(t *testing.T) {
	dir := t.TempDir()
	logger := New(dir)
	defer func() { _ = logger.Close() }()

	logger.Event(Domain("not_a_real_domain"), "some.event", "", nil)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "trading_bot.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "some.event")
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

func TestMaskUsernameRetainsEmailDomain(t *testing.T) {
	assert.Equal(t, "joh***@example.com", MaskUsername("john@example.com"))
	assert.Equal(t, "", MaskUsername(""))
	assert.Equal(t, "ab***", MaskUsername("ab"))
}

func TestMaskPasswordNeverLeaksContent(t *testing.T) {
	assert.Equal(t, maskFixed, MaskPassword("hunter2"))
	assert.Equal(t, maskFixed, MaskPassword(""))
}

func TestMaskDeviceTokenRetainsShortPrefix(t *testing.T) {
	assert.Equal(t, "abcd...", MaskDeviceToken("abcdef123456"))
	assert.Equal(t, "", MaskDeviceToken(""))
}

func TestMaskedCredentialFieldsOmitsEmptyOptionalFields(t *testing.T) {
	fields := MaskedCredentialFields("john@example.com", "hunter2", "", "")
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "password")
	assert.NotContains(t, fields, "challenge_secret")
	assert.NotContains(t, fields, "device_token")
}
