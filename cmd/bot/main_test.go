package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ridgecrest/sentrytrader/internal/config"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/risk"
)

func TestSplitSymbolsParsesCommaSeparatedList(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, splitSymbols("AAPL,MSFT,GOOG"))
}

func TestSplitSymbolsEmptyStringYieldsNil(t *testing.T) {
	assert.Nil(t, splitSymbols(""))
}

func TestSplitSymbolsSkipsEmptyEntriesFromStrayCommas(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, splitSymbols("AAPL,,MSFT,"))
}

func TestStopSourcesOmitsATRWhenDisabled(t *testing.T) {
	b := &Bot{cfg: config.Config{ATREnabled: false}}
	sources := b.stopSources(models.ATRStopData{Period: 14})

	require_len(t, sources, 1)
	assert.Equal(t, risk.StopSourcePercent, sources[0].Kind)
}

func TestStopSourcesIncludesATRWhenEnabledAndComputed(t *testing.T) {
	b := &Bot{cfg: config.Config{ATREnabled: true}}
	sources := b.stopSources(models.ATRStopData{Period: 14})

	require_len(t, sources, 2)
	assert.Equal(t, risk.StopSourceATR, sources[0].Kind)
	assert.Equal(t, risk.StopSourcePercent, sources[1].Kind)
}

func TestStopSourcesOmitsATRWhenEnabledButUncomputed(t *testing.T) {
	b := &Bot{cfg: config.Config{ATREnabled: true}}
	sources := b.stopSources(models.ATRStopData{}) // zero-value: Period == 0

	require_len(t, sources, 1)
	assert.Equal(t, risk.StopSourcePercent, sources[0].Kind)
}

func require_len(t *testing.T, sources []risk.StopSource, n int) {
	t.Helper()
	if len(sources) != n {
		t.Fatalf("expected %d stop sources, got %d", n, len(sources))
	}
}
