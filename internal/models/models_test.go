package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ridgecrest/sentrytrader/internal/money"
)

func TestPositionDerivedFields(t *testing.T) {
	p := Position{
		Symbol:          "AAPL",
		Quantity:        10,
		AverageBuyPrice: money.FromFloat(100),
		CurrentPrice:    money.FromFloat(110),
	}
	assert.True(t, p.CostBasis().Equal(money.FromFloat(1000)))
	assert.True(t, p.CurrentValue().Equal(money.FromFloat(1100)))
	assert.True(t, p.ProfitLoss().Equal(money.FromFloat(100)))
	assert.True(t, p.ProfitLossPct().Equal(money.FromFloat(0.1)))
}

func TestPositionZeroQuantityNeverYieldsStaleProfitLoss(t *testing.T) {
	p := Position{Quantity: 0, AverageBuyPrice: money.FromFloat(50), CurrentPrice: money.FromFloat(999)}
	assert.True(t, p.ProfitLoss().Equal(money.Zero))
	assert.True(t, p.ProfitLossPct().Equal(money.Zero))
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	noExpiry := Session{}
	assert.False(t, noExpiry.Expired(now))

	future := Session{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, future.Expired(now))

	atBoundary := Session{ExpiresAt: now}
	assert.True(t, atBoundary.Expired(now), "expiry boundary is inclusive: a session expiring exactly now is expired")

	past := Session{ExpiresAt: now.Add(-time.Hour)}
	assert.True(t, past.Expired(now))
}

func TestCacheEntryValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	fresh := CacheEntry[int]{Value: 1, CachedAt: now.Add(-5 * time.Second), TTLSeconds: 60}
	assert.True(t, fresh.Valid(now))

	stale := CacheEntry[int]{Value: 1, CachedAt: now.Add(-120 * time.Second), TTLSeconds: 60}
	assert.False(t, stale.Valid(now))

	var zero CacheEntry[int]
	assert.False(t, zero.Valid(now))
}
