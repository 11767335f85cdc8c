package brokerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client())
}

func jsonHandler(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}

func TestFetchBuyingPowerParsesDecimalResponse(t *testing.T) {
	c := newTestServer(t, jsonHandler(http.StatusOK, map[string]string{"buying_power": "1234.56"}))

	bp, err := c.FetchBuyingPower(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "1234.56", bp.String())
}

func TestFetchBuyingPowerRejectsMalformedDecimal(t *testing.T) {
	c := newTestServer(t, jsonHandler(http.StatusOK, map[string]string{"buying_power": "not-a-number"}))

	_, err := c.FetchBuyingPower(context.Background())

	require.Error(t, err)
	assert.True(t, retryx.IsDataValidationError(err))
}

func TestDoMapsRateLimitResponseToRateLimitError(t *testing.T) {
	c := newTestServer(t, jsonHandler(http.StatusTooManyRequests, nil))

	_, err := c.FetchBuyingPower(context.Background())

	require.Error(t, err)
	assert.True(t, retryx.IsRateLimit(err))
}

func TestDoMapsUnauthorizedToAuthFailure(t *testing.T) {
	c := newTestServer(t, jsonHandler(http.StatusUnauthorized, nil))

	err := c.Probe(context.Background())

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestDoMapsForbiddenToAuthFailure(t *testing.T) {
	c := newTestServer(t, jsonHandler(http.StatusForbidden, nil))

	err := c.Probe(context.Background())

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestDoMapsServerErrorToRetriable(t *testing.T) {
	c := newTestServer(t, jsonHandler(http.StatusInternalServerError, nil))

	_, err := c.FetchBuyingPower(context.Background())

	require.Error(t, err)
	assert.True(t, retryx.IsRetriable(err))
}

func TestDoMapsBadRequestToNonRetriable(t *testing.T) {
	c := newTestServer(t, jsonHandler(http.StatusBadRequest, nil))

	_, err := c.FetchBuyingPower(context.Background())

	require.Error(t, err)
	assert.False(t, retryx.IsRetriable(err))
	assert.False(t, IsAuthError(err))
}

func TestIsAuthErrorFalseForUnrelatedError(t *testing.T) {
	assert.False(t, IsAuthError(&retryx.RetriableError{Cause: context.DeadlineExceeded}))
}

func TestFetchPositionsParsesEachEntry(t *testing.T) {
	body := []map[string]any{
		{"symbol": "AAPL", "quantity": 10, "average_buy_price": "100.00", "current_price": "110.00"},
		{"symbol": "MSFT", "quantity": 5, "average_buy_price": "200.00", "current_price": "190.00"},
	}
	c := newTestServer(t, jsonHandler(http.StatusOK, body))

	positions, err := c.FetchPositions(context.Background())

	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, 10, positions[0].Quantity)
}

func TestFetchQuoteParsesPriceAndState(t *testing.T) {
	body := map[string]any{
		"symbol": "AAPL", "price": "150.25", "timestamp": time.Now().UTC().Format(time.RFC3339), "market_state": "open",
	}
	c := newTestServer(t, jsonHandler(http.StatusOK, body))

	quote, err := c.FetchQuote(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "150.25", quote.CurrentPrice.String())
	assert.Equal(t, models.MarketState("open"), quote.MarketState)
}

func TestSubmitOrderParsesBrokerOrderIDAndFilledPrice(t *testing.T) {
	body := map[string]string{"order_id": "ord-1", "filled_price": "101.75"}
	c := newTestServer(t, jsonHandler(http.StatusOK, body))

	orderID, filled, err := c.SubmitOrder(context.Background(), "AAPL", models.ActionBuy, 10, money.FromFloat(100), "client-1")

	require.NoError(t, err)
	assert.Equal(t, "ord-1", orderID)
	assert.Equal(t, "101.75", filled.String())
}

func TestAuthenticateReturnsSessionAndChallengeKind(t *testing.T) {
	body := map[string]any{
		"token": "tok-1", "expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339), "challenge_required": "totp",
	}
	c := newTestServer(t, jsonHandler(http.StatusOK, body))

	result, err := c.Authenticate(context.Background(), models.Credentials{Username: "a@b.com", Password: "x"})

	require.NoError(t, err)
	assert.Equal(t, "tok-1", result.Session.Token)
	assert.Equal(t, "totp", result.Needs)
}
