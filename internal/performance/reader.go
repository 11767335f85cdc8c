// Package performance is the performance-tracking engine (C11): it reads
// the trade log, builds per-day aggregates, composes weekly/monthly
// summaries, and evaluates alert thresholds. Daily aggregate snapshots
// reuse internal/atomicio's write-temp-then-rename-then-fsync pattern
// (itself adapted from the teacher's internal/storage.JSONStorage),
// applied here to DailyAggregate instead of the teacher's position/
// statistics blob.
package performance

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ridgecrest/sentrytrader/internal/money"
)

// tradeRecordLine is the on-the-wire shape of one TradeRecord JSONL line
// as written by internal/execution (via internal/auditlog). Only the
// fields the performance engine needs are decoded.
type tradeRecordLine struct {
	Event           string    `json:"event"`
	CorrelationID   string    `json:"correlation_id"`
	Timestamp       string    `json:"timestamp"`
	Symbol          string    `json:"symbol"`
	Action          string    `json:"action"`
	Shares          int       `json:"shares"`
	IntendedPrice   money.D   `json:"intended_price"`
	FilledPrice     money.D   `json:"filled_price"`
	Paper           bool      `json:"paper"`
	RiskRewardRatio money.D   `json:"risk_reward_ratio"`
	NetPL           *money.D  `json:"net_pl,omitempty"`
	BrokerOrderID   string    `json:"broker_order_id"`
}

// ReadTradeLog streams one UTC date's trade log, yielding one
// tradeRecordLine per well-formed JSON line. A truncated trailing line
// (a crash mid-write) is tolerated and silently dropped rather than
// failing the whole read, per spec.md §9 ("readers tolerate truncated
// trailing lines").
func ReadTradeLog(path string) ([]tradeRecordLine, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening trade log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var records []tradeRecordLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec tradeRecordLine
		if err := json.Unmarshal(line, &rec); err != nil {
			// Truncated or corrupt trailing line: skip rather than abort.
			continue
		}
		if rec.Event != "trade.executed" {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil && err != io.ErrUnexpectedEOF {
		return records, fmt.Errorf("scanning trade log %s: %w", path, err)
	}
	return records, nil
}
