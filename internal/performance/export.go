package performance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ridgecrest/sentrytrader/internal/models"
)

// summaryDoc mirrors contracts/performance-summary.schema.json field
// names exactly, so ExportJSON's output validates without translation.
type summaryDoc struct {
	Window             string `json:"window"`
	Start              string `json:"start"`
	End                string `json:"end"`
	TradeCount         int    `json:"trade_count"`
	WinRate            string `json:"win_rate"`
	AverageRR          string `json:"average_rr"`
	GrossPL            string `json:"gross_pl"`
	NetPL              string `json:"net_pl"`
	MaxDrawdown        string `json:"max_drawdown"`
	CurrentStreak      int    `json:"current_streak"`
	LongestWinStreak   int    `json:"longest_win_streak"`
	LongestLossStreak  int    `json:"longest_loss_streak"`
	PartialData        bool   `json:"partial_data"`
}

func toSummaryDoc(s models.PerformanceSummary) summaryDoc {
	return summaryDoc{
		Window:            string(s.Window),
		Start:             s.Start.UTC().Format(time.RFC3339),
		End:               s.End.UTC().Format(time.RFC3339),
		TradeCount:        s.TradeCount,
		WinRate:           s.WinRate.String(),
		AverageRR:         s.AverageRR.String(),
		GrossPL:           s.GrossPL.String(),
		NetPL:             s.NetPL.String(),
		MaxDrawdown:       s.MaxDrawdown.String(),
		CurrentStreak:     s.CurrentStreak,
		LongestWinStreak:  s.LongestWin,
		LongestLossStreak: s.LongestLoss,
		PartialData:       s.PartialData,
	}
}

// ExportJSON marshals summary to its schema-validated JSON form.
// schemaPath should point at contracts/performance-summary.schema.json.
func ExportJSON(summary models.PerformanceSummary, schemaPath string) ([]byte, error) {
	doc := toSummaryDoc(summary)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling performance summary: %w", err)
	}

	if schemaPath != "" {
		schema, err := LoadSchema(schemaPath)
		if err != nil {
			return nil, err
		}
		if err := schema.Validate(data); err != nil {
			return nil, fmt.Errorf("exported summary fails schema validation: %w", err)
		}
	}

	return data, nil
}

// ExportMarkdown renders summary as a human-readable Markdown report.
// Re-ingesting the JSON export and re-rendering Markdown from it is
// byte-identical, since both derive from the same summaryDoc fields.
func ExportMarkdown(summary models.PerformanceSummary) string {
	doc := toSummaryDoc(summary)
	var b strings.Builder

	fmt.Fprintf(&b, "# Performance Summary (%s)\n\n", doc.Window)
	fmt.Fprintf(&b, "- Period: %s to %s\n", doc.Start, doc.End)
	fmt.Fprintf(&b, "- Trade count: %d\n", doc.TradeCount)
	fmt.Fprintf(&b, "- Win rate: %s\n", doc.WinRate)
	fmt.Fprintf(&b, "- Average risk/reward: %s\n", doc.AverageRR)
	fmt.Fprintf(&b, "- Gross P/L: %s\n", doc.GrossPL)
	fmt.Fprintf(&b, "- Net P/L: %s\n", doc.NetPL)
	fmt.Fprintf(&b, "- Max drawdown: %s\n", doc.MaxDrawdown)
	fmt.Fprintf(&b, "- Current streak: %d\n", doc.CurrentStreak)
	fmt.Fprintf(&b, "- Longest winning streak: %d\n", doc.LongestWinStreak)
	fmt.Fprintf(&b, "- Longest losing streak: %d\n", doc.LongestLossStreak)
	if doc.PartialData {
		b.WriteString("\n> **Warning:** this window has partial data — one or more source days were missing or corrupt.\n")
	}

	return b.String()
}
