// Package auditlog is the structured logger (C2): newline-delimited JSON
// audit records, one event domain per file, daily rotation where the
// domain calls for it, mandatory credential masking, and decimal-
// preserving serialization of monetary fields. Built on
// github.com/rs/zerolog, matching the corpus's logging idiom (seen in
// Inkedup1114-bitunixbot, aristath-sentinel, poorman-SynapseStrike).
package auditlog

import (
	"time"

	"github.com/rs/zerolog"
)

// Domain names the physical log file a set of events is written to.
type Domain string

const (
	DomainTrading     Domain = "trading_bot"
	DomainHealth      Domain = "health_check"
	DomainPerfAlert   Domain = "performance-alerts"
	DomainTradeRecord Domain = "trade_record" // logs/YYYY-MM-DD.jsonl, one TradeRecord per line
)

// Logger multiplexes structured events across the bot's event domains.
type Logger struct {
	dir     string
	writers map[Domain]*rotatingFile
	loggers map[Domain]zerolog.Logger
}

// New constructs a Logger rooted at dir (typically "logs"). Domains with
// fixed filenames never rotate; DomainTradeRecord rotates by UTC calendar
// day per spec.md §6 ("one JSONL file per UTC date").
func New(dir string) *Logger {
	l := &Logger{
		dir:     dir,
		writers: make(map[Domain]*rotatingFile),
		loggers: make(map[Domain]zerolog.Logger),
	}

	nameFns := map[Domain]NameFunc{
		DomainTrading:     FixedName(dir, "trading_bot.jsonl"),
		DomainHealth:      FixedName(dir, "health_check.jsonl"),
		DomainPerfAlert:   FixedName(dir, "performance-alerts.jsonl"),
		DomainTradeRecord: dailyUTCName(dir),
	}

	zerolog.TimestampFieldName = "timestamp"
	zerolog.TimeFieldFormat = time.RFC3339

	for domain, fn := range nameFns {
		w := newRotatingFile(fn)
		l.writers[domain] = w
		l.loggers[domain] = zerolog.New(w).With().Timestamp().Logger()
	}

	return l
}

// dailyUTCName rotates by UTC calendar day rather than local date, since
// the trade log's filename is explicitly a UTC date per spec.md §6.
func dailyUTCName(dir string) NameFunc {
	base := DailyName(dir)
	return func(time.Time) string {
		return base(time.Now().UTC())
	}
}

// Event writes one structured record to the named domain's file. Fields
// are merged onto the base timestamp/event/correlation_id envelope;
// decimal.Decimal field values serialize as their string form natively.
func (l *Logger) Event(domain Domain, event string, correlationID string, fields map[string]any) {
	logger, ok := l.loggers[domain]
	if !ok {
		logger = l.loggers[DomainTrading]
	}
	evt := logger.Log().Str("event", event)
	if correlationID != "" {
		evt = evt.Str("correlation_id", correlationID)
	}
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Send()
}

// Close flushes and closes every open log file.
func (l *Logger) Close() error {
	var firstErr error
	for _, w := range l.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MaskedCredentialFields returns a field map safe to pass to Event,
// applying the mandatory masking rules for a login/challenge event.
func MaskedCredentialFields(username, password, challengeSecret, deviceToken string) map[string]any {
	fields := map[string]any{
		"username": MaskUsername(username),
		"password": MaskPassword(password),
	}
	if challengeSecret != "" {
		fields["challenge_secret"] = MaskChallengeSecret(challengeSecret)
	}
	if deviceToken != "" {
		fields["device_token"] = MaskDeviceToken(deviceToken)
	}
	return fields
}
