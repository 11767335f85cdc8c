package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NameFunc derives the on-disk path for an event domain's log file as of
// `now` (local time, per spec.md §4.2 "rotation is time-based by local
// date"). A NameFunc that ignores `now` never rotates — used for
// domain-fixed files like trading_bot.jsonl; one keyed by calendar day
// yields the YYYY-MM-DD.jsonl trade log.
type NameFunc func(now time.Time) string

// FixedName returns a NameFunc that always resolves to the same path
// (no rotation), for domain event files named once and appended forever.
func FixedName(dir, filename string) NameFunc {
	path := filepath.Join(dir, filename)
	return func(time.Time) string { return path }
}

// DailyName returns a NameFunc that resolves to dir/YYYY-MM-DD.jsonl,
// rotating automatically at local midnight.
func DailyName(dir string) NameFunc {
	return func(now time.Time) string {
		return filepath.Join(dir, now.Format("2006-01-02")+".jsonl")
	}
}

// rotatingFile is an io.Writer that reopens its underlying file whenever
// NameFunc(time.Now()) yields a different path than the one currently
// held open. Writers open in append mode with line-buffered writes so a
// crash mid-line never corrupts a prior complete record.
type rotatingFile struct {
	mu       sync.Mutex
	nameFn   NameFunc
	curPath  string
	curFile  *os.File
}

func newRotatingFile(nameFn NameFunc) *rotatingFile {
	return &rotatingFile{nameFn: nameFn}
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.nameFn(time.Now())
	if path != r.curPath || r.curFile == nil {
		if r.curFile != nil {
			_ = r.curFile.Close()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return 0, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, fmt.Errorf("opening log file %s: %w", path, err)
		}
		r.curFile = f
		r.curPath = path
	}

	return r.curFile.Write(p)
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.curFile == nil {
		return nil
	}
	err := r.curFile.Close()
	r.curFile = nil
	return err
}
