// Package journal is the append-only forensic log: one timestamped entry per
// call, one file per day (logs/log_YYYY-MM-DD.log). Nothing reads it back.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Journal struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
	zl   zerolog.Logger
}

// Open prepares dir for daily journal files. The first file is created on
// the first Append.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal dir %q: %w", dir, err)
	}
	return &Journal{dir: dir, now: time.Now}, nil
}

// FileName returns the journal file used for day t.
func (j *Journal) FileName(t time.Time) string {
	return filepath.Join(j.dir, "log_"+t.Format("2006-01-02")+".log")
}

// Append writes msg as one entry. Failures go to stderr: the journal must
// never interrupt the caller.
func (j *Journal) Append(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	if err := j.rotateLocked(now); err != nil {
		fmt.Fprintf(os.Stderr, "journal: %v\n", err)
		return
	}
	j.zl.Log().Time("time", now).Msg(msg)
}

func (j *Journal) rotateLocked(now time.Time) error {
	day := now.Format("2006-01-02")
	if j.file != nil && j.day == day {
		return nil
	}
	if j.file != nil {
		_ = j.file.Close()
		j.file = nil
	}
	f, err := os.OpenFile(j.FileName(now), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", j.FileName(now), err)
	}
	j.file = f
	j.day = day
	j.zl = zerolog.New(zerolog.SyncWriter(f))
	return nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
