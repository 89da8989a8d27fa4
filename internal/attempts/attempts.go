// Package attempts keeps the history of polling cycle outcomes so an
// operator can see what a long-running session has been doing.
package attempts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Outcome string

const (
	Ban              Outcome = "ban"
	Rest             Outcome = "rest"
	NoDate           Outcome = "no_date"
	RescheduleFailed Outcome = "reschedule_failed"
	Rescheduled      Outcome = "rescheduled"
	Aborted          Outcome = "aborted"
)

type Attempt struct {
	ID          int64
	RunID       string
	Outcome     Outcome
	Requests    int
	PrimaryDate string
	Detail      string
	CreatedAt   time.Time
}

type Store interface {
	Record(ctx context.Context, a Attempt) error
	Recent(ctx context.Context, limit int) ([]Attempt, error)
	Close() error
}

var ErrUnknownDriver = errors.New("attempts: unknown driver")

// Open returns the store for driver. An empty driver disables history and
// returns (nil, nil).
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "":
		return nil, nil
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, driver)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 50
	}
	return limit
}
