package scheduler

import (
	"sync"
	"time"

	"github.com/example/visa-rescheduler/internal/domain/appointment"
)

// Snapshot is a point-in-time view of the loop for status pages.
type Snapshot struct {
	RunID       string
	State       string
	Since       time.Time
	CycleStart  time.Time
	Requests    int
	LastDates   []string
	LastOutcome string
	Candidate   *appointment.Candidate
	LastError   string
}

// Status is written by the loop and read concurrently by the web server.
type Status struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStatus(runID string) *Status {
	return &Status{snap: Snapshot{RunID: runID, State: LoggedOut.String(), Since: time.Now()}}
}

func (s *Status) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.LastDates = append([]string(nil), s.snap.LastDates...)
	if s.snap.Candidate != nil {
		c := *s.snap.Candidate
		out.Candidate = &c
	}
	return out
}

func (s *Status) update(fn func(*Snapshot)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
}
