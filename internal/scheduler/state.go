package scheduler

import "time"

type State int

const (
	LoggedOut State = iota
	Authenticating
	Polling
	Linking
	Submitting
	BanCooldown
	WorkCooldown
	Done
	Aborted
)

var stateNames = [...]string{
	LoggedOut:      "logged_out",
	Authenticating: "authenticating",
	Polling:        "polling",
	Linking:        "linking",
	Submitting:     "submitting",
	BanCooldown:    "ban_cooldown",
	WorkCooldown:   "work_cooldown",
	Done:           "done",
	Aborted:        "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) Terminal() bool { return s == Done || s == Aborted }

// WorkCycle counts activity since the last authentication.
type WorkCycle struct {
	Start    time.Time
	Requests int
}

// Elapsed never goes negative, even if the wall clock steps back.
func (w WorkCycle) Elapsed(now time.Time) time.Duration {
	d := now.Sub(w.Start)
	if d < 0 {
		return 0
	}
	return d
}
