package appointment

import (
	"errors"
	"fmt"
	"time"
)

// DefaultDesiredTime is the time of day ClosestTime aims for when the caller has no preference.
const DefaultDesiredTime = "10:00"

var ErrNoCandidates = errors.New("no candidate times")

// ClosestTime returns the candidate whose hour:minute is nearest to desired.
// Ties keep the earlier entry of candidates.
func ClosestTime(candidates []string, desired string) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoCandidates
	}
	if desired == "" {
		desired = DefaultDesiredTime
	}
	target, err := time.Parse(TimeLayout, desired)
	if err != nil {
		return "", fmt.Errorf("invalid desired time %q: %w", desired, err)
	}

	best := ""
	var bestDiff time.Duration
	for _, c := range candidates {
		t, err := time.Parse(TimeLayout, c)
		if err != nil {
			return "", fmt.Errorf("invalid candidate time %q: %w", c, err)
		}
		diff := t.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if best == "" || diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best, nil
}

// FirstInWindow returns the first date, in the order received, that falls
// inside w. business_day is not consulted here.
func FirstInWindow(slots []AvailableSlot, w TargetWindow) (string, bool) {
	for _, s := range slots {
		if w.Contains(s.Date) {
			return s.Date, true
		}
	}
	return "", false
}

// BusinessDays keeps the dates flagged as business days, preserving order.
func BusinessDays(slots []AvailableSlot) []string {
	var out []string
	for _, s := range slots {
		if s.BusinessDay {
			out = append(out, s.Date)
		}
	}
	return out
}

// LastBusinessDay picks the latest business day of an ascending listing.
// Linked facility dates prefer the most buffered slot, unlike FirstInWindow.
func LastBusinessDay(slots []AvailableSlot) (string, bool) {
	days := BusinessDays(slots)
	if len(days) == 0 {
		return "", false
	}
	return days[len(days)-1], true
}
