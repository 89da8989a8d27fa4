package appointment

import (
	"fmt"
	"strings"
	"time"
)

// Layouts used by the scheduling service for dates and wall-clock times.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// AvailableSlot is one entry of a facility's date listing.
type AvailableSlot struct {
	Date        string `json:"date"`
	BusinessDay bool   `json:"business_day"`
}

// TimeSlot is a local facility time ("09:30"), no timezone attached.
type TimeSlot struct {
	Time string
}

func Times(slots []TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time)
	}
	return out
}

func Dates(slots []AvailableSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Date)
	}
	return out
}

// TargetWindow is the inclusive date range a reschedule must land in.
type TargetWindow struct {
	Start time.Time
	End   time.Time
}

func NewTargetWindow(start, end string) (TargetWindow, error) {
	s, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return TargetWindow{}, fmt.Errorf("invalid window start %q (want YYYY-MM-DD)", start)
	}
	e, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return TargetWindow{}, fmt.Errorf("invalid window end %q (want YYYY-MM-DD)", end)
	}
	if e.Before(s) {
		return TargetWindow{}, fmt.Errorf("window end %s is before start %s", end, start)
	}
	return TargetWindow{Start: s, End: e}, nil
}

// Contains reports whether date (YYYY-MM-DD) lies inside the window, bounds included.
// Unparseable dates are never inside.
func (w TargetWindow) Contains(date string) bool {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w TargetWindow) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

// FacilityConfig identifies the primary (consulate) and secondary (CAS)
// facilities plus the locale specific page markers used during login.
type FacilityConfig struct {
	PrimaryFacilityID   int
	SecondaryFacilityID int
	Locale              string
	LoginFailureMarker  string
	ContinueMarker      string
}

// Candidate is built up step by step by the linker; it may only be
// submitted once Complete reports true.
type Candidate struct {
	PrimaryDate   string
	PrimaryTime   string
	SecondaryDate string
	SecondaryTime string
}

func (c Candidate) Complete() bool {
	return c.PrimaryDate != "" && c.PrimaryTime != "" && c.SecondaryDate != "" && c.SecondaryTime != ""
}

func (c Candidate) String() string {
	return fmt.Sprintf("consulate=%s %s cas=%s %s", c.PrimaryDate, c.PrimaryTime, c.SecondaryDate, c.SecondaryTime)
}
