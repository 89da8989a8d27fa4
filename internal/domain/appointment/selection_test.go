package appointment

import (
	"errors"
	"testing"
)

func mustWindow(t *testing.T, start, end string) TargetWindow {
	t.Helper()
	w, err := NewTargetWindow(start, end)
	if err != nil {
		t.Fatalf("NewTargetWindow(%q, %q): %v", start, end, err)
	}
	return w
}

func TestClosestTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		candidates []string
		desired    string
		want       string
	}{
		{name: "earlier wins on distance", candidates: []string{"09:00", "11:30", "14:00"}, desired: "10:00", want: "09:00"},
		{name: "default desired", candidates: []string{"08:00", "10:15"}, desired: "", want: "10:15"},
		{name: "tie keeps first", candidates: []string{"11:00", "09:00"}, desired: "10:00", want: "11:00"},
		{name: "exact", candidates: []string{"07:45", "10:00", "10:00"}, desired: "10:00", want: "10:00"},
		{name: "single", candidates: []string{"16:30"}, desired: "10:00", want: "16:30"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ClosestTime(tt.candidates, tt.desired)
			if err != nil {
				t.Fatalf("ClosestTime error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ClosestTime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClosestTimeErrors(t *testing.T) {
	t.Parallel()
	if _, err := ClosestTime(nil, "10:00"); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
	if _, err := ClosestTime([]string{"9am"}, "10:00"); err == nil {
		t.Fatal("expected error for unparseable candidate")
	}
	if _, err := ClosestTime([]string{"09:00"}, "ten"); err == nil {
		t.Fatal("expected error for unparseable desired time")
	}
}

func TestTargetWindowContains(t *testing.T) {
	t.Parallel()
	w := mustWindow(t, "2024-06-01", "2024-06-30")
	tests := []struct {
		date string
		want bool
	}{
		{"2024-06-15", true},
		{"2024-07-01", false},
		{"2024-05-31", false},
		{"2024-06-01", true},
		{"2024-06-30", true},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.date); got != tt.want {
			t.Fatalf("Contains(%q) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestNewTargetWindowRejectsInverted(t *testing.T) {
	t.Parallel()
	if _, err := NewTargetWindow("2024-07-01", "2024-06-01"); err == nil {
		t.Fatal("expected error for end before start")
	}
	if _, err := NewTargetWindow("06/01/2024", "2024-06-30"); err == nil {
		t.Fatal("expected error for bad layout")
	}
}

func TestFirstInWindowKeepsInputOrder(t *testing.T) {
	t.Parallel()
	w := mustWindow(t, "2024-06-01", "2024-06-30")
	slots := []AvailableSlot{
		{Date: "2024-08-01", BusinessDay: true},
		{Date: "2024-06-20", BusinessDay: true},
		{Date: "2024-06-05", BusinessDay: true},
	}
	got, ok := FirstInWindow(slots, w)
	if !ok || got != "2024-06-20" {
		t.Fatalf("FirstInWindow = %q (ok=%v), want 2024-06-20", got, ok)
	}

	if _, ok := FirstInWindow([]AvailableSlot{{Date: "2025-01-01"}}, w); ok {
		t.Fatal("expected no date in window")
	}
}

func TestLastBusinessDay(t *testing.T) {
	t.Parallel()
	slots := []AvailableSlot{
		{Date: "2024-06-05", BusinessDay: true},
		{Date: "2024-06-08", BusinessDay: true},
		{Date: "2024-06-09", BusinessDay: false},
	}
	got, ok := LastBusinessDay(slots)
	if !ok || got != "2024-06-08" {
		t.Fatalf("LastBusinessDay = %q (ok=%v), want 2024-06-08", got, ok)
	}
	if _, ok := LastBusinessDay([]AvailableSlot{{Date: "2024-06-09"}}); ok {
		t.Fatal("expected no business day")
	}
}

func TestCandidateComplete(t *testing.T) {
	t.Parallel()
	c := Candidate{PrimaryDate: "2024-06-10", PrimaryTime: "09:00", SecondaryDate: "2024-06-08"}
	if c.Complete() {
		t.Fatal("candidate without secondary time must not be complete")
	}
	c.SecondaryTime = "10:15"
	if !c.Complete() {
		t.Fatal("expected complete candidate")
	}
}

func TestFormatLongDate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		date, locale, want string
	}{
		{"2024-06-10", "es-co", "10 de junio de 2024"},
		{"2024-01-05", "es-mx", "5 de enero de 2024"},
		{"2024-06-10", "en-ca", "June 10, 2024"},
		{"2024-06-10", "", "June 10, 2024"},
	}
	for _, tt := range tests {
		got, err := FormatLongDate(tt.date, tt.locale)
		if err != nil {
			t.Fatalf("FormatLongDate(%q, %q): %v", tt.date, tt.locale, err)
		}
		if got != tt.want {
			t.Fatalf("FormatLongDate(%q, %q) = %q, want %q", tt.date, tt.locale, got, tt.want)
		}
	}
	if got := LongDateOrRaw("nope", "es-co"); got != "nope" {
		t.Fatalf("LongDateOrRaw = %q, want raw input", got)
	}
}
