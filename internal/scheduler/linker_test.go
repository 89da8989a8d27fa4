package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/visa-rescheduler/internal/ais"
	"github.com/example/visa-rescheduler/internal/ais/aistest"
	"github.com/example/visa-rescheduler/internal/domain/appointment"
	"github.com/example/visa-rescheduler/internal/notify"
)

var testFacility = appointment.FacilityConfig{
	PrimaryFacilityID:   25,
	SecondaryFacilityID: 26,
	Locale:              "es-co",
	ContinueMarker:      "Continuar",
	LoginFailureMarker:  "inválida",
}

// stubQuerier answers by facility; the CAS facility receives the link.
type stubQuerier struct {
	primaryDates []appointment.AvailableSlot
	primaryTimes []appointment.TimeSlot
	casDates     []appointment.AvailableSlot
	casTimes     []appointment.TimeSlot
	casTimesErr  error

	links []*ais.Link
}

func (q *stubQuerier) QueryDates(_ context.Context, _ *ais.Session, facilityID int, link *ais.Link) ([]appointment.AvailableSlot, error) {
	if facilityID == testFacility.SecondaryFacilityID {
		q.links = append(q.links, link)
		return q.casDates, nil
	}
	return q.primaryDates, nil
}

func (q *stubQuerier) QueryTimes(_ context.Context, _ *ais.Session, facilityID int, _ string, link *ais.Link) ([]appointment.TimeSlot, error) {
	if facilityID == testFacility.SecondaryFacilityID {
		q.links = append(q.links, link)
		return q.casTimes, q.casTimesErr
	}
	return q.primaryTimes, nil
}

func slots(times ...string) []appointment.TimeSlot {
	out := make([]appointment.TimeSlot, 0, len(times))
	for _, t := range times {
		out = append(out, appointment.TimeSlot{Time: t})
	}
	return out
}

func days(business bool, dates ...string) []appointment.AvailableSlot {
	out := make([]appointment.AvailableSlot, 0, len(dates))
	for _, d := range dates {
		out = append(out, appointment.AvailableSlot{Date: d, BusinessDay: business})
	}
	return out
}

func TestLinkerResolve(t *testing.T) {
	tests := []struct {
		name     string
		q        *stubQuerier
		want     Outcome
		wantStep string
	}{
		{
			name: "found",
			q: &stubQuerier{
				primaryTimes: slots("09:00", "13:00"),
				casDates:     days(true, "2024-06-05", "2024-06-08"),
				casTimes:     slots("08:00", "10:15"),
			},
			want: Found,
		},
		{
			name:     "no consulate times",
			q:        &stubQuerier{},
			want:     NotFound,
			wantStep: StepPrimaryTime,
		},
		{
			name: "only non business CAS days",
			q: &stubQuerier{
				primaryTimes: slots("09:00"),
				casDates:     days(false, "2024-06-05"),
			},
			want:     NotFound,
			wantStep: StepSecondaryDate,
		},
		{
			name: "CAS times exhausted",
			q: &stubQuerier{
				primaryTimes: slots("09:00"),
				casDates:     days(true, "2024-06-05"),
				casTimesErr:  &ais.QueryError{URL: "x", Attempts: 5, Err: errors.New("boom")},
			},
			want:     TransientError,
			wantStep: StepSecondaryTime,
		},
		{
			name: "no CAS times",
			q: &stubQuerier{
				primaryTimes: slots("09:00"),
				casDates:     days(true, "2024-06-05"),
			},
			want:     NotFound,
			wantStep: StepSecondaryTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &aistest.Notifier{}
			l := &Linker{Query: tt.q, Facility: testFacility, Notifier: n, Log: zerolog.Nop()}

			res := l.Resolve(context.Background(), nil, "2024-06-10")
			if res.Outcome != tt.want {
				t.Fatalf("Outcome = %s, want %s (step %q, err %v)", res.Outcome, tt.want, res.Step, res.Err)
			}
			if tt.want == Found {
				want := appointment.Candidate{PrimaryDate: "2024-06-10", PrimaryTime: "09:00", SecondaryDate: "2024-06-08", SecondaryTime: "10:15"}
				if res.Candidate != want {
					t.Fatalf("Candidate = %+v, want %+v", res.Candidate, want)
				}
				if len(n.Sent()) != 0 {
					t.Fatalf("unexpected notifications %v", n.Sent())
				}
				for _, link := range tt.q.links {
					if link == nil || *link != (ais.Link{FacilityID: 25, Date: "2024-06-10", Time: "09:00"}) {
						t.Fatalf("CAS query link = %+v", link)
					}
				}
				return
			}
			if res.Step != tt.wantStep {
				t.Fatalf("Step = %q, want %q", res.Step, tt.wantStep)
			}
			if res.Candidate.Complete() {
				t.Fatalf("aborted resolution carries a complete candidate")
			}
			titles := n.Titles()
			if len(titles) != 1 || titles[0] != notify.Exception {
				t.Fatalf("notifications = %v, want one EXCEPTION", titles)
			}
		})
	}
}

func TestLinkerUsesDesiredTime(t *testing.T) {
	q := &stubQuerier{
		primaryTimes: slots("09:00", "13:00"),
		casDates:     days(true, "2024-06-05"),
		casTimes:     slots("08:00", "14:00"),
	}
	l := &Linker{Query: q, Facility: testFacility, DesiredTime: "14:00", Notifier: &aistest.Notifier{}, Log: zerolog.Nop()}

	res := l.Resolve(context.Background(), nil, "2024-06-10")
	if res.Candidate.PrimaryTime != "13:00" || res.Candidate.SecondaryTime != "14:00" {
		t.Fatalf("Candidate = %+v", res.Candidate)
	}
}
