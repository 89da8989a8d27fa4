package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/visa-rescheduler/internal/ais"
	"github.com/example/visa-rescheduler/internal/domain/appointment"
	"github.com/example/visa-rescheduler/internal/notify"
)

// Querier reads facility listings; *ais.Client implements it.
type Querier interface {
	QueryDates(ctx context.Context, sess *ais.Session, facilityID int, link *ais.Link) ([]appointment.AvailableSlot, error)
	QueryTimes(ctx context.Context, sess *ais.Session, facilityID int, date string, link *ais.Link) ([]appointment.TimeSlot, error)
}

type Outcome int

const (
	Found Outcome = iota
	NotFound
	TransientError
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case TransientError:
		return "transient_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Resolution is the linker's result. Candidate is complete only when
// Outcome is Found; Step names the lookup that stopped the pipeline.
type Resolution struct {
	Outcome   Outcome
	Candidate appointment.Candidate
	Step      string
	Err       error
}

// Linker resolves a primary date into a full consulate + CAS candidate:
// primary time, then CAS date (last business day), then CAS time.
type Linker struct {
	Query       Querier
	Facility    appointment.FacilityConfig
	DesiredTime string
	Notifier    ais.Notifier
	Log         zerolog.Logger
}

const (
	StepPrimaryTime   = "consulate time"
	StepSecondaryDate = "CAS date"
	StepSecondaryTime = "CAS time"
)

func (l *Linker) Resolve(ctx context.Context, sess *ais.Session, primaryDate string) Resolution {
	log := l.Log.With().Str("comp", "linker").Str("date", primaryDate).Logger()
	c := appointment.Candidate{PrimaryDate: primaryDate}
	fac := l.Facility

	times, err := l.Query.QueryTimes(ctx, sess, fac.PrimaryFacilityID, primaryDate, nil)
	if r, stop := l.pickTime(ctx, StepPrimaryTime, c, times, err, &c.PrimaryTime); stop {
		return r
	}
	log.Info().Str("time", c.PrimaryTime).Msg("consulate time selected")

	link := &ais.Link{FacilityID: fac.PrimaryFacilityID, Date: c.PrimaryDate, Time: c.PrimaryTime}
	dates, err := l.Query.QueryDates(ctx, sess, fac.SecondaryFacilityID, link)
	if err != nil {
		return l.abort(ctx, StepSecondaryDate, c, TransientError, err)
	}
	casDate, ok := appointment.LastBusinessDay(dates)
	if !ok {
		return l.abort(ctx, StepSecondaryDate, c, NotFound, nil)
	}
	c.SecondaryDate = casDate
	log.Info().Strs("cas_dates", appointment.BusinessDays(dates)).Str("selected", casDate).Msg("CAS date selected")

	times, err = l.Query.QueryTimes(ctx, sess, fac.SecondaryFacilityID, casDate, link)
	if r, stop := l.pickTime(ctx, StepSecondaryTime, c, times, err, &c.SecondaryTime); stop {
		return r
	}
	log.Info().Str("cas_time", c.SecondaryTime).Msg("CAS time selected")

	return Resolution{Outcome: Found, Candidate: c}
}

// pickTime stores the slot closest to the desired time in dst, or returns the
// aborting resolution with stop=true.
func (l *Linker) pickTime(ctx context.Context, step string, c appointment.Candidate, slots []appointment.TimeSlot, err error, dst *string) (Resolution, bool) {
	if err != nil {
		return l.abort(ctx, step, c, TransientError, err), true
	}
	if len(slots) == 0 {
		return l.abort(ctx, step, c, NotFound, nil), true
	}
	desired := l.DesiredTime
	if desired == "" {
		desired = appointment.DefaultDesiredTime
	}
	t, err := appointment.ClosestTime(appointment.Times(slots), desired)
	if err != nil {
		return l.abort(ctx, step, c, TransientError, err), true
	}
	*dst = t
	return Resolution{}, false
}

func (l *Linker) abort(ctx context.Context, step string, c appointment.Candidate, o Outcome, err error) Resolution {
	msg := fmt.Sprintf("Could not get the %s to reschedule the appointment", step)
	ev := l.Log.Warn().Str("comp", "linker").Str("step", step).Stringer("outcome", o).Stringer("candidate", c)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
	if ctx.Err() == nil {
		l.Notifier.Notify(ctx, notify.Exception, msg)
	}
	return Resolution{Outcome: o, Candidate: c, Step: step, Err: err}
}
