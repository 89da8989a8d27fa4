// Package scheduler drives the polling state machine: authenticate, poll the
// consulate listing, link and submit a candidate, and rest or back off when
// the service signals a ban or the work cycle runs long.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/visa-rescheduler/internal/ais"
	"github.com/example/visa-rescheduler/internal/attempts"
	"github.com/example/visa-rescheduler/internal/clock"
	"github.com/example/visa-rescheduler/internal/domain/appointment"
	"github.com/example/visa-rescheduler/internal/notify"
)

var ErrAborted = errors.New("scheduler: aborted")

type Authenticator interface {
	Authenticate(ctx context.Context) (*ais.Session, error)
}

type Submitter interface {
	Submit(ctx context.Context, sess *ais.Session, c appointment.Candidate) (bool, error)
}

// Recorder stores cycle outcomes; attempts.Store implements it.
type Recorder interface {
	Record(ctx context.Context, a attempts.Attempt) error
}

type Config struct {
	RunID    string
	Facility appointment.FacilityConfig
	Window   appointment.TargetWindow
	// RetryMin..RetryMax bounds the random wait between polls.
	RetryMin     time.Duration
	RetryMax     time.Duration
	WorkLimit    time.Duration
	WorkCooldown time.Duration
	BanCooldown  time.Duration
}

// Deps are the loop's collaborators. Journal, Recorder and Status may be nil.
type Deps struct {
	Auth     Authenticator
	Query    Querier
	Linker   *Linker
	Submit   Submitter
	Notifier ais.Notifier
	Journal  ais.Journal
	Recorder Recorder
	Status   *Status
	Sleeper  clock.Sleeper
	Log      zerolog.Logger
}

type Loop struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	now    func() time.Time
	jitter func(n int64) int64

	state     State
	sess      *ais.Session
	cycle     WorkCycle
	date      string
	candidate appointment.Candidate
	cause     error
}

func New(cfg Config, deps Deps) *Loop {
	if deps.Sleeper == nil {
		deps.Sleeper = clock.Real{}
	}
	return &Loop{
		cfg:    cfg,
		deps:   deps,
		log:    deps.Log.With().Str("comp", "loop").Logger(),
		now:    time.Now,
		jitter: rand.Int64N,
		state:  LoggedOut,
	}
}

func (l *Loop) State() State { return l.state }

// Run drives the machine to Done (nil error) or Aborted (wraps ErrAborted
// and the cause). Cancelling ctx aborts at the next suspension point.
func (l *Loop) Run(ctx context.Context) error {
	l.publish(nil)
	for !l.state.Terminal() {
		next := l.safeStep(ctx)
		l.transition(next)
	}
	if l.state == Done {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrAborted, l.cause)
}

func (l *Loop) transition(next State) {
	if next != l.state {
		l.log.Debug().Stringer("from", l.state).Stringer("to", next).Msg("transition")
	}
	l.state = next
	l.publish(nil)
}

// safeStep runs one state handler, turning a panic into Aborted.
func (l *Loop) safeStep(ctx context.Context) (next State) {
	defer func() {
		if r := recover(); r != nil {
			next = l.fail(ctx, fmt.Errorf("panic in %s: %v", l.state, r))
		}
	}()
	return l.step(ctx)
}

func (l *Loop) step(ctx context.Context) State {
	switch l.state {
	case LoggedOut:
		return Authenticating
	case Authenticating:
		return l.authenticate(ctx)
	case Polling:
		return l.poll(ctx)
	case Linking:
		return l.link(ctx)
	case Submitting:
		return l.submit(ctx)
	case BanCooldown:
		return l.banCooldown(ctx)
	case WorkCooldown:
		return l.workCooldown(ctx)
	default:
		return l.fail(ctx, fmt.Errorf("no handler for state %s", l.state))
	}
}

func (l *Loop) authenticate(ctx context.Context) State {
	sess, err := l.deps.Auth.Authenticate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return l.cancelled(ctx)
		}
		l.cause = err
		// Invalid credentials were already reported by the authenticator.
		if !errors.Is(err, ais.ErrInvalidCredentials) {
			l.deps.Notifier.Notify(ctx, notify.Exception, fmt.Sprintf("Login failed: %v", err))
		}
		l.log.Error().Err(err).Msg("authentication failed")
		l.record(ctx, attempts.Aborted, err.Error())
		return Aborted
	}
	l.sess = sess
	l.cycle = WorkCycle{Start: l.now()}
	l.publish(func(s *Snapshot) { s.CycleStart = l.cycle.Start })
	return Polling
}

func (l *Loop) poll(ctx context.Context) State {
	l.cycle.Requests++
	l.date = ""
	l.candidate = appointment.Candidate{}
	header := fmt.Sprintf("%s\nRequest count: %d, Log time: %s", strings.Repeat("-", 60), l.cycle.Requests, l.now().Format(time.DateTime))
	l.journal(header)
	l.log.Info().Int("request", l.cycle.Requests).Msg("polling consulate dates")

	dates, err := l.deps.Query.QueryDates(ctx, l.sess, l.cfg.Facility.PrimaryFacilityID, nil)
	if err != nil {
		if ctx.Err() != nil {
			return l.cancelled(ctx)
		}
		// A listing that keeps failing looks the same as an empty one.
		l.log.Warn().Err(err).Msg("consulate date listing failed; treating as ban")
		return BanCooldown
	}
	if len(dates) == 0 {
		return BanCooldown
	}

	all := appointment.Dates(dates)
	l.journal("Available dates:\n" + strings.Join(all, ", "))
	l.log.Info().Strs("dates", all).Msg("available dates")
	l.publish(func(s *Snapshot) { s.LastDates = all })

	date, ok := appointment.FirstInWindow(dates, l.cfg.Window)
	if !ok {
		l.log.Info().Stringer("window", l.cfg.Window).Msg("no available dates in window")
		l.record(ctx, attempts.NoDate, "")
		return l.afterCycle(ctx)
	}
	l.log.Info().Str("date", date).Msg("date found")
	l.date = date
	return Linking
}

func (l *Loop) link(ctx context.Context) State {
	res := l.deps.Linker.Resolve(ctx, l.sess, l.date)
	if ctx.Err() != nil {
		return l.cancelled(ctx)
	}
	if res.Outcome != Found {
		l.record(ctx, attempts.RescheduleFailed, fmt.Sprintf("%s: %s", res.Step, res.Outcome))
		return l.afterCycle(ctx)
	}
	l.candidate = res.Candidate
	c := res.Candidate
	l.publish(func(s *Snapshot) { s.Candidate = &c })
	return Submitting
}

func (l *Loop) submit(ctx context.Context) State {
	ok, err := l.deps.Submit.Submit(ctx, l.sess, l.candidate)
	if ctx.Err() != nil {
		return l.cancelled(ctx)
	}
	if ok {
		l.log.Info().Stringer("candidate", l.candidate).Msg("rescheduled")
		l.record(ctx, attempts.Rescheduled, l.candidate.String())
		return Done
	}
	detail := "not confirmed"
	if err != nil {
		detail = err.Error()
		l.log.Warn().Err(err).Msg("reschedule attempt failed")
	}
	l.record(ctx, attempts.RescheduleFailed, detail)
	return l.afterCycle(ctx)
}

// afterCycle rests once the work cycle exceeds its limit, otherwise waits a
// random retry interval and polls again.
func (l *Loop) afterCycle(ctx context.Context) State {
	elapsed := l.cycle.Elapsed(l.now())
	l.journal(fmt.Sprintf("Working time: ~ %.2f minutes", elapsed.Minutes()))
	if elapsed > l.cfg.WorkLimit {
		return WorkCooldown
	}

	wait := l.retryWait()
	l.journal(fmt.Sprintf("Retry wait time: %s", wait))
	l.log.Info().Dur("wait", wait).Msg("retry wait")
	if err := l.deps.Sleeper.Sleep(ctx, wait); err != nil {
		return l.cancelled(ctx)
	}
	return Polling
}

func (l *Loop) retryWait() time.Duration {
	lo, hi := l.cfg.RetryMin, l.cfg.RetryMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(l.jitter(int64(hi-lo)+1))
}

func (l *Loop) banCooldown(ctx context.Context) State {
	msg := fmt.Sprintf("List is empty, probably banned!\n\tSleep for %s!", l.cfg.BanCooldown)
	l.record(ctx, attempts.Ban, "")
	return l.cooldown(ctx, notify.Ban, msg, l.cfg.BanCooldown)
}

func (l *Loop) workCooldown(ctx context.Context) State {
	msg := fmt.Sprintf("Break-time after %s | Repeated %d times", l.cfg.WorkLimit, l.cycle.Requests)
	l.record(ctx, attempts.Rest, "")
	return l.cooldown(ctx, notify.Rest, msg, l.cfg.WorkCooldown)
}

// cooldown signs out, notifies and sleeps; the next state re-authenticates,
// which also resets the work cycle.
func (l *Loop) cooldown(ctx context.Context, title notify.Title, msg string, d time.Duration) State {
	l.journal(msg)
	l.log.Warn().Str("reason", string(title)).Dur("sleep", d).Msg(msg)
	l.deps.Notifier.Notify(ctx, title, msg)
	if err := l.sess.SignOut(ctx); err != nil {
		l.log.Warn().Err(err).Msg("sign out failed")
	}
	l.sess = nil
	if err := l.deps.Sleeper.Sleep(ctx, d); err != nil {
		return l.cancelled(ctx)
	}
	return Authenticating
}

func (l *Loop) fail(ctx context.Context, err error) State {
	l.cause = err
	msg := fmt.Sprintf("Break the loop after exception!\n%v", err)
	l.journal(msg)
	l.log.Error().Err(err).Msg("loop aborted")
	l.deps.Notifier.Notify(ctx, notify.Exception, msg)
	l.record(ctx, attempts.Aborted, err.Error())
	return Aborted
}

func (l *Loop) cancelled(ctx context.Context) State {
	l.cause = ctx.Err()
	l.log.Info().Err(l.cause).Msg("stopping")
	// ctx is done; the row is still worth keeping.
	l.record(context.WithoutCancel(ctx), attempts.Aborted, l.cause.Error())
	return Aborted
}

func (l *Loop) journal(msg string) {
	if l.deps.Journal != nil {
		l.deps.Journal.Append(msg)
	}
}

func (l *Loop) record(ctx context.Context, o attempts.Outcome, detail string) {
	l.publish(func(s *Snapshot) {
		s.LastOutcome = string(o)
		if o == attempts.Aborted {
			s.LastError = detail
		}
	})
	if l.deps.Recorder == nil {
		return
	}
	err := l.deps.Recorder.Record(ctx, attempts.Attempt{
		RunID:       l.cfg.RunID,
		Outcome:     o,
		Requests:    l.cycle.Requests,
		PrimaryDate: l.date,
		Detail:      detail,
	})
	if err != nil {
		l.log.Warn().Err(err).Str("outcome", string(o)).Msg("record attempt failed")
	}
}

func (l *Loop) publish(fn func(*Snapshot)) {
	state := l.state.String()
	requests := l.cycle.Requests
	now := l.now()
	l.deps.Status.update(func(s *Snapshot) {
		if s.State != state {
			s.State = state
			s.Since = now
		}
		s.Requests = requests
		if fn != nil {
			fn(s)
		}
	})
}
