package ais

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/visa-rescheduler/internal/clock"
	"github.com/example/visa-rescheduler/internal/domain/appointment"
	"github.com/example/visa-rescheduler/internal/notify"
)

var (
	ErrInvalidCredentials = errors.New("ais: invalid credentials")
	ErrLoginExhausted     = errors.New("ais: login attempts exhausted")
	ErrSessionClosed      = errors.New("ais: session closed")
)

// Session is an authenticated handle. The session cookie is re-read on
// every use because the service rotates it on each response.
type Session struct {
	t      Transport
	ep     Endpoints
	closed bool
}

// NewSession wraps a transport that is already logged in.
func NewSession(t Transport, ep Endpoints) *Session {
	return &Session{t: t, ep: ep}
}

func (s *Session) Valid() bool { return s != nil && !s.closed }

// Token returns the current session cookie value.
func (s *Session) Token(ctx context.Context) (string, error) {
	if !s.Valid() {
		return "", ErrSessionClosed
	}
	tok, err := s.t.Cookie(ctx, SessionCookieName)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", SessionCookieName, err)
	}
	if tok == "" {
		return "", fmt.Errorf("%s cookie is empty", SessionCookieName)
	}
	return tok, nil
}

// SignOut invalidates the session and visits the sign-out page.
func (s *Session) SignOut(ctx context.Context) error {
	if !s.Valid() {
		return nil
	}
	s.closed = true
	if err := s.t.Navigate(ctx, s.ep.SignOut()); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

type Credentials struct {
	Username string
	Password string
}

// Authenticator logs in through the sign-in form.
type Authenticator struct {
	Transport   Transport
	Endpoints   Endpoints
	Credentials Credentials
	Facility    appointment.FacilityConfig
	// Attempts bounds login tries; invalid credentials stop at the first.
	Attempts   int
	StepDelay  time.Duration
	MarkerWait time.Duration
	Notifier   Notifier
	Sleeper    clock.Sleeper
	Log        zerolog.Logger
}

func (a *Authenticator) Authenticate(ctx context.Context) (*Session, error) {
	attempts := a.Attempts
	if attempts < 1 {
		attempts = 1
	}
	log := a.Log.With().Str("comp", "auth").Logger()

	var lastErr error
	for i := 1; i <= attempts; i++ {
		err := a.attempt(ctx)
		if err == nil {
			log.Info().Int("attempt", i).Msg("login successful")
			return NewSession(a.Transport, a.Endpoints), nil
		}
		if errors.Is(err, ErrInvalidCredentials) {
			log.Error().Msg("invalid credentials")
			a.Notifier.Notify(ctx, notify.Exception, "Invalid credentials. Please correct them and try again.")
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i).Int("of", attempts).Msg("login failed")
		if err := a.Sleeper.Sleep(ctx, a.StepDelay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrLoginExhausted, attempts, lastErr)
}

func (a *Authenticator) attempt(ctx context.Context) error {
	t := a.Transport
	if err := t.Navigate(ctx, a.Endpoints.SignIn()); err != nil {
		return fmt.Errorf("open sign in: %w", err)
	}
	if err := a.Sleeper.Sleep(ctx, a.StepDelay); err != nil {
		return err
	}
	// The arrow only scrolls the form into view; pages without it still log in.
	if err := t.Click(ctx, SelBounceArrow); err != nil {
		a.Log.Debug().Err(err).Msg("bounce arrow not clicked")
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"email", func() error { return t.Fill(ctx, SelEmail, a.Credentials.Username) }},
		{"password", func() error { return t.Fill(ctx, SelPassword, a.Credentials.Password) }},
		{"privacy", func() error { return t.Click(ctx, SelPrivacy) }},
		{"commit", func() error { return t.Click(ctx, SelCommit) }},
	}
	for _, s := range steps {
		if err := a.Sleeper.Sleep(ctx, a.StepDelay); err != nil {
			return err
		}
		if err := s.run(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	if err := a.Sleeper.Sleep(ctx, a.StepDelay); err != nil {
		return err
	}

	idx, err := t.WaitForText(ctx, a.MarkerWait, a.Facility.ContinueMarker, a.Facility.LoginFailureMarker)
	if err != nil {
		return fmt.Errorf("wait for login result: %w", err)
	}
	if idx == 1 {
		return ErrInvalidCredentials
	}
	return nil
}
