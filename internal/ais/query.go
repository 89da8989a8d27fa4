package ais

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/visa-rescheduler/internal/clock"
	"github.com/example/visa-rescheduler/internal/domain/appointment"
)

// QueryError reports a listing that failed on every attempt.
type QueryError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("ais: query %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Client reads date and time listings through an authenticated session.
type Client struct {
	Endpoints  Endpoints
	Attempts   int
	RetryDelay time.Duration
	// Limiter paces outbound reads; nil means unpaced.
	Limiter *rate.Limiter
	Sleeper clock.Sleeper
	Log     zerolog.Logger
}

type timesResponse struct {
	AvailableTimes []string `json:"available_times"`
}

// QueryDates lists dates for facilityID. An empty listing is returned as an
// empty slice with a nil error.
func (c *Client) QueryDates(ctx context.Context, sess *Session, facilityID int, link *Link) ([]appointment.AvailableSlot, error) {
	url := c.Endpoints.Days(facilityID, link)
	var slots []appointment.AvailableSlot
	err := c.read(ctx, sess, url, logParams(facilityID, "", link), func(body string) error {
		slots = nil
		return json.Unmarshal([]byte(body), &slots)
	})
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []appointment.AvailableSlot{}
	}
	return slots, nil
}

func (c *Client) QueryTimes(ctx context.Context, sess *Session, facilityID int, date string, link *Link) ([]appointment.TimeSlot, error) {
	url := c.Endpoints.Times(facilityID, date, link)
	var resp timesResponse
	err := c.read(ctx, sess, url, logParams(facilityID, date, link), func(body string) error {
		resp = timesResponse{}
		return json.Unmarshal([]byte(body), &resp)
	})
	if err != nil {
		return nil, err
	}
	out := make([]appointment.TimeSlot, 0, len(resp.AvailableTimes))
	for _, t := range resp.AvailableTimes {
		out = append(out, appointment.TimeSlot{Time: t})
	}
	return out, nil
}

func logParams(facilityID int, date string, link *Link) func(*zerolog.Event) {
	return func(e *zerolog.Event) {
		e.Int("facility", facilityID)
		if date != "" {
			e.Str("date", date)
		}
		if link != nil {
			e.Int("consulate_id", link.FacilityID).
				Str("consulate_date", link.Date).
				Str("consulate_time", link.Time)
		}
	}
}

func (c *Client) read(ctx context.Context, sess *Session, url string, params func(*zerolog.Event), decode func(string) error) error {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	log := c.Log.With().Str("comp", "query").Logger()

	var lastErr error
	for i := 1; i <= attempts; i++ {
		lastErr = c.readOnce(ctx, sess, url, decode)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrSessionClosed) {
			return lastErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ev := log.Warn().Err(lastErr).Int("attempt", i).Int("of", attempts)
		params(ev)
		ev.Msg("listing read failed")
		if i < attempts {
			if err := c.Sleeper.Sleep(ctx, c.RetryDelay); err != nil {
				return err
			}
		}
	}
	return &QueryError{URL: url, Attempts: attempts, Err: lastErr}
}

func (c *Client) readOnce(ctx context.Context, sess *Session, url string, decode func(string) error) error {
	tok, err := sess.Token(ctx)
	if err != nil {
		return err
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	body, err := sess.t.ScriptedRead(ctx, url, tok)
	if err != nil {
		return err
	}
	if err := decode(body); err != nil {
		return fmt.Errorf("decode listing: %w (body %q)", err, truncate(body, 120))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
