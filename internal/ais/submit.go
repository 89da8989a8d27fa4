package ais

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/visa-rescheduler/internal/domain/appointment"
	"github.com/example/visa-rescheduler/internal/notify"
)

var (
	ErrIncompleteCandidate = errors.New("ais: incomplete reschedule candidate")
	ErrOutsideWindow       = errors.New("ais: candidate date outside target window")
)

// Submitter posts the combined consulate + CAS reschedule form.
type Submitter struct {
	Transport Transport
	Endpoints Endpoints
	Facility  appointment.FacilityConfig
	Window    appointment.TargetWindow
	// SuccessMarkers are matched as substrings of the response body.
	SuccessMarkers []string
	Journal        Journal
	Notifier       Notifier
	Log            zerolog.Logger
}

// Submit reports whether the service confirmed the reschedule. The status
// code is ignored: only a success marker in the body counts.
func (s *Submitter) Submit(ctx context.Context, sess *Session, c appointment.Candidate) (bool, error) {
	if !c.Complete() {
		return false, fmt.Errorf("%w: %s", ErrIncompleteCandidate, c)
	}
	if !s.Window.Contains(c.PrimaryDate) {
		return false, fmt.Errorf("%w: %s not in %s", ErrOutsideWindow, c.PrimaryDate, s.Window)
	}
	if !sess.Valid() {
		return false, ErrSessionClosed
	}
	log := s.Log.With().Str("comp", "submit").Stringer("candidate", c).Logger()
	journal := s.Journal
	if journal == nil {
		journal = nopJournal{}
	}

	apptURL := s.Endpoints.Appointment()
	header, body, err := s.buildRequest(ctx, sess, apptURL, c)
	if err != nil {
		s.fail(ctx, c)
		return false, err
	}

	journal.Append(fmt.Sprintf("Request to reschedule:\nURL: %s\n\nHeaders:\n%s\nData in URL encode:\n%s\n",
		apptURL, formatHeader(header), body))

	resp, err := s.Transport.Post(ctx, apptURL, header, body)
	if err != nil {
		journal.Append(fmt.Sprintf("Reschedule request failed: %v", err))
		s.fail(ctx, c)
		return false, fmt.Errorf("post reschedule: %w", err)
	}
	journal.Append(fmt.Sprintf("Response status code: %d\nResponse content: %s\n", resp.StatusCode, resp.Body))

	if !ContainsAny(resp.Body, s.SuccessMarkers) {
		log.Warn().Int("status", resp.StatusCode).Msg("reschedule not confirmed")
		s.fail(ctx, c)
		return false, nil
	}

	loc := s.Facility.Locale
	msg := fmt.Sprintf("Appointment rescheduled to %s at %s, CAS appointment on %s at %s!",
		appointment.LongDateOrRaw(c.PrimaryDate, loc), c.PrimaryTime,
		appointment.LongDateOrRaw(c.SecondaryDate, loc), c.SecondaryTime)
	log.Info().Msg(msg)
	s.Notifier.Notify(ctx, notify.Success, msg)
	return true, nil
}

func (s *Submitter) buildRequest(ctx context.Context, sess *Session, apptURL string, c appointment.Candidate) (http.Header, string, error) {
	t := s.Transport
	if err := t.Navigate(ctx, apptURL); err != nil {
		return nil, "", fmt.Errorf("open appointment page: %w", err)
	}
	tok, err := sess.Token(ctx)
	if err != nil {
		return nil, "", err
	}
	ua, err := t.UserAgent(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("user agent: %w", err)
	}

	form := url.Values{}
	for _, f := range []struct{ field, sel string }{
		{"authenticity_token", SelAuthToken},
		{"confirmed_limit_message", SelConfirmedLimit},
		{"use_consulate_appointment_capacity", SelUseCapacity},
	} {
		v, err := t.Attribute(ctx, f.sel, "value")
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", f.field, err)
		}
		form.Set(f.field, v)
	}
	form.Set("appointments[consulate_appointment][facility_id]", strconv.Itoa(s.Facility.PrimaryFacilityID))
	form.Set("appointments[consulate_appointment][date]", c.PrimaryDate)
	form.Set("appointments[consulate_appointment][time]", c.PrimaryTime)
	form.Set("appointments[asc_appointment][facility_id]", strconv.Itoa(s.Facility.SecondaryFacilityID))
	form.Set("appointments[asc_appointment][date]", c.SecondaryDate)
	form.Set("appointments[asc_appointment][time]", c.SecondaryTime)

	header := http.Header{}
	header.Set("User-Agent", ua)
	header.Set("Referer", apptURL)
	header.Set("Cookie", SessionCookieName+"="+tok)
	header.Set("Content-Type", FormContentType)
	return header, form.Encode(), nil
}

func (s *Submitter) fail(ctx context.Context, c appointment.Candidate) {
	msg := fmt.Sprintf("Could not reschedule the appointment for %s at %s",
		appointment.LongDateOrRaw(c.PrimaryDate, s.Facility.Locale), c.PrimaryTime)
	s.Log.Warn().Str("comp", "submit").Msg(msg)
	s.Notifier.Notify(ctx, notify.Exception, msg)
}

// ContainsAny reports whether body contains any non-empty marker.
func ContainsAny(body string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(body, m) {
			return true
		}
	}
	return false
}

func formatHeader(h http.Header) string {
	var b strings.Builder
	for _, k := range []string{"User-Agent", "Referer", "Cookie", "Content-Type"} {
		fmt.Fprintf(&b, "  %s: %s\n", k, h.Get(k))
	}
	return b.String()
}
