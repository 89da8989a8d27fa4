// Package ais is the client for the appointment scheduling service
// (ais.usvisa-info.com): login, slot queries and reschedule submission on
// top of an authenticated Transport.
package ais

import (
	"context"
	"net/http"
	"time"

	"github.com/example/visa-rescheduler/internal/notify"
)

// Transport is a browser-like session against the remote service. Element
// lookups wait for the element to appear, up to the implementation's
// timeout. Selectors are CSS.
type Transport interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// WaitForText waits until the page shows one of texts and returns its index.
	WaitForText(ctx context.Context, timeout time.Duration, texts ...string) (int, error)
	// ScriptedRead performs an XHR-style GET carrying sessionCookie and
	// returns the raw response text.
	ScriptedRead(ctx context.Context, url, sessionCookie string) (string, error)
	Post(ctx context.Context, url string, header http.Header, body string) (Response, error)
	Cookie(ctx context.Context, name string) (string, error)
	Attribute(ctx context.Context, selector, attr string) (string, error)
	UserAgent(ctx context.Context) (string, error)
}

type Response struct {
	StatusCode int
	Body       string
}

// Headers sent with scripted reads, matching the site's own XHR calls.
const (
	XHRAccept         = "application/json, text/javascript, */*; q=0.01"
	XHRRequestedWith  = "XMLHttpRequest"
	FormContentType   = "application/x-www-form-urlencoded"
	SessionCookieName = "_yatri_session"
)

// Page selectors used by login and submission.
const (
	SelCommit         = `[name="commit"]`
	SelBounceArrow    = `a.down-arrow.bounce`
	SelEmail          = `#user_email`
	SelPassword       = `#user_password`
	SelPrivacy        = `.icheckbox`
	SelAuthToken      = `[name="authenticity_token"]`
	SelConfirmedLimit = `[name="confirmed_limit_message"]`
	SelUseCapacity    = `[name="use_consulate_appointment_capacity"]`
)

type Notifier interface {
	Notify(ctx context.Context, title notify.Title, msg string)
}

// Journal is the append-only forensic log.
type Journal interface {
	Append(msg string)
}

type nopJournal struct{}

func (nopJournal) Append(string) {}
