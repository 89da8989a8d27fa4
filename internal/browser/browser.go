// Package browser is the ais.Transport backed by a real Chrome driven over
// the DevTools protocol with go-rod. It launches a local browser, or
// attaches to a remote one when a control URL is configured.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/example/visa-rescheduler/internal/ais"
)

type Options struct {
	BaseURL string
	// ControlURL is a remote DevTools websocket or http endpoint. Empty
	// launches a local browser.
	ControlURL string
	Headless   bool
	UserAgent  string
	Timeout    time.Duration
	Log        zerolog.Logger
}

type Transport struct {
	browser  *rod.Browser
	page     *rod.Page
	launched *launcher.Launcher
	http     *http.Client
	baseURL  string
	timeout  time.Duration
	log      zerolog.Logger
}

var _ ais.Transport = (*Transport)(nil)

// xhrScript mirrors the page's own jQuery calls: a synchronous GET with the
// JSON accept header.
const xhrScript = `(url, cookie) => {
	const req = new XMLHttpRequest();
	req.open('GET', url, false);
	req.setRequestHeader('Accept', '` + ais.XHRAccept + `');
	req.setRequestHeader('X-Requested-With', '` + ais.XHRRequestedWith + `');
	req.setRequestHeader('Cookie', '` + ais.SessionCookieName + `=' + cookie);
	req.send(null);
	return req.responseText;
}`

func Open(ctx context.Context, opts Options) (*Transport, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = ais.DefaultBaseURL
	}
	t := &Transport{
		http:    &http.Client{Timeout: timeout},
		baseURL: base,
		timeout: timeout,
		log:     opts.Log.With().Str("comp", "browser").Logger(),
	}

	controlURL := opts.ControlURL
	if controlURL != "" {
		u, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, fmt.Errorf("browser: resolve %s: %w", controlURL, err)
		}
		controlURL = u
	} else {
		l := launcher.New().Headless(opts.Headless).Set("log-level", "1")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		t.launched = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		t.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	t.browser = b

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		t.cleanup()
		return nil, fmt.Errorf("browser: new page: %w", err)
	}
	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			t.log.Warn().Err(err).Msg("user agent override failed")
		}
	}
	t.page = page
	t.log.Info().Bool("remote", opts.ControlURL != "").Msg("browser ready")
	return t, nil
}

func (t *Transport) Close() error {
	t.cleanup()
	return nil
}

func (t *Transport) cleanup() {
	if t.browser != nil {
		_ = t.browser.Close()
		t.browser = nil
	}
	if t.launched != nil {
		t.launched.Kill()
		t.launched = nil
	}
}

// scoped returns the page bound to ctx with the per-action timeout.
func (t *Transport) scoped(ctx context.Context) (*rod.Page, func()) {
	p := t.page.Context(ctx).Timeout(t.timeout)
	return p, func() { p.CancelTimeout() }
}

func (t *Transport) Navigate(ctx context.Context, url string) error {
	p, done := t.scoped(ctx)
	defer done()
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (t *Transport) Fill(ctx context.Context, selector, value string) error {
	p, done := t.scoped(ctx)
	defer done()
	el, err := p.Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		t.log.Debug().Err(err).Str("selector", selector).Msg("select all failed")
	}
	return el.Input(value)
}

func (t *Transport) Click(ctx context.Context, selector string) error {
	p, done := t.scoped(ctx)
	defer done()
	el, err := p.Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (t *Transport) WaitForText(ctx context.Context, timeout time.Duration, texts ...string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
	for {
		body, err := t.eval(ctx, `() => document.body ? document.body.innerText : ''`)
		if err == nil {
			for i, s := range texts {
				if s != "" && strings.Contains(body, s) {
					return i, nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return -1, fmt.Errorf("browser: none of %q within %s: %w", texts, timeout, ctx.Err())
		case <-tick.C:
		}
	}
}

func (t *Transport) eval(ctx context.Context, js string, args ...any) (string, error) {
	p, done := t.scoped(ctx)
	defer done()
	res, err := p.Eval(js, args...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (t *Transport) ScriptedRead(ctx context.Context, url, sessionCookie string) (string, error) {
	return t.eval(ctx, xhrScript, url, sessionCookie)
}

// Post goes out on a plain HTTP client: the caller supplies the session
// cookie and browser user agent in header.
func (t *Transport) Post(ctx context.Context, url string, header http.Header, body string) (ais.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return ais.Response{}, err
	}
	req.Header = header.Clone()
	resp, err := t.http.Do(req)
	if err != nil {
		return ais.Response{}, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ais.Response{}, err
	}
	return ais.Response{StatusCode: resp.StatusCode, Body: string(b)}, nil
}

func (t *Transport) Cookie(ctx context.Context, name string) (string, error) {
	p, done := t.scoped(ctx)
	defer done()
	cookies, err := p.Cookies([]string{t.baseURL})
	if err != nil {
		return "", err
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, nil
		}
	}
	return "", nil
}

func (t *Transport) Attribute(ctx context.Context, selector, name string) (string, error) {
	p, done := t.scoped(ctx)
	defer done()
	el, err := p.Element(selector)
	if err != nil {
		return "", err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", errors.New("browser: " + selector + " has no " + name)
	}
	return *v, nil
}

func (t *Transport) UserAgent(ctx context.Context) (string, error) {
	return t.eval(ctx, `() => navigator.userAgent`)
}
