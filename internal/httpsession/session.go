// Package httpsession is an ais.Transport over plain HTTP: a cookie jar,
// server-rendered pages parsed with x/net/html and form submission without
// a browser. It cannot run page scripts, so it only works while the sign-in
// form stays a plain HTML form.
package httpsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/example/visa-rescheduler/internal/ais"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

const maxBody = 4 << 20

type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type Session struct {
	client *http.Client
	jar    http.CookieJar
	base   *url.URL
	ua     string

	mu     sync.Mutex
	doc    *html.Node
	docURL *url.URL
}

var _ ais.Transport = (*Session)(nil)

func New(opts Options) (*Session, error) {
	base := opts.BaseURL
	if base == "" {
		base = ais.DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("httpsession: base url: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Session{
		client: &http.Client{Jar: jar, Timeout: timeout},
		jar:    jar,
		base:   u,
		ua:     ua,
	}, nil
}

func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	return s.load(req)
}

// load performs req and makes the response the current page.
func (s *Session) load(req *http.Request) error {
	req.Header.Set("User-Agent", s.ua)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL, resp.StatusCode)
	}
	doc, err := html.Parse(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("parse %s: %w", req.URL, err)
	}
	s.mu.Lock()
	s.doc = doc
	s.docURL = resp.Request.URL
	s.mu.Unlock()
	return nil
}

func (s *Session) element(selector string) (*html.Node, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, errors.New("httpsession: no page loaded")
	}
	n := cascadia.Query(s.doc, sel)
	if n == nil {
		return nil, fmt.Errorf("httpsession: %s not found", selector)
	}
	return n, nil
}

func (s *Session) Fill(_ context.Context, selector, value string) error {
	n, err := s.element(selector)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Data == "textarea" {
		n.FirstChild, n.LastChild = nil, nil
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
		return nil
	}
	setAttr(n, "value", value)
	return nil
}

// Click toggles checkboxes (directly or inside a styled wrapper), submits
// forms from submit controls and follows real links. Other elements are
// decorative without scripts and are ignored.
func (s *Session) Click(ctx context.Context, selector string) error {
	n, err := s.element(selector)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if box := checkboxIn(n); box != nil {
		if _, on := lookupAttr(box, "checked"); on {
			removeAttr(box, "checked")
		} else {
			setAttr(box, "checked", "checked")
		}
		s.mu.Unlock()
		return nil
	}
	if isSubmit(n) {
		req, err := s.formRequest(ctx, n)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		return s.load(req)
	}
	href := attr(n, "href")
	var target *url.URL
	if n.Data == "a" && href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:") {
		target, err = s.docURL.Parse(href)
	}
	s.mu.Unlock()
	if err != nil || target == nil {
		return err
	}
	return s.Navigate(ctx, target.String())
}

func checkboxIn(n *html.Node) *html.Node {
	var box *html.Node
	walk(n, func(c *html.Node) {
		if box == nil && c.Type == html.ElementNode && c.Data == "input" && attr(c, "type") == "checkbox" {
			box = c
		}
	})
	return box
}

func isSubmit(n *html.Node) bool {
	t := strings.ToLower(attr(n, "type"))
	switch n.Data {
	case "input":
		return t == "submit"
	case "button":
		return t == "" || t == "submit"
	}
	return false
}

// formRequest serialises the form enclosing submit. Caller holds s.mu.
func (s *Session) formRequest(ctx context.Context, submit *html.Node) (*http.Request, error) {
	form := submit.Parent
	for form != nil && !(form.Type == html.ElementNode && form.Data == "form") {
		form = form.Parent
	}
	if form == nil {
		return nil, errors.New("httpsession: submit control outside a form")
	}

	values := url.Values{}
	walk(form, func(c *html.Node) {
		if c.Type != html.ElementNode {
			return
		}
		name := attr(c, "name")
		if name == "" {
			return
		}
		if _, disabled := lookupAttr(c, "disabled"); disabled {
			return
		}
		switch c.Data {
		case "input":
			switch strings.ToLower(attr(c, "type")) {
			case "checkbox", "radio":
				if _, on := lookupAttr(c, "checked"); on {
					v, ok := lookupAttr(c, "value")
					if !ok {
						v = "on"
					}
					values.Add(name, v)
				}
			case "submit", "button", "image", "reset", "file":
				if c == submit {
					values.Add(name, attr(c, "value"))
				}
			default:
				values.Add(name, attr(c, "value"))
			}
		case "textarea":
			values.Add(name, text(c))
		case "button":
			if c == submit {
				values.Add(name, attr(c, "value"))
			}
		}
	})

	action, err := s.docURL.Parse(attr(form, "action"))
	if err != nil {
		return nil, fmt.Errorf("httpsession: form action: %w", err)
	}
	method := strings.ToUpper(attr(form, "method"))
	if method == "" {
		method = http.MethodGet
	}
	if method == http.MethodGet {
		action.RawQuery = values.Encode()
		return http.NewRequestWithContext(ctx, method, action.String(), nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ais.FormContentType)
	req.Header.Set("Referer", s.docURL.String())
	return req, nil
}

// WaitForText reports which of texts the current page shows. Without
// scripts the page cannot change, so there is nothing to wait for.
func (s *Session) WaitForText(_ context.Context, _ time.Duration, texts ...string) (int, error) {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return -1, errors.New("httpsession: no page loaded")
	}
	body := text(doc)
	for i, t := range texts {
		if t = normalizeSpace(t); t != "" && strings.Contains(body, t) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("httpsession: none of %q on page", texts)
}

func (s *Session) ScriptedRead(ctx context.Context, rawURL, sessionCookie string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	s.setSessionCookie(sessionCookie)
	req.Header.Set("Accept", ais.XHRAccept)
	req.Header.Set("X-Requested-With", ais.XHRRequestedWith)
	req.Header.Set("User-Agent", s.ua)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Post sends body as is. The session cookie from a Cookie header replaces the
// jar's root-path cookie so only one copy is sent.
func (s *Session) Post(ctx context.Context, rawURL string, header http.Header, body string) (ais.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(body))
	if err != nil {
		return ais.Response{}, err
	}
	if header != nil {
		req.Header = header.Clone()
	}
	if line := req.Header.Get("Cookie"); line != "" {
		req.Header.Del("Cookie")
		cookies, err := http.ParseCookie(line)
		if err != nil {
			return ais.Response{}, fmt.Errorf("httpsession: cookie header: %w", err)
		}
		for _, c := range cookies {
			if c.Name == ais.SessionCookieName {
				s.setSessionCookie(c.Value)
				continue
			}
			req.AddCookie(c)
		}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ais.Response{}, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return ais.Response{}, err
	}
	return ais.Response{StatusCode: resp.StatusCode, Body: string(b)}, nil
}

func (s *Session) setSessionCookie(value string) {
	if value == "" {
		return
	}
	s.jar.SetCookies(s.base, []*http.Cookie{{Name: ais.SessionCookieName, Value: value, Path: "/"}})
}

func (s *Session) Cookie(_ context.Context, name string) (string, error) {
	for _, c := range s.jar.Cookies(s.base) {
		if c.Name == name {
			return c.Value, nil
		}
	}
	return "", nil
}

func (s *Session) Attribute(_ context.Context, selector, name string) (string, error) {
	n, err := s.element(selector)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := lookupAttr(n, name)
	if !ok {
		return "", fmt.Errorf("httpsession: %s has no %s", selector, name)
	}
	return v, nil
}

func (s *Session) UserAgent(context.Context) (string, error) { return s.ua, nil }
