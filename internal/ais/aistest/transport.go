// Package aistest provides an in-memory ais.Transport for tests.
package aistest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/visa-rescheduler/internal/ais"
)

// Reply is one scripted read outcome.
type Reply struct {
	Body string
	Err  error
}

type PostCall struct {
	URL    string
	Header http.Header
	Body   string
}

// Transport answers scripted reads from queued replies keyed by URL prefix
// (the longest matching prefix wins). The last queued reply repeats.
type Transport struct {
	mu sync.Mutex

	Cookies map[string]string
	Attrs   map[string]string
	UA      string

	Reads map[string][]Reply

	PostReply ais.Response
	PostErr   error

	// WaitIndex is returned by WaitForText unless WaitErr is set.
	WaitIndex int
	WaitErr   error
	FailClick map[string]error

	Navigated []string
	Filled    map[string]string
	Clicked   []string
	ReadURLs  []string
	Posts     []PostCall
}

func New() *Transport {
	return &Transport{
		Cookies: map[string]string{ais.SessionCookieName: "cookie-1"},
		Attrs: map[string]string{
			ais.SelAuthToken:      "tok",
			ais.SelConfirmedLimit: "true",
			ais.SelUseCapacity:    "true",
		},
		UA:     "test-agent",
		Reads:  map[string][]Reply{},
		Filled: map[string]string{},
	}
}

// Queue appends replies for reads whose URL starts with prefix.
func (t *Transport) Queue(prefix string, replies ...Reply) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Reads[prefix] = append(t.Reads[prefix], replies...)
}

func (t *Transport) Navigate(_ context.Context, url string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Navigated = append(t.Navigated, url)
	return nil
}

func (t *Transport) Fill(_ context.Context, selector, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Filled[selector] = value
	return nil
}

func (t *Transport) Click(_ context.Context, selector string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.FailClick[selector]; err != nil {
		return err
	}
	t.Clicked = append(t.Clicked, selector)
	return nil
}

func (t *Transport) WaitForText(_ context.Context, _ time.Duration, texts ...string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.WaitErr != nil {
		return -1, t.WaitErr
	}
	if t.WaitIndex < 0 || t.WaitIndex >= len(texts) {
		return -1, errors.New("aistest: no marker")
	}
	return t.WaitIndex, nil
}

func (t *Transport) ScriptedRead(_ context.Context, url, sessionCookie string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadURLs = append(t.ReadURLs, url)
	if sessionCookie == "" {
		return "", errors.New("aistest: read without session cookie")
	}

	best := ""
	for prefix := range t.Reads {
		if strings.HasPrefix(url, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	queue := t.Reads[best]
	if best == "" || len(queue) == 0 {
		return "", fmt.Errorf("aistest: no reply for %s", url)
	}
	r := queue[0]
	if len(queue) > 1 {
		t.Reads[best] = queue[1:]
	}
	return r.Body, r.Err
}

func (t *Transport) Post(_ context.Context, url string, header http.Header, body string) (ais.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Posts = append(t.Posts, PostCall{URL: url, Header: header.Clone(), Body: body})
	return t.PostReply, t.PostErr
}

func (t *Transport) Cookie(_ context.Context, name string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Cookies[name], nil
}

func (t *Transport) Attribute(_ context.Context, selector, attr string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.Attrs[selector]
	if !ok || attr != "value" {
		return "", fmt.Errorf("aistest: no %s on %s", attr, selector)
	}
	return v, nil
}

func (t *Transport) UserAgent(context.Context) (string, error) { return t.UA, nil }

