package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const PushoverURL = "https://api.pushover.net/1/messages.json"

// formPost is the shared transport of the Pushover and pusher-site channels.
type formPost struct {
	client *http.Client
	url    string
}

func newFormPost(u string) formPost {
	return formPost{client: &http.Client{Timeout: sendTimeout}, url: u}
}

func (f formPost) post(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", f.url, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type Pushover struct {
	formPost
	token string
	user  string
}

// NewPushover posts to endpoint, or the public API when empty.
func NewPushover(token, user, endpoint string) (*Pushover, error) {
	if token == "" || user == "" {
		return nil, errors.New("pushover token and user are required")
	}
	if endpoint == "" {
		endpoint = PushoverURL
	}
	return &Pushover{formPost: newFormPost(endpoint), token: token, user: user}, nil
}

func (p *Pushover) Name() string { return "pushover" }

func (p *Pushover) Send(ctx context.Context, _ Title, msg string) error {
	return p.post(ctx, url.Values{
		"token":   {p.token},
		"user":    {p.user},
		"message": {msg},
	})
}

// Pusher is a personal push relay that accepts a login and a message per post.
type Pusher struct {
	formPost
	user  string
	pass  string
	email string
}

func NewPusher(endpoint, user, pass, email string) (*Pusher, error) {
	if endpoint == "" || user == "" {
		return nil, errors.New("pusher url and user are required")
	}
	return &Pusher{formPost: newFormPost(endpoint), user: user, pass: pass, email: email}, nil
}

func (p *Pusher) Name() string { return "pusher" }

func (p *Pusher) Send(ctx context.Context, title Title, msg string) error {
	return p.post(ctx, url.Values{
		"title": {"VISA - " + string(title)},
		"user":  {p.user},
		"pass":  {p.pass},
		"email": {p.email},
		"msg":   {msg},
	})
}

