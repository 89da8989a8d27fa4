package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/visa-rescheduler/internal/config"
)

type captureChannel struct {
	name string
	err  error

	mu   sync.Mutex
	msgs []string
}

func (c *captureChannel) Name() string { return c.name }

func (c *captureChannel) Send(_ context.Context, title Title, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, string(title)+":"+msg)
	return c.err
}

func TestNotifierFansOutAndSwallowsErrors(t *testing.T) {
	bad := &captureChannel{name: "bad", err: errors.New("down")}
	good := &captureChannel{name: "good"}
	n := New(zerolog.Nop(), 0, bad, good)

	n.Notify(context.Background(), Ban, "sleeping")

	if len(bad.msgs) != 1 || len(good.msgs) != 1 {
		t.Fatalf("deliveries bad=%d good=%d, want 1/1", len(bad.msgs), len(good.msgs))
	}
	if good.msgs[0] != "BAN:sleeping" {
		t.Fatalf("message = %q", good.msgs[0])
	}
}

func TestNotifierDeliversAfterCancel(t *testing.T) {
	ch := &captureChannel{name: "c"}
	n := New(zerolog.Nop(), 60, ch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n.Notify(ctx, Exception, "final")
	if len(ch.msgs) != 1 {
		t.Fatalf("final alert was not delivered after cancel")
	}
}

func TestNotifierRateCapCountsCallsNotChannels(t *testing.T) {
	a := &captureChannel{name: "a"}
	b := &captureChannel{name: "b"}
	n := New(zerolog.Nop(), 1, a, b)

	n.Notify(context.Background(), Ban, "sleeping")
	if len(a.msgs) != 1 || len(b.msgs) != 1 {
		t.Fatalf("deliveries a=%d b=%d, want 1/1", len(a.msgs), len(b.msgs))
	}

	// The single token is spent; a terminal alert must still reach everyone.
	n.Notify(context.Background(), Success, "booked")
	if len(a.msgs) != 2 || len(b.msgs) != 2 {
		t.Fatalf("deliveries a=%d b=%d, want 2/2", len(a.msgs), len(b.msgs))
	}
	if b.msgs[1] != "SUCCESS:booked" {
		t.Fatalf("message = %q", b.msgs[1])
	}
}

func formServer(t *testing.T, got *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		*got = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPushoverForm(t *testing.T) {
	var got url.Values
	srv := formServer(t, &got)
	p, err := NewPushover("tok", "usr", srv.URL)
	if err != nil {
		t.Fatalf("NewPushover: %v", err)
	}
	if err := p.Send(context.Background(), Success, "booked"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Get("token") != "tok" || got.Get("user") != "usr" || got.Get("message") != "booked" {
		t.Fatalf("form = %v", got)
	}
}

func TestPusherForm(t *testing.T) {
	var got url.Values
	srv := formServer(t, &got)
	p, err := NewPusher(srv.URL, "me", "pw", "me@example.com")
	if err != nil {
		t.Fatalf("NewPusher: %v", err)
	}
	if err := p.Send(context.Background(), Rest, "break"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := map[string]string{"title": "VISA - REST", "user": "me", "pass": "pw", "email": "me@example.com", "msg": "break"}
	for k, v := range want {
		if got.Get(k) != v {
			t.Fatalf("form[%s] = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestFormPostReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusBadRequest)
	}))
	defer srv.Close()

	p, _ := NewPushover("tok", "usr", srv.URL)
	err := p.Send(context.Background(), Ban, "x")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err = %v, want status 400", err)
	}
}

func TestSendGridPostsMail(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sg, err := NewSendGrid("SG.key", "from@example.com", "to@example.com")
	if err != nil {
		t.Fatalf("NewSendGrid: %v", err)
	}
	sg.WithEndpoint(srv.URL + "/v3/mail/send")
	if err := sg.Send(context.Background(), Success, "done"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if auth != "Bearer SG.key" {
		t.Fatalf("Authorization = %q", auth)
	}
	if body["subject"] != "VISA - SUCCESS" {
		t.Fatalf("subject = %v", body["subject"])
	}
}

func TestTelegramSend(t *testing.T) {
	var path, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		var req map[string]any
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &req)
		text, _ = req["text"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}))
	defer srv.Close()

	tg, err := NewTelegram("123:abc", 42, srv.URL)
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	if err := tg.Send(context.Background(), Ban, "sleep"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/bot123:abc/sendMessage" {
		t.Fatalf("path = %s", path)
	}
	if text != "VISA - BAN\nsleep" {
		t.Fatalf("text = %q", text)
	}
}

func TestChannelsFromConfig(t *testing.T) {
	chs, err := Channels(config.NotifyConfig{
		SendGrid: config.SendGridConfig{APIKey: "k"},
		Pushover: config.PushoverConfig{Token: "t", User: "u"},
	}, "me@example.com")
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	n := New(zerolog.Nop(), 0, chs...)
	if got := strings.Join(n.Channels(), ","); got != "sendgrid,pushover" {
		t.Fatalf("channels = %s", got)
	}

	if _, err := Channels(config.NotifyConfig{Pushover: config.PushoverConfig{Token: "t"}}, ""); err == nil {
		t.Fatalf("expected error for pushover without user")
	}
}
