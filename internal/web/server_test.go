package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/visa-rescheduler/internal/attempts"
	"github.com/example/visa-rescheduler/internal/auth"
	"github.com/example/visa-rescheduler/internal/scheduler"
)

type fakeAttempts struct{ rows []attempts.Attempt }

func (f *fakeAttempts) Record(_ context.Context, a attempts.Attempt) error {
	f.rows = append(f.rows, a)
	return nil
}

func (f *fakeAttempts) Recent(_ context.Context, limit int) ([]attempts.Attempt, error) {
	return f.rows, nil
}

func (f *fakeAttempts) Close() error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	hash, err := auth.HashPassword("operator")
	if err != nil {
		t.Fatal(err)
	}
	s := &Server{
		Auth:   auth.NewStore(hash, []byte("0123456789abcdef0123456789abcdef"), []byte("0123456789abcdef")),
		Status: scheduler.NewStatus("run-1"),
		Attempts: &fakeAttempts{rows: []attempts.Attempt{{
			RunID: "run-1", Outcome: attempts.Ban, Requests: 3, CreatedAt: time.Now(),
		}}},
		Window: "2024-06-01 .. 2024-06-30",
		Log:    zerolog.Nop(),
	}
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return srv, client
}

func TestHealthz(t *testing.T) {
	srv, client := newTestServer(t)
	resp, err := client.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatusRequiresLogin(t *testing.T) {
	srv, client := newTestServer(t)
	for _, path := range []string{"/", "/status.json", "/attempts.json"} {
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
			t.Fatalf("%s: code=%d location=%q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
}

func TestLoginFlow(t *testing.T) {
	srv, client := newTestServer(t)

	resp, err := client.PostForm(srv.URL+"/login", url.Values{"password": {"nope"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d", resp.StatusCode)
	}

	resp, err = client.PostForm(srv.URL+"/login", url.Values{"password": {"operator"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login: status = %d", resp.StatusCode)
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie")
	}

	get := func(path string) *http.Response {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	home := get("/")
	raw, _ := io.ReadAll(home.Body)
	home.Body.Close()
	body := string(raw)
	if home.StatusCode != http.StatusOK {
		t.Fatalf("home: status = %d", home.StatusCode)
	}
	for _, want := range []string{"run-1", "logged_out", "2024-06-01 .. 2024-06-30", "ban"} {
		if !strings.Contains(body, want) {
			t.Errorf("home page missing %q", want)
		}
	}

	st := get("/status.json")
	var snap scheduler.Snapshot
	err = json.NewDecoder(st.Body).Decode(&snap)
	st.Body.Close()
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if snap.RunID != "run-1" {
		t.Fatalf("snapshot run id = %q", snap.RunID)
	}

	at := get("/attempts.json")
	var rows []attempts.Attempt
	err = json.NewDecoder(at.Body).Decode(&rows)
	at.Body.Close()
	if err != nil || len(rows) != 1 || rows[0].Outcome != attempts.Ban {
		t.Fatalf("attempts = %+v, err = %v", rows, err)
	}
}
