// Package web serves the operator status page for a running session.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/example/visa-rescheduler/internal/attempts"
	"github.com/example/visa-rescheduler/internal/auth"
	"github.com/example/visa-rescheduler/internal/scheduler"
)

//go:embed templates/*.html
var fs embed.FS

type Server struct {
	Auth     *auth.Store
	Status   *scheduler.Status
	Attempts attempts.Store // optional
	Window   string
	Log      zerolog.Logger
}

type tmplData struct {
	Title   string
	Authed  bool
	Flash   string
	Refresh int

	Window   string
	Status   scheduler.Snapshot
	Attempts []attempts.Attempt
}

var funcs = template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logging)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/login", s.handleLoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet, http.MethodPost)

	r.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome))).Methods(http.MethodGet)
	r.Handle("/status.json", s.Auth.RequireAuth(http.HandlerFunc(s.handleStatusJSON))).Methods(http.MethodGet)
	r.Handle("/attempts.json", s.Auth.RequireAuth(http.HandlerFunc(s.handleAttemptsJSON))).Methods(http.MethodGet)

	return r
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.Log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("http")
	})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := tmplData{
		Title:   "Status",
		Authed:  true,
		Refresh: 30,
		Window:  s.Window,
		Status:  s.Status.Snapshot(),
	}
	if s.Attempts != nil {
		recent, err := s.Attempts.Recent(r.Context(), 20)
		if err != nil {
			s.Log.Warn().Err(err).Msg("list attempts")
			data.Flash = "Attempt history unavailable"
		}
		data.Attempts = recent
	}
	s.render(w, "templates/status.html", data)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "templates/login.html", tmplData{Title: "Login"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Auth.Login(r.FormValue("password")); err != nil {
		flash := "Invalid password"
		if errors.Is(err, auth.ErrNoOperator) {
			flash = "No operator password is configured"
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: flash})
		return
	}
	if err := s.Auth.SetSession(w, r); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleStatusJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Status.Snapshot())
}

func (s *Server) handleAttemptsJSON(w http.ResponseWriter, r *http.Request) {
	if s.Attempts == nil {
		writeJSON(w, []attempts.Attempt{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recent, err := s.Attempts.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if recent == nil {
		recent = []attempts.Attempt{}
	}
	writeJSON(w, recent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.New("base").Funcs(funcs).ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		s.Log.Error().Err(err).Str("template", name).Msg("render")
	}
}

// Start serves h on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("status page listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
