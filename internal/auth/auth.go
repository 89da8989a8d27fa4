// Package auth gates the status page behind a single operator password.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

const (
	cookieName = "visasched_session"
	sessionTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrNoOperator      = errors.New("operator password not configured")
)

type Store struct {
	sc   *securecookie.SecureCookie
	hash string
}

type ctxKey struct{}

// NewStore returns a store that accepts the password matching operatorHash.
// An empty hash rejects every login.
func NewStore(operatorHash string, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, hash: operatorHash}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *Store) Login(password string) error {
	if s.hash == "" {
		return ErrNoOperator
	}
	if !CheckPassword(s.hash, password) {
		return ErrInvalidPassword
	}
	return nil
}

type Session struct {
	IssuedAt time.Time
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request) error {
	val := map[string]int64{"iat": time.Now().Unix(), "v": 1}
	encoded, err := s.sc.Encode(cookieName, val)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	val := map[string]int64{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	iat, ok := val["iat"]
	if !ok || iat <= 0 {
		return Session{}, false
	}
	return Session{IssuedAt: time.Unix(iat, 0)}, true
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(Session)
	return sess, ok
}
