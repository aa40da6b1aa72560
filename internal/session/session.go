// Package session keeps the signed-in user in a signed cookie and gates
// pages that require one.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Clark-Hu/cinepuma/internal/auth"
)

// CookieName is the session cookie.
const CookieName = "cinepuma_session"

// GuestName is shown for anonymous users.
const GuestName = "Invitado"

// ErrNoSession is returned by Read when the request carries no valid session.
var ErrNoSession = errors.New("session: no valid session")

// Claims is the signed cookie payload.
type Claims struct {
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

// Session is the decoded cookie.
type Session struct {
	UID       string
	Email     string
	Anonymous bool
	ExpiresAt time.Time
}

// DisplayName is the local part of the email, or GuestName.
func (s Session) DisplayName() string {
	if s.Anonymous || s.Email == "" {
		return GuestName
	}
	if at := strings.IndexByte(s.Email, '@'); at > 0 {
		return s.Email[:at]
	}
	return s.Email
}

// Manager issues and checks session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewManager returns a manager signing with secret.
func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

// Issue sets the session cookie for user.
func (m *Manager) Issue(w http.ResponseWriter, user *auth.User) (Session, error) {
	if user == nil || user.UID == "" {
		return Session{}, errors.New("session: user is required")
	}
	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		Email:     user.Email,
		Anonymous: user.Anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return Session{UID: user.UID, Email: user.Email, Anonymous: user.Anonymous, ExpiresAt: expires}, nil
}

// Clear removes the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read decodes the session of r.
func (m *Manager) Read(r *http.Request) (Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, ErrNoSession
	}
	var claims Claims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || claims.Subject == "" {
		return Session{}, ErrNoSession
	}
	s := Session{UID: claims.Subject, Email: claims.Email, Anonymous: claims.Anonymous}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by Gate or Load.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// Load attaches the session to the request context when there is one. It
// never blocks a request.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, err := m.Read(r); err == nil {
			r = r.WithContext(WithSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

// Gate redirects requests without a signed-in account to loginURL. Guest
// sessions do not pass. The redirect has an empty body, so no protected
// content is ever written.
func (m *Manager) Gate(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := m.Read(r)
			if err != nil || s.Anonymous {
				w.Header().Set("Location", loginURL)
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}
