package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Clark-Hu/cinepuma/internal/auth"
)

func issueCookie(t *testing.T, m *Manager, user *auth.User) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if _, err := m.Issue(rec, user); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}
	return cookies[0]
}

func TestIssueAndRead(t *testing.T) {
	m := NewManager("secret", time.Hour, false)
	cookie := issueCookie(t, m, &auth.User{UID: "u1", Email: "ana.lopez@cinepuma.mx"})

	req := httptest.NewRequest(http.MethodGet, "/welcome", nil)
	req.AddCookie(cookie)
	s, err := m.Read(req)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if s.UID != "u1" || s.DisplayName() != "ana.lopez" {
		t.Fatalf("session = %+v (%s)", s, s.DisplayName())
	}
}

func TestReadRejects(t *testing.T) {
	m := NewManager("secret", time.Hour, false)
	good := issueCookie(t, m, &auth.User{UID: "u1"})

	other := NewManager("other-secret", time.Hour, false)
	forged := issueCookie(t, other, &auth.User{UID: "u1"})

	expired := NewManager("secret", time.Hour, false)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old := issueCookie(t, expired, &auth.User{UID: "u1"})

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"garbage", &http.Cookie{Name: CookieName, Value: "not-a-token"}},
		{"wrong key", forged},
		{"expired", old},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			if _, err := m.Read(req); err != ErrNoSession {
				t.Fatalf("Read() error = %v, want ErrNoSession", err)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(good)
	if _, err := m.Read(req); err != nil {
		t.Fatalf("good cookie rejected: %v", err)
	}
}

func TestGate(t *testing.T) {
	m := NewManager("secret", time.Hour, false)
	protected := m.Gate("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			t.Errorf("session missing from context")
		}
		_, _ = w.Write([]byte("hola " + s.UID))
	}))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/welcome", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("unauthenticated response = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("redirect leaked body %q", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/welcome", nil)
	req.AddCookie(issueCookie(t, m, &auth.User{UID: "u1"}))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "hola u1" {
		t.Fatalf("authenticated response = %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/welcome", nil)
	req.AddCookie(issueCookie(t, m, &auth.User{UID: "guest", Anonymous: true}))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound || rec.Body.Len() != 0 {
		t.Fatalf("guest response = %d %q", rec.Code, rec.Body.String())
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		s    Session
		want string
	}{
		{Session{Email: "a@b.co"}, "a"},
		{Session{Email: "plain"}, "plain"},
		{Session{Anonymous: true}, GuestName},
		{Session{}, GuestName},
	}
	for _, tt := range tests {
		if got := tt.s.DisplayName(); got != tt.want {
			t.Fatalf("DisplayName(%+v) = %q, want %q", tt.s, got, tt.want)
		}
	}
}
