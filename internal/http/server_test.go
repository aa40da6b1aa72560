package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/auth"
	"github.com/Clark-Hu/cinepuma/internal/catalog"
	"github.com/Clark-Hu/cinepuma/internal/config"
	"github.com/Clark-Hu/cinepuma/internal/detail"
	"github.com/Clark-Hu/cinepuma/internal/docstore"
	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/help"
	"github.com/Clark-Hu/cinepuma/internal/reviews"
	"github.com/Clark-Hu/cinepuma/internal/session"
	"github.com/Clark-Hu/cinepuma/internal/tmdb"
	"github.com/Clark-Hu/cinepuma/internal/view"
)

const catalogMovie = "/movies/NOBODY%202"

// fakeTMDB serves canned records.
type fakeTMDB struct {
	movies []domain.Movie
	err    error
}

func (f fakeTMDB) TopRated(context.Context) ([]domain.Movie, error) {
	return f.movies, f.err
}

func (f fakeTMDB) Search(ctx context.Context, term string) ([]domain.Movie, error) {
	return f.TopRated(ctx)
}

func (f fakeTMDB) Movie(_ context.Context, id string) (domain.Movie, error) {
	if f.err != nil {
		return domain.Movie{}, f.err
	}
	for _, m := range f.movies {
		if m.ExternalID == id {
			return m, nil
		}
	}
	return domain.Movie{}, &tmdb.StatusError{Code: http.StatusNotFound}
}

// fakePassword accepts one account.
type fakePassword struct{}

func (fakePassword) SignIn(_ context.Context, email, password string) (*auth.User, error) {
	if password != "secreto" {
		return nil, &auth.Error{Op: "sign_in", Status: http.StatusBadRequest, Message: "INVALID_PASSWORD"}
	}
	return &auth.User{UID: "uid-" + email, Email: email}, nil
}

func (fakePassword) SignUp(_ context.Context, email, _ string) (*auth.User, error) {
	return &auth.User{UID: "uid-" + email, Email: email, New: true}, nil
}

func (fakePassword) SignInAnonymously(context.Context) (*auth.User, error) {
	return &auth.User{UID: "guest-1", Anonymous: true}, nil
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (*auth.User, error) {
	if token != "good-token" {
		return nil, &auth.Error{Op: "verify", Status: http.StatusUnauthorized, Message: "invalid token"}
	}
	return &auth.User{UID: "token-user", Email: "ana@example.com"}, nil
}

type testOptions struct {
	noStore bool
	// mem, when set, backs the review store so tests can break it.
	mem *docstore.Memory
	// submitter replaces the store-backed submitter.
	submitter detail.Submitter
	tmdb    tmdb.Client
	auth    *auth.Service
	health  func(ctx context.Context) error
}

func buildTestServer(tb testing.TB, opts testOptions) *Server {
	tb.Helper()
	cfg := config.Config{
		Port:             "0",
		AppID:            "cinepuma",
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		IdleTimeoutSecs:  60,
	}

	movies, err := catalog.Default()
	if err != nil {
		tb.Fatalf("catalog: %v", err)
	}
	faq, err := help.Default()
	if err != nil {
		tb.Fatalf("help: %v", err)
	}
	renderer, err := view.NewRenderer(zap.NewNop())
	if err != nil {
		tb.Fatalf("renderer: %v", err)
	}

	deps := Deps{
		Catalog:  movies,
		TMDB:     opts.tmdb,
		Auth:     opts.auth,
		Sessions: session.NewManager("test-secret", time.Hour, false),
		Help:     faq,
		Renderer: renderer,
		Health:   opts.health,
	}

	if !opts.noStore {
		mem := opts.mem
		if mem == nil {
			mem = docstore.NewMemory()
		}
		store := reviews.NewStore(mem, cfg.AppID)
		feed := reviews.NewFeed(store, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = feed.Run(ctx)
		}()
		tb.Cleanup(func() {
			cancel()
			<-done
			mem.Close()
		})
		deps.Submitter = reviews.NewSubmitter(store)
		deps.Feed = feed
	}
	if opts.submitter != nil {
		deps.Submitter = opts.submitter
	}

	srv := New(cfg, deps, zap.NewNop())
	tb.Cleanup(srv.stopLive)
	return srv
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestHomeAndSearch(t *testing.T) {
	srv := buildTestServer(t, testOptions{})

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, catalog.PopularHeading) || !strings.Contains(body, "NOBODY 2") {
		t.Fatalf("home page misses the catalog: %s", body)
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/?q=nobody", nil))
	if !strings.Contains(rec.Body.String(), "NOBODY 2") || strings.Contains(rec.Body.String(), "BAILARINA") {
		t.Fatalf("filtered home page has wrong cards")
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/search?q=zzzz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /search status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), catalog.NoResultsMessage) {
		t.Fatalf("search fragment misses the no-results message: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "<html") {
		t.Fatalf("search returned a full page")
	}
}

func TestTopRated(t *testing.T) {
	vote := 8.4
	poster := domain.Movie{Title: "Con Póster", PosterURL: "https://img/p.jpg", ExternalID: "11", VoteAverage: &vote}
	bare := domain.Movie{Title: "Sin Póster", ExternalID: "12"}

	tests := []struct {
		name     string
		client   tmdb.Client
		status   int
		contains string
		missing  string
	}{
		{name: "not configured", client: nil, status: http.StatusServiceUnavailable, contains: tmdbMissingMessage},
		{name: "bad key", client: fakeTMDB{err: &tmdb.StatusError{Code: http.StatusUnauthorized}}, status: http.StatusBadGateway, contains: "Código: 401"},
		{name: "network", client: fakeTMDB{err: domain.ErrNetworkFailure}, status: http.StatusBadGateway, contains: tmdbFailedMessage},
		{name: "ok", client: fakeTMDB{movies: []domain.Movie{poster, bare}}, status: http.StatusOK, contains: "Con Póster", missing: "Sin Póster"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := buildTestServer(t, testOptions{tmdb: tc.client, noStore: true})
			rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/top-rated", nil))
			if rec.Code != tc.status {
				t.Fatalf("status %d, want %d", rec.Code, tc.status)
			}
			if !strings.Contains(rec.Body.String(), tc.contains) {
				t.Fatalf("body misses %q", tc.contains)
			}
			if tc.missing != "" && strings.Contains(rec.Body.String(), tc.missing) {
				t.Fatalf("body should not contain %q", tc.missing)
			}
		})
	}
}

func sessionCookie(t *testing.T, srv *Server, user *auth.User) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if _, err := srv.deps.Sessions.Issue(rec, user); err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("no session cookie issued")
	return nil
}

func TestWelcomeGate(t *testing.T) {
	srv := buildTestServer(t, testOptions{noStore: true})

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/welcome", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("Location = %q", loc)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("protected content leaked: %q", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/welcome", nil)
	req.AddCookie(sessionCookie(t, srv, &auth.User{UID: "u1", Email: "<b>ana</b>@example.com"}))
	rec = do(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d with session", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<b>ana</b>") || !strings.Contains(body, "&lt;b&gt;ana&lt;/b&gt;") {
		t.Fatalf("greeting not escaped: %s", body)
	}
}

func TestLogin(t *testing.T) {
	t.Run("validation before backend", func(t *testing.T) {
		srv := buildTestServer(t, testOptions{noStore: true})
		rec := do(t, srv, postForm("/login", url.Values{"email": {""}, "password": {""}}))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status %d, want 422", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), auth.SignInRequiredMessage) {
			t.Fatalf("missing validation notice")
		}
	})

	t.Run("backend missing", func(t *testing.T) {
		srv := buildTestServer(t, testOptions{noStore: true})
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/login", nil))
		if !strings.Contains(rec.Body.String(), noticeAuthMissing.Message) {
			t.Fatalf("login page misses the configuration warning")
		}
		rec = do(t, srv, postForm("/login", url.Values{"email": {"ana@example.com"}, "password": {"secreto"}}))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status %d, want 503", rec.Code)
		}
	})

	t.Run("provider rejection shown verbatim", func(t *testing.T) {
		srv := buildTestServer(t, testOptions{noStore: true, auth: auth.NewService(fakePassword{}, nil, nil)})
		rec := do(t, srv, postForm("/login", url.Values{"email": {"ana@example.com"}, "password": {"mala"}}))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status %d, want 401", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Error: INVALID_PASSWORD") {
			t.Fatalf("provider message not shown")
		}
	})

	t.Run("success then logout", func(t *testing.T) {
		srv := buildTestServer(t, testOptions{noStore: true, auth: auth.NewService(fakePassword{}, nil, nil)})
		rec := do(t, srv, postForm("/login", url.Values{"action": {"signup"}, "email": {"ana@example.com"}, "password": {"secreto"}}))
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/welcome" {
			t.Fatalf("status %d Location %q", rec.Code, rec.Header().Get("Location"))
		}
		cookies := rec.Result().Cookies()
		if len(cookies) == 0 {
			t.Fatalf("no session cookie")
		}

		req := httptest.NewRequest(http.MethodGet, "/welcome", nil)
		req.AddCookie(cookies[0])
		if rec := do(t, srv, req); !strings.Contains(rec.Body.String(), "¡Hola, ana!") {
			t.Fatalf("welcome page misses greeting: %s", rec.Body.String())
		}

		req = httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.AddCookie(cookies[0])
		rec = do(t, srv, req)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Fatalf("logout status %d Location %q", rec.Code, rec.Header().Get("Location"))
		}
	})
}

func TestTokenSignIn(t *testing.T) {
	tests := []struct {
		name   string
		svc    *auth.Service
		body   string
		status int
		code   string
	}{
		{name: "not configured", svc: nil, body: `{"idToken":"good-token"}`, status: http.StatusServiceUnavailable, code: "NOT_CONFIGURED"},
		{name: "empty token", svc: auth.NewService(nil, fakeVerifier{}, nil), body: `{"idToken":" "}`, status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "rejected", svc: auth.NewService(nil, fakeVerifier{}, nil), body: `{"idToken":"bad"}`, status: http.StatusUnauthorized, code: "AUTH_FAILED"},
		{name: "ok", svc: auth.NewService(nil, fakeVerifier{}, nil), body: `{"idToken":"good-token"}`, status: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := buildTestServer(t, testOptions{noStore: true, auth: tc.svc})
			req := httptest.NewRequest(http.MethodPost, "/session/token", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := do(t, srv, req)
			if rec.Code != tc.status {
				t.Fatalf("status %d, want %d: %s", rec.Code, tc.status, rec.Body.String())
			}
			if tc.code != "" {
				var resp errorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if resp.Code != tc.code {
					t.Fatalf("code %q, want %q", resp.Code, tc.code)
				}
				return
			}
			var resp sessionResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.UID != "token-user" || resp.Name != "ana" || resp.Anonymous {
				t.Fatalf("unexpected session %+v", resp)
			}
			if len(rec.Result().Cookies()) == 0 {
				t.Fatalf("no session cookie")
			}
		})
	}
}

func TestMovieDetail(t *testing.T) {
	vote := 7.1
	remote := domain.Movie{Title: "Remota", PosterURL: "https://img/r.jpg", ExternalID: "603", VoteAverage: &vote}
	srv := buildTestServer(t, testOptions{tmdb: fakeTMDB{movies: []domain.Movie{remote}}})

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, catalogMovie, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`data-live="/movies/NOBODY%202/live"`, detail.EmptyReviewsMessage, "Valoración Media: N/A"} {
		if !strings.Contains(body, want) {
			t.Fatalf("detail page misses %q", want)
		}
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/movies/603", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Remota") {
		t.Fatalf("remote movie: status %d", rec.Code)
	}

	for _, path := range []string{"/movies/999", "/movies/desconocida"} {
		if rec := do(t, srv, httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusNotFound {
			t.Fatalf("%s status %d, want 404", path, rec.Code)
		}
	}
}

func TestMovieDetailWithoutStore(t *testing.T) {
	srv := buildTestServer(t, testOptions{noStore: true})
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, catalogMovie, nil))
	body := rec.Body.String()
	if !strings.Contains(body, detail.StoreMissingMessage) || !strings.Contains(body, "Error de Configuración de BD") {
		t.Fatalf("store warning missing: %s", body)
	}

	rec = do(t, srv, postForm(catalogMovie+"/reviews", url.Values{"rating": {"4"}, "text": {"Muy buena"}}))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), detail.NoticeNoStore.Message) {
		t.Fatalf("no-store notice missing")
	}
}

func TestSubmitReviewForm(t *testing.T) {
	srv := buildTestServer(t, testOptions{})

	rec := do(t, srv, postForm(catalogMovie+"/reviews", url.Values{"rating": {"4.5"}, "text": {"abc"}}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short text status %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), detail.NoticeIncomplete.Title) {
		t.Fatalf("incomplete notice missing")
	}
	if !strings.Contains(rec.Body.String(), `value="4.5"`) || !strings.Contains(rec.Body.String(), ">abc</textarea>") {
		t.Fatalf("form not kept after rejection")
	}

	rec = do(t, srv, postForm(catalogMovie+"/reviews", url.Values{"rating": {"4.5"}, "text": {"  Muy entretenida  "}}))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != catalogMovie {
		t.Fatalf("status %d Location %q", rec.Code, rec.Header().Get("Location"))
	}

	waitFor(t, func() bool {
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, catalogMovie, nil))
		return strings.Contains(rec.Body.String(), "(1 votos)")
	})
	rec = do(t, srv, httptest.NewRequest(http.MethodGet, catalogMovie, nil))
	body := rec.Body.String()
	if !strings.Contains(body, "Valoración Media: 4.5 / 5") || !strings.Contains(body, `"Muy entretenida"`) {
		t.Fatalf("review not listed: %s", body)
	}

	// other movies do not see it
	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/movies/BAILARINA", nil))
	if !strings.Contains(rec.Body.String(), detail.EmptyReviewsMessage) {
		t.Fatalf("review leaked to another movie")
	}
}

func TestHealthz(t *testing.T) {
	srv := buildTestServer(t, testOptions{noStore: true})
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"store":"none"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}

	srv = buildTestServer(t, testOptions{noStore: true, health: func(context.Context) error { return errors.New("down") }})
	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz with failing store: %d", rec.Code)
	}
}

func TestNotFoundPage(t *testing.T) {
	srv := buildTestServer(t, testOptions{noStore: true})
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "Página no encontrada") {
		t.Fatalf("error page missing")
	}
}

// failingSubmitter rejects every review as if the store were down.
type failingSubmitter struct{}

func (failingSubmitter) Submit(context.Context, reviews.Submission) (reviews.Ack, error) {
	return reviews.Ack{}, fmt.Errorf("%w: %w", reviews.ErrStoreUnavailable, errors.New("write timed out"))
}

func TestSubmitReviewFormKeepsText(t *testing.T) {
	srv := buildTestServer(t, testOptions{submitter: failingSubmitter{}})

	rec := do(t, srv, postForm(catalogMovie+"/reviews", url.Values{"rating": {"3"}, "text": {"Texto que no debe perderse"}}))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, ">Texto que no debe perderse</textarea>") {
		t.Fatalf("review text dropped after store failure: %s", body)
	}
	if !strings.Contains(body, detail.NoticeSaveFailed.Title) || !strings.Contains(body, `value="3"`) {
		t.Fatalf("failure notice or rating missing")
	}
}

func TestGuestSessions(t *testing.T) {
	srv := buildTestServer(t, testOptions{auth: auth.NewService(fakePassword{}, nil, nil)})

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, catalogMovie, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if cookies := rec.Result().Cookies(); len(cookies) != 0 {
		t.Fatalf("viewing a movie issued cookies %v", cookies)
	}

	rec = do(t, srv, postForm(catalogMovie+"/reviews", url.Values{"rating": {"4"}, "text": {"Muy entretenida"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("submit status %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("submitting without a session issued no guest session")
	}

	req := httptest.NewRequest(http.MethodGet, "/welcome", nil)
	req.AddCookie(cookies[0])
	rec = do(t, srv, req)
	if rec.Code != http.StatusFound || rec.Body.Len() != 0 {
		t.Fatalf("guest reached /welcome: %d %q", rec.Code, rec.Body.String())
	}
}
