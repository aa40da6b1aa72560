package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/catalog"
	"github.com/Clark-Hu/cinepuma/internal/detail"
	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/rating"
	"github.com/Clark-Hu/cinepuma/internal/reviews"
	"github.com/Clark-Hu/cinepuma/internal/session"
	"github.com/Clark-Hu/cinepuma/internal/tmdb"
	"github.com/Clark-Hu/cinepuma/internal/view"
)

// anonymousUser identifies reviewers when no identity backend is configured.
const anonymousUser = "anonymous"

var errMovieNotFound = errors.New("movie not found")

func decodeIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return "", errors.New("missing id parameter")
	}
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", errors.New("invalid id parameter")
	}
	return strings.TrimSpace(id), nil
}

// resolveMovie finds the movie behind a details URL: a static catalog title
// or a TMDB id.
func (s *Server) resolveMovie(r *http.Request) (domain.Movie, error) {
	id, err := decodeIDParam(r)
	if err != nil {
		return domain.Movie{}, errMovieNotFound
	}
	if m, ok := catalog.Find(s.deps.Catalog, id); ok {
		return m, nil
	}
	if _, convErr := strconv.Atoi(id); convErr != nil || s.deps.TMDB == nil {
		return domain.Movie{}, errMovieNotFound
	}
	m, err := s.deps.TMDB.Movie(r.Context(), id)
	var statusErr *tmdb.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return domain.Movie{}, errMovieNotFound
	}
	return m, err
}

func (s *Server) renderMovieError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errMovieNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Película no encontrada", "No encontramos la película que buscas.")
		return
	}
	s.logger.Warn("http: load movie", zap.Error(err))
	s.renderError(w, r, statusFor(err), "Error al cargar la película", "Inténtalo de nuevo más tarde.")
}

// reviewerID returns the uid reviews are stored under. Visitors without a
// session get a guest identity when the identity service allows it. Only
// callers that can store a review ask for one.
func (s *Server) reviewerID(w http.ResponseWriter, r *http.Request) string {
	if sess, ok := session.FromContext(r.Context()); ok {
		return sess.UID
	}
	if !s.deps.Auth.PasswordEnabled() {
		return anonymousUser
	}
	user, err := s.deps.Auth.SignInAnonymously(r.Context())
	if err != nil {
		s.logger.Warn("http: guest sign-in failed", zap.Error(err))
		return anonymousUser
	}
	sess, err := s.deps.Sessions.Issue(w, user)
	if err != nil {
		s.logger.Error("http: issue guest session", zap.Error(err))
		return anonymousUser
	}
	return sess.UID
}

func (s *Server) detailBody(m domain.Movie, value float64, section view.ReviewsSection) view.Detail {
	id := view.MovieID(m)
	href := view.MovieHref(m)
	return view.Detail{
		MovieID:      id,
		Card:         view.NewCard(m),
		LiveURL:      href + "/live",
		SubmitURL:    href + "/reviews",
		Min:          rating.Min,
		Max:          rating.Max,
		Step:         rating.Step,
		Rating:       value,
		Stars:        view.NewStars(value),
		StoreMissing: s.deps.Submitter == nil,
		Reviews:      section,
	}
}

// currentReviews renders the review section from the feed's latest snapshot.
// The live socket keeps it current afterwards.
func (s *Server) currentReviews(movieID string) view.ReviewsSection {
	switch {
	case s.deps.Submitter == nil:
		return view.NewReviewsSection(detail.ReviewsView{
			Summary:     reviews.Aggregate(nil, movieID),
			Unavailable: detail.StoreMissingMessage,
		})
	case s.deps.Feed == nil:
		return view.EmptyReviews(movieID)
	case s.deps.Feed.Failed():
		return view.NewReviewsSection(detail.ReviewsView{
			Summary:     reviews.Aggregate(nil, movieID),
			Unavailable: detail.FeedFailedMessage,
		})
	}
	all, ok := s.deps.Feed.Latest()
	if !ok {
		return view.EmptyReviews(movieID)
	}
	return view.NewReviewsSection(detail.ReviewsView{Summary: reviews.Aggregate(all, movieID)})
}

func (s *Server) handleMovie(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolveMovie(r)
	if err != nil {
		s.renderMovieError(w, r, err)
		return
	}

	section := s.currentReviews(view.MovieID(m))
	s.deps.Renderer.Render(w, http.StatusOK, view.PageDetail, s.page(r, m.Title, s.detailBody(m, rating.Default, section)))
}

// handleSubmitReview is the form fallback for browsers without the live socket.
func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolveMovie(r)
	if err != nil {
		s.renderMovieError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Formulario inválido", "No se pudo leer la opinión.")
		return
	}
	value, convErr := strconv.ParseFloat(r.PostForm.Get("rating"), 64)
	if convErr != nil {
		value = rating.Unset
	}

	notice := detail.NoticeNoStore
	status := http.StatusServiceUnavailable
	if s.deps.Submitter != nil {
		_, err = s.deps.Submitter.Submit(r.Context(), reviews.Submission{
			MovieID: view.MovieID(m),
			UserID:  s.reviewerID(w, r),
			Rating:  value,
			Text:    r.PostForm.Get("text"),
		})
		if err == nil {
			http.Redirect(w, r, view.MovieHref(m), http.StatusSeeOther)
			return
		}
		notice = detail.NoticeFor(err)
		status = statusFor(err)
	}

	keep := rating.Default
	if rating.Valid(value) {
		keep = value
	}
	body := s.detailBody(m, keep, s.currentReviews(view.MovieID(m)))
	body.Text = r.PostForm.Get("text")
	s.deps.Renderer.Render(w, status, view.PageDetail, s.page(r, m.Title, body, notice))
}
