package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/catalog"
	"github.com/Clark-Hu/cinepuma/internal/session"
	"github.com/Clark-Hu/cinepuma/internal/tmdb"
	"github.com/Clark-Hu/cinepuma/internal/view"
)

// Messages of the top-rated page.
const (
	tmdbMissingMessage = "El catálogo remoto no está configurado."
	tmdbFailedMessage  = "Error al cargar las películas."
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	listing := view.NewListing(catalog.Search(s.deps.Catalog, r.URL.Query().Get("q")))
	s.deps.Renderer.Render(w, http.StatusOK, view.PageHome, s.page(r, "Inicio", listing))
}

// handleSearch serves the card row alone so the page can filter while typing.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	listing := view.NewListing(catalog.Search(s.deps.Catalog, r.URL.Query().Get("q")))
	html, err := s.deps.Renderer.Fragment(view.FragmentListing, listing)
	if err != nil {
		s.logger.Error("http: render listing", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (s *Server) handleTopRated(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	body := view.TopRated{Query: query}
	status := http.StatusOK

	if s.deps.TMDB == nil {
		body.Error = tmdbMissingMessage
		status = http.StatusServiceUnavailable
	} else {
		movies, err := s.deps.TMDB.Search(r.Context(), query)
		var statusErr *tmdb.StatusError
		switch {
		case errors.As(err, &statusErr):
			body.Error = fmt.Sprintf("%s Código: %d. (Verifica tu API Key)", tmdbFailedMessage, statusErr.Code)
			status = http.StatusBadGateway
		case err != nil:
			s.logger.Warn("http: tmdb request failed", zap.Error(err))
			body.Error = tmdbFailedMessage
			status = statusFor(err)
		default:
			body.Cards = view.Cards(tmdb.WithPosters(movies))
		}
	}
	s.deps.Renderer.Render(w, status, view.PageTopRated, s.page(r, "Mejor valoradas", body))
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	s.deps.Renderer.Render(w, http.StatusOK, view.PageHelp, s.page(r, "Ayuda", s.deps.Help))
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	w.Header().Set("Cache-Control", "no-store")
	s.deps.Renderer.Render(w, http.StatusOK, view.PageWelcome,
		s.page(r, "Bienvenido", view.Welcome{Name: sess.DisplayName()}))
}
