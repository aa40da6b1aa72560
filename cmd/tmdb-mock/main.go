// Command tmdb-mock serves a fixed movie list with the TMDB v3 routes the
// server uses, for local development and the client smoke test.
package main

import (
	_ "embed"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

//go:embed movies.json
var defaultMovies []byte

type movieEntry struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	PosterPath  *string  `json:"poster_path"`
	VoteAverage *float64 `json:"vote_average"`
}

type listResponse struct {
	Page         int          `json:"page"`
	Results      []movieEntry `json:"results"`
	TotalResults int          `json:"total_results"`
}

func main() {
	var (
		port   = flag.String("port", "9099", "port to listen on")
		data   = flag.String("data", "", "path to a JSON movie list (defaults to the embedded one)")
		apiKey = flag.String("api-key", "", "reject requests whose api_key differs (empty accepts any)")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	raw := defaultMovies
	if *data != "" {
		if raw, err = os.ReadFile(*data); err != nil {
			logger.Fatal("read mock data", zap.Error(err))
		}
	}
	var movies []movieEntry
	if err := json.Unmarshal(raw, &movies); err != nil {
		logger.Fatal("parse mock data", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if *apiKey != "" && r.URL.Query().Get("api_key") != *apiKey {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"status_code":    7,
					"status_message": "Invalid API key: You must be granted a valid key.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/3", func(r chi.Router) {
		r.Get("/movie/top_rated", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, listResponse{Page: 1, Results: movies, TotalResults: len(movies)})
		})
		r.Get("/search/movie", func(w http.ResponseWriter, r *http.Request) {
			q := strings.ToLower(r.URL.Query().Get("query"))
			results := []movieEntry{}
			for _, m := range movies {
				if q != "" && strings.Contains(strings.ToLower(m.Title), q) {
					results = append(results, m)
				}
			}
			writeJSON(w, http.StatusOK, listResponse{Page: 1, Results: results, TotalResults: len(results)})
		})
		r.Get("/movie/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err == nil {
				for _, m := range movies {
					if m.ID == id {
						writeJSON(w, http.StatusOK, m)
						return
					}
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]any{
				"status_code":    34,
				"status_message": "The resource you requested could not be found.",
			})
		})
	})

	addr := ":" + *port
	logger.Info("mock tmdb listening", zap.String("addr", addr), zap.Int("movies", len(movies)))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
