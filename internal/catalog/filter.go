package catalog

import (
	"strings"

	"github.com/Clark-Hu/cinepuma/internal/domain"
)

const (
	// PopularHeading titles the default view.
	PopularHeading = "Películas Populares"
	// NoResultsMessage replaces the card row when a non-empty query matches nothing.
	NoResultsMessage = "No se encontraron películas que coincidan con la búsqueda."
)

// NormalizeQuery lower-cases and trims a raw search string.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Filter returns the movies whose title contains the query, case-insensitively,
// in catalog order. An empty query yields the first PopularCount movies.
// The result never aliases movies.
func Filter(movies []domain.Movie, query string) []domain.Movie {
	q := NormalizeQuery(query)
	if q == "" {
		n := PopularCount
		if len(movies) < n {
			n = len(movies)
		}
		return append([]domain.Movie(nil), movies[:n]...)
	}

	out := make([]domain.Movie, 0)
	for _, m := range movies {
		if strings.Contains(strings.ToLower(m.Title), q) {
			out = append(out, m)
		}
	}
	return out
}

// Listing is what the home page shows for a query.
type Listing struct {
	Query   string
	Heading string
	Movies  []domain.Movie
	// Message is set only when a non-empty query matched nothing.
	Message string
}

// Search applies Filter and the presentation rule: an empty query shows the
// popular view and never a message; an empty result for a real query shows
// NoResultsMessage.
func Search(movies []domain.Movie, query string) Listing {
	q := NormalizeQuery(query)
	listing := Listing{
		Query:  q,
		Movies: Filter(movies, q),
	}
	if q == "" {
		listing.Heading = PopularHeading
		return listing
	}
	listing.Heading = "Resultados para: \"" + q + "\""
	if len(listing.Movies) == 0 {
		listing.Message = NoResultsMessage
	}
	return listing
}
