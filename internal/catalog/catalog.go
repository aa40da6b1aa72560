// Package catalog holds the static home-page catalog and the title search filter.
package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Clark-Hu/cinepuma/internal/domain"
)

// PopularCount is the size of the default view shown for an empty query.
const PopularCount = 4

//go:embed movies.yaml
var builtin string

var (
	defaultOnce sync.Once
	defaultList []domain.Movie
	defaultErr  error
)

type movieEntry struct {
	Title       string `yaml:"title"`
	Image       string `yaml:"image"`
	Description string `yaml:"description"`
	ExternalID  string `yaml:"externalId"`
}

// Load decodes a YAML list of movie entries.
func Load(r io.Reader) ([]domain.Movie, error) {
	var entries []movieEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	movies := make([]domain.Movie, 0, len(entries))
	for i, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			return nil, fmt.Errorf("catalog entry %d: title is required", i)
		}
		movies = append(movies, domain.Movie{
			Title:       title,
			PosterURL:   strings.TrimSpace(e.Image),
			Description: strings.TrimSpace(e.Description),
			ExternalID:  strings.TrimSpace(e.ExternalID),
		})
	}
	return movies, nil
}

// Default returns the embedded catalog. Callers must not modify the slice.
func Default() ([]domain.Movie, error) {
	defaultOnce.Do(func() {
		defaultList, defaultErr = Load(strings.NewReader(builtin))
	})
	return defaultList, defaultErr
}

// Find returns the entry whose title equals id, ignoring case.
func Find(movies []domain.Movie, id string) (domain.Movie, bool) {
	for _, m := range movies {
		if strings.EqualFold(m.Title, id) {
			return m, true
		}
	}
	return domain.Movie{}, false
}
