// Package tmdb fetches movie listings from The Movie Database API.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/metrics"
)

// DefaultImageBaseURL prefixes poster paths.
const DefaultImageBaseURL = "https://image.tmdb.org/t/p/w500"

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: upstream returned %d", e.Code)
}

// Unwrap classifies status errors as network failures.
func (e *StatusError) Unwrap() error {
	return domain.ErrNetworkFailure
}

// Client defines the contract for querying the metadata API.
type Client interface {
	TopRated(ctx context.Context) ([]domain.Movie, error)
	// Search falls back to TopRated for an empty term.
	Search(ctx context.Context, term string) ([]domain.Movie, error)
	Movie(ctx context.Context, id string) (domain.Movie, error)
}

// Options configures HTTPClient.
type Options struct {
	BaseURL      string
	APIKey       string
	Language     string
	ImageBaseURL string
	Timeout      time.Duration
	Logger       *zap.Logger
}

// HTTPClient implements Client over HTTP. Requests are never retried.
type HTTPClient struct {
	baseURL   *url.URL
	apiKey    string
	language  string
	imageBase string
	client    *http.Client
	logger    *zap.Logger
}

// NewHTTPClient constructs a new HTTP-backed client.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	imageBase := opts.ImageBaseURL
	if imageBase == "" {
		imageBase = DefaultImageBaseURL
	}
	timeout := opts.Timeout
	return &HTTPClient{
		baseURL:   parsed,
		apiKey:    opts.APIKey,
		language:  opts.Language,
		imageBase: imageBase,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// TopRated lists the best rated movies.
func (c *HTTPClient) TopRated(ctx context.Context) ([]domain.Movie, error) {
	var payload listResponse
	err := c.get(ctx, "top_rated", "/movie/top_rated", nil, &payload)
	if err != nil {
		return nil, err
	}
	return c.convertList(payload), nil
}

// Search looks movies up by title.
func (c *HTTPClient) Search(ctx context.Context, term string) ([]domain.Movie, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return c.TopRated(ctx)
	}
	var payload listResponse
	err := c.get(ctx, "search", "/search/movie", url.Values{"query": {term}}, &payload)
	if err != nil {
		return nil, err
	}
	return c.convertList(payload), nil
}

// Movie loads one movie by its TMDB id.
func (c *HTTPClient) Movie(ctx context.Context, id string) (domain.Movie, error) {
	if _, err := strconv.Atoi(id); err != nil {
		return domain.Movie{}, fmt.Errorf("tmdb: movie id %q: %w", id, domain.ErrValidation)
	}
	var payload apiMovie
	if err := c.get(ctx, "movie", "/movie/"+id, nil, &payload); err != nil {
		return domain.Movie{}, err
	}
	return c.convert(payload), nil
}

func (c *HTTPClient) get(ctx context.Context, op, path string, query url.Values, dst interface{}) (err error) {
	defer func() { metrics.CatalogFetchTotal.WithLabelValues(op, metrics.Outcome(err)).Inc() }()

	rel := &url.URL{Path: c.baseURL.Path + path}
	q := rel.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.language != "" {
		q.Set("language", c.language)
	}
	q.Set("api_key", c.apiKey)
	rel.RawQuery = q.Encode()
	endpoint := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb: %s: %w: %w", op, domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		c.logger.Warn("tmdb: unexpected status", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return &StatusError{Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode tmdb %s response: %w", op, err)
	}
	return nil
}

type listResponse struct {
	Page    int        `json:"page"`
	Results []apiMovie `json:"results"`
}

type apiMovie struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	PosterPath  *string  `json:"poster_path"`
	VoteAverage *float64 `json:"vote_average"`
}

func (c *HTTPClient) convertList(payload listResponse) []domain.Movie {
	out := make([]domain.Movie, 0, len(payload.Results))
	for _, m := range payload.Results {
		out = append(out, c.convert(m))
	}
	return out
}

func (c *HTTPClient) convert(m apiMovie) domain.Movie {
	movie := domain.Movie{
		Title:       m.Title,
		Description: m.Overview,
		ExternalID:  strconv.FormatInt(m.ID, 10),
		VoteAverage: m.VoteAverage,
	}
	if m.PosterPath != nil && *m.PosterPath != "" {
		movie.PosterURL = c.imageBase + *m.PosterPath
	}
	return movie
}

// WithPosters drops records that have no poster, keeping order.
func WithPosters(movies []domain.Movie) []domain.Movie {
	out := make([]domain.Movie, 0, len(movies))
	for _, m := range movies {
		if m.HasPoster() {
			out = append(out, m)
		}
	}
	return out
}
