// Package view turns domain records into display models and renders the
// site's HTML templates.
package view

import (
	"net/url"
	"strconv"

	"github.com/Clark-Hu/cinepuma/internal/detail"
	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/rating"
	"github.com/Clark-Hu/cinepuma/internal/reviews"
)

// PlaceholderPoster replaces posters that are missing or fail to load.
const PlaceholderPoster = "https://placehold.co/150x220/333333/FFFFFF?text=No+Poster"

// Card is the display model of one movie.
type Card struct {
	Title       string
	PosterURL   string
	Alt         string
	Description string
	Href        string
	// Vote and Tier are empty for the static catalog.
	Vote string
	Tier rating.Tier
}

// NewCard builds the card for m.
func NewCard(m domain.Movie) Card {
	c := Card{
		Title:       m.Title,
		PosterURL:   m.PosterURL,
		Alt:         "Póster de " + m.Title,
		Description: m.Description,
		Href:        MovieHref(m),
	}
	if c.PosterURL == "" {
		c.PosterURL = PlaceholderPoster
	}
	if m.VoteAverage != nil {
		c.Vote = strconv.FormatFloat(*m.VoteAverage, 'f', 1, 64)
		c.Tier = rating.TierFor(*m.VoteAverage)
	}
	return c
}

// Cards maps NewCard over movies.
func Cards(movies []domain.Movie) []Card {
	out := make([]Card, 0, len(movies))
	for _, m := range movies {
		out = append(out, NewCard(m))
	}
	return out
}

// MovieID is the review key of m: the TMDB id when known, else the title.
func MovieID(m domain.Movie) string {
	if m.ExternalID != "" {
		return m.ExternalID
	}
	return m.Title
}

// MovieHref links to the details page of m.
func MovieHref(m domain.Movie) string {
	return "/movies/" + url.PathEscape(MovieID(m))
}

// StarView is one rendered star.
type StarView struct {
	State string
	Glyph string
}

// StarViews renders a star row.
func StarViews(stars [rating.StarCount]rating.Star) []StarView {
	out := make([]StarView, 0, len(stars))
	for _, s := range stars {
		out = append(out, StarView{State: s.String(), Glyph: s.Glyph()})
	}
	return out
}

// ReviewItem is one entry of the review list.
type ReviewItem struct {
	UserLabel  string
	Stars      []StarView
	RatingText string
	Text       string
	Date       string
}

// userLabelLength is how much of a user id is shown.
const userLabelLength = 8

// UserLabel shortens a user id for display.
func UserLabel(uid string) string {
	r := []rune(uid)
	if len(r) > userLabelLength {
		r = r[:userLabelLength]
	}
	return string(r) + "..."
}

// ReviewsSection is the display model of the review section.
type ReviewsSection struct {
	Count       int
	Mean        string
	Items       []ReviewItem
	Empty       string
	Unavailable string
}

// NewReviewsSection builds the review section from a page view.
func NewReviewsSection(v detail.ReviewsView) ReviewsSection {
	section := ReviewsSection{
		Count:       v.Summary.Count,
		Mean:        v.Summary.MeanText(),
		Unavailable: v.Unavailable,
	}
	for _, r := range v.Summary.Ordered {
		item := ReviewItem{
			UserLabel:  UserLabel(r.UserID),
			Stars:      StarViews(rating.ReviewStars(r.Rating)),
			RatingText: strconv.FormatFloat(r.Rating, 'f', -1, 64) + "/5",
			Text:       r.Text,
			Date:       "Fecha desconocida",
		}
		if !r.CreatedAt.IsZero() {
			item.Date = r.CreatedAt.Format("02/01/2006")
		}
		section.Items = append(section.Items, item)
	}
	if len(section.Items) == 0 && section.Unavailable == "" {
		section.Empty = detail.EmptyReviewsMessage
	}
	return section
}

// EmptyReviews is the section shown before the first snapshot arrives.
func EmptyReviews(movieID string) ReviewsSection {
	return NewReviewsSection(detail.ReviewsView{Summary: reviews.Aggregate(nil, movieID)})
}
