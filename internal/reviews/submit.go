package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/metrics"
	"github.com/Clark-Hu/cinepuma/internal/rating"
)

// MinTextLength is the minimum trimmed length of a review text.
const MinTextLength = 5

var (
	// ErrIncomplete means the rating is unset or the text is too short.
	ErrIncomplete = fmt.Errorf("reviews: rating and a text of at least %d characters are required: %w", MinTextLength, domain.ErrValidation)
	// ErrInvalidRating means the rating is not one of the widget values.
	ErrInvalidRating = fmt.Errorf("reviews: %w: %w", rating.ErrOutOfRange, domain.ErrValidation)
	// ErrConfigMissing means no review store is configured.
	ErrConfigMissing = fmt.Errorf("reviews: store: %w", domain.ErrConfigMissing)
	// ErrStoreUnavailable wraps a failed append.
	ErrStoreUnavailable = fmt.Errorf("reviews: store unavailable: %w", domain.ErrNetworkFailure)
)

// Appender stores reviews. *Store implements it.
type Appender interface {
	Append(ctx context.Context, r domain.Review) (string, error)
}

// Submission is the content of the review form at submit time.
type Submission struct {
	MovieID string
	UserID  string
	Rating  float64
	Text    string
}

// Ack confirms a stored review.
type Ack struct {
	ID        string
	CreatedAt time.Time
}

// Submitter validates submissions and appends them to the store. The review
// list is not touched; it updates when the store delivers the next snapshot.
type Submitter struct {
	store Appender
	now   func() time.Time
}

// NewSubmitter returns a submitter. A nil store makes every valid submission
// fail with ErrConfigMissing.
func NewSubmitter(store Appender) *Submitter {
	return &Submitter{store: store, now: time.Now}
}

// Submit validates s and appends it. Validation failures never reach the store.
func (sub *Submitter) Submit(ctx context.Context, s Submission) (ack Ack, err error) {
	defer func() { metrics.ReviewSubmissionsTotal.WithLabelValues(outcome(err)).Inc() }()

	text := strings.TrimSpace(s.Text)
	if s.Rating == rating.Unset || len([]rune(text)) < MinTextLength {
		return Ack{}, ErrIncomplete
	}
	if !rating.Valid(s.Rating) {
		return Ack{}, fmt.Errorf("%w: %v", ErrInvalidRating, s.Rating)
	}
	if sub == nil || sub.store == nil {
		return Ack{}, ErrConfigMissing
	}

	created := sub.now().UTC()
	id, err := sub.store.Append(ctx, domain.Review{
		MovieID:   s.MovieID,
		UserID:    s.UserID,
		Rating:    s.Rating,
		Text:      text,
		CreatedAt: created,
	})
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return Ack{ID: id, CreatedAt: created}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrIncomplete), errors.Is(err, ErrInvalidRating):
		return "invalid"
	case errors.Is(err, ErrConfigMissing):
		return "unconfigured"
	default:
		return "error"
	}
}
