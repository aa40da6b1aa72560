package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Clark-Hu/cinepuma/internal/docstore"
	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/rating"
)

// reviewDocument is the stored shape of a review. Field names match the
// documents written by the Firebase web client.
type reviewDocument struct {
	MovieID   string    `json:"movieId" firestore:"movieId"`
	UserID    string    `json:"userId" firestore:"userId"`
	Rating    float64   `json:"rating" firestore:"rating"`
	Text      string    `json:"reviewText" firestore:"reviewText"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
}

// Store reads and appends reviews in one application's public collection.
type Store struct {
	docs       docstore.Store
	collection string
}

// NewStore binds docs to the review collection of appID.
func NewStore(docs docstore.Store, appID string) *Store {
	return &Store{docs: docs, collection: docstore.ReviewsCollection(appID)}
}

// Collection returns the collection path.
func (s *Store) Collection() string {
	return s.collection
}

// Append stores a new review and returns its id.
func (s *Store) Append(ctx context.Context, r domain.Review) (string, error) {
	return s.docs.Append(ctx, s.collection, reviewDocument{
		MovieID:   r.MovieID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Text:      r.Text,
		Timestamp: r.CreatedAt.UTC(),
	})
}

// Subscribe opens a snapshot stream of the whole collection.
func (s *Store) Subscribe(ctx context.Context) (*docstore.Subscription, error) {
	return s.docs.Subscribe(ctx, s.collection)
}

var errMalformed = errors.New("reviews: malformed document")

// Decode converts a snapshot into reviews in delivery order. Documents that do
// not decode, or whose rating is outside the widget domain, are returned in
// skipped and left out.
func Decode(snap docstore.Snapshot) (out []domain.Review, skipped []error) {
	out = make([]domain.Review, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		var d reviewDocument
		if err := doc.DataTo(&d); err != nil {
			skipped = append(skipped, fmt.Errorf("%w %s: %v", errMalformed, doc.ID, err))
			continue
		}
		if d.MovieID == "" || !rating.Valid(d.Rating) {
			skipped = append(skipped, fmt.Errorf("%w %s: movie %q rating %v", errMalformed, doc.ID, d.MovieID, d.Rating))
			continue
		}
		out = append(out, domain.Review{
			ID:        doc.ID,
			MovieID:   d.MovieID,
			UserID:    d.UserID,
			Rating:    d.Rating,
			Text:      d.Text,
			CreatedAt: d.Timestamp,
		})
	}
	return out, skipped
}
