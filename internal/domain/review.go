package domain

import "time"

// Review is a single user's opinion on a movie as stored in the review collection.
// Reviews are append-only; this system only ever holds read-only copies.
type Review struct {
	ID        string
	MovieID   string
	UserID    string
	Rating    float64
	Text      string
	CreatedAt time.Time
}
