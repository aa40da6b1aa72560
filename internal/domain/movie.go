package domain

// Movie is a catalog entry, declared statically or decoded from the metadata API.
// Records are never mutated after construction.
type Movie struct {
	Title       string
	PosterURL   string
	Description string
	ExternalID  string
	// VoteAverage is only known for records fetched from the metadata API.
	VoteAverage *float64
}

// HasPoster reports whether the record carries a poster image.
func (m Movie) HasPoster() bool {
	return m.PosterURL != ""
}
