// Package reviews holds the typed view of the review collection: aggregation,
// submission and the live feed shared by every open details page.
package reviews

import (
	"math"
	"sort"
	"strconv"

	"github.com/Clark-Hu/cinepuma/internal/domain"
)

// NoMean is shown instead of a mean when a movie has no reviews.
const NoMean = "N/A"

// Summary is the derived state of one movie's review section.
type Summary struct {
	MovieID string
	Count   int
	Mean    float64
	// Ordered holds the movie's reviews, newest first.
	Ordered []domain.Review
}

// MeanText formats the mean with one decimal, or NoMean for an empty summary.
func (s Summary) MeanText() string {
	if s.Count == 0 {
		return NoMean
	}
	return strconv.FormatFloat(roundToOneDecimal(s.Mean), 'f', 1, 64)
}

// Aggregate selects the reviews of movieID and computes count, mean and order.
// It is a pure function of its input; callers recompute it for every snapshot.
func Aggregate(all []domain.Review, movieID string) Summary {
	summary := Summary{MovieID: movieID, Ordered: []domain.Review{}}
	var sum float64
	for _, r := range all {
		if r.MovieID != movieID {
			continue
		}
		summary.Ordered = append(summary.Ordered, r)
		sum += r.Rating
	}
	summary.Count = len(summary.Ordered)
	if summary.Count > 0 {
		summary.Mean = sum / float64(summary.Count)
	}
	// stable: equal timestamps keep arrival order
	sort.SliceStable(summary.Ordered, func(i, j int) bool {
		return summary.Ordered[i].CreatedAt.After(summary.Ordered[j].CreatedAt)
	})
	return summary
}

func roundToOneDecimal(value float64) float64 {
	return math.Round(value*10) / 10.0
}
