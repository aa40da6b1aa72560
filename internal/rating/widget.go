// Package rating holds the star-rating widget state machine and the pure
// functions that derive its visual state.
package rating

import (
	"errors"
	"fmt"
)

const (
	// Unset marks a widget that never received a value.
	Unset = 0.0
	// Default is the value a fresh or reset widget shows.
	Default = 1.0

	Min  = 1.0
	Max  = 5.0
	Step = 0.5

	// StarCount is the number of stars rendered for any rating.
	StarCount = 5
)

// ErrOutOfRange is returned for values outside {1, 1.5, ..., 5}.
var ErrOutOfRange = errors.New("rating: value must be one of {1.0, 1.5, ..., 5.0}")

var allowedRatings = map[float64]struct{}{
	1.0: {}, 1.5: {}, 2.0: {}, 2.5: {}, 3.0: {},
	3.5: {}, 4.0: {}, 4.5: {}, 5.0: {},
}

// Valid reports whether v belongs to the widget's step domain.
func Valid(v float64) bool {
	_, ok := allowedRatings[v]
	return ok
}

// Values returns the step domain in ascending order.
func Values() []float64 {
	out := make([]float64, 0, len(allowedRatings))
	for v := Min; v <= Max; v += Step {
		out = append(out, v)
	}
	return out
}

// Widget is the slider/stars control. Its only state is the current rating.
// The zero value is unset; New returns a widget at Default.
type Widget struct {
	current float64
}

// New returns a widget showing the default rating.
func New() *Widget {
	return &Widget{current: Default}
}

// Current returns the current rating, Unset for a zero widget.
func (w *Widget) Current() float64 {
	return w.current
}

// Input applies a slider event. Values outside the step domain leave the state untouched.
func (w *Widget) Input(v float64) error {
	if !Valid(v) {
		return fmt.Errorf("%w: got %v", ErrOutOfRange, v)
	}
	w.current = v
	return nil
}

// Reset returns the widget to Default after a successful submission.
func (w *Widget) Reset() {
	w.current = Default
}

// Stars derives the visual state for the current rating.
func (w *Widget) Stars() [StarCount]Star {
	return Stars(w.current)
}
