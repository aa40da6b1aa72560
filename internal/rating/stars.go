package rating

// Star is the visual state of one star position.
type Star int

const (
	StarEmpty Star = iota
	StarFilled
	StarHalf
)

func (s Star) String() string {
	switch s {
	case StarFilled:
		return "filled"
	case StarHalf:
		return "half"
	default:
		return "empty"
	}
}

// Glyph returns the character drawn for the star.
func (s Star) Glyph() string {
	switch s {
	case StarFilled:
		return "★"
	case StarHalf:
		return "½"
	default:
		return "☆"
	}
}

// Stars is the widget truth table: position i is filled iff i <= v. Half
// ratings collapse to the lower full star, so 3.5 shows three filled stars.
func Stars(v float64) [StarCount]Star {
	var out [StarCount]Star
	for i := 1; i <= StarCount; i++ {
		if float64(i) <= v {
			out[i-1] = StarFilled
		}
	}
	return out
}

// ReviewStars renders a stored review. Unlike the widget it marks the star
// just above a half rating with the half glyph.
func ReviewStars(v float64) [StarCount]Star {
	out := Stars(v)
	for i := 1; i <= StarCount; i++ {
		if float64(i)-0.5 == v {
			out[i-1] = StarHalf
		}
	}
	return out
}
