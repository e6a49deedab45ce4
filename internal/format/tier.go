package format

import "math"

// Tier is the display priority of a cause.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	}
	return "low"
}

// Percent converts a probability in [0,1] to a whole percentage, rounding
// halves up. Values outside [0,1] are clamped.
func Percent(p float64) int {
	if math.IsNaN(p) || p <= 0 {
		return 0
	}
	if p >= 1 {
		return 100
	}
	return int(math.Floor(p*100 + 0.5))
}

// TierFor maps a probability to its tier using the displayed percentage, so
// a cause shown as 80% is always high.
func TierFor(p float64) Tier {
	switch pct := Percent(p); {
	case pct >= 80:
		return TierHigh
	case pct >= 50:
		return TierMedium
	}
	return TierLow
}
