package format

import (
	"math"
	"testing"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		p    float64
		want int
	}{
		{0, 0},
		{0.004, 0},
		{0.005, 1},
		{0.42, 42},
		{0.125, 13},
		{0.795, 80},
		{0.85, 85},
		{1, 100},
		{1.7, 100},
		{-0.2, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Percent(tt.p); got != tt.want {
			t.Errorf("Percent(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestTierFor_Thresholds(t *testing.T) {
	tests := []struct {
		p    float64
		want Tier
	}{
		{0.49, TierLow},
		{0.495, TierMedium},
		{0.5, TierMedium},
		{0.79, TierMedium},
		{0.795, TierHigh},
		{0.8, TierHigh},
		{1, TierHigh},
	}
	for _, tt := range tests {
		if got := TierFor(tt.p); got != tt.want {
			t.Errorf("TierFor(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestTierFor_AgreesWithPercent(t *testing.T) {
	for i := 0; i <= 10000; i++ {
		p := float64(i) / 10000
		pct, tier := Percent(p), TierFor(p)
		switch {
		case pct >= 80 && tier != TierHigh,
			pct >= 50 && pct < 80 && tier != TierMedium,
			pct < 50 && tier != TierLow:
			t.Fatalf("p=%v shows %d%% but tier %v", p, pct, tier)
		}
	}
}

func TestTierFor_Monotonic(t *testing.T) {
	prev := TierLow
	for i := 0; i <= 1000; i++ {
		tier := TierFor(float64(i) / 1000)
		if tier < prev {
			t.Fatalf("tier dropped from %v to %v at p=%v", prev, tier, float64(i)/1000)
		}
		prev = tier
	}
}
