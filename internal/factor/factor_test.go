package factor

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestNormalizeVerificationStatus(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{name: "verified", raw: 1, want: 1},
		{name: "any nonzero counts as verified", raw: 0.5, want: 1},
		{name: "unverified", raw: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerificationStatus.Normalize(tt.raw, DefaultParams())
			if got != tt.want {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeProfileCompleteness(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{name: "complete", raw: 1.0, want: 1.0},
		{name: "partial", raw: 0.6, want: 0.6},
		{name: "negative clamps to zero", raw: -0.2, want: 0},
		{name: "above one clamps to one", raw: 1.5, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProfileCompleteness.Normalize(tt.raw, DefaultParams())
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeResponseTime(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{name: "instant", raw: 0, want: 1},
		{name: "at one hour floor", raw: 1, want: 1},
		{name: "at 48 hour ceiling", raw: 48, want: 0},
		{name: "beyond ceiling", raw: 72, want: 0},
		// (48 - 24.5) / 47 = 0.5
		{name: "midpoint", raw: 24.5, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResponseTime.Normalize(tt.raw, DefaultParams())
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeReputationTrend(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{name: "strongly negative", raw: -1, want: 0},
		{name: "flat", raw: 0, want: 0.5},
		{name: "strongly positive", raw: 1, want: 1},
		{name: "below range clamps", raw: -3, want: 0},
		{name: "above range clamps", raw: 2, want: 1},
		{name: "mild positive", raw: 0.5, want: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReputationTrend.Normalize(tt.raw, DefaultParams())
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeRecentActivity(t *testing.T) {
	tests := []struct {
		name   string
		raw    float64
		params Params
		want   float64
	}{
		{name: "no activity", raw: 0, params: DefaultParams(), want: 0},
		{name: "half of cap", raw: 15, params: DefaultParams(), want: 0.5},
		{name: "at cap", raw: 30, params: DefaultParams(), want: 1},
		{name: "above cap saturates", raw: 100, params: DefaultParams(), want: 1},
		{name: "custom cap", raw: 5, params: Params{ActivityCap: 10, MaxPlanRank: 3}, want: 0.5},
		{name: "zero cap falls back to default", raw: 15, params: Params{}, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecentActivity.Normalize(tt.raw, tt.params)
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizePlanTier(t *testing.T) {
	tests := []struct {
		name   string
		raw    float64
		params Params
		want   float64
	}{
		{name: "lowest tier", raw: 1, params: DefaultParams(), want: 1.0 / 3.0},
		{name: "top tier", raw: 3, params: DefaultParams(), want: 1},
		{name: "above top saturates", raw: 5, params: DefaultParams(), want: 1},
		{name: "custom max", raw: 2, params: Params{ActivityCap: 30, MaxPlanRank: 4}, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanTier.Normalize(tt.raw, tt.params)
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeAdminTrustScore(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{name: "zero", raw: 0, want: 0},
		{name: "eighty", raw: 80, want: 0.8},
		{name: "hundred", raw: 100, want: 1},
		{name: "above range clamps", raw: 150, want: 1},
		{name: "negative clamps", raw: -10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdminTrustScore.Normalize(tt.raw, DefaultParams())
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeContentFreshness(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{name: "updated today", raw: 0, want: 1},
		{name: "45 days old", raw: 45, want: 0.5},
		{name: "at 90 day window", raw: 90, want: 0},
		{name: "older than window", raw: 200, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContentFreshness.Normalize(tt.raw, DefaultParams())
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeUnknownFactor(t *testing.T) {
	if got := Key("popularity_contest").Normalize(1, DefaultParams()); got != 0 {
		t.Errorf("unknown factor should normalize to 0, got %v", got)
	}
}

func TestNormalizeRangeInvariant(t *testing.T) {
	// Every factor stays in [0,1] across a spread of raw inputs.
	raws := []float64{-1000, -1, -0.5, 0, 0.5, 1, 2, 10, 47, 48, 90, 100, 1e6}
	for _, k := range All() {
		for _, raw := range raws {
			got := k.Normalize(raw, DefaultParams())
			if got < 0 || got > 1 {
				t.Errorf("%s.Normalize(%v) = %v, outside [0,1]", k, raw, got)
			}
		}
	}
}

func TestKeyValid(t *testing.T) {
	for _, k := range All() {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if Key("made_up").Valid() {
		t.Error("made_up should not be valid")
	}
}
