package engine

import (
	"math"

	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/rule"
	"github.com/solivane/veridex/internal/signal"
)

// FactorContribution is one factor's share of a base score, kept for the
// score breakdown shown by the preview surface.
type FactorContribution struct {
	Factor     factor.Key `json:"factor" cbor:"factor"`
	Raw        float64    `json:"raw" cbor:"raw"`
	Present    bool       `json:"present" cbor:"present"`
	Normalized float64    `json:"normalized" cbor:"normalized"`
	Weight     float64    `json:"weight" cbor:"weight"`
	Share      float64    `json:"share" cbor:"share"`
	Points     float64    `json:"points" cbor:"points"`
}

// Score is a computed base score together with its explanation.
type Score struct {
	// Base is the composite score in [0,100], full precision.
	Base float64
	// Contributions explains how each enabled factor contributed.
	Contributions []FactorContribution
	// Missing lists enabled factors the snapshot had no value for; they
	// degrade the score to 0 contribution rather than failing ranking.
	Missing []factor.Key
	// UnweightedFallback reports that all enabled weights were zero (or no
	// factor was enabled) and the score fell back to an unweighted average
	// of the present factors.
	UnweightedFallback bool
}

// ComputeScore combines a rule's enabled factor weights with an entity's
// signal snapshot into a composite score in [0,100] plus its breakdown.
// Never fails: missing values count as 0, unknown factor keys are skipped.
func ComputeScore(r rule.Rule, snap signal.Snapshot, params factor.Params) Score {
	var s Score
	enabled := r.EnabledFactors()

	var totalWeight float64
	for _, k := range enabled {
		totalWeight += r.Weights[k].Weight
	}

	if totalWeight > 0 {
		for _, k := range enabled {
			w := r.Weights[k].Weight
			raw, present := snap.Value(k)
			var normalized float64
			if present {
				normalized = k.Normalize(raw, params)
			} else {
				s.Missing = append(s.Missing, k)
			}
			share := w / totalWeight
			points := 100 * share * normalized
			s.Base += points
			s.Contributions = append(s.Contributions, FactorContribution{
				Factor:     k,
				Raw:        raw,
				Present:    present,
				Normalized: normalized,
				Weight:     w,
				Share:      share,
				Points:     points,
			})
		}
		return s
	}

	// All enabled weights are zero, or nothing is enabled: fall back to an
	// unweighted average over the factors that are actually present.
	s.UnweightedFallback = true
	pool := enabled
	if len(pool) == 0 {
		pool = factor.All()
	}
	var sum float64
	var present []FactorContribution
	for _, k := range pool {
		raw, ok := snap.Value(k)
		if !ok {
			if len(enabled) > 0 {
				s.Missing = append(s.Missing, k)
			}
			continue
		}
		normalized := k.Normalize(raw, params)
		sum += normalized
		present = append(present, FactorContribution{
			Factor:     k,
			Raw:        raw,
			Present:    true,
			Normalized: normalized,
		})
	}
	if len(present) == 0 {
		return s
	}
	share := 1.0 / float64(len(present))
	for i := range present {
		present[i].Share = share
		present[i].Points = 100 * share * present[i].Normalized
	}
	s.Contributions = present
	s.Base = 100 * sum / float64(len(present))
	return s
}

// Round2 rounds a score to two decimal places for display. Ordering always
// compares full-precision values to avoid spurious ties.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
