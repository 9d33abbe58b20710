// Package rule provides scoped weighted-factor ranking rules and their
// resolution along the scope fallback chain.
package rule

import (
	"time"

	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/scope"
)

// Weight is one factor's configuration inside a rule. Weights are authored
// in the 0-100 range and need not sum to 100; the score computer
// renormalizes over enabled factors.
type Weight struct {
	Enabled bool    `json:"enabled"`
	Weight  float64 `json:"weight"`
}

// Rule is a scoped configuration of enabled factors and their weights.
// Rules are authored by the administrative surface and are read-only here.
type Rule struct {
	ID        string                `json:"id"`
	Scope     scope.Key             `json:"scope"`
	Name      string                `json:"name"`
	Active    bool                  `json:"is_active"`
	Weights   map[factor.Key]Weight `json:"factor_weights"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// DefaultRuleID identifies the built-in fallback rule returned when no
// active rule matches anywhere on the fallback chain.
const DefaultRuleID = "builtin-default"

// Default returns the built-in fallback rule. It is never absent: when the
// fallback chain is exhausted without a match, ranking proceeds with these
// weights.
func Default() Rule {
	return Rule{
		ID:     DefaultRuleID,
		Scope:  scope.Global(),
		Name:   "Built-in default",
		Active: true,
		Weights: map[factor.Key]Weight{
			factor.VerificationStatus:  {Enabled: true, Weight: 30},
			factor.ProfileCompleteness: {Enabled: true, Weight: 20},
			factor.RecentActivity:      {Enabled: true, Weight: 20},
			factor.AdminTrustScore:     {Enabled: true, Weight: 15},
			factor.ContentFreshness:    {Enabled: true, Weight: 15},
		},
	}
}

// EnabledFactors returns the rule's enabled factor keys in the stable
// factor order, skipping unknown keys.
func (r Rule) EnabledFactors() []factor.Key {
	var keys []factor.Key
	for _, k := range factor.All() {
		if w, ok := r.Weights[k]; ok && w.Enabled {
			keys = append(keys, k)
		}
	}
	return keys
}

// UnknownFactors returns weight-map keys that are not part of the closed
// factor set. They carry no score contribution and are reported in the
// audit trail.
func (r Rule) UnknownFactors() []factor.Key {
	var unknown []factor.Key
	for k := range r.Weights {
		if !k.Valid() {
			unknown = append(unknown, k)
		}
	}
	sortKeys(unknown)
	return unknown
}

func sortKeys(keys []factor.Key) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}
