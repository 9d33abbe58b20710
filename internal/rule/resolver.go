package rule

import (
	"sort"

	"github.com/solivane/veridex/internal/scope"
)

// Resolution is the outcome of selecting the effective rule for a scope.
type Resolution struct {
	// Rule is the effective rule; the built-in default when nothing matched.
	Rule Rule
	// Duplicates holds active same-scope rules that lost the recency
	// tie-break. The authoring surface should prevent them, but the
	// resolver tolerates them and reports them for the audit trail.
	Duplicates []Rule
	// MatchedScope is the chain level the rule was found at. Zero value
	// when the built-in default was used.
	MatchedScope scope.Key
	// UsedDefault reports that the chain was exhausted with no match.
	UsedDefault bool
}

// Resolve walks the fallback chain and picks the single effective active
// rule. At each level: exactly one active match wins; several matches are a
// data inconsistency resolved by the most recent updated_at (equal
// timestamps fall back to the smallest id for determinism); no match moves
// to the next broader scope. An exhausted chain yields the built-in default.
func Resolve(chain []scope.Key, rules []Rule) Resolution {
	for _, level := range chain {
		var matches []Rule
		for _, r := range rules {
			if r.Active && r.Scope == level {
				matches = append(matches, r)
			}
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) == 1 {
			return Resolution{Rule: matches[0], MatchedScope: level}
		}
		sort.Slice(matches, func(i, j int) bool {
			if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
				return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
			}
			return matches[i].ID < matches[j].ID
		})
		return Resolution{
			Rule:         matches[0],
			Duplicates:   matches[1:],
			MatchedScope: level,
		}
	}
	return Resolution{Rule: Default(), UsedDefault: true}
}
