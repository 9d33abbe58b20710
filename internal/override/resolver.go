package override

import (
	"sort"
	"time"

	"github.com/solivane/veridex/internal/scope"
)

// Resolution is the per-entity outcome of override selection.
type Resolution struct {
	// Applied is the winning override, or nil when the entity is ranked
	// purely by score.
	Applied *Override
	// Shadowed holds valid overrides displaced by a more specific or more
	// recently created one. Reported for the audit trail.
	Shadowed []Override
	// Expired holds overrides for the entity that were ignored because
	// they are past expiry. Silently ignored for ranking, recorded for
	// observability.
	Expired []Override
}

// Resolve selects the override to apply for an entity in a scope. Survivors
// are the entity's non-expired overrides whose scope lies on the fallback
// chain. The most specific scope wins; equal specificity falls to the most
// recent created_at (equal timestamps fall to the smallest id for
// determinism). Losers are reported as shadowed.
func Resolve(entityID string, chain []scope.Key, overrides []Override, now time.Time) Resolution {
	var res Resolution
	var survivors []Override
	for _, o := range overrides {
		if o.EntityID != entityID {
			continue
		}
		if o.Expired(now) {
			res.Expired = append(res.Expired, o)
			continue
		}
		if !scope.OnChain(chain, o.Scope) {
			continue
		}
		survivors = append(survivors, o)
	}
	if len(survivors) == 0 {
		return res
	}

	sort.Slice(survivors, func(i, j int) bool {
		si, sj := survivors[i].Scope.Type.Specificity(), survivors[j].Scope.Type.Specificity()
		if si != sj {
			return si > sj
		}
		if !survivors[i].CreatedAt.Equal(survivors[j].CreatedAt) {
			return survivors[i].CreatedAt.After(survivors[j].CreatedAt)
		}
		return survivors[i].ID < survivors[j].ID
	})

	winner := survivors[0]
	res.Applied = &winner
	res.Shadowed = survivors[1:]
	return res
}
