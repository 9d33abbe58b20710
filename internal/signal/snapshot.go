// Package signal carries precomputed quality-signal snapshots for entities.
// Snapshots are produced upstream; the engine only reads them. How signals
// are measured is out of scope here.
package signal

import (
	"time"

	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/scope"
)

// Snapshot is the raw, not-yet-normalized signal input for one entity at
// one scope.
type Snapshot struct {
	EntityID   string                 `json:"entity_id"`
	Scope      scope.Key              `json:"scope"`
	Values     map[factor.Key]float64 `json:"values"`
	CapturedAt time.Time              `json:"captured_at"`
}

// Value returns the raw value for a factor and whether it is present.
func (s Snapshot) Value(k factor.Key) (float64, bool) {
	v, ok := s.Values[k]
	return v, ok
}

// Index selects the snapshot to use per entity from a mixed batch. When an
// entity has snapshots at several scopes on the chain, the most specific
// scope wins; among equal scopes the latest capture wins. Snapshots whose
// scope is off the chain are ignored.
func Index(snapshots []Snapshot, chain []scope.Key) map[string]Snapshot {
	idx := make(map[string]Snapshot)
	for _, s := range snapshots {
		if !scope.OnChain(chain, s.Scope) {
			continue
		}
		cur, ok := idx[s.EntityID]
		if !ok || better(s, cur) {
			idx[s.EntityID] = s
		}
	}
	return idx
}

// better reports whether candidate should replace current in the index.
func better(candidate, current Snapshot) bool {
	cs := candidate.Scope.Type.Specificity()
	ps := current.Scope.Type.Specificity()
	if cs != ps {
		return cs > ps
	}
	return candidate.CapturedAt.After(current.CapturedAt)
}
