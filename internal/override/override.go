// Package override provides manual per-entity ranking instructions
// (pin, boost, suppress, exclude) and their per-scope resolution.
package override

import (
	"math"
	"time"

	"github.com/solivane/veridex/internal/scope"
)

// Type is the kind of manual instruction an override carries.
type Type string

// Override types.
const (
	TypePin      Type = "pin"
	TypeBoost    Type = "boost"
	TypeSuppress Type = "suppress"
	TypeExclude  Type = "exclude"
)

// Valid reports whether t is a known override type.
func (t Type) Valid() bool {
	switch t {
	case TypePin, TypeBoost, TypeSuppress, TypeExclude:
		return true
	}
	return false
}

// Override is a scoped, per-entity ranking instruction authored by an
// administrator. Position is meaningful only for pins; BoostValue only for
// boost and suppress. An override past its expiry is inert but not deleted.
type Override struct {
	ID         string     `json:"id"`
	EntityID   string     `json:"entity_id"`
	Scope      scope.Key  `json:"scope"`
	Type       Type       `json:"type"`
	Position   int        `json:"position,omitempty"`
	BoostValue float64    `json:"boost_value,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the override is past its expiry at now.
// Overrides without an expiry never expire.
func (o Override) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// EffectiveBoost returns the sign-normalized score adjustment: boosts are
// non-negative and suppressions non-positive regardless of how the record
// was authored. Pins and excludes adjust nothing.
func (o Override) EffectiveBoost() float64 {
	switch o.Type {
	case TypeBoost:
		return math.Abs(o.BoostValue)
	case TypeSuppress:
		return -math.Abs(o.BoostValue)
	default:
		return 0
	}
}
