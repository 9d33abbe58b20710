// Package scope models the display-scope hierarchy used by the ranking
// engine: global ⊃ country ⊃ region ⊃ city. Rules and overrides are scoped,
// and resolution walks a scope's fallback chain from the scope itself up to
// global.
package scope

import (
	"errors"
	"fmt"
)

// Type identifies a level of the display hierarchy.
type Type string

// Scope levels, from broadest to most specific.
const (
	TypeGlobal  Type = "global"
	TypeCountry Type = "country"
	TypeRegion  Type = "region"
	TypeCity    Type = "city"
)

// Validation errors for scope keys.
var (
	ErrInvalidScopeType = errors.New("invalid scope type: must be global, country, region, or city")
	ErrMissingScopeID   = errors.New("scope_id is required for non-global scopes")
	ErrUnexpectedID     = errors.New("scope_id must be empty for the global scope")
)

// Valid reports whether t is a known scope type.
func (t Type) Valid() bool {
	switch t {
	case TypeGlobal, TypeCountry, TypeRegion, TypeCity:
		return true
	}
	return false
}

// Specificity returns the ordinal rank of the scope type, higher meaning
// more specific: city beats region beats country beats global.
func (t Type) Specificity() int {
	switch t {
	case TypeCity:
		return 3
	case TypeRegion:
		return 2
	case TypeCountry:
		return 1
	default:
		return 0
	}
}

// Key identifies a display scope: a hierarchy level plus, for non-global
// scopes, the identifier of a specific location.
type Key struct {
	Type Type   `json:"scope_type" cbor:"scope_type"`
	ID   string `json:"scope_id,omitempty" cbor:"scope_id,omitempty"`
}

// Global returns the key for the global scope.
func Global() Key {
	return Key{Type: TypeGlobal}
}

// String renders the key in "type:id" form ("global" has no id part).
func (k Key) String() string {
	if k.Type == TypeGlobal {
		return string(TypeGlobal)
	}
	return string(k.Type) + ":" + k.ID
}

// Validate checks structural validity of the key. It does not check that
// the id resolves against location data; see FallbackChain for that.
func (k Key) Validate() error {
	if !k.Type.Valid() {
		return ErrInvalidScopeType
	}
	if k.Type == TypeGlobal {
		if k.ID != "" {
			return ErrUnexpectedID
		}
		return nil
	}
	if k.ID == "" {
		return ErrMissingScopeID
	}
	return nil
}

// UnknownScopeError reports a structurally valid scope key whose id does not
// resolve in the location tree. Ranking aborts on it; there is no partial
// result for an unknown scope.
type UnknownScopeError struct {
	Scope Key
}

func (e *UnknownScopeError) Error() string {
	return fmt.Sprintf("unknown scope %q", e.Scope.String())
}

// IsUnknownScope reports whether err is (or wraps) an UnknownScopeError.
func IsUnknownScope(err error) bool {
	var use *UnknownScopeError
	return errors.As(err, &use)
}
