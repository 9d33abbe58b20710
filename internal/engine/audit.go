package engine

import (
	"github.com/solivane/veridex/internal/factor"
)

// AuditKind classifies an audit-trail entry. These are the non-fatal
// irregularities the engine resolves by policy instead of raising errors,
// plus informational placement notes.
type AuditKind string

// Audit entry kinds.
const (
	AuditMissingSignal    AuditKind = "missing_signal"
	AuditUnknownFactor    AuditKind = "unknown_factor"
	AuditDuplicateRule    AuditKind = "duplicate_active_rule"
	AuditDefaultRule      AuditKind = "default_rule_fallback"
	AuditOverrideShadowed AuditKind = "override_shadowed"
	AuditOverrideExpired  AuditKind = "override_expired"
	AuditEntityExcluded   AuditKind = "entity_excluded"
	AuditPinConflict      AuditKind = "pin_conflict_demoted"
	AuditPinBeyondLength  AuditKind = "pin_beyond_length"
	AuditMissingSnapshot  AuditKind = "missing_snapshot"
	AuditDuplicateEntity  AuditKind = "duplicate_entity"
)

// Override annotations surfaced on ordered entries.
const (
	AnnotationPinConflict     = "pin conflict, demoted"
	AnnotationPinBeyondLength = "pin position beyond list length, placed last"
	AnnotationShadowed        = "shadowed"
)

// AuditEntry is one informational record in the ranking audit trail. The
// trail is regenerable on demand and never persisted as a source of truth.
type AuditEntry struct {
	Kind       AuditKind  `json:"kind" cbor:"kind"`
	EntityID   string     `json:"entity_id,omitempty" cbor:"entity_id,omitempty"`
	OverrideID string     `json:"override_id,omitempty" cbor:"override_id,omitempty"`
	RuleID     string     `json:"rule_id,omitempty" cbor:"rule_id,omitempty"`
	Factor     factor.Key `json:"factor,omitempty" cbor:"factor,omitempty"`
	Detail     string     `json:"detail,omitempty" cbor:"detail,omitempty"`
}

// AuditTrail is the ordered list of audit entries for one ranking run.
type AuditTrail []AuditEntry

// ForEntity returns the entries concerning one entity, answering
// "why is entity X ranked here".
func (t AuditTrail) ForEntity(entityID string) []AuditEntry {
	var out []AuditEntry
	for _, e := range t {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entries of a given kind.
func (t AuditTrail) Count(kind AuditKind) int {
	n := 0
	for _, e := range t {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
