// Package store provides repositories for the ranking engine's inputs:
// rules, overrides, signal snapshots, and the location tree. The engine
// itself never touches storage; it receives a consistent View per
// invocation.
package store

import (
	"context"
	"time"

	"github.com/solivane/veridex/internal/override"
	"github.com/solivane/veridex/internal/rule"
	"github.com/solivane/veridex/internal/scope"
	"github.com/solivane/veridex/internal/signal"
)

// View is a consistent read of everything one ranking run needs for a
// scope's fallback chain. The version timestamps form the cache key: a
// cached result is valid exactly while both versions are unchanged.
type View struct {
	// Chain is the fallback chain the view was read for.
	Chain []scope.Key
	// Entities are the candidate entity ids for the scope, in stable order.
	Entities []string
	// Rules are the active rules scoped anywhere on the chain.
	Rules []rule.Rule
	// Overrides are the overrides scoped anywhere on the chain, expired
	// ones included (soft expiry is the engine's concern).
	Overrides []override.Override
	// Signals are the signal snapshots for entities on the chain.
	Signals []signal.Snapshot
	// RuleVersion is the max updated_at among the chain's rules.
	RuleVersion time.Time
	// OverrideVersion is the max created_at among the chain's overrides.
	OverrideVersion time.Time
}

// Store supplies consistent views of ranking inputs. Implementations must
// guarantee that a single View call never observes partial writes.
type Store interface {
	// View reads the ranking inputs for a fallback chain in one
	// consistent snapshot.
	View(ctx context.Context, chain []scope.Key) (*View, error)
}
