package store

import (
	"context"
	"sort"
	"sync"

	"github.com/solivane/veridex/internal/override"
	"github.com/solivane/veridex/internal/rule"
	"github.com/solivane/veridex/internal/scope"
	"github.com/solivane/veridex/internal/signal"
)

// InMemoryStore is an in-memory implementation of Store.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	rules     map[string]rule.Rule
	overrides map[string]override.Override
	signals   []signal.Snapshot
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rules:     make(map[string]rule.Rule),
		overrides: make(map[string]override.Override),
	}
}

// PutRule inserts or replaces a rule by id.
func (s *InMemoryStore) PutRule(r rule.Rule) {
	s.mu.Lock()
	s.rules[r.ID] = r
	s.mu.Unlock()
}

// PutOverride inserts or replaces an override by id.
func (s *InMemoryStore) PutOverride(o override.Override) {
	s.mu.Lock()
	s.overrides[o.ID] = o
	s.mu.Unlock()
}

// PutSnapshot appends a signal snapshot.
func (s *InMemoryStore) PutSnapshot(snap signal.Snapshot) {
	s.mu.Lock()
	s.signals = append(s.signals, snap)
	s.mu.Unlock()
}

// View reads the ranking inputs for a fallback chain. The whole read
// happens under one lock, so it is a consistent snapshot.
func (s *InMemoryStore) View(ctx context.Context, chain []scope.Key) (*View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := &View{Chain: chain}

	for _, r := range s.rules {
		if r.Active && scope.OnChain(chain, r.Scope) {
			v.Rules = append(v.Rules, r)
			if r.UpdatedAt.After(v.RuleVersion) {
				v.RuleVersion = r.UpdatedAt
			}
		}
	}
	sort.Slice(v.Rules, func(i, j int) bool { return v.Rules[i].ID < v.Rules[j].ID })

	for _, o := range s.overrides {
		if scope.OnChain(chain, o.Scope) {
			v.Overrides = append(v.Overrides, o)
			if o.CreatedAt.After(v.OverrideVersion) {
				v.OverrideVersion = o.CreatedAt
			}
		}
	}
	sort.Slice(v.Overrides, func(i, j int) bool { return v.Overrides[i].ID < v.Overrides[j].ID })

	seen := make(map[string]bool)
	for _, snap := range s.signals {
		if !scope.OnChain(chain, snap.Scope) {
			continue
		}
		v.Signals = append(v.Signals, snap)
		if !seen[snap.EntityID] {
			seen[snap.EntityID] = true
			v.Entities = append(v.Entities, snap.EntityID)
		}
	}
	sort.Strings(v.Entities)

	return v, nil
}
