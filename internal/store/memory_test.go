package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/override"
	"github.com/solivane/veridex/internal/rule"
	"github.com/solivane/veridex/internal/scope"
	"github.com/solivane/veridex/internal/signal"
)

var (
	cityKey    = scope.Key{Type: scope.TypeCity, ID: "munich"}
	countryKey = scope.Key{Type: scope.TypeCountry, ID: "de"}
	chain      = []scope.Key{cityKey, {Type: scope.TypeRegion, ID: "bavaria"}, countryKey, scope.Global()}
)

func TestInMemoryStoreViewFiltersChain(t *testing.T) {
	s := NewInMemoryStore()
	s.PutRule(rule.Rule{ID: "r-city", Scope: cityKey, Active: true})
	s.PutRule(rule.Rule{ID: "r-country", Scope: countryKey, Active: true})
	s.PutRule(rule.Rule{ID: "r-offchain", Scope: scope.Key{Type: scope.TypeCity, ID: "berlin"}, Active: true})
	s.PutRule(rule.Rule{ID: "r-inactive", Scope: cityKey, Active: false})

	v, err := s.View(context.Background(), chain)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}

	var ids []string
	for _, r := range v.Rules {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"r-city", "r-country"}) {
		t.Errorf("rule ids = %v, want [r-city r-country]", ids)
	}
}

func TestInMemoryStoreViewVersions(t *testing.T) {
	t1 := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t1.Add(2 * time.Hour)

	s := NewInMemoryStore()
	s.PutRule(rule.Rule{ID: "r1", Scope: cityKey, Active: true, UpdatedAt: t1})
	s.PutRule(rule.Rule{ID: "r2", Scope: countryKey, Active: true, UpdatedAt: t2})
	// Off-chain rule must not advance the version.
	s.PutRule(rule.Rule{ID: "r3", Scope: scope.Key{Type: scope.TypeCity, ID: "berlin"}, Active: true, UpdatedAt: t3})
	s.PutOverride(override.Override{ID: "o1", EntityID: "A", Scope: cityKey, Type: override.TypeBoost, CreatedAt: t3})

	v, err := s.View(context.Background(), chain)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if !v.RuleVersion.Equal(t2) {
		t.Errorf("RuleVersion = %v, want %v", v.RuleVersion, t2)
	}
	if !v.OverrideVersion.Equal(t3) {
		t.Errorf("OverrideVersion = %v, want %v", v.OverrideVersion, t3)
	}
}

func TestInMemoryStoreViewOverridesIncludeExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	s := NewInMemoryStore()
	s.PutOverride(override.Override{ID: "o1", EntityID: "A", Scope: cityKey, Type: override.TypeExclude, ExpiresAt: &past})

	v, err := s.View(context.Background(), chain)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	// Soft expiry is resolved at ranking time, not at read time.
	if len(v.Overrides) != 1 {
		t.Errorf("overrides = %d, want 1", len(v.Overrides))
	}
}

func TestInMemoryStoreViewEntitiesFromSignals(t *testing.T) {
	s := NewInMemoryStore()
	s.PutSnapshot(signal.Snapshot{EntityID: "zeta", Scope: cityKey, Values: map[factor.Key]float64{factor.VerificationStatus: 1}})
	s.PutSnapshot(signal.Snapshot{EntityID: "alpha", Scope: scope.Global()})
	s.PutSnapshot(signal.Snapshot{EntityID: "alpha", Scope: cityKey})
	s.PutSnapshot(signal.Snapshot{EntityID: "offchain", Scope: scope.Key{Type: scope.TypeCity, ID: "berlin"}})

	v, err := s.View(context.Background(), chain)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if !reflect.DeepEqual(v.Entities, []string{"alpha", "zeta"}) {
		t.Errorf("entities = %v, want [alpha zeta] (sorted, deduplicated)", v.Entities)
	}
	if len(v.Signals) != 3 {
		t.Errorf("signals = %d, want 3 on-chain snapshots", len(v.Signals))
	}
}

func TestInMemoryStorePutReplacesByID(t *testing.T) {
	s := NewInMemoryStore()
	s.PutRule(rule.Rule{ID: "r1", Scope: cityKey, Active: true, Name: "first"})
	s.PutRule(rule.Rule{ID: "r1", Scope: cityKey, Active: true, Name: "second"})

	v, err := s.View(context.Background(), chain)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if len(v.Rules) != 1 || v.Rules[0].Name != "second" {
		t.Errorf("rules = %+v, want single rule named second", v.Rules)
	}
}
