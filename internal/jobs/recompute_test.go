package jobs

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/solivane/veridex/internal/engine"
	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/rule"
	"github.com/solivane/veridex/internal/scope"
	"github.com/solivane/veridex/internal/signal"
	"github.com/solivane/veridex/internal/store"
)

var cityKey = scope.Key{Type: scope.TypeCity, ID: "munich"}

func testTree() scope.Tree {
	tree := scope.NewInMemoryTree()
	tree.Add(scope.Key{Type: scope.TypeCountry, ID: "de"}, scope.Global())
	tree.Add(scope.Key{Type: scope.TypeRegion, ID: "bavaria"}, scope.Key{Type: scope.TypeCountry, ID: "de"})
	tree.Add(cityKey, scope.Key{Type: scope.TypeRegion, ID: "bavaria"})
	return tree
}

// capturingCache records Set calls so tests can assert what was warmed.
type capturingCache struct {
	mu      sync.Mutex
	entries map[string]*engine.Result
}

func newCapturingCache() *capturingCache {
	return &capturingCache{entries: make(map[string]*engine.Result)}
}

func (c *capturingCache) Get(ctx context.Context, key string) (*engine.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	return res, ok, nil
}

func (c *capturingCache) Set(ctx context.Context, key string, result *engine.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
	return nil
}

func TestDirtyTracker(t *testing.T) {
	tr := NewDirtyTracker()
	other := scope.Key{Type: scope.TypeCity, ID: "berlin"}

	if tr.DirtyCount() != 0 {
		t.Errorf("fresh tracker count = %d, want 0", tr.DirtyCount())
	}

	tr.MarkDirty(cityKey)
	tr.MarkDirty(cityKey) // marking twice is idempotent
	tr.MarkDirty(other)
	if tr.DirtyCount() != 2 {
		t.Errorf("count = %d, want 2", tr.DirtyCount())
	}
	if !tr.IsDirty(cityKey) {
		t.Error("IsDirty(city) = false, want true")
	}

	tr.ClearDirty(cityKey)
	if tr.IsDirty(cityKey) {
		t.Error("IsDirty(city) after clear = true, want false")
	}
	if !tr.IsDirty(other) {
		t.Error("clearing one scope must not clear others")
	}

	scopes := tr.DirtyScopes()
	if len(scopes) != 1 || scopes[0] != other {
		t.Errorf("DirtyScopes() = %v, want [%v]", scopes, other)
	}
}

func TestRecomputeNowWarmsCache(t *testing.T) {
	st := store.NewInMemoryStore()
	st.PutRule(rule.Rule{
		ID: "r1", Scope: cityKey, Active: true,
		Weights: map[factor.Key]rule.Weight{
			factor.VerificationStatus: {Enabled: true, Weight: 100},
		},
	})
	st.PutSnapshot(signal.Snapshot{
		EntityID: "A",
		Scope:    cityKey,
		Values:   map[factor.Key]float64{factor.VerificationStatus: 1},
	})

	tracker := NewDirtyTracker()
	tracker.MarkDirty(cityKey)

	cc := newCapturingCache()
	eng := engine.New(testTree(), factor.DefaultParams())
	job := NewRecomputeJob(RecomputeJobConfig{}, tracker, testTree(), st, eng, cc)

	job.RecomputeNow(context.Background())

	if tracker.IsDirty(cityKey) {
		t.Error("successful recompute must clear the dirty flag")
	}
	if len(cc.entries) != 1 {
		t.Fatalf("cache entries = %d, want 1", len(cc.entries))
	}
	for key, res := range cc.entries {
		if !strings.HasPrefix(key, "veridex:ranking:city:munich:") {
			t.Errorf("cache key = %q, want city:munich prefix", key)
		}
		if len(res.Entries) != 1 || res.Entries[0].EntityID != "A" {
			t.Errorf("cached entries = %+v, want single entry A", res.Entries)
		}
		if res.RuleID != "r1" {
			t.Errorf("cached rule = %s, want r1", res.RuleID)
		}
	}
}

func TestRecomputeNowKeepsDirtyOnFailure(t *testing.T) {
	tracker := NewDirtyTracker()
	unknown := scope.Key{Type: scope.TypeCity, ID: "atlantis"}
	tracker.MarkDirty(unknown)

	cc := newCapturingCache()
	eng := engine.New(testTree(), factor.DefaultParams())
	job := NewRecomputeJob(RecomputeJobConfig{}, tracker, testTree(), store.NewInMemoryStore(), eng, cc)

	job.RecomputeNow(context.Background())

	if !tracker.IsDirty(unknown) {
		t.Error("failed recompute must leave the scope dirty")
	}
	if len(cc.entries) != 0 {
		t.Errorf("cache entries = %d, want 0", len(cc.entries))
	}
}

func TestRecomputeNowNoDirtyScopesIsNoop(t *testing.T) {
	cc := newCapturingCache()
	eng := engine.New(testTree(), factor.DefaultParams())
	job := NewRecomputeJob(RecomputeJobConfig{}, NewDirtyTracker(), testTree(), store.NewInMemoryStore(), eng, cc)

	job.RecomputeNow(context.Background())

	if len(cc.entries) != 0 {
		t.Errorf("cache entries = %d, want 0", len(cc.entries))
	}
}

func TestStartStop(t *testing.T) {
	cc := newCapturingCache()
	eng := engine.New(testTree(), factor.DefaultParams())
	job := NewRecomputeJob(RecomputeJobConfig{}, NewDirtyTracker(), testTree(), store.NewInMemoryStore(), eng, cc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job.Start(ctx)
	if !job.IsRunning() {
		t.Error("IsRunning() after Start = false, want true")
	}
	job.Start(ctx) // second start is a no-op

	job.Stop()
	if job.IsRunning() {
		t.Error("IsRunning() after Stop = true, want false")
	}
	job.Stop() // second stop is a no-op
}
