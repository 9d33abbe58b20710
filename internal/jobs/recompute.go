// Package jobs provides background jobs for the ranking service, currently
// the dirty-scope recompute job that keeps the ranking cache warm.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/solivane/veridex/internal/cache"
	"github.com/solivane/veridex/internal/engine"
	"github.com/solivane/veridex/internal/scope"
	"github.com/solivane/veridex/internal/store"
)

// DirtyTracker tracks scopes whose rankings need recomputation because a
// contributing rule or override changed. Thread-safe via RWMutex.
type DirtyTracker struct {
	mu    sync.RWMutex
	dirty map[scope.Key]time.Time
}

// NewDirtyTracker creates a new DirtyTracker.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		dirty: make(map[scope.Key]time.Time),
	}
}

// MarkDirty flags a scope for recomputation.
func (t *DirtyTracker) MarkDirty(key scope.Key) {
	t.mu.Lock()
	t.dirty[key] = time.Now()
	t.mu.Unlock()
}

// ClearDirty removes the dirty flag for a scope after recomputation.
func (t *DirtyTracker) ClearDirty(key scope.Key) {
	t.mu.Lock()
	delete(t.dirty, key)
	t.mu.Unlock()
}

// DirtyScopes returns the scopes currently flagged. Returns a copy.
func (t *DirtyTracker) DirtyScopes() []scope.Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	scopes := make([]scope.Key, 0, len(t.dirty))
	for key := range t.dirty {
		scopes = append(scopes, key)
	}
	return scopes
}

// IsDirty reports whether a scope is flagged.
func (t *DirtyTracker) IsDirty(key scope.Key) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.dirty[key]
	return exists
}

// DirtyCount returns the number of flagged scopes.
func (t *DirtyTracker) DirtyCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dirty)
}

// RecomputeJobConfig configures the ranking recompute job.
type RecomputeJobConfig struct {
	// Interval is the duration between recompute cycles.
	Interval time.Duration
	// Timeout bounds each recompute cycle.
	Timeout time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for cycle tracking; optional.
	Metrics *Metrics
}

// Default cycle timing.
const (
	DefaultRecomputeInterval = 30 * time.Second
	DefaultRecomputeTimeout  = 30 * time.Second
)

// RecomputeJob periodically re-ranks dirty scopes and warms the result
// cache, so listing requests after a rule or override change rarely pay
// the recompute cost inline.
type RecomputeJob struct {
	config  RecomputeJobConfig
	tracker *DirtyTracker
	tree    scope.Tree
	store   store.Store
	engine  *engine.Engine
	cache   cache.ResultCache

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecomputeJob creates a ranking recompute job.
func NewRecomputeJob(
	config RecomputeJobConfig,
	tracker *DirtyTracker,
	tree scope.Tree,
	st store.Store,
	eng *engine.Engine,
	resultCache cache.ResultCache,
) *RecomputeJob {
	if config.Interval == 0 {
		config.Interval = DefaultRecomputeInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRecomputeTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RecomputeJob{
		config:  config,
		tracker: tracker,
		tree:    tree,
		store:   st,
		engine:  eng,
		cache:   resultCache,
	}
}

// Start begins the periodic recompute job.
// Returns immediately; the job runs in a background goroutine.
func (j *RecomputeJob) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
}

// Stop signals the job to stop and waits for it to finish.
func (j *RecomputeJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning reports whether the job is currently running.
func (j *RecomputeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *RecomputeJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("ranking recompute job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("ranking recompute job stopping due to stop signal")
			return
		case <-ticker.C:
			j.recomputeDirtyScopes(ctx)
		}
	}
}

// recomputeDirtyScopes re-ranks every flagged scope and caches the result.
func (j *RecomputeJob) recomputeDirtyScopes(parentCtx context.Context) {
	dirty := j.tracker.DirtyScopes()
	if len(dirty) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	startTime := time.Now()
	var successCount int

	j.config.Logger.Info("recomputing rankings", "dirty_count", len(dirty))

	for i, key := range dirty {
		select {
		case <-ctx.Done():
			j.config.Logger.Error("ranking recompute timeout exceeded",
				"processed", i,
				"total", len(dirty),
				"timeout", j.config.Timeout)
			j.finishCycle(startTime, successCount, len(dirty), "timeout")
			return
		default:
		}

		if err := j.recomputeScope(ctx, key); err != nil {
			j.config.Logger.Error("failed to recompute ranking",
				"scope", key.String(),
				"error", err)
			if j.config.Metrics != nil {
				j.config.Metrics.IncErrors("recompute_error")
			}
			continue
		}
		j.tracker.ClearDirty(key)
		successCount++
	}

	status := StatusSuccess
	if successCount < len(dirty) {
		status = StatusFailure
	}
	j.finishCycle(startTime, successCount, len(dirty), status)
}

func (j *RecomputeJob) finishCycle(startTime time.Time, success, total int, status string) {
	duration := time.Since(startTime).Seconds()
	if j.config.Metrics != nil {
		if status == "timeout" {
			j.config.Metrics.IncErrors("timeout")
			status = StatusFailure
		}
		j.config.Metrics.IncCycles(status)
		j.config.Metrics.ObserveCycleDuration(duration)
		j.config.Metrics.SetLastCycleScopeCount(float64(success))
	}
	j.config.Logger.Info("ranking recompute completed",
		"duration_seconds", duration,
		"scopes_processed", success,
		"scopes_failed", total-success)
}

// recomputeScope re-ranks one scope and stores the result in the cache.
func (j *RecomputeJob) recomputeScope(ctx context.Context, key scope.Key) error {
	chain, err := scope.FallbackChain(j.tree, key)
	if err != nil {
		return err
	}
	view, err := j.store.View(ctx, chain)
	if err != nil {
		return err
	}
	result, err := j.engine.Rank(ctx, engine.Input{
		Scope:     key,
		Entities:  view.Entities,
		Rules:     view.Rules,
		Overrides: view.Overrides,
		Signals:   view.Signals,
	})
	if err != nil {
		return err
	}
	if err := j.cache.Set(ctx, cache.Key(key, view.RuleVersion, view.OverrideVersion), result); err != nil {
		return err
	}

	j.config.Logger.Debug("ranking recomputed",
		"scope", key.String(),
		"entries", len(result.Entries),
		"rule_used", result.RuleID)
	return nil
}

// RecomputeNow immediately recomputes all dirty scopes without waiting for
// the ticker. Useful for testing or forcing updates.
func (j *RecomputeJob) RecomputeNow(ctx context.Context) {
	j.recomputeDirtyScopes(ctx)
}
