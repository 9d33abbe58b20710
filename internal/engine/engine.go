// Package engine implements the ranking resolution engine: it reconciles
// weighted multi-factor scoring, scope-based rule inheritance, and manual
// per-entity overrides into one deterministic, explainable ordering.
//
// Rank is a pure function of its inputs: it holds no mutable state, never
// performs I/O, and is safe to call from arbitrarily many goroutines.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/override"
	"github.com/solivane/veridex/internal/rule"
	"github.com/solivane/veridex/internal/scope"
	"github.com/solivane/veridex/internal/signal"
	"github.com/solivane/veridex/internal/tracing"
)

// PositionSource reports how an entry earned its position.
type PositionSource string

// Position sources.
const (
	PositionSourceScore PositionSource = "score"
	PositionSourcePin   PositionSource = "pin"
)

// AppliedOverride describes the override that affected an entry, including
// any annotation from conflict resolution.
type AppliedOverride struct {
	ID         string        `json:"id" cbor:"id"`
	Type       override.Type `json:"type" cbor:"type"`
	Position   int           `json:"position,omitempty" cbor:"position,omitempty"`
	BoostValue float64       `json:"boost_value,omitempty" cbor:"boost_value,omitempty"`
	Reason     string        `json:"reason,omitempty" cbor:"reason,omitempty"`
	Annotation string        `json:"annotation,omitempty" cbor:"annotation,omitempty"`
}

// Entry is one ordered entity in a ranking result. Scores carry full
// precision; rounding to two decimals happens at the display boundary.
type Entry struct {
	EntityID        string               `json:"entity_id" cbor:"entity_id"`
	FinalScore      float64              `json:"final_score" cbor:"final_score"`
	BaseScore       float64              `json:"base_score" cbor:"base_score"`
	AppliedOverride *AppliedOverride     `json:"applied_override,omitempty" cbor:"applied_override,omitempty"`
	PositionSource  PositionSource       `json:"position_source" cbor:"position_source"`
	Breakdown       []FactorContribution `json:"breakdown,omitempty" cbor:"breakdown,omitempty"`
}

// Result is the engine's sole externally visible artifact. It is derived,
// never stored as a source of truth, and is safe to cache keyed by
// (scope, rule version, override version).
type Result struct {
	Scope      scope.Key  `json:"scope" cbor:"scope"`
	Entries    []Entry    `json:"ordered_entries" cbor:"ordered_entries"`
	RuleID     string     `json:"rule_used" cbor:"rule_used"`
	ComputedAt time.Time  `json:"computed_at" cbor:"computed_at"`
	Audit      AuditTrail `json:"audit,omitempty" cbor:"audit,omitempty"`
}

// Input bundles a consistent snapshot of everything one ranking run needs.
// The caller supplies it whole; the engine never reads live state
// mid-computation.
type Input struct {
	Scope     scope.Key
	Entities  []string
	Rules     []rule.Rule
	Overrides []override.Override
	Signals   []signal.Snapshot
	Now       time.Time
}

// Engine resolves rankings against a location tree with fixed normalization
// parameters. Construct once and share across requests.
type Engine struct {
	tree    scope.Tree
	params  factor.Params
	metrics *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches ranking metrics to the engine.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates a ranking engine.
func New(tree scope.Tree, params factor.Params, opts ...Option) *Engine {
	e := &Engine{tree: tree, params: params}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank produces the final ordering for a scope from a consistent input
// snapshot. It fails only when the scope itself cannot be resolved; every
// other irregularity is resolved by explicit policy and recorded in the
// audit trail.
func (e *Engine) Rank(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	_, endSpan := tracing.StartSpan(ctx, "ranking.rank")

	chain, err := scope.FallbackChain(e.tree, in.Scope)
	if err != nil {
		if e.metrics != nil {
			e.metrics.IncUnknownScope()
		}
		endSpan(err)
		return nil, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	res := &Result{
		Scope:      in.Scope,
		ComputedAt: now,
	}

	// Step 1: effective rule.
	ruleRes := rule.Resolve(chain, in.Rules)
	res.RuleID = ruleRes.Rule.ID
	for _, dup := range ruleRes.Duplicates {
		res.audit(AuditEntry{
			Kind:   AuditDuplicateRule,
			RuleID: dup.ID,
			Detail: fmt.Sprintf("superseded by rule %s at scope %s", ruleRes.Rule.ID, ruleRes.MatchedScope.String()),
		})
	}
	if ruleRes.UsedDefault {
		res.audit(AuditEntry{
			Kind:   AuditDefaultRule,
			RuleID: rule.DefaultRuleID,
			Detail: "no active rule on fallback chain",
		})
	}
	for _, unknown := range ruleRes.Rule.UnknownFactors() {
		res.audit(AuditEntry{
			Kind:   AuditUnknownFactor,
			RuleID: ruleRes.Rule.ID,
			Factor: unknown,
			Detail: "factor not in the supported set; ignored",
		})
	}

	sigIdx := signal.Index(in.Signals, chain)

	// Steps 2-6: score each entity and classify it by its override.
	var pool []Entry   // ranked by final score
	var pinned []Entry // candidates for fixed slots
	seen := make(map[string]bool, len(in.Entities))
	for _, entityID := range in.Entities {
		if seen[entityID] {
			res.audit(AuditEntry{Kind: AuditDuplicateEntity, EntityID: entityID})
			continue
		}
		seen[entityID] = true

		snap, ok := sigIdx[entityID]
		if !ok {
			res.audit(AuditEntry{Kind: AuditMissingSnapshot, EntityID: entityID})
			snap = signal.Snapshot{EntityID: entityID}
		}
		score := ComputeScore(ruleRes.Rule, snap, e.params)
		for _, missing := range score.Missing {
			res.audit(AuditEntry{Kind: AuditMissingSignal, EntityID: entityID, Factor: missing})
		}

		ovRes := override.Resolve(entityID, chain, in.Overrides, now)
		for _, exp := range ovRes.Expired {
			res.audit(AuditEntry{Kind: AuditOverrideExpired, EntityID: entityID, OverrideID: exp.ID})
		}
		for _, sh := range ovRes.Shadowed {
			res.audit(AuditEntry{
				Kind:       AuditOverrideShadowed,
				EntityID:   entityID,
				OverrideID: sh.ID,
				Detail:     fmt.Sprintf("%s by override %s", AnnotationShadowed, ovRes.Applied.ID),
			})
		}

		entry := Entry{
			EntityID:       entityID,
			BaseScore:      score.Base,
			FinalScore:     score.Base,
			PositionSource: PositionSourceScore,
			Breakdown:      score.Contributions,
		}
		if ovRes.Applied == nil {
			pool = append(pool, entry)
			continue
		}
		ov := *ovRes.Applied
		entry.AppliedOverride = &AppliedOverride{
			ID:         ov.ID,
			Type:       ov.Type,
			Position:   ov.Position,
			BoostValue: ov.EffectiveBoost(),
			Reason:     ov.Reason,
		}
		switch ov.Type {
		case override.TypeExclude:
			// Excludes take absolute precedence: the entity never appears.
			res.audit(AuditEntry{Kind: AuditEntityExcluded, EntityID: entityID, OverrideID: ov.ID})
		case override.TypeBoost, override.TypeSuppress:
			entry.FinalScore = clamp(score.Base+ov.EffectiveBoost(), 0, 100)
			pool = append(pool, entry)
		case override.TypePin:
			// Pins keep the base score; only placement changes.
			entry.PositionSource = PositionSourcePin
			pinned = append(pinned, entry)
		default:
			pool = append(pool, entry)
		}
	}

	// Step 8: resolve pin conflicts, demoting later-created duplicates.
	winners, demoted := resolvePinConflicts(pinned, in.Overrides)
	for _, d := range demoted {
		res.audit(AuditEntry{
			Kind:       AuditPinConflict,
			EntityID:   d.EntityID,
			OverrideID: d.AppliedOverride.ID,
			Detail:     AnnotationPinConflict,
		})
		pool = append(pool, d)
	}

	// Step 7: deterministic score order for the non-pinned remainder.
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].FinalScore != pool[j].FinalScore {
			return pool[i].FinalScore > pool[j].FinalScore
		}
		return pool[i].EntityID < pool[j].EntityID
	})

	// Step 9: walk positions, placing pins at their slots and filling the
	// gaps from the score-sorted remainder.
	res.Entries = placeEntries(winners, pool, res)

	if e.metrics != nil {
		e.metrics.ObserveRank(time.Since(start).Seconds(), len(res.Entries))
		for _, entry := range res.Audit {
			e.metrics.IncIrregularity(entry.Kind)
		}
	}
	endSpan(nil)
	return res, nil
}

// audit appends an entry to the result's audit trail.
func (r *Result) audit(e AuditEntry) {
	r.Audit = append(r.Audit, e)
}

// resolvePinConflicts groups pinned entries by requested position. The pin
// with the earliest created_at keeps the slot; later ones are demoted to
// score-based ranking. Returns slot winners and the demoted entries with
// their annotation set.
func resolvePinConflicts(pinned []Entry, overrides []override.Override) (winners map[int]Entry, demoted []Entry) {
	createdAt := make(map[string]time.Time, len(overrides))
	for _, o := range overrides {
		createdAt[o.ID] = o.CreatedAt
	}

	byPos := make(map[int][]Entry)
	for _, p := range pinned {
		byPos[p.AppliedOverride.Position] = append(byPos[p.AppliedOverride.Position], p)
	}

	winners = make(map[int]Entry, len(byPos))
	for pos, group := range byPos {
		sort.Slice(group, func(i, j int) bool {
			ci := createdAt[group[i].AppliedOverride.ID]
			cj := createdAt[group[j].AppliedOverride.ID]
			if !ci.Equal(cj) {
				return ci.Before(cj)
			}
			return group[i].AppliedOverride.ID < group[j].AppliedOverride.ID
		})
		winners[pos] = group[0]
		for _, loser := range group[1:] {
			loser.PositionSource = PositionSourceScore
			loser.AppliedOverride.Annotation = AnnotationPinConflict
			demoted = append(demoted, loser)
		}
	}
	return winners, demoted
}

// placeEntries builds the final ordered list: positions are walked 1..N; a
// slot claimed by an unconflicted pin gets that pin, every other slot is
// filled from the front of the score-sorted pool. Pins whose requested
// position exceeds the list length go last.
func placeEntries(winners map[int]Entry, pool []Entry, res *Result) []Entry {
	total := len(winners) + len(pool)
	out := make([]Entry, 0, total)
	placed := make(map[int]bool, len(winners))

	poolIdx := 0
	for pos := 1; pos <= total; pos++ {
		if w, ok := winners[pos]; ok {
			out = append(out, w)
			placed[pos] = true
			continue
		}
		if poolIdx < len(pool) {
			out = append(out, pool[poolIdx])
			poolIdx++
		}
	}

	// Pins requesting positions beyond the list length were never reached
	// by the walk; they are placed last, in requested-position order.
	if len(out) < total {
		var overflow []int
		for pos := range winners {
			if !placed[pos] {
				overflow = append(overflow, pos)
			}
		}
		sort.Ints(overflow)
		for _, pos := range overflow {
			w := winners[pos]
			w.AppliedOverride.Annotation = AnnotationPinBeyondLength
			res.audit(AuditEntry{
				Kind:       AuditPinBeyondLength,
				EntityID:   w.EntityID,
				OverrideID: w.AppliedOverride.ID,
				Detail:     fmt.Sprintf("requested position %d, list length %d", pos, total),
			})
			out = append(out, w)
		}
	}
	return out
}
