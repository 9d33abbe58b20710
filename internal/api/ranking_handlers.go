package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/solivane/veridex/internal/cache"
	"github.com/solivane/veridex/internal/engine"
	"github.com/solivane/veridex/internal/jobs"
	"github.com/solivane/veridex/internal/override"
	"github.com/solivane/veridex/internal/rule"
	"github.com/solivane/veridex/internal/scope"
	"github.com/solivane/veridex/internal/store"
)

// RankingHandlers holds dependencies for ranking HTTP handlers.
type RankingHandlers struct {
	tree    scope.Tree
	store   store.Store
	engine  *engine.Engine
	cache   cache.ResultCache
	tracker *jobs.DirtyTracker
}

// NewRankingHandlers creates a new RankingHandlers instance.
func NewRankingHandlers(
	tree scope.Tree,
	st store.Store,
	eng *engine.Engine,
	resultCache cache.ResultCache,
	tracker *jobs.DirtyTracker,
) *RankingHandlers {
	return &RankingHandlers{
		tree:    tree,
		store:   st,
		engine:  eng,
		cache:   resultCache,
		tracker: tracker,
	}
}

// FactorContributionView is the display form of one factor's contribution;
// derived values are rounded to two decimals.
type FactorContributionView struct {
	Factor     string  `json:"factor"`
	Raw        float64 `json:"raw_value"`
	Present    bool    `json:"present"`
	Normalized float64 `json:"normalized"`
	Weight     float64 `json:"weight"`
	Share      float64 `json:"weight_share"`
	Points     float64 `json:"points"`
}

// AppliedOverrideView is the display form of an applied override.
type AppliedOverrideView struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Position   int     `json:"position,omitempty"`
	BoostValue float64 `json:"boost_value,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Annotation string  `json:"annotation,omitempty"`
}

// RankingEntryView is one ordered entry in a ranking response.
type RankingEntryView struct {
	Position        int                      `json:"position"`
	EntityID        string                   `json:"entity_id"`
	FinalScore      float64                  `json:"final_score"`
	BaseScore       float64                  `json:"base_score"`
	PositionSource  string                   `json:"position_source"`
	AppliedOverride *AppliedOverrideView     `json:"applied_override,omitempty"`
	Breakdown       []FactorContributionView `json:"breakdown,omitempty"`
}

// AuditEntryView is one audit trail entry in a ranking response.
type AuditEntryView struct {
	Kind       string `json:"kind"`
	EntityID   string `json:"entity_id,omitempty"`
	OverrideID string `json:"override_id,omitempty"`
	RuleID     string `json:"rule_id,omitempty"`
	Factor     string `json:"factor,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// RankingResponse is the JSON response for ranking endpoints.
type RankingResponse struct {
	Scope      scope.Key          `json:"scope"`
	RuleUsed   string             `json:"rule_used"`
	ComputedAt time.Time          `json:"computed_at"`
	Cached     bool               `json:"cached"`
	Entries    []RankingEntryView `json:"ordered_entries"`
	Audit      []AuditEntryView   `json:"audit,omitempty"`
}

// viewOptions controls how much detail a ranking response carries.
type viewOptions struct {
	includeBreakdown bool
	includeAudit     bool
	limit            int // 0 means no limit
}

// buildResponse converts an engine result to its display form, applying
// two-decimal rounding at this boundary only; cached results keep full
// precision internally.
func buildResponse(res *engine.Result, cached bool, opts viewOptions) RankingResponse {
	out := RankingResponse{
		Scope:      res.Scope,
		RuleUsed:   res.RuleID,
		ComputedAt: res.ComputedAt,
		Cached:     cached,
	}

	entries := res.Entries
	if opts.limit > 0 && opts.limit < len(entries) {
		entries = entries[:opts.limit]
	}

	out.Entries = make([]RankingEntryView, 0, len(entries))
	for i, e := range entries {
		view := RankingEntryView{
			Position:       i + 1,
			EntityID:       e.EntityID,
			FinalScore:     engine.Round2(e.FinalScore),
			BaseScore:      engine.Round2(e.BaseScore),
			PositionSource: string(e.PositionSource),
		}
		if e.AppliedOverride != nil {
			view.AppliedOverride = &AppliedOverrideView{
				ID:         e.AppliedOverride.ID,
				Type:       string(e.AppliedOverride.Type),
				Position:   e.AppliedOverride.Position,
				BoostValue: e.AppliedOverride.BoostValue,
				Reason:     e.AppliedOverride.Reason,
				Annotation: e.AppliedOverride.Annotation,
			}
		}
		if opts.includeBreakdown {
			view.Breakdown = make([]FactorContributionView, 0, len(e.Breakdown))
			for _, c := range e.Breakdown {
				view.Breakdown = append(view.Breakdown, FactorContributionView{
					Factor:     string(c.Factor),
					Raw:        c.Raw,
					Present:    c.Present,
					Normalized: engine.Round2(c.Normalized),
					Weight:     c.Weight,
					Share:      engine.Round2(c.Share),
					Points:     engine.Round2(c.Points),
				})
			}
		}
		out.Entries = append(out.Entries, view)
	}

	if opts.includeAudit {
		out.Audit = make([]AuditEntryView, 0, len(res.Audit))
		for _, a := range res.Audit {
			out.Audit = append(out.Audit, AuditEntryView{
				Kind:       string(a.Kind),
				EntityID:   a.EntityID,
				OverrideID: a.OverrideID,
				RuleID:     a.RuleID,
				Factor:     string(a.Factor),
				Detail:     a.Detail,
			})
		}
	}
	return out
}

// parseScope extracts and validates scope_type/scope_id query parameters.
func parseScope(r *http.Request) (scope.Key, error) {
	key := scope.Key{
		Type: scope.Type(r.URL.Query().Get("scope_type")),
		ID:   r.URL.Query().Get("scope_id"),
	}
	if key.Type == "" {
		key.Type = scope.TypeGlobal
	}
	return key, key.Validate()
}

// GetRankings handles GET /rankings?scope_type=...&scope_id=...
//
// Optional query parameters:
//   - limit: truncate the response to the top N entries
//   - breakdown: include per-factor score breakdowns (default false)
//   - audit: include the audit trail (default false)
//
// Results are served from the cache when a fresh entry exists for the
// scope's current rule and override versions; otherwise the ranking is
// computed inline and cached.
func (h *RankingHandlers) GetRankings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	key, err := parseScope(r)
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, ErrCodeValidation, "Invalid scope: "+err.Error())
		return
	}

	opts := viewOptions{
		includeBreakdown: r.URL.Query().Get("breakdown") == "true",
		includeAudit:     r.URL.Query().Get("audit") == "true",
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeErr(w, r, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		opts.limit = limit
	}

	chain, err := scope.FallbackChain(h.tree, key)
	if err != nil {
		if scope.IsUnknownScope(err) {
			writeErr(w, r, http.StatusNotFound, ErrCodeUnknownScope, "Scope not found: "+key.String())
			return
		}
		slog.ErrorContext(r.Context(), "failed to resolve scope chain", "error", err, "scope", key.String())
		writeErr(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve scope")
		return
	}

	view, err := h.store.View(r.Context(), chain)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load ranking inputs", "error", err, "scope", key.String())
		writeErr(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to load ranking inputs")
		return
	}

	cacheKey := cache.Key(key, view.RuleVersion, view.OverrideVersion)
	if res, ok, err := h.cache.Get(r.Context(), cacheKey); err != nil {
		slog.WarnContext(r.Context(), "ranking cache read failed", "error", err, "scope", key.String())
	} else if ok {
		writeJSON(w, r, http.StatusOK, buildResponse(res, true, opts))
		return
	}

	res, err := h.engine.Rank(r.Context(), engine.Input{
		Scope:     key,
		Entities:  view.Entities,
		Rules:     view.Rules,
		Overrides: view.Overrides,
		Signals:   view.Signals,
	})
	if err != nil {
		if scope.IsUnknownScope(err) {
			writeErr(w, r, http.StatusNotFound, ErrCodeUnknownScope, "Scope not found: "+key.String())
			return
		}
		slog.ErrorContext(r.Context(), "ranking computation failed", "error", err, "scope", key.String())
		writeErr(w, r, http.StatusInternalServerError, ErrCodeInternal, "Ranking computation failed")
		return
	}

	if err := h.cache.Set(r.Context(), cacheKey, res); err != nil {
		slog.WarnContext(r.Context(), "ranking cache write failed", "error", err, "scope", key.String())
	}

	writeJSON(w, r, http.StatusOK, buildResponse(res, false, opts))
}

// PreviewRequest is the body for POST /rankings/preview. Stored rules and
// overrides can be replaced wholesale to answer "what would the ranking
// look like if" questions without touching persisted state.
type PreviewRequest struct {
	Scope scope.Key `json:"scope"`

	// Rule, when present, is evaluated instead of the stored rules.
	Rule *rule.Rule `json:"rule,omitempty"`

	// Overrides, when non-nil, replace the stored overrides entirely.
	// An empty non-nil list previews the ranking with no overrides.
	Overrides []override.Override `json:"overrides,omitempty"`
}

// PreviewRankings handles POST /rankings/preview.
//
// The preview never reads or writes the cache and never persists
// anything; the response always carries full breakdowns and the complete
// audit trail.
func (h *RankingHandlers) PreviewRankings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if req.Scope.Type == "" {
		req.Scope.Type = scope.TypeGlobal
	}
	if err := req.Scope.Validate(); err != nil {
		writeErr(w, r, http.StatusBadRequest, ErrCodeValidation, "Invalid scope: "+err.Error())
		return
	}

	chain, err := scope.FallbackChain(h.tree, req.Scope)
	if err != nil {
		if scope.IsUnknownScope(err) {
			writeErr(w, r, http.StatusNotFound, ErrCodeUnknownScope, "Scope not found: "+req.Scope.String())
			return
		}
		slog.ErrorContext(r.Context(), "failed to resolve scope chain", "error", err, "scope", req.Scope.String())
		writeErr(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve scope")
		return
	}

	view, err := h.store.View(r.Context(), chain)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load ranking inputs", "error", err, "scope", req.Scope.String())
		writeErr(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to load ranking inputs")
		return
	}

	rules := view.Rules
	if req.Rule != nil {
		candidate := *req.Rule
		if candidate.ID == "" {
			candidate.ID = "preview"
		}
		candidate.Scope = req.Scope
		candidate.Active = true
		if candidate.UpdatedAt.IsZero() {
			candidate.UpdatedAt = time.Now()
		}
		rules = []rule.Rule{candidate}
	}
	overrides := view.Overrides
	if req.Overrides != nil {
		overrides = req.Overrides
	}

	res, err := h.engine.Rank(r.Context(), engine.Input{
		Scope:     req.Scope,
		Entities:  view.Entities,
		Rules:     rules,
		Overrides: overrides,
		Signals:   view.Signals,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "ranking preview failed", "error", err, "scope", req.Scope.String())
		writeErr(w, r, http.StatusInternalServerError, ErrCodeInternal, "Ranking computation failed")
		return
	}

	writeJSON(w, r, http.StatusOK, buildResponse(res, false, viewOptions{
		includeBreakdown: true,
		includeAudit:     true,
	}))
}

// RefreshRequest is the body for POST /rankings/refresh.
type RefreshRequest struct {
	Scope scope.Key `json:"scope"`
}

// RefreshResponse acknowledges a refresh request.
type RefreshResponse struct {
	Scope  scope.Key `json:"scope"`
	Status string    `json:"status"`
}

// RefreshRankings handles POST /rankings/refresh. It marks the scope dirty
// so the background job recomputes it on its next cycle; the request
// returns immediately with 202.
func (h *RankingHandlers) RefreshRankings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if req.Scope.Type == "" {
		req.Scope.Type = scope.TypeGlobal
	}
	if err := req.Scope.Validate(); err != nil {
		writeErr(w, r, http.StatusBadRequest, ErrCodeValidation, "Invalid scope: "+err.Error())
		return
	}
	if _, err := scope.FallbackChain(h.tree, req.Scope); err != nil {
		if scope.IsUnknownScope(err) {
			writeErr(w, r, http.StatusNotFound, ErrCodeUnknownScope, "Scope not found: "+req.Scope.String())
			return
		}
		slog.ErrorContext(r.Context(), "failed to resolve scope chain", "error", err, "scope", req.Scope.String())
		writeErr(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve scope")
		return
	}

	h.tracker.MarkDirty(req.Scope)

	writeJSON(w, r, http.StatusAccepted, RefreshResponse{
		Scope:  req.Scope,
		Status: "scheduled",
	})
}

// writeJSON encodes a response body with the standard headers.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
