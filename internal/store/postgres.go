package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/override"
	"github.com/solivane/veridex/internal/rule"
	"github.com/solivane/veridex/internal/scope"
	"github.com/solivane/veridex/internal/signal"
	"github.com/solivane/veridex/internal/tracing"
)

// PostgresStore implements Store using PostgreSQL. A View is served from a
// single repeatable-read, read-only transaction, so it never observes
// partial writes from the authoring surface.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// scopePredicate builds a "(scope_type, scope_id) IN (...)" clause for the
// chain, with placeholders starting at $1. Global rows store an empty
// scope_id.
func scopePredicate(chain []scope.Key) (string, []any) {
	pairs := make([]string, 0, len(chain))
	args := make([]any, 0, 2*len(chain))
	for i, key := range chain {
		pairs = append(pairs, fmt.Sprintf("($%d, $%d)", 2*i+1, 2*i+2))
		args = append(args, string(key.Type), key.ID)
	}
	return "(scope_type, scope_id) IN (" + strings.Join(pairs, ", ") + ")", args
}

// scopeFromRow rebuilds a scope key from its stored columns.
func scopeFromRow(scopeType, scopeID string) scope.Key {
	return scope.Key{Type: scope.Type(scopeType), ID: scopeID}
}

// View reads the ranking inputs for a fallback chain in one transaction.
func (s *PostgresStore) View(ctx context.Context, chain []scope.Key) (*View, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "ranking_inputs", tracing.DBOperationQuery)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to begin view transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("view transaction rollback failed", "error", rbErr)
		}
	}()

	v := &View{Chain: chain}

	if err := s.readRules(ctx, tx, chain, v); err != nil {
		endSpan(err)
		return nil, err
	}
	if err := s.readOverrides(ctx, tx, chain, v); err != nil {
		endSpan(err)
		return nil, err
	}
	if err := s.readSignals(ctx, tx, chain, v); err != nil {
		endSpan(err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to commit view transaction: %w", err)
	}
	endSpan(nil)
	return v, nil
}

func (s *PostgresStore) readRules(ctx context.Context, tx *sql.Tx, chain []scope.Key, v *View) error {
	pred, args := scopePredicate(chain)
	query := `
		SELECT id, scope_type, scope_id, name, is_active, factor_weights, updated_at
		FROM ranking_rules
		WHERE is_active = TRUE AND ` + pred + `
		ORDER BY id`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query ranking rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r rule.Rule
		var scopeType, scopeID string
		var weightsJSON []byte
		if err := rows.Scan(&r.ID, &scopeType, &scopeID, &r.Name, &r.Active, &weightsJSON, &r.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan ranking rule: %w", err)
		}
		r.Scope = scopeFromRow(scopeType, scopeID)
		r.Weights, err = decodeWeights(weightsJSON)
		if err != nil {
			// A malformed weight map is an authoring defect; skip the
			// rule rather than failing every listing on the scope.
			s.logger.Warn("skipping rule with malformed factor_weights",
				"rule_id", r.ID, "error", err)
			continue
		}
		v.Rules = append(v.Rules, r)
		if r.UpdatedAt.After(v.RuleVersion) {
			v.RuleVersion = r.UpdatedAt
		}
	}
	return rows.Err()
}

func (s *PostgresStore) readOverrides(ctx context.Context, tx *sql.Tx, chain []scope.Key, v *View) error {
	pred, args := scopePredicate(chain)
	query := `
		SELECT id, entity_id, scope_type, scope_id, override_type,
		       position, boost_value, reason, expires_at, created_at
		FROM ranking_overrides
		WHERE ` + pred + `
		ORDER BY id`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query ranking overrides: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o override.Override
		var scopeType, scopeID, ovType string
		var position sql.NullInt64
		var boost sql.NullFloat64
		var reason sql.NullString
		var expires sql.NullTime
		if err := rows.Scan(&o.ID, &o.EntityID, &scopeType, &scopeID, &ovType,
			&position, &boost, &reason, &expires, &o.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan ranking override: %w", err)
		}
		o.Scope = scopeFromRow(scopeType, scopeID)
		o.Type = override.Type(ovType)
		if position.Valid {
			o.Position = int(position.Int64)
		}
		if boost.Valid {
			o.BoostValue = boost.Float64
		}
		if reason.Valid {
			o.Reason = reason.String
		}
		if expires.Valid {
			t := expires.Time
			o.ExpiresAt = &t
		}
		v.Overrides = append(v.Overrides, o)
		if o.CreatedAt.After(v.OverrideVersion) {
			v.OverrideVersion = o.CreatedAt
		}
	}
	return rows.Err()
}

func (s *PostgresStore) readSignals(ctx context.Context, tx *sql.Tx, chain []scope.Key, v *View) error {
	pred, args := scopePredicate(chain)
	query := `
		SELECT entity_id, scope_type, scope_id, raw_values, captured_at
		FROM entity_signals
		WHERE ` + pred + `
		ORDER BY entity_id, captured_at`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query entity signals: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var snap signal.Snapshot
		var scopeType, scopeID string
		var valuesJSON []byte
		if err := rows.Scan(&snap.EntityID, &scopeType, &scopeID, &valuesJSON, &snap.CapturedAt); err != nil {
			return fmt.Errorf("failed to scan entity signal: %w", err)
		}
		snap.Scope = scopeFromRow(scopeType, scopeID)
		if err := json.Unmarshal(valuesJSON, &snap.Values); err != nil {
			s.logger.Warn("skipping signal snapshot with malformed raw_values",
				"entity_id", snap.EntityID, "error", err)
			continue
		}
		v.Signals = append(v.Signals, snap)
		if !seen[snap.EntityID] {
			seen[snap.EntityID] = true
			v.Entities = append(v.Entities, snap.EntityID)
		}
	}
	return rows.Err()
}

// decodeWeights parses a factor_weights JSONB column.
func decodeWeights(data []byte) (map[factor.Key]rule.Weight, error) {
	var raw map[string]rule.Weight
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	weights := make(map[factor.Key]rule.Weight, len(raw))
	for k, w := range raw {
		weights[factor.Key(k)] = w
	}
	return weights, nil
}

// LoadLocationTree reads the locations table and builds the in-memory
// scope tree. Directory location data is small and changes rarely, so the
// tree is loaded once at startup; the engine stays free of per-request
// database lookups for ancestry.
func LoadLocationTree(ctx context.Context, db *sql.DB) (*scope.InMemoryTree, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "locations", tracing.DBOperationQuery)

	rows, err := db.QueryContext(ctx, `
		SELECT id, location_type, COALESCE(parent_id, '')
		FROM locations`)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	type location struct {
		id, locType, parentID string
	}
	var locs []location
	typeByID := make(map[string]string)
	for rows.Next() {
		var l location
		if err := rows.Scan(&l.id, &l.locType, &l.parentID); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locs = append(locs, l)
		typeByID[l.id] = l.locType
	}
	if err := rows.Err(); err != nil {
		endSpan(err)
		return nil, err
	}

	tree := scope.NewInMemoryTree()
	for _, l := range locs {
		key := scope.Key{Type: scope.Type(l.locType), ID: l.id}
		parent := scope.Global()
		if l.parentID != "" {
			parent = scope.Key{Type: scope.Type(typeByID[l.parentID]), ID: l.parentID}
		}
		tree.Add(key, parent)
	}
	endSpan(nil)
	return tree, nil
}
