package store

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/scope"
)

func TestScopePredicate(t *testing.T) {
	pred, args := scopePredicate([]scope.Key{
		{Type: scope.TypeCity, ID: "munich"},
		scope.Global(),
	})

	want := "(scope_type, scope_id) IN (($1, $2), ($3, $4))"
	if pred != want {
		t.Errorf("predicate = %q, want %q", pred, want)
	}
	wantArgs := []any{"city", "munich", "global", ""}
	if len(args) != len(wantArgs) {
		t.Fatalf("args = %v, want %v", args, wantArgs)
	}
	for i := range args {
		if args[i] != wantArgs[i] {
			t.Errorf("args[%d] = %v, want %v", i, args[i], wantArgs[i])
		}
	}
}

func TestDecodeWeights(t *testing.T) {
	weights, err := decodeWeights([]byte(`{"verification_status":{"enabled":true,"weight":40}}`))
	if err != nil {
		t.Fatalf("decodeWeights() error = %v", err)
	}
	w, ok := weights[factor.VerificationStatus]
	if !ok {
		t.Fatal("verification_status weight missing")
	}
	if !w.Enabled || w.Weight != 40 {
		t.Errorf("weight = %+v, want enabled 40", w)
	}

	if _, err := decodeWeights([]byte(`not json`)); err == nil {
		t.Error("decodeWeights() with malformed input: want error")
	}
}

// TestPostgresStoreView is an integration test requiring a migrated database.
func TestPostgresStoreView(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	s := NewPostgresStore(db, slog.Default())
	v, err := s.View(context.Background(), []scope.Key{scope.Global()})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if v == nil {
		t.Fatal("View() returned nil view")
	}
	if len(v.Chain) != 1 || v.Chain[0] != scope.Global() {
		t.Errorf("Chain = %v, want [global]", v.Chain)
	}
}

// TestLoadLocationTree is an integration test requiring a migrated database.
func TestLoadLocationTree(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	tree, err := LoadLocationTree(context.Background(), db)
	if err != nil {
		t.Fatalf("LoadLocationTree() error = %v", err)
	}
	// The global root always resolves, even on an empty locations table.
	if _, ok := tree.Ancestors(scope.Global()); !ok {
		t.Error("global scope must resolve in a freshly loaded tree")
	}
}
