package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/rule"
	"github.com/solivane/veridex/internal/signal"
)

// BenchmarkComputeScore benchmarks scoring one entity with the default rule.
func BenchmarkComputeScore(b *testing.B) {
	r := rule.Default()
	snap := signal.Snapshot{
		EntityID: "bench",
		Values: map[factor.Key]float64{
			factor.VerificationStatus:  1,
			factor.ProfileCompleteness: 0.8,
			factor.RecentActivity:      12,
			factor.AdminTrustScore:     70,
			factor.ContentFreshness:    14,
		},
	}
	params := factor.DefaultParams()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputeScore(r, snap, params)
	}
}

// BenchmarkRank benchmarks a full ranking run over 100 entities.
func BenchmarkRank(b *testing.B) {
	eng := New(testTree(), factor.DefaultParams())

	entities := make([]string, 100)
	signals := make([]signal.Snapshot, 100)
	for i := range entities {
		id := fmt.Sprintf("entity-%03d", i)
		entities[i] = id
		signals[i] = signal.Snapshot{
			EntityID: id,
			Scope:    cityScope,
			Values: map[factor.Key]float64{
				factor.VerificationStatus:  float64(i % 2),
				factor.ProfileCompleteness: float64(i) / 100,
				factor.RecentActivity:      float64(i % 30),
				factor.AdminTrustScore:     float64(i),
				factor.ContentFreshness:    float64(i % 90),
			},
		}
	}
	in := Input{
		Scope:    cityScope,
		Entities: entities,
		Signals:  signals,
		Now:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := eng.Rank(context.Background(), in); err != nil {
			b.Fatal(err)
		}
	}
}
