package override

import (
	"testing"
	"time"
)

func TestExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{name: "no expiry never expires", expiresAt: nil, want: false},
		{name: "future expiry is live", expiresAt: &future, want: false},
		{name: "past expiry is expired", expiresAt: &past, want: true},
		{name: "expiry exactly now is expired", expiresAt: &now, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Override{ExpiresAt: tt.expiresAt}
			if got := o.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEffectiveBoost(t *testing.T) {
	tests := []struct {
		name string
		o    Override
		want float64
	}{
		{name: "boost positive value", o: Override{Type: TypeBoost, BoostValue: 15}, want: 15},
		{name: "boost authored negative is normalized", o: Override{Type: TypeBoost, BoostValue: -15}, want: 15},
		{name: "suppress positive value is normalized", o: Override{Type: TypeSuppress, BoostValue: 20}, want: -20},
		{name: "suppress negative value", o: Override{Type: TypeSuppress, BoostValue: -20}, want: -20},
		{name: "pin adjusts nothing", o: Override{Type: TypePin, BoostValue: 50}, want: 0},
		{name: "exclude adjusts nothing", o: Override{Type: TypeExclude, BoostValue: 50}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.o.EffectiveBoost(); got != tt.want {
				t.Errorf("EffectiveBoost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range []Type{TypePin, TypeBoost, TypeSuppress, TypeExclude} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("promote").Valid() {
		t.Error("promote should not be valid")
	}
}
