// Package factor defines the closed set of ranking factors and their
// normalization functions. Each factor maps a raw domain value to [0,1] so
// that rule weights stay comparable across scopes and over time. Adding a
// factor is a deliberate, versioned change, not a schema mutation.
package factor

// Key names a factor. The set is closed; unknown keys in a rule's weight
// map are ignored at evaluation time.
type Key string

// The supported factors. Raw value units per factor:
//   - verification_status: nonzero means verified
//   - profile_completeness: fraction in [0,1]
//   - response_time: median response time in hours
//   - reputation_trend: trailing-window rating delta, typically in [-1,1]
//   - recent_activity: activity-event count in the trailing 30 days
//   - plan_tier: ordinal rank of the subscription tier (1 = lowest)
//   - admin_trust_score: 0-100 value assigned by administrators
//   - content_freshness: days since the profile was last updated
const (
	VerificationStatus  Key = "verification_status"
	ProfileCompleteness Key = "profile_completeness"
	ResponseTime        Key = "response_time"
	ReputationTrend     Key = "reputation_trend"
	RecentActivity      Key = "recent_activity"
	PlanTier            Key = "plan_tier"
	AdminTrustScore     Key = "admin_trust_score"
	ContentFreshness    Key = "content_freshness"
)

// All returns the full factor set in stable order.
func All() []Key {
	return []Key{
		VerificationStatus,
		ProfileCompleteness,
		ResponseTime,
		ReputationTrend,
		RecentActivity,
		PlanTier,
		AdminTrustScore,
		ContentFreshness,
	}
}

// Valid reports whether k is a known factor.
func (k Key) Valid() bool {
	switch k {
	case VerificationStatus, ProfileCompleteness, ResponseTime,
		ReputationTrend, RecentActivity, PlanTier,
		AdminTrustScore, ContentFreshness:
		return true
	}
	return false
}

// Params tunes the normalization functions that depend on deployment
// configuration rather than fixed product constants.
type Params struct {
	// ActivityCap is the activity-event count treated as maximal recent
	// activity. Counts at or above the cap normalize to 1.0.
	ActivityCap float64
	// MaxPlanRank is the ordinal rank of the highest subscription tier.
	MaxPlanRank float64
}

// Default normalization parameters.
const (
	DefaultActivityCap = 30.0
	DefaultMaxPlanRank = 3.0
)

// DefaultParams returns the default normalization parameters.
func DefaultParams() Params {
	return Params{
		ActivityCap: DefaultActivityCap,
		MaxPlanRank: DefaultMaxPlanRank,
	}
}

// Normalization boundary constants.
const (
	// responseFloorHours: response times at or under this normalize to 1.0.
	responseFloorHours = 1.0
	// responseCeilHours: response times at or over this normalize to 0.0.
	responseCeilHours = 48.0
	// freshnessWindowDays: content older than this normalizes to 0.0.
	freshnessWindowDays = 90.0
)

// Normalize maps a raw signal value for the factor into [0,1].
// Unknown factors normalize to 0.
func (k Key) Normalize(raw float64, p Params) float64 {
	switch k {
	case VerificationStatus:
		if raw != 0 {
			return 1.0
		}
		return 0.0
	case ProfileCompleteness:
		return clamp01(raw)
	case ResponseTime:
		if raw <= responseFloorHours {
			return 1.0
		}
		if raw >= responseCeilHours {
			return 0.0
		}
		return (responseCeilHours - raw) / (responseCeilHours - responseFloorHours)
	case ReputationTrend:
		delta := raw
		if delta < -1 {
			delta = -1
		}
		if delta > 1 {
			delta = 1
		}
		return (delta + 1) / 2
	case RecentActivity:
		cap := p.ActivityCap
		if cap <= 0 {
			cap = DefaultActivityCap
		}
		return clamp01(raw / cap)
	case PlanTier:
		max := p.MaxPlanRank
		if max <= 0 {
			max = DefaultMaxPlanRank
		}
		return clamp01(raw / max)
	case AdminTrustScore:
		return clamp01(raw / 100)
	case ContentFreshness:
		return clamp01(1 - raw/freshnessWindowDays)
	default:
		return 0.0
	}
}

// clamp01 clamps v to the [0,1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
