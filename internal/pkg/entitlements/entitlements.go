package entitlements

import "strings"

type Tier string

const (
	TierFree    Tier = "FREE"
	TierBasic   Tier = "BASIC"
	TierPremium Tier = "PREMIUM"
)

// ParseTier normalizes a stored or claimed tier. Anything unknown is FREE so a
// user can never end up in an undefined entitlement state.
func ParseTier(raw string) Tier {
	switch Tier(strings.ToUpper(strings.TrimSpace(raw))) {
	case TierBasic:
		return TierBasic
	case TierPremium:
		return TierPremium
	default:
		return TierFree
	}
}

// Valid reports whether t is one of the enumerated tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierPremium:
		return true
	default:
		return false
	}
}

func (t Tier) String() string {
	return string(t)
}

// MonthlyInterpretations returns the monthly interpretation quota for a tier.
// PREMIUM is unlimited and is never counted against.
func MonthlyInterpretations(t Tier) (limit int, unlimited bool) {
	switch ParseTier(string(t)) {
	case TierPremium:
		return 0, true
	case TierBasic:
		return 20, false
	default:
		return 3, false
	}
}

// InterpretRequestsPerMinute is the per-user burst limit on the
// interpretation endpoint.
func InterpretRequestsPerMinute(t Tier) int {
	switch ParseTier(string(t)) {
	case TierPremium:
		return 100
	case TierBasic:
		return 30
	default:
		return 10
	}
}
