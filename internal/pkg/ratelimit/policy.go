package ratelimit

import (
	"time"

	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
)

// Scope selects what a policy keys on.
type Scope int

const (
	// ScopeUser keys on the authenticated user, falling back to the IP.
	ScopeUser Scope = iota
	// ScopeIP always keys on the client IP.
	ScopeIP
)

// Policy is the limit for one endpoint group.
type Policy struct {
	Name   string
	Scope  Scope
	Window time.Duration
	// Default applies to tiers without an entry in Tiers.
	Default int
	Tiers   map[entitlements.Tier]int
}

// LimitFor returns the request budget per window for tier.
func (p Policy) LimitFor(tier entitlements.Tier) int {
	if n, ok := p.Tiers[tier]; ok {
		return n
	}
	return p.Default
}

var (
	PolicyLogin = Policy{
		Name:    "auth.login",
		Scope:   ScopeIP,
		Window:  DefaultWindow,
		Default: 5,
	}
	PolicyRegister = Policy{
		Name:    "auth.register",
		Scope:   ScopeIP,
		Window:  DefaultWindow,
		Default: 3,
	}
	PolicyCards = Policy{
		Name:    "cards",
		Scope:   ScopeIP,
		Window:  DefaultWindow,
		Default: 60,
	}
	PolicyReadings = Policy{
		Name:    "readings",
		Scope:   ScopeUser,
		Window:  DefaultWindow,
		Default: 60,
	}
	PolicyInterpret = Policy{
		Name:    "tarot.interpret",
		Scope:   ScopeUser,
		Window:  DefaultWindow,
		Default: entitlements.InterpretRequestsPerMinute(entitlements.TierFree),
		Tiers: map[entitlements.Tier]int{
			entitlements.TierFree:    entitlements.InterpretRequestsPerMinute(entitlements.TierFree),
			entitlements.TierBasic:   entitlements.InterpretRequestsPerMinute(entitlements.TierBasic),
			entitlements.TierPremium: entitlements.InterpretRequestsPerMinute(entitlements.TierPremium),
		},
	}
)
