package billing

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
	"github.com/ManuelReschke/Arcana/internal/pkg/env"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

// ProductTierMap maps provider product ids to tiers.
type ProductTierMap map[string]entitlements.Tier

// NewProductTierMapFromEnv reads POLAR_PRODUCT_ID_BASIC and
// POLAR_PRODUCT_ID_PREMIUM. Unset ids are skipped so that an empty product id
// never resolves to a paid tier.
func NewProductTierMapFromEnv() ProductTierMap {
	m := ProductTierMap{}
	m.Add(env.GetEnv("POLAR_PRODUCT_ID_BASIC", ""), entitlements.TierBasic)
	m.Add(env.GetEnv("POLAR_PRODUCT_ID_PREMIUM", ""), entitlements.TierPremium)
	return m
}

func (m ProductTierMap) Add(productID string, tier entitlements.Tier) {
	id := strings.TrimSpace(productID)
	if id == "" || !tier.Valid() {
		return
	}
	m[id] = tier
}

// Resolve returns the tier for productID; unknown ids yield FREE and false.
func (m ProductTierMap) Resolve(productID string) (entitlements.Tier, bool) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return entitlements.TierFree, false
	}
	tier, ok := m[id]
	if !ok {
		return entitlements.TierFree, false
	}
	return tier, true
}

type statusClass int

const (
	statusUnknown statusClass = iota
	statusEntitling
	statusRevoking
)

func classifyStatus(status string) statusClass {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return statusEntitling
	case "canceled", "revoked", "unpaid", "past_due", "incomplete", "paused":
		return statusRevoking
	default:
		return statusUnknown
	}
}

// Transition is the tier change implied by a subscription event.
type Transition struct {
	Change bool
	Tier   entitlements.Tier
	// KnownProduct is false when an upgrade fell back to FREE.
	KnownProduct bool
}

// TierMutator turns subscription events into tier writes.
type TierMutator struct {
	Products ProductTierMap
	Logger   *zap.Logger
}

func NewTierMutator(products ProductTierMap, logger *zap.Logger) *TierMutator {
	if products == nil {
		products = ProductTierMap{}
	}
	return &TierMutator{Products: products, Logger: logging.OrNop(logger)}
}

// Resolve decides the transition without touching storage. An unrecognized
// status never changes the tier.
func (m *TierMutator) Resolve(eventType, status, productID string) Transition {
	log := logging.OrNop(m.Logger)

	if strings.TrimSpace(status) == "" {
		status = "active"
	}

	created := strings.EqualFold(strings.TrimSpace(eventType), EventSubscriptionCreated)
	switch class := classifyStatus(status); {
	case created || class == statusEntitling:
		tier, known := m.Products.Resolve(productID)
		if !known {
			log.Warn("subscription references unknown product, falling back to FREE",
				zap.String("product_id", productID),
			)
		}
		return Transition{Change: true, Tier: tier, KnownProduct: known}
	case class == statusRevoking:
		return Transition{Change: true, Tier: entitlements.TierFree, KnownProduct: true}
	default:
		log.Warn("unrecognised subscription status, tier left unchanged",
			zap.String("status", status),
			zap.String("event_type", eventType),
		)
		return Transition{}
	}
}

// Apply writes the transition for userID through repo, which must be bound
// to the caller's transaction.
func (m *TierMutator) Apply(ctx context.Context, repo Repository, userID string, t Transition) error {
	if !t.Change {
		return nil
	}
	return repo.UpdateUserTier(ctx, userID, t.Tier)
}
