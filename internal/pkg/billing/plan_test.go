package billing

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
)

const (
	basicProductID   = "prod_basic"
	premiumProductID = "prod_premium"
)

func testProducts() ProductTierMap {
	m := ProductTierMap{}
	m.Add(basicProductID, entitlements.TierBasic)
	m.Add(premiumProductID, entitlements.TierPremium)
	return m
}

func TestProductTierMapResolve(t *testing.T) {
	m := testProducts()
	m.Add("", entitlements.TierPremium)
	m.Add("prod_bogus", entitlements.Tier("GOLD"))

	tests := []struct {
		in        string
		want      entitlements.Tier
		wantKnown bool
	}{
		{in: basicProductID, want: entitlements.TierBasic, wantKnown: true},
		{in: " " + premiumProductID + " ", want: entitlements.TierPremium, wantKnown: true},
		{in: "", want: entitlements.TierFree, wantKnown: false},
		{in: "prod_bogus", want: entitlements.TierFree, wantKnown: false},
		{in: "prod_unknown", want: entitlements.TierFree, wantKnown: false},
	}

	for _, tt := range tests {
		got, known := m.Resolve(tt.in)
		if got != tt.want || known != tt.wantKnown {
			t.Fatalf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.in, got, known, tt.want, tt.wantKnown)
		}
	}
}

func TestNewProductTierMapFromEnvSkipsEmptyIDs(t *testing.T) {
	t.Setenv("POLAR_PRODUCT_ID_BASIC", "")
	t.Setenv("POLAR_PRODUCT_ID_PREMIUM", "prod_env_premium")

	m := NewProductTierMapFromEnv()
	if len(m) != 1 {
		t.Fatalf("expected only the premium id to be mapped, got %v", m)
	}
	if tier, _ := m.Resolve(""); tier != entitlements.TierFree {
		t.Fatalf("empty product id must not resolve to a paid tier, got %q", tier)
	}
	if tier, _ := m.Resolve("prod_env_premium"); tier != entitlements.TierPremium {
		t.Fatalf("expected PREMIUM, got %q", tier)
	}
}

func TestTierMutatorResolve(t *testing.T) {
	m := NewTierMutator(testProducts(), nil)

	tests := []struct {
		name      string
		eventType string
		status    string
		product   string
		want      Transition
	}{
		{"active basic", EventSubscriptionUpdated, "active", basicProductID, Transition{Change: true, Tier: entitlements.TierBasic, KnownProduct: true}},
		{"trialing premium", EventSubscriptionUpdated, "trialing", premiumProductID, Transition{Change: true, Tier: entitlements.TierPremium, KnownProduct: true}},
		{"created ignores status", EventSubscriptionCreated, "incomplete", premiumProductID, Transition{Change: true, Tier: entitlements.TierPremium, KnownProduct: true}},
		{"empty status means active", EventSubscriptionUpdated, "", basicProductID, Transition{Change: true, Tier: entitlements.TierBasic, KnownProduct: true}},
		{"active unknown product", EventSubscriptionUpdated, "active", "prod_unknown", Transition{Change: true, Tier: entitlements.TierFree, KnownProduct: false}},
		{"canceled", EventSubscriptionUpdated, "canceled", premiumProductID, Transition{Change: true, Tier: entitlements.TierFree, KnownProduct: true}},
		{"revoked", EventSubscriptionUpdated, "revoked", "", Transition{Change: true, Tier: entitlements.TierFree, KnownProduct: true}},
		{"unpaid", EventSubscriptionUpdated, "unpaid", basicProductID, Transition{Change: true, Tier: entitlements.TierFree, KnownProduct: true}},
		{"past due", EventSubscriptionUpdated, "past_due", basicProductID, Transition{Change: true, Tier: entitlements.TierFree, KnownProduct: true}},
		{"incomplete", EventSubscriptionUpdated, "incomplete", basicProductID, Transition{Change: true, Tier: entitlements.TierFree, KnownProduct: true}},
		{"paused", EventSubscriptionUpdated, "PAUSED", basicProductID, Transition{Change: true, Tier: entitlements.TierFree, KnownProduct: true}},
		{"future status", EventSubscriptionUpdated, "some_future_status", premiumProductID, Transition{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Resolve(tt.eventType, tt.status, tt.product); got != tt.want {
				t.Fatalf("Resolve(%q, %q, %q) = %+v, want %+v", tt.eventType, tt.status, tt.product, got, tt.want)
			}
		})
	}
}

func TestTierMutatorResolveLogsWarnings(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := NewTierMutator(testProducts(), zap.New(core))

	m.Resolve(EventSubscriptionUpdated, "some_future_status", premiumProductID)
	if n := logs.FilterMessageSnippet("unrecognised subscription status").Len(); n != 1 {
		t.Fatalf("expected one unknown status warning, got %d", n)
	}

	m.Resolve(EventSubscriptionUpdated, "active", "prod_unknown")
	if n := logs.FilterMessageSnippet("unknown product").Len(); n != 1 {
		t.Fatalf("expected one unknown product warning, got %d", n)
	}
}

type tierRecorder struct {
	Repository
	calls []entitlements.Tier
	err   error
}

func (r *tierRecorder) UpdateUserTier(_ context.Context, _ string, tier entitlements.Tier) error {
	r.calls = append(r.calls, tier)
	return r.err
}

func TestTierMutatorApply(t *testing.T) {
	m := NewTierMutator(testProducts(), nil)
	rec := &tierRecorder{}

	if err := m.Apply(context.Background(), rec, "user-1", Transition{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("no-change transition must not write, got %v", rec.calls)
	}

	if err := m.Apply(context.Background(), rec, "user-1", Transition{Change: true, Tier: entitlements.TierBasic}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != entitlements.TierBasic {
		t.Fatalf("expected a single BASIC write, got %v", rec.calls)
	}

	rec.err = errors.New("boom")
	if err := m.Apply(context.Background(), rec, "user-1", Transition{Change: true, Tier: entitlements.TierFree}); err == nil {
		t.Fatalf("expected write error to propagate")
	}
}
