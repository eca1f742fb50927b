package billing

import (
	"errors"

	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
)

var (
	// ErrInvalidPayload marks a verified body that is not valid JSON.
	ErrInvalidPayload = errors.New("billing: invalid webhook payload")
	// ErrUserNotFound is returned by repositories for unknown user ids.
	ErrUserNotFound = errors.New("billing: user not found")
)

// ClaimResult is the outcome of inserting an event id into the ledger.
type ClaimResult int

const (
	Claimed ClaimResult = iota + 1
	AlreadyClaimed
)

func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state of one webhook delivery.
type Outcome string

const (
	OutcomeRejected       Outcome = "rejected"
	OutcomeMalformed      Outcome = "malformed"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeUnresolvedUser Outcome = "unresolved_user"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeUnchanged      Outcome = "unchanged"
	OutcomeApplied        Outcome = "applied"
	OutcomeFailed         Outcome = "failed"
)

// Acknowledged reports whether the provider should treat the delivery as done.
func (o Outcome) Acknowledged() bool {
	switch o {
	case OutcomeIgnored, OutcomeUnresolvedUser, OutcomeDuplicate, OutcomeUnchanged, OutcomeApplied:
		return true
	default:
		return false
	}
}

// WebhookResult describes what HandleWebhook did.
type WebhookResult struct {
	Outcome   Outcome
	EventID   string
	EventType string
	UserID    string
	Tier      entitlements.Tier
}
