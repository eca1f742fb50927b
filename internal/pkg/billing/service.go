package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/internal/pkg/env"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

// Config holds the webhook secret and the product catalogue mapping.
type Config struct {
	WebhookSecret string
	Tolerance     time.Duration
	Products      ProductTierMap
}

// ConfigFromEnv reads POLAR_WEBHOOK_SECRET, POLAR_WEBHOOK_TOLERANCE and the
// product ids.
func ConfigFromEnv() Config {
	return Config{
		WebhookSecret: strings.TrimSpace(env.GetEnv("POLAR_WEBHOOK_SECRET", "")),
		Tolerance:     env.GetEnvDuration("POLAR_WEBHOOK_TOLERANCE", DefaultSignatureTolerance),
		Products:      NewProductTierMapFromEnv(),
	}
}

// Service verifies subscription webhooks and applies them exactly once.
type Service struct {
	repo     Repository
	verifier *SignatureVerifier
	mutator  *TierMutator
	secret   string
	logger   *zap.Logger
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, cfg Config, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger).Named("billing")
	return &Service{
		repo:     repo,
		verifier: NewSignatureVerifier(cfg.Tolerance, logger),
		mutator:  NewTierMutator(cfg.Products, logger),
		secret:   cfg.WebhookSecret,
		logger:   logger,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cfg Config, logger *zap.Logger) *Service {
	return NewService(NewRepository(db), cfg, logger)
}

// HandleWebhook verifies and applies one delivery. The ledger claim and the
// tier write share a transaction: a failed write rolls the claim back so the
// provider's retry is processed again, and concurrent duplicates resolve on
// the unique event id.
//
// A non-nil error is only returned with OutcomeFailed.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (WebhookResult, error) {
	if !s.verifier.Verify(rawBody, signatureHeader, s.secret) {
		return WebhookResult{Outcome: OutcomeRejected}, nil
	}

	event, err := ParsePolarWebhookEvent(rawBody)
	if err != nil {
		s.logger.Warn("webhook body is not valid JSON", zap.Error(err))
		return WebhookResult{Outcome: OutcomeMalformed}, nil
	}

	result := WebhookResult{EventID: event.EventID, EventType: event.Type}
	log := s.logger.With(zap.String("event_id", event.EventID), zap.String("event_type", event.Type))

	if !IsSubscriptionEvent(event.Type) {
		log.Info("unhandled webhook event type")
		result.Outcome = OutcomeIgnored
		return result, nil
	}
	if event.CustomerExternalID == "" {
		log.Warn("webhook missing customer.externalId")
		result.Outcome = OutcomeUnresolvedUser
		return result, nil
	}
	result.UserID = event.CustomerExternalID

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		claim, err := tx.ClaimWebhookEvent(ctx, event.EventID, event.Type)
		if err != nil {
			return fmt.Errorf("claim webhook event: %w", err)
		}
		if claim == AlreadyClaimed {
			result.Outcome = OutcomeDuplicate
			return nil
		}

		user, err := tx.FindUserByID(ctx, event.CustomerExternalID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				// The claim is kept: a retry would hit the same missing user.
				result.Outcome = OutcomeUnresolvedUser
				return nil
			}
			return fmt.Errorf("load user: %w", err)
		}

		transition := s.mutator.Resolve(event.Type, event.Status, event.ProductID)
		if !transition.Change {
			result.Outcome = OutcomeUnchanged
			result.Tier = user.EffectiveTier()
			return nil
		}
		if err := s.mutator.Apply(ctx, tx, user.ID, transition); err != nil {
			return fmt.Errorf("apply tier %s: %w", transition.Tier, err)
		}
		result.Outcome = OutcomeApplied
		result.Tier = transition.Tier
		return nil
	})
	if err != nil {
		log.Error("webhook processing failed, event left unclaimed", zap.Error(err))
		result.Outcome = OutcomeFailed
		result.Tier = ""
		return result, err
	}

	switch result.Outcome {
	case OutcomeDuplicate:
		log.Info("duplicate webhook event")
	case OutcomeUnresolvedUser:
		log.Warn("user not found for webhook", zap.String("user_id", result.UserID))
	default:
		log.Info("webhook processed",
			zap.String("outcome", string(result.Outcome)),
			zap.String("user_id", result.UserID),
			zap.String("tier", string(result.Tier)),
		)
	}
	return result, nil
}

// IsProcessed reports whether eventID is recorded in the ledger.
func (s *Service) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return s.repo.WebhookEventExists(ctx, eventID)
}
