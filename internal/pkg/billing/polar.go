package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventSubscriptionCreated = "subscription.created"
	EventSubscriptionUpdated = "subscription.updated"
)

// PolarWebhookEvent is the subset of a Polar subscription webhook this
// service acts on.
type PolarWebhookEvent struct {
	Type               string
	EventID            string
	CustomerExternalID string
	ProductID          string
	Status             string
}

// ParsePolarWebhookEvent decodes an already verified body. Only JSON syntax
// errors are fatal; missing fields are left empty for the dispatcher to
// classify. The ledger key falls back to a digest of the body when the
// provider sent no data.id.
func ParsePolarWebhookEvent(payload []byte) (*PolarWebhookEvent, error) {
	type rawPayload struct {
		Type string `json:"type"`
		Data struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Customer *struct {
				ExternalID string `json:"externalId"`
			} `json:"customer"`
			Product *struct {
				ID string `json:"id"`
			} `json:"product"`
		} `json:"data"`
	}

	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	out := &PolarWebhookEvent{
		Type:    strings.TrimSpace(raw.Type),
		EventID: strings.TrimSpace(raw.Data.ID),
		Status:  strings.TrimSpace(raw.Data.Status),
	}
	if raw.Data.Customer != nil {
		out.CustomerExternalID = strings.TrimSpace(raw.Data.Customer.ExternalID)
	}
	if raw.Data.Product != nil {
		out.ProductID = strings.TrimSpace(raw.Data.Product.ID)
	}
	if out.EventID == "" {
		sum := sha256.Sum256(payload)
		out.EventID = "sha256:" + hex.EncodeToString(sum[:])
	}
	return out, nil
}

// IsSubscriptionEvent reports whether eventType changes entitlements.
func IsSubscriptionEvent(eventType string) bool {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return true
	default:
		return false
	}
}
