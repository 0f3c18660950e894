package models

import (
	"time"

	"github.com/google/uuid"
)

// Delivery log statuses
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// DeliveryLogEntry is append-only.
type DeliveryLogEntry struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	UserID     uuid.UUID `json:"user_id"`
	TokenID    uuid.UUID `json:"token_id"`
	Status     string    `json:"status"`
	MessageID  *string   `json:"message_id,omitempty"`
	Error      *string   `json:"error,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}
