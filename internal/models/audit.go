package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions
const (
	AuditCampaignCreated       = "campaign_created"
	AuditCampaignStatusChanged = "campaign_status_changed"
	AuditTokensDeactivated     = "tokens_deactivated"
)

type AuditLog struct {
	ID          uuid.UUID  `json:"id"`
	ActorUserID *uuid.UUID `json:"actor_user_id,omitempty"`
	ActorType   string     `json:"actor_type"` // user/admin/system
	Action      string     `json:"action"`
	EntityType  string     `json:"entity_type"`
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	Meta        any        `json:"meta,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
