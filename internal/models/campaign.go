package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses
const (
	CampaignStatusScheduled  = "scheduled"
	CampaignStatusProcessing = "processing"
	CampaignStatusCompleted  = "completed"
	CampaignStatusFailed     = "failed"
)

// Failure reasons stored on failed campaigns
const (
	FailureNoEligibleRecipients = "no_eligible_recipients"
	FailureNoActiveTokens       = "no_active_tokens"
	FailureDeliveryError        = "delivery_error"
)

// CTA types
const (
	CTATypeModule = "module"
	CTATypeLink   = "link"
)

// Valid state transitions: from -> []to
var ValidCampaignTransitions = map[string][]string{
	CampaignStatusScheduled:  {CampaignStatusProcessing},
	CampaignStatusProcessing: {CampaignStatusCompleted, CampaignStatusFailed},
	CampaignStatusCompleted:  {},
	CampaignStatusFailed:     {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidCampaignTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	return status == CampaignStatusCompleted || status == CampaignStatusFailed
}

type Campaign struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`

	Title           string  `json:"title"`
	Body            string  `json:"body"`
	PageTitle       *string `json:"page_title,omitempty"`
	PageDescription *string `json:"page_description,omitempty"`
	RedemptionCode  *string `json:"redemption_code,omitempty"`
	Rules           *string `json:"rules,omitempty"`
	LogoPath        *string `json:"logo_path,omitempty"`
	BannerPath      *string `json:"banner_path,omitempty"`

	CTAEnabled bool    `json:"cta_enabled"`
	CTAType    *string `json:"cta_type,omitempty"`   // module / link
	CTATarget  *string `json:"cta_target,omitempty"` // module name or external URL
	CTALabel   *string `json:"cta_label,omitempty"`

	Targeting Targeting `json:"targeting"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Status      string     `json:"status"`

	TargetedCount int        `json:"targeted_count"`
	SentCount     int        `json:"sent_count"`
	FailedCount   int        `json:"failed_count"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Targeting criteria are independent; the audience is the union of every set they match.
type Targeting struct {
	PostalCodePrefix *string  `json:"postal_code_prefix,omitempty"`
	RadiusKm         *int     `json:"radius_km,omitempty"`
	DocumentNumbers  []string `json:"document_numbers,omitempty"`
	UserIDs          []string `json:"user_ids,omitempty"`
}

func (t Targeting) IsEmpty() bool {
	return (t.PostalCodePrefix == nil || *t.PostalCodePrefix == "") &&
		len(t.DocumentNumbers) == 0 && len(t.UserIDs) == 0
}

// IsDue reports whether a campaign should be sent at now.
func (c *Campaign) IsDue(now time.Time) bool {
	return c.ScheduledAt == nil || !c.ScheduledAt.After(now)
}

// CampaignStats counts delivery log rows per status.
type CampaignStats struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
