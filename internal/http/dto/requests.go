package dto

import (
	"time"

	"github.com/push-campaigns/backend/internal/models"
)

// Campaigns

type CreateCampaignRequest struct {
	Title           string           `json:"title"`
	Body            string           `json:"body"`
	PageTitle       *string          `json:"page_title,omitempty"`
	PageDescription *string          `json:"page_description,omitempty"`
	RedemptionCode  *string          `json:"redemption_code,omitempty"`
	Rules           *string          `json:"rules,omitempty"`
	LogoPath        *string          `json:"logo_path,omitempty"`
	BannerPath      *string          `json:"banner_path,omitempty"`
	CTA             *CallToAction    `json:"cta,omitempty"`
	Targeting       models.Targeting `json:"targeting"`
	ScheduledAt     *time.Time       `json:"scheduled_at,omitempty"`
}

type CallToAction struct {
	Enabled bool    `json:"enabled"`
	Type    *string `json:"type,omitempty"`   // module / link
	Target  *string `json:"target,omitempty"` // module name or URL
	Label   *string `json:"label,omitempty"`
}

func (r *CreateCampaignRequest) Campaign() *models.Campaign {
	c := &models.Campaign{
		Title:           r.Title,
		Body:            r.Body,
		PageTitle:       r.PageTitle,
		PageDescription: r.PageDescription,
		RedemptionCode:  r.RedemptionCode,
		Rules:           r.Rules,
		LogoPath:        r.LogoPath,
		BannerPath:      r.BannerPath,
		Targeting:       r.Targeting,
		ScheduledAt:     r.ScheduledAt,
	}
	if r.CTA != nil {
		c.CTAEnabled = r.CTA.Enabled
		c.CTAType = r.CTA.Type
		c.CTATarget = r.CTA.Target
		c.CTALabel = r.CTA.Label
	}
	return c
}

// Devices

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"` // ios / android / web
}

type RemoveDeviceRequest struct {
	Token string `json:"token"`
}

// Notifications

type TestNotificationRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}
