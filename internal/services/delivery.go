package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/events"
	"github.com/push-campaigns/backend/internal/metrics"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Delivery paths, used as a metrics label.
const (
	PathImmediate = "immediate"
	PathScheduled = "scheduled"
)

// persistTimeout bounds the final writes of a campaign. They run detached from
// the caller's context so a delivery that outlived its deadline is still recorded.
const persistTimeout = 30 * time.Second

type PushSender interface {
	SendToMultipleTokens(ctx context.Context, tokens []string, msg push.Message) *push.BatchResult
}

// Deliverer runs a processing campaign through audience, tokens, gateway and
// log, and moves it to a terminal status. Immediate and scheduled campaigns
// share it.
type Deliverer struct {
	resolver  *AudienceResolver
	gateway   PushSender
	publisher events.Publisher
	baseURL   string
	log       *zap.Logger
	now       func() time.Time
}

func NewDeliverer(resolver *AudienceResolver, gateway PushSender, publisher events.Publisher, baseURL string, log *zap.Logger) *Deliverer {
	return &Deliverer{
		resolver:  resolver,
		gateway:   gateway,
		publisher: publisher,
		baseURL:   baseURL,
		log:       log,
		now:       time.Now,
	}
}

// Deliver expects c in processing status. On success c holds the terminal
// status and counters that were persisted.
func (d *Deliverer) Deliver(ctx context.Context, tenant models.Tenant, stores Stores, c *models.Campaign, path string) error {
	ctx, span := otel.Tracer("campaigns").Start(ctx, "campaign.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant", tenant.Slug),
		attribute.String("campaign_id", c.ID.String()),
		attribute.String("path", path),
	)

	log := d.log.With(
		zap.String("tenant", tenant.Slug),
		zap.String("campaign_id", c.ID.String()),
		zap.String("path", path),
	)

	audience, err := d.resolver.Resolve(ctx, stores.Users, c.Targeting)
	if err != nil {
		log.Error("audience resolution failed", zap.Error(err))
		return d.finish(ctx, tenant, stores, c, nil, models.CampaignStatusFailed, models.FailureDeliveryError, path, err)
	}
	c.TargetedCount = len(audience)
	if len(audience) == 0 {
		log.Info("campaign has no eligible recipients")
		return d.finish(ctx, tenant, stores, c, nil, models.CampaignStatusFailed, models.FailureNoEligibleRecipients, path, nil)
	}

	recipients, err := stores.Tokens.ListActiveForUsers(ctx, audience)
	if err != nil {
		log.Error("token lookup failed", zap.Error(err))
		return d.finish(ctx, tenant, stores, c, nil, models.CampaignStatusFailed, models.FailureDeliveryError, path, err)
	}
	if len(recipients) == 0 {
		log.Info("campaign audience has no active tokens", zap.Int("targeted", len(audience)))
		return d.finish(ctx, tenant, stores, c, nil, models.CampaignStatusFailed, models.FailureNoActiveTokens, path, nil)
	}

	tokens := make([]string, len(recipients))
	for i, r := range recipients {
		tokens[i] = r.Token
	}
	res := d.gateway.SendToMultipleTokens(ctx, tokens, d.Message(c))

	sentAt := d.now()
	entries := make([]models.DeliveryLogEntry, len(recipients))
	for i, o := range res.Outcomes {
		e := models.DeliveryLogEntry{
			ID:         uuid.New(),
			CampaignID: c.ID,
			UserID:     recipients[i].UserID,
			TokenID:    recipients[i].TokenID,
			Status:     models.DeliveryStatusSent,
			SentAt:     sentAt,
		}
		if o.Success {
			id := o.MessageID
			e.MessageID = &id
		} else {
			msg := o.Error
			e.Status = models.DeliveryStatusFailed
			e.Error = &msg
		}
		entries[i] = e
	}
	c.SentCount = res.SuccessCount
	c.FailedCount = res.FailureCount

	// the provider already rejected these tokens, whether or not finalize succeeds
	finishErr := d.finish(ctx, tenant, stores, c, entries, models.CampaignStatusCompleted, "", path, nil)
	deactivateInvalid(ctx, stores, res.InvalidTokens(), &c.ID, log)
	if finishErr != nil {
		return finishErr
	}

	log.Info("campaign delivered",
		zap.Int("targeted", c.TargetedCount),
		zap.Int("tokens", len(tokens)),
		zap.Int("sent", c.SentCount),
		zap.Int("failed", c.FailedCount),
	)
	return nil
}

// Message builds the push payload for a campaign.
func (d *Deliverer) Message(c *models.Campaign) push.Message {
	data := map[string]string{
		"type":        "campaign",
		"campaign_id": c.ID.String(),
	}
	if c.CTAEnabled {
		if c.CTAType != nil {
			data["cta_type"] = *c.CTAType
		}
		if c.CTATarget != nil {
			data["cta_target"] = *c.CTATarget
		}
		if c.CTALabel != nil {
			data["cta_label"] = *c.CTALabel
		}
	}
	return push.Message{
		Notification: push.Notification{Title: c.Title, Body: c.Body},
		Data:         data,
		ImageURL:     d.imageURL(c.BannerPath),
	}
}

func (d *Deliverer) imageURL(path *string) string {
	if path == nil || *path == "" {
		return ""
	}
	p := *path
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if d.baseURL == "" {
		return ""
	}
	u, err := url.JoinPath(d.baseURL, p)
	if err != nil {
		d.log.Warn("invalid banner path", zap.String("path", p), zap.Error(err))
		return ""
	}
	return u
}

// finish persists the terminal status, audits the transition and publishes it.
// cause is returned wrapped when the campaign failed because of an error.
func (d *Deliverer) finish(
	ctx context.Context,
	tenant models.Tenant,
	stores Stores,
	c *models.Campaign,
	entries []models.DeliveryLogEntry,
	status, reason, path string,
	cause error,
) error {
	from := c.Status
	if !models.IsValidTransition(from, status) {
		return fmt.Errorf("invalid campaign transition %s -> %s", from, status)
	}

	now := d.now()
	c.Status = status
	c.CompletedAt = &now
	c.FailureReason = nil
	if reason != "" {
		c.FailureReason = &reason
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := stores.Campaigns.Finalize(persistCtx, c, entries); err != nil {
		c.Status = from
		return fmt.Errorf("finalize campaign %s: %w", c.ID, err)
	}
	metrics.CampaignsFinalizedTotal.WithLabelValues(status, path).Inc()

	meta := map[string]any{
		"from":           from,
		"to":             status,
		"targeted_count": c.TargetedCount,
		"sent_count":     c.SentCount,
		"failed_count":   c.FailedCount,
	}
	if reason != "" {
		meta["failure_reason"] = reason
	}
	if err := stores.Audit.Log(persistCtx, models.AuditLog{
		ActorType:  "system",
		Action:     models.AuditCampaignStatusChanged,
		EntityType: "campaign",
		EntityID:   &c.ID,
		Meta:       meta,
	}); err != nil {
		d.log.Warn("audit write failed", zap.String("campaign_id", c.ID.String()), zap.Error(err))
	}

	payload := map[string]any{"tenant": tenant.Slug, "campaign_id": c.ID.String()}
	for k, v := range meta {
		payload[k] = v
	}
	if err := d.publisher.Publish(persistCtx, events.CampaignStream(tenant.Slug), events.Event{
		Type:    events.EventCampaignStatusChanged,
		Payload: payload,
	}); err != nil {
		d.log.Warn("event publish failed", zap.String("campaign_id", c.ID.String()), zap.Error(err))
	}

	if cause != nil {
		return fmt.Errorf("campaign %s failed: %w", c.ID, cause)
	}
	return nil
}

// deactivateInvalid retires tokens the provider reported as permanently
// invalid. Failures are logged; the delivery already happened.
func deactivateInvalid(ctx context.Context, stores Stores, tokens []string, campaignID *uuid.UUID, log *zap.Logger) {
	if len(tokens) == 0 {
		return
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	n, err := stores.Tokens.DeactivateMany(persistCtx, tokens)
	if err != nil {
		log.Error("failed to deactivate invalid tokens", zap.Int("tokens", len(tokens)), zap.Error(err))
		return
	}
	metrics.TokensDeactivatedTotal.Add(float64(n))
	log.Info("deactivated invalid tokens", zap.Int64("count", n))

	_ = stores.Audit.Log(persistCtx, models.AuditLog{
		ActorType:  "system",
		Action:     models.AuditTokensDeactivated,
		EntityType: "device_token",
		Meta:       map[string]any{"count": n, "campaign_id": campaignID},
	})
}
