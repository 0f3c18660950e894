// Package alerts turns campaign lifecycle events into pushes for the
// tenant's operators.
package alerts

import (
	"context"
	"fmt"

	"github.com/push-campaigns/backend/internal/events"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/push"
	"go.uber.org/zap"
)

// OperatorTopic is the push topic admin devices of a tenant subscribe to.
func OperatorTopic(tenantSlug string) string {
	return "ops-" + tenantSlug
}

type TopicSender interface {
	SendToTopic(ctx context.Context, topic string, msg push.Message) push.Outcome
}

type Forwarder struct {
	sender TopicSender
	log    *zap.Logger
}

func NewForwarder(sender TopicSender, log *zap.Logger) *Forwarder {
	return &Forwarder{sender: sender, log: log}
}

// Handle forwards terminal status changes and ignores everything else.
// It reports whether a push was attempted.
func (f *Forwarder) Handle(ctx context.Context, event events.Event) bool {
	if event.Type != events.EventCampaignStatusChanged {
		return false
	}
	tenant, _ := event.Payload["tenant"].(string)
	status, _ := event.Payload["to"].(string)
	campaignID, _ := event.Payload["campaign_id"].(string)
	if tenant == "" || !models.IsTerminalStatus(status) {
		return false
	}

	msg := push.Message{
		Notification: push.Notification{
			Title: "Campaign " + status,
			Body:  summary(event.Payload, status),
		},
		Data: map[string]string{
			"type":        "campaign_alert",
			"campaign_id": campaignID,
			"status":      status,
		},
	}

	out := f.sender.SendToTopic(ctx, OperatorTopic(tenant), msg)
	if !out.Success {
		f.log.Warn("operator alert failed",
			zap.String("tenant", tenant),
			zap.String("campaign_id", campaignID),
			zap.String("error", out.Error),
		)
		return true
	}
	f.log.Info("operator alert sent",
		zap.String("tenant", tenant),
		zap.String("campaign_id", campaignID),
		zap.String("message_id", out.MessageID),
	)
	return true
}

func summary(payload map[string]any, status string) string {
	if status == models.CampaignStatusFailed {
		if reason, ok := payload["failure_reason"].(string); ok && reason != "" {
			return "Failed: " + reason
		}
		return "Failed"
	}
	return fmt.Sprintf("%v targeted, %v sent, %v failed",
		payload["targeted_count"], payload["sent_count"], payload["failed_count"])
}
