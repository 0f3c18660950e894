package events

import "context"

// Event types
const (
	EventCampaignCreated       = "campaign_created"
	EventCampaignStatusChanged = "campaign_status_changed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// CampaignStream is the channel carrying one tenant's campaign events.
func CampaignStream(tenantSlug string) string {
	return "events:campaign:" + tenantSlug
}

// CampaignStreamPattern matches every tenant's campaign channel.
const CampaignStreamPattern = "events:campaign:*"

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error {
	return nil
}
