package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/events"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/push"
	"github.com/push-campaigns/backend/internal/repositories"
	"go.uber.org/zap"
)

type CampaignService struct {
	opener    StoreOpener
	deliverer *Deliverer
	gateway   PushSender
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewCampaignService(
	opener StoreOpener,
	deliverer *Deliverer,
	gateway PushSender,
	publisher events.Publisher,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		opener:    opener,
		deliverer: deliverer,
		gateway:   gateway,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

type DispatchResult struct {
	CampaignID    uuid.UUID `json:"campaign_id"`
	Status        string    `json:"status"`
	TargetedCount int       `json:"targeted_count"`
	SentCount     int       `json:"sent_count"`
	FailedCount   int       `json:"failed_count"`
	FailureReason *string   `json:"failure_reason,omitempty"`
}

func dispatchResult(c *models.Campaign) *DispatchResult {
	return &DispatchResult{
		CampaignID:    c.ID,
		Status:        c.Status,
		TargetedCount: c.TargetedCount,
		SentCount:     c.SentCount,
		FailedCount:   c.FailedCount,
		FailureReason: c.FailureReason,
	}
}

// CreateAndDispatch stores a campaign as scheduled when scheduledAt is in the
// future, otherwise delivers it synchronously. An immediate campaign whose
// audience is empty is recorded as failed and reported with ErrEmptyAudience.
func (s *CampaignService) CreateAndDispatch(ctx context.Context, tenant models.Tenant, actorID uuid.UUID, c *models.Campaign) (*DispatchResult, error) {
	if err := ValidateCampaign(c); err != nil {
		return nil, err
	}

	stores, release, err := s.opener.Open(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", tenant.Slug, err)
	}
	defer release()

	c.ID = uuid.New()
	c.TenantID = tenant.ID
	c.CreatedBy = &actorID
	c.TargetedCount, c.SentCount, c.FailedCount = 0, 0, 0
	c.CompletedAt, c.FailureReason = nil, nil

	now := s.now()
	if !c.IsDue(now) {
		c.Status = models.CampaignStatusScheduled
		if err := stores.Campaigns.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("create campaign: %w", err)
		}
		s.audit(ctx, stores, tenant, actorID, c)
		s.log.Info("campaign scheduled",
			zap.String("tenant", tenant.Slug),
			zap.String("campaign_id", c.ID.String()),
			zap.Time("scheduled_at", *c.ScheduledAt),
		)
		return dispatchResult(c), nil
	}

	// Immediate path: processing lives only in memory until the terminal write.
	c.Status = models.CampaignStatusProcessing
	s.audit(ctx, stores, tenant, actorID, c)
	if err := s.deliverer.Deliver(ctx, tenant, stores, c, PathImmediate); err != nil {
		return nil, err
	}

	res := dispatchResult(c)
	if c.FailureReason != nil && *c.FailureReason == models.FailureNoEligibleRecipients {
		return res, ErrEmptyAudience
	}
	return res, nil
}

func (s *CampaignService) audit(ctx context.Context, stores Stores, tenant models.Tenant, actorID uuid.UUID, c *models.Campaign) {
	_ = stores.Audit.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "admin",
		Action:      models.AuditCampaignCreated,
		EntityType:  "campaign",
		EntityID:    &c.ID,
		Meta:        map[string]any{"status": c.Status},
	})
	_ = s.publisher.Publish(ctx, events.CampaignStream(tenant.Slug), events.Event{
		Type: events.EventCampaignCreated,
		Payload: map[string]any{
			"tenant":      tenant.Slug,
			"campaign_id": c.ID.String(),
			"status":      c.Status,
		},
	})
}

// ValidateCampaign checks caller input before anything is stored.
func ValidateCampaign(c *models.Campaign) error {
	c.Title = strings.TrimSpace(c.Title)
	c.Body = strings.TrimSpace(c.Body)
	if c.Title == "" || c.Body == "" {
		return fmt.Errorf("%w: title and body are required", ErrValidation)
	}
	if c.Targeting.IsEmpty() {
		return fmt.Errorf("%w: at least one targeting criterion is required", ErrValidation)
	}
	if p := c.Targeting.PostalCodePrefix; p != nil && *p != "" {
		prefix, err := NormalizePostalPrefix(*p)
		if err != nil {
			return err
		}
		c.Targeting.PostalCodePrefix = &prefix
	}
	if r := c.Targeting.RadiusKm; r != nil && *r < 0 {
		return fmt.Errorf("%w: radius must not be negative", ErrValidation)
	}
	if _, invalid := ParseUserIDs(c.Targeting.UserIDs); len(invalid) > 0 {
		return fmt.Errorf("%w: malformed user ids: %s", ErrValidation, strings.Join(invalid, ", "))
	}
	if c.CTAEnabled {
		if c.CTAType == nil || c.CTATarget == nil || strings.TrimSpace(*c.CTATarget) == "" {
			return fmt.Errorf("%w: enabled call-to-action needs type and target", ErrValidation)
		}
		switch *c.CTAType {
		case models.CTATypeModule:
		case models.CTATypeLink:
			u, err := url.Parse(*c.CTATarget)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("%w: call-to-action link must be an absolute http(s) url", ErrValidation)
			}
		default:
			return fmt.Errorf("%w: unknown call-to-action type %q", ErrValidation, *c.CTAType)
		}
	}
	return nil
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

type CampaignPage struct {
	Campaigns  []models.Campaign `json:"campaigns"`
	Pagination Pagination        `json:"pagination"`
}

func (s *CampaignService) ListCampaigns(ctx context.Context, tenant models.Tenant, page, pageSize int, status *string) (*CampaignPage, error) {
	if status != nil {
		if _, ok := models.ValidCampaignTransitions[*status]; !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *status)
		}
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	stores, release, err := s.opener.Open(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", tenant.Slug, err)
	}
	defer release()

	campaigns, total, err := stores.Campaigns.List(ctx, repositories.CampaignFilter{
		Status: status,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}

	return &CampaignPage{
		Campaigns: campaigns,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalCount: total,
			TotalPages: (total + pageSize - 1) / pageSize,
		},
	}, nil
}

type CampaignDetail struct {
	Campaign    *models.Campaign          `json:"campaign"`
	Stats       models.CampaignStats      `json:"stats"`
	DeliveryLog []models.DeliveryLogEntry `json:"delivery_log"`
	History     []models.AuditLog         `json:"history"`
}

func (s *CampaignService) GetCampaignDetail(ctx context.Context, tenant models.Tenant, id uuid.UUID, logLimit, logOffset int) (*CampaignDetail, error) {
	stores, release, err := s.opener.Open(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", tenant.Slug, err)
	}
	defer release()

	c, err := stores.Campaigns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	entries, err := stores.Campaigns.DeliveryLog(ctx, id, logLimit, logOffset)
	if err != nil {
		return nil, err
	}
	stats, err := stores.Campaigns.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := stores.Audit.GetByEntity(ctx, "campaign", id, 50)
	if err != nil {
		s.log.Warn("campaign history unavailable", zap.String("campaign_id", id.String()), zap.Error(err))
	}

	if entries == nil {
		entries = []models.DeliveryLogEntry{}
	}
	if history == nil {
		history = []models.AuditLog{}
	}
	return &CampaignDetail{Campaign: c, Stats: stats, DeliveryLog: entries, History: history}, nil
}

type TestSendResult struct {
	Tokens       int `json:"tokens"`
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
	Deactivated  int `json:"deactivated"`
}

// SendTestNotification pushes straight to one user's devices without any
// campaign bookkeeping.
func (s *CampaignService) SendTestNotification(ctx context.Context, tenant models.Tenant, userID uuid.UUID, title, body string) (*TestSendResult, error) {
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if title == "" || body == "" {
		return nil, fmt.Errorf("%w: title and body are required", ErrValidation)
	}

	stores, release, err := s.opener.Open(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", tenant.Slug, err)
	}
	defer release()

	recipients, err := stores.Tokens.ListActiveForUsers(ctx, []uuid.UUID{userID})
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrNoTokens
	}

	tokens := make([]string, len(recipients))
	for i, r := range recipients {
		tokens[i] = r.Token
	}
	res := s.gateway.SendToMultipleTokens(ctx, tokens, push.Message{
		Notification: push.Notification{Title: title, Body: body},
		Data:         map[string]string{"type": "test"},
	})

	invalid := res.InvalidTokens()
	deactivateInvalid(ctx, stores, invalid, nil, s.log.With(zap.String("tenant", tenant.Slug)))

	return &TestSendResult{
		Tokens:       len(tokens),
		SuccessCount: res.SuccessCount,
		FailureCount: res.FailureCount,
		Deactivated:  len(invalid),
	}, nil
}
