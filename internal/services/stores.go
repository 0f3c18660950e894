package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/repositories"
)

type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	Finalize(ctx context.Context, c *models.Campaign, entries []models.DeliveryLogEntry) error
	DeliveryLog(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]models.DeliveryLogEntry, error)
	Stats(ctx context.Context, campaignID uuid.UUID) (models.CampaignStats, error)
}

type TokenStore interface {
	Register(ctx context.Context, t *models.DeviceToken) error
	Deactivate(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	ListActiveForUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.RecipientToken, error)
	DeactivateMany(ctx context.Context, tokens []string) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeviceToken, error)
}

type UserDirectory interface {
	EligibleByPostalPrefix(ctx context.Context, prefix string) ([]uuid.UUID, error)
	EligibleByDocuments(ctx context.Context, documents []string) ([]uuid.UUID, error)
	EligibleByIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error)
}

// Stores is one tenant's data access.
type Stores struct {
	Campaigns CampaignStore
	Tokens    TokenStore
	Users     UserDirectory
	Audit     AuditStore
}

func StoresFromRepos(r repositories.TenantRepos) Stores {
	return Stores{Campaigns: r.Campaigns, Tokens: r.Tokens, Users: r.Users, Audit: r.Audit}
}

// StoreOpener hands out a tenant's stores. release must be called when the
// caller is done with them.
type StoreOpener interface {
	Open(ctx context.Context, tenant models.Tenant) (stores Stores, release func(), err error)
}

type StoreOpenerFunc func(ctx context.Context, tenant models.Tenant) (Stores, func(), error)

func (f StoreOpenerFunc) Open(ctx context.Context, tenant models.Tenant) (Stores, func(), error) {
	return f(ctx, tenant)
}
