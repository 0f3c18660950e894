package repositories

import "github.com/jackc/pgx/v5/pgxpool"

// TenantRepos groups the repositories bound to one tenant database.
type TenantRepos struct {
	Campaigns *CampaignRepo
	Tokens    *DeviceTokenRepo
	Users     *UserRepo
	Audit     *AuditRepo
}

func NewTenantRepos(pool *pgxpool.Pool) TenantRepos {
	return TenantRepos{
		Campaigns: NewCampaignRepo(pool),
		Tokens:    NewDeviceTokenRepo(pool),
		Users:     NewUserRepo(pool),
		Audit:     NewAuditRepo(pool),
	}
}
