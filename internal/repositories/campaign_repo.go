package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/push-campaigns/backend/internal/models"
)

const campaignColumns = `
	id, tenant_id, title, body, page_title, page_description, redemption_code, rules,
	logo_path, banner_path, cta_enabled, cta_type, cta_target, cta_label,
	postal_code_prefix, radius_km, document_numbers, user_ids,
	scheduled_at, status, targeted_count, sent_count, failed_count, failure_reason,
	completed_at, created_by, created_at, updated_at`

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

func campaignArgs(c *models.Campaign) []any {
	return []any{
		c.ID, c.TenantID, c.Title, c.Body, c.PageTitle, c.PageDescription, c.RedemptionCode, c.Rules,
		c.LogoPath, c.BannerPath, c.CTAEnabled, c.CTAType, c.CTATarget, c.CTALabel,
		c.Targeting.PostalCodePrefix, c.Targeting.RadiusKm, c.Targeting.DocumentNumbers, c.Targeting.UserIDs,
		c.ScheduledAt, c.Status, c.TargetedCount, c.SentCount, c.FailedCount, c.FailureReason,
		c.CompletedAt, c.CreatedBy,
	}
}

func scanCampaign(row pgx.Row, c *models.Campaign) error {
	return row.Scan(
		&c.ID, &c.TenantID, &c.Title, &c.Body, &c.PageTitle, &c.PageDescription, &c.RedemptionCode, &c.Rules,
		&c.LogoPath, &c.BannerPath, &c.CTAEnabled, &c.CTAType, &c.CTATarget, &c.CTALabel,
		&c.Targeting.PostalCodePrefix, &c.Targeting.RadiusKm, &c.Targeting.DocumentNumbers, &c.Targeting.UserIDs,
		&c.ScheduledAt, &c.Status, &c.TargetedCount, &c.SentCount, &c.FailedCount, &c.FailureReason,
		&c.CompletedAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
}

const insertCampaign = `
	INSERT INTO campaigns (
		id, tenant_id, title, body, page_title, page_description, redemption_code, rules,
		logo_path, banner_path, cta_enabled, cta_type, cta_target, cta_label,
		postal_code_prefix, radius_km, document_numbers, user_ids,
		scheduled_at, status, targeted_count, sent_count, failed_count, failure_reason,
		completed_at, created_by
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		$19, $20, $21, $22, $23, $24, $25, $26)`

// Create persists a new campaign. The caller assigns the id.
func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return r.pool.QueryRow(ctx, insertCampaign+` RETURNING created_at, updated_at`,
		campaignArgs(c)...,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var c models.Campaign
	err := scanCampaign(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id), &c)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

type CampaignFilter struct {
	Status *string
	Limit  int
	Offset int
}

// List returns one page of campaigns, newest first, and the total match count.
func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, int, error) {
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM campaigns`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `SELECT ` + campaignColumns + ` FROM campaigns` + whereSQL +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := scanCampaign(rows, &c); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// ListDue returns scheduled campaigns whose time has come, oldest first.
func (r *CampaignRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC, created_at ASC
		LIMIT $3
	`, models.CampaignStatusScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := scanCampaign(rows, &c); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// Claim moves a campaign from scheduled to processing. It reports false when
// the campaign was no longer scheduled, e.g. another instance claimed it.
func (r *CampaignRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.CampaignStatusProcessing, id, models.CampaignStatusScheduled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Finalize writes the terminal status, counters and delivery log rows in one
// transaction. Campaigns from the immediate path are inserted here.
func (r *CampaignRepo) Finalize(ctx context.Context, c *models.Campaign, entries []models.DeliveryLogEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, insertCampaign+`
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			targeted_count = EXCLUDED.targeted_count,
			sent_count = EXCLUDED.sent_count,
			failed_count = EXCLUDED.failed_count,
			failure_reason = EXCLUDED.failure_reason,
			completed_at = EXCLUDED.completed_at,
			updated_at = now()
		RETURNING created_at, updated_at
	`, campaignArgs(c)...).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert campaign: %w", err)
	}

	if len(entries) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"delivery_log"},
			[]string{"id", "campaign_id", "user_id", "token_id", "status", "message_id", "error", "sent_at"},
			pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
				e := entries[i]
				return []any{e.ID, c.ID, e.UserID, e.TokenID, e.Status, e.MessageID, e.Error, e.SentAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy delivery log: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *CampaignRepo) DeliveryLog(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]models.DeliveryLogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, campaign_id, user_id, token_id, status, message_id, error, sent_at
		FROM delivery_log WHERE campaign_id = $1
		ORDER BY sent_at ASC, id ASC LIMIT $2 OFFSET $3
	`, campaignID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.DeliveryLogEntry
	for rows.Next() {
		var e models.DeliveryLogEntry
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.UserID, &e.TokenID, &e.Status, &e.MessageID, &e.Error, &e.SentAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *CampaignRepo) Stats(ctx context.Context, campaignID uuid.UUID) (models.CampaignStats, error) {
	var stats models.CampaignStats
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*) FROM delivery_log WHERE campaign_id = $1 GROUP BY status
	`, campaignID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		switch status {
		case models.DeliveryStatusSent:
			stats.Sent = n
		case models.DeliveryStatusFailed:
			stats.Failed = n
		}
	}
	return stats, rows.Err()
}
