package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/push-campaigns/backend/internal/models"
)

type DeviceTokenRepo struct {
	pool *pgxpool.Pool
}

func NewDeviceTokenRepo(pool *pgxpool.Pool) *DeviceTokenRepo {
	return &DeviceTokenRepo{pool: pool}
}

// Register inserts a token or hands an existing one to t.UserID and reactivates it.
// t.PreviousUserID receives the owner before the call, if any.
func (r *DeviceTokenRepo) Register(ctx context.Context, t *models.DeviceToken) error {
	var previous *uuid.UUID
	err := r.pool.QueryRow(ctx, `
		WITH prev AS (
			SELECT user_id FROM device_tokens WHERE token = $2
		)
		INSERT INTO device_tokens (user_id, token, platform, is_active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			is_active = true,
			updated_at = now()
		RETURNING id, is_active, created_at, updated_at, (SELECT user_id FROM prev)
	`, t.UserID, t.Token, t.Platform).Scan(&t.ID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt, &previous)
	if err != nil {
		return err
	}
	t.PreviousUserID = uuid.Nil
	if previous != nil {
		t.PreviousUserID = *previous
	}
	return nil
}

// Deactivate soft-deletes a token owned by userID. It reports false when the
// user does not own the token.
func (r *DeviceTokenRepo) Deactivate(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE device_tokens SET is_active = false, updated_at = now()
		WHERE token = $1 AND user_id = $2
	`, token, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *DeviceTokenRepo) ListActiveForUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.RecipientToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, token FROM device_tokens
		WHERE is_active AND user_id = ANY($1::uuid[])
		ORDER BY created_at ASC, id ASC
	`, uuidStrings(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.RecipientToken
	for rows.Next() {
		var t models.RecipientToken
		if err := rows.Scan(&t.TokenID, &t.UserID, &t.Token); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *DeviceTokenRepo) DeactivateMany(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE device_tokens SET is_active = false, updated_at = now()
		WHERE is_active AND token = ANY($1)
	`, tokens)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *DeviceTokenRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeviceToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, token, platform, is_active, created_at, updated_at
		FROM device_tokens WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.DeviceToken
	for rows.Next() {
		var t models.DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
