package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/push-campaigns/backend/internal/models"
)

// UserRepo reads the tenant's users table. Only eligible users are returned:
// active and in good standing.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) EligibleByPostalPrefix(ctx context.Context, prefix string) ([]uuid.UUID, error) {
	return r.queryIDs(ctx, `
		SELECT id FROM users
		WHERE is_active AND standing = $1 AND postal_code LIKE $2 || '%'
		ORDER BY id
	`, models.StandingGood, prefix)
}

func (r *UserRepo) EligibleByDocuments(ctx context.Context, documents []string) ([]uuid.UUID, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	return r.queryIDs(ctx, `
		SELECT id FROM users
		WHERE is_active AND standing = $1 AND document_number = ANY($2)
		ORDER BY id
	`, models.StandingGood, documents)
}

func (r *UserRepo) EligibleByIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryIDs(ctx, `
		SELECT id FROM users
		WHERE is_active AND standing = $1 AND id = ANY($2::uuid[])
		ORDER BY id
	`, models.StandingGood, uuidStrings(ids))
}

func (r *UserRepo) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
