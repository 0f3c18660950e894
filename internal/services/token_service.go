package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/models"
	"go.uber.org/zap"
)

// maxTokenLength guards the unique index; FCM tokens are well under it.
const maxTokenLength = 4096

type TokenService struct {
	opener StoreOpener
	log    *zap.Logger
}

func NewTokenService(opener StoreOpener, log *zap.Logger) *TokenService {
	return &TokenService{opener: opener, log: log}
}

// Register records token for userID. A token already known under another
// user changes owner instead of failing.
func (s *TokenService) Register(ctx context.Context, tenant models.Tenant, userID uuid.UUID, token, platform string) (*models.DeviceTokenView, error) {
	token = strings.TrimSpace(token)
	platform = strings.ToLower(strings.TrimSpace(platform))
	if token == "" || len(token) > maxTokenLength {
		return nil, fmt.Errorf("%w: token is required", ErrValidation)
	}
	if !models.IsValidPlatform(platform) {
		return nil, fmt.Errorf("%w: unknown platform %q", ErrValidation, platform)
	}

	stores, release, err := s.opener.Open(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", tenant.Slug, err)
	}
	defer release()

	t := &models.DeviceToken{UserID: userID, Token: token, Platform: platform}
	if err := stores.Tokens.Register(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info("device token registered",
		zap.String("tenant", tenant.Slug),
		zap.String("user_id", userID.String()),
		zap.String("platform", platform),
	)
	view := t.View()
	return &view, nil
}

// Remove deactivates one of userID's own tokens.
func (s *TokenService) Remove(ctx context.Context, tenant models.Tenant, userID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}

	stores, release, err := s.opener.Open(ctx, tenant)
	if err != nil {
		return fmt.Errorf("open tenant %s: %w", tenant.Slug, err)
	}
	defer release()

	ok, err := stores.Tokens.Deactivate(ctx, userID, token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenNotFound
	}
	return nil
}

// List returns the user's active devices without raw token values.
func (s *TokenService) List(ctx context.Context, tenant models.Tenant, userID uuid.UUID) ([]models.DeviceTokenView, error) {
	stores, release, err := s.opener.Open(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", tenant.Slug, err)
	}
	defer release()

	tokens, err := stores.Tokens.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]models.DeviceTokenView, len(tokens))
	for i, t := range tokens {
		views[i] = t.View()
	}
	return views, nil
}
