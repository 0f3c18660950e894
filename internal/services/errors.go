package services

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrEmptyAudience    = errors.New("campaign audience is empty")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrTokenNotFound    = errors.New("device token not found")
	ErrNoTokens         = errors.New("user has no active device tokens")
)
