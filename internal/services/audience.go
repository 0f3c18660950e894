package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/models"
	"go.uber.org/zap"
)

// PostalPrefixLength is how many leading postal code digits a geolocation
// filter matches on.
const PostalPrefixLength = 5

// AudienceResolver turns targeting criteria into a deduplicated list of
// eligible user ids.
type AudienceResolver struct {
	log *zap.Logger
}

func NewAudienceResolver(log *zap.Logger) *AudienceResolver {
	return &AudienceResolver{log: log}
}

// Resolve evaluates each criterion independently and unions the results in
// first-seen order. The directory filters out inactive and suspended users.
func (r *AudienceResolver) Resolve(ctx context.Context, users UserDirectory, t models.Targeting) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var audience []uuid.UUID
	add := func(ids []uuid.UUID) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			audience = append(audience, id)
		}
	}

	if t.PostalCodePrefix != nil && *t.PostalCodePrefix != "" {
		prefix, err := NormalizePostalPrefix(*t.PostalCodePrefix)
		if err != nil {
			return nil, err
		}
		ids, err := users.EligibleByPostalPrefix(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("resolve postal prefix: %w", err)
		}
		add(ids)
	}

	if docs := normalizeDocuments(t.DocumentNumbers); len(docs) > 0 {
		ids, err := users.EligibleByDocuments(ctx, docs)
		if err != nil {
			return nil, fmt.Errorf("resolve documents: %w", err)
		}
		add(ids)
	}

	if len(t.UserIDs) > 0 {
		valid, invalid := ParseUserIDs(t.UserIDs)
		if len(invalid) > 0 {
			r.log.Warn("dropping malformed user ids from audience", zap.Strings("ids", invalid))
		}
		ids, err := users.EligibleByIDs(ctx, valid)
		if err != nil {
			return nil, fmt.Errorf("resolve user ids: %w", err)
		}
		add(ids)
	}

	return audience, nil
}

// NormalizePostalPrefix strips formatting and keeps the leading digits.
func NormalizePostalPrefix(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < PostalPrefixLength {
		return "", fmt.Errorf("%w: postal code prefix needs %d digits, got %q", ErrValidation, PostalPrefixLength, s)
	}
	return digits[:PostalPrefixLength], nil
}

// ParseUserIDs splits raw ids into well-formed uuids and the rejected inputs.
func ParseUserIDs(raw []string) ([]uuid.UUID, []string) {
	var valid []uuid.UUID
	var invalid []string
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			invalid = append(invalid, s)
			continue
		}
		valid = append(valid, id)
	}
	return valid, invalid
}

func normalizeDocuments(docs []string) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
