// Package memstore is an in-memory tenant datastore with the same semantics
// as the Postgres repositories. It backs component tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/repositories"
)

type Store struct {
	mu        sync.Mutex
	users     []models.User
	campaigns map[uuid.UUID]models.Campaign
	tokens    []*models.DeviceToken
	logs      []models.DeliveryLogEntry
	audit     []models.AuditLog

	// FinalizeErr, when set, fails every Finalize call.
	FinalizeErr error
	// UsersErr, when set, fails every audience query.
	UsersErr error
	// HistoryErr, when set, fails every audit history read.
	HistoryErr error
}

func New() *Store {
	return &Store{campaigns: make(map[uuid.UUID]models.Campaign)}
}

func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

// Campaigns

func (s *Store) Create(_ context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.campaigns[c.ID] = cloneCampaign(*c)
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneCampaign(c)
	return &out, nil
}

func (s *Store) List(_ context.Context, f repositories.CampaignFilter) ([]models.Campaign, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.Campaign
	for _, c := range s.campaigns {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		all = append(all, cloneCampaign(c))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := min(f.Offset+limit, total)
	return all[f.Offset:end], total, nil
}

func (s *Store) ListDue(_ context.Context, now time.Time, limit int) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.Campaign
	for _, c := range s.campaigns {
		if c.Status == models.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			due = append(due, cloneCampaign(c))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(*due[j].ScheduledAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusScheduled {
		return false, nil
	}
	c.Status = models.CampaignStatusProcessing
	c.UpdatedAt = time.Now()
	s.campaigns[id] = c
	return true, nil
}

func (s *Store) Finalize(_ context.Context, c *models.Campaign, entries []models.DeliveryLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FinalizeErr != nil {
		return s.FinalizeErr
	}

	now := time.Now()
	if existing, ok := s.campaigns[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.campaigns[c.ID] = cloneCampaign(*c)
	for _, e := range entries {
		e.CampaignID = c.ID
		s.logs = append(s.logs, e)
	}
	return nil
}

func (s *Store) DeliveryLog(_ context.Context, campaignID uuid.UUID, limit, offset int) ([]models.DeliveryLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []models.DeliveryLogEntry
	for _, e := range s.logs {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (s *Store) Stats(_ context.Context, campaignID uuid.UUID) (models.CampaignStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.CampaignStats
	for _, e := range s.logs {
		if e.CampaignID != campaignID {
			continue
		}
		switch e.Status {
		case models.DeliveryStatusSent:
			stats.Sent++
		case models.DeliveryStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// Device tokens

func (s *Store) Register(_ context.Context, t *models.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, existing := range s.tokens {
		if existing.Token == t.Token {
			previous := existing.UserID
			existing.UserID = t.UserID
			existing.Platform = t.Platform
			existing.IsActive = true
			existing.UpdatedAt = now
			*t = *existing
			t.PreviousUserID = previous
			return nil
		}
	}
	t.ID = uuid.New()
	t.IsActive = true
	t.CreatedAt, t.UpdatedAt = now, now
	stored := *t
	s.tokens = append(s.tokens, &stored)
	return nil
}

func (s *Store) Deactivate(_ context.Context, userID uuid.UUID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.Token == token && t.UserID == userID {
			t.IsActive = false
			t.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListActiveForUsers(_ context.Context, userIDs []uuid.UUID) ([]models.RecipientToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	var out []models.RecipientToken
	for _, t := range s.tokens {
		if t.IsActive && wanted[t.UserID] {
			out = append(out, models.RecipientToken{TokenID: t.ID, UserID: t.UserID, Token: t.Token})
		}
	}
	return out, nil
}

func (s *Store) DeactivateMany(_ context.Context, tokens []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	var n int64
	for _, t := range s.tokens {
		if t.IsActive && set[t.Token] {
			t.IsActive = false
			t.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (s *Store) ListByUser(_ context.Context, userID uuid.UUID) ([]models.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DeviceToken
	for i := len(s.tokens) - 1; i >= 0; i-- {
		t := s.tokens[i]
		if t.UserID == userID && t.IsActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Tokens returns every stored token row, active or not.
func (s *Store) Tokens() []models.DeviceToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DeviceToken, len(s.tokens))
	for i, t := range s.tokens {
		out[i] = *t
	}
	return out
}

// Users

func (s *Store) EligibleByPostalPrefix(_ context.Context, prefix string) ([]uuid.UUID, error) {
	return s.eligible(func(u models.User) bool {
		return u.PostalCode != nil && strings.HasPrefix(*u.PostalCode, prefix)
	})
}

func (s *Store) EligibleByDocuments(_ context.Context, documents []string) ([]uuid.UUID, error) {
	set := make(map[string]bool, len(documents))
	for _, d := range documents {
		set[d] = true
	}
	return s.eligible(func(u models.User) bool {
		return u.DocumentNumber != nil && set[*u.DocumentNumber]
	})
}

func (s *Store) EligibleByIDs(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return s.eligible(func(u models.User) bool { return set[u.ID] })
}

func (s *Store) eligible(match func(models.User) bool) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UsersErr != nil {
		return nil, s.UsersErr
	}
	var ids []uuid.UUID
	for _, u := range s.users {
		if u.IsEligible() && match(u) {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// Audit

func (s *Store) Log(_ context.Context, entry models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) GetByEntity(_ context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HistoryErr != nil {
		return nil, s.HistoryErr
	}
	var out []models.AuditLog
	for _, l := range s.audit {
		if l.EntityType == entityType && l.EntityID != nil && *l.EntityID == entityID {
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneCampaign(c models.Campaign) models.Campaign {
	c.Targeting.DocumentNumbers = append([]string(nil), c.Targeting.DocumentNumbers...)
	c.Targeting.UserIDs = append([]string(nil), c.Targeting.UserIDs...)
	return c
}
