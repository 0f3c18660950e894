package models

import (
	"testing"
	"time"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{CampaignStatusScheduled, CampaignStatusProcessing, true},
		{CampaignStatusProcessing, CampaignStatusCompleted, true},
		{CampaignStatusProcessing, CampaignStatusFailed, true},

		{CampaignStatusScheduled, CampaignStatusCompleted, false},
		{CampaignStatusScheduled, CampaignStatusFailed, false},
		{CampaignStatusProcessing, CampaignStatusScheduled, false},
		{CampaignStatusCompleted, CampaignStatusProcessing, false},
		{CampaignStatusFailed, CampaignStatusScheduled, false},
		{CampaignStatusCompleted, CampaignStatusFailed, false},
		{"nonexistent", CampaignStatusProcessing, false},
		{CampaignStatusScheduled, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		CampaignStatusScheduled, CampaignStatusProcessing,
		CampaignStatusCompleted, CampaignStatusFailed,
	}

	for _, status := range allStatuses {
		if _, ok := ValidCampaignTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidCampaignTransitions map", status)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for status, transitions := range ValidCampaignTransitions {
		if IsTerminalStatus(status) && len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
		if !IsTerminalStatus(status) && len(transitions) == 0 {
			t.Errorf("non-terminal status %q has no way out", status)
		}
	}
}

func TestCampaignIsDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name        string
		scheduledAt *time.Time
		want        bool
	}{
		{"no schedule", nil, true},
		{"past", &past, true},
		{"exactly now", &now, true},
		{"future", &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Campaign{ScheduledAt: tt.scheduledAt}
			if got := c.IsDue(now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTargetingIsEmpty(t *testing.T) {
	empty := ""
	prefix := "01310"

	tests := []struct {
		name string
		t    Targeting
		want bool
	}{
		{"zero value", Targeting{}, true},
		{"blank prefix", Targeting{PostalCodePrefix: &empty}, true},
		{"prefix", Targeting{PostalCodePrefix: &prefix}, false},
		{"documents", Targeting{DocumentNumbers: []string{"123"}}, false},
		{"user ids", Targeting{UserIDs: []string{"x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.t.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}
