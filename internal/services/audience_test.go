package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/push-campaigns/backend/internal/memstore"
	"github.com/push-campaigns/backend/internal/models"
	"go.uber.org/zap"
)

func TestResolveDeduplicatesAcrossCriteria(t *testing.T) {
	f := newFixture(&codeProvider{})
	all := f.addUser("01310-100", "111", true, models.StandingGood)
	postalOnly := f.addUser("01310-900", "", true, models.StandingGood)
	docOnly := f.addUser("20000-000", "222", true, models.StandingGood)
	suspended := f.addUser("01310-555", "333", true, models.StandingSuspended)
	inactive := f.addUser("01310-777", "", false, models.StandingGood)

	targeting := models.Targeting{
		PostalCodePrefix: strPtr("01310"),
		DocumentNumbers:  []string{"111", "222", "333"},
		UserIDs:          []string{all.String(), suspended.String(), inactive.String()},
	}

	got, err := NewAudienceResolver(zap.NewNop()).Resolve(context.Background(), f.store, targeting)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := map[uuid.UUID]bool{all: true, postalOnly: true, docOnly: true}
	if len(got) != len(want) {
		t.Fatalf("audience = %v, want %d users", got, len(want))
	}
	for _, id := range got {
		if !want[id] {
			t.Errorf("unexpected user %s in audience", id)
		}
		delete(want, id)
	}
}

func TestResolveCriteria(t *testing.T) {
	f := newFixture(&codeProvider{})
	a := f.addUser("04567-000", "DOC-1", true, models.StandingGood)
	b := f.addUser("04568-000", "DOC-2", true, models.StandingGood)

	tests := []struct {
		name      string
		targeting models.Targeting
		want      int
	}{
		{"no criteria", models.Targeting{}, 0},
		{"prefix matches first five digits", models.Targeting{PostalCodePrefix: strPtr("04567")}, 1},
		{"formatted prefix", models.Targeting{PostalCodePrefix: strPtr("0456-7")}, 1},
		{"documents exact", models.Targeting{DocumentNumbers: []string{"DOC-1", " DOC-2 ", "DOC-3"}}, 2},
		{"document case matters", models.Targeting{DocumentNumbers: []string{"doc-1"}}, 0},
		{"explicit ids with malformed entry", models.Targeting{UserIDs: []string{a.String(), "not-a-uuid", b.String()}}, 2},
		{"union without duplicates", models.Targeting{
			PostalCodePrefix: strPtr("04567"),
			UserIDs:          []string{a.String(), b.String()},
		}, 2},
	}

	r := NewAudienceResolver(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), f.store, tt.targeting)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("audience size = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestResolvePropagatesDirectoryErrors(t *testing.T) {
	st := memstore.New()
	st.UsersErr = errors.New("connection refused")

	_, err := NewAudienceResolver(zap.NewNop()).Resolve(context.Background(), st, models.Targeting{
		PostalCodePrefix: strPtr("01310"),
	})
	if err == nil {
		t.Fatal("expected directory error")
	}
}

func TestNormalizePostalPrefix(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"01310", "01310", false},
		{"01310-100", "01310", false},
		{" 01 310 ", "01310", false},
		{"0131", "", true},
		{"abcde", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePostalPrefix(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("NormalizePostalPrefix(%q) error = %v, want ErrValidation", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("NormalizePostalPrefix(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
			}
		})
	}
}
