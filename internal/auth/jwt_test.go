package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWTRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateJWT("secret", userID, "acme", "admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != userID || claims.TenantSlug != "acme" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseJWTRejects(t *testing.T) {
	good, _ := GenerateJWT("secret", uuid.New(), "acme", "user", time.Hour)
	noTenant, _ := GenerateJWT("secret", uuid.New(), "", "user", time.Hour)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"garbage", "secret", "not-a-jwt"},
		{"missing tenant", "secret", noTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJWT(tt.secret, tt.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGenerateJWTDefaultExpiration(t *testing.T) {
	token, _ := GenerateJWT("secret", uuid.New(), "acme", "user", 0)
	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl < 23*time.Hour {
		t.Errorf("ttl = %v, want about 24h", ttl)
	}
}
