package models

import "github.com/google/uuid"

// User standings
const (
	StandingGood      = "good"
	StandingSuspended = "suspended"
)

// User is the slice of the tenant's user table the audience resolver reads.
type User struct {
	ID             uuid.UUID `json:"id"`
	IsActive       bool      `json:"is_active"`
	Standing       string    `json:"standing"`
	PostalCode     *string   `json:"postal_code,omitempty"`
	DocumentNumber *string   `json:"document_number,omitempty"`
}

func (u User) IsEligible() bool {
	return u.IsActive && u.Standing == StandingGood
}
