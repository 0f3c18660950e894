package models

import "github.com/google/uuid"

// Tenant statuses
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

type Tenant struct {
	ID     uuid.UUID `json:"id" yaml:"id"`
	Slug   string    `json:"slug" yaml:"slug"`
	Status string    `json:"status" yaml:"status"`
	DSN    string    `json:"-" yaml:"dsn"`
}
