package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is a local business (shop, restaurant, service provider) that
// publishes deals. Owned by a platform user with the vendor role.
type Vendor struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"` // e.g. restaurant, retail, services
	Address     string     `json:"address,omitempty"`
	City        string     `json:"city,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Website     string     `json:"website,omitempty"`
	LogoURL     string     `json:"logo_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}
