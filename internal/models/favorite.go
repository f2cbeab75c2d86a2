package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite links a user to a saved deal.
type Favorite struct {
	UserID    uuid.UUID `json:"user_id"`
	DealID    uuid.UUID `json:"deal_id"`
	CreatedAt time.Time `json:"created_at"`
}
