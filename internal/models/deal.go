package models

import (
	"time"

	"github.com/google/uuid"
)

// Deal publication status.
const (
	DealStatusDraft     = "draft"
	DealStatusPublished = "published"
	DealStatusArchived  = "archived"
)

// Discount types.
const (
	DiscountPercent  = "percent"
	DiscountDollar   = "dollar"
	DiscountFreeItem = "free_item"
	DiscountBOGO     = "bogo"
)

// Redemption frequency policies for the one-tap flow.
const (
	FrequencyUnlimited = "unlimited"
	FrequencyOnce      = "once"
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyCustom    = "custom" // every CustomFrequencyDays days
)

// Deal is a vendor-published offer with optional validity window and
// redemption limits. Deals are soft-deleted, never removed.
type Deal struct {
	ID                    uuid.UUID  `json:"id"`
	VendorID              uuid.UUID  `json:"vendor_id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description,omitempty"`
	DiscountType          string     `json:"discount_type"`
	DiscountValue         int        `json:"discount_value,omitempty"` // percent, or cents for dollar discounts
	IsActive              bool       `json:"is_active"`
	Status                string     `json:"status"`
	StartsAt              *time.Time `json:"starts_at,omitempty"` // nil = no lower bound
	EndsAt                *time.Time `json:"ends_at,omitempty"`   // nil = no upper bound
	MaxRedemptionsPerUser int        `json:"max_redemptions_per_user"`
	MaxRedemptionsTotal   *int       `json:"max_redemptions_total,omitempty"` // nil = unbounded
	CooldownHours         *int       `json:"cooldown_hours,omitempty"`
	RedemptionFrequency   string     `json:"redemption_frequency"`
	CustomFrequencyDays   *int       `json:"custom_frequency_days,omitempty"`
	PhotoURL              string     `json:"photo_url,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	DeletedAt             *time.Time `json:"deleted_at,omitempty"`
}
