package models

import (
	"time"

	"github.com/google/uuid"
)

// Code-flow redemption statuses. A row is created issued and moves to exactly
// one of verified, expired or voided. Verified rows count against per-user and
// total limits permanently; expired and voided rows do not.
const (
	RedemptionIssued   = "issued"
	RedemptionVerified = "verified"
	RedemptionExpired  = "expired"
	RedemptionVoided   = "voided"
	// RedemptionRedeemed is the one-tap flow's terminal status. It never
	// mixes with the code-flow vocabulary above.
	RedemptionRedeemed = "redeemed"
)

// Redemption is one attempt to use a deal, via either the code-issuance or the
// one-tap protocol. VendorID is denormalized from the deal at creation and
// never changes.
type Redemption struct {
	ID         uuid.UUID  `json:"id"`
	DealID     uuid.UUID  `json:"deal_id"`
	VendorID   uuid.UUID  `json:"vendor_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Code       *string    `json:"code,omitempty"` // nil for one-tap redemptions
	Status     string     `json:"status"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	VoidedAt   *time.Time `json:"voided_at,omitempty"`
	VoidReason *string    `json:"void_reason,omitempty"`
}
