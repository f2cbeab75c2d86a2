package deals

import (
	"time"

	"github.com/redeemlocal/backend/internal/models"
)

// Lifecycle violation reasons, carried on redemption results so handlers can
// pick status codes. Messages are written to render verbatim in the UI.
const (
	ReasonNotFound    = "not_found"
	ReasonInactive    = "inactive"
	ReasonNotStarted  = "not_started"
	ReasonDealExpired = "deal_expired"
)

// LifecycleViolation describes why a deal cannot be redeemed right now.
type LifecycleViolation struct {
	Reason  string
	Message string
}

// CheckRedeemable validates that a deal exists, is active and published, and
// that now falls inside its optional [starts_at, ends_at] window. Returns nil
// when the deal can be redeemed. Both the code-issuance and one-tap flows go
// through this check.
func CheckRedeemable(d *models.Deal, now time.Time) *LifecycleViolation {
	if d == nil || d.DeletedAt != nil {
		return &LifecycleViolation{Reason: ReasonNotFound, Message: "This deal is no longer available."}
	}
	if !d.IsActive || d.Status != models.DealStatusPublished {
		return &LifecycleViolation{Reason: ReasonInactive, Message: "This deal is no longer active."}
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return &LifecycleViolation{Reason: ReasonNotStarted, Message: "This deal hasn't started yet."}
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return &LifecycleViolation{Reason: ReasonDealExpired, Message: "This deal has expired."}
	}
	return nil
}
