package redemptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/redeemlocal/backend/config"
	"github.com/redeemlocal/backend/internal/deals"
	"github.com/redeemlocal/backend/internal/models"
)

// Failure reasons beyond the deal lifecycle ones in the deals package.
const (
	ReasonLimitReached = "limit_reached"
	ReasonCooldown     = "cooldown"
	ReasonSoldOut      = "sold_out"
	ReasonExhausted    = "exhausted"
	ReasonWrongVendor  = "wrong_vendor"
	ReasonAlreadyUsed  = "already_used"
	ReasonVoided       = "voided"
	ReasonCodeExpired  = "code_expired"
	ReasonFrequency    = "frequency"
)

// DealStore is the deal read surface the service needs.
type DealStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
}

// RedemptionStore is the persistence surface for redemption rows. Implemented
// by Repository; tests substitute an in-memory fake.
type RedemptionStore interface {
	Create(ctx context.Context, red *models.Redemption) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Redemption, error)
	GetByCode(ctx context.Context, code string) (*models.Redemption, error)
	GetActiveIssued(ctx context.Context, userID, dealID uuid.UUID, now time.Time) (*models.Redemption, error)
	CountVerified(ctx context.Context, userID, dealID uuid.UUID) (int, error)
	CountVerifiedForDeal(ctx context.Context, dealID uuid.UUID) (int, error)
	LastVerified(ctx context.Context, userID, dealID uuid.UUID) (*models.Redemption, error)
	LastRedeemed(ctx context.Context, userID, dealID uuid.UUID) (*models.Redemption, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	ExpireOverdueIssued(ctx context.Context, userID, dealID uuid.UUID, now time.Time) error
	Verify(ctx context.Context, id uuid.UUID) (*models.Redemption, error)
	MarkExpired(ctx context.Context, id uuid.UUID) error
	Void(ctx context.Context, id uuid.UUID, reason string) (*models.Redemption, error)
}

// IssueResult is the outcome of a code issuance attempt. Message is written to
// render verbatim in the UI; Reason lets the transport layer pick a status
// code.
type IssueResult struct {
	Success    bool               `json:"success"`
	Reason     string             `json:"reason,omitempty"`
	Message    string             `json:"message"`
	Redemption *models.Redemption `json:"redemption,omitempty"`
	Code       string             `json:"code,omitempty"`
	ExpiresAt  *time.Time         `json:"expires_at,omitempty"`
}

// VerifyResult is the outcome of a code verification attempt.
type VerifyResult struct {
	Success    bool               `json:"success"`
	Reason     string             `json:"reason,omitempty"`
	Message    string             `json:"message"`
	Redemption *models.Redemption `json:"redemption,omitempty"`
}

// RedeemResult is the outcome of a one-tap redemption attempt.
type RedeemResult struct {
	Success    bool               `json:"success"`
	Reason     string             `json:"reason,omitempty"`
	Message    string             `json:"message"`
	Redemption *models.Redemption `json:"redemption,omitempty"`
}

// Service implements the issuance policy, verification and one-tap redemption
// protocols over a deal and redemption store. All business failures come back
// as structured results; returned errors mean infrastructure trouble only.
type Service struct {
	deals       DealStore
	store       RedemptionStore
	claimWindow time.Duration
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a redemption service.
func NewService(dealStore DealStore, store RedemptionStore, cfg config.RedemptionConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	claimWindow := time.Duration(cfg.ClaimWindowMinutes) * time.Minute
	if claimWindow <= 0 {
		claimWindow = 10 * time.Minute
	}
	maxAttempts := cfg.CodeMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Service{
		deals:       dealStore,
		store:       store,
		claimWindow: claimWindow,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// IssueCode mints a time-boxed code for a user to present to a vendor. Checks
// run in order and short-circuit on the first failure so the UI gets the most
// specific reason. vendorID is the client's claim of which vendor the deal
// belongs to; uuid.Nil skips that check.
//
// Repeated calls before expiry are idempotent: the existing live code comes
// back instead of a second one.
func (s *Service) IssueCode(ctx context.Context, dealID, vendorID, userID uuid.UUID) (*IssueResult, error) {
	now := s.now()

	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	if deal != nil && vendorID != uuid.Nil && deal.VendorID != vendorID {
		deal = nil // a code request against the wrong vendor is a miss
	}
	if v := deals.CheckRedeemable(deal, now); v != nil {
		return &IssueResult{Reason: v.Reason, Message: v.Message}, nil
	}

	// A live code already out? Hand it back; refreshing the deal page must
	// not mint a stack of codes.
	if active, err := s.store.GetActiveIssued(ctx, userID, dealID, now); err != nil {
		return nil, fmt.Errorf("get active redemption: %w", err)
	} else if active != nil {
		return &IssueResult{
			Success:    true,
			Message:    "You already have an active code for this deal.",
			Redemption: active,
			Code:       derefCode(active),
			ExpiresAt:  active.ExpiresAt,
		}, nil
	}

	// A lapsed code still sits in the issued slot until something touches it.
	// Flip it here so the unique active-issue constraint frees up for the
	// fresh code below.
	if err := s.store.ExpireOverdueIssued(ctx, userID, dealID, now); err != nil {
		return nil, fmt.Errorf("expire overdue: %w", err)
	}

	used, err := s.store.CountVerified(ctx, userID, dealID)
	if err != nil {
		return nil, fmt.Errorf("count verified: %w", err)
	}
	if used >= deal.MaxRedemptionsPerUser {
		return &IssueResult{
			Reason:  ReasonLimitReached,
			Message: "You've already redeemed this deal the maximum number of times.",
		}, nil
	}

	if deal.CooldownHours != nil && *deal.CooldownHours > 0 {
		last, err := s.store.LastVerified(ctx, userID, dealID)
		if err != nil {
			return nil, fmt.Errorf("last verified: %w", err)
		}
		if last != nil && last.VerifiedAt != nil {
			readyAt := last.VerifiedAt.Add(time.Duration(*deal.CooldownHours) * time.Hour)
			if now.Before(readyAt) {
				return &IssueResult{
					Reason:  ReasonCooldown,
					Message: fmt.Sprintf("You can redeem this deal again in %s.", humanHours(readyAt.Sub(now))),
				}, nil
			}
		}
	}

	if deal.MaxRedemptionsTotal != nil {
		total, err := s.store.CountVerifiedForDeal(ctx, dealID)
		if err != nil {
			return nil, fmt.Errorf("count verified for deal: %w", err)
		}
		if total >= *deal.MaxRedemptionsTotal {
			return &IssueResult{
				Reason:  ReasonSoldOut,
				Message: "This deal is fully redeemed.",
			}, nil
		}
	}

	expiresAt := now.Add(s.claimWindow)
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		inUse, err := s.store.CodeInUse(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("code collision check: %w", err)
		}
		if inUse {
			continue
		}

		red := &models.Redemption{
			DealID:    dealID,
			VendorID:  deal.VendorID,
			UserID:    userID,
			Code:      &code,
			Status:    models.RedemptionIssued,
			IssuedAt:  now,
			ExpiresAt: &expiresAt,
		}
		err = s.store.Create(ctx, red)
		switch {
		case err == nil:
			return &IssueResult{
				Success:    true,
				Message:    "Show this code to the vendor within the claim window.",
				Redemption: red,
				Code:       code,
				ExpiresAt:  &expiresAt,
			}, nil
		case IsActiveIssueConflict(err):
			// A concurrent request inserted first; return its code.
			active, aerr := s.store.GetActiveIssued(ctx, userID, dealID, now)
			if aerr != nil {
				return nil, fmt.Errorf("get active after conflict: %w", aerr)
			}
			if active == nil {
				// The winner expired or verified between the conflict and
				// our re-read. Vanishingly rare; let the client retry.
				return &IssueResult{Reason: ReasonExhausted, Message: "Could not issue a code. Please try again."}, nil
			}
			return &IssueResult{
				Success:    true,
				Message:    "You already have an active code for this deal.",
				Redemption: active,
				Code:       derefCode(active),
				ExpiresAt:  active.ExpiresAt,
			}, nil
		case IsCodeConflict(err):
			continue // lost the code-uniqueness race, regenerate
		default:
			return nil, fmt.Errorf("insert redemption: %w", err)
		}
	}

	s.logger.Warn("code generation exhausted",
		zap.String("deal_id", dealID.String()),
		zap.Int("attempts", s.maxAttempts))
	return &IssueResult{Reason: ReasonExhausted, Message: "Could not issue a code. Please try again."}, nil
}

// VerifyCode is the vendor-side half of the protocol: look up the code, check
// ownership and state, then flip issued to verified with a conditional update.
// Expiry is enforced lazily here; there is no background sweep.
func (s *Service) VerifyCode(ctx context.Context, code string, vendorID uuid.UUID) (*VerifyResult, error) {
	now := s.now()
	code = strings.ToUpper(strings.TrimSpace(code))

	red, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get by code: %w", err)
	}
	if red == nil {
		return &VerifyResult{Reason: deals.ReasonNotFound, Message: "Code not found."}, nil
	}

	// Ownership before state: a guessed code leaks nothing about its status
	// to the wrong vendor.
	if red.VendorID != vendorID {
		return &VerifyResult{Reason: ReasonWrongVendor, Message: "This code was issued for a different vendor."}, nil
	}

	switch red.Status {
	case models.RedemptionVerified, models.RedemptionRedeemed:
		return &VerifyResult{Reason: ReasonAlreadyUsed, Message: "This code has already been used.", Redemption: red}, nil
	case models.RedemptionVoided:
		return &VerifyResult{Reason: ReasonVoided, Message: "This code has been voided.", Redemption: red}, nil
	case models.RedemptionExpired:
		return &VerifyResult{Reason: ReasonCodeExpired, Message: "This code has expired.", Redemption: red}, nil
	}

	if red.ExpiresAt != nil && now.After(*red.ExpiresAt) {
		if err := s.store.MarkExpired(ctx, red.ID); err != nil {
			return nil, fmt.Errorf("mark expired: %w", err)
		}
		red.Status = models.RedemptionExpired
		return &VerifyResult{Reason: ReasonCodeExpired, Message: "This code has expired.", Redemption: red}, nil
	}

	verified, err := s.store.Verify(ctx, red.ID)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if verified == nil {
		// Zero rows matched the issued predicate: another verification won.
		return &VerifyResult{Reason: ReasonAlreadyUsed, Message: "This code has already been used."}, nil
	}
	return &VerifyResult{Success: true, Message: "Code verified. Redemption complete.", Redemption: verified}, nil
}

// RedeemDeal is the one-tap path: it records a redeemed row directly, without
// the issue/verify handshake, and enforces the deal's redemption frequency
// instead of the cooldown/limit combination.
func (s *Service) RedeemDeal(ctx context.Context, dealID, userID uuid.UUID) (*RedeemResult, error) {
	now := s.now()

	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	if v := deals.CheckRedeemable(deal, now); v != nil {
		return &RedeemResult{Reason: v.Reason, Message: v.Message}, nil
	}

	if deal.RedemptionFrequency != models.FrequencyUnlimited {
		last, err := s.store.LastRedeemed(ctx, userID, dealID)
		if err != nil {
			return nil, fmt.Errorf("last redeemed: %w", err)
		}
		if last != nil {
			if deal.RedemptionFrequency == models.FrequencyOnce {
				return &RedeemResult{Reason: ReasonFrequency, Message: "You've already redeemed this deal."}, nil
			}
			window := frequencyWindow(deal)
			if window > 0 {
				readyAt := last.IssuedAt.Add(window)
				if now.Before(readyAt) {
					return &RedeemResult{
						Reason:  ReasonFrequency,
						Message: fmt.Sprintf("You can redeem this deal again in %s.", humanDays(readyAt.Sub(now))),
					}, nil
				}
			}
		}
	}

	red := &models.Redemption{
		DealID:   dealID,
		VendorID: deal.VendorID,
		UserID:   userID,
		Status:   models.RedemptionRedeemed,
		IssuedAt: now,
	}
	if err := s.store.Create(ctx, red); err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	return &RedeemResult{Success: true, Message: "Deal redeemed.", Redemption: red}, nil
}

// VoidRedemption cancels an issued or verified redemption. Returns nil if the
// redemption is absent or already terminal.
func (s *Service) VoidRedemption(ctx context.Context, id uuid.UUID, reason string) (*models.Redemption, error) {
	red, err := s.store.Void(ctx, id, reason)
	if err != nil {
		return nil, fmt.Errorf("void: %w", err)
	}
	if red != nil {
		s.logger.Info("redemption voided",
			zap.String("redemption_id", red.ID.String()),
			zap.String("reason", reason))
	}
	return red, nil
}

// ActiveCode returns the user's live issued code for a deal, or nil.
func (s *Service) ActiveCode(ctx context.Context, userID, dealID uuid.UUID) (*models.Redemption, error) {
	return s.store.GetActiveIssued(ctx, userID, dealID, s.now())
}

// frequencyWindow translates a windowed frequency into a duration. Zero means
// no window applies.
func frequencyWindow(deal *models.Deal) time.Duration {
	switch deal.RedemptionFrequency {
	case models.FrequencyWeekly:
		return 7 * 24 * time.Hour
	case models.FrequencyMonthly:
		return 30 * 24 * time.Hour
	case models.FrequencyCustom:
		if deal.CustomFrequencyDays != nil && *deal.CustomFrequencyDays > 0 {
			return time.Duration(*deal.CustomFrequencyDays) * 24 * time.Hour
		}
	}
	return 0
}

// humanHours renders a remaining duration as whole hours, rounded up, for
// user-facing cooldown messages.
func humanHours(d time.Duration) string {
	hours := int(d.Hours())
	if d > time.Duration(hours)*time.Hour {
		hours++
	}
	if hours <= 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}

// humanDays renders a remaining duration as whole days, rounded up.
func humanDays(d time.Duration) string {
	days := int(d.Hours() / 24)
	if d > time.Duration(days)*24*time.Hour {
		days++
	}
	if days <= 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func derefCode(red *models.Redemption) string {
	if red.Code == nil {
		return ""
	}
	return *red.Code
}
