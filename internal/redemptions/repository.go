package redemptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redeemlocal/backend/internal/models"
)

const redemptionColumns = `id, deal_id, vendor_id, user_id, code, status,
	issued_at, expires_at, verified_at, voided_at, void_reason`

// Names of the partial unique indexes guarding issuance. Referenced when
// classifying constraint violations.
const (
	constraintActiveIssue = "uq_redemptions_active_issue"
	constraintLiveCode    = "uq_redemptions_live_code"
)

// Repository is the durable record of every issued/verified/voided/expired
// code, one row per attempt.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a redemption repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRedemption(row pgx.Row) (*models.Redemption, error) {
	var r models.Redemption
	err := row.Scan(&r.ID, &r.DealID, &r.VendorID, &r.UserID, &r.Code, &r.Status,
		&r.IssuedAt, &r.ExpiresAt, &r.VerifiedAt, &r.VoidedAt, &r.VoidReason)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a redemption row. The caller sets status, code and expiry.
func (r *Repository) Create(ctx context.Context, red *models.Redemption) error {
	const q = `INSERT INTO redemptions (id, deal_id, vendor_id, user_id, code, status, issued_at, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	return r.pool.QueryRow(ctx, q, red.DealID, red.VendorID, red.UserID, red.Code, red.Status, red.IssuedAt, red.ExpiresAt).
		Scan(&red.ID)
}

// GetByID returns a redemption by ID, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Redemption, error) {
	red, err := scanRedemption(r.pool.QueryRow(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return red, err
}

// GetByCode returns a redemption by code. The lookup is global, not scoped to
// a deal; a vendor types only the code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Redemption, error) {
	red, err := scanRedemption(r.pool.QueryRow(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions WHERE code = $1 ORDER BY issued_at DESC LIMIT 1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return red, err
}

// GetActiveIssued returns the user's live issued code for a deal, if one
// exists that has not passed its expiry. There is no background sweep; read
// paths re-check expires_at themselves.
func (r *Repository) GetActiveIssued(ctx context.Context, userID, dealID uuid.UUID, now time.Time) (*models.Redemption, error) {
	const q = `SELECT ` + redemptionColumns + ` FROM redemptions
		WHERE user_id = $1 AND deal_id = $2 AND status = 'issued' AND expires_at > $3
		ORDER BY issued_at DESC LIMIT 1`
	red, err := scanRedemption(r.pool.QueryRow(ctx, q, userID, dealID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return red, err
}

// CountVerified returns the user's verified redemption count for a deal.
// Verified rows count against limits permanently; expired and voided do not.
func (r *Repository) CountVerified(ctx context.Context, userID, dealID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM redemptions WHERE user_id = $1 AND deal_id = $2 AND status = 'verified'`
	var n int
	err := r.pool.QueryRow(ctx, q, userID, dealID).Scan(&n)
	return n, err
}

// CountVerifiedForDeal returns the deal's total verified redemption count.
func (r *Repository) CountVerifiedForDeal(ctx context.Context, dealID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM redemptions WHERE deal_id = $1 AND status = 'verified'`
	var n int
	err := r.pool.QueryRow(ctx, q, dealID).Scan(&n)
	return n, err
}

// LastVerified returns the user's most recent verified redemption for a deal,
// or nil. Drives the cooldown check.
func (r *Repository) LastVerified(ctx context.Context, userID, dealID uuid.UUID) (*models.Redemption, error) {
	const q = `SELECT ` + redemptionColumns + ` FROM redemptions
		WHERE user_id = $1 AND deal_id = $2 AND status = 'verified'
		ORDER BY verified_at DESC LIMIT 1`
	red, err := scanRedemption(r.pool.QueryRow(ctx, q, userID, dealID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return red, err
}

// LastRedeemed returns the user's most recent one-tap redemption for a deal,
// or nil. Drives the frequency policy; code-flow rows never mix in.
func (r *Repository) LastRedeemed(ctx context.Context, userID, dealID uuid.UUID) (*models.Redemption, error) {
	const q = `SELECT ` + redemptionColumns + ` FROM redemptions
		WHERE user_id = $1 AND deal_id = $2 AND status = 'redeemed'
		ORDER BY issued_at DESC LIMIT 1`
	red, err := scanRedemption(r.pool.QueryRow(ctx, q, userID, dealID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return red, err
}

// CodeInUse reports whether a code exists in non-void/non-expired history.
// Expired and voided codes free the code for reuse.
func (r *Repository) CodeInUse(ctx context.Context, code string) (bool, error) {
	const q = `SELECT 1 FROM redemptions WHERE code = $1 AND status IN ('issued', 'verified', 'redeemed') LIMIT 1`
	var exists int
	err := r.pool.QueryRow(ctx, q, code).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExpireOverdueIssued flips a user's overdue issued rows for a deal to
// expired. Issuance calls this before inserting so a lapsed code does not
// hold the active-issue slot.
func (r *Repository) ExpireOverdueIssued(ctx context.Context, userID, dealID uuid.UUID, now time.Time) error {
	const q = `UPDATE redemptions SET status = 'expired'
		WHERE user_id = $1 AND deal_id = $2 AND status = 'issued' AND expires_at <= $3`
	_, err := r.pool.Exec(ctx, q, userID, dealID, now)
	return err
}

// Verify atomically flips an issued redemption to verified. The WHERE status
// predicate makes this a compare-and-swap in a single statement: under
// concurrent verification exactly one caller gets the row back, the rest get
// nil. This is the sole concurrency guard; no application lock is taken.
func (r *Repository) Verify(ctx context.Context, id uuid.UUID) (*models.Redemption, error) {
	const q = `UPDATE redemptions SET status = 'verified', verified_at = NOW()
		WHERE id = $1 AND status = 'issued'
		RETURNING ` + redemptionColumns
	red, err := scanRedemption(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return red, err
}

// MarkExpired lazily transitions an overdue issued row to expired. Guarded on
// status so a racing verification is never overwritten.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE redemptions SET status = 'expired' WHERE id = $1 AND status = 'issued'`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// Void cancels an issued or verified redemption, recording the reason.
// Returns nil if the redemption is absent or already terminal.
func (r *Repository) Void(ctx context.Context, id uuid.UUID, reason string) (*models.Redemption, error) {
	const q = `UPDATE redemptions SET status = 'voided', voided_at = NOW(), void_reason = NULLIF($2,'')
		WHERE id = $1 AND status IN ('issued', 'verified')
		RETURNING ` + redemptionColumns
	red, err := scanRedemption(r.pool.QueryRow(ctx, q, id, reason))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return red, err
}

// ListByDeal returns all redemptions for a deal, newest first, for vendor
// reporting.
func (r *Repository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.Redemption, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions WHERE deal_id = $1 ORDER BY issued_at DESC`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Redemption
	for rows.Next() {
		red, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *red)
	}
	return list, rows.Err()
}

// ListByUser returns all of a user's redemptions, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Redemption, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions WHERE user_id = $1 ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Redemption
	for rows.Next() {
		red, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *red)
	}
	return list, rows.Err()
}

// isUniqueViolation reports whether err is a violation of the named unique
// constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

// IsActiveIssueConflict reports whether err means another issuance for the
// same (user, deal) won the race.
func IsActiveIssueConflict(err error) bool {
	return isUniqueViolation(err, constraintActiveIssue)
}

// IsCodeConflict reports whether err means the generated code collided with a
// live one.
func IsCodeConflict(err error) bool {
	return isUniqueViolation(err, constraintLiveCode)
}
