package favorites

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redeemlocal/backend/internal/models"
)

// Repository persists user favorites.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Add favorites a deal for a user. Favoriting twice is a no-op.
func (r *Repository) Add(ctx context.Context, userID, dealID uuid.UUID) error {
	q := `INSERT INTO favorites (user_id, deal_id) VALUES ($1, $2)
	      ON CONFLICT (user_id, deal_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, q, userID, dealID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrDealNotFound
		}
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

// Remove unfavorites a deal. Removing an absent favorite is a no-op.
func (r *Repository) Remove(ctx context.Context, userID, dealID uuid.UUID) error {
	q := `DELETE FROM favorites WHERE user_id = $1 AND deal_id = $2`
	if _, err := r.pool.Exec(ctx, q, userID, dealID); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

// ListDeals returns the user's favorited deals, newest favorite first.
// Soft-deleted deals drop out of the listing but the favorite row stays.
func (r *Repository) ListDeals(ctx context.Context, userID uuid.UUID) ([]*models.Deal, error) {
	q := `SELECT d.id, d.vendor_id, d.title, d.description, d.discount_type, d.discount_value,
	             d.is_active, d.status, d.starts_at, d.ends_at,
	             d.max_redemptions_per_user, d.max_redemptions_total, d.cooldown_hours,
	             d.redemption_frequency, d.custom_frequency_days, d.photo_url,
	             d.created_at, d.updated_at, d.deleted_at
	      FROM favorites f
	      JOIN deals d ON d.id = f.deal_id
	      WHERE f.user_id = $1 AND d.deleted_at IS NULL
	      ORDER BY f.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var out []*models.Deal
	for rows.Next() {
		var d models.Deal
		if err := rows.Scan(&d.ID, &d.VendorID, &d.Title, &d.Description, &d.DiscountType, &d.DiscountValue,
			&d.IsActive, &d.Status, &d.StartsAt, &d.EndsAt,
			&d.MaxRedemptionsPerUser, &d.MaxRedemptionsTotal, &d.CooldownHours,
			&d.RedemptionFrequency, &d.CustomFrequencyDays, &d.PhotoURL,
			&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan favorite deal: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// IsFavorite reports whether the user has favorited the deal.
func (r *Repository) IsFavorite(ctx context.Context, userID, dealID uuid.UUID) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND deal_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, userID, dealID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return exists, nil
}

// ErrDealNotFound means the favorited deal does not exist.
var ErrDealNotFound = errors.New("deal not found")
