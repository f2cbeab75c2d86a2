package deals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redeemlocal/backend/internal/models"
)

const dealColumns = `id, vendor_id, title, COALESCE(description,''), discount_type, discount_value,
	is_active, status, starts_at, ends_at, max_redemptions_per_user, max_redemptions_total,
	cooldown_hours, redemption_frequency, custom_frequency_days, COALESCE(photo_url,''),
	created_at, updated_at, deleted_at`

// Repository handles deal persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a deal repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanDeal(row pgx.Row) (*models.Deal, error) {
	var d models.Deal
	err := row.Scan(&d.ID, &d.VendorID, &d.Title, &d.Description, &d.DiscountType, &d.DiscountValue,
		&d.IsActive, &d.Status, &d.StartsAt, &d.EndsAt, &d.MaxRedemptionsPerUser, &d.MaxRedemptionsTotal,
		&d.CooldownHours, &d.RedemptionFrequency, &d.CustomFrequencyDays, &d.PhotoURL,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new deal (draft by default).
func (r *Repository) Create(ctx context.Context, d *models.Deal) error {
	const q = `INSERT INTO deals (id, vendor_id, title, description, discount_type, discount_value,
			is_active, status, starts_at, ends_at, max_redemptions_per_user, max_redemptions_total,
			cooldown_hours, redemption_frequency, custom_frequency_days, photo_url)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULLIF($15,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, d.VendorID, d.Title, d.Description, d.DiscountType, d.DiscountValue,
		d.IsActive, d.Status, d.StartsAt, d.EndsAt, d.MaxRedemptionsPerUser, d.MaxRedemptionsTotal,
		d.CooldownHours, d.RedemptionFrequency, d.CustomFrequencyDays, d.PhotoURL).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// GetByID returns a deal by ID. Soft-deleted deals are not returned.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	d, err := scanDeal(r.pool.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// ListPublished returns published, active, non-deleted deals for consumer browse,
// optionally filtered by vendor.
func (r *Repository) ListPublished(ctx context.Context, vendorID *uuid.UUID) ([]models.Deal, error) {
	base := `SELECT ` + dealColumns + ` FROM deals
		WHERE status = 'published' AND is_active AND deleted_at IS NULL`
	var args []interface{}
	if vendorID != nil {
		base += ` AND vendor_id = $1`
		args = append(args, *vendorID)
	}
	rows, err := r.pool.Query(ctx, base+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

// ListByVendor returns all non-deleted deals for a vendor (any status), for the
// vendor dashboard.
func (r *Repository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Deal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE vendor_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`,
		vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

// Update updates editable deal fields. Nil pointers leave the column unchanged.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, d *models.Deal) error {
	const q = `UPDATE deals SET title = $1, description = NULLIF($2,''),
		discount_type = $3, discount_value = $4, is_active = $5,
		starts_at = $6, ends_at = $7,
		max_redemptions_per_user = $8, max_redemptions_total = $9, cooldown_hours = $10,
		redemption_frequency = $11, custom_frequency_days = $12, photo_url = NULLIF($13,''),
		updated_at = NOW()
		WHERE id = $14 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, d.Title, d.Description, d.DiscountType, d.DiscountValue, d.IsActive,
		d.StartsAt, d.EndsAt, d.MaxRedemptionsPerUser, d.MaxRedemptionsTotal, d.CooldownHours,
		d.RedemptionFrequency, d.CustomFrequencyDays, d.PhotoURL, id)
	return err
}

// SetStatus moves a deal between draft/published/archived.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE deals SET status = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, status, id)
	return err
}

// SetPhotoURL stores the uploaded photo URL.
func (r *Repository) SetPhotoURL(ctx context.Context, id uuid.UUID, url string) error {
	const q = `UPDATE deals SET photo_url = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, url, id)
	return err
}

// SoftDelete marks a deal deleted and archived. Deals are never hard-deleted
// because redemptions reference them.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE deals SET deleted_at = NOW(), is_active = FALSE, status = 'archived', updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
