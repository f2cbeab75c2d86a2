package vendors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redeemlocal/backend/internal/models"
)

const vendorColumns = `id, owner_id, name, COALESCE(description,''), COALESCE(category,''),
	COALESCE(address,''), COALESCE(city,''), COALESCE(phone,''), COALESCE(website,''), COALESCE(logo_url,''),
	created_at, updated_at, deleted_at`

// Repository handles vendor persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a vendor repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanVendor(row pgx.Row) (*models.Vendor, error) {
	var v models.Vendor
	err := row.Scan(&v.ID, &v.OwnerID, &v.Name, &v.Description, &v.Category,
		&v.Address, &v.City, &v.Phone, &v.Website, &v.LogoURL,
		&v.CreatedAt, &v.UpdatedAt, &v.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new vendor profile.
func (r *Repository) Create(ctx context.Context, v *models.Vendor) error {
	const q = `INSERT INTO vendors (id, owner_id, name, description, category, address, city, phone, website, logo_url)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), NULLIF($9,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.OwnerID, v.Name, v.Description, v.Category, v.Address, v.City, v.Phone, v.Website, v.LogoURL).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

// GetByID returns a vendor by ID. Soft-deleted vendors are not returned.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	v, err := scanVendor(r.pool.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// GetByOwner returns the vendor profile owned by a user, if any.
func (r *Repository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Vendor, error) {
	v, err := scanVendor(r.pool.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at LIMIT 1`, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// List returns all non-deleted vendors, optionally filtered by city or category.
func (r *Repository) List(ctx context.Context, city, category string) ([]models.Vendor, error) {
	base := `SELECT ` + vendorColumns + ` FROM vendors WHERE deleted_at IS NULL`
	var args []interface{}
	if city != "" {
		args = append(args, city)
		base += ` AND city = $1`
	}
	if category != "" {
		args = append(args, category)
		if len(args) == 1 {
			base += ` AND category = $1`
		} else {
			base += ` AND category = $2`
		}
	}
	rows, err := r.pool.Query(ctx, base+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// Update updates vendor profile fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, v *models.Vendor) error {
	const q = `UPDATE vendors SET name = $1, description = NULLIF($2,''), category = NULLIF($3,''),
		address = NULLIF($4,''), city = NULLIF($5,''), phone = NULLIF($6,''), website = NULLIF($7,''),
		logo_url = NULLIF($8,''), updated_at = NOW()
		WHERE id = $9 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, v.Name, v.Description, v.Category, v.Address, v.City, v.Phone, v.Website, v.LogoURL, id)
	return err
}

// SoftDelete marks a vendor deleted. Vendors are never hard-deleted because
// deals and redemptions reference them.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE vendors SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// IsOwner returns true if the user owns the vendor.
func (r *Repository) IsOwner(ctx context.Context, vendorID, userID uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM vendors WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`
	var exists int
	err := r.pool.QueryRow(ctx, q, vendorID, userID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
