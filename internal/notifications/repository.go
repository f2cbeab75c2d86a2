package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redeemlocal/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one send attempt.
func (r *Repository) Record(ctx context.Context, log *models.EmailLog) error {
	const q = `INSERT INTO email_logs (redemption_id, recipient, email_type, subject, status, error_detail)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING id, sent_at`
	return r.pool.QueryRow(ctx, q,
		log.RedemptionID, log.Recipient, log.EmailType, log.Subject, log.Status, log.ErrorDetail).
		Scan(&log.ID, &log.SentAt)
}

// ListByDeal returns email logs for a deal's redemptions, newest first.
func (r *Repository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT el.id, el.redemption_id, el.recipient, el.email_type, el.subject, el.status, el.error_detail, el.sent_at
		FROM email_logs el
		JOIN redemptions rd ON rd.id = el.redemption_id
		WHERE rd.deal_id = $1
		ORDER BY el.sent_at DESC`
	rows, err := r.pool.Query(ctx, q, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		var errDetail *string
		if err := rows.Scan(&el.ID, &el.RedemptionID, &el.Recipient, &el.EmailType, &el.Subject, &el.Status, &errDetail, &el.SentAt); err != nil {
			return nil, err
		}
		if errDetail != nil {
			el.ErrorDetail = *errDetail
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
