package models

import (
	"time"

	"github.com/google/uuid"
)

// Email log statuses.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// EmailLog records one email send attempt by the notification worker.
type EmailLog struct {
	ID           uuid.UUID  `json:"id"`
	RedemptionID *uuid.UUID `json:"redemption_id,omitempty"`
	Recipient    string     `json:"recipient"`
	EmailType    string     `json:"email_type"` // e.g. redemption_receipt, vendor_notice
	Subject      string     `json:"subject"`
	Status       string     `json:"status"`
	ErrorDetail  string     `json:"error_detail,omitempty"`
	SentAt       time.Time  `json:"sent_at"`
}
