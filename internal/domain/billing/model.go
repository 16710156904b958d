package billing

import (
	"time"

	"github.com/google/uuid"
)

// QueueItem is the single billing record a visit ever gets. Uniqueness is
// by visit id alone, regardless of status, so a completed or reopened visit
// is never re-admitted.
type QueueItem struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	VisitID         uuid.UUID   `db:"visit_id" json:"visit_id"`
	PatientID       uuid.UUID   `db:"patient_id" json:"patient_id"`
	AppointmentID   *uuid.UUID  `db:"appointment_id" json:"appointment_id,omitempty"`
	PrescriptionIDs []uuid.UUID `db:"prescription_ids" json:"prescription_ids"`
	FeeAmount       float64     `db:"fee_amount" json:"fee_amount"`
	FeeType         string      `db:"fee_type" json:"fee_type"`
	DiscountPercent float64     `db:"discount_percent" json:"discount_percent"`
	DiscountAmount  float64     `db:"discount_amount" json:"discount_amount"`
	NetAmount       float64     `db:"net_amount" json:"net_amount"`
	PaymentMethod   *string     `db:"payment_method" json:"payment_method,omitempty"`
	PaymentStatus   string      `db:"payment_status" json:"payment_status"`
	Status          string      `db:"status" json:"status"`
	ReceiptNumber   *string     `db:"receipt_number" json:"receipt_number,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// Billing statuses. The only backward transition is completed to paid.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCompleted = "completed"
)

// Payment statuses beyond pending/paid (partial, refunded, exempt) are
// informational badges, not machine states.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// Receipt is an immutable snapshot taken when payment is collected. Only
// the printed_at and whatsapp_sent_at marks are ever written afterwards,
// and each of those at most once.
type Receipt struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	BillingQueueID uuid.UUID  `db:"billing_queue_id" json:"billing_queue_id"`
	VisitID        uuid.UUID  `db:"visit_id" json:"visit_id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	ReceiptNumber  string     `db:"receipt_number" json:"receipt_number"`
	FeeAmount      float64    `db:"fee_amount" json:"fee_amount"`
	DiscountAmount float64    `db:"discount_amount" json:"discount_amount"`
	NetAmount      float64    `db:"net_amount" json:"net_amount"`
	FeeType        string     `db:"fee_type" json:"fee_type"`
	PaymentMethod  string     `db:"payment_method" json:"payment_method"`
	PaymentStatus  string     `db:"payment_status" json:"payment_status"`
	PrintedAt      *time.Time `db:"printed_at" json:"printed_at,omitempty"`
	WhatsAppSentAt *time.Time `db:"whatsapp_sent_at" json:"whatsapp_sent_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// FeeHistory is the append-only audit trail written when billing completes.
// Reopening a billing item never removes its history record.
type FeeHistory struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	VisitID       uuid.UUID `db:"visit_id" json:"visit_id"`
	ReceiptID     uuid.UUID `db:"receipt_id" json:"receipt_id"`
	FeeType       string    `db:"fee_type" json:"fee_type"`
	Amount        float64   `db:"amount" json:"amount"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	PaidDate      time.Time `db:"paid_date" json:"paid_date"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Fee-history buckets.
const (
	HistoryFirstVisit = "first-visit"
	HistoryFollowUp   = "follow-up"
)
