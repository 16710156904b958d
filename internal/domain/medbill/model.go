package medbill

import (
	"time"

	"github.com/google/uuid"
)

// LineItem is one medicine row on a bill. Amount is the charged price for
// the row, not a unit price.
type LineItem struct {
	Medicine string  `json:"medicine"`
	Potency  string  `json:"potency,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	Amount   float64 `json:"amount"`
}

// Totals is the calculator output. Tax applies to the discounted subtotal.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	TaxAmount      float64 `json:"tax_amount"`
	GrandTotal     float64 `json:"grand_total"`
}

// Bill is the medicine bill attached to a billing queue item. One bill per
// item; saving again replaces the items and totals wholesale.
type Bill struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	BillingQueueID  uuid.UUID  `db:"billing_queue_id" json:"billing_queue_id"`
	Items           []LineItem `db:"items" json:"items"`
	DiscountPercent float64    `db:"discount_percent" json:"discount_percent"`
	TaxPercent      float64    `db:"tax_percent" json:"tax_percent"`
	Subtotal        float64    `db:"subtotal" json:"subtotal"`
	DiscountAmount  float64    `db:"discount_amount" json:"discount_amount"`
	TaxAmount       float64    `db:"tax_amount" json:"tax_amount"`
	GrandTotal      float64    `db:"grand_total" json:"grand_total"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	StatusDraft = "draft"
	StatusSaved = "saved"
	StatusPaid  = "paid"
)

// AmountMemory remembers the last amount charged for a (medicine, potency)
// pair. Last write wins; no price history is kept.
type AmountMemory struct {
	Medicine  string    `db:"medicine" json:"medicine"`
	Potency   string    `db:"potency" json:"potency"`
	Amount    float64   `db:"amount" json:"amount"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
