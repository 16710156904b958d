package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment maps to the appointment table. Fee fields are set by the
// front desk or the doctor and are the first-priority fee source for the
// billing pipeline.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	AppointmentDate time.Time `db:"appointment_date" json:"appointment_date"`
	Status          string    `db:"status" json:"status"`
	FeeAmount       *float64  `db:"fee_amount" json:"fee_amount,omitempty"`
	FeeType         *string   `db:"fee_type" json:"fee_type,omitempty"`
	FeeStatus       *string   `db:"fee_status" json:"fee_status,omitempty"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Appointment statuses. medicines-prepared is set by the pharmacy gate when
// a same-day appointment's medicines are ready, and reversed on reopen.
const (
	StatusScheduled         = "scheduled"
	StatusInProgress        = "in-progress"
	StatusCompleted         = "completed"
	StatusMedicinesPrepared = "medicines-prepared"
	StatusCancelled         = "cancelled"
)
