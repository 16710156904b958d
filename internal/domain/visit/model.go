package visit

import (
	"time"

	"github.com/google/uuid"
)

// Visit maps to the visit table. PrescriptionRev is bumped by every
// prescription write for this visit; the pharmacy queue keeps the last
// revision it acknowledged, so doctor edits made after pharmacy admission
// are detectable across restarts.
type Visit struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID   *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	VisitNumber     int        `db:"visit_number" json:"visit_number"`
	Complaint       *string    `db:"complaint" json:"complaint,omitempty"`
	Diagnosis       *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Advice          *string    `db:"advice" json:"advice,omitempty"`
	Status          string     `db:"status" json:"status"`
	PrescriptionRev int        `db:"prescription_rev" json:"prescription_rev"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	StatusOpen      = "open"
	StatusCompleted = "completed"
)

// Prescription maps to the prescription table, one row per medicine in the
// visit's treatment plan, ordered by RowOrder. Bottles is the billable
// quantity; Quantity is the free-text display string (e.g. "2dr").
type Prescription struct {
	ID          uuid.UUID `db:"id" json:"id"`
	VisitID     uuid.UUID `db:"visit_id" json:"visit_id"`
	RowOrder    int       `db:"row_order" json:"row_order"`
	Medicine    string    `db:"medicine" json:"medicine"`
	Potency     *string   `db:"potency" json:"potency,omitempty"`
	Dose        *string   `db:"dose" json:"dose,omitempty"`
	Frequency   *string   `db:"frequency" json:"frequency,omitempty"`
	Duration    *string   `db:"duration" json:"duration,omitempty"`
	Bottles     int       `db:"bottles" json:"bottles"`
	Quantity    *string   `db:"quantity" json:"quantity,omitempty"`
	Combination *string   `db:"combination" json:"combination,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
