package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

// QueueItem is a visit admitted into the pharmacy queue. PrescriptionIDs is
// the snapshot taken at admission; listings always re-fetch the live
// prescription set by visit id, so the snapshot only records what the
// pharmacist was originally asked to prepare.
type QueueItem struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	VisitID         uuid.UUID   `db:"visit_id" json:"visit_id"`
	PatientID       uuid.UUID   `db:"patient_id" json:"patient_id"`
	AppointmentID   *uuid.UUID  `db:"appointment_id" json:"appointment_id,omitempty"`
	PrescriptionIDs []uuid.UUID `db:"prescription_ids" json:"prescription_ids"`
	Status          string      `db:"status" json:"status"`
	Priority        bool        `db:"priority" json:"priority"`
	PreparedBy      *string     `db:"prepared_by" json:"prepared_by,omitempty"`
	StopReason      *string     `db:"stop_reason" json:"stop_reason,omitempty"`
	// LastSeenRev is the visit's prescription revision at admission or at the
	// last acknowledged refresh. A visit revision ahead of it means the doctor
	// edited prescriptions after pharmacy started working.
	LastSeenRev int       `db:"last_seen_rev" json:"last_seen_rev"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Queue item statuses. stopped is terminal; billed marks a prepared item
// already admitted to billing; delivered closes the pharmacy side.
const (
	StatusPending   = "pending"
	StatusPreparing = "preparing"
	StatusPrepared  = "prepared"
	StatusDelivered = "delivered"
	StatusStopped   = "stopped"
	StatusBilled    = "billed"
)
