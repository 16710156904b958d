// Package fees resolves the consultation fee for a visit. Resolution checks
// the linked appointment first, then any appointment of the patient on the
// same local day, and finally falls back to a visit-number heuristic.
package fees

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/domain/appointment"
)

// Context selects the tie-breaking rules. Pharmacy resolution prefers
// same-day appointments already completed or in progress; billing accepts
// any same-day appointment and labels heuristic follow-ups differently.
type Context int

const (
	ContextPharmacy Context = iota
	ContextBilling
)

// Fee type labels.
const (
	TypeNewPatient   = "New Patient"
	TypeFollowUp     = "Follow Up"
	TypeConsultation = "Consultation"
)

// Result is a resolved fee. PaymentStatus is set only when the fee came
// from an appointment carrying a fee status; heuristic fallbacks leave it
// nil.
type Result struct {
	Amount        float64
	Type          string
	PaymentStatus *string
}

// AppointmentSource is the narrow slice of the appointment repository the
// resolver needs.
type AppointmentSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListByPatientOnDay(ctx context.Context, patientID uuid.UUID, day time.Time) ([]*appointment.Appointment, error)
}

type Resolver struct {
	appts      AppointmentSource
	newPatient float64
	followUp   float64
	now        func() time.Time
}

func NewResolver(appts AppointmentSource, newPatientFee, followUpFee float64) *Resolver {
	return &Resolver{
		appts:      appts,
		newPatient: newPatientFee,
		followUp:   followUpFee,
		now:        time.Now,
	}
}

// Resolve produces the fee for a visit. appointmentID may be nil when the
// visit was created without a linked appointment. Lookups that fail fall
// through to the next rule rather than erroring.
func (r *Resolver) Resolve(ctx context.Context, patientID uuid.UUID, appointmentID *uuid.UUID, visitNumber int, fc Context) Result {
	if appointmentID != nil {
		if a, err := r.appts.GetByID(ctx, *appointmentID); err == nil && a.FeeAmount != nil {
			return Result{Amount: *a.FeeAmount, Type: feeTypeOf(a), PaymentStatus: a.FeeStatus}
		}
	}

	if a := r.sameDayAppointment(ctx, patientID, fc); a != nil && a.FeeAmount != nil {
		return Result{Amount: *a.FeeAmount, Type: feeTypeOf(a), PaymentStatus: a.FeeStatus}
	}

	if visitNumber == 1 {
		return Result{Amount: r.newPatient, Type: TypeNewPatient}
	}
	if fc == ContextBilling {
		return Result{Amount: r.followUp, Type: TypeConsultation}
	}
	return Result{Amount: r.followUp, Type: TypeFollowUp}
}

func (r *Resolver) sameDayAppointment(ctx context.Context, patientID uuid.UUID, fc Context) *appointment.Appointment {
	appts, err := r.appts.ListByPatientOnDay(ctx, patientID, r.now())
	if err != nil || len(appts) == 0 {
		return nil
	}
	if fc == ContextPharmacy {
		for _, a := range appts {
			if a.Status == appointment.StatusCompleted || a.Status == appointment.StatusInProgress {
				return a
			}
		}
	}
	return appts[0]
}

func feeTypeOf(a *appointment.Appointment) string {
	if a.FeeType != nil && *a.FeeType != "" {
		return *a.FeeType
	}
	return TypeConsultation
}

// SameLocalDay reports whether two instants fall on the same calendar day
// in local time. Both the pharmacy gate and the billing gate use this one
// predicate for day matching.
func SameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
