package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error)

	// Prescriptions. Every write bumps the owning visit's prescription_rev.
	CreatePrescription(ctx context.Context, p *Prescription) error
	UpdatePrescription(ctx context.Context, p *Prescription) error
	DeletePrescription(ctx context.Context, id uuid.UUID) error
	GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListPrescriptionsByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error)
}
