package visit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create opens a new visit. The visit number is the patient's visit count
// plus one, so 1 marks a new patient.
func (s *Service) Create(ctx context.Context, v *Visit) error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	count, err := s.repo.CountByPatient(ctx, v.PatientID)
	if err != nil {
		return fmt.Errorf("count visits: %w", err)
	}
	v.VisitNumber = count + 1
	if v.Status == "" {
		v.Status = StatusOpen
	}
	return s.repo.Create(ctx, v)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.repo.GetByID(ctx, id)
}

// Update writes doctor-authored clinical fields. These stay editable even
// after billing begins; everything else on the visit is immutable.
func (s *Service) Update(ctx context.Context, v *Visit) error {
	return s.repo.Update(ctx, v)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id, StatusCompleted)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) AddPrescription(ctx context.Context, p *Prescription) error {
	if p.VisitID == uuid.Nil {
		return fmt.Errorf("visit_id is required")
	}
	if p.Medicine == "" {
		return fmt.Errorf("medicine is required")
	}
	if p.Bottles < 0 {
		return fmt.Errorf("bottles must not be negative")
	}
	return s.repo.CreatePrescription(ctx, p)
}

func (s *Service) UpdatePrescription(ctx context.Context, p *Prescription) error {
	if p.Medicine == "" {
		return fmt.Errorf("medicine is required")
	}
	existing, err := s.repo.GetPrescription(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("prescription not found: %w", err)
	}
	p.VisitID = existing.VisitID
	return s.repo.UpdatePrescription(ctx, p)
}

func (s *Service) RemovePrescription(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeletePrescription(ctx, id)
}

func (s *Service) Prescriptions(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	return s.repo.ListPrescriptionsByVisit(ctx, visitID)
}
