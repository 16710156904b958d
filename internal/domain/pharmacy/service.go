package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/appointment"
	"github.com/clinicflow/clinicflow/internal/domain/patient"
	"github.com/clinicflow/clinicflow/internal/domain/visit"
	"github.com/clinicflow/clinicflow/internal/platform/metrics"
)

// Admitter creates a billing queue item for a prepared pharmacy item. It
// must be idempotent per visit; the returned bool reports whether a new
// billing item was created.
type Admitter interface {
	AdmitFromPharmacy(ctx context.Context, item *QueueItem) (bool, error)
}

// VisitSource is the slice of the visit repository the gate reads from.
type VisitSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
	ListPrescriptionsByVisit(ctx context.Context, visitID uuid.UUID) ([]*visit.Prescription, error)
}

// PatientSource resolves patients for listing enrichment.
type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// AppointmentStore covers the same-day appointment side effects of
// markPrepared and reopen.
type AppointmentStore interface {
	ListByPatientOnDay(ctx context.Context, patientID uuid.UUID, day time.Time) ([]*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Entry is a queue item enriched with live records for list views. The
// prescription set is re-fetched by visit id at read time so doctor edits
// show up immediately.
type Entry struct {
	QueueItem
	Patient       *patient.Patient      `json:"patient,omitempty"`
	Visit         *visit.Visit          `json:"visit,omitempty"`
	Prescriptions []*visit.Prescription `json:"prescriptions"`
	HasUpdates    bool                  `json:"has_updates"`
}

type Service struct {
	repo     Repository
	visits   VisitSource
	patients PatientSource
	appts    AppointmentStore
	admitter Admitter
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(repo Repository, visits VisitSource, patients PatientSource, appts AppointmentStore, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		visits:   visits,
		patients: patients,
		appts:    appts,
		metrics:  m,
		logger:   logger.With().Str("component", "pharmacy").Logger(),
	}
}

// SetAdmitter wires the billing gate in after construction; the billing
// service depends on this package, so the dependency cannot point both ways.
func (s *Service) SetAdmitter(a Admitter) {
	s.admitter = a
}

// Admit places a visit in the pharmacy queue. A visit with an existing
// non-stopped item is not admitted again; the existing item is returned.
func (s *Service) Admit(ctx context.Context, visitID uuid.UUID) (*QueueItem, error) {
	v, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("visit not found: %w", err)
	}

	if existing, err := s.repo.GetActiveByVisit(ctx, visitID); err == nil {
		return existing, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	prescriptions, err := s.visits.ListPrescriptionsByVisit(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(prescriptions))
	for _, p := range prescriptions {
		ids = append(ids, p.ID)
	}

	item := &QueueItem{
		VisitID:         v.ID,
		PatientID:       v.PatientID,
		AppointmentID:   v.AppointmentID,
		PrescriptionIDs: ids,
		Status:          StatusPending,
		LastSeenRev:     v.PrescriptionRev,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	s.metrics.PharmacyAdmissions.Inc()
	s.logger.Info().Str("visit_id", visitID.String()).Str("item_id", item.ID.String()).Msg("visit admitted to pharmacy queue")
	return item, nil
}

func (s *Service) ListActive(ctx context.Context) ([]*Entry, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, items)
}

func (s *Service) ListPrepared(ctx context.Context) ([]*Entry, error) {
	items, err := s.repo.ListPrepared(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, items)
}

// ListBilled backs the delivery screen: items already admitted to billing
// but not yet handed over.
func (s *Service) ListBilled(ctx context.Context) ([]*Entry, error) {
	items, err := s.repo.ListBilled(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, items)
}

func (s *Service) enrich(ctx context.Context, items []*QueueItem) ([]*Entry, error) {
	entries := make([]*Entry, 0, len(items))
	for _, item := range items {
		e := &Entry{QueueItem: *item, Prescriptions: []*visit.Prescription{}}
		if v, err := s.visits.GetByID(ctx, item.VisitID); err == nil {
			e.Visit = v
			e.HasUpdates = v.PrescriptionRev > item.LastSeenRev
		}
		if prescriptions, err := s.visits.ListPrescriptionsByVisit(ctx, item.VisitID); err == nil {
			e.Prescriptions = prescriptions
		}
		if p, err := s.patients.GetByID(ctx, item.PatientID); err == nil {
			e.Patient = p
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// StartPreparing transitions pending to preparing. Missing ids and items in
// any other status are no-ops.
func (s *Service) StartPreparing(ctx context.Context, id uuid.UUID) error {
	item, err := s.get(ctx, id)
	if err != nil || item == nil {
		return err
	}
	if item.Status != StatusPending {
		return nil
	}
	return s.repo.UpdateStatus(ctx, id, StatusPreparing)
}

// MarkPrepared transitions an active item to prepared, records who prepared
// it, advances a same-day completed or in-progress appointment to
// medicines-prepared, and admits the visit to billing inline. If billing
// admission fails the item stays prepared and the sweep retries it.
func (s *Service) MarkPrepared(ctx context.Context, id uuid.UUID, preparedBy string) error {
	item, err := s.get(ctx, id)
	if err != nil || item == nil {
		return err
	}
	if item.Status != StatusPending && item.Status != StatusPreparing {
		return nil
	}
	if err := s.repo.MarkPrepared(ctx, id, preparedBy); err != nil {
		return err
	}
	item.Status = StatusPrepared
	pb := preparedBy
	item.PreparedBy = &pb

	s.advanceSameDayAppointment(ctx, item.PatientID, appointment.StatusMedicinesPrepared,
		appointment.StatusCompleted, appointment.StatusInProgress)

	if s.admitter == nil {
		return nil
	}
	if _, err := s.admitter.AdmitFromPharmacy(ctx, item); err != nil {
		s.logger.Error().Err(err).Str("item_id", id.String()).Msg("inline billing admission failed, sweep will retry")
		return nil
	}
	return s.repo.UpdateStatus(ctx, id, StatusBilled)
}

// Reopen sends a prepared (or already billed) item back to pending and
// reverts a same-day medicines-prepared appointment to completed. The
// billing item created at admission is left alone; re-preparing will not
// create a second one.
func (s *Service) Reopen(ctx context.Context, id uuid.UUID) error {
	item, err := s.get(ctx, id)
	if err != nil || item == nil {
		return err
	}
	if item.Status != StatusPrepared && item.Status != StatusBilled {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusPending); err != nil {
		return err
	}
	s.advanceSameDayAppointment(ctx, item.PatientID, appointment.StatusCompleted,
		appointment.StatusMedicinesPrepared)
	return nil
}

// Stop terminally stops a pending or preparing item with a reason. Retrying
// the visit requires a fresh admission.
func (s *Service) Stop(ctx context.Context, id uuid.UUID, reason string) error {
	item, err := s.get(ctx, id)
	if err != nil || item == nil {
		return err
	}
	if item.Status != StatusPending && item.Status != StatusPreparing {
		return nil
	}
	return s.repo.MarkStopped(ctx, id, reason)
}

// MarkDelivered closes the pharmacy side once medicines are handed over.
func (s *Service) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	item, err := s.get(ctx, id)
	if err != nil || item == nil {
		return err
	}
	if item.Status != StatusPrepared && item.Status != StatusBilled {
		return nil
	}
	return s.repo.UpdateStatus(ctx, id, StatusDelivered)
}

func (s *Service) SetPriority(ctx context.Context, id uuid.UUID, priority bool) error {
	item, err := s.get(ctx, id)
	if err != nil || item == nil {
		return err
	}
	return s.repo.SetPriority(ctx, id, priority)
}

// AcknowledgeUpdates clears the doctor-edit flag by moving the item's
// watermark up to the visit's current prescription revision.
func (s *Service) AcknowledgeUpdates(ctx context.Context, id uuid.UUID) error {
	item, err := s.get(ctx, id)
	if err != nil || item == nil {
		return err
	}
	v, err := s.visits.GetByID(ctx, item.VisitID)
	if err != nil {
		return nil
	}
	return s.repo.SetLastSeenRev(ctx, id, v.PrescriptionRev)
}

// Refresh is the polling loop body. It republishes the queue depth gauge
// and logs items whose prescriptions changed since the pharmacist last
// looked at them.
func (s *Service) Refresh(ctx context.Context) error {
	entries, err := s.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active: %w", err)
	}
	s.metrics.PharmacyQueueDepth.Set(float64(len(entries)))
	for _, e := range entries {
		if e.HasUpdates {
			s.logger.Info().
				Str("item_id", e.ID.String()).
				Str("visit_id", e.VisitID.String()).
				Msg("prescriptions changed after pharmacy admission")
		}
	}
	return nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*QueueItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) advanceSameDayAppointment(ctx context.Context, patientID uuid.UUID, to string, from ...string) {
	appts, err := s.appts.ListByPatientOnDay(ctx, patientID, time.Now())
	if err != nil {
		return
	}
	for _, a := range appts {
		for _, f := range from {
			if a.Status == f {
				if err := s.appts.UpdateStatus(ctx, a.ID, to); err != nil {
					s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("appointment status side effect failed")
				}
				return
			}
		}
	}
}
