package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/fees"
	"github.com/clinicflow/clinicflow/internal/domain/patient"
	"github.com/clinicflow/clinicflow/internal/domain/pharmacy"
	"github.com/clinicflow/clinicflow/internal/domain/visit"
	"github.com/clinicflow/clinicflow/internal/platform/metrics"
)

// PharmacyQueue is the slice of the pharmacy repository the sweep reads and
// marks. The pharmacy repo satisfies it directly.
type PharmacyQueue interface {
	ListPrepared(ctx context.Context) ([]*pharmacy.QueueItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// VisitSource resolves visit numbers for fee resolution.
type VisitSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
}

// PatientSource resolves patients for listing enrichment.
type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// AppointmentStore covers the best-effort back-propagation targets of fee
// edits and completion.
type AppointmentStore interface {
	UpdateFee(ctx context.Context, id uuid.UUID, amount float64, feeType string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Entry is a billing queue item enriched with the patient for list views.
type Entry struct {
	QueueItem
	Patient *patient.Patient `json:"patient,omitempty"`
}

type Service struct {
	repo     Repository
	resolver *fees.Resolver
	pharmQ   PharmacyQueue
	visits   VisitSource
	patients PatientSource
	appts    AppointmentStore
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(repo Repository, resolver *fees.Resolver, pharmQ PharmacyQueue, visits VisitSource, patients PatientSource, appts AppointmentStore, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		pharmQ:   pharmQ,
		visits:   visits,
		patients: patients,
		appts:    appts,
		metrics:  m,
		logger:   logger.With().Str("component", "billing").Logger(),
	}
}

// AdmitFromPharmacy creates the billing queue item for a prepared pharmacy
// item. It is idempotent per visit: if any billing item already exists for
// the visit, whatever its status, nothing is created and false is returned.
func (s *Service) AdmitFromPharmacy(ctx context.Context, item *pharmacy.QueueItem) (bool, error) {
	_, err := s.repo.GetQueueItemByVisit(ctx, item.VisitID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	visitNumber := 0
	if v, err := s.visits.GetByID(ctx, item.VisitID); err == nil {
		visitNumber = v.VisitNumber
	}
	fee := s.resolver.Resolve(ctx, item.PatientID, item.AppointmentID, visitNumber, fees.ContextBilling)

	q := &QueueItem{
		VisitID:         item.VisitID,
		PatientID:       item.PatientID,
		AppointmentID:   item.AppointmentID,
		PrescriptionIDs: item.PrescriptionIDs,
		FeeAmount:       fee.Amount,
		FeeType:         fee.Type,
		NetAmount:       fee.Amount,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
	}
	if err := s.repo.CreateQueueItem(ctx, q); err != nil {
		return false, err
	}
	s.metrics.BillingAdmissions.Inc()
	s.logger.Info().Str("visit_id", item.VisitID.String()).Str("billing_id", q.ID.String()).Msg("visit admitted to billing queue")
	return true, nil
}

// Sweep admits every prepared pharmacy item and marks it billed. markPrepared
// already admits inline, so most sweeps find nothing; the sweep exists so an
// inline failure or a crash between the two writes cannot strand a visit. It
// is safe to run arbitrarily often.
func (s *Service) Sweep(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()
	s.metrics.SweepRuns.Inc()

	prepared, err := s.pharmQ.ListPrepared(ctx)
	if err != nil {
		return fmt.Errorf("list prepared: %w", err)
	}
	for _, item := range prepared {
		if _, err := s.AdmitFromPharmacy(ctx, item); err != nil {
			s.logger.Error().Err(err).Str("item_id", item.ID.String()).Msg("sweep admission failed")
			continue
		}
		if err := s.pharmQ.UpdateStatus(ctx, item.ID, pharmacy.StatusBilled); err != nil {
			s.logger.Error().Err(err).Str("item_id", item.ID.String()).Msg("mark billed failed")
		}
	}

	if pending, err := s.repo.CountByStatus(ctx, StatusPending); err == nil {
		s.metrics.BillingQueueDepth.Set(float64(pending))
	}
	return nil
}

// ListPending returns pending billing items, re-running fee resolution on
// each to absorb appointment fee edits made after admission. A changed
// amount, type, or payment status is corrected in place; the discount is
// preserved and the net amount recomputed.
func (s *Service) ListPending(ctx context.Context) ([]*Entry, error) {
	items, err := s.repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(items))
	for _, item := range items {
		s.resyncFee(ctx, item)
		e := &Entry{QueueItem: *item}
		if p, err := s.patients.GetByID(ctx, item.PatientID); err == nil {
			e.Patient = p
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Service) resyncFee(ctx context.Context, item *QueueItem) {
	visitNumber := 0
	if v, err := s.visits.GetByID(ctx, item.VisitID); err == nil {
		visitNumber = v.VisitNumber
	}
	fee := s.resolver.Resolve(ctx, item.PatientID, item.AppointmentID, visitNumber, fees.ContextBilling)

	changed := fee.Amount != item.FeeAmount || fee.Type != item.FeeType
	if fee.PaymentStatus != nil && *fee.PaymentStatus != item.PaymentStatus {
		item.PaymentStatus = *fee.PaymentStatus
		changed = true
	}
	if !changed {
		return
	}
	item.FeeAmount = fee.Amount
	item.FeeType = fee.Type
	item.NetAmount = fee.Amount - item.DiscountAmount
	if err := s.repo.UpdateFee(ctx, item); err != nil {
		s.logger.Warn().Err(err).Str("billing_id", item.ID.String()).Msg("fee resync write failed")
		return
	}
	s.metrics.FeeResyncs.Inc()
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]*Entry, error) {
	if status == StatusPending {
		return s.ListPending(ctx)
	}
	items, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(items))
	for _, item := range items {
		e := &Entry{QueueItem: *item}
		if p, err := s.patients.GetByID(ctx, item.PatientID); err == nil {
			e.Patient = p
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Service) GetByVisit(ctx context.Context, visitID uuid.UUID) (*QueueItem, error) {
	return s.repo.GetQueueItemByVisit(ctx, visitID)
}

// EditFee recomputes discount and net amounts. Allowed while pending or
// paid; editing a paid item does not revert its status. The new fee is
// pushed best-effort to the linked appointment and any fee-history record
// for the visit.
func (s *Service) EditFee(ctx context.Context, id uuid.UUID, feeAmount float64, feeType string, discountPercent float64) (*QueueItem, error) {
	item, err := s.repo.GetQueueItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("billing item not found: %w", err)
	}
	if item.Status != StatusPending && item.Status != StatusPaid {
		return nil, fmt.Errorf("fee of a %s billing item cannot be edited", item.Status)
	}
	if feeAmount < 0 || discountPercent < 0 || discountPercent > 100 {
		return nil, fmt.Errorf("invalid fee or discount")
	}

	item.FeeAmount = feeAmount
	if feeType != "" {
		item.FeeType = feeType
	}
	item.DiscountPercent = discountPercent
	item.DiscountAmount = feeAmount * discountPercent / 100
	item.NetAmount = feeAmount - item.DiscountAmount
	if err := s.repo.UpdateFee(ctx, item); err != nil {
		return nil, err
	}

	if item.AppointmentID != nil {
		if err := s.appts.UpdateFee(ctx, *item.AppointmentID, item.FeeAmount, item.FeeType); err != nil {
			s.logger.Warn().Err(err).Str("billing_id", id.String()).Msg("appointment fee back-propagation failed")
		}
	}
	if err := s.repo.UpdateFeeHistoryFee(ctx, item.PatientID, item.VisitID, item.FeeAmount, item.FeeType); err != nil {
		s.logger.Warn().Err(err).Str("billing_id", id.String()).Msg("fee history back-propagation failed")
	}
	return item, nil
}

// GenerateReceipt collects payment on a pending item: allocates a receipt
// number, snapshots the amounts into an immutable receipt, and marks the
// item paid. This is the only path that creates receipts.
func (s *Service) GenerateReceipt(ctx context.Context, id uuid.UUID, paymentMethod string) (*Receipt, error) {
	item, err := s.repo.GetQueueItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("billing item not found: %w", err)
	}
	if item.Status != StatusPending {
		return nil, fmt.Errorf("receipt can only be generated for a pending item, got %s", item.Status)
	}
	if paymentMethod == "" {
		return nil, fmt.Errorf("payment method is required")
	}

	number, err := s.repo.NextReceiptNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate receipt number: %w", err)
	}
	rec := &Receipt{
		BillingQueueID: item.ID,
		VisitID:        item.VisitID,
		PatientID:      item.PatientID,
		ReceiptNumber:  number,
		FeeAmount:      item.FeeAmount,
		DiscountAmount: item.DiscountAmount,
		NetAmount:      item.NetAmount,
		FeeType:        item.FeeType,
		PaymentMethod:  paymentMethod,
		PaymentStatus:  PaymentPaid,
	}
	if err := s.repo.CreateReceipt(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.repo.SetPaid(ctx, item.ID, paymentMethod, number); err != nil {
		return nil, err
	}
	s.metrics.ReceiptsIssued.Inc()
	s.logger.Info().Str("billing_id", id.String()).Str("receipt", number).Msg("receipt generated")
	return rec, nil
}

// Complete closes a paid billing item: the linked appointment is completed
// best-effort and one immutable fee-history record is appended.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	item, err := s.repo.GetQueueItem(ctx, id)
	if err != nil {
		return fmt.Errorf("billing item not found: %w", err)
	}
	if item.Status != StatusPaid {
		return fmt.Errorf("only a paid item can be completed, got %s", item.Status)
	}

	if item.AppointmentID != nil {
		if err := s.appts.UpdateStatus(ctx, *item.AppointmentID, "completed"); err != nil {
			s.logger.Warn().Err(err).Str("billing_id", id.String()).Msg("appointment completion failed")
		}
	}

	var receiptID uuid.UUID
	if rec, err := s.repo.GetReceiptByQueueItem(ctx, item.ID); err == nil {
		receiptID = rec.ID
	}
	method := ""
	if item.PaymentMethod != nil {
		method = *item.PaymentMethod
	}
	h := &FeeHistory{
		PatientID:     item.PatientID,
		VisitID:       item.VisitID,
		ReceiptID:     receiptID,
		FeeType:       historyBucket(item.FeeType),
		Amount:        item.NetAmount,
		PaymentMethod: method,
		PaymentStatus: PaymentPaid,
		PaidDate:      time.Now(),
	}
	if err := s.repo.CreateFeeHistory(ctx, h); err != nil {
		return fmt.Errorf("append fee history: %w", err)
	}
	return s.repo.UpdateStatus(ctx, id, StatusCompleted)
}

// Reopen moves a completed item back to paid. The fee-history record and
// the appointment's completed status written at completion stay in place.
func (s *Service) Reopen(ctx context.Context, id uuid.UUID) error {
	item, err := s.repo.GetQueueItem(ctx, id)
	if err != nil {
		return fmt.Errorf("billing item not found: %w", err)
	}
	if item.Status != StatusCompleted {
		return fmt.Errorf("only a completed item can be reopened, got %s", item.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusPaid)
}

func (s *Service) GetReceipt(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// MarkReceiptPrinted records the first print of a receipt. Later calls
// leave the original timestamp.
func (s *Service) MarkReceiptPrinted(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkReceiptPrinted(ctx, id)
}

// MarkReceiptWhatsAppSent records the first WhatsApp share of a receipt.
func (s *Service) MarkReceiptWhatsAppSent(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkReceiptWhatsAppSent(ctx, id)
}

func (s *Service) FeeHistoryByVisit(ctx context.Context, visitID uuid.UUID) ([]*FeeHistory, error) {
	return s.repo.ListFeeHistoryByVisit(ctx, visitID)
}

func historyBucket(feeType string) string {
	if feeType == fees.TypeNewPatient {
		return HistoryFirstVisit
	}
	return HistoryFollowUp
}
