package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/appointment"
	"github.com/clinicflow/clinicflow/internal/domain/fees"
	"github.com/clinicflow/clinicflow/internal/domain/patient"
	"github.com/clinicflow/clinicflow/internal/domain/pharmacy"
	"github.com/clinicflow/clinicflow/internal/domain/visit"
	"github.com/clinicflow/clinicflow/internal/platform/metrics"
)

// -- Mock Repository --

type mockRepo struct {
	items      map[uuid.UUID]*QueueItem
	receipts   map[uuid.UUID]*Receipt
	history    []*FeeHistory
	receiptSeq int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items:    make(map[uuid.UUID]*QueueItem),
		receipts: make(map[uuid.UUID]*Receipt),
	}
}

func (m *mockRepo) CreateQueueItem(_ context.Context, item *QueueItem) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	m.items[item.ID] = item
	return nil
}

func (m *mockRepo) GetQueueItem(_ context.Context, id uuid.UUID) (*QueueItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return item, nil
}

func (m *mockRepo) GetQueueItemByVisit(_ context.Context, visitID uuid.UUID) (*QueueItem, error) {
	for _, item := range m.items {
		if item.VisitID == visitID {
			return item, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) ListByStatus(_ context.Context, status string) ([]*QueueItem, error) {
	var result []*QueueItem
	for _, item := range m.items {
		if item.Status == status {
			result = append(result, item)
		}
	}
	return result, nil
}

func (m *mockRepo) UpdateFee(_ context.Context, item *QueueItem) error {
	m.items[item.ID] = item
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	if item, ok := m.items[id]; ok {
		item.Status = status
	}
	return nil
}

func (m *mockRepo) SetPaid(_ context.Context, id uuid.UUID, paymentMethod, receiptNumber string) error {
	if item, ok := m.items[id]; ok {
		item.Status = StatusPaid
		item.PaymentStatus = PaymentPaid
		item.PaymentMethod = &paymentMethod
		item.ReceiptNumber = &receiptNumber
	}
	return nil
}

func (m *mockRepo) CountByStatus(_ context.Context, status string) (int, error) {
	items, _ := m.ListByStatus(context.Background(), status)
	return len(items), nil
}

func (m *mockRepo) NextReceiptNumber(_ context.Context) (string, error) {
	m.receiptSeq++
	return fmt.Sprintf("RCP-%06d", m.receiptSeq), nil
}

func (m *mockRepo) CreateReceipt(_ context.Context, r *Receipt) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.receipts[r.ID] = r
	return nil
}

func (m *mockRepo) GetReceipt(_ context.Context, id uuid.UUID) (*Receipt, error) {
	r, ok := m.receipts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockRepo) GetReceiptByQueueItem(_ context.Context, queueItemID uuid.UUID) (*Receipt, error) {
	for _, r := range m.receipts {
		if r.BillingQueueID == queueItemID {
			return r, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) MarkReceiptPrinted(_ context.Context, id uuid.UUID) error {
	if r, ok := m.receipts[id]; ok && r.PrintedAt == nil {
		now := time.Now()
		r.PrintedAt = &now
	}
	return nil
}

func (m *mockRepo) MarkReceiptWhatsAppSent(_ context.Context, id uuid.UUID) error {
	if r, ok := m.receipts[id]; ok && r.WhatsAppSentAt == nil {
		now := time.Now()
		r.WhatsAppSentAt = &now
	}
	return nil
}

func (m *mockRepo) CreateFeeHistory(_ context.Context, h *FeeHistory) error {
	h.ID = uuid.New()
	m.history = append(m.history, h)
	return nil
}

func (m *mockRepo) ListFeeHistoryByVisit(_ context.Context, visitID uuid.UUID) ([]*FeeHistory, error) {
	var result []*FeeHistory
	for _, h := range m.history {
		if h.VisitID == visitID {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *mockRepo) UpdateFeeHistoryFee(_ context.Context, patientID, visitID uuid.UUID, amount float64, feeType string) error {
	for _, h := range m.history {
		if h.PatientID == patientID && h.VisitID == visitID {
			h.Amount = amount
			h.FeeType = feeType
		}
	}
	return nil
}

// -- Mock collaborators --

type mockPharmacyQueue struct {
	prepared []*pharmacy.QueueItem
	statuses map[uuid.UUID]string
}

func newMockPharmacyQueue() *mockPharmacyQueue {
	return &mockPharmacyQueue{statuses: make(map[uuid.UUID]string)}
}

func (m *mockPharmacyQueue) ListPrepared(_ context.Context) ([]*pharmacy.QueueItem, error) {
	var result []*pharmacy.QueueItem
	for _, item := range m.prepared {
		if m.statuses[item.ID] == pharmacy.StatusPrepared {
			result = append(result, item)
		}
	}
	return result, nil
}

func (m *mockPharmacyQueue) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.statuses[id] = status
	return nil
}

func (m *mockPharmacyQueue) addPrepared(visitID, patientID uuid.UUID) *pharmacy.QueueItem {
	item := &pharmacy.QueueItem{
		ID:        uuid.New(),
		VisitID:   visitID,
		PatientID: patientID,
		Status:    pharmacy.StatusPrepared,
	}
	m.prepared = append(m.prepared, item)
	m.statuses[item.ID] = pharmacy.StatusPrepared
	return item
}

type mockVisits struct {
	visits map[uuid.UUID]*visit.Visit
}

func (m *mockVisits) GetByID(_ context.Context, id uuid.UUID) (*visit.Visit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return v, nil
}

type mockPatients struct{}

func (mockPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	return &patient.Patient{ID: id, Name: "Test Patient"}, nil
}

type mockAppointmentStore struct {
	fees     map[uuid.UUID]float64
	statuses map[uuid.UUID]string
}

func newMockAppointmentStore() *mockAppointmentStore {
	return &mockAppointmentStore{
		fees:     make(map[uuid.UUID]float64),
		statuses: make(map[uuid.UUID]string),
	}
}

func (m *mockAppointmentStore) UpdateFee(_ context.Context, id uuid.UUID, amount float64, feeType string) error {
	m.fees[id] = amount
	return nil
}

func (m *mockAppointmentStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.statuses[id] = status
	return nil
}

// Resolver source whose same-day appointments the test can change
// mid-flight to simulate late fee edits.
type mockFeeSource struct {
	sameDay []*appointment.Appointment
}

func (m *mockFeeSource) GetByID(_ context.Context, _ uuid.UUID) (*appointment.Appointment, error) {
	return nil, pgx.ErrNoRows
}

func (m *mockFeeSource) ListByPatientOnDay(_ context.Context, _ uuid.UUID, _ time.Time) ([]*appointment.Appointment, error) {
	return m.sameDay, nil
}

type testEnv struct {
	svc       *Service
	repo      *mockRepo
	pharmQ    *mockPharmacyQueue
	visits    *mockVisits
	appts     *mockAppointmentStore
	feeSource *mockFeeSource
}

func newTestEnv() *testEnv {
	repo := newMockRepo()
	pharmQ := newMockPharmacyQueue()
	visits := &mockVisits{visits: make(map[uuid.UUID]*visit.Visit)}
	appts := newMockAppointmentStore()
	feeSource := &mockFeeSource{}
	resolver := fees.NewResolver(feeSource, 500, 300)
	svc := NewService(repo, resolver, pharmQ, visits, mockPatients{}, appts, metrics.New(), zerolog.Nop())
	return &testEnv{svc: svc, repo: repo, pharmQ: pharmQ, visits: visits, appts: appts, feeSource: feeSource}
}

func (e *testEnv) addVisit(visitNumber int) *visit.Visit {
	v := &visit.Visit{ID: uuid.New(), PatientID: uuid.New(), VisitNumber: visitNumber}
	e.visits.visits[v.ID] = v
	return v
}

func TestAdmitFromPharmacy(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(1)
	item := env.pharmQ.addPrepared(v.ID, v.PatientID)

	created, err := env.svc.AdmitFromPharmacy(context.Background(), item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected a billing item to be created")
	}

	q, err := env.repo.GetQueueItemByVisit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("billing item not found: %v", err)
	}
	if q.Status != StatusPending || q.PaymentStatus != PaymentPending {
		t.Errorf("expected pending/pending, got %s/%s", q.Status, q.PaymentStatus)
	}
	if q.FeeAmount != 500 || q.FeeType != fees.TypeNewPatient {
		t.Errorf("expected (500, New Patient), got (%v, %s)", q.FeeAmount, q.FeeType)
	}
	if q.NetAmount != q.FeeAmount {
		t.Errorf("expected net amount equal to fee at admission, got %v", q.NetAmount)
	}
}

func TestAdmitFromPharmacy_Idempotent(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(2)
	item := env.pharmQ.addPrepared(v.ID, v.PatientID)

	env.svc.AdmitFromPharmacy(context.Background(), item)
	created, err := env.svc.AdmitFromPharmacy(context.Background(), item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected second admission to be a no-op")
	}
	if len(env.repo.items) != 1 {
		t.Errorf("expected 1 billing item, got %d", len(env.repo.items))
	}
}

func TestAdmitFromPharmacy_ChecksVisitNotStatus(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(2)
	item := env.pharmQ.addPrepared(v.ID, v.PatientID)

	// Walk the billing item through its whole lifecycle, then try admitting
	// the visit again as a re-prepared pharmacy item would.
	env.svc.AdmitFromPharmacy(context.Background(), item)
	q, _ := env.repo.GetQueueItemByVisit(context.Background(), v.ID)
	env.svc.GenerateReceipt(context.Background(), q.ID, "cash")
	env.svc.Complete(context.Background(), q.ID)

	created, err := env.svc.AdmitFromPharmacy(context.Background(), item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected completed visit to stay admitted, not get a second item")
	}
	if len(env.repo.items) != 1 {
		t.Errorf("expected 1 billing item for the visit, got %d", len(env.repo.items))
	}
}

func TestSweep(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(1)
	item := env.pharmQ.addPrepared(v.ID, v.PatientID)

	if err := env.svc.Sweep(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.repo.items) != 1 {
		t.Fatalf("expected 1 billing item after sweep, got %d", len(env.repo.items))
	}
	if env.pharmQ.statuses[item.ID] != pharmacy.StatusBilled {
		t.Errorf("expected pharmacy item marked billed, got %s", env.pharmQ.statuses[item.ID])
	}

	// A second sweep with no state change creates nothing.
	if err := env.svc.Sweep(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.repo.items) != 1 {
		t.Errorf("expected sweep to be idempotent, got %d items", len(env.repo.items))
	}
}

func TestStateMachine(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(2)
	apptID := uuid.New()
	pharmItem := env.pharmQ.addPrepared(v.ID, v.PatientID)
	pharmItem.AppointmentID = &apptID

	env.svc.AdmitFromPharmacy(context.Background(), pharmItem)
	q, _ := env.repo.GetQueueItemByVisit(context.Background(), v.ID)
	netBefore := q.NetAmount

	rec, err := env.svc.GenerateReceipt(context.Background(), q.ID, "cash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Status != StatusPaid {
		t.Errorf("expected paid, got %s", q.Status)
	}
	if rec.PaymentStatus != PaymentPaid {
		t.Errorf("expected receipt payment status paid, got %s", rec.PaymentStatus)
	}
	if q.NetAmount != netBefore {
		t.Errorf("expected net amount unchanged by payment, got %v", q.NetAmount)
	}
	if rec.ReceiptNumber != "RCP-000001" {
		t.Errorf("expected RCP-000001, got %s", rec.ReceiptNumber)
	}

	if err := env.svc.Complete(context.Background(), q.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", q.Status)
	}
	if env.appts.statuses[apptID] != "completed" {
		t.Errorf("expected linked appointment completed, got %s", env.appts.statuses[apptID])
	}
	history, _ := env.repo.ListFeeHistoryByVisit(context.Background(), v.ID)
	if len(history) != 1 {
		t.Fatalf("expected exactly one fee-history record, got %d", len(history))
	}
	if history[0].PaymentMethod != "cash" {
		t.Errorf("expected cash in history, got %s", history[0].PaymentMethod)
	}
	if history[0].FeeType != HistoryFollowUp {
		t.Errorf("expected follow-up bucket, got %s", history[0].FeeType)
	}

	if err := env.svc.Reopen(context.Background(), q.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Status != StatusPaid {
		t.Errorf("expected paid after reopen, got %s", q.Status)
	}
	history, _ = env.repo.ListFeeHistoryByVisit(context.Background(), v.ID)
	if len(history) != 1 {
		t.Errorf("expected the audit trail untouched by reopen, got %d records", len(history))
	}
}

func TestStateMachine_InvalidTransitions(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(1)
	env.svc.AdmitFromPharmacy(context.Background(), env.pharmQ.addPrepared(v.ID, v.PatientID))
	q, _ := env.repo.GetQueueItemByVisit(context.Background(), v.ID)

	if err := env.svc.Complete(context.Background(), q.ID); err == nil {
		t.Error("expected error completing a pending item")
	}
	if err := env.svc.Reopen(context.Background(), q.ID); err == nil {
		t.Error("expected error reopening a pending item")
	}

	env.svc.GenerateReceipt(context.Background(), q.ID, "cash")
	if _, err := env.svc.GenerateReceipt(context.Background(), q.ID, "cash"); err == nil {
		t.Error("expected error generating a second receipt for a paid item")
	}
}

func TestEditFee(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(1)
	apptID := uuid.New()
	pharmItem := env.pharmQ.addPrepared(v.ID, v.PatientID)
	pharmItem.AppointmentID = &apptID
	env.svc.AdmitFromPharmacy(context.Background(), pharmItem)
	q, _ := env.repo.GetQueueItemByVisit(context.Background(), v.ID)

	got, err := env.svc.EditFee(context.Background(), q.ID, 500, "", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FeeAmount != 500 {
		t.Errorf("expected fee 500 unchanged, got %v", got.FeeAmount)
	}
	if got.DiscountAmount != 100 {
		t.Errorf("expected discount 100, got %v", got.DiscountAmount)
	}
	if got.NetAmount != 400 {
		t.Errorf("expected net 400, got %v", got.NetAmount)
	}
	if env.appts.fees[apptID] != 500 {
		t.Errorf("expected fee back-propagated to the appointment, got %v", env.appts.fees[apptID])
	}
}

func TestEditFee_AllowedWhilePaid(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(1)
	env.svc.AdmitFromPharmacy(context.Background(), env.pharmQ.addPrepared(v.ID, v.PatientID))
	q, _ := env.repo.GetQueueItemByVisit(context.Background(), v.ID)
	env.svc.GenerateReceipt(context.Background(), q.ID, "cash")

	got, err := env.svc.EditFee(context.Background(), q.ID, 600, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusPaid {
		t.Errorf("expected status to stay paid after fee edit, got %s", got.Status)
	}

	env.svc.Complete(context.Background(), q.ID)
	if _, err := env.svc.EditFee(context.Background(), q.ID, 700, "", 0); err == nil {
		t.Error("expected error editing fee of a completed item")
	}
}

func TestListPending_ResyncsFee(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(1)
	env.svc.AdmitFromPharmacy(context.Background(), env.pharmQ.addPrepared(v.ID, v.PatientID))
	q, _ := env.repo.GetQueueItemByVisit(context.Background(), v.ID)
	env.svc.EditFee(context.Background(), q.ID, q.FeeAmount, "", 20)

	// The front desk records a fee on a same-day appointment after
	// admission; the pending listing must pick it up.
	amount := 350.0
	feeType := "Consultation"
	env.feeSource.sameDay = []*appointment.Appointment{{
		ID:        uuid.New(),
		PatientID: v.PatientID,
		Status:    appointment.StatusScheduled,
		FeeAmount: &amount,
		FeeType:   &feeType,
	}}

	entries, err := env.svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(entries))
	}
	got := entries[0]
	if got.FeeAmount != 350 || got.FeeType != "Consultation" {
		t.Errorf("expected resynced (350, Consultation), got (%v, %s)", got.FeeAmount, got.FeeType)
	}
	if got.DiscountAmount != 100 {
		t.Errorf("expected discount preserved, got %v", got.DiscountAmount)
	}
	if got.NetAmount != 250 {
		t.Errorf("expected net recomputed as fee minus discount (250), got %v", got.NetAmount)
	}
}

func TestReceiptAnnotationsAreWriteOnce(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(1)
	env.svc.AdmitFromPharmacy(context.Background(), env.pharmQ.addPrepared(v.ID, v.PatientID))
	q, _ := env.repo.GetQueueItemByVisit(context.Background(), v.ID)
	rec, _ := env.svc.GenerateReceipt(context.Background(), q.ID, "upi")

	if err := env.svc.MarkReceiptPrinted(context.Background(), rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := *rec.PrintedAt

	time.Sleep(time.Millisecond)
	if err := env.svc.MarkReceiptPrinted(context.Background(), rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.PrintedAt.Equal(first) {
		t.Error("expected printed_at to keep its first value")
	}
}
