package pharmacy

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/appointment"
	"github.com/clinicflow/clinicflow/internal/domain/patient"
	"github.com/clinicflow/clinicflow/internal/domain/visit"
	"github.com/clinicflow/clinicflow/internal/platform/metrics"
)

// -- Mock Repository --

type mockRepo struct {
	items map[uuid.UUID]*QueueItem
	seq   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*QueueItem)}
}

func (m *mockRepo) Create(_ context.Context, item *QueueItem) error {
	item.ID = uuid.New()
	m.seq++
	item.CreatedAt = time.Unix(int64(m.seq), 0)
	m.items[item.ID] = item
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*QueueItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return item, nil
}

func (m *mockRepo) GetActiveByVisit(_ context.Context, visitID uuid.UUID) (*QueueItem, error) {
	for _, item := range m.items {
		if item.VisitID == visitID && item.Status != StatusStopped {
			return item, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) listByStatus(statuses ...string) []*QueueItem {
	var result []*QueueItem
	for _, item := range m.items {
		for _, s := range statuses {
			if item.Status == s {
				result = append(result, item)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (m *mockRepo) ListActive(_ context.Context) ([]*QueueItem, error) {
	return m.listByStatus(StatusPending, StatusPreparing), nil
}

func (m *mockRepo) ListPrepared(_ context.Context) ([]*QueueItem, error) {
	return m.listByStatus(StatusPrepared), nil
}

func (m *mockRepo) ListBilled(_ context.Context) ([]*QueueItem, error) {
	return m.listByStatus(StatusBilled), nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	if item, ok := m.items[id]; ok {
		item.Status = status
	}
	return nil
}

func (m *mockRepo) MarkPrepared(_ context.Context, id uuid.UUID, preparedBy string) error {
	if item, ok := m.items[id]; ok {
		item.Status = StatusPrepared
		item.PreparedBy = &preparedBy
	}
	return nil
}

func (m *mockRepo) MarkStopped(_ context.Context, id uuid.UUID, reason string) error {
	if item, ok := m.items[id]; ok {
		item.Status = StatusStopped
		item.StopReason = &reason
	}
	return nil
}

func (m *mockRepo) SetPriority(_ context.Context, id uuid.UUID, priority bool) error {
	if item, ok := m.items[id]; ok {
		item.Priority = priority
	}
	return nil
}

func (m *mockRepo) SetLastSeenRev(_ context.Context, id uuid.UUID, rev int) error {
	if item, ok := m.items[id]; ok {
		item.LastSeenRev = rev
	}
	return nil
}

func (m *mockRepo) CountActive(_ context.Context) (int, error) {
	return len(m.listByStatus(StatusPending, StatusPreparing)), nil
}

// -- Mock collaborators --

type mockVisits struct {
	visits        map[uuid.UUID]*visit.Visit
	prescriptions map[uuid.UUID][]*visit.Prescription
}

func newMockVisits() *mockVisits {
	return &mockVisits{
		visits:        make(map[uuid.UUID]*visit.Visit),
		prescriptions: make(map[uuid.UUID][]*visit.Prescription),
	}
}

func (m *mockVisits) GetByID(_ context.Context, id uuid.UUID) (*visit.Visit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return v, nil
}

func (m *mockVisits) ListPrescriptionsByVisit(_ context.Context, visitID uuid.UUID) ([]*visit.Prescription, error) {
	return m.prescriptions[visitID], nil
}

func (m *mockVisits) add(visitNumber int) *visit.Visit {
	v := &visit.Visit{ID: uuid.New(), PatientID: uuid.New(), VisitNumber: visitNumber, Status: visit.StatusOpen}
	m.visits[v.ID] = v
	m.prescriptions[v.ID] = []*visit.Prescription{
		{ID: uuid.New(), VisitID: v.ID, Medicine: "Arnica"},
	}
	return v
}

type mockPatients struct{}

func (mockPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	return &patient.Patient{ID: id, Name: "Test Patient"}, nil
}

type mockAppointments struct {
	sameDay []*appointment.Appointment
	updated map[uuid.UUID]string
}

func newMockAppointments() *mockAppointments {
	return &mockAppointments{updated: make(map[uuid.UUID]string)}
}

func (m *mockAppointments) ListByPatientOnDay(_ context.Context, _ uuid.UUID, _ time.Time) ([]*appointment.Appointment, error) {
	return m.sameDay, nil
}

func (m *mockAppointments) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.updated[id] = status
	for _, a := range m.sameDay {
		if a.ID == id {
			a.Status = status
		}
	}
	return nil
}

type mockAdmitter struct {
	calls   int
	created bool
	err     error
}

func (m *mockAdmitter) AdmitFromPharmacy(_ context.Context, _ *QueueItem) (bool, error) {
	m.calls++
	return m.created, m.err
}

func newTestService() (*Service, *mockRepo, *mockVisits, *mockAppointments, *mockAdmitter) {
	repo := newMockRepo()
	visits := newMockVisits()
	appts := newMockAppointments()
	admitter := &mockAdmitter{created: true}
	svc := NewService(repo, visits, mockPatients{}, appts, metrics.New(), zerolog.Nop())
	svc.SetAdmitter(admitter)
	return svc, repo, visits, appts, admitter
}

func TestAdmit(t *testing.T) {
	svc, _, visits, _, _ := newTestService()
	v := visits.add(1)
	v.PrescriptionRev = 4

	item, err := svc.Admit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status != StatusPending {
		t.Errorf("expected pending, got %s", item.Status)
	}
	if len(item.PrescriptionIDs) != 1 {
		t.Errorf("expected prescription snapshot, got %d ids", len(item.PrescriptionIDs))
	}
	if item.LastSeenRev != 4 {
		t.Errorf("expected watermark at visit revision 4, got %d", item.LastSeenRev)
	}
}

func TestAdmit_OneActiveItemPerVisit(t *testing.T) {
	svc, repo, visits, _, _ := newTestService()
	v := visits.add(1)

	first, _ := svc.Admit(context.Background(), v.ID)
	second, err := svc.Admit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Error("expected second admission to return the existing item")
	}
	if len(repo.items) != 1 {
		t.Errorf("expected 1 queue item, got %d", len(repo.items))
	}
}

func TestAdmit_StoppedItemDoesNotBlock(t *testing.T) {
	svc, repo, visits, _, _ := newTestService()
	v := visits.add(1)

	first, _ := svc.Admit(context.Background(), v.ID)
	svc.Stop(context.Background(), first.ID, "out of stock")

	second, err := svc.Admit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a fresh item after stop")
	}
	if len(repo.items) != 2 {
		t.Errorf("expected 2 items, got %d", len(repo.items))
	}
}

func TestListActive_PriorityThenFIFO(t *testing.T) {
	svc, _, visits, _, _ := newTestService()

	a, _ := svc.Admit(context.Background(), visits.add(1).ID)
	b, _ := svc.Admit(context.Background(), visits.add(1).ID)
	c, _ := svc.Admit(context.Background(), visits.add(1).ID)
	svc.SetPriority(context.Background(), c.ID, true)

	entries, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != c.ID {
		t.Error("expected the priority item first despite its later creation")
	}
	if entries[1].ID != a.ID || entries[2].ID != b.ID {
		t.Error("expected FIFO order among equal-priority items")
	}
}

func TestListActive_FlagsDoctorEdits(t *testing.T) {
	svc, _, visits, _, _ := newTestService()
	v := visits.add(1)

	item, _ := svc.Admit(context.Background(), v.ID)

	entries, _ := svc.ListActive(context.Background())
	if entries[0].HasUpdates {
		t.Error("expected no updates right after admission")
	}

	// Doctor edits prescriptions after admission.
	v.PrescriptionRev++

	entries, _ = svc.ListActive(context.Background())
	if !entries[0].HasUpdates {
		t.Error("expected hasUpdates after the visit revision moved past the watermark")
	}

	svc.AcknowledgeUpdates(context.Background(), item.ID)
	entries, _ = svc.ListActive(context.Background())
	if entries[0].HasUpdates {
		t.Error("expected acknowledge to clear the flag")
	}
}

func TestStartPreparing(t *testing.T) {
	svc, repo, visits, _, _ := newTestService()
	item, _ := svc.Admit(context.Background(), visits.add(1).ID)

	if err := svc.StartPreparing(context.Background(), item.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.items[item.ID].Status != StatusPreparing {
		t.Errorf("expected preparing, got %s", repo.items[item.ID].Status)
	}

	// Already preparing: a second call changes nothing.
	if err := svc.StartPreparing(context.Background(), item.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.items[item.ID].Status != StatusPreparing {
		t.Errorf("expected preparing, got %s", repo.items[item.ID].Status)
	}
}

func TestTransitions_MissingIDIsNoOp(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	id := uuid.New()

	if err := svc.StartPreparing(context.Background(), id); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
	if err := svc.MarkPrepared(context.Background(), id, "someone"); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
	if err := svc.Reopen(context.Background(), id); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
	if err := svc.Stop(context.Background(), id, "reason"); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestMarkPrepared(t *testing.T) {
	svc, repo, visits, appts, admitter := newTestService()
	v := visits.add(1)
	sameDay := &appointment.Appointment{ID: uuid.New(), PatientID: v.PatientID, Status: appointment.StatusCompleted}
	appts.sameDay = []*appointment.Appointment{sameDay}

	item, _ := svc.Admit(context.Background(), v.ID)
	svc.StartPreparing(context.Background(), item.ID)

	if err := svc.MarkPrepared(context.Background(), item.ID, "pharm1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := repo.items[item.ID]
	if got.Status != StatusBilled {
		t.Errorf("expected billed after inline admission, got %s", got.Status)
	}
	if got.PreparedBy == nil || *got.PreparedBy != "pharm1" {
		t.Errorf("expected preparedBy pharm1, got %v", got.PreparedBy)
	}
	if admitter.calls != 1 {
		t.Errorf("expected 1 billing admission call, got %d", admitter.calls)
	}
	if appts.updated[sameDay.ID] != appointment.StatusMedicinesPrepared {
		t.Errorf("expected same-day appointment advanced, got %s", appts.updated[sameDay.ID])
	}
}

func TestMarkPrepared_AdmissionFailureLeavesPrepared(t *testing.T) {
	svc, repo, visits, _, admitter := newTestService()
	admitter.err = fmt.Errorf("billing unavailable")
	item, _ := svc.Admit(context.Background(), visits.add(1).ID)

	if err := svc.MarkPrepared(context.Background(), item.ID, "pharm1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.items[item.ID].Status != StatusPrepared {
		t.Errorf("expected item left prepared for the sweep, got %s", repo.items[item.ID].Status)
	}
}

func TestReopen(t *testing.T) {
	svc, repo, visits, appts, _ := newTestService()
	v := visits.add(1)
	sameDay := &appointment.Appointment{ID: uuid.New(), PatientID: v.PatientID, Status: appointment.StatusCompleted}
	appts.sameDay = []*appointment.Appointment{sameDay}

	item, _ := svc.Admit(context.Background(), v.ID)
	svc.MarkPrepared(context.Background(), item.ID, "pharm1")

	if err := svc.Reopen(context.Background(), item.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.items[item.ID].Status != StatusPending {
		t.Errorf("expected pending after reopen, got %s", repo.items[item.ID].Status)
	}
	if sameDay.Status != appointment.StatusCompleted {
		t.Errorf("expected medicines-prepared reverted to completed, got %s", sameDay.Status)
	}
}

func TestStop_RecordsReason(t *testing.T) {
	svc, repo, visits, _, _ := newTestService()
	item, _ := svc.Admit(context.Background(), visits.add(1).ID)

	if err := svc.Stop(context.Background(), item.ID, "patient left"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := repo.items[item.ID]
	if got.Status != StatusStopped {
		t.Errorf("expected stopped, got %s", got.Status)
	}
	if got.StopReason == nil || *got.StopReason != "patient left" {
		t.Errorf("expected stop reason recorded, got %v", got.StopReason)
	}

	// Stopped is terminal.
	if err := svc.StartPreparing(context.Background(), item.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.items[item.ID].Status != StatusStopped {
		t.Error("expected stopped item to stay stopped")
	}
}

func TestMarkDelivered(t *testing.T) {
	svc, repo, visits, _, _ := newTestService()
	item, _ := svc.Admit(context.Background(), visits.add(1).ID)
	svc.MarkPrepared(context.Background(), item.ID, "pharm1")

	if err := svc.MarkDelivered(context.Background(), item.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.items[item.ID].Status != StatusDelivered {
		t.Errorf("expected delivered, got %s", repo.items[item.ID].Status)
	}
}

func TestRefresh(t *testing.T) {
	svc, _, visits, _, _ := newTestService()
	svc.Admit(context.Background(), visits.add(1).ID)

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
