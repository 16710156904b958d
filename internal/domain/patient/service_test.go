package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	seq      int
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.seq++
	p.RegNumber = fmt.Sprintf("P-%05d", m.seq)
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockRepo) Search(_ context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func TestRegister(t *testing.T) {
	svc := NewService(newMockRepo())

	p := &Patient{Name: "Asha Verma"}
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.RegNumber != "P-00001" {
		t.Errorf("expected registration number P-00001, got %s", p.RegNumber)
	}
}

func TestRegister_NameRequired(t *testing.T) {
	svc := NewService(newMockRepo())

	if err := svc.Register(context.Background(), &Patient{}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestSearch_EmptyQueryLists(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.Register(context.Background(), &Patient{Name: "Asha Verma"})
	svc.Register(context.Background(), &Patient{Name: "Ravi Kumar"})

	all, total, err := svc.Search(context.Background(), "", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Errorf("expected both patients, got %d", total)
	}

	matched, total, err := svc.Search(context.Background(), "ravi", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || matched[0].Name != "Ravi Kumar" {
		t.Errorf("expected Ravi Kumar, got %+v", matched)
	}
}
