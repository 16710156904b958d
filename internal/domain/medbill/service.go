package medbill

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "medbill").Logger(),
	}
}

// Save computes totals from the submitted items and upserts the bill for
// the billing queue item. Every priced line item also refreshes the amount
// memory for its (medicine, potency) pair.
func (s *Service) Save(ctx context.Context, queueItemID uuid.UUID, items []LineItem, discountPercent, taxPercent float64) (*Bill, error) {
	if queueItemID == uuid.Nil {
		return nil, fmt.Errorf("billing_queue_id is required")
	}
	if discountPercent < 0 || discountPercent > 100 || taxPercent < 0 {
		return nil, fmt.Errorf("invalid discount or tax percent")
	}
	for _, item := range items {
		if item.Medicine == "" {
			return nil, fmt.Errorf("every line item needs a medicine name")
		}
		if item.Amount < 0 {
			return nil, fmt.Errorf("line item amount must not be negative")
		}
	}

	totals := Calculate(items, discountPercent, taxPercent)
	bill := &Bill{
		BillingQueueID:  queueItemID,
		Items:           items,
		DiscountPercent: discountPercent,
		TaxPercent:      taxPercent,
		Subtotal:        totals.Subtotal,
		DiscountAmount:  totals.DiscountAmount,
		TaxAmount:       totals.TaxAmount,
		GrandTotal:      totals.GrandTotal,
		Status:          StatusSaved,
	}
	if existing, err := s.repo.GetBillByQueueItem(ctx, queueItemID); err == nil {
		bill.ID = existing.ID
	}
	if err := s.repo.UpsertBill(ctx, bill); err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.Amount <= 0 {
			continue
		}
		if err := s.repo.UpsertAmountMemory(ctx, item.Medicine, item.Potency, item.Amount); err != nil {
			s.logger.Warn().Err(err).Str("medicine", item.Medicine).Msg("amount memory upsert failed")
		}
	}
	return bill, nil
}

func (s *Service) GetByQueueItem(ctx context.Context, queueItemID uuid.UUID) (*Bill, error) {
	return s.repo.GetBillByQueueItem(ctx, queueItemID)
}

func (s *Service) MarkPaid(ctx context.Context, queueItemID uuid.UUID) error {
	bill, err := s.repo.GetBillByQueueItem(ctx, queueItemID)
	if err != nil {
		return fmt.Errorf("medicine bill not found: %w", err)
	}
	return s.repo.UpdateBillStatus(ctx, bill.ID, StatusPaid)
}

// Suggest returns the last amount charged for the exact (medicine, potency)
// pair, or a fuzzy medicine-name search when no exact match exists.
func (s *Service) Suggest(ctx context.Context, medicine, potency string) ([]*AmountMemory, error) {
	if medicine == "" {
		return nil, fmt.Errorf("medicine is required")
	}
	if m, err := s.repo.GetAmountMemory(ctx, medicine, potency); err == nil {
		return []*AmountMemory{m}, nil
	}
	return s.repo.SearchAmountMemory(ctx, medicine, 10)
}
