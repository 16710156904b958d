package medbill

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// UpsertBill creates the bill for its billing queue item or replaces the
	// existing one in place.
	UpsertBill(ctx context.Context, b *Bill) error
	GetBillByQueueItem(ctx context.Context, queueItemID uuid.UUID) (*Bill, error)
	UpdateBillStatus(ctx context.Context, id uuid.UUID, status string) error

	UpsertAmountMemory(ctx context.Context, medicine, potency string, amount float64) error
	GetAmountMemory(ctx context.Context, medicine, potency string) (*AmountMemory, error)
	SearchAmountMemory(ctx context.Context, medicine string, limit int) ([]*AmountMemory, error)
}
