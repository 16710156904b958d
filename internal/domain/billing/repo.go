package billing

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateQueueItem(ctx context.Context, item *QueueItem) error
	GetQueueItem(ctx context.Context, id uuid.UUID) (*QueueItem, error)
	// GetQueueItemByVisit matches on visit id alone, never on status. This
	// backs the one-item-per-visit invariant.
	GetQueueItemByVisit(ctx context.Context, visitID uuid.UUID) (*QueueItem, error)
	ListByStatus(ctx context.Context, status string) ([]*QueueItem, error)
	UpdateFee(ctx context.Context, item *QueueItem) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SetPaid(ctx context.Context, id uuid.UUID, paymentMethod, receiptNumber string) error
	CountByStatus(ctx context.Context, status string) (int, error)

	// NextReceiptNumber allocates the next number from the receipt sequence,
	// formatted for printing.
	NextReceiptNumber(ctx context.Context) (string, error)
	CreateReceipt(ctx context.Context, r *Receipt) error
	GetReceipt(ctx context.Context, id uuid.UUID) (*Receipt, error)
	GetReceiptByQueueItem(ctx context.Context, queueItemID uuid.UUID) (*Receipt, error)
	MarkReceiptPrinted(ctx context.Context, id uuid.UUID) error
	MarkReceiptWhatsAppSent(ctx context.Context, id uuid.UUID) error

	CreateFeeHistory(ctx context.Context, h *FeeHistory) error
	ListFeeHistoryByVisit(ctx context.Context, visitID uuid.UUID) ([]*FeeHistory, error)
	// UpdateFeeHistoryFee is the best-effort back-propagation target of fee
	// edits; matching zero rows is not an error.
	UpdateFeeHistoryFee(ctx context.Context, patientID, visitID uuid.UUID, amount float64, feeType string) error
}
