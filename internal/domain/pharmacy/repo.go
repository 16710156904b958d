package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, item *QueueItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*QueueItem, error)
	// GetActiveByVisit returns the visit's non-stopped queue item, or
	// pgx.ErrNoRows when none exists.
	GetActiveByVisit(ctx context.Context, visitID uuid.UUID) (*QueueItem, error)
	// ListActive returns pending and preparing items, priority first, then
	// oldest first. ListPrepared and ListBilled use the same order.
	ListActive(ctx context.Context) ([]*QueueItem, error)
	ListPrepared(ctx context.Context) ([]*QueueItem, error)
	ListBilled(ctx context.Context) ([]*QueueItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkPrepared(ctx context.Context, id uuid.UUID, preparedBy string) error
	MarkStopped(ctx context.Context, id uuid.UUID, reason string) error
	SetPriority(ctx context.Context, id uuid.UUID, priority bool) error
	SetLastSeenRev(ctx context.Context, id uuid.UUID, rev int) error
	CountActive(ctx context.Context) (int, error)
}
