package pharmacy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicflow/clinicflow/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const queueCols = `id, visit_id, patient_id, appointment_id, prescription_ids, status, priority, prepared_by, stop_reason, last_seen_rev, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, item *QueueItem) error {
	item.ID = uuid.New()
	ids, err := json.Marshal(item.PrescriptionIDs)
	if err != nil {
		return fmt.Errorf("marshal prescription ids: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO pharmacy_queue (id, visit_id, patient_id, appointment_id, prescription_ids, status, priority, last_seen_rev)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		item.ID, item.VisitID, item.PatientID, item.AppointmentID, ids, item.Status, item.Priority, item.LastSeenRev,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*QueueItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+queueCols+` FROM pharmacy_queue WHERE id = $1`, id))
}

func (r *repoPG) GetActiveByVisit(ctx context.Context, visitID uuid.UUID) (*QueueItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+queueCols+` FROM pharmacy_queue WHERE visit_id = $1 AND status <> 'stopped'`, visitID))
}

func (r *repoPG) ListActive(ctx context.Context) ([]*QueueItem, error) {
	return r.listByStatus(ctx, StatusPending, StatusPreparing)
}

func (r *repoPG) ListPrepared(ctx context.Context) ([]*QueueItem, error) {
	return r.listByStatus(ctx, StatusPrepared)
}

func (r *repoPG) ListBilled(ctx context.Context) ([]*QueueItem, error) {
	return r.listByStatus(ctx, StatusBilled)
}

func (r *repoPG) listByStatus(ctx context.Context, statuses ...string) ([]*QueueItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+queueCols+` FROM pharmacy_queue
		WHERE status = ANY($1)
		ORDER BY priority DESC, created_at ASC`,
		statuses,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE pharmacy_queue SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) MarkPrepared(ctx context.Context, id uuid.UUID, preparedBy string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE pharmacy_queue SET status=$2, prepared_by=$3, updated_at=NOW() WHERE id = $1`,
		id, StatusPrepared, preparedBy)
	return err
}

func (r *repoPG) MarkStopped(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE pharmacy_queue SET status=$2, stop_reason=$3, updated_at=NOW() WHERE id = $1`,
		id, StatusStopped, reason)
	return err
}

func (r *repoPG) SetPriority(ctx context.Context, id uuid.UUID, priority bool) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE pharmacy_queue SET priority=$2, updated_at=NOW() WHERE id = $1`, id, priority)
	return err
}

func (r *repoPG) SetLastSeenRev(ctx context.Context, id uuid.UUID, rev int) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE pharmacy_queue SET last_seen_rev=$2, updated_at=NOW() WHERE id = $1`, id, rev)
	return err
}

func (r *repoPG) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM pharmacy_queue WHERE status IN ('pending','preparing')`).Scan(&count)
	return count, err
}

func scanItem(row pgx.Row) (*QueueItem, error) {
	var item QueueItem
	var ids []byte
	err := row.Scan(
		&item.ID, &item.VisitID, &item.PatientID, &item.AppointmentID, &ids,
		&item.Status, &item.Priority, &item.PreparedBy, &item.StopReason,
		&item.LastSeenRev, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if err := json.Unmarshal(ids, &item.PrescriptionIDs); err != nil {
			return nil, fmt.Errorf("unmarshal prescription ids: %w", err)
		}
	}
	return &item, nil
}

func collectItems(rows pgx.Rows) ([]*QueueItem, error) {
	items := []*QueueItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
