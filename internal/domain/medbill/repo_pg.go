package medbill

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

const billCols = `id, billing_queue_id, items, discount_percent, tax_percent, subtotal, discount_amount, tax_amount, grand_total, status, created_at, updated_at`

func (r *repoPG) UpsertBill(ctx context.Context, b *Bill) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	items, err := json.Marshal(b.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO medicine_bill (id, billing_queue_id, items, discount_percent, tax_percent,
			subtotal, discount_amount, tax_amount, grand_total, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (billing_queue_id) DO UPDATE SET
			items = EXCLUDED.items,
			discount_percent = EXCLUDED.discount_percent,
			tax_percent = EXCLUDED.tax_percent,
			subtotal = EXCLUDED.subtotal,
			discount_amount = EXCLUDED.discount_amount,
			tax_amount = EXCLUDED.tax_amount,
			grand_total = EXCLUDED.grand_total,
			status = EXCLUDED.status,
			updated_at = NOW()`,
		b.ID, b.BillingQueueID, items, b.DiscountPercent, b.TaxPercent,
		b.Subtotal, b.DiscountAmount, b.TaxAmount, b.GrandTotal, b.Status,
	)
	return err
}

func (r *repoPG) GetBillByQueueItem(ctx context.Context, queueItemID uuid.UUID) (*Bill, error) {
	var b Bill
	var items []byte
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+billCols+` FROM medicine_bill WHERE billing_queue_id = $1`, queueItemID,
	).Scan(
		&b.ID, &b.BillingQueueID, &items, &b.DiscountPercent, &b.TaxPercent,
		&b.Subtotal, &b.DiscountAmount, &b.TaxAmount, &b.GrandTotal, &b.Status,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &b.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	return &b, nil
}

func (r *repoPG) UpdateBillStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE medicine_bill SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) UpsertAmountMemory(ctx context.Context, medicine, potency string, amount float64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medicine_amount_memory (medicine, potency, amount, updated_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (medicine, potency) DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_at = NOW()`,
		medicine, potency, amount,
	)
	return err
}

func (r *repoPG) GetAmountMemory(ctx context.Context, medicine, potency string) (*AmountMemory, error) {
	var m AmountMemory
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT medicine, potency, amount, updated_at
		FROM medicine_amount_memory
		WHERE medicine = $1 AND potency = $2`,
		medicine, potency,
	).Scan(&m.Medicine, &m.Potency, &m.Amount, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) SearchAmountMemory(ctx context.Context, medicine string, limit int) ([]*AmountMemory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT medicine, potency, amount, updated_at
		FROM medicine_amount_memory
		WHERE medicine ILIKE '%' || $1 || '%'
		ORDER BY medicine, potency
		LIMIT $2`,
		medicine, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []*AmountMemory{}
	for rows.Next() {
		var m AmountMemory
		if err := rows.Scan(&m.Medicine, &m.Potency, &m.Amount, &m.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, &m)
	}
	return results, rows.Err()
}
