package billing

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

const queueCols = `id, visit_id, patient_id, appointment_id, prescription_ids, fee_amount, fee_type, discount_percent, discount_amount, net_amount, payment_method, payment_status, status, receipt_number, created_at, updated_at`

func (r *repoPG) CreateQueueItem(ctx context.Context, item *QueueItem) error {
	item.ID = uuid.New()
	ids, err := json.Marshal(item.PrescriptionIDs)
	if err != nil {
		return fmt.Errorf("marshal prescription ids: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO billing_queue (id, visit_id, patient_id, appointment_id, prescription_ids,
			fee_amount, fee_type, discount_percent, discount_amount, net_amount, payment_status, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		item.ID, item.VisitID, item.PatientID, item.AppointmentID, ids,
		item.FeeAmount, item.FeeType, item.DiscountPercent, item.DiscountAmount,
		item.NetAmount, item.PaymentStatus, item.Status,
	)
	return err
}

func (r *repoPG) GetQueueItem(ctx context.Context, id uuid.UUID) (*QueueItem, error) {
	return scanQueueItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+queueCols+` FROM billing_queue WHERE id = $1`, id))
}

func (r *repoPG) GetQueueItemByVisit(ctx context.Context, visitID uuid.UUID) (*QueueItem, error) {
	return scanQueueItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+queueCols+` FROM billing_queue WHERE visit_id = $1`, visitID))
}

func (r *repoPG) ListByStatus(ctx context.Context, status string) ([]*QueueItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+queueCols+` FROM billing_queue WHERE status = $1 ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*QueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateFee(ctx context.Context, item *QueueItem) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE billing_queue
		SET fee_amount=$2, fee_type=$3, discount_percent=$4, discount_amount=$5,
		    net_amount=$6, payment_status=$7, updated_at=NOW()
		WHERE id = $1`,
		item.ID, item.FeeAmount, item.FeeType, item.DiscountPercent,
		item.DiscountAmount, item.NetAmount, item.PaymentStatus,
	)
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE billing_queue SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) SetPaid(ctx context.Context, id uuid.UUID, paymentMethod, receiptNumber string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE billing_queue
		SET status=$2, payment_status=$3, payment_method=$4, receipt_number=$5, updated_at=NOW()
		WHERE id = $1`,
		id, StatusPaid, PaymentPaid, paymentMethod, receiptNumber,
	)
	return err
}

func (r *repoPG) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM billing_queue WHERE status = $1`, status).Scan(&count)
	return count, err
}

func (r *repoPG) NextReceiptNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('receipt_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("RCP-%06d", n), nil
}

const receiptCols = `id, billing_queue_id, visit_id, patient_id, receipt_number, fee_amount, discount_amount, net_amount, fee_type, payment_method, payment_status, printed_at, whatsapp_sent_at, created_at`

func (r *repoPG) CreateReceipt(ctx context.Context, rec *Receipt) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO billing_receipt (id, billing_queue_id, visit_id, patient_id, receipt_number,
			fee_amount, discount_amount, net_amount, fee_type, payment_method, payment_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.BillingQueueID, rec.VisitID, rec.PatientID, rec.ReceiptNumber,
		rec.FeeAmount, rec.DiscountAmount, rec.NetAmount, rec.FeeType,
		rec.PaymentMethod, rec.PaymentStatus,
	)
	return err
}

func (r *repoPG) GetReceipt(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	return scanReceipt(r.conn(ctx).QueryRow(ctx,
		`SELECT `+receiptCols+` FROM billing_receipt WHERE id = $1`, id))
}

func (r *repoPG) GetReceiptByQueueItem(ctx context.Context, queueItemID uuid.UUID) (*Receipt, error) {
	return scanReceipt(r.conn(ctx).QueryRow(ctx, `
		SELECT `+receiptCols+` FROM billing_receipt
		WHERE billing_queue_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, queueItemID))
}

func (r *repoPG) MarkReceiptPrinted(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE billing_receipt SET printed_at = NOW() WHERE id = $1 AND printed_at IS NULL`, id)
	return err
}

func (r *repoPG) MarkReceiptWhatsAppSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE billing_receipt SET whatsapp_sent_at = NOW() WHERE id = $1 AND whatsapp_sent_at IS NULL`, id)
	return err
}

const historyCols = `id, patient_id, visit_id, receipt_id, fee_type, amount, payment_method, payment_status, paid_date, created_at`

func (r *repoPG) CreateFeeHistory(ctx context.Context, h *FeeHistory) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO fee_history (id, patient_id, visit_id, receipt_id, fee_type, amount, payment_method, payment_status, paid_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		h.ID, h.PatientID, h.VisitID, h.ReceiptID, h.FeeType, h.Amount,
		h.PaymentMethod, h.PaymentStatus, h.PaidDate,
	)
	return err
}

func (r *repoPG) ListFeeHistoryByVisit(ctx context.Context, visitID uuid.UUID) ([]*FeeHistory, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+historyCols+` FROM fee_history WHERE visit_id = $1 ORDER BY created_at ASC`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []*FeeHistory{}
	for rows.Next() {
		var h FeeHistory
		if err := rows.Scan(
			&h.ID, &h.PatientID, &h.VisitID, &h.ReceiptID, &h.FeeType, &h.Amount,
			&h.PaymentMethod, &h.PaymentStatus, &h.PaidDate, &h.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &h)
	}
	return records, rows.Err()
}

func (r *repoPG) UpdateFeeHistoryFee(ctx context.Context, patientID, visitID uuid.UUID, amount float64, feeType string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE fee_history SET amount=$3, fee_type=$4
		WHERE patient_id = $1 AND visit_id = $2`,
		patientID, visitID, amount, feeType,
	)
	return err
}

func scanQueueItem(row pgx.Row) (*QueueItem, error) {
	var item QueueItem
	var ids []byte
	err := row.Scan(
		&item.ID, &item.VisitID, &item.PatientID, &item.AppointmentID, &ids,
		&item.FeeAmount, &item.FeeType, &item.DiscountPercent, &item.DiscountAmount,
		&item.NetAmount, &item.PaymentMethod, &item.PaymentStatus, &item.Status,
		&item.ReceiptNumber, &item.CreatedAt, &item.UpdatedAt,
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

func scanReceipt(row pgx.Row) (*Receipt, error) {
	var rec Receipt
	err := row.Scan(
		&rec.ID, &rec.BillingQueueID, &rec.VisitID, &rec.PatientID, &rec.ReceiptNumber,
		&rec.FeeAmount, &rec.DiscountAmount, &rec.NetAmount, &rec.FeeType,
		&rec.PaymentMethod, &rec.PaymentStatus, &rec.PrintedAt, &rec.WhatsAppSentAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
