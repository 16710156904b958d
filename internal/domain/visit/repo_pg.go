package visit

import (
	"context"

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

const visitCols = `id, patient_id, appointment_id, visit_number, complaint, diagnosis, advice, status, prescription_rev, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit (id, patient_id, appointment_id, visit_number, complaint, diagnosis, advice, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.PatientID, v.AppointmentID, v.VisitNumber, v.Complaint, v.Diagnosis, v.Advice, v.Status,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visit WHERE id = $1`, id))
}

// Update writes the doctor-authored clinical fields only; visit_number and
// patient linkage never change after creation.
func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit SET complaint=$2, diagnosis=$3, advice=$4, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.Complaint, v.Diagnosis, v.Advice,
	)
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE visit SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visit WHERE patient_id = $1`, patientID).Scan(&count)
	return count, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visit WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visit WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisitRow(rows)
		if err != nil {
			return nil, 0, err
		}
		visits = append(visits, v)
	}
	return visits, total, nil
}

const rxCols = `id, visit_id, row_order, medicine, potency, dose, frequency, duration, bottles, quantity, combination, created_at, updated_at`

func (r *repoPG) CreatePrescription(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription (id, visit_id, row_order, medicine, potency, dose, frequency, duration, bottles, quantity, combination)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.VisitID, p.RowOrder, p.Medicine, p.Potency, p.Dose, p.Frequency, p.Duration, p.Bottles, p.Quantity, p.Combination,
	)
	if err != nil {
		return err
	}
	return r.bumpRev(ctx, p.VisitID)
}

func (r *repoPG) UpdatePrescription(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET
			row_order=$2, medicine=$3, potency=$4, dose=$5, frequency=$6, duration=$7,
			bottles=$8, quantity=$9, combination=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.RowOrder, p.Medicine, p.Potency, p.Dose, p.Frequency, p.Duration,
		p.Bottles, p.Quantity, p.Combination,
	)
	if err != nil {
		return err
	}
	return r.bumpRev(ctx, p.VisitID)
}

func (r *repoPG) DeletePrescription(ctx context.Context, id uuid.UUID) error {
	var visitID uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`DELETE FROM prescription WHERE id = $1 RETURNING visit_id`, id).Scan(&visitID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return err
	}
	return r.bumpRev(ctx, visitID)
}

func (r *repoPG) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanRx(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescription WHERE id = $1`, id))
}

func (r *repoPG) ListPrescriptionsByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+rxCols+` FROM prescription WHERE visit_id = $1 ORDER BY row_order`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rxs []*Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.VisitID, &p.RowOrder, &p.Medicine, &p.Potency, &p.Dose,
			&p.Frequency, &p.Duration, &p.Bottles, &p.Quantity, &p.Combination, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		rxs = append(rxs, &p)
	}
	return rxs, nil
}

func (r *repoPG) bumpRev(ctx context.Context, visitID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE visit SET prescription_rev = prescription_rev + 1, updated_at=NOW() WHERE id = $1`, visitID)
	return err
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.PatientID, &v.AppointmentID, &v.VisitNumber, &v.Complaint,
		&v.Diagnosis, &v.Advice, &v.Status, &v.PrescriptionRev, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanVisitRow(rows pgx.Rows) (*Visit, error) {
	var v Visit
	err := rows.Scan(&v.ID, &v.PatientID, &v.AppointmentID, &v.VisitNumber, &v.Complaint,
		&v.Diagnosis, &v.Advice, &v.Status, &v.PrescriptionRev, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanRx(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.VisitID, &p.RowOrder, &p.Medicine, &p.Potency, &p.Dose,
		&p.Frequency, &p.Duration, &p.Bottles, &p.Quantity, &p.Combination, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
