package subject

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"geoattend/internal/store"
)

// Repository persists subjects in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const subjectColumns = `id, username, password_hash, role, full_name, assigned_shift, fee_status, due_date,
	due_amount, paid_fees, fee_remarks, record_status, pending_docs, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(row rowScanner) (Subject, error) {
	var s Subject
	err := row.Scan(&s.ID, &s.Username, &s.PasswordHash, &s.Role, &s.FullName, &s.AssignedShift,
		&s.FeeStatus, &s.DueDate, &s.DueAmount, &s.PaidFees, &s.FeeRemarks, &s.RecordStatus,
		&s.PendingDocs, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, store.ErrNotFound
	}
	return s, err
}

func (r *Repository) Create(ctx context.Context, s Subject) (Subject, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	created, err := scanSubject(r.db.QueryRowContext(ctx, `
		INSERT INTO subjects (id, username, password_hash, role, full_name, assigned_shift, fee_status,
			due_date, due_amount, paid_fees, fee_remarks, record_status, pending_docs)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING `+subjectColumns,
		s.ID, s.Username, s.PasswordHash, string(s.Role), s.FullName, s.AssignedShift, s.FeeStatus,
		s.DueDate, s.DueAmount, s.PaidFees, s.FeeRemarks, s.RecordStatus, s.PendingDocs))
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Subject{}, store.ErrConflict
		}
		return Subject{}, err
	}
	return created, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Subject, error) {
	return scanSubject(r.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id))
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (Subject, error) {
	return scanSubject(r.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE username = $1`, username))
}

func (r *Repository) Update(ctx context.Context, s Subject) (Subject, error) {
	return scanSubject(r.db.QueryRowContext(ctx, `
		UPDATE subjects
		SET password_hash = $2, role = $3, full_name = $4, assigned_shift = $5, fee_status = $6,
			due_date = $7, due_amount = $8, paid_fees = $9, fee_remarks = $10, record_status = $11,
			pending_docs = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING `+subjectColumns,
		s.ID, s.PasswordHash, string(s.Role), s.FullName, s.AssignedShift, s.FeeStatus,
		s.DueDate, s.DueAmount, s.PaidFees, s.FeeRemarks, s.RecordStatus, s.PendingDocs))
}

// Delete removes the subject; attendance rows go with it through the
// foreign key.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) ListByRole(ctx context.Context, role Role) ([]Subject, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE role = $1 ORDER BY username`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Subject{}
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
