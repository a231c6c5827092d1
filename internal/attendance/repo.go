package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/store"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, subject_id, date, check_in_at, check_in_photo, check_out_at, check_out_photo, location_verified, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.SubjectID, &rec.Date, &rec.CheckInAt, &rec.CheckInPhoto,
		&rec.CheckOutAt, &rec.CheckOutPhoto, &rec.LocationVerified, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

// Find returns the record for subject on date, or nil when absent.
func (r *Repository) Find(ctx context.Context, subjectID, date string) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE subject_id = $1 AND date = $2
	`, subjectID, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Create inserts a new record. A duplicate (subject, date) is store.ErrConflict.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	created, err := scanRecord(r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, subject_id, date, check_in_at, check_in_photo, check_out_at, check_out_photo, location_verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+recordColumns,
		rec.ID, rec.SubjectID, rec.Date, rec.CheckInAt, rec.CheckInPhoto, rec.CheckOutAt, rec.CheckOutPhoto, rec.LocationVerified))
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Record{}, store.ErrConflict
		}
		return Record{}, err
	}
	return created, nil
}

// Update replaces the mutable fields of the record keyed by (subject, date).
func (r *Repository) Update(ctx context.Context, rec Record) (Record, error) {
	updated, err := scanRecord(r.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET check_in_at = $3, check_in_photo = $4, check_out_at = $5, check_out_photo = $6,
			location_verified = $7, updated_at = NOW()
		WHERE subject_id = $1 AND date = $2
		RETURNING `+recordColumns,
		rec.SubjectID, rec.Date, rec.CheckInAt, rec.CheckInPhoto, rec.CheckOutAt, rec.CheckOutPhoto, rec.LocationVerified))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, store.ErrNotFound
		}
		return Record{}, err
	}
	return updated, nil
}

// DeleteBySubject removes every record of a subject.
func (r *Repository) DeleteBySubject(ctx context.Context, subjectID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE subject_id = $1`, subjectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByDate returns the records of one day ordered by check-in time.
func (r *Repository) ListByDate(ctx context.Context, date string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE date = $1
		ORDER BY check_in_at NULLS FIRST
	`, date)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	res := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CheckInIfAbsent inserts the record or fills a record without check-in in
// one statement.
func (r *Repository) CheckInIfAbsent(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	saved, err := scanRecord(r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, subject_id, date, check_in_at, check_in_photo, location_verified)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (subject_id, date) DO UPDATE SET
			check_in_at = EXCLUDED.check_in_at,
			check_in_photo = EXCLUDED.check_in_photo,
			location_verified = EXCLUDED.location_verified,
			updated_at = NOW()
		WHERE attendance_records.check_in_at IS NULL
		RETURNING `+recordColumns,
		rec.ID, rec.SubjectID, rec.Date, rec.CheckInAt, rec.CheckInPhoto, rec.LocationVerified))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, store.ErrConflict
		}
		return Record{}, err
	}
	return saved, nil
}

// CheckOutIfAbsent sets check-out only on a checked-in record that has none.
func (r *Repository) CheckOutIfAbsent(ctx context.Context, subjectID, date string, at time.Time, photo string) (Record, error) {
	saved, err := scanRecord(r.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET check_out_at = $3, check_out_photo = $4, updated_at = NOW()
		WHERE subject_id = $1 AND date = $2 AND check_in_at IS NOT NULL AND check_out_at IS NULL
		RETURNING `+recordColumns,
		subjectID, date, at, photo))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}

	current, ferr := r.Find(ctx, subjectID, date)
	if ferr != nil {
		return Record{}, fmt.Errorf("check-out lookup: %w", ferr)
	}
	if current == nil || current.CheckInAt == nil {
		return Record{}, store.ErrNotFound
	}
	return Record{}, store.ErrConflict
}
