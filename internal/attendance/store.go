package attendance

import (
	"context"
	"time"
)

// RecordStore persists daily records keyed by (subject, date).
//
// Find returns nil, nil when no record exists. Create fails with
// store.ErrConflict when the key is taken; Update fails with
// store.ErrNotFound when it is not.
type RecordStore interface {
	Find(ctx context.Context, subjectID, date string) (*Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	DeleteBySubject(ctx context.Context, subjectID string) (int64, error)
	ListByDate(ctx context.Context, date string) ([]Record, error)
}

// ConditionalStore performs the transitions as single atomic writes, closing
// the read-then-write window of RecordStore.
//
// CheckInIfAbsent creates the record, or fills in a record that has no
// check-in yet; it fails with store.ErrConflict when check-in is already set.
// CheckOutIfAbsent sets check-out on a checked-in record; it fails with
// store.ErrNotFound when there is no checked-in record and store.ErrConflict
// when check-out is already set.
type ConditionalStore interface {
	CheckInIfAbsent(ctx context.Context, rec Record) (Record, error)
	CheckOutIfAbsent(ctx context.Context, subjectID, date string, at time.Time, photo string) (Record, error)
}

// Subjects confirms that a subject exists.
type Subjects interface {
	Exists(ctx context.Context, id string) (bool, error)
}
