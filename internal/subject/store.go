package subject

import "context"

// Store persists subjects. Create fails with store.ErrConflict on a taken
// username; lookups, Update and Delete fail with store.ErrNotFound.
type Store interface {
	Create(ctx context.Context, s Subject) (Subject, error)
	Get(ctx context.Context, id string) (Subject, error)
	GetByUsername(ctx context.Context, username string) (Subject, error)
	Update(ctx context.Context, s Subject) (Subject, error)
	Delete(ctx context.Context, id string) error
	ListByRole(ctx context.Context, role Role) ([]Subject, error)
}

// AttendancePurger removes the attendance history of a subject.
type AttendancePurger interface {
	DeleteBySubject(ctx context.Context, subjectID string) (int64, error)
}
