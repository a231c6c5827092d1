package subject

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"geoattend/internal/apperr"
	"geoattend/internal/store"
)

const (
	CodeNotFound           = "subject_not_found"
	CodeUsernameTaken      = "username_taken"
	CodeInvalidCredentials = "invalid_credentials"
	CodeWrongPassword      = "wrong_password"
	CodeInvalidInput       = "invalid_input"
)

// Service implements login, password changes and the student registry.
type Service struct {
	store    Store
	purger   AttendancePurger
	hashCost int
	logger   *slog.Logger
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. purger removes attendance history when a
// subject is deleted and may be nil.
func NewService(st Store, purger AttendancePurger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		purger:   purger,
		hashCost: bcrypt.DefaultCost,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exists reports whether id names a subject.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate checks username and password. Unknown usernames and wrong
// passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Subject, error) {
	sub, err := s.store.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return Subject{}, invalidCredentials()
	}
	if err != nil {
		return Subject{}, s.internal(err, "find by username", "Server error")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(sub.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Subject{}, invalidCredentials()
		}
		return Subject{}, s.internal(err, "compare password", "Server error")
	}
	return sub, nil
}

// ChangePassword replaces the password of id after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(sub.PasswordHash), []byte(current)); err != nil {
		return apperr.Unauthorized(CodeWrongPassword, "Current password incorrect")
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	sub.PasswordHash = hash
	if _, err := s.store.Update(ctx, sub); err != nil {
		return s.internal(err, "update password", "Error changing password")
	}
	return nil
}

// Register creates a student profile.
func (s *Service) Register(ctx context.Context, in NewStudent) (Subject, error) {
	return s.create(ctx, RoleStudent, in)
}

func (s *Service) create(ctx context.Context, role Role, in NewStudent) (Subject, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Username == "" || in.FullName == "" {
		return Subject{}, apperr.BadRequest(CodeInvalidInput, "username and full name are required")
	}
	if in.AssignedShift == "" {
		in.AssignedShift = ShiftMorning
	}
	if !validShift(in.AssignedShift) {
		return Subject{}, apperr.BadRequest(CodeInvalidInput, "assigned shift must be morning or afternoon")
	}
	if in.FeeStatus == "" {
		in.FeeStatus = DefaultFeeStatus
	}
	if in.RecordStatus == "" {
		in.RecordStatus = DefaultRecordStatus
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return Subject{}, err
	}

	sub, err := s.store.Create(ctx, Subject{
		Username:      in.Username,
		PasswordHash:  hash,
		Role:          role,
		FullName:      in.FullName,
		AssignedShift: in.AssignedShift,
		FeeStatus:     in.FeeStatus,
		DueDate:       in.DueDate,
		DueAmount:     in.DueAmount,
		PaidFees:      in.PaidFees,
		FeeRemarks:    in.FeeRemarks,
		RecordStatus:  in.RecordStatus,
		PendingDocs:   in.PendingDocs,
	})
	if errors.Is(err, store.ErrConflict) {
		return Subject{}, apperr.Conflict(CodeUsernameTaken, "Username already exists")
	}
	if err != nil {
		return Subject{}, s.internal(err, "create subject", "Error registering student")
	}
	return sub, nil
}

// Get returns the subject with id.
func (s *Service) Get(ctx context.Context, id string) (Subject, error) {
	sub, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Subject{}, notFound()
	}
	if err != nil {
		return Subject{}, s.internal(err, "get subject", "Error fetching details")
	}
	return sub, nil
}

// ListStudents returns every student profile.
func (s *Service) ListStudents(ctx context.Context) ([]Subject, error) {
	subs, err := s.store.ListByRole(ctx, RoleStudent)
	if err != nil {
		return nil, s.internal(err, "list students", "Error fetching students")
	}
	return subs, nil
}

// Update applies the non-nil fields of c. A new password is re-hashed.
func (s *Service) Update(ctx context.Context, id string, c Changes) (Subject, error) {
	if c.AssignedShift != nil && !validShift(*c.AssignedShift) {
		return Subject{}, apperr.BadRequest(CodeInvalidInput, "assigned shift must be morning or afternoon")
	}
	if c.FullName != nil && strings.TrimSpace(*c.FullName) == "" {
		return Subject{}, apperr.BadRequest(CodeInvalidInput, "full name cannot be empty")
	}
	sub, err := s.Get(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	c.apply(&sub)
	if c.Password != nil && *c.Password != "" {
		hash, err := s.hash(*c.Password)
		if err != nil {
			return Subject{}, err
		}
		sub.PasswordHash = hash
	}
	updated, err := s.store.Update(ctx, sub)
	if errors.Is(err, store.ErrNotFound) {
		return Subject{}, notFound()
	}
	if err != nil {
		return Subject{}, s.internal(err, "update subject", "Error updating student")
	}
	return updated, nil
}

// Delete removes the subject and every attendance record it owns.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound()
	}
	if err != nil {
		return s.internal(err, "delete subject", "Error deleting student")
	}
	if s.purger == nil {
		return nil
	}
	n, err := s.purger.DeleteBySubject(ctx, id)
	if err != nil {
		return s.internal(err, "purge attendance", "Error deleting student")
	}
	s.logger.Info("subject deleted", "subject_id", id, "attendance_records", n)
	return nil
}

// EnsureAdmin creates the bootstrap administrator when username is set and
// not yet registered.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}
	existing, err := s.store.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.Role != RoleAdmin {
			return fmt.Errorf("bootstrap admin %q exists with role %s", username, existing.Role)
		}
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}
	if _, err := s.create(ctx, RoleAdmin, NewStudent{Username: username, Password: password, FullName: "Administrator"}); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	s.logger.Info("bootstrap admin created", "username", username)
	return nil
}

func (s *Service) hash(password string) (string, error) {
	if password == "" {
		return "", apperr.BadRequest(CodeInvalidInput, "password is required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.BadRequest(CodeInvalidInput, "password is too long")
		}
		return "", s.internal(err, "hash password", "Server error")
	}
	return string(hashed), nil
}

func (s *Service) internal(err error, op, msg string) error {
	s.logger.Error("subject operation failed", "op", op, "error", err)
	return apperr.Internal(fmt.Errorf("%s: %w", op, err), msg)
}

func notFound() error {
	return apperr.NotFound(CodeNotFound, "Student not found")
}

func invalidCredentials() error {
	return apperr.Unauthorized(CodeInvalidCredentials, "Invalid credentials")
}
