package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"geoattend/internal/apperr"
	"geoattend/internal/evidence"
	"geoattend/internal/geofence"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/store"
	"geoattend/internal/verification"
)

// Error codes reported by Mark.
const (
	CodeUnknownType         = "unknown_type"
	CodeSubjectNotFound     = "subject_not_found"
	CodeNoVerification      = "no_verification"
	CodeInvalidVerification = "invalid_verification"
	CodeMissingLocation     = "missing_location"
	CodeLocationMismatch    = "location_mismatch"
	CodeAlreadyCheckedIn    = "already_checked_in"
	CodeMustCheckInFirst    = "must_check_in_first"
	CodeAlreadyCheckedOut   = "already_checked_out"
)

// Attacher stores photo evidence; it never fails the caller.
type Attacher interface {
	Attach(ctx context.Context, raw string) evidence.Outcome
}

// Service coordinates attendance marking: verification, geofencing, evidence
// and the daily check-in/check-out state machine.
//
// Marks for the same subject and day are not serialized in process. With the
// plain RecordStore path two concurrent check-ins can both pass the
// duplicate check; the unique (subject, date) key turns the losing insert
// into AlreadyCheckedIn. WithConditionalWrites uses ConditionalStore to make
// every transition a single atomic write.
type Service struct {
	records     RecordStore
	conditional ConditionalStore
	subjects    Subjects
	fence       geofence.Fence
	verifier    verification.Verifier
	evidence    Attacher
	events      queue.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Service)

func WithVerifier(v verification.Verifier) Option {
	return func(s *Service) { s.verifier = v }
}

func WithEvidence(a Attacher) Option {
	return func(s *Service) { s.evidence = a }
}

func WithEvents(p queue.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConditionalWrites switches to atomic transitions when records
// implements ConditionalStore.
func WithConditionalWrites(enabled bool) Option {
	return func(s *Service) {
		if !enabled {
			s.conditional = nil
			return
		}
		if cs, ok := s.records.(ConditionalStore); ok {
			s.conditional = cs
		}
	}
}

// NewService creates a service enforcing fence.
func NewService(records RecordStore, subjects Subjects, fence geofence.Fence, opts ...Option) *Service {
	s := &Service{
		records:  records,
		subjects: subjects,
		fence:    fence,
		verifier: verification.PresenceOnly{},
		evidence: evidence.NewStore(nil),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current record date.
func (s *Service) Today() string {
	return s.now().UTC().Format(DateLayout)
}

// Mark applies a check-in or check-out for the current day. Validation
// failures are returned before anything is written.
func (s *Service) Mark(ctx context.Context, in MarkInput) (Result, error) {
	res, err := s.mark(ctx, in)
	outcome := "ok"
	if err != nil {
		outcome = apperr.CodeOf(err)
	}
	// Label values must stay a fixed set.
	label := string(in.Type)
	if !in.Type.Valid() {
		label = "invalid"
	}
	s.metrics.ObserveMark(label, outcome)
	return res, err
}

func (s *Service) mark(ctx context.Context, in MarkInput) (Result, error) {
	exists, err := s.subjects.Exists(ctx, in.SubjectID)
	if err != nil {
		return Result{}, s.internal(err, "subject lookup")
	}
	if !exists {
		return Result{}, apperr.NotFound(CodeSubjectNotFound, "User not found")
	}

	if in.VerificationToken == "" {
		return Result{}, apperr.Forbidden(CodeNoVerification, "No QR Code detected.")
	}
	if err := s.verifier.Verify(ctx, in.VerificationToken); err != nil {
		return Result{}, apperr.Forbidden(CodeInvalidVerification, "QR Code not recognized.")
	}

	if in.Latitude == nil || in.Longitude == nil {
		return Result{}, apperr.BadRequest(CodeMissingLocation, "GPS data required.")
	}
	distance, within := s.fence.Check(geofence.Coordinate{Latitude: *in.Latitude, Longitude: *in.Longitude})
	s.metrics.ObserveDistance(distance, within)
	if !within {
		e := apperr.Forbidden(CodeLocationMismatch,
			fmt.Sprintf("Location mismatch (%.0fm). Please stay at the office.", distance))
		e.DistanceMeters = &distance
		return Result{}, e
	}

	// Rejected before the upload so a hopeless request has no side effect.
	if !in.Type.Valid() {
		return Result{}, apperr.BadRequest(CodeUnknownType, "type must be checkin or checkout")
	}

	ev := s.evidence.Attach(ctx, in.Photo)

	now := s.now().UTC()
	date := now.Format(DateLayout)

	apply := s.apply
	if s.conditional != nil {
		apply = s.applyConditional
	}
	rec, err := apply(ctx, in.SubjectID, in.Type, date, now, ev.Reference)
	if err != nil {
		return Result{}, err
	}

	s.publish(ctx, Event{
		SubjectID:      in.SubjectID,
		Date:           date,
		Type:           in.Type,
		Evidence:       ev.Kind,
		DistanceMeters: distance,
		OccurredAt:     now,
	})

	return Result{
		Action:         in.Type.Action(),
		Date:           date,
		Record:         rec,
		Evidence:       string(ev.Kind),
		DistanceMeters: distance,
	}, nil
}

// apply runs the state machine as read-then-write against RecordStore.
func (s *Service) apply(ctx context.Context, subjectID string, t Type, date string, now time.Time, photo string) (Record, error) {
	existing, err := s.records.Find(ctx, subjectID, date)
	if err != nil {
		return Record{}, s.internal(err, "find record")
	}

	if t == CheckIn {
		if existing != nil && existing.CheckInAt != nil {
			return Record{}, alreadyCheckedIn()
		}
		if existing == nil {
			rec, err := s.records.Create(ctx, Record{
				SubjectID:        subjectID,
				Date:             date,
				CheckInAt:        &now,
				CheckInPhoto:     photo,
				LocationVerified: true,
			})
			if errors.Is(err, store.ErrConflict) {
				return Record{}, alreadyCheckedIn()
			}
			if err != nil {
				return Record{}, s.internal(err, "create record")
			}
			return rec, nil
		}
		// A record without a check-in should not exist; repair it in place.
		existing.CheckInAt = &now
		existing.CheckInPhoto = photo
		existing.LocationVerified = true
		rec, err := s.records.Update(ctx, *existing)
		if err != nil {
			return Record{}, s.internal(err, "update record")
		}
		return rec, nil
	}

	if existing == nil || existing.CheckInAt == nil {
		return Record{}, mustCheckInFirst()
	}
	if existing.CheckOutAt != nil {
		return Record{}, alreadyCheckedOut()
	}
	existing.CheckOutAt = &now
	existing.CheckOutPhoto = photo
	rec, err := s.records.Update(ctx, *existing)
	if err != nil {
		return Record{}, s.internal(err, "update record")
	}
	return rec, nil
}

func (s *Service) applyConditional(ctx context.Context, subjectID string, t Type, date string, now time.Time, photo string) (Record, error) {
	if t == CheckIn {
		rec, err := s.conditional.CheckInIfAbsent(ctx, Record{
			SubjectID:        subjectID,
			Date:             date,
			CheckInAt:        &now,
			CheckInPhoto:     photo,
			LocationVerified: true,
		})
		switch {
		case errors.Is(err, store.ErrConflict):
			return Record{}, alreadyCheckedIn()
		case err != nil:
			return Record{}, s.internal(err, "conditional check-in")
		}
		return rec, nil
	}

	rec, err := s.conditional.CheckOutIfAbsent(ctx, subjectID, date, now, photo)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Record{}, mustCheckInFirst()
	case errors.Is(err, store.ErrConflict):
		return Record{}, alreadyCheckedOut()
	case err != nil:
		return Record{}, s.internal(err, "conditional check-out")
	}
	return rec, nil
}

// ListToday returns the records of the current day.
func (s *Service) ListToday(ctx context.Context) ([]Record, error) {
	recs, err := s.records.ListByDate(ctx, s.Today())
	if err != nil {
		return nil, s.internal(err, "list records")
	}
	return recs, nil
}

func (s *Service) publish(ctx context.Context, evt Event) {
	if s.events == nil {
		return
	}
	msg, err := evt.Message()
	if err == nil {
		err = s.events.Publish(ctx, msg)
	}
	if err != nil {
		s.logger.Warn("attendance event not published", "subject_id", evt.SubjectID, "error", err)
	}
}

func (s *Service) internal(err error, op string) error {
	s.logger.Error("attendance persistence failed", "op", op, "error", err)
	return apperr.Internal(fmt.Errorf("%s: %w", op, err), "Error marking attendance")
}

func alreadyCheckedIn() error {
	return apperr.BadRequest(CodeAlreadyCheckedIn, "Already checked in for today.")
}

func mustCheckInFirst() error {
	return apperr.BadRequest(CodeMustCheckInFirst, "Must check in before checking out.")
}

func alreadyCheckedOut() error {
	return apperr.BadRequest(CodeAlreadyCheckedOut, "Already checked out for today.")
}
