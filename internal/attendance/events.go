package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/evidence"
	"geoattend/internal/queue"
)

const eventTypePrefix = "attendance."

// Event describes a completed transition.
type Event struct {
	ID             string        `json:"id"`
	SubjectID      string        `json:"subject_id"`
	Date           string        `json:"date"`
	Type           Type          `json:"type"`
	Evidence       evidence.Kind `json:"evidence"`
	DistanceMeters float64       `json:"distance_meters"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

// Message encodes the event for the queue.
func (e Event) Message() (queue.Message, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: eventTypePrefix + string(e.Type), Body: body}, nil
}

// DecodeEvent reads an attendance event. ok is false for foreign messages.
func DecodeEvent(msg queue.Message) (evt Event, ok bool, err error) {
	if !strings.HasPrefix(msg.Type, eventTypePrefix) {
		return Event{}, false, nil
	}
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return Event{}, true, err
	}
	return evt, true, nil
}

// AuditSink records processed events.
type AuditSink interface {
	Append(ctx context.Context, evt Event) error
}

// LogAudit writes events to a logger.
type LogAudit struct {
	Logger *slog.Logger
}

func (a LogAudit) Append(_ context.Context, evt Event) error {
	a.Logger.Info("attendance event",
		"event_id", evt.ID,
		"subject_id", evt.SubjectID,
		"date", evt.Date,
		"type", evt.Type,
		"evidence", evt.Evidence,
		"distance_m", evt.DistanceMeters,
	)
	return nil
}

// AuditRepository appends events to the attendance_audit table.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append is idempotent on the event id.
func (r *AuditRepository) Append(ctx context.Context, evt Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_audit (id, subject_id, date, action, evidence, distance_m, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, evt.SubjectID, evt.Date, string(evt.Type), string(evt.Evidence), evt.DistanceMeters, evt.OccurredAt)
	return err
}

// ConsumeEvents drains q into sink until ctx is done or the queue closes.
func ConsumeEvents(ctx context.Context, q queue.Queue, sink AuditSink, logger *slog.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		evt, ok, err := DecodeEvent(msg)
		if !ok {
			continue
		}
		if err != nil {
			logger.Warn("dropping malformed attendance event", "type", msg.Type, "error", err)
			continue
		}
		if err := sink.Append(ctx, evt); err != nil {
			logger.Error("audit append failed", "event_id", evt.ID, "error", err)
		}
	}
	return nil
}
