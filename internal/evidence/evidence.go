// Package evidence attaches photo evidence to attendance events. Uploads are
// best effort: any failure degrades to keeping the raw payload, and callers
// never receive an error.
package evidence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"geoattend/internal/metrics"
)

// ErrNotConfigured is reported when no upload backend is available.
var ErrNotConfigured = errors.New("evidence: uploader not configured")

// DefaultTimeout bounds a single upload attempt.
const DefaultTimeout = 10 * time.Second

// Photo is a decoded data URI. Data holds the base64 payload without prefix.
type Photo struct {
	MIME string
	Data string
}

// ParsePhoto splits a "data:<mime>;base64,<payload>" string. Input without a
// data URI prefix is returned as the payload with an empty MIME type.
func ParsePhoto(raw string) Photo {
	if !strings.HasPrefix(raw, "data:") {
		return Photo{Data: raw}
	}
	idx := strings.Index(raw, ";base64,")
	if idx < 0 {
		return Photo{Data: raw}
	}
	return Photo{MIME: raw[len("data:"):idx], Data: raw[idx+len(";base64,"):]}
}

// DataURI rebuilds the data URI form, defaulting to JPEG.
func (p Photo) DataURI() string {
	mime := p.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + p.Data
}

// Uploader hosts a photo and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, p Photo) (string, error)
}

// Kind classifies the result of an attachment.
type Kind string

const (
	Skipped     Kind = "skipped"
	Uploaded    Kind = "uploaded"
	FallbackRaw Kind = "fallback_raw"
)

// Outcome is the typed result of Attach. Err holds the swallowed upload
// failure for FallbackRaw outcomes.
type Outcome struct {
	Kind      Kind
	Reference string
	Err       error
}

// Store wraps an Uploader with fallback semantics.
type Store struct {
	uploader Uploader
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Store)

func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a Store. A nil uploader is allowed; every photo then
// falls back to its raw form.
func NewStore(u Uploader, opts ...Option) *Store {
	s := &Store{
		uploader: u,
		timeout:  DefaultTimeout,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach uploads raw and returns a reference to it.
func (s *Store) Attach(ctx context.Context, raw string) Outcome {
	out := s.attach(ctx, raw)
	s.metrics.ObserveEvidence(string(out.Kind))
	if out.Err != nil {
		s.logger.Warn("photo upload failed, keeping raw payload", "error", out.Err)
	}
	return out
}

func (s *Store) attach(ctx context.Context, raw string) Outcome {
	if raw == "" {
		return Outcome{Kind: Skipped}
	}
	if s.uploader == nil {
		return Outcome{Kind: FallbackRaw, Reference: raw, Err: ErrNotConfigured}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url, err := s.uploader.Upload(ctx, ParsePhoto(raw))
	if err != nil {
		return Outcome{Kind: FallbackRaw, Reference: raw, Err: err}
	}
	if url == "" {
		return Outcome{Kind: FallbackRaw, Reference: raw, Err: errors.New("evidence: upload returned empty url")}
	}
	return Outcome{Kind: Uploaded, Reference: url}
}
