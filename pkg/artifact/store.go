package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

var tracer = otel.Tracer("pptxd/artifact")

// Options configures a Store. Zero values take defaults.
type Options struct {
	TTL    time.Duration
	Sealer Sealer
	Events Publisher
	Logger zerolog.Logger
	Now    func() time.Time
	// PublicBaseURL roots the streaming handle of sealed artifacts, whose
	// stored bytes are ciphertext and must not be linked directly.
	PublicBaseURL string
}

// Store is the artifact lifecycle: put, get, resolve and sweep.
type Store struct {
	backend Backend
	catalog Catalog
	sealer  Sealer
	events  Publisher
	ttl     time.Duration
	log     zerolog.Logger
	now     func() time.Time
	baseURL string
}

// PutOption adjusts a single Put.
type PutOption func(*Artifact)

// WithMeta attaches free-form metadata to the record.
func WithMeta(meta map[string]any) PutOption {
	return func(a *Artifact) { a.Meta = meta }
}

// New builds a Store over backend and catalog.
func New(backend Backend, catalog Catalog, opts Options) *Store {
	s := &Store{
		backend: backend,
		catalog: catalog,
		sealer:  opts.Sealer,
		events:  opts.Events,
		ttl:     opts.TTL,
		log:     opts.Logger,
		now:     opts.Now,
		baseURL: opts.PublicBaseURL,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// TTL is the lifetime given to new artifacts.
func (s *Store) TTL() time.Duration { return s.ttl }

// Backend names the configured blob backend.
func (s *Store) Backend() string { return s.backend.Name() }

// Put stores data under a fresh id and records it with the store's TTL.
func (s *Store) Put(ctx context.Context, data []byte, filename string, opts ...PutOption) (Artifact, error) {
	ctx, span := tracer.Start(ctx, "artifact.put")
	defer span.End()

	id := uuid.NewString()
	now := s.now().UTC()
	a := Artifact{
		ID:        id,
		Filename:  filename,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Backend:   s.backend.Name(),
		Key:       BlobKey(id),
		Size:      int64(len(data)),
		SHA256:    checksum(data),
	}
	for _, opt := range opts {
		opt(&a)
	}
	span.SetAttributes(attribute.String("artifact.id", id), attribute.Int64("artifact.size", a.Size))

	payload := data
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(data)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Artifact{}, fmt.Errorf("seal artifact: %w", err)
		}
		payload = sealed
		a.Sealed = true
	}

	loc, err := s.backend.Put(ctx, a.Key, payload, pptxContentType)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Artifact{}, &UnavailableError{Op: "put", Err: err}
	}
	a.Location = loc

	if err := s.catalog.Insert(ctx, a); err != nil {
		if derr := s.backend.Delete(ctx, a.Key); derr != nil {
			s.log.Warn().Err(derr).Str("artifact_id", id).Msg("orphaned blob after catalog failure")
		}
		span.SetStatus(codes.Error, err.Error())
		return Artifact{}, &UnavailableError{Op: "put", Err: err}
	}

	s.publish(ctx, SubjectCreated, a)
	s.log.Info().Str("artifact_id", id).Str("filename", filename).Int64("size", a.Size).Time("expires_at", a.ExpiresAt).Msg("artifact stored")
	return a, nil
}

// Lookup returns the record for id, enforcing expiry.
func (s *Store) Lookup(ctx context.Context, id string) (Artifact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Artifact{}, ErrNotFound
	}
	a, err := s.catalog.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, &UnavailableError{Op: "lookup", Err: err}
	}
	if a.Expired(s.now()) {
		return a, ErrExpired
	}
	return a, nil
}

// Get returns the bytes stored for id. Expiry is decided from the record
// before the backend is touched.
func (s *Store) Get(ctx context.Context, id string) ([]byte, Artifact, error) {
	a, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, a, err
	}

	data, err := s.backend.Get(ctx, a.Key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, a, ErrNotFound
		}
		return nil, a, &UnavailableError{Op: "get", Err: err}
	}
	if a.Sealed {
		if s.sealer == nil {
			return nil, a, fmt.Errorf("artifact %s is sealed and no identity is configured", id)
		}
		if data, err = s.sealer.Open(data); err != nil {
			return nil, a, fmt.Errorf("open sealed artifact %s: %w", id, err)
		}
	}
	if a.SHA256 != "" && checksum(data) != a.SHA256 {
		return nil, a, fmt.Errorf("artifact %s checksum mismatch", id)
	}
	return data, a, nil
}

// ResolveHandle returns a download URL for id valid for its remaining
// lifetime. Sealed artifacts resolve to the streaming route so the bytes are
// opened before they are served.
func (s *Store) ResolveHandle(ctx context.Context, id string) (string, error) {
	a, err := s.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	if a.Sealed {
		if s.baseURL == "" {
			return "", &UnavailableError{Op: "resolve", Err: errors.New("sealed artifacts need a public base URL")}
		}
		return DownloadURL(s.baseURL, a.ID), nil
	}
	ttl := min(a.ExpiresAt.Sub(s.now()), MaxHandleTTL)
	if ttl < time.Second {
		ttl = time.Second
	}
	url, err := s.backend.Handle(ctx, a, ttl)
	if err != nil {
		return "", &UnavailableError{Op: "resolve", Err: err}
	}
	return url, nil
}

// Sweep deletes the bytes of every expired artifact and returns how many
// were deleted. Records are kept as tombstones until RecordGrace has passed
// so reads keep answering ErrExpired, then purged by a later sweep.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.catalog.Expired(ctx, now)
	if err != nil {
		return 0, &UnavailableError{Op: "sweep", Err: err}
	}

	var (
		removed int
		errs    []error
	)
	for _, a := range expired {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		purge := !now.Before(a.ExpiresAt.Add(RecordGrace))
		if a.SweptAt == nil {
			if err := s.backend.Delete(ctx, a.Key); err != nil {
				errs = append(errs, fmt.Errorf("delete blob %s: %w", a.ID, err))
				continue
			}
			if !purge {
				if err := s.catalog.MarkSwept(ctx, a.ID, now.UTC()); err != nil {
					errs = append(errs, fmt.Errorf("mark record %s: %w", a.ID, err))
					continue
				}
			}
			removed++
			s.publish(ctx, SubjectExpired, a)
		}
		if purge {
			if err := s.catalog.Remove(ctx, a.ID); err != nil {
				errs = append(errs, fmt.Errorf("remove record %s: %w", a.ID, err))
			}
		}
	}
	if len(errs) > 0 {
		return removed, &UnavailableError{Op: "sweep", Err: errors.Join(errs...)}
	}
	return removed, nil
}

func (s *Store) publish(ctx context.Context, subject string, a Artifact) {
	if s.events == nil {
		return
	}
	ev := Event{ID: a.ID, Filename: a.Filename, Backend: a.Backend, Size: a.Size, ExpiresAt: a.ExpiresAt, At: s.now().UTC()}
	if err := s.events.Publish(ctx, subject, ev); err != nil {
		s.log.Warn().Err(err).Str("subject", subject).Str("artifact_id", a.ID).Msg("publish artifact event")
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
