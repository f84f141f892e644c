// Package artifact stores generated presentations for time-limited download.
//
// A Store couples one blob Backend (S3 or local filesystem, chosen once at
// start-up) with a Catalog holding the metadata record of every artifact.
// Expiry is enforced on every read and by a periodic Sweep.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultTTL is how long an artifact stays downloadable.
	DefaultTTL = 24 * time.Hour
	// MaxHandleTTL caps presigned URL lifetimes, the SigV4 limit.
	MaxHandleTTL = 7 * 24 * time.Hour
	// RecordGrace is how long a swept record is kept so reads keep
	// reporting ErrExpired rather than ErrNotFound.
	RecordGrace = 24 * time.Hour

	BlobPrefix = "presentations/"
	MetaPrefix = "metadata/"

	SubjectCreated = "pptxd.artifacts.created"
	SubjectExpired = "pptxd.artifacts.expired"
)

var (
	// ErrNotFound means no record or no blob exists for the id.
	ErrNotFound = errors.New("artifact not found")
	// ErrExpired means the artifact outlived its TTL, whether or not the
	// bytes are still physically present.
	ErrExpired = errors.New("artifact expired")
)

// UnavailableError wraps a backend or catalog failure. On writes it is fatal
// to the request; on reads it is transient.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("artifact storage unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Artifact is the metadata record of one stored presentation.
type Artifact struct {
	ID        string         `json:"id"`
	Filename  string         `json:"filename"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Backend   string         `json:"backend"`
	Location  string         `json:"location"`
	Key       string         `json:"key"`
	Size      int64          `json:"size"`
	SHA256    string         `json:"sha256"`
	Sealed    bool           `json:"sealed"`
	Meta      map[string]any `json:"meta,omitempty"`
	// SweptAt is set once the bytes are deleted; the record stays until
	// ExpiresAt+RecordGrace.
	SweptAt *time.Time `json:"swept_at,omitempty"`
}

// Expired reports whether now is past the expiry time.
func (a Artifact) Expired(now time.Time) bool { return now.After(a.ExpiresAt) }

// BlobKey is the backend key of an artifact's bytes.
func BlobKey(id string) string { return BlobPrefix + id + ".pptx" }

// DownloadURL is the service's own streaming route for id.
func DownloadURL(baseURL, id string) string {
	return strings.TrimSuffix(baseURL, "/") + "/download/" + id
}

// MetaKey is the backend key of a sidecar metadata record.
func MetaKey(id string) string { return MetaPrefix + id + ".json" }

// Backend stores opaque blobs by key.
type Backend interface {
	Name() string
	// Put writes data and returns a backend-native location.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get returns ErrNotFound when key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete succeeds when key is already gone.
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	// Handle returns a retrieval URL valid for at least ttl.
	Handle(ctx context.Context, a Artifact, ttl time.Duration) (string, error)
}

// Catalog indexes artifact records by id.
type Catalog interface {
	Insert(ctx context.Context, a Artifact) error
	// Lookup returns ErrNotFound for unknown ids.
	Lookup(ctx context.Context, id string) (Artifact, error)
	// Expired lists records whose expiry is before now.
	Expired(ctx context.Context, now time.Time) ([]Artifact, error)
	// MarkSwept records that the bytes of id were deleted at at. Missing
	// records are not recreated.
	MarkSwept(ctx context.Context, id string, at time.Time) error
	Remove(ctx context.Context, id string) error
}

// Sealer encrypts blobs at rest.
type Sealer interface {
	Seal(plain []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// Publisher delivers lifecycle events; *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Event is the payload published on SubjectCreated and SubjectExpired.
type Event struct {
	ID        string    `json:"artifact_id"`
	Filename  string    `json:"filename"`
	Backend   string    `json:"backend"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
	At        time.Time `json:"at"`
}
