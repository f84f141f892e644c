package builder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pptxd/pkg/config"
)

func deniedS3(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func storeConfig(t *testing.T, backend, endpoint string) config.Config {
	t.Helper()
	return config.Config{
		StorageBackend:  backend,
		LocalStorageDir: t.TempDir(),
		PublicBaseURL:   "http://pptxd.test",
		Catalog:         config.CatalogSidecar,
		ArtifactTTL:     24 * time.Hour,
		S3: config.S3{
			Endpoint:       endpoint,
			AccessKey:      "key",
			SecretKey:      "secret",
			Region:         "us-east-1",
			Bucket:         "presentations",
			ForcePathStyle: true,
		},
	}
}

func TestOpenFallsBackToLocalStorage(t *testing.T) {
	srv := deniedS3(t)
	rt, err := Open(context.Background(), storeConfig(t, config.BackendAuto, srv.URL), zerolog.Nop(), true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	if got := rt.Store.Backend(); got != "local" {
		t.Fatalf("Store.Backend() = %q, want local", got)
	}
}

func TestOpenExplicitS3FailsWhenUnreachable(t *testing.T) {
	srv := deniedS3(t)
	if _, err := Open(context.Background(), storeConfig(t, config.BackendS3, srv.URL), zerolog.Nop(), true); err == nil {
		t.Fatalf("Open() error = nil, want bucket check failure")
	}
}

func TestExpiresInHoursRoundsUp(t *testing.T) {
	cases := []struct {
		ttl  time.Duration
		want int
	}{
		{24 * time.Hour, 24},
		{30 * time.Minute, 1},
		{90 * time.Minute, 2},
		{time.Second, 1},
	}
	for _, c := range cases {
		if got := expiresInHours(c.ttl); got != c.want {
			t.Errorf("expiresInHours(%v) = %d, want %d", c.ttl, got, c.want)
		}
	}
}
