// Package config loads pptxd settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Storage backends and catalogs accepted by STORAGE_BACKEND and CATALOG.
const (
	BackendAuto  = "auto"
	BackendS3    = "s3"
	BackendLocal = "local"

	CatalogSidecar  = "sidecar"
	CatalogPostgres = "postgres"
	CatalogRedis    = "redis"
)

// Config holds runtime configuration shared by pptxd and pptxctl.
type Config struct {
	Addr           string   `env:"ADDR,default=:8080"`
	PublicBaseURL  string   `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	LogFormat      string   `env:"LOG_FORMAT,default=console"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	BuildRateLimit int      `env:"BUILD_RATE_LIMIT,default=30"`

	StorageBackend  string `env:"STORAGE_BACKEND,default=auto"`
	LocalStorageDir string `env:"LOCAL_STORAGE_DIR,default=./data"`
	S3              S3

	ArtifactTTL   time.Duration `env:"ARTIFACT_TTL,default=24h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL,default=1h"`
	Catalog       string        `env:"CATALOG,default=sidecar"`
	DBDSN         string        `env:"DB_DSN"`
	RedisURL      string        `env:"REDIS_URL"`
	AgeIdentity   string        `env:"ARTIFACT_AGE_IDENTITY"`
	NATSURL       string        `env:"NATS_URL"`

	Fetch Fetch
}

// S3 addresses the object store. The variable names match the AWS SDK's.
type S3 struct {
	Endpoint       string `env:"AWS_ENDPOINT_URL_S3"`
	AccessKey      string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey      string `env:"AWS_SECRET_ACCESS_KEY"`
	Region         string `env:"AWS_REGION,default=us-east-1"`
	Bucket         string `env:"BUCKET_NAME,default=presentations"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE,default=true"`
}

// Fetch bounds image retrieval during a build.
type Fetch struct {
	Timeout  time.Duration `env:"FETCH_TIMEOUT,default=10s"`
	Workers  int           `env:"FETCH_WORKERS,default=4"`
	MaxBytes int64         `env:"FETCH_MAX_BYTES,default=20971520"`
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom resolves the configuration from l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, err
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.Catalog = strings.ToLower(strings.TrimSpace(cfg.Catalog))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Backend resolves "auto" to s3 when an endpoint or credentials are present
// and to local otherwise.
func (c Config) Backend() string {
	if c.StorageBackend != BackendAuto && c.StorageBackend != "" {
		return c.StorageBackend
	}
	if c.S3.Endpoint != "" || c.S3.AccessKey != "" {
		return BackendS3
	}
	return BackendLocal
}

// Validate rejects settings that cannot start a service.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case BackendAuto, BackendS3, BackendLocal, "":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q is not one of auto, s3, local", c.StorageBackend))
	}
	switch c.Catalog {
	case CatalogSidecar, "":
	case CatalogPostgres:
		if c.DBDSN == "" {
			errs = append(errs, errors.New("CATALOG=postgres requires DB_DSN"))
		}
	case CatalogRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("CATALOG=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("CATALOG %q is not one of sidecar, postgres, redis", c.Catalog))
	}
	if c.Backend() == BackendS3 && c.S3.Bucket == "" {
		errs = append(errs, errors.New("BUCKET_NAME is required for the s3 backend"))
	}
	if c.Backend() == BackendLocal && c.LocalStorageDir == "" {
		errs = append(errs, errors.New("LOCAL_STORAGE_DIR is required for the local backend"))
	}
	if c.ArtifactTTL <= 0 {
		errs = append(errs, fmt.Errorf("ARTIFACT_TTL must be positive, got %s", c.ArtifactTTL))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval))
	}
	if c.Fetch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_WORKERS must be positive, got %d", c.Fetch.Workers))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.Fetch.Timeout))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_MAX_BYTES must be positive, got %d", c.Fetch.MaxBytes))
	}
	return errors.Join(errs...)
}
