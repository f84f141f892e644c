package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"pptxd/infra/branding"
	"pptxd/pkg/artifact"
	"pptxd/pkg/assets"
	"pptxd/pkg/bus"
	"pptxd/pkg/config"
	"pptxd/pkg/db"
	"pptxd/pkg/pptx"
	gos3 "pptxd/pkg/s3"
	"pptxd/pkg/telemetry"
)

// Runtime is the set of long-lived dependencies one process shares across
// requests.
type Runtime struct {
	Builder *Builder
	Store   *artifact.Store
	Metrics *telemetry.Metrics

	checks  []func(context.Context) error
	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open builds the runtime described by cfg. withStore=false skips every
// storage dependency, for offline builds.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger, withStore bool) (*Runtime, error) {
	rt := &Runtime{Metrics: telemetry.NewMetrics()}

	theme, err := branding.Default()
	if err != nil {
		return nil, err
	}
	assembler, err := pptx.New(theme)
	if err != nil {
		return nil, err
	}
	fetcher := assets.NewFetcher(assets.Options{
		Timeout:  cfg.Fetch.Timeout,
		MaxBytes: cfg.Fetch.MaxBytes,
		Workers:  cfg.Fetch.Workers,
		Logger:   logger.With().Str("component", "assets").Logger(),
		Observe:  func(a assets.Asset) { rt.Metrics.ObserveFetch(a.Outcome()) },
	})

	if withStore {
		if rt.Store, err = rt.openStore(ctx, cfg, logger); err != nil {
			rt.Close()
			return nil, err
		}
	}

	rt.Builder, err = New(Options{
		Fetcher:   fetcher,
		Assembler: assembler,
		Store:     rt.Store,
		Metrics:   rt.Metrics,
		Logger:    logger.With().Str("component", "builder").Logger(),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*artifact.Store, error) {
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	catalog, err := rt.openCatalog(ctx, cfg, backend)
	if err != nil {
		return nil, err
	}

	opts := artifact.Options{
		TTL:           cfg.ArtifactTTL,
		Logger:        logger.With().Str("component", "artifact").Logger(),
		PublicBaseURL: cfg.PublicBaseURL,
	}
	if cfg.AgeIdentity != "" {
		sealer, err := artifact.NewAgeSealer(cfg.AgeIdentity)
		if err != nil {
			return nil, err
		}
		opts.Sealer = sealer
	}
	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, closerFunc(func() error { b.Close(); return nil }))
		opts.Events = b
	}

	logger.Info().
		Str("backend", backend.Name()).
		Str("catalog", cfg.Catalog).
		Bool("sealed", opts.Sealer != nil).
		Bool("events", opts.Events != nil).
		Dur("ttl", cfg.ArtifactTTL).
		Msg("artifact store ready")
	return artifact.New(backend, catalog, opts), nil
}

// bucketCheckTimeout bounds the start-up bucket check.
const bucketCheckTimeout = 15 * time.Second

// openBackend picks the blob backend once. When s3 was only auto-selected
// and the bucket cannot be reached, the local backend is used instead.
func openBackend(ctx context.Context, cfg config.Config, logger zerolog.Logger) (artifact.Backend, error) {
	switch cfg.Backend() {
	case config.BackendS3:
		backend, err := openS3(ctx, cfg)
		if err == nil {
			return backend, nil
		}
		if cfg.StorageBackend == config.BackendS3 {
			return nil, err
		}
		logger.Warn().Err(err).Str("dir", cfg.LocalStorageDir).Msg("object storage unavailable, using local storage")
		return artifact.NewLocalBackend(cfg.LocalStorageDir, cfg.PublicBaseURL)
	case config.BackendLocal:
		return artifact.NewLocalBackend(cfg.LocalStorageDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend())
	}
}

func openS3(ctx context.Context, cfg config.Config) (artifact.Backend, error) {
	client, err := gos3.NewClient(ctx, gos3.Config{
		Endpoint:       cfg.S3.Endpoint,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		Region:         cfg.S3.Region,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, bucketCheckTimeout)
	defer cancel()
	return artifact.NewS3Backend(ctx, client, cfg.S3.Bucket)
}

func (rt *Runtime) openCatalog(ctx context.Context, cfg config.Config, backend artifact.Backend) (artifact.Catalog, error) {
	switch cfg.Catalog {
	case config.CatalogSidecar, "":
		return artifact.NewSidecarCatalog(backend), nil
	case config.CatalogPostgres:
		conn, err := db.Connect(ctx, cfg.DBDSN, db.Options{})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		rt.closers = append(rt.closers, conn)
		c, err := artifact.NewPostgresCatalog(conn)
		if err != nil {
			return nil, err
		}
		rt.checks = append(rt.checks, c.Ping)
		return c, nil
	case config.CatalogRedis:
		c, err := artifact.NewRedisCatalog(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, c)
		rt.checks = append(rt.checks, c.Ping)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown catalog %q", cfg.Catalog)
	}
}

// Ready runs the catalog's connectivity checks.
func (rt *Runtime) Ready(ctx context.Context) error {
	var errs []error
	for _, check := range rt.checks {
		errs = append(errs, check(ctx))
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of opening.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i].Close())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
