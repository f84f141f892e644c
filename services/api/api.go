// Package api exposes the deck pipeline and artifact downloads over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pptxd/pkg/artifact"
	"pptxd/pkg/telemetry"
	"pptxd/services/builder"
)

const (
	defaultMaxBodyBytes   = 4 << 20
	defaultRequestTimeout = 60 * time.Second
	defaultRateLimit      = 30
)

// Config controls runtime behaviour for the API handlers.
type Config struct {
	ServiceName    string
	AllowedOrigins []string
	// RateLimit is the per-IP build allowance per minute.
	RateLimit      int
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Deps are the long-lived collaborators of the handlers. Store may be nil,
// in which case only /generate-pptx works.
type Deps struct {
	Builder *builder.Builder
	Store   *artifact.Store
	Metrics *telemetry.Metrics
	Ready   func(context.Context) error
	Logger  zerolog.Logger
}

// API wires dependencies and configuration for HTTP handlers.
type API struct {
	builder *builder.Builder
	store   *artifact.Store
	metrics *telemetry.Metrics
	ready   func(context.Context) error
	log     zerolog.Logger
	config  Config
}

// New initialises the API layer with defaults applied to cfg.
func New(deps Deps, cfg Config) (*API, error) {
	if deps.Builder == nil {
		return nil, errors.New("builder is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewMetrics()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pptxd"
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return &API{
		builder: deps.Builder,
		store:   deps.Store,
		metrics: deps.Metrics,
		ready:   deps.Ready,
		log:     deps.Logger,
		config:  cfg,
	}, nil
}
