// Package sweeper periodically removes expired artifacts.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pptxd/pkg/telemetry"
)

// Sweeper is the subset of *artifact.Store the loop needs.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Loop struct {
	store    Sweeper
	interval time.Duration
	metrics  *telemetry.Metrics
	log      zerolog.Logger
}

func New(store Sweeper, interval time.Duration, metrics *telemetry.Metrics, logger zerolog.Logger) *Loop {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Loop{store: store, interval: interval, metrics: metrics, log: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.Once(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Once(ctx)
		}
	}
}

// Once runs a single sweep and reports how many artifacts it removed.
func (l *Loop) Once(ctx context.Context) int {
	start := time.Now()
	n, err := l.store.Sweep(ctx)
	l.metrics.ObserveSweep(n)
	if err != nil {
		l.log.Error().Err(err).Int("removed", n).Msg("sweep expired artifacts")
		return n
	}
	if n > 0 {
		l.log.Info().Int("removed", n).Dur("duration", time.Since(start)).Msg("swept expired artifacts")
	} else {
		l.log.Debug().Msg("no expired artifacts")
	}
	return n
}
