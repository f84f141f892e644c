// Package builder runs the deck pipeline: layout, concurrent image fetching,
// package assembly and, when publishing, hand-off to the artifact store.
package builder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pptxd/pkg/artifact"
	"pptxd/pkg/assets"
	"pptxd/pkg/deck"
	"pptxd/pkg/layout"
	"pptxd/pkg/pptx"
	"pptxd/pkg/telemetry"
)

var tracer = otel.Tracer("pptxd/builder")

// Build outcomes reported to metrics.
const (
	OutcomeOK            = "ok"
	OutcomeSerialization = "serialization"
)

// Diagnostic records an image that was replaced by the placeholder.
type Diagnostic struct {
	Slide  int    `json:"slide"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Output is a finished package plus what happened while building it.
type Output struct {
	Data        []byte
	Filename    string
	Slides      int
	Notices     []string
	Diagnostics []Diagnostic
}

// Record is returned to callers after a stored build.
type Record struct {
	ArtifactID     string       `json:"artifact_id"`
	Filename       string       `json:"filename"`
	ExpiresInHours int          `json:"expires_in_hours"`
	ExpiresAt      time.Time    `json:"expires_at"`
	DownloadURL    string       `json:"download_url,omitempty"`
	Diagnostics    []Diagnostic `json:"diagnostics,omitempty"`
}

// Options wires a Builder. Store may be nil for build-only use.
type Options struct {
	Fetcher   *assets.Fetcher
	Assembler *pptx.Assembler
	Store     *artifact.Store
	Metrics   *telemetry.Metrics
	Logger    zerolog.Logger
}

// Builder is safe for concurrent use; builds share nothing mutable.
type Builder struct {
	fetcher   *assets.Fetcher
	assembler *pptx.Assembler
	store     *artifact.Store
	metrics   *telemetry.Metrics
	log       zerolog.Logger
}

func New(opts Options) (*Builder, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.Assembler == nil {
		return nil, errors.New("assembler is required")
	}
	return &Builder{
		fetcher:   opts.Fetcher,
		assembler: opts.Assembler,
		store:     opts.Store,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}, nil
}

// NoteFor is the presenter note attached for a failed image.
func NoteFor(url, reason string) string {
	return fmt.Sprintf("Image could not be loaded from %s: %s", url, reason)
}

// Build produces the package for d. Fetch failures never fail the build;
// they surface as placeholders, notes and diagnostics.
func (b *Builder) Build(ctx context.Context, d *deck.Deck) (Output, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "deck.build")
	defer span.End()
	span.SetAttributes(attribute.Int("deck.slides", d.Len()), attribute.String("deck.filename", d.Filename()))

	pages := layout.ResolveDeck(d)

	var urls []string
	for _, p := range pages {
		for _, img := range p.Images() {
			urls = append(urls, img.URL)
		}
	}
	fetched := b.fetchAll(ctx, urls)

	doc := pptx.Document{
		Title:  d.Filename(),
		Slides: make([]pptx.Slide, len(pages)),
		Assets: fetched,
	}
	var diags []Diagnostic
	for i, p := range pages {
		doc.Slides[i].Page = p
		for _, img := range p.Images() {
			a := fetched[img.URL]
			if !a.Placeholder {
				continue
			}
			doc.Slides[i].Notes = append(doc.Slides[i].Notes, NoteFor(img.URL, a.Failure))
			diags = append(diags, Diagnostic{Slide: i + 1, URL: img.URL, Reason: a.Failure})
		}
	}

	data, err := b.assemble(ctx, doc)
	if err != nil {
		b.metrics.ObserveBuild(OutcomeSerialization, time.Since(start))
		span.SetStatus(codes.Error, err.Error())
		return Output{}, err
	}
	b.metrics.ObserveBuild(OutcomeOK, time.Since(start))

	b.log.Info().
		Str("filename", d.Filename()).
		Int("slides", len(pages)).
		Int("images", len(fetched)).
		Int("placeholders", len(diags)).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("deck built")
	for _, n := range d.Notices() {
		b.log.Warn().Str("filename", d.Filename()).Msg(n)
	}

	return Output{
		Data:        data,
		Filename:    d.Filename(),
		Slides:      len(pages),
		Notices:     d.Notices(),
		Diagnostics: diags,
	}, nil
}

func (b *Builder) fetchAll(ctx context.Context, urls []string) map[string]assets.Asset {
	ctx, span := tracer.Start(ctx, "assets.fetch_all")
	defer span.End()
	span.SetAttributes(attribute.Int("assets.requested", len(urls)))
	return b.fetcher.FetchAll(ctx, urls)
}

func (b *Builder) assemble(ctx context.Context, doc pptx.Document) ([]byte, error) {
	_, span := tracer.Start(ctx, "pptx.assemble")
	defer span.End()
	return b.assembler.Assemble(doc)
}

// expiresInHours rounds ttl up so a sub-hour lifetime never reports 0.
func expiresInHours(ttl time.Duration) int {
	return int(math.Ceil(ttl.Hours()))
}

// Publish builds d and stores the result.
func (b *Builder) Publish(ctx context.Context, d *deck.Deck) (Record, error) {
	if b.store == nil {
		return Record{}, errors.New("no artifact store configured")
	}
	out, err := b.Build(ctx, d)
	if err != nil {
		return Record{}, err
	}

	a, err := b.store.Put(ctx, out.Data, out.Filename, artifact.WithMeta(map[string]any{
		"slides":       out.Slides,
		"placeholders": len(out.Diagnostics),
	}))
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ArtifactID:     a.ID,
		Filename:       a.Filename,
		ExpiresInHours: expiresInHours(b.store.TTL()),
		ExpiresAt:      a.ExpiresAt,
		Diagnostics:    out.Diagnostics,
	}
	// The artifact is already stored; a handle failure leaves DownloadURL empty.
	if url, err := b.store.ResolveHandle(ctx, a.ID); err != nil {
		b.log.Warn().Err(err).Str("artifact_id", a.ID).Msg("resolve download handle")
	} else {
		rec.DownloadURL = url
	}
	return rec, nil
}
