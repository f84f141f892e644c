// Package assets resolves external image references into embeddable bytes.
//
// A fetch never fails the build: any problem yields the placeholder graphic
// and a Failure reason that callers surface as presenter notes.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 20 << 20
	DefaultWorkers  = 4
)

// Format is an embeddable image encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// Ext is the media part extension for the format.
func (f Format) Ext() string { return string(f) }

// ContentType is the MIME type recorded in [Content_Types].xml.
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Outcomes reported to Observe.
const (
	OutcomeOK          = "ok"
	OutcomePlaceholder = "placeholder"
)

// Asset is a resolved image.
type Asset struct {
	URL    string
	Data   []byte
	Format Format
	Width  int
	Height int
	// Placeholder is set when Data is the fallback graphic.
	Placeholder bool
	// Failure explains why the placeholder was used.
	Failure string
}

// Outcome classifies the fetch for metrics.
func (a Asset) Outcome() string {
	if a.Placeholder {
		return OutcomePlaceholder
	}
	return OutcomeOK
}

// Options tunes a Fetcher. Zero values take the package defaults.
type Options struct {
	Timeout  time.Duration
	MaxBytes int64
	Workers  int
	Client   *http.Client
	Logger   zerolog.Logger
	// Observe is called once per completed fetch.
	Observe func(Asset)
}

// Fetcher downloads images over HTTP.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	workers  int
	log      zerolog.Logger
	observe  func(Asset)
}

// NewFetcher builds a Fetcher from opts.
func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		client:   opts.Client,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		workers:  opts.Workers,
		log:      opts.Logger,
		observe:  opts.Observe,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxBytes
	}
	if f.workers <= 0 {
		f.workers = DefaultWorkers
	}
	return f
}

// Fetch retrieves url within the per-fetch timeout. Cancellation of ctx is
// ignored; the timeout is the only deadline.
func (f *Fetcher) Fetch(ctx context.Context, url string) Asset {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	a, err := f.fetch(ctx, url)
	if err != nil {
		f.log.Warn().Err(err).Str("url", url).Msg("image fetch failed, using placeholder")
		a = placeholderAsset(url, err)
	}
	if f.observe != nil {
		f.observe(a)
	}
	return a
}

// FetchAll fetches every distinct url with at most Workers requests in
// flight and returns once all of them have finished.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) map[string]Asset {
	out := make(map[string]Asset, len(urls))
	distinct := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, seen := out[u]; seen {
			continue
		}
		out[u] = Asset{}
		distinct = append(distinct, u)
	}

	results := make([]Asset, len(distinct))
	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, u := range distinct {
		g.Go(func() error {
			results[i] = f.Fetch(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	for i, u := range distinct {
		out[u] = results[i]
	}
	return out
}

func (f *Fetcher) fetch(ctx context.Context, url string) (Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Asset{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Asset{}, fmt.Errorf("timed out after %s", f.timeout)
		}
		return Asset{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Asset{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Asset{}, fmt.Errorf("timed out after %s", f.timeout)
		}
		return Asset{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return Asset{}, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}

	a, err := Sniff(data)
	if err != nil {
		return Asset{}, err
	}
	a.URL = url
	return a, nil
}

// Sniff identifies data as an embeddable image. The whole image is decoded so
// a valid header over truncated or corrupt pixel data is rejected. WebP is
// transcoded to PNG.
func Sniff(data []byte) (Asset, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Asset{}, fmt.Errorf("unsupported or corrupt image data: %w", err)
	}
	size := img.Bounds().Size()

	switch name {
	case "png", "jpeg", "gif", "bmp", "tiff":
		return Asset{Data: data, Format: Format(name), Width: size.X, Height: size.Y}, nil
	case "webp":
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return Asset{}, fmt.Errorf("transcode webp: %w", err)
		}
		return Asset{Data: buf.Bytes(), Format: PNG, Width: size.X, Height: size.Y}, nil
	default:
		return Asset{}, fmt.Errorf("unsupported image format %q", name)
	}
}

func placeholderAsset(url string, cause error) Asset {
	return Asset{
		URL:         url,
		Data:        Placeholder(),
		Format:      PNG,
		Width:       PlaceholderWidth,
		Height:      PlaceholderHeight,
		Placeholder: true,
		Failure:     cause.Error(),
	}
}
