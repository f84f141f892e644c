package builder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"

	"pptxd/infra/branding"
	"pptxd/pkg/artifact"
	"pptxd/pkg/assets"
	"pptxd/pkg/deck"
	"pptxd/pkg/pptx"
	"pptxd/pkg/telemetry"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	body := pngBytes(t, 40, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newBuilder(t *testing.T, store *artifact.Store) *Builder {
	t.Helper()
	theme, err := branding.Default()
	if err != nil {
		t.Fatalf("branding.Default() error = %v", err)
	}
	assembler, err := pptx.New(theme)
	if err != nil {
		t.Fatalf("pptx.New() error = %v", err)
	}
	b, err := New(Options{
		Fetcher:   assets.NewFetcher(assets.Options{Timeout: 2 * time.Second, Logger: zerolog.Nop()}),
		Assembler: assembler,
		Store:     store,
		Metrics:   telemetry.NewMetrics(),
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b
}

func testDeck(t *testing.T, base string) *deck.Deck {
	t.Helper()
	src := `{"filename":"quarterly","slides":[
		{"type":"title","title":"Q1","subtitle":"Review"},
		{"type":"image","title":"Good","url":"` + base + `/ok.png"},
		{"type":"image","title":"Broken","url":"` + base + `/missing.png","alt":"gone"}
	]}`
	d, err := deck.Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return d
}

func TestBuildAttachesFetchFailures(t *testing.T) {
	srv := imageServer(t)
	out, err := newBuilder(t, nil).Build(context.Background(), testDeck(t, srv.URL))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if out.Filename != "quarterly.pptx" || out.Slides != 3 {
		t.Fatalf("Build() = %s with %d slides", out.Filename, out.Slides)
	}
	if len(out.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %+v, want one", out.Diagnostics)
	}
	d := out.Diagnostics[0]
	if d.Slide != 3 || d.URL != srv.URL+"/missing.png" || !strings.Contains(d.Reason, "404") {
		t.Fatalf("Diagnostic = %+v", d)
	}

	zr, err := zip.NewReader(bytes.NewReader(out.Data), int64(len(out.Data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	var notes []string
	media := 0
	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, "ppt/notesSlides/notesSlide"):
			rc, _ := f.Open()
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(rc)
			rc.Close()
			notes = append(notes, buf.String())
		case strings.HasPrefix(f.Name, "ppt/media/"):
			media++
		}
	}
	if len(notes) != 1 || !strings.Contains(notes[0], NoteFor(srv.URL+"/missing.png", d.Reason)) {
		t.Fatalf("notes = %v", notes)
	}
	if media != 2 {
		t.Fatalf("media parts = %d, want image and placeholder", media)
	}
}

func TestPublishStoresArtifact(t *testing.T) {
	srv := imageServer(t)
	backend, err := artifact.NewLocalBackend(t.TempDir(), "http://pptxd.test")
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	store := artifact.New(backend, artifact.NewSidecarCatalog(backend), artifact.Options{Logger: zerolog.Nop()})
	b := newBuilder(t, store)

	rec, err := b.Publish(context.Background(), testDeck(t, srv.URL))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if rec.ExpiresInHours != 24 || rec.Filename != "quarterly.pptx" {
		t.Fatalf("Publish() = %+v", rec)
	}
	if rec.DownloadURL != "http://pptxd.test/download/"+rec.ArtifactID {
		t.Fatalf("DownloadURL = %q", rec.DownloadURL)
	}

	data, a, err := store.Get(context.Background(), rec.ArtifactID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) || a.Meta["slides"] != float64(3) {
		t.Fatalf("stored artifact = %d bytes, meta %v", len(data), a.Meta)
	}
}

func TestPublishWithoutStore(t *testing.T) {
	if _, err := newBuilder(t, nil).Publish(context.Background(), testDeck(t, "https://example.invalid")); err == nil {
		t.Fatalf("Publish() without a store should fail")
	}
}

func TestPublishReportsSubHourTTL(t *testing.T) {
	srv := imageServer(t)
	backend, err := artifact.NewLocalBackend(t.TempDir(), "http://pptxd.test")
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	store := artifact.New(backend, artifact.NewSidecarCatalog(backend), artifact.Options{TTL: 30 * time.Minute, Logger: zerolog.Nop()})

	rec, err := newBuilder(t, store).Publish(context.Background(), testDeck(t, srv.URL))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if rec.ExpiresInHours != 1 {
		t.Fatalf("ExpiresInHours = %d, want 1", rec.ExpiresInHours)
	}
}
