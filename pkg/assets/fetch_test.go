package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestFetchSuccess(t *testing.T) {
	body := pngBytes(t, 40, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	a := NewFetcher(Options{}).Fetch(context.Background(), srv.URL+"/a.png")
	if a.Placeholder {
		t.Fatalf("Fetch() used placeholder: %s", a.Failure)
	}
	if a.Format != PNG || a.Width != 40 || a.Height != 20 {
		t.Fatalf("Fetch() = %s %dx%d, want png 40x20", a.Format, a.Width, a.Height)
	}
	if !bytes.Equal(a.Data, body) {
		t.Fatalf("Fetch() data differs from served bytes")
	}
}

func TestFetchFailuresUsePlaceholder(t *testing.T) {
	big := pngBytes(t, 200, 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		case "/text":
			_, _ = w.Write([]byte("definitely not an image"))
		case "/big":
			_, _ = w.Write(big)
		case "/truncated":
			_, _ = w.Write(big[:len(big)/2])
		}
	}))
	defer srv.Close()

	f := NewFetcher(Options{Timeout: 100 * time.Millisecond, MaxBytes: int64(len(big) - 1)})
	tests := []struct {
		path string
		want string
	}{
		{path: "/missing", want: "status 404"},
		{path: "/slow", want: "timed out"},
		{path: "/text", want: "unsupported or corrupt"},
		{path: "/big", want: "exceeds"},
		{path: "/truncated", want: "unsupported or corrupt"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			a := f.Fetch(context.Background(), srv.URL+tt.path)
			if !a.Placeholder {
				t.Fatalf("Fetch() returned real asset, want placeholder")
			}
			if !strings.Contains(a.Failure, tt.want) {
				t.Fatalf("Failure = %q, want it to contain %q", a.Failure, tt.want)
			}
			if a.URL != srv.URL+tt.path {
				t.Fatalf("URL = %q, want the requested url", a.URL)
			}
			if a.Outcome() != OutcomePlaceholder {
				t.Fatalf("Outcome() = %q, want %q", a.Outcome(), OutcomePlaceholder)
			}
		})
	}
}

func TestFetchUnreachableIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone.png"
	srv.Close()

	f := NewFetcher(Options{Timeout: time.Second})
	first := f.Fetch(context.Background(), url)
	second := f.Fetch(context.Background(), url)

	if !first.Placeholder || !second.Placeholder {
		t.Fatalf("unreachable host should yield placeholders")
	}
	if !bytes.Equal(first.Data, second.Data) || first.Format != second.Format || first.Width != second.Width {
		t.Fatalf("placeholders differ between fetches")
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(first.Data))
	if err != nil || name != "png" || cfg.Width != PlaceholderWidth {
		t.Fatalf("placeholder is not a %dpx png: %v %q %d", PlaceholderWidth, err, name, cfg.Width)
	}
}

func TestFetchIgnoresCallerCancellation(t *testing.T) {
	body := pngBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if a := NewFetcher(Options{}).Fetch(ctx, srv.URL); a.Placeholder {
		t.Fatalf("Fetch() with cancelled context = placeholder (%s), want the image", a.Failure)
	}
}

func TestFetchAllDedupesAndBounds(t *testing.T) {
	body := pngBytes(t, 8, 8)
	var (
		mu       sync.Mutex
		hits     = map[string]int{}
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	var urls []string
	for i := range 8 {
		u := fmt.Sprintf("%s/img%d.png", srv.URL, i)
		urls = append(urls, u, u)
	}

	var observed atomic.Int32
	f := NewFetcher(Options{Workers: 2, Observe: func(Asset) { observed.Add(1) }})
	got := f.FetchAll(context.Background(), urls)

	if len(got) != 8 {
		t.Fatalf("len(FetchAll()) = %d, want 8 distinct urls", len(got))
	}
	for u, a := range got {
		if a.Placeholder || a.URL != u {
			t.Fatalf("asset for %s = %+v", u, a)
		}
	}
	for path, n := range hits {
		if n != 1 {
			t.Fatalf("%s fetched %d times, want 1", path, n)
		}
	}
	if p := peak.Load(); p > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", p)
	}
	if observed.Load() != 8 {
		t.Fatalf("Observe called %d times, want 8", observed.Load())
	}
}

func TestSniffRejectsGarbage(t *testing.T) {
	if _, err := Sniff([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatalf("Sniff(garbage) error = nil, want error")
	}
}

func TestPlaceholderIsStable(t *testing.T) {
	first := Placeholder()
	if _, err := Sniff(first); err != nil {
		t.Fatalf("Sniff(Placeholder()) error = %v", err)
	}
	first[0] ^= 0xFF
	if second := Placeholder(); bytes.Equal(first, second) || second[0] != 0x89 {
		t.Fatalf("Placeholder() shares its bytes with callers")
	}
}
