package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("pptxd", "json", &buf)
	log.Info().Str("artifact_id", "abc").Msg("stored")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["service"] != "pptxd" || entry["artifact_id"] != "abc" || entry["message"] != "stored" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("pptxd", "console", &buf)
	l.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "hello") {
		t.Fatalf("console output = %q", buf.String())
	}
}

func TestInitWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "pptxd", "")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("pptxd", "json", &buf)
	h := Middleware("pptxd", log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["path"] != "/brew" || entry["status"] != float64(http.StatusTeapot) || entry["method"] != "GET" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveBuild("ok", 120*time.Millisecond)
	m.ObserveBuild("structural", time.Millisecond)
	m.ObserveFetch("placeholder")
	m.ObserveSweep(3)
	m.ObserveSweep(0)

	if got := testutil.ToFloat64(m.builds.WithLabelValues("ok")); got != 1 {
		t.Fatalf("builds{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.swept); got != 3 {
		t.Fatalf("swept = %v, want 3", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, want := range []string{"pptxd_builds_total", "pptxd_build_duration_seconds", `pptxd_asset_fetches_total{outcome="placeholder"} 1`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("exposition missing %s", want)
		}
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveBuild("ok", time.Second)
}
