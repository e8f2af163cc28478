package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.RecordRun("AAPL", "ok")
	r.RecordRun("AAPL", "ok")
	r.RecordRun("TSLA", "failed")
	r.RecordError("fetch")
	r.RecordForecast("AAPL", 201.5)
	r.RecordEpoch("AAPL", 1, 0.02, 0.03)
	r.ObservePublish("price_forecasts", 1, 64, time.Millisecond, errors.New("x"))

	if got := testutil.ToFloat64(r.runsTotal.WithLabelValues("AAPL", "ok")); got != 2 {
		t.Fatalf("runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.forecastPrice.WithLabelValues("AAPL")); got != 201.5 {
		t.Fatalf("forecast = %v", got)
	}
	if got := testutil.ToFloat64(r.epochLoss.WithLabelValues("AAPL", "test")); got != 0.03 {
		t.Fatalf("test loss = %v", got)
	}
	if got := testutil.ToFloat64(r.kafkaMessages.WithLabelValues("price_forecasts", "error")); got != 1 {
		t.Fatalf("kafka errors = %v", got)
	}

	// independent registries never collide
	_ = New()
}

func TestPush(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		method, path = req.Method, req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.RecordRun("SPY", "ok")
	if err := r.Push(context.Background(), srv.URL, "trainer"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if method != http.MethodPut || path != "/metrics/job/trainer" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
}
