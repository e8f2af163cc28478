package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	"github.com/alexenache10/NeuralPortofolio/pkg/config"
	applogger "github.com/alexenache10/NeuralPortofolio/pkg/logger"
	"github.com/alexenache10/NeuralPortofolio/pkg/metrics"
)

type fakeTrainer struct {
	calls   atomic.Int32
	from    time.Time
	symbols []string
	started chan struct{}
	err     error
}

func (f *fakeTrainer) TrainAll(ctx context.Context, symbols []string, from, to time.Time) (*models.TrainingSummary, error) {
	if f.calls.Add(1) == 1 {
		f.symbols, f.from = symbols, from
		if f.started != nil {
			close(f.started)
		}
	}
	return &models.TrainingSummary{Errors: map[string]string{"BTC-USD": "no rows"}}, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Default()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	c.Assets.Symbols = []string{"AAPL", "BTC-USD"}
	return c
}

func TestRunOnce(t *testing.T) {
	cfg := testConfig(t)
	tr := &fakeTrainer{}
	var buf bytes.Buffer
	app := New(cfg, tr, nil, applogger.NewWriter(&buf))
	app.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }

	if err := app.RunContext(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if tr.calls.Load() != 1 || len(tr.symbols) != 2 {
		t.Fatalf("calls=%d symbols=%v", tr.calls.Load(), tr.symbols)
	}
	if !tr.from.Equal(time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("history start %v", tr.from)
	}
	if !strings.Contains(buf.String(), `"symbol":"BTC-USD"`) {
		t.Fatalf("failed asset not logged: %s", buf.String())
	}
}

func TestRunOnceWrapsBatchError(t *testing.T) {
	tr := &fakeTrainer{err: context.Canceled}
	app := New(testConfig(t), tr, nil, nil)
	if _, err := app.RunOnce(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunOncePushesMetrics(t *testing.T) {
	var pushed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushed.Store(strings.HasPrefix(r.URL.Path, "/metrics/job/trainer"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.PushgatewayURL = srv.URL
	cfg.Metrics.Job = "trainer"
	rec := metrics.New()
	rec.RecordRun("AAPL", "ok")

	app := New(cfg, &fakeTrainer{}, rec, nil)
	if _, err := app.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !pushed.Load() {
		t.Fatalf("metrics were not pushed")
	}
}

func TestScheduleRunsOnStartAndStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Cron = "@every 1h"
	cfg.Schedule.RunOnStart = true
	tr := &fakeTrainer{started: make(chan struct{})}
	app := New(cfg, tr, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	select {
	case <-tr.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("batch did not run on start")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}

func TestScheduleRejectsBadCron(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Cron = "whenever"
	app := New(cfg, &fakeTrainer{}, nil, nil)
	if err := app.RunContext(context.Background()); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestCronLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	cl := cronLogger{l: applogger.NewWriter(&buf)}
	cl.Error(errors.New("panic"), "job failed", "entry", 3, "dangling")
	out := buf.String()
	if !strings.Contains(out, `"entry":3`) || !strings.Contains(out, `"error":"panic"`) || strings.Contains(out, "dangling") {
		t.Fatalf("unexpected cron log %s", out)
	}
}
