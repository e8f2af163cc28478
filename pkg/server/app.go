package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	"github.com/alexenache10/NeuralPortofolio/internal/usecase"
	"github.com/alexenache10/NeuralPortofolio/pkg/config"
	applogger "github.com/alexenache10/NeuralPortofolio/pkg/logger"
	"github.com/alexenache10/NeuralPortofolio/pkg/metrics"
)

// BatchTrainer is the part of the training usecase the app drives.
type BatchTrainer interface {
	TrainAll(ctx context.Context, symbols []string, from, to time.Time) (*models.TrainingSummary, error)
}

// App runs the retraining batch once or on a cron schedule.
type App struct {
	cfg     *config.Config
	trainer BatchTrainer
	metrics *metrics.Recorder
	log     *applogger.Logger
	now     func() time.Time
}

// New creates the app. rec may be nil when metrics are disabled.
func New(cfg *config.Config, trainer BatchTrainer, rec *metrics.Recorder, l *applogger.Logger) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, trainer: trainer, metrics: rec, log: l, now: time.Now}
}

// Compile-time check that the usecase satisfies BatchTrainer.
var _ BatchTrainer = (*usecase.TrainForecastUseCase)(nil)

// Run blocks until the work is done or SIGINT/SIGTERM arrives.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext runs a single batch when no schedule is configured, otherwise
// starts the scheduler and waits for ctx to end.
func (a *App) RunContext(ctx context.Context) error {
	if a.cfg.Schedule.Cron == "" {
		_, err := a.RunOnce(ctx)
		return err
	}
	return a.schedule(ctx)
}

// RunOnce trains every configured asset over the configured history window.
func (a *App) RunOnce(ctx context.Context) (*models.TrainingSummary, error) {
	now := a.now()
	from := a.cfg.HistoryStart(now)
	a.log.Info("batch started",
		applogger.Strings("symbols", a.cfg.Assets.Symbols),
		applogger.Time("from", from),
		applogger.Int("workers", a.cfg.Assets.Workers),
	)

	summary, err := a.trainer.TrainAll(ctx, a.cfg.Assets.Symbols, from, now)
	if summary != nil {
		for symbol, msg := range summary.Errors {
			a.log.Warn("asset failed", applogger.String("symbol", symbol), applogger.String("error", msg))
		}
	}
	a.pushMetrics(ctx)
	if err != nil {
		return summary, fmt.Errorf("batch: %w", err)
	}
	return summary, nil
}

func (a *App) schedule(ctx context.Context) error {
	cl := cronLogger{l: a.log}
	c := cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	job := func() {
		if _, err := a.RunOnce(ctx); err != nil {
			a.log.Error("scheduled batch failed", applogger.Error(err))
		}
	}
	if _, err := c.AddFunc(a.cfg.Schedule.Cron, job); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}

	c.Start()
	a.log.Info("scheduler started", applogger.String("cron", a.cfg.Schedule.Cron))
	if a.cfg.Schedule.RunOnStart {
		go job()
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	// wait for a running batch; it sees the cancelled ctx between batches
	<-c.Stop().Done()
	a.log.Info("scheduler stopped")
	return nil
}

func (a *App) pushMetrics(ctx context.Context) {
	if a.metrics == nil || !a.cfg.Metrics.Enabled {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.metrics.Push(pushCtx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
		a.log.Warn("metrics push failed", applogger.Error(err))
	}
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
