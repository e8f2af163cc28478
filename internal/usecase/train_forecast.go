package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	domrepo "github.com/alexenache10/NeuralPortofolio/internal/domain/repository"
	"github.com/alexenache10/NeuralPortofolio/internal/services/nn"
	"github.com/alexenache10/NeuralPortofolio/internal/services/training"
	applogger "github.com/alexenache10/NeuralPortofolio/pkg/logger"
	"github.com/alexenache10/NeuralPortofolio/pkg/metrics"
)

var ErrRunInProgress = errors.New("training already running for symbol")

// Locker guards a symbol against concurrent retraining across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// TrainForecastUseCase loads an asset's history, trains a fresh model on it,
// forecasts the next close, then publishes and records the result.
type TrainForecastUseCase struct {
	store     domrepo.MarketDataStore
	publisher domrepo.ForecastPublisher
	recorder  domrepo.RunRecorder
	metrics   domrepo.Metrics
	cfg       training.Config
	locker    Locker
	lockTTL   time.Duration
	timeout   time.Duration
	workers   int
	log       *applogger.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*TrainForecastUseCase)

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(uc *TrainForecastUseCase) { uc.locker, uc.lockTTL = l, ttl }
}

func WithWorkers(n int) Option {
	return func(uc *TrainForecastUseCase) {
		if n > 0 {
			uc.workers = n
		}
	}
}

// WithQueryTimeout bounds each history read; zero means no bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(uc *TrainForecastUseCase) { uc.timeout = d }
}

func WithLogger(l *applogger.Logger) Option {
	return func(uc *TrainForecastUseCase) { uc.log = l }
}

func NewTrainForecastUseCase(
	store domrepo.MarketDataStore,
	publisher domrepo.ForecastPublisher,
	recorder domrepo.RunRecorder,
	m domrepo.Metrics,
	cfg training.Config,
	opts ...Option,
) *TrainForecastUseCase {
	uc := &TrainForecastUseCase{
		store:     store,
		publisher: publisher,
		recorder:  recorder,
		metrics:   m,
		cfg:       cfg,
		lockTTL:   time.Hour,
		workers:   1,
		log:       applogger.Nop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	if uc.metrics == nil {
		uc.metrics = metrics.Noop{}
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type TrainParams struct {
	Symbol string
	From   time.Time
	To     time.Time
}

// Train runs one full fit/evaluate/forecast cycle for a single asset.
func (uc *TrainForecastUseCase) Train(ctx context.Context, p TrainParams) (*models.TrainingRun, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.To.IsZero() {
		p.To = uc.now()
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}

	if uc.locker != nil {
		key := "train:" + p.Symbol
		ok, err := uc.locker.TryLock(ctx, key, uc.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", p.Symbol, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", p.Symbol, ErrRunInProgress)
		}
		defer func() {
			if err := uc.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				uc.log.Warn("unlock failed", applogger.String("symbol", p.Symbol), applogger.Error(err))
			}
		}()
	}

	start := uc.now()
	run, err := uc.train(ctx, p)
	uc.metrics.RecordLatency("train", uc.now().Sub(start).Seconds())
	if err != nil {
		uc.metrics.RecordRun(p.Symbol, "failed")
		return nil, err
	}
	uc.metrics.RecordRun(p.Symbol, "ok")
	return run, nil
}

func (uc *TrainForecastUseCase) train(ctx context.Context, p TrainParams) (*models.TrainingRun, error) {
	log := uc.log.With(applogger.String("symbol", p.Symbol))
	run := &models.TrainingRun{ID: uc.newID(), Symbol: p.Symbol, StartedAt: uc.now()}

	rows, err := uc.load(ctx, p)
	if err != nil {
		uc.metrics.RecordError("load")
		return nil, fmt.Errorf("load %s: %w", p.Symbol, err)
	}
	run.Rows = len(rows)

	prep, err := training.Prepare(rows, uc.cfg)
	if err != nil {
		uc.metrics.RecordError("prepare")
		return nil, fmt.Errorf("prepare %s: %w", p.Symbol, err)
	}
	run.TrainRows, run.TestRows = prep.TrainRows, prep.TestRows
	run.TrainWindows, run.TestWindows = prep.Train.Len(), prep.Test.Len()

	trainLoader, testLoader, err := prep.Loaders(uc.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("loaders %s: %w", p.Symbol, err)
	}
	model, err := nn.New(uc.cfg.ModelConfig())
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", p.Symbol, err)
	}
	lo, hi, err := prep.Processor.TargetRange()
	if err != nil {
		return nil, fmt.Errorf("target range %s: %w", p.Symbol, err)
	}
	log.Info("training started",
		applogger.String("run_id", run.ID),
		applogger.Int("rows", run.Rows),
		applogger.Int("train_windows", run.TrainWindows),
		applogger.Int("test_windows", run.TestWindows),
		applogger.Int("params", model.NumParams()),
		applogger.Float64("target_min", lo),
		applogger.Float64("target_max", hi),
	)

	trainer := training.NewTrainer(model, uc.cfg,
		training.WithLogger(log),
		training.WithEpochHook(func(s models.EpochStats) {
			uc.metrics.RecordEpoch(p.Symbol, s.Epoch, s.TrainLoss, s.TestLoss)
		}),
	)
	report, err := trainer.Fit(ctx, trainLoader, testLoader)
	if err != nil {
		uc.metrics.RecordError("fit")
		return nil, fmt.Errorf("fit %s: %w", p.Symbol, err)
	}
	run.Epochs = report.Epochs
	run.TestLoss = report.TestLoss
	run.BaselineLoss = training.NaiveBaselineMSE(prep.Test)

	forecaster, err := training.NewForecaster(prep.Processor, model)
	if err != nil {
		return nil, fmt.Errorf("forecaster %s: %w", p.Symbol, err)
	}
	fc, err := forecaster.Forecast(ctx, p.Symbol, uc.latest(ctx, log, p.Symbol, rows))
	if err != nil {
		uc.metrics.RecordError("forecast")
		return nil, err
	}
	fc.RunID = run.ID
	run.Forecast = &fc
	run.FinishedAt = uc.now()
	uc.metrics.RecordForecast(p.Symbol, fc.PredictedClose)

	prev, err := uc.recorder.LastRun(ctx, p.Symbol)
	if err != nil {
		log.Warn("previous run lookup failed", applogger.Error(err))
	}

	// the run stands even if downstream delivery fails
	if err := uc.publisher.Publish(ctx, &fc); err != nil {
		uc.metrics.RecordError("publish")
		log.Error("publish forecast failed", applogger.String("run_id", run.ID), applogger.Error(err))
	}
	if err := uc.recorder.RecordRun(ctx, run); err != nil {
		uc.metrics.RecordError("record")
		log.Error("record run failed", applogger.String("run_id", run.ID), applogger.Error(err))
	}

	fields := []applogger.Field{
		applogger.String("run_id", run.ID),
		applogger.Int("epochs", len(run.Epochs)),
		applogger.Float64("train_mse", run.FinalTrainLoss()),
		applogger.Float64("test_mse", run.TestLoss),
		applogger.Float64("baseline_mse", run.BaselineLoss),
		applogger.Float64("last_close", fc.LastClose),
		applogger.Float64("predicted_close", fc.PredictedClose),
		applogger.Time("as_of", fc.AsOf),
		applogger.Duration("duration_ms", run.FinishedAt.Sub(run.StartedAt)),
	}
	if prev != nil {
		fields = append(fields,
			applogger.String("previous_run_id", prev.ID),
			applogger.Float64("previous_test_mse", prev.TestLoss),
		)
	}
	log.Info("training finished", fields...)
	return run, nil
}

// latest returns the newest sequence_length bars so the forecast targets the
// session after the last stored bar. It falls back to the training rows when
// the store cannot serve a full window.
func (uc *TrainForecastUseCase) latest(ctx context.Context, log *applogger.Logger, symbol string, rows []models.Candle) []models.Candle {
	n := uc.cfg.SequenceLength
	bars, err := uc.store.GetLatestNBars(ctx, symbol, n)
	if err != nil {
		log.Warn("latest bars unavailable, using training rows", applogger.Error(err))
		return rows
	}
	if len(bars) < n || bars[len(bars)-1].Time.Before(rows[len(rows)-1].Time) {
		log.Warn("latest bars stale, using training rows", applogger.Int("bars", len(bars)))
		return rows
	}
	return bars
}

func (uc *TrainForecastUseCase) load(ctx context.Context, p TrainParams) ([]models.Candle, error) {
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}
	return uc.store.GetDailyBars(ctx, p.Symbol, p.From, p.To)
}

// TrainAll trains every symbol over [from, to] with a bounded worker pool.
// A failing asset is logged and listed in Errors; the others still run.
// The returned error is non-nil only when ctx ends the batch.
func (uc *TrainForecastUseCase) TrainAll(ctx context.Context, symbols []string, from, to time.Time) (*models.TrainingSummary, error) {
	summary := &models.TrainingSummary{
		StartedAt: uc.now(),
		Errors:    map[string]string{},
	}
	runs := make([]*models.TrainingRun, len(symbols))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(uc.workers)
	for i, symbol := range symbols {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			run, err := uc.Train(ctx, TrainParams{Symbol: symbol, From: from, To: to})
			if err != nil {
				uc.log.Error("asset skipped", applogger.String("symbol", symbol), applogger.Error(err))
				mu.Lock()
				summary.Errors[symbol] = err.Error()
				mu.Unlock()
				return nil
			}
			runs[i] = run
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range runs {
		if r != nil {
			summary.Runs = append(summary.Runs, r)
		}
	}
	summary.FinishedAt = uc.now()
	uc.log.Info("batch finished",
		applogger.Int("assets", len(symbols)),
		applogger.Int("trained", len(summary.Runs)),
		applogger.Int("failed", len(summary.Errors)),
		applogger.Duration("duration_ms", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, ctx.Err()
}
