package di

import (
	"context"
	"fmt"
	"time"

	domrepo "github.com/alexenache10/NeuralPortofolio/internal/domain/repository"
	internalrepo "github.com/alexenache10/NeuralPortofolio/internal/repository"
	"github.com/alexenache10/NeuralPortofolio/internal/usecase"
	"github.com/alexenache10/NeuralPortofolio/pkg/cache"
	pkgch "github.com/alexenache10/NeuralPortofolio/pkg/clickhouse"
	"github.com/alexenache10/NeuralPortofolio/pkg/config"
	pkgkafka "github.com/alexenache10/NeuralPortofolio/pkg/kafka"
	applogger "github.com/alexenache10/NeuralPortofolio/pkg/logger"
	"github.com/alexenache10/NeuralPortofolio/pkg/metrics"
	"github.com/alexenache10/NeuralPortofolio/pkg/postgres"
	"github.com/alexenache10/NeuralPortofolio/pkg/server"
)

const connectTimeout = 10 * time.Second

// ProvideLogger creates the application logger from the logger section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus recorder. It always exists; pushing
// is gated by metrics.enabled.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

func ProvideDomainMetrics(rec *metrics.Recorder) domrepo.Metrics {
	return rec
}

// ProvideCache builds the in-memory cache, layered over Redis when enabled.
// It returns nil when caching is off.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}
	mem := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
		cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
		cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
	)
	if !cfg.Cache.Redis.Enabled {
		return mem, func() { _ = mem.Close() }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdleConns, cfg.Cache.Redis.PoolTimeout),
	)
	if err != nil {
		_ = mem.Close()
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	layered := cache.NewLayeredCache(mem, rc, cfg.Cache.TTL)
	cleanup := func() {
		if err := layered.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}
	return layered, cleanup, nil
}

// ProvideMarketStore connects the configured backend and wraps it with the
// history cache when one is available.
func ProvideMarketStore(cfg *config.Config, c cache.Service, l *applogger.Logger) (domrepo.MarketDataStore, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	var (
		store   domrepo.MarketDataStore
		cleanup func()
	)
	switch cfg.Backend.Type {
	case "clickhouse":
		ch, err := pkgch.NewClient(ctx,
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store = internalrepo.NewCHMarketStore(ch, cfg.ClickHouse.Table, l)
		cleanup = func() {
			if err := ch.Close(); err != nil {
				l.Warn("clickhouse close error", applogger.Error(err))
			}
		}
	case "timescale":
		pg, err := postgres.NewClient(ctx,
			postgres.WithHost(cfg.Timescale.Host),
			postgres.WithPort(cfg.Timescale.Port),
			postgres.WithDatabase(cfg.Timescale.Database),
			postgres.WithCredentials(cfg.Timescale.User, cfg.Timescale.Password),
			postgres.WithSSLMode(cfg.Timescale.SSLMode),
			postgres.WithPool(cfg.Timescale.MaxOpenConns, cfg.Timescale.MaxIdleConns, cfg.Timescale.ConnMaxLifetime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("timescale client: %w", err)
		}
		store = internalrepo.NewTimescaleMarketStore(pg, l)
		cleanup = func() {
			if err := pg.Close(); err != nil {
				l.Warn("timescale close error", applogger.Error(err))
			}
		}
	default:
		return nil, nil, fmt.Errorf("unsupported backend: %s", cfg.Backend.Type)
	}

	if c != nil {
		store = internalrepo.NewCachedMarketStore(store, c, cfg.Cache.TTL, l)
	}
	l.Info("market store ready", applogger.String("backend", cfg.Backend.Type), applogger.Bool("cached", c != nil))
	return store, cleanup, nil
}

// ProvideForecastPublisher creates the Kafka publisher, or a no-op one when
// Kafka is disabled.
func ProvideForecastPublisher(cfg *config.Config, rec *metrics.Recorder, l *applogger.Logger) (domrepo.ForecastPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopForecastPublisher{}, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithObserver(rec.ObservePublish),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.Topic)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return pub, cleanup, nil
}

// ProvideRunRecorder opens the SQLite run history, or a no-op recorder.
func ProvideRunRecorder(cfg *config.Config, l *applogger.Logger) (domrepo.RunRecorder, func(), error) {
	if !cfg.Recorder.Enabled {
		return internalrepo.NoopRunRecorder{}, func() {}, nil
	}
	rec, err := internalrepo.NewSQLiteRunRecorder(cfg.Recorder.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("run recorder: %w", err)
	}
	l.Info("sqlite recorder opened", applogger.String("path", cfg.Recorder.SQLitePath))
	cleanup := func() {
		if err := rec.Close(); err != nil {
			l.Warn("sqlite close error", applogger.Error(err))
		}
	}
	return rec, cleanup, nil
}

// ProvideTrainForecastUseCase wires the training usecase. The cache, when
// present, also serves as the per-symbol training lock.
func ProvideTrainForecastUseCase(
	cfg *config.Config,
	store domrepo.MarketDataStore,
	pub domrepo.ForecastPublisher,
	rec domrepo.RunRecorder,
	m domrepo.Metrics,
	c cache.Service,
	l *applogger.Logger,
) *usecase.TrainForecastUseCase {
	opts := []usecase.Option{
		usecase.WithWorkers(cfg.Assets.Workers),
		usecase.WithQueryTimeout(cfg.Backend.QueryTimeout),
		usecase.WithLogger(l),
	}
	if c != nil {
		opts = append(opts, usecase.WithLocker(c, time.Hour))
	}
	return usecase.NewTrainForecastUseCase(store, pub, rec, m, cfg.Training, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, uc *usecase.TrainForecastUseCase, rec *metrics.Recorder, l *applogger.Logger) *server.App {
	return server.New(cfg, uc, rec, l)
}
