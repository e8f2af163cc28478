package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/alexenache10/NeuralPortofolio/internal/services/training"
	"github.com/alexenache10/NeuralPortofolio/pkg/util"
	"github.com/alexenache10/NeuralPortofolio/pkg/validate"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Logger      struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`
	Backend struct {
		Type         string        `yaml:"type" default:"timescale" validate:"oneof=timescale clickhouse"`
		QueryTimeout time.Duration `yaml:"query_timeout" default:"30s"`
	} `yaml:"backend"`
	Timescale struct {
		Host            string        `yaml:"host" default:"localhost"`
		Port            int           `yaml:"port" default:"5432" validate:"gt=0"`
		Database        string        `yaml:"database"`
		User            string        `yaml:"user"`
		Password        string        `yaml:"password"`
		SSLMode         string        `yaml:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"5m"`
	} `yaml:"timescale"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000" validate:"gt=0"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"market_data_daily"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Cache struct {
		Enabled       bool          `yaml:"enabled"`
		TTL             time.Duration `yaml:"ttl" default:"15m"`
		MemoryMaxSize   int           `yaml:"memory_max_size" default:"256"`
		CleanupInterval time.Duration `yaml:"cleanup_interval" default:"5m" validate:"gt=0"`
		Redis           struct {
			Enabled      bool          `yaml:"enabled"`
			Addr         string        `yaml:"addr" default:"localhost:6379"`
			Password     string        `yaml:"password"`
			DB           int           `yaml:"db"`
			Prefix       string        `yaml:"prefix" default:"np:"`
			PoolSize     int           `yaml:"pool_size" default:"10" validate:"gt=0"`
			MinIdleConns int           `yaml:"min_idle_conns" default:"2" validate:"gte=0"`
			PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"price_forecasts"`
		RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Metrics struct {
		Enabled        bool   `yaml:"enabled"`
		PushgatewayURL string `yaml:"pushgateway_url"`
		Job            string `yaml:"job" default:"neuralportofolio_trainer"`
	} `yaml:"metrics"`
	Recorder struct {
		Enabled    bool   `yaml:"enabled" default:"true"`
		SQLitePath string `yaml:"sqlite_path" default:"runs.db"`
	} `yaml:"recorder"`
	Schedule struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start" default:"true"`
	} `yaml:"schedule"`
	Assets struct {
		Symbols      []string `yaml:"symbols" default:"[\"AAPL\",\"MSFT\",\"TSLA\",\"NVDA\",\"AMZN\",\"GOOGL\",\"BTC-USD\",\"ETH-USD\",\"SPY\",\"QQQ\",\"GLD\"]" validate:"min=1,unique"`
		HistoryYears int      `yaml:"history_years" default:"5" validate:"gt=0"`
		From         string   `yaml:"from"` // YYYY-MM-DD, overrides history_years
		Workers      int      `yaml:"workers" default:"2" validate:"gt=0"`
	} `yaml:"assets"`
	Training training.Config `yaml:"training"`
}

// Default returns a config populated only from `default` tags.
func Default() (*Config, error) {
	var c Config
	if err := validate.Defaults(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. Defaults are applied
// before decoding so explicit zero values in the file win.
func Load(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then overrides with
// environment variables and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Timescale.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		c.Timescale.Port = util.ParseIntDefault(v, c.Timescale.Port)
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		c.Timescale.Database = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		c.Timescale.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Timescale.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_USER"); v != "" {
		c.ClickHouse.User = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Assets.Symbols = util.SplitList(v)
	}
}

// Validate checks tag rules plus cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Training.Validate(); err != nil {
		return err
	}
	if c.Backend.Type == "timescale" && c.Timescale.Database == "" {
		return fmt.Errorf("timescale.database is required for backend timescale")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.PushgatewayURL == "" {
		return fmt.Errorf("metrics.pushgateway_url is required when metrics are enabled")
	}
	if c.Recorder.Enabled && c.Recorder.SQLitePath == "" {
		return fmt.Errorf("recorder.sqlite_path is required when the recorder is enabled")
	}
	if c.Schedule.Cron != "" {
		if _, err := CronParser.Parse(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
	}
	if c.Assets.From != "" {
		if _, ok := util.ParseTime(c.Assets.From); !ok {
			return fmt.Errorf("assets.from %q is not a date", c.Assets.From)
		}
	}
	return nil
}

// CronParser accepts the seconds-first specs the scheduler runs with.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// HistoryStart returns the first day of history to load relative to now.
func (c *Config) HistoryStart(now time.Time) time.Time {
	return util.ParseTimeDefault(c.Assets.From, now.AddDate(-c.Assets.HistoryYears, 0, 0))
}
