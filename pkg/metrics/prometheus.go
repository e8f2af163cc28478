package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder implements domain.repository.Metrics on a private Prometheus
// registry. A batch trainer has no scrape endpoint, so Push sends the
// registry to a Pushgateway after each run.
type Recorder struct {
	registry      *prometheus.Registry
	epochLoss     *prometheus.GaugeVec
	runsTotal     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	forecastPrice *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	kafkaMessages *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		epochLoss: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "neuralportofolio_epoch_loss",
				Help: "Scaled-space MSE of the latest epoch",
			},
			[]string{"symbol", "split"},
		),
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuralportofolio_training_runs_total",
				Help: "Training runs by outcome",
			},
			[]string{"symbol", "status"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuralportofolio_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		forecastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "neuralportofolio_forecast_close",
				Help: "Latest predicted next close",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neuralportofolio_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"operation"},
		),
		kafkaMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuralportofolio_kafka_messages_total",
				Help: "Messages published to Kafka",
			},
			[]string{"topic", "result"},
		),
	}
}

// Registry exposes the private registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) RecordEpoch(symbol string, _ int, trainLoss, testLoss float64) {
	r.epochLoss.WithLabelValues(symbol, "train").Set(trainLoss)
	r.epochLoss.WithLabelValues(symbol, "test").Set(testLoss)
}

func (r *Recorder) RecordRun(symbol, status string) {
	r.runsTotal.WithLabelValues(symbol, status).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordForecast(symbol string, price float64) {
	r.forecastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// ObservePublish matches kafka.PublishObserver.
func (r *Recorder) ObservePublish(topic string, messages, _ int, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.kafkaMessages.WithLabelValues(topic, result).Add(float64(messages))
	r.latency.WithLabelValues("kafka_publish").Observe(took.Seconds())
}

// Push replaces the job's metrics on the Pushgateway at url.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordEpoch(string, int, float64, float64) {}
func (Noop) RecordRun(string, string)                  {}
func (Noop) RecordError(string)                        {}
func (Noop) RecordForecast(string, float64)            {}
func (Noop) RecordLatency(string, float64)             {}
