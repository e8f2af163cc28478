package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	domrepo "github.com/alexenache10/NeuralPortofolio/internal/domain/repository"
	pkgkafka "github.com/alexenache10/NeuralPortofolio/pkg/kafka"
)

// priceDecimals is the precision forecast prices are published with.
const priceDecimals = 4

var ErrNonFinitePrice = errors.New("non-finite price")

// ForecastEvent is the JSON payload of a forecast message.
type ForecastEvent struct {
	RunID          string          `json:"run_id"`
	Symbol         string          `json:"symbol"`
	AsOf           time.Time       `json:"as_of"`
	GeneratedAt    time.Time       `json:"generated_at"`
	LastClose      decimal.Decimal `json:"last_close"`
	PredictedClose decimal.Decimal `json:"predicted_close"`
	ChangePct      decimal.Decimal `json:"change_pct"`
	Model          string          `json:"model"`
}

// NewForecastEvent converts a forecast into its wire form.
func NewForecastEvent(f *models.PriceForecast) ForecastEvent {
	last := decimal.NewFromFloat(f.LastClose).Round(priceDecimals)
	pred := decimal.NewFromFloat(f.PredictedClose).Round(priceDecimals)
	change := decimal.Zero
	if !last.IsZero() {
		change = pred.Sub(last).Div(last).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return ForecastEvent{
		RunID:          f.RunID,
		Symbol:         f.Symbol,
		AsOf:           f.AsOf.UTC(),
		GeneratedAt:    f.GeneratedAt.UTC(),
		LastClose:      last,
		PredictedClose: pred,
		ChangePct:      change,
		Model:          f.Model,
	}
}

type eventPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaForecastPublisher keys forecast events by symbol.
type KafkaForecastPublisher struct {
	producer eventPublisher
	topic    string
}

func NewKafkaForecastPublisher(producer *pkgkafka.Producer, topic string) domrepo.ForecastPublisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

// Publish rejects forecasts that cannot be expressed as decimals.
func (p *KafkaForecastPublisher) Publish(ctx context.Context, f *models.PriceForecast) error {
	for _, v := range []float64{f.LastClose, f.PredictedClose} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("publish %s: %w", f.Symbol, ErrNonFinitePrice)
		}
	}
	return p.producer.Publish(ctx, p.topic, []byte(f.Symbol), NewForecastEvent(f))
}

func (p *KafkaForecastPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopForecastPublisher is used when Kafka is disabled.
type NoopForecastPublisher struct{}

func (NoopForecastPublisher) Publish(context.Context, *models.PriceForecast) error { return nil }
func (NoopForecastPublisher) Close() error                                         { return nil }
