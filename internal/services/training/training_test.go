package training

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	"github.com/alexenache10/NeuralPortofolio/internal/services/dataset"
	"github.com/alexenache10/NeuralPortofolio/internal/services/features"
	"github.com/alexenache10/NeuralPortofolio/internal/services/nn"
)

// linearBars returns n daily bars whose close rises by 1 each day.
func linearBars(n int) []models.Candle {
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		c := float64(i + 1)
		out[i] = models.Candle{
			Time:   start.AddDate(0, 0, i),
			Symbol: "NVDA",
			Open:   c - 0.3,
			High:   c + 0.5,
			Low:    c - 0.6,
			Close:  c,
			Volume: int64(10000 + 50*i),
		}
	}
	return out
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.SequenceLength = 10
	cfg.HiddenDim = 16
	cfg.NumLayers = 2
	cfg.Dropout = 0
	cfg.BatchSize = 16
	cfg.LearningRate = 0.01
	cfg.Epochs = 60
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.SequenceLength != 60 || c.TestSize != 0.2 || c.TargetColumn != "close" ||
		c.HiddenDim != 64 || c.NumLayers != 2 || c.Dropout != 0.2 || c.BatchSize != 32 ||
		c.LearningRate != 0.001 || c.Epochs != 20 || c.GradClip != 1.0 || c.Seed != 42 {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if len(c.FeatureColumns) != 5 || c.FeatureColumns[0] != "open" || c.FeatureColumns[4] != "volume" {
		t.Fatalf("feature columns %v", c.FeatureColumns)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if mc := c.ModelConfig(); mc.InputDim != 5 || mc.OutputDim != 1 || mc.SeqLen != 60 {
		t.Fatalf("model config %+v", mc)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"zero dropout", func(c *Config) { c.Dropout = 0 }, true},
		{"test size one", func(c *Config) { c.TestSize = 1 }, false},
		{"test size zero", func(c *Config) { c.TestSize = 0 }, false},
		{"dropout one", func(c *Config) { c.Dropout = 1 }, false},
		{"duplicate features", func(c *Config) { c.FeatureColumns = []string{"close", "close"} }, false},
		{"unknown feature", func(c *Config) { c.FeatureColumns = []string{"close", "vwap"} }, false},
		{"no features", func(c *Config) { c.FeatureColumns = nil }, false},
		{"unknown target", func(c *Config) { c.TargetColumn = "adj_close" }, false},
		{"zero sequence", func(c *Config) { c.SequenceLength = 0 }, false},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mutate(&c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestPrepareSplitsAndFitsOnTrainOnly(t *testing.T) {
	p, err := Prepare(linearBars(100), smallConfig())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if p.TrainRows != 80 || p.TestRows != 20 {
		t.Fatalf("rows %d/%d, want 80/20", p.TrainRows, p.TestRows)
	}
	if p.Train.Len() != 70 || p.Test.Len() != 10 {
		t.Fatalf("windows %d/%d, want 70/10", p.Train.Len(), p.Test.Len())
	}
	lo, hi, err := p.Processor.TargetRange()
	if err != nil || lo != 1 || hi != 80 {
		t.Fatalf("target fitted on (%v, %v), want train range (1, 80)", lo, hi)
	}
	// test prices exceed the train max and extrapolate past 1
	_, label, _ := p.Test.Get(p.Test.Len() - 1)
	if want := (100.0 - 1) / 79; math.Abs(label-want) > 1e-12 {
		t.Fatalf("last test label %v, want %v", label, want)
	}
}

func TestPrepareInsufficientHistory(t *testing.T) {
	cfg := smallConfig()
	for _, n := range []int{0, 11, 40} {
		_, err := Prepare(linearBars(n), cfg)
		if !errors.Is(err, dataset.ErrInsufficientHistory) || !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%d rows: expected insufficient history config error, got %v", n, err)
		}
	}
}

func TestPrepareRejectsUnorderedRows(t *testing.T) {
	rows := linearBars(100)
	rows[50], rows[51] = rows[51], rows[50]
	if _, err := Prepare(rows, smallConfig()); !errors.Is(err, features.ErrUnorderedSeries) {
		t.Fatalf("expected ErrUnorderedSeries, got %v", err)
	}
}

func TestNaiveBaseline(t *testing.T) {
	p, err := Prepare(linearBars(100), smallConfig())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	want := 1.0 / (79 * 79)
	if got := NaiveBaselineMSE(p.Test); math.Abs(got-want) > 1e-12 {
		t.Fatalf("baseline %v, want %v", got, want)
	}
}

func TestEndToEndTrainingReducesError(t *testing.T) {
	cfg := smallConfig()
	p, err := Prepare(linearBars(100), cfg)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	trainLoader, testLoader, err := p.Loaders(cfg.BatchSize)
	if err != nil {
		t.Fatalf("loaders: %v", err)
	}
	model, err := nn.New(cfg.ModelConfig())
	if err != nil {
		t.Fatalf("model: %v", err)
	}

	before, err := Evaluate(model, trainLoader)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	var hooked []int
	tr := NewTrainer(model, cfg, WithEpochHook(func(s models.EpochStats) { hooked = append(hooked, s.Epoch) }))
	report, err := tr.Fit(context.Background(), trainLoader, testLoader)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(report.Epochs) != cfg.Epochs || len(hooked) != cfg.Epochs {
		t.Fatalf("epochs reported %d, hooked %d", len(report.Epochs), len(hooked))
	}
	if model.Training() {
		t.Fatalf("model should be left in eval mode")
	}

	after, err := tr.Evaluate(trainLoader)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !(after < 0.5*before) {
		t.Fatalf("training did not reduce error: before %v, after %v", before, after)
	}
	if math.IsNaN(report.TestLoss) || report.TestLoss != report.Epochs[len(report.Epochs)-1].TestLoss {
		t.Fatalf("test loss %v", report.TestLoss)
	}

	f, err := NewForecaster(p.Processor, model)
	if err != nil {
		t.Fatalf("forecaster: %v", err)
	}
	history := linearBars(100)
	fc, err := f.Forecast(context.Background(), "NVDA", history)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if fc.LastClose != 100 || !fc.AsOf.Equal(history[99].Time) || fc.Model != ModelName {
		t.Fatalf("unexpected forecast %+v", fc)
	}
	if math.IsNaN(fc.PredictedClose) || math.IsInf(fc.PredictedClose, 0) {
		t.Fatalf("predicted close %v", fc.PredictedClose)
	}

	if _, err := f.Forecast(context.Background(), "NVDA", history[:5]); !errors.Is(err, dataset.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestTrainingBeatsNaiveBaselineOnTrainSplit(t *testing.T) {
	if testing.Short() {
		t.Skip("long fit")
	}
	cfg := smallConfig()
	cfg.Epochs = 200
	p, err := Prepare(linearBars(100), cfg)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	trainLoader, testLoader, err := p.Loaders(cfg.BatchSize)
	if err != nil {
		t.Fatalf("loaders: %v", err)
	}
	model, err := nn.New(cfg.ModelConfig())
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	if _, err := NewTrainer(model, cfg).Fit(context.Background(), trainLoader, testLoader); err != nil {
		t.Fatalf("fit: %v", err)
	}

	got, err := Evaluate(model, trainLoader)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	baseline := NaiveBaselineMSE(p.Train)
	if !(got < baseline) {
		t.Fatalf("train mse %v does not beat naive baseline %v", got, baseline)
	}
}

func TestNonFiniteBarsAreRejected(t *testing.T) {
	rows := linearBars(100)
	rows[5].High = math.NaN()
	if _, err := Prepare(rows, smallConfig()); !errors.Is(err, features.ErrNonFiniteValue) {
		t.Fatalf("prepare: expected ErrNonFiniteValue, got %v", err)
	}

	cfg := smallConfig()
	cfg.Epochs = 1
	p, err := Prepare(linearBars(100), cfg)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	model, _ := nn.New(cfg.ModelConfig())
	f, err := NewForecaster(p.Processor, model)
	if err != nil {
		t.Fatalf("forecaster: %v", err)
	}
	history := linearBars(100)
	history[95].Close = math.Inf(1)
	if _, err := f.Forecast(context.Background(), "NVDA", history); !errors.Is(err, features.ErrNonFiniteValue) {
		t.Fatalf("forecast: expected ErrNonFiniteValue, got %v", err)
	}
}

func TestForecastRejectsNonFiniteOutput(t *testing.T) {
	cfg := smallConfig()
	p, err := Prepare(linearBars(100), cfg)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	model, _ := nn.New(cfg.ModelConfig())
	params := model.Params()
	// output bias of the head
	params[len(params)-1].Value.Set(0, 0, math.NaN())

	f, _ := NewForecaster(p.Processor, model)
	fc, err := f.Forecast(context.Background(), "NVDA", linearBars(100))
	if !errors.Is(err, ErrNonFiniteForecast) {
		t.Fatalf("expected ErrNonFiniteForecast, got %v (price %v)", err, fc.PredictedClose)
	}
}

func TestFitStopsOnCancel(t *testing.T) {
	cfg := smallConfig()
	p, _ := Prepare(linearBars(100), cfg)
	trainLoader, _, _ := p.Loaders(cfg.BatchSize)
	model, _ := nn.New(cfg.ModelConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := NewTrainer(model, cfg).Fit(ctx, trainLoader, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Epochs) != 0 {
		t.Fatalf("no epoch should complete, got %d", len(report.Epochs))
	}
}

func TestNewForecasterRequiresFittedProcessor(t *testing.T) {
	if _, err := NewForecaster(nil, nil); err == nil {
		t.Fatalf("expected error for nil processor")
	}
}
