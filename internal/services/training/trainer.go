package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	"github.com/alexenache10/NeuralPortofolio/internal/services/dataset"
	"github.com/alexenache10/NeuralPortofolio/internal/services/nn"
	"github.com/alexenache10/NeuralPortofolio/pkg/logger"
)

// EpochHook is called after every epoch.
type EpochHook func(stats models.EpochStats)

// Report lists per-epoch losses in scaled space.
type Report struct {
	Epochs   []models.EpochStats
	TestLoss float64
}

// Trainer runs mini-batch Adam over a model it does not share.
type Trainer struct {
	model   *nn.Model
	opt     *nn.Adam
	cfg     Config
	log     *logger.Logger
	onEpoch EpochHook
}

type TrainerOption func(*Trainer)

func WithLogger(l *logger.Logger) TrainerOption {
	return func(t *Trainer) { t.log = l }
}

func WithEpochHook(h EpochHook) TrainerOption {
	return func(t *Trainer) { t.onEpoch = h }
}

func NewTrainer(model *nn.Model, cfg Config, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		model: model,
		opt:   nn.NewAdam(model.Params(), cfg.LearningRate),
		cfg:   cfg,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trainer) Model() *nn.Model { return t.model }

// Fit trains for cfg.Epochs passes over train in order and evaluates test
// after each epoch. test may be nil. Cancelling ctx stops between batches
// and returns the epochs completed so far.
func (t *Trainer) Fit(ctx context.Context, train, test *dataset.Loader) (*Report, error) {
	if train == nil {
		return nil, errors.New("fit: nil train loader")
	}
	report := &Report{}
	params := t.model.Params()

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()
		t.model.Train()

		sum, n := 0.0, 0
		for _, b := range train.All() {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			t.model.ZeroGrad()
			loss, err := t.model.AccumulateGradients(b.Windows, labelsMatrix(b))
			if err != nil {
				return report, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			nn.ClipGradNorm(params, t.cfg.GradClip)
			t.opt.Step()

			sum += loss * float64(b.Size())
			n += b.Size()
		}

		stats := models.EpochStats{Epoch: epoch, TrainLoss: sum / float64(n)}
		if test != nil {
			testLoss, err := t.Evaluate(test)
			if err != nil {
				return report, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			stats.TestLoss = testLoss
			report.TestLoss = testLoss
		}
		stats.Duration = time.Since(start)
		report.Epochs = append(report.Epochs, stats)

		t.log.Debug("epoch finished",
			logger.Int("epoch", epoch),
			logger.Float64("train_loss", stats.TrainLoss),
			logger.Float64("test_loss", stats.TestLoss),
			logger.Duration("duration_ms", stats.Duration),
		)
		if t.onEpoch != nil {
			t.onEpoch(stats)
		}
	}
	t.model.Eval()
	return report, nil
}

// Evaluate returns the sample-weighted MSE over loader in inference mode.
func (t *Trainer) Evaluate(loader *dataset.Loader) (float64, error) {
	return Evaluate(t.model, loader)
}

// Evaluate scores model on every batch of loader without dropout.
func Evaluate(model *nn.Model, loader *dataset.Loader) (float64, error) {
	if loader == nil {
		return 0, errors.New("evaluate: nil loader")
	}
	sum, n := 0.0, 0
	for _, b := range loader.All() {
		pred, err := model.Predict(b.Windows)
		if err != nil {
			return 0, fmt.Errorf("evaluate: %w", err)
		}
		loss, err := nn.MSE(pred, labelsMatrix(b))
		if err != nil {
			return 0, fmt.Errorf("evaluate: %w", err)
		}
		sum += loss * float64(b.Size())
		n += b.Size()
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func labelsMatrix(b dataset.Batch) *mat.Dense {
	return mat.NewDense(b.Size(), 1, b.Labels.RawVector().Data)
}
