package training

import (
	"fmt"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	"github.com/alexenache10/NeuralPortofolio/internal/services/dataset"
	"github.com/alexenache10/NeuralPortofolio/internal/services/features"
	"github.com/alexenache10/NeuralPortofolio/internal/services/preprocessing"
)

// Prepared is the output of Prepare: a processor fitted on the train split
// and windowed datasets for both splits.
type Prepared struct {
	Processor *preprocessing.Processor
	Train     *dataset.Windowed
	Test      *dataset.Windowed
	TrainRows int
	TestRows  int
}

// Prepare validates rows, splits them chronologically, fits scaling on the
// train split only and windows both splits. A split with no more rows than
// the sequence length is a configuration error wrapping
// dataset.ErrInsufficientHistory.
func Prepare(rows []models.Candle, cfg Config) (*Prepared, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := features.ValidateSeries(rows); err != nil {
		return nil, err
	}

	train, test := features.TemporalSplit(rows, cfg.TestSize)
	if len(train) <= cfg.SequenceLength {
		return nil, fmt.Errorf("%w: train split has %d rows for sequence_length %d: %w",
			ErrInvalidConfig, len(train), cfg.SequenceLength, dataset.ErrInsufficientHistory)
	}
	if len(test) <= cfg.SequenceLength {
		return nil, fmt.Errorf("%w: test split has %d rows for sequence_length %d: %w",
			ErrInvalidConfig, len(test), cfg.SequenceLength, dataset.ErrInsufficientHistory)
	}

	proc, err := preprocessing.NewProcessor(cfg.FeatureColumns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	trainX, trainY, err := proc.FitTransform(train, cfg.TargetColumn)
	if err != nil {
		return nil, fmt.Errorf("fit train split: %w", err)
	}
	testX, testY, err := proc.Transform(test)
	if err != nil {
		return nil, fmt.Errorf("transform test split: %w", err)
	}

	trainDS, err := dataset.New(trainX, trainY, cfg.SequenceLength)
	if err != nil {
		return nil, fmt.Errorf("train dataset: %w", err)
	}
	testDS, err := dataset.New(testX, testY, cfg.SequenceLength)
	if err != nil {
		return nil, fmt.Errorf("test dataset: %w", err)
	}

	return &Prepared{
		Processor: proc,
		Train:     trainDS,
		Test:      testDS,
		TrainRows: len(train),
		TestRows:  len(test),
	}, nil
}

// Loaders builds sequential, unshuffled loaders over both splits.
func (p *Prepared) Loaders(batchSize int) (train, test *dataset.Loader, err error) {
	train, err = dataset.NewLoader(p.Train, dataset.Options{BatchSize: batchSize})
	if err != nil {
		return nil, nil, fmt.Errorf("train loader: %w", err)
	}
	test, err = dataset.NewLoader(p.Test, dataset.Options{BatchSize: batchSize})
	if err != nil {
		return nil, nil, fmt.Errorf("test loader: %w", err)
	}
	return train, test, nil
}
