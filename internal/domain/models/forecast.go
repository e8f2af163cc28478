package models

import "time"

// PriceForecast is a single next-close prediction for one asset.
type PriceForecast struct {
	RunID          string
	Symbol         string
	AsOf           time.Time // time of the last bar the model consumed
	GeneratedAt    time.Time
	LastClose      float64
	PredictedClose float64
	Model          string // "lstm"
}

// EpochStats holds the scaled-space losses of one training epoch.
type EpochStats struct {
	Epoch     int
	TrainLoss float64
	TestLoss  float64
	Duration  time.Duration
}

// TrainingRun records a full fit/evaluate/forecast cycle for one asset.
type TrainingRun struct {
	ID           string
	Symbol       string
	StartedAt    time.Time
	FinishedAt   time.Time
	Rows         int
	TrainRows    int
	TestRows     int
	TrainWindows int
	TestWindows  int
	Epochs       []EpochStats
	TestLoss     float64
	BaselineLoss float64 // naive "previous close" predictor on the test split
	Forecast     *PriceForecast
}

// FinalTrainLoss returns the last epoch's training loss, or 0 without epochs.
func (r *TrainingRun) FinalTrainLoss() float64 {
	if len(r.Epochs) == 0 {
		return 0
	}
	return r.Epochs[len(r.Epochs)-1].TrainLoss
}

// TrainingSummary aggregates a multi-asset run.
// Errors is keyed by symbol; assets listed there were skipped.
type TrainingSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Runs       []*TrainingRun
	Errors     map[string]string
}
