package training

import (
	"errors"
	"fmt"

	"github.com/alexenache10/NeuralPortofolio/internal/services/nn"
	"github.com/alexenache10/NeuralPortofolio/pkg/validate"
)

var ErrInvalidConfig = errors.New("invalid training config")

// Config holds windowing, split and model hyperparameters. It is embedded
// under the `training` key of the application config.
type Config struct {
	SequenceLength int      `yaml:"sequence_length" default:"60" validate:"gt=0"`
	TestSize       float64  `yaml:"test_size" default:"0.2" validate:"gt=0,lt=1"`
	FeatureColumns []string `yaml:"feature_columns" default:"[\"open\",\"high\",\"low\",\"close\",\"volume\"]" validate:"min=1,unique,dive,oneof=open high low close volume"`
	TargetColumn   string   `yaml:"target_column" default:"close" validate:"oneof=open high low close volume"`
	HiddenDim      int      `yaml:"hidden_dim" default:"64" validate:"gt=0"`
	NumLayers      int      `yaml:"num_layers" default:"2" validate:"gt=0"`
	Dropout        float64  `yaml:"dropout" default:"0.2" validate:"gte=0,lt=1"`
	BatchSize      int      `yaml:"batch_size" default:"32" validate:"gt=0"`
	LearningRate   float64  `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
	Epochs         int      `yaml:"epochs" default:"20" validate:"gt=0"`
	GradClip       float64  `yaml:"grad_clip" default:"1.0" validate:"gte=0"`
	Seed           uint64   `yaml:"seed" default:"42"`
}

// DefaultConfig returns the tag defaults.
func DefaultConfig() Config {
	var c Config
	// tags are static; an error here is a programming bug
	if err := validate.Defaults(&c); err != nil {
		panic(err)
	}
	return c
}

// Validate checks the tag rules without applying defaults, so explicit
// zeros such as dropout: 0 are kept.
func (c Config) Validate() error {
	if err := validate.Struct(&c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ModelConfig derives the network shape. Output is a single next-step value.
func (c Config) ModelConfig() nn.Config {
	return nn.Config{
		InputDim:  len(c.FeatureColumns),
		HiddenDim: c.HiddenDim,
		OutputDim: 1,
		NumLayers: c.NumLayers,
		SeqLen:    c.SequenceLength,
		Dropout:   c.Dropout,
		Seed:      c.Seed,
	}
}
