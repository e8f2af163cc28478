package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	"github.com/alexenache10/NeuralPortofolio/internal/services/features"
)

// Processor owns two independent min-max scalers: one over the feature
// columns and one over the target column. It is fitted exactly once; later
// Transform and inverse calls reuse the fitted parameters.
type Processor struct {
	featureColumns []string
	targetColumn   string
	features       MinMaxScaler
	target         MinMaxScaler
	fitted         bool
}

// NewProcessor creates an unfitted processor for the ordered feature columns.
func NewProcessor(featureColumns []string) (*Processor, error) {
	if len(featureColumns) == 0 {
		return nil, fmt.Errorf("feature columns: %w", features.ErrUnknownColumn)
	}
	for _, col := range featureColumns {
		if _, err := features.Value(models.Candle{}, col); err != nil {
			return nil, fmt.Errorf("feature columns: %w", err)
		}
	}
	cols := make([]string, len(featureColumns))
	copy(cols, featureColumns)
	return &Processor{featureColumns: cols}, nil
}

// FitTransform fits both scalers on candles and returns the scaled feature
// matrix (N, F) and target vector (N). Calling it twice fails with
// ErrAlreadyFitted.
func (p *Processor) FitTransform(candles []models.Candle, targetColumn string) (*mat.Dense, *mat.VecDense, error) {
	if p.fitted {
		return nil, nil, ErrAlreadyFitted
	}
	if len(candles) == 0 {
		return nil, nil, fmt.Errorf("fit: %w", ErrEmptyInput)
	}
	x, err := features.Matrix(candles, p.featureColumns)
	if err != nil {
		return nil, nil, fmt.Errorf("fit features: %w", err)
	}
	y, err := features.Column(candles, targetColumn)
	if err != nil {
		return nil, nil, fmt.Errorf("fit target: %w", err)
	}
	if err := p.features.Fit(x); err != nil {
		return nil, nil, fmt.Errorf("fit features: %w", err)
	}
	if err := p.target.Fit(asColumn(y)); err != nil {
		return nil, nil, fmt.Errorf("fit target: %w", err)
	}
	p.targetColumn = targetColumn
	p.fitted = true
	return p.Transform(candles)
}

// Transform scales candles with the fitted parameters. An empty input
// yields nil results without error so short splits surface later as
// insufficient history.
func (p *Processor) Transform(candles []models.Candle) (*mat.Dense, *mat.VecDense, error) {
	if !p.fitted {
		return nil, nil, ErrUnfitted
	}
	if len(candles) == 0 {
		return nil, nil, nil
	}
	x, err := features.Matrix(candles, p.featureColumns)
	if err != nil {
		return nil, nil, err
	}
	y, err := features.Column(candles, p.targetColumn)
	if err != nil {
		return nil, nil, err
	}
	sx, err := p.features.Transform(x)
	if err != nil {
		return nil, nil, fmt.Errorf("transform features: %w", err)
	}
	sy, err := p.target.Transform(asColumn(y))
	if err != nil {
		return nil, nil, fmt.Errorf("transform target: %w", err)
	}
	return sx, asVector(sy), nil
}

// InverseTransformTarget maps scaled target values back to price scale.
func (p *Processor) InverseTransformTarget(scaled []float64) ([]float64, error) {
	if !p.fitted {
		return nil, ErrUnfitted
	}
	if len(scaled) == 0 {
		return []float64{}, nil
	}
	out, err := p.target.InverseTransform(mat.NewDense(len(scaled), 1, append([]float64(nil), scaled...)))
	if err != nil {
		return nil, err
	}
	return out.RawMatrix().Data, nil
}

func (p *Processor) Fitted() bool { return p.fitted }

func (p *Processor) FeatureColumns() []string {
	out := make([]string, len(p.featureColumns))
	copy(out, p.featureColumns)
	return out
}

func (p *Processor) TargetColumn() string { return p.targetColumn }

// TargetRange returns the (min, max) of the target fit corpus.
func (p *Processor) TargetRange() (lo, hi float64, err error) {
	return p.target.Range(0)
}

func asColumn(v *mat.VecDense) *mat.Dense {
	return mat.NewDense(v.Len(), 1, v.RawVector().Data)
}

func asVector(d *mat.Dense) *mat.VecDense {
	r, _ := d.Dims()
	return mat.NewVecDense(r, d.RawMatrix().Data)
}
