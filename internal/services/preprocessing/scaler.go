package preprocessing

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnfitted      = errors.New("scaler is not fitted")
	ErrAlreadyFitted = errors.New("scaler is already fitted")
	ErrEmptyInput    = errors.New("empty input")
	ErrColumnCount   = errors.New("column count mismatch")
)

// MinMaxScaler maps every column of a fit corpus from [min, max] to [0, 1].
// Values outside the fit range extrapolate past the unit interval.
type MinMaxScaler struct {
	min    []float64
	max    []float64
	scale  []float64 // max-min, 1 for a constant column
	fitted bool
}

// Fit learns per-column ranges. A scaler can only be fitted once.
func (s *MinMaxScaler) Fit(x mat.Matrix) error {
	if s.fitted {
		return ErrAlreadyFitted
	}
	if x == nil {
		return ErrEmptyInput
	}
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return ErrEmptyInput
	}
	lo := make([]float64, c)
	hi := make([]float64, c)
	for j := 0; j < c; j++ {
		lo[j], hi[j] = x.At(0, j), x.At(0, j)
		for i := 1; i < r; i++ {
			v := x.At(i, j)
			if v < lo[j] {
				lo[j] = v
			}
			if v > hi[j] {
				hi[j] = v
			}
		}
	}
	scale := make([]float64, c)
	for j := range scale {
		scale[j] = hi[j] - lo[j]
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	s.min, s.max, s.scale = lo, hi, scale
	s.fitted = true
	return nil
}

// Transform applies (x - min) / (max - min) column-wise.
func (s *MinMaxScaler) Transform(x mat.Matrix) (*mat.Dense, error) {
	return s.apply(x, func(v float64, j int) float64 { return (v - s.min[j]) / s.scale[j] })
}

// InverseTransform maps scaled values back to the original range.
func (s *MinMaxScaler) InverseTransform(x mat.Matrix) (*mat.Dense, error) {
	return s.apply(x, func(v float64, j int) float64 { return v*s.scale[j] + s.min[j] })
}

func (s *MinMaxScaler) apply(x mat.Matrix, fn func(v float64, j int) float64) (*mat.Dense, error) {
	if !s.fitted {
		return nil, ErrUnfitted
	}
	if x == nil {
		return nil, ErrEmptyInput
	}
	r, c := x.Dims()
	if r == 0 {
		return nil, ErrEmptyInput
	}
	if c != len(s.min) {
		return nil, fmt.Errorf("%w: got %d, fitted on %d", ErrColumnCount, c, len(s.min))
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 { return fn(v, j) }, x)
	return out, nil
}

// Fitted reports whether Fit succeeded.
func (s *MinMaxScaler) Fitted() bool { return s.fitted }

// Range returns the learned bounds of column j.
func (s *MinMaxScaler) Range(j int) (lo, hi float64, err error) {
	if !s.fitted {
		return 0, 0, ErrUnfitted
	}
	if j < 0 || j >= len(s.min) {
		return 0, 0, fmt.Errorf("%w: column %d of %d", ErrColumnCount, j, len(s.min))
	}
	return s.min[j], s.max[j], nil
}
