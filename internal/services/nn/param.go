package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable tensor and its accumulated gradient. Biases are
// stored as (n, 1) matrices.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// newParam draws every entry from U(-bound, bound).
func newParam(name string, rows, cols int, bound float64, rng *rand.Rand) *Param {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (2*rng.Float64() - 1) * bound
	}
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, data),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// Size is the number of scalar weights.
func (p *Param) Size() int {
	r, c := p.Value.Dims()
	return r * c
}
