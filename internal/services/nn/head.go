package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const headWidth = 32

// RegressionHead maps an encoded window to the output:
// Linear(H, 32) -> ReLU -> Dropout -> Linear(32, out).
type RegressionHead struct {
	fc1     *Linear
	fc2     *Linear
	dropout float64
}

func newRegressionHead(hidden, out int, dropout float64, rng *rand.Rand) *RegressionHead {
	return &RegressionHead{
		fc1:     newLinear("head.fc1", hidden, headWidth, rng),
		fc2:     newLinear("head.fc2", headWidth, out, rng),
		dropout: dropout,
	}
}

type headTrace struct {
	h    *mat.VecDense
	pre  *mat.VecDense // fc1 output before ReLU
	act  *mat.VecDense // after ReLU and dropout
	mask []float64
}

// Predict runs the head in inference mode.
func (r *RegressionHead) Predict(h mat.Vector) (*mat.VecDense, error) {
	if h == nil || h.Len() != r.fc1.In {
		n := 0
		if h != nil {
			n = h.Len()
		}
		return nil, fmt.Errorf("%w: encoding has %d values, want %d", ErrDimensionMismatch, n, r.fc1.In)
	}
	y, _ := r.forward(mat.VecDenseCopyOf(h), nil)
	return y, nil
}

func (r *RegressionHead) OutputDim() int { return r.fc2.Out }

func (r *RegressionHead) forward(h *mat.VecDense, rng *rand.Rand) (*mat.VecDense, headTrace) {
	pre := r.fc1.Forward(h)
	act := mat.NewVecDense(pre.Len(), nil)
	for k := 0; k < pre.Len(); k++ {
		if v := pre.AtVec(k); v > 0 {
			act.SetVec(k, v)
		}
	}
	tr := headTrace{h: h, pre: pre}
	if rng != nil && r.dropout > 0 {
		tr.mask = dropoutMask(rng, act.Len(), r.dropout)
		act = applyMask(act, tr.mask)
	}
	tr.act = act
	return r.fc2.Forward(act), tr
}

// backward returns the gradient with respect to the encoded input.
func (r *RegressionHead) backward(tr headTrace, dy *mat.VecDense) *mat.VecDense {
	da := r.fc2.backward(tr.act, dy)
	d := da.RawVector().Data
	if tr.mask != nil {
		floats.Mul(d, tr.mask)
	}
	for k := range d {
		if tr.pre.AtVec(k) <= 0 {
			d[k] = 0
		}
	}
	return r.fc1.backward(tr.h, da)
}

func (r *RegressionHead) params() []*Param {
	return append(r.fc1.params(), r.fc2.params()...)
}
