package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SequenceEncoder is a stack of LSTM layers that reduces an (L, F) window
// to the top layer's hidden state after the last step.
type SequenceEncoder struct {
	layers  []*LSTM
	dropout float64
	seqLen  int
	in      int
}

func newSequenceEncoder(in, hidden, numLayers, seqLen int, dropout float64, rng *rand.Rand) *SequenceEncoder {
	e := &SequenceEncoder{dropout: dropout, seqLen: seqLen, in: in}
	width := in
	for k := 0; k < numLayers; k++ {
		e.layers = append(e.layers, newLSTM(k, width, hidden, rng))
		width = hidden
	}
	return e
}

type encoderTrace struct {
	steps [][]lstmStep
	// masks[k][t] was applied to layer k's output at step t; nil when
	// dropout was off for that layer.
	masks [][][]float64
}

// Encode runs the encoder in inference mode.
func (e *SequenceEncoder) Encode(window mat.Matrix) (*mat.VecDense, error) {
	xs, err := e.sequence(window)
	if err != nil {
		return nil, err
	}
	h, _ := e.forward(xs, nil)
	return h, nil
}

func (e *SequenceEncoder) HiddenDim() int { return e.layers[0].Hidden }

func (e *SequenceEncoder) NumLayers() int { return len(e.layers) }

// sequence splits a window into per-step input vectors after checking its
// shape.
func (e *SequenceEncoder) sequence(window mat.Matrix) ([]*mat.VecDense, error) {
	if window == nil {
		return nil, fmt.Errorf("%w: nil window", ErrDimensionMismatch)
	}
	r, c := window.Dims()
	if r != e.seqLen || c != e.in {
		return nil, fmt.Errorf("%w: window is (%d, %d), want (%d, %d)", ErrDimensionMismatch, r, c, e.seqLen, e.in)
	}
	xs := make([]*mat.VecDense, r)
	for t := range xs {
		xs[t] = mat.NewVecDense(c, mat.Row(nil, t, window))
	}
	return xs, nil
}

// forward applies inter-layer dropout only when rng is non-nil.
func (e *SequenceEncoder) forward(xs []*mat.VecDense, rng *rand.Rand) (*mat.VecDense, *encoderTrace) {
	tr := &encoderTrace{
		steps: make([][]lstmStep, len(e.layers)),
		masks: make([][][]float64, len(e.layers)),
	}
	in := xs
	for k, layer := range e.layers {
		outs, steps := layer.forward(in)
		tr.steps[k] = steps
		if k < len(e.layers)-1 && rng != nil && e.dropout > 0 {
			masks := make([][]float64, len(outs))
			for t, h := range outs {
				masks[t] = dropoutMask(rng, layer.Hidden, e.dropout)
				outs[t] = applyMask(h, masks[t])
			}
			tr.masks[k] = masks
		}
		in = outs
	}
	return in[len(in)-1], tr
}

// backward propagates dh, the gradient at the final top-layer output, down
// through every layer.
func (e *SequenceEncoder) backward(tr *encoderTrace, dh *mat.VecDense) {
	n := len(tr.steps[0])
	dhs := make([]*mat.VecDense, n)
	dhs[n-1] = dh
	for k := len(e.layers) - 1; k >= 0; k-- {
		dxs := e.layers[k].backward(tr.steps[k], dhs)
		if k == 0 {
			return
		}
		if masks := tr.masks[k-1]; masks != nil {
			for t, dx := range dxs {
				floats.Mul(dx.RawVector().Data, masks[t])
			}
		}
		dhs = dxs
	}
}

func (e *SequenceEncoder) params() []*Param {
	var out []*Param
	for _, l := range e.layers {
		out = append(out, l.params()...)
	}
	return out
}
