package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LSTM is one recurrent layer. Gate rows are stacked input, forget, cell,
// output, each Hidden wide.
type LSTM struct {
	In, Hidden int
	Wih        *Param // (4H, In)
	Whh        *Param // (4H, H)
	Bih        *Param // (4H, 1)
	Bhh        *Param // (4H, 1)
}

func newLSTM(layer, in, hidden int, rng *rand.Rand) *LSTM {
	bound := 1 / math.Sqrt(float64(hidden))
	return &LSTM{
		In:     in,
		Hidden: hidden,
		Wih:    newParam(fmt.Sprintf("lstm.weight_ih_l%d", layer), 4*hidden, in, bound, rng),
		Whh:    newParam(fmt.Sprintf("lstm.weight_hh_l%d", layer), 4*hidden, hidden, bound, rng),
		Bih:    newParam(fmt.Sprintf("lstm.bias_ih_l%d", layer), 4*hidden, 1, bound, rng),
		Bhh:    newParam(fmt.Sprintf("lstm.bias_hh_l%d", layer), 4*hidden, 1, bound, rng),
	}
}

// lstmStep caches one time step for backpropagation.
type lstmStep struct {
	x, hPrev, cPrev *mat.VecDense
	i, f, g, o      []float64
	tanhC           []float64
}

// forward runs xs from a zero hidden and cell state and returns the hidden
// output of every step.
func (l *LSTM) forward(xs []*mat.VecDense) ([]*mat.VecDense, []lstmStep) {
	H := l.Hidden
	h := mat.NewVecDense(H, nil)
	c := mat.NewVecDense(H, nil)
	z := mat.NewVecDense(4*H, nil)
	rec := mat.NewVecDense(4*H, nil)

	outs := make([]*mat.VecDense, len(xs))
	steps := make([]lstmStep, len(xs))
	for t, x := range xs {
		z.MulVec(l.Wih.Value, x)
		rec.MulVec(l.Whh.Value, h)
		z.AddVec(z, rec)
		z.AddVec(z, l.Bih.Value.ColView(0))
		z.AddVec(z, l.Bhh.Value.ColView(0))
		zd := z.RawVector().Data
		cp := c.RawVector().Data

		st := lstmStep{
			x: x, hPrev: h, cPrev: c,
			i: make([]float64, H), f: make([]float64, H),
			g: make([]float64, H), o: make([]float64, H),
			tanhC: make([]float64, H),
		}
		nh := mat.NewVecDense(H, nil)
		nc := mat.NewVecDense(H, nil)
		for k := 0; k < H; k++ {
			st.i[k] = sigmoid(zd[k])
			st.f[k] = sigmoid(zd[H+k])
			st.g[k] = math.Tanh(zd[2*H+k])
			st.o[k] = sigmoid(zd[3*H+k])
			cv := st.f[k]*cp[k] + st.i[k]*st.g[k]
			st.tanhC[k] = math.Tanh(cv)
			nc.SetVec(k, cv)
			nh.SetVec(k, st.o[k]*st.tanhC[k])
		}
		steps[t] = st
		outs[t] = nh
		h, c = nh, nc
	}
	return outs, steps
}

// backward runs BPTT. dhs[t] is the loss gradient flowing into the output
// at step t from above (nil means zero). Returns the gradient for each
// input step.
func (l *LSTM) backward(steps []lstmStep, dhs []*mat.VecDense) []*mat.VecDense {
	H := l.Hidden
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	dz := mat.NewVecDense(4*H, nil)
	dzd := dz.RawVector().Data
	dxs := make([]*mat.VecDense, len(steps))

	for t := len(steps) - 1; t >= 0; t-- {
		st := steps[t]
		cPrev := st.cPrev.RawVector().Data
		for k := 0; k < H; k++ {
			dh := dhNext[k]
			if dhs[t] != nil {
				dh += dhs[t].AtVec(k)
			}
			dc := dcNext[k] + dh*st.o[k]*(1-st.tanhC[k]*st.tanhC[k])
			dzd[k] = dc * st.g[k] * st.i[k] * (1 - st.i[k])
			dzd[H+k] = dc * cPrev[k] * st.f[k] * (1 - st.f[k])
			dzd[2*H+k] = dc * st.i[k] * (1 - st.g[k]*st.g[k])
			dzd[3*H+k] = dh * st.tanhC[k] * st.o[k] * (1 - st.o[k])
			dcNext[k] = dc * st.f[k]
		}

		l.Wih.Grad.RankOne(l.Wih.Grad, 1, dz, st.x)
		l.Whh.Grad.RankOne(l.Whh.Grad, 1, dz, st.hPrev)
		floats.Add(l.Bih.Grad.RawMatrix().Data, dzd)
		floats.Add(l.Bhh.Grad.RawMatrix().Data, dzd)

		dx := mat.NewVecDense(l.In, nil)
		dx.MulVec(l.Wih.Value.T(), dz)
		dxs[t] = dx

		dhPrev := mat.NewVecDense(H, nil)
		dhPrev.MulVec(l.Whh.Value.T(), dz)
		copy(dhNext, dhPrev.RawVector().Data)
	}
	return dxs
}

func (l *LSTM) params() []*Param { return []*Param{l.Wih, l.Whh, l.Bih, l.Bhh} }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
