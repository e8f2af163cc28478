package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear computes y = Wx + b.
type Linear struct {
	In, Out int
	W       *Param
	B       *Param
}

func newLinear(name string, in, out int, rng *rand.Rand) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	return &Linear{
		In:  in,
		Out: out,
		W:   newParam(name+".weight", out, in, bound, rng),
		B:   newParam(name+".bias", out, 1, bound, rng),
	}
}

func (l *Linear) Forward(x mat.Vector) *mat.VecDense {
	y := mat.NewVecDense(l.Out, nil)
	y.MulVec(l.W.Value, x)
	y.AddVec(y, l.B.Value.ColView(0))
	return y
}

// backward adds dW = dy xᵀ and db = dy to the gradients and returns dx = Wᵀ dy.
func (l *Linear) backward(x, dy *mat.VecDense) *mat.VecDense {
	l.W.Grad.RankOne(l.W.Grad, 1, dy, x)
	floats.Add(l.B.Grad.RawMatrix().Data, dy.RawVector().Data)

	dx := mat.NewVecDense(l.In, nil)
	dx.MulVec(l.W.Value.T(), dy)
	return dx
}

func (l *Linear) params() []*Param { return []*Param{l.W, l.B} }
