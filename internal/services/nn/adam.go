package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Adam keeps first and second moment estimates for each parameter.
type Adam struct {
	params []*Param
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	m      []*mat.Dense
	v      []*mat.Dense
	t      int
}

func NewAdam(params []*Param, lr float64) *Adam {
	a := &Adam{
		params: params,
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
	}
	for _, p := range params {
		r, c := p.Value.Dims()
		a.m = append(a.m, mat.NewDense(r, c, nil))
		a.v = append(a.v, mat.NewDense(r, c, nil))
	}
	return a
}

// Step applies one bias-corrected update from the accumulated gradients.
func (a *Adam) Step() {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := math.Sqrt(1 - math.Pow(a.beta2, float64(a.t)))
	stepSize := a.lr / bc1

	for i, p := range a.params {
		w := p.Value.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		m := a.m[i].RawMatrix().Data
		v := a.v[i].RawMatrix().Data
		for k := range w {
			m[k] = a.beta1*m[k] + (1-a.beta1)*g[k]
			v[k] = a.beta2*v[k] + (1-a.beta2)*g[k]*g[k]
			w[k] -= stepSize * m[k] / (math.Sqrt(v[k])/bc2 + a.eps)
		}
	}
}

func (a *Adam) Steps() int { return a.t }

// ClipGradNorm rescales all gradients so their joint L2 norm is at most
// maxNorm and returns the norm before clipping. maxNorm <= 0 disables
// clipping.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	total := 0.0
	for _, p := range params {
		g := p.Grad.RawMatrix().Data
		total += floats.Dot(g, g)
	}
	total = math.Sqrt(total)
	if maxNorm <= 0 || total <= maxNorm {
		return total
	}
	scale := maxNorm / (total + 1e-6)
	for _, p := range params {
		floats.Scale(scale, p.Grad.RawMatrix().Data)
	}
	return total
}
