package nn

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAdamMinimisesQuadratic(t *testing.T) {
	p := &Param{Name: "w", Value: mat.NewDense(1, 2, []float64{3, -2}), Grad: mat.NewDense(1, 2, nil)}
	opt := NewAdam([]*Param{p}, 0.1)
	for i := 0; i < 500; i++ {
		// d/dw of w^2
		p.Grad.Scale(2, p.Value)
		opt.Step()
	}
	for _, v := range p.Value.RawMatrix().Data {
		if math.Abs(v) > 0.5 {
			t.Fatalf("expected convergence near 0, got %v", p.Value.RawMatrix().Data)
		}
	}
	if opt.Steps() != 500 {
		t.Fatalf("steps = %d", opt.Steps())
	}
}

func TestClipGradNorm(t *testing.T) {
	a := &Param{Value: mat.NewDense(1, 1, nil), Grad: mat.NewDense(1, 1, []float64{3})}
	b := &Param{Value: mat.NewDense(1, 1, nil), Grad: mat.NewDense(1, 1, []float64{4})}
	norm := ClipGradNorm([]*Param{a, b}, 1)
	if norm != 5 {
		t.Fatalf("norm = %v, want 5", norm)
	}
	clipped := math.Hypot(a.Grad.At(0, 0), b.Grad.At(0, 0))
	if math.Abs(clipped-1) > 1e-5 {
		t.Fatalf("clipped norm = %v, want 1", clipped)
	}

	ClipGradNorm([]*Param{a, b}, 10)
	if math.Abs(math.Hypot(a.Grad.At(0, 0), b.Grad.At(0, 0))-clipped) > 1e-12 {
		t.Fatalf("norm under the limit must not change")
	}
}

func TestMSE(t *testing.T) {
	got, err := MSE(mat.NewDense(2, 1, []float64{1, 3}), mat.NewDense(2, 1, []float64{0, 1}))
	if err != nil || got != 2.5 {
		t.Fatalf("mse = (%v, %v), want 2.5", got, err)
	}
	if _, err := MSE(mat.NewDense(2, 1, nil), mat.NewDense(1, 2, nil)); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
