package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// dropoutMask zeroes each unit with probability p and scales survivors by
// 1/(1-p) so the expected activation is unchanged.
func dropoutMask(rng *rand.Rand, n int, p float64) []float64 {
	mask := make([]float64, n)
	keep := 1 / (1 - p)
	for i := range mask {
		if rng.Float64() >= p {
			mask[i] = keep
		}
	}
	return mask
}

func applyMask(v *mat.VecDense, mask []float64) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	floats.MulTo(out.RawVector().Data, v.RawVector().Data, mask)
	return out
}
