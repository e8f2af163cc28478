package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MSE returns the mean of squared differences over every element.
func MSE(pred, target mat.Matrix) (float64, error) {
	pr, pc := pred.Dims()
	tr, tc := target.Dims()
	if pr != tr || pc != tc {
		return 0, fmt.Errorf("%w: prediction (%d, %d), target (%d, %d)", ErrDimensionMismatch, pr, pc, tr, tc)
	}
	if pr*pc == 0 {
		return 0, nil
	}
	var diff mat.Dense
	diff.Sub(pred, target)
	sum := 0.0
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			v := diff.At(i, j)
			sum += v * v
		}
	}
	return sum / float64(pr*pc), nil
}
