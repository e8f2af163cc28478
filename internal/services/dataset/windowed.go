package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInsufficientHistory = errors.New("insufficient history for sequence length")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrIndexOutOfRange     = errors.New("index out of range")
)

// Windowed exposes a scaled feature matrix (N, F) and target vector (N) as
// N-L overlapping samples. Window i covers feature rows [i, i+L) and its
// label is target row i+L. Windows are views into the feature matrix.
type Windowed struct {
	features *mat.Dense
	target   *mat.VecDense
	seqLen   int
	rows     int
	cols     int
}

// New builds a windowed dataset over features and target. A nil matrix is
// treated as zero rows.
func New(features *mat.Dense, target *mat.VecDense, seqLen int) (*Windowed, error) {
	if seqLen <= 0 {
		return nil, fmt.Errorf("sequence length %d: %w", seqLen, ErrInsufficientHistory)
	}
	var n, f int
	if features != nil {
		n, f = features.Dims()
	}
	var t int
	if target != nil {
		t = target.Len()
	}
	if n != t {
		return nil, fmt.Errorf("%w: %d feature rows, %d targets", ErrDimensionMismatch, n, t)
	}
	if n <= seqLen {
		return nil, fmt.Errorf("%w: %d rows, sequence length %d", ErrInsufficientHistory, n, seqLen)
	}
	return &Windowed{
		features: features,
		target:   target,
		seqLen:   seqLen,
		rows:     n,
		cols:     f,
	}, nil
}

// Len returns the number of windows, N-L.
func (w *Windowed) Len() int { return w.rows - w.seqLen }

func (w *Windowed) SeqLen() int { return w.seqLen }

func (w *Windowed) NumFeatures() int { return w.cols }

// Get returns window i as an (L, F) view and its scalar label.
func (w *Windowed) Get(i int) (mat.Matrix, float64, error) {
	if i < 0 || i >= w.Len() {
		return nil, 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, w.Len())
	}
	return w.features.Slice(i, i+w.seqLen, 0, w.cols), w.target.AtVec(i + w.seqLen), nil
}

// LastObserved returns the scaled target of the final row inside window i,
// i.e. target row i+L-1.
func (w *Windowed) LastObserved(i int) (float64, error) {
	if i < 0 || i >= w.Len() {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, w.Len())
	}
	return w.target.AtVec(i + w.seqLen - 1), nil
}
