package dataset

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

var ErrInvalidBatchSize = errors.New("batch size must be positive")

// Options configures a Loader.
type Options struct {
	BatchSize int
	Shuffle   bool
	Seed      uint64
}

// Batch stacks consecutive samples: Windows holds B matrices of shape (L, F)
// and Labels has length B.
type Batch struct {
	Windows []mat.Matrix
	Labels  *mat.VecDense
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int { return len(b.Windows) }

// Dims returns (batch, L, F).
func (b Batch) Dims() (int, int, int) {
	if len(b.Windows) == 0 {
		return 0, 0, 0
	}
	l, f := b.Windows[0].Dims()
	return len(b.Windows), l, f
}

// Loader groups a Windowed dataset into mini-batches. It holds no iteration
// state, so All can be ranged over any number of times.
type Loader struct {
	ds    *Windowed
	opts  Options
	order []int
}

func NewLoader(ds *Windowed, opts Options) (*Loader, error) {
	if ds == nil {
		return nil, fmt.Errorf("loader: %w", ErrInsufficientHistory)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, opts.BatchSize)
	}
	order := make([]int, ds.Len())
	for i := range order {
		order[i] = i
	}
	if opts.Shuffle {
		rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return &Loader{ds: ds, opts: opts, order: order}, nil
}

// Len returns ceil(D / B).
func (l *Loader) Len() int {
	return (len(l.order) + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Dataset returns the underlying windowed dataset.
func (l *Loader) Dataset() *Windowed { return l.ds }

// Batch materialises batch i. Only the last batch may be short.
func (l *Loader) Batch(i int) (Batch, error) {
	if i < 0 || i >= l.Len() {
		return Batch{}, fmt.Errorf("%w: batch %d not in [0, %d)", ErrIndexOutOfRange, i, l.Len())
	}
	start := i * l.opts.BatchSize
	end := min(start+l.opts.BatchSize, len(l.order))

	b := Batch{
		Windows: make([]mat.Matrix, 0, end-start),
		Labels:  mat.NewVecDense(end-start, nil),
	}
	for k, idx := range l.order[start:end] {
		w, y, err := l.ds.Get(idx)
		if err != nil {
			return Batch{}, err
		}
		b.Windows = append(b.Windows, w)
		b.Labels.SetVec(k, y)
	}
	return b, nil
}

// All yields (index, batch) pairs in order.
func (l *Loader) All() iter.Seq2[int, Batch] {
	return func(yield func(int, Batch) bool) {
		for i := 0; i < l.Len(); i++ {
			b, err := l.Batch(i)
			if err != nil {
				return
			}
			if !yield(i, b) {
				return
			}
		}
	}
}
