package dataset

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// ramp returns an (n, f) matrix where cell (i, j) = i*10 + j and a target
// vector with target[i] = i.
func ramp(n, f int) (*mat.Dense, *mat.VecDense) {
	x := mat.NewDense(n, f, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < f; j++ {
			x.Set(i, j, float64(i*10+j))
		}
		y.SetVec(i, float64(i))
	}
	return x, y
}

func TestWindowedLengthAndSamples(t *testing.T) {
	x, y := ramp(25, 3)
	ds, err := New(x, y, 5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if ds.Len() != 20 {
		t.Fatalf("len = %d, want 20", ds.Len())
	}
	for i := 0; i < ds.Len(); i++ {
		w, label, err := ds.Get(i)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		r, c := w.Dims()
		if r != 5 || c != 3 {
			t.Fatalf("window %d dims %dx%d", i, r, c)
		}
		if w.At(0, 0) != float64(i*10) || w.At(4, 2) != float64((i+4)*10+2) {
			t.Fatalf("window %d covers wrong rows", i)
		}
		if label != float64(i+5) {
			t.Fatalf("label %d = %v, want %d", i, label, i+5)
		}
	}
}

func TestWindowedIsAView(t *testing.T) {
	x, y := ramp(6, 2)
	ds, _ := New(x, y, 3)
	w, _, _ := ds.Get(1)
	x.Set(2, 1, -7)
	if w.At(1, 1) != -7 {
		t.Fatalf("window should alias the feature matrix")
	}
}

func TestWindowedInsufficientHistory(t *testing.T) {
	cases := []struct {
		name   string
		rows   int
		seqLen int
	}{
		{"equal", 10, 10},
		{"shorter", 4, 10},
		{"zero seq", 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := ramp(tc.rows, 2)
			if _, err := New(x, y, tc.seqLen); !errors.Is(err, ErrInsufficientHistory) {
				t.Fatalf("expected ErrInsufficientHistory, got %v", err)
			}
		})
	}
	if _, err := New(nil, nil, 3); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("nil input: expected ErrInsufficientHistory, got %v", err)
	}
}

func TestWindowedDimensionMismatch(t *testing.T) {
	x, _ := ramp(10, 2)
	_, y := ramp(9, 2)
	if _, err := New(x, y, 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestWindowedOutOfRange(t *testing.T) {
	x, y := ramp(8, 1)
	ds, _ := New(x, y, 3)
	for _, i := range []int{-1, 5} {
		if _, _, err := ds.Get(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("get(%d): expected ErrIndexOutOfRange, got %v", i, err)
		}
	}
	last, err := ds.LastObserved(0)
	if err != nil || last != 2 {
		t.Fatalf("last observed = (%v, %v), want 2", last, err)
	}
}

func TestLoaderBatching(t *testing.T) {
	x, y := ramp(80, 5)
	ds, _ := New(x, y, 10) // 70 windows
	l, err := NewLoader(ds, Options{BatchSize: 32})
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	if l.Len() != 3 {
		t.Fatalf("batches = %d, want 3", l.Len())
	}

	total := 0
	sizes := []int{}
	for i, b := range l.All() {
		n, seq, f := b.Dims()
		if seq != 10 || f != 5 || b.Labels.Len() != n {
			t.Fatalf("batch %d dims (%d,%d,%d) labels %d", i, n, seq, f, b.Labels.Len())
		}
		sizes = append(sizes, n)
		total += n
	}
	if total != 70 {
		t.Fatalf("total samples %d, want 70", total)
	}
	if sizes[0] != 32 || sizes[1] != 32 || sizes[2] != 6 {
		t.Fatalf("batch sizes %v", sizes)
	}
}

func TestLoaderRestartable(t *testing.T) {
	x, y := ramp(30, 2)
	ds, _ := New(x, y, 4)
	l, _ := NewLoader(ds, Options{BatchSize: 7})

	collect := func() []float64 {
		var out []float64
		for _, b := range l.All() {
			out = append(out, b.Labels.RawVector().Data...)
		}
		return out
	}
	first, second := collect(), collect()
	if len(first) != ds.Len() || len(first) != len(second) {
		t.Fatalf("lengths %d/%d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("iteration differs at %d", i)
		}
		if first[i] != float64(i+4) {
			t.Fatalf("labels out of temporal order at %d: %v", i, first[i])
		}
	}
}

func TestLoaderShuffleIsSeeded(t *testing.T) {
	x, y := ramp(40, 1)
	ds, _ := New(x, y, 2)
	a, _ := NewLoader(ds, Options{BatchSize: 8, Shuffle: true, Seed: 7})
	b, _ := NewLoader(ds, Options{BatchSize: 8, Shuffle: true, Seed: 7})
	ba, _ := a.Batch(0)
	bb, _ := b.Batch(0)
	for i := 0; i < ba.Size(); i++ {
		if ba.Labels.AtVec(i) != bb.Labels.AtVec(i) {
			t.Fatalf("same seed produced different order")
		}
	}
}

func TestLoaderRejectsBadBatchSize(t *testing.T) {
	x, y := ramp(10, 1)
	ds, _ := New(x, y, 2)
	if _, err := NewLoader(ds, Options{BatchSize: 0}); !errors.Is(err, ErrInvalidBatchSize) {
		t.Fatalf("expected ErrInvalidBatchSize, got %v", err)
	}
}
