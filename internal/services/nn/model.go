package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Config describes the model shape.
type Config struct {
	InputDim  int
	HiddenDim int
	OutputDim int
	NumLayers int
	SeqLen    int
	Dropout   float64
	Seed      uint64
}

func (c Config) validate() error {
	switch {
	case c.InputDim <= 0:
		return fmt.Errorf("%w: input_dim %d", ErrInvalidConfig, c.InputDim)
	case c.HiddenDim <= 0:
		return fmt.Errorf("%w: hidden_dim %d", ErrInvalidConfig, c.HiddenDim)
	case c.OutputDim <= 0:
		return fmt.Errorf("%w: output_dim %d", ErrInvalidConfig, c.OutputDim)
	case c.NumLayers <= 0:
		return fmt.Errorf("%w: num_layers %d", ErrInvalidConfig, c.NumLayers)
	case c.SeqLen <= 0:
		return fmt.Errorf("%w: seq_len %d", ErrInvalidConfig, c.SeqLen)
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("%w: dropout %v", ErrInvalidConfig, c.Dropout)
	}
	return nil
}

// Model composes a SequenceEncoder and a RegressionHead. It starts in
// training mode. A Model is not safe for concurrent use.
type Model struct {
	cfg      Config
	encoder  *SequenceEncoder
	head     *RegressionHead
	training bool
	rng      *rand.Rand
}

// New initialises a model with weights drawn from U(±1/sqrt(fan)) using
// cfg.Seed, so equal configs produce equal models.
func New(cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d))
	return &Model{
		cfg:      cfg,
		encoder:  newSequenceEncoder(cfg.InputDim, cfg.HiddenDim, cfg.NumLayers, cfg.SeqLen, cfg.Dropout, rng),
		head:     newRegressionHead(cfg.HiddenDim, cfg.OutputDim, cfg.Dropout, rng),
		training: true,
		rng:      rng,
	}, nil
}

func (m *Model) Config() Config { return m.cfg }

func (m *Model) Encoder() *SequenceEncoder { return m.encoder }

func (m *Model) Head() *RegressionHead { return m.head }

// Train enables dropout.
func (m *Model) Train() { m.training = true }

// Eval disables dropout.
func (m *Model) Eval() { m.training = false }

func (m *Model) Training() bool { return m.training }

// Forward maps a batch of (L, F) windows to a (batch, output_dim) matrix in
// the current mode.
func (m *Model) Forward(batch []mat.Matrix) (*mat.Dense, error) {
	var rng *rand.Rand
	if m.training {
		rng = m.rng
	}
	return m.forward(batch, rng)
}

// Predict is Forward in inference mode regardless of the current mode.
func (m *Model) Predict(batch []mat.Matrix) (*mat.Dense, error) {
	return m.forward(batch, nil)
}

func (m *Model) forward(batch []mat.Matrix, rng *rand.Rand) (*mat.Dense, error) {
	seqs, err := m.sequences(batch)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(seqs), m.cfg.OutputDim, nil)
	for b, xs := range seqs {
		h, _ := m.encoder.forward(xs, rng)
		y, _ := m.head.forward(h, rng)
		out.SetRow(b, y.RawVector().Data)
	}
	return out, nil
}

// AccumulateGradients runs a forward pass in the current mode, computes the
// MSE against targets (batch, output_dim) and adds its gradient to every
// parameter. It returns the batch loss. Gradients are not cleared first.
func (m *Model) AccumulateGradients(batch []mat.Matrix, targets mat.Matrix) (float64, error) {
	seqs, err := m.sequences(batch)
	if err != nil {
		return 0, err
	}
	if targets == nil {
		return 0, fmt.Errorf("%w: nil targets", ErrDimensionMismatch)
	}
	tr, tc := targets.Dims()
	if tr != len(seqs) || tc != m.cfg.OutputDim {
		return 0, fmt.Errorf("%w: targets (%d, %d), want (%d, %d)", ErrDimensionMismatch, tr, tc, len(seqs), m.cfg.OutputDim)
	}

	var rng *rand.Rand
	if m.training {
		rng = m.rng
	}
	n := float64(len(seqs) * m.cfg.OutputDim)
	loss := 0.0
	for b, xs := range seqs {
		h, etr := m.encoder.forward(xs, rng)
		y, htr := m.head.forward(h, rng)

		dy := mat.NewVecDense(m.cfg.OutputDim, nil)
		for k := 0; k < m.cfg.OutputDim; k++ {
			diff := y.AtVec(k) - targets.At(b, k)
			loss += diff * diff
			dy.SetVec(k, 2*diff/n)
		}
		dh := m.head.backward(htr, dy)
		m.encoder.backward(etr, dh)
	}
	return loss / n, nil
}

// ZeroGrad clears every accumulated gradient.
func (m *Model) ZeroGrad() {
	for _, p := range m.Params() {
		p.Grad.Zero()
	}
}

// Params lists encoder parameters layer by layer, then the head.
func (m *Model) Params() []*Param {
	return append(m.encoder.params(), m.head.params()...)
}

func (m *Model) NumParams() int {
	n := 0
	for _, p := range m.Params() {
		n += p.Size()
	}
	return n
}

func (m *Model) sequences(batch []mat.Matrix) ([][]*mat.VecDense, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrDimensionMismatch)
	}
	seqs := make([][]*mat.VecDense, len(batch))
	for b, w := range batch {
		xs, err := m.encoder.sequence(w)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", b, err)
		}
		seqs[b] = xs
	}
	return seqs, nil
}
