package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"binclass-forge/internal/nn"
)

// MLP is a two-layer perceptron with a ReLU hidden layer.
type MLP struct {
	hidden *Linear
	output *Linear
	preAct *mat.Dense
}

// NewMLP constructs the network with seeded initialization.
func NewMLP(inputSize, hidden, outputs int, seed int64) *MLP {
	rng := rand.New(rand.NewSource(seed))
	return &MLP{
		hidden: newLinear("fc1", inputSize, hidden, rng),
		output: newLinear("fc2", hidden, outputs, rng),
	}
}

// Forward computes logits for a batch.
func (m *MLP) Forward(x *mat.Dense) (*mat.Dense, error) {
	h, err := m.hidden.Forward(x)
	if err != nil {
		return nil, err
	}
	m.preAct = h
	return m.output.Forward(nn.ReLU(h))
}

// Backward accumulates gradients through both layers.
func (m *MLP) Backward(gradOut *mat.Dense) error {
	if m.preAct == nil {
		return errNoForward
	}
	gradAct, err := m.output.backward(gradOut)
	if err != nil {
		return err
	}
	gradPre, err := nn.ReLUBackward(m.preAct, gradAct)
	if err != nil {
		return err
	}
	_, err = m.hidden.backward(gradPre)
	return err
}

// Params returns the parameters of both layers.
func (m *MLP) Params() []*Param {
	return append(m.hidden.Params(), m.output.Params()...)
}
