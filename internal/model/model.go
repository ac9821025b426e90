package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Model is a differentiable mapping from a batch of samples (one per row) to
// a batch of logits. Backward must follow the Forward call whose output it
// differentiates.
type Model interface {
	Forward(x *mat.Dense) (*mat.Dense, error)
	Backward(gradOut *mat.Dense) error
	Params() []*Param
}

// Param is a trainable tensor and its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Snapshot is a deep copy of a model's parameter values in Params order.
type Snapshot []*mat.Dense

// TakeSnapshot copies the current parameter values of m.
func TakeSnapshot(m Model) Snapshot {
	params := m.Params()
	snap := make(Snapshot, len(params))
	for i, p := range params {
		snap[i] = mat.DenseCopyOf(p.Value)
	}
	return snap
}

// Restore copies snap back into m's parameters.
func Restore(m Model, snap Snapshot) error {
	params := m.Params()
	if len(params) != len(snap) {
		return fmt.Errorf("restore: snapshot has %d tensors, model has %d", len(snap), len(params))
	}
	for i, p := range params {
		pr, pc := p.Value.Dims()
		sr, sc := snap[i].Dims()
		if pr != sr || pc != sc {
			return fmt.Errorf("restore %s: snapshot is %dx%d, param is %dx%d", p.Name, sr, sc, pr, pc)
		}
		p.Value.Copy(snap[i])
	}
	return nil
}

// New builds a model by kind. hidden is ignored for linear models.
func New(kind string, inputSize, hidden, outputs int, seed int64) (Model, error) {
	if inputSize <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("model: input size and outputs must be > 0 (got %d, %d)", inputSize, outputs)
	}
	switch kind {
	case "", "linear", "logistic":
		return NewLinear(inputSize, outputs, seed), nil
	case "mlp":
		if hidden <= 0 {
			hidden = 16
		}
		return NewMLP(inputSize, hidden, outputs, seed), nil
	default:
		return nil, fmt.Errorf("model: unknown kind %q", kind)
	}
}
