package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"binclass-forge/internal/nn"
)

var errNoForward = errors.New("model: backward called before forward")

// Linear is a fully connected layer, y = xW + b. With a single output and a
// sigmoid on top it is logistic regression.
type Linear struct {
	inputSize int
	outputs   int
	weight    *Param
	bias      *Param
	input     *mat.Dense
}

// NewLinear initializes weights uniformly in ±1/sqrt(inputSize).
func NewLinear(inputSize, outputs int, seed int64) *Linear {
	return newLinear("linear", inputSize, outputs, rand.New(rand.NewSource(seed)))
}

func newLinear(name string, inputSize, outputs int, rng *rand.Rand) *Linear {
	l := &Linear{
		inputSize: inputSize,
		outputs:   outputs,
		weight:    newParam(name+".weight", inputSize, outputs),
		bias:      newParam(name+".bias", 1, outputs),
	}
	bound := 1 / math.Sqrt(float64(inputSize))
	for _, p := range []*Param{l.weight, l.bias} {
		raw := p.Value.RawMatrix().Data
		for i := range raw {
			raw[i] = (rng.Float64()*2 - 1) * bound
		}
	}
	return l
}

// Forward computes the layer output for a batch.
func (l *Linear) Forward(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != l.inputSize {
		return nil, fmt.Errorf("%s: %w: got %d features, want %d", l.weight.Name, nn.ErrShapeMismatch, cols, l.inputSize)
	}
	l.input = x
	out := mat.NewDense(rows, l.outputs, nil)
	out.Mul(x, l.weight.Value)
	bias := l.bias.Value.RawRowView(0)
	out.Apply(func(_, j int, v float64) float64 {
		return v + bias[j]
	}, out)
	return out, nil
}

// Backward accumulates parameter gradients.
func (l *Linear) Backward(gradOut *mat.Dense) error {
	_, err := l.backward(gradOut)
	return err
}

// backward accumulates parameter gradients and returns the gradient with
// respect to the layer input.
func (l *Linear) backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if l.input == nil {
		return nil, errNoForward
	}
	inRows, _ := l.input.Dims()
	gRows, gCols := gradOut.Dims()
	if gRows != inRows || gCols != l.outputs {
		return nil, fmt.Errorf("%s: %w: grad is %dx%d, want %dx%d", l.weight.Name, nn.ErrShapeMismatch, gRows, gCols, inRows, l.outputs)
	}

	var dw mat.Dense
	dw.Mul(l.input.T(), gradOut)
	l.weight.Grad.Add(l.weight.Grad, &dw)

	db := l.bias.Grad.RawRowView(0)
	for i := 0; i < gRows; i++ {
		for j, g := range gradOut.RawRowView(i) {
			db[j] += g
		}
	}

	dx := mat.NewDense(gRows, l.inputSize, nil)
	dx.Mul(gradOut, l.weight.Value.T())
	return dx, nil
}

// Params returns the weight and bias.
func (l *Linear) Params() []*Param {
	return []*Param{l.weight, l.bias}
}
