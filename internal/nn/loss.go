package nn

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when two operands do not share dimensions.
var ErrShapeMismatch = errors.New("nn: shape mismatch")

// ErrNoGraph is returned by Backward on a loss that carries no gradient path.
var ErrNoGraph = errors.New("nn: loss has no backward function")

const (
	// logFloor bounds each log term so that saturated predictions give a
	// large but finite loss.
	logFloor = -100.0
	gradEps  = 1e-12
)

// BCELoss is the binary cross-entropy averaged over every element of the
// input, i.e. over both the batch and the output dimension.
type BCELoss struct{}

// Forward returns mean(-(y*log(p) + (1-y)*log(1-p))).
func (BCELoss) Forward(pred, target mat.Matrix) (float64, error) {
	if err := sameShape(pred, target); err != nil {
		return 0, err
	}
	r, c := pred.Dims()
	n := r * c
	if n == 0 {
		return math.NaN(), nil
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p := pred.At(i, j)
			y := target.At(i, j)
			sum -= y*clampedLog(p) + (1-y)*clampedLog(1-p)
		}
	}
	return sum / float64(n), nil
}

// Grad returns dLoss/dpred for the mean reduction used by Forward.
func (BCELoss) Grad(pred, target mat.Matrix) (*mat.Dense, error) {
	if err := sameShape(pred, target); err != nil {
		return nil, err
	}
	r, c := pred.Dims()
	n := float64(r * c)
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, p float64) float64 {
		y := target.At(i, j)
		return (p - y) / math.Max(p*(1-p), gradEps) / n
	}, pred)
	return out, nil
}

func clampedLog(v float64) float64 {
	l := math.Log(v)
	if l < logFloor {
		return logFloor
	}
	return l
}

// Loss is a scalar produced by a forward pass together with the function
// that propagates its gradient back into model parameters.
type Loss struct {
	Value    float64
	backward func() error
}

// NewLoss wraps value with its backward function.
func NewLoss(value float64, backward func() error) *Loss {
	return &Loss{Value: value, backward: backward}
}

// Backward accumulates gradients of the loss into the parameters that
// produced it.
func (l *Loss) Backward() error {
	if l == nil || l.backward == nil {
		return ErrNoGraph
	}
	return l.backward()
}

func sameShape(a, b mat.Matrix) error {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, ar, ac, br, bc)
	}
	return nil
}
