package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SigmoidScalar evaluates the logistic function without overflowing exp for
// large magnitudes of x.
func SigmoidScalar(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Sigmoid applies the logistic function elementwise.
func Sigmoid(logits mat.Matrix) *mat.Dense {
	r, c := logits.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		return SigmoidScalar(v)
	}, logits)
	return out
}

// SigmoidBackward maps a gradient with respect to sigmoid outputs onto the
// logits that produced pred.
func SigmoidBackward(pred, gradPred mat.Matrix) (*mat.Dense, error) {
	if err := sameShape(pred, gradPred); err != nil {
		return nil, err
	}
	r, c := pred.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, g float64) float64 {
		p := pred.At(i, j)
		return g * p * (1 - p)
	}, gradPred)
	return out, nil
}

// ReLU clamps negative entries to zero.
func ReLU(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}, x)
	return out
}

// ReLUBackward passes grad through wherever the pre-activation x was positive.
func ReLUBackward(x, grad mat.Matrix) (*mat.Dense, error) {
	if err := sameShape(x, grad); err != nil {
		return nil, err
	}
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, g float64) float64 {
		if x.At(i, j) > 0 {
			return g
		}
		return 0
	}, grad)
	return out, nil
}
