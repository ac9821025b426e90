package optim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"binclass-forge/internal/model"
)

// Optimizer updates model parameters from their accumulated gradients.
type Optimizer interface {
	Step()
	ZeroGrad()
	LearningRate() float64
	SetLearningRate(lr float64)
}

// New builds an optimizer by name. An empty name selects Adam.
func New(name string, params []*model.Param, lr float64) (Optimizer, error) {
	switch name {
	case "", "adam":
		return NewAdam(params, lr), nil
	case "sgd":
		return NewSGD(params, lr, 0), nil
	default:
		return nil, fmt.Errorf("optim: unknown optimizer %q", name)
	}
}

type base struct {
	params []*model.Param
	lr     float64
}

func (b *base) ZeroGrad() {
	for _, p := range b.params {
		p.ZeroGrad()
	}
}

func (b *base) LearningRate() float64      { return b.lr }
func (b *base) SetLearningRate(lr float64) { b.lr = lr }

// SGD is stochastic gradient descent with optional momentum.
type SGD struct {
	base
	momentum float64
	velocity []*mat.Dense
}

// NewSGD returns plain SGD when momentum is zero.
func NewSGD(params []*model.Param, lr, momentum float64) *SGD {
	s := &SGD{base: base{params: params, lr: lr}, momentum: momentum}
	if momentum > 0 {
		s.velocity = zerosLike(params)
	}
	return s
}

// Step applies one update.
func (s *SGD) Step() {
	for i, p := range s.params {
		if s.velocity == nil {
			p.Value.Apply(func(r, c int, v float64) float64 {
				return v - s.lr*p.Grad.At(r, c)
			}, p.Value)
			continue
		}
		vel := s.velocity[i]
		vel.Apply(func(r, c int, v float64) float64 {
			return s.momentum*v + p.Grad.At(r, c)
		}, vel)
		p.Value.Apply(func(r, c int, v float64) float64 {
			return v - s.lr*vel.At(r, c)
		}, p.Value)
	}
}

// Adam implements the Adam update rule with bias correction.
type Adam struct {
	base
	beta1, beta2, eps float64
	m, v              []*mat.Dense
	t                 int
}

// NewAdam uses beta1=0.9, beta2=0.999, eps=1e-8.
func NewAdam(params []*model.Param, lr float64) *Adam {
	return &Adam{
		base:  base{params: params, lr: lr},
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     zerosLike(params),
		v:     zerosLike(params),
	}
}

// Step applies one update.
func (a *Adam) Step() {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		m.Apply(func(r, c int, x float64) float64 {
			return a.beta1*x + (1-a.beta1)*p.Grad.At(r, c)
		}, m)
		v.Apply(func(r, c int, x float64) float64 {
			g := p.Grad.At(r, c)
			return a.beta2*x + (1-a.beta2)*g*g
		}, v)
		p.Value.Apply(func(r, c int, x float64) float64 {
			mHat := m.At(r, c) / c1
			vHat := v.At(r, c) / c2
			return x - a.lr*mHat/(math.Sqrt(vHat)+a.eps)
		}, p.Value)
	}
}

func zerosLike(params []*model.Param) []*mat.Dense {
	out := make([]*mat.Dense, len(params))
	for i, p := range params {
		r, c := p.Value.Dims()
		out[i] = mat.NewDense(r, c, nil)
	}
	return out
}
