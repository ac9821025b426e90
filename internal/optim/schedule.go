package optim

import "fmt"

// Scheduler adjusts an optimizer's learning rate once per epoch.
type Scheduler interface {
	Step()
	LearningRate() float64
}

// SchedulerFactory builds a schedule bound to an optimizer. A nil factory
// means the learning rate stays constant.
type SchedulerFactory func(Optimizer) Scheduler

// StepLR multiplies the rate by gamma every stepSize epochs.
func StepLR(stepSize int, gamma float64) SchedulerFactory {
	return func(opt Optimizer) Scheduler {
		return &stepLR{opt: opt, initial: opt.LearningRate(), stepSize: stepSize, gamma: gamma}
	}
}

// ExponentialLR multiplies the rate by gamma every epoch.
func ExponentialLR(gamma float64) SchedulerFactory {
	return StepLR(1, gamma)
}

// FactoryFromConfig maps a schedule name to a factory. "" and "none" yield nil.
func FactoryFromConfig(kind string, stepSize int, gamma float64) (SchedulerFactory, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "step":
		if stepSize <= 0 {
			return nil, fmt.Errorf("optim: step schedule needs step_size > 0 (got %d)", stepSize)
		}
		if gamma <= 0 {
			return nil, fmt.Errorf("optim: gamma must be > 0 (got %g)", gamma)
		}
		return StepLR(stepSize, gamma), nil
	case "exponential":
		if gamma <= 0 {
			return nil, fmt.Errorf("optim: gamma must be > 0 (got %g)", gamma)
		}
		return ExponentialLR(gamma), nil
	default:
		return nil, fmt.Errorf("optim: unknown schedule %q", kind)
	}
}

type stepLR struct {
	opt      Optimizer
	initial  float64
	stepSize int
	gamma    float64
	epoch    int
}

func (s *stepLR) Step() {
	s.epoch++
	lr := s.initial
	for i := 0; i < s.epoch/s.stepSize; i++ {
		lr *= s.gamma
	}
	s.opt.SetLearningRate(lr)
}

func (s *stepLR) LearningRate() float64 {
	return s.opt.LearningRate()
}
