package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
)

// ErrIndexOutOfRange is returned by Get for an index outside [0, Len()).
var ErrIndexOutOfRange = errors.New("dataset: index out of range")

// Example is one labeled sample. Label holds one value per model output;
// binary classification uses a single value in [0,1].
type Example struct {
	Key      string
	Features []float64
	Label    []float64
}

// Dataset is a finite, indexable collection of examples.
type Dataset interface {
	Len() int
	Get(i int) (Example, error)
}

// InMemory holds all examples in a slice.
type InMemory struct {
	examples []Example
}

// NewInMemory wraps examples without copying.
func NewInMemory(examples []Example) *InMemory {
	return &InMemory{examples: examples}
}

func (d *InMemory) Len() int { return len(d.examples) }

func (d *InMemory) Get(i int) (Example, error) {
	if i < 0 || i >= len(d.examples) {
		return Example{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(d.examples))
	}
	return d.examples[i], nil
}

// Append adds examples to the end of the set.
func (d *InMemory) Append(examples ...Example) {
	d.examples = append(d.examples, examples...)
}

type subset struct {
	parent  Dataset
	indices []int
}

func (s *subset) Len() int { return len(s.indices) }

func (s *subset) Get(i int) (Example, error) {
	if i < 0 || i >= len(s.indices) {
		return Example{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.indices))
	}
	return s.parent.Get(s.indices[i])
}

// Split partitions ds into a training and a validation view after a seeded
// shuffle. Each side receives at least one example.
func Split(ds Dataset, valFraction float64, seed int64) (Dataset, Dataset, error) {
	n := ds.Len()
	if n < 2 {
		return nil, nil, fmt.Errorf("dataset: need at least 2 examples to split (got %d)", n)
	}
	if valFraction <= 0 || valFraction >= 1 {
		return nil, nil, fmt.Errorf("dataset: validation fraction must be in (0,1) (got %g)", valFraction)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nVal := int(float64(n) * valFraction)
	if nVal < 1 {
		nVal = 1
	}
	if nVal > n-1 {
		nVal = n - 1
	}
	return &subset{parent: ds, indices: perm[nVal:]}, &subset{parent: ds, indices: perm[:nVal]}, nil
}

// Separable generates a 1-feature set where label is 1 exactly when the
// feature is positive. Features lie in [-1,-0.05] ∪ [0.05,1].
func Separable(n int, seed int64) *InMemory {
	rng := rand.New(rand.NewSource(seed))
	examples := make([]Example, n)
	for i := range examples {
		x := 0.05 + rng.Float64()*0.95
		label := 1.0
		if rng.Intn(2) == 0 {
			x = -x
			label = 0
		}
		examples[i] = Example{
			Key:      strconv.Itoa(i),
			Features: []float64{x},
			Label:    []float64{label},
		}
	}
	return NewInMemory(examples)
}
