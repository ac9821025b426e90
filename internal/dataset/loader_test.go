package dataset

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func indexedSet(n int) *InMemory {
	examples := make([]Example, n)
	for i := range examples {
		examples[i] = Example{
			Key:      strconv.Itoa(i),
			Features: []float64{float64(i), float64(-i)},
			Label:    []float64{float64(i % 2)},
		}
	}
	return NewInMemory(examples)
}

func drain(t *testing.T, opts LoaderOptions) ([]Batch, error) {
	t.Helper()
	batches, errCh, err := StartLoader(context.Background(), opts)
	require.NoError(t, err)
	var out []Batch
	for b := range batches {
		out = append(out, b)
	}
	return out, <-errCh
}

func firstColumn(batches []Batch) []float64 {
	var out []float64
	for _, b := range batches {
		for i := 0; i < b.Size(); i++ {
			out = append(out, b.X.At(i, 0))
		}
	}
	return out
}

func TestLoaderSequentialOrder(t *testing.T) {
	batches, err := drain(t, LoaderOptions{Dataset: indexedSet(10), BatchSize: 4, NumWorkers: 3})
	require.NoError(t, err)
	require.Len(t, batches, 3)
	for i, b := range batches {
		require.Equal(t, i, b.Index)
	}
	require.Equal(t, 2, batches[2].Size())
	require.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, firstColumn(batches))
	require.Equal(t, 1.0, batches[0].Y.At(1, 0))
}

func TestLoaderShuffleDeterministicAndComplete(t *testing.T) {
	opts := LoaderOptions{Dataset: indexedSet(25), BatchSize: 4, NumWorkers: 4, Shuffle: true, Seed: 9}
	run1, err := drain(t, opts)
	require.NoError(t, err)
	run2, err := drain(t, opts)
	require.NoError(t, err)

	order1 := firstColumn(run1)
	require.Equal(t, order1, firstColumn(run2))

	seen := append([]float64(nil), order1...)
	sort.Float64s(seen)
	for i, v := range seen {
		require.Equal(t, float64(i), v)
	}
}

func TestLoaderZeroWorkersRunsOne(t *testing.T) {
	batches, err := drain(t, LoaderOptions{Dataset: indexedSet(3), BatchSize: 2})
	require.NoError(t, err)
	require.Len(t, batches, 2)
}

func TestLoaderInconsistentWidth(t *testing.T) {
	ds := NewInMemory([]Example{
		{Features: []float64{1, 2}, Label: []float64{1}},
		{Features: []float64{1}, Label: []float64{0}},
	})
	_, err := drain(t, LoaderOptions{Dataset: ds, BatchSize: 2, NumWorkers: 2})
	require.True(t, errors.Is(err, ErrInconsistentExample))
}

func TestLoaderCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	batches, errCh, err := StartLoader(ctx, LoaderOptions{Dataset: indexedSet(100), BatchSize: 1, NumWorkers: 2})
	require.NoError(t, err)
	<-batches
	cancel()
	for range batches {
	}
	require.NoError(t, <-errCh)
}

func TestLoaderRejectsBadOptions(t *testing.T) {
	_, _, err := StartLoader(context.Background(), LoaderOptions{Dataset: NewInMemory(nil), BatchSize: 1})
	require.Error(t, err)
	_, _, err = StartLoader(context.Background(), LoaderOptions{Dataset: indexedSet(1)})
	require.Error(t, err)
}
