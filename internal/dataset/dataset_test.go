package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryGet(t *testing.T) {
	ds := indexedSet(2)
	ex, err := ds.Get(1)
	require.NoError(t, err)
	require.Equal(t, "1", ex.Key)

	_, err = ds.Get(2)
	require.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestSplitPartitions(t *testing.T) {
	ds := indexedSet(20)
	train, val, err := Split(ds, 0.25, 3)
	require.NoError(t, err)
	require.Equal(t, 15, train.Len())
	require.Equal(t, 5, val.Len())

	seen := map[string]bool{}
	for _, part := range []Dataset{train, val} {
		for i := 0; i < part.Len(); i++ {
			ex, err := part.Get(i)
			require.NoError(t, err)
			require.False(t, seen[ex.Key], "duplicate %s", ex.Key)
			seen[ex.Key] = true
		}
	}
	require.Len(t, seen, 20)

	_, err = val.Get(5)
	require.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestSplitKeepsBothSidesNonEmpty(t *testing.T) {
	train, val, err := Split(indexedSet(2), 0.01, 1)
	require.NoError(t, err)
	require.Equal(t, 1, train.Len())
	require.Equal(t, 1, val.Len())

	_, _, err = Split(indexedSet(1), 0.5, 1)
	require.Error(t, err)
	_, _, err = Split(indexedSet(4), 1, 1)
	require.Error(t, err)
}

func TestSeparableLabelsMatchSign(t *testing.T) {
	ds := Separable(200, 4)
	require.Equal(t, 200, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		ex, err := ds.Get(i)
		require.NoError(t, err)
		x := ex.Features[0]
		require.GreaterOrEqual(t, x*x, 0.05*0.05)
		if x > 0 {
			require.Equal(t, 1.0, ex.Label[0])
		} else {
			require.Equal(t, 0.0, ex.Label[0])
		}
	}
}
