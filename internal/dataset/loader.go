package dataset

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ErrInconsistentExample is returned when examples within a batch disagree
// on feature or label width.
var ErrInconsistentExample = errors.New("dataset: inconsistent example width")

// Batch is a minibatch with one example per row.
type Batch struct {
	Index int
	X     *mat.Dense
	Y     *mat.Dense
}

// Size returns the number of examples in the batch.
func (b Batch) Size() int {
	r, _ := b.X.Dims()
	return r
}

// LoaderOptions configures the batch loader.
type LoaderOptions struct {
	Dataset    Dataset
	BatchSize  int
	NumWorkers int
	Shuffle    bool
	Seed       int64
}

type batchJob struct {
	id      int
	indices []int
}

// StartLoader launches NumWorkers goroutines that assemble batches over one
// pass of the dataset. Batches arrive in order regardless of which worker
// built them; the final batch may be short. The error channel yields at most
// one error and is closed after all workers exit.
func StartLoader(parent context.Context, opts LoaderOptions) (<-chan Batch, <-chan error, error) {
	if opts.Dataset == nil || opts.Dataset.Len() == 0 {
		return nil, nil, errors.New("loader: dataset is empty")
	}
	if opts.BatchSize <= 0 {
		return nil, nil, fmt.Errorf("loader: batch size must be > 0 (got %d)", opts.BatchSize)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}

	order := batchOrder(opts.Dataset.Len(), opts.Shuffle, opts.Seed)

	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan batchJob, opts.NumWorkers)
	results := make(chan Batch, opts.NumWorkers)
	out := make(chan Batch, opts.NumWorkers)
	errCh := make(chan error, 1)

	g.Go(func() error {
		defer close(jobs)
		id := 0
		for start := 0; start < len(order); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(order) {
				end = len(order)
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobs <- batchJob{id: id, indices: order[start:end]}:
				id++
			}
		}
		return nil
	})

	for i := 0; i < opts.NumWorkers; i++ {
		g.Go(func() error {
			for job := range jobs {
				batch, err := assemble(opts.Dataset, job)
				if err != nil {
					return err
				}
				select {
				case <-gctx.Done():
					return gctx.Err()
				case results <- batch:
				}
			}
			return nil
		})
	}

	go func() {
		defer close(errCh)
		err := g.Wait()
		close(results)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	go func() {
		defer cancel()
		defer close(out)
		runAggregator(ctx, results, out)
	}()

	return out, errCh, nil
}

// runAggregator reorders batches by id. Batches after a gap left by a failed
// worker are dropped.
func runAggregator(ctx context.Context, results <-chan Batch, out chan<- Batch) {
	pending := make(map[int]Batch)
	nextID := 0
	for batch := range results {
		pending[batch.Index] = batch
		for {
			ready, ok := pending[nextID]
			if !ok {
				break
			}
			select {
			case <-ctx.Done():
				return
			case out <- ready:
			}
			delete(pending, nextID)
			nextID++
		}
	}
}

func assemble(ds Dataset, job batchJob) (Batch, error) {
	var x, y *mat.Dense
	for row, idx := range job.indices {
		ex, err := ds.Get(idx)
		if err != nil {
			return Batch{}, err
		}
		if x == nil {
			if len(ex.Features) == 0 || len(ex.Label) == 0 {
				return Batch{}, fmt.Errorf("%w: example %d is empty", ErrInconsistentExample, idx)
			}
			x = mat.NewDense(len(job.indices), len(ex.Features), nil)
			y = mat.NewDense(len(job.indices), len(ex.Label), nil)
		}
		_, xc := x.Dims()
		_, yc := y.Dims()
		if len(ex.Features) != xc || len(ex.Label) != yc {
			return Batch{}, fmt.Errorf("%w: example %d has %d features/%d labels, batch has %d/%d",
				ErrInconsistentExample, idx, len(ex.Features), len(ex.Label), xc, yc)
		}
		x.SetRow(row, ex.Features)
		y.SetRow(row, ex.Label)
	}
	return Batch{Index: job.id, X: x, Y: y}, nil
}

func batchOrder(n int, shuffle bool, seed int64) []int {
	if shuffle {
		return rand.New(rand.NewSource(seed)).Perm(n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
