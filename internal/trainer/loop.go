package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"binclass-forge/internal/dataset"
	"binclass-forge/internal/history"
	"binclass-forge/internal/metrics"
	"binclass-forge/internal/model"
	"binclass-forge/internal/nn"
	"binclass-forge/internal/optim"
)

// ErrUnsupportedDevice is returned for a placement token the trainer cannot
// execute on.
var ErrUnsupportedDevice = errors.New("trainer: unsupported device")

// Device is an opaque placement token such as "cpu".
type Device string

// CPU is the host device and the only one this trainer executes on.
const CPU Device = "cpu"

// ForwardPassFunc runs the model on one batch and returns the task's
// predictions together with a differentiable loss.
type ForwardPassFunc func(m model.Model, samples, labels *mat.Dense) (*mat.Dense, *nn.Loss, error)

// CountCorrectFunc returns how many rows of a batch were classified correctly.
type CountCorrectFunc func(predictions, labels *mat.Dense) int

// Config captures the knobs required by the training loop.
type Config struct {
	TrainSet         dataset.Dataset
	ValSet           dataset.Dataset
	BatchSize        int
	Epochs           int
	LearningRate     float64
	ForwardPass      ForwardPassFunc
	CountCorrect     CountCorrectFunc
	SchedulerFactory optim.SchedulerFactory
	LoadBest         bool
	NumWorkers       int
	Device           Device
	Optimizer        string
	Seed             int64
	LogEvery         int
	Logger           *zap.Logger
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("trainer: batch size must be > 0 (got %d)", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("trainer: epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("trainer: learning rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("trainer: num workers must be >= 0 (got %d)", c.NumWorkers)
	}
	if c.TrainSet == nil || c.TrainSet.Len() == 0 {
		return errors.New("trainer: training set is empty")
	}
	if c.ValSet == nil || c.ValSet.Len() == 0 {
		return errors.New("trainer: validation set is empty")
	}
	if c.ForwardPass == nil || c.CountCorrect == nil {
		return errors.New("trainer: forward pass and correctness callbacks are required")
	}
	if c.Device == "" {
		c.Device = CPU
	}
	if c.Device != CPU {
		return fmt.Errorf("%w: %q", ErrUnsupportedDevice, c.Device)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

// Train runs cfg.Epochs epochs of optimization and validation on m and
// returns the per-epoch history. With LoadBest set, m holds the parameters
// of the best validation epoch on return; otherwise those of the last.
func Train(ctx context.Context, m model.Model, cfg Config) (*history.History, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger.With(zap.String("device", string(cfg.Device)))

	opt, err := optim.New(cfg.Optimizer, m.Params(), cfg.LearningRate)
	if err != nil {
		return nil, err
	}
	var sched optim.Scheduler
	if cfg.SchedulerFactory != nil {
		sched = cfg.SchedulerFactory(opt)
	}

	hist := &history.History{}
	var best model.Snapshot

	log.Info("training started",
		zap.Int("epochs", cfg.Epochs),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Float64("learning_rate", cfg.LearningRate),
		zap.Int("train_size", cfg.TrainSet.Len()),
		zap.Int("val_size", cfg.ValSet.Len()),
		zap.Int("num_workers", cfg.NumWorkers),
	)

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		lr := opt.LearningRate()

		train, err := runPass(ctx, m, cfg, opt, epoch, log)
		if err != nil {
			return nil, fmt.Errorf("epoch %d train: %w", epoch, err)
		}
		val, err := runPass(ctx, m, cfg, nil, epoch, log)
		if err != nil {
			return nil, fmt.Errorf("epoch %d validate: %w", epoch, err)
		}

		if sched != nil {
			sched.Step()
		}

		rec := history.EpochRecord{
			Epoch:         epoch,
			TrainLoss:     train.AvgLoss,
			TrainAccuracy: train.Accuracy,
			ValLoss:       val.AvgLoss,
			ValAccuracy:   val.Accuracy,
			LearningRate:  lr,
			Duration:      time.Since(start),
		}
		if hist.Add(rec) {
			best = model.TakeSnapshot(m)
		}

		log.Info("epoch complete",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", rec.TrainLoss),
			zap.Float64("train_acc", rec.TrainAccuracy),
			zap.Float64("val_loss", rec.ValLoss),
			zap.Float64("val_acc", rec.ValAccuracy),
			zap.Float64("lr", lr),
			zap.Float64("samples_per_sec", train.SamplesPerSec),
			zap.Duration("took", rec.Duration),
		)
	}

	if cfg.LoadBest && best != nil {
		if err := model.Restore(m, best); err != nil {
			return nil, err
		}
		hist.Restored = true
		log.Info("restored best epoch", zap.Int("epoch", hist.BestEpoch))
	}

	return hist, nil
}

// runPass iterates one shuffled (training) or ordered (validation) pass over
// the corresponding dataset. A nil opt selects validation.
func runPass(ctx context.Context, m model.Model, cfg Config, opt optim.Optimizer, epoch int, log *zap.Logger) (metrics.Snapshot, error) {
	training := opt != nil
	ds := cfg.ValSet
	if training {
		ds = cfg.TrainSet
	}

	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches, loaderErr, err := dataset.StartLoader(passCtx, dataset.LoaderOptions{
		Dataset:    ds,
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
		Shuffle:    training,
		Seed:       cfg.Seed + int64(epoch),
	})
	if err != nil {
		return metrics.Snapshot{}, err
	}

	var window, logWindow metrics.Window
	step := 0
	for {
		startData := time.Now()
		var (
			batch dataset.Batch
			ok    bool
		)
		select {
		case <-ctx.Done():
			return metrics.Snapshot{}, ctx.Err()
		case batch, ok = <-batches:
		}
		if !ok {
			break
		}
		dataTime := time.Since(startData)

		startCompute := time.Now()
		if training {
			opt.ZeroGrad()
		}
		preds, loss, err := cfg.ForwardPass(m, batch.X, batch.Y)
		if err != nil {
			return metrics.Snapshot{}, err
		}
		if training {
			if err := loss.Backward(); err != nil {
				return metrics.Snapshot{}, err
			}
			opt.Step()
		}
		correct := cfg.CountCorrect(preds, batch.Y)
		computeTime := time.Since(startCompute)

		window.Record(batch.Size(), correct, loss.Value, dataTime, computeTime)
		step++

		if training {
			logWindow.Record(batch.Size(), correct, loss.Value, dataTime, computeTime)
			if step%cfg.LogEvery == 0 {
				snap := logWindow.Snapshot()
				log.Debug("train progress",
					zap.Int("epoch", epoch),
					zap.Int("step", step),
					zap.Float64("samples_per_sec", snap.SamplesPerSec),
					zap.Float64("data_ms", snap.AvgDataMS),
					zap.Float64("compute_ms", snap.AvgComputeMS),
					zap.Float64("loss", snap.AvgLoss),
				)
			}
		}
	}

	if err := <-loaderErr; err != nil {
		return metrics.Snapshot{}, err
	}
	if ctx.Err() != nil {
		return metrics.Snapshot{}, ctx.Err()
	}
	return window.Snapshot(), nil
}
