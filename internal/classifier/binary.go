package classifier

import (
	"context"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"binclass-forge/internal/dataset"
	"binclass-forge/internal/history"
	"binclass-forge/internal/model"
	"binclass-forge/internal/nn"
	"binclass-forge/internal/optim"
	"binclass-forge/internal/trainer"
)

// decisionThreshold separates the two classes; a value equal to it counts
// as class 1.
const decisionThreshold = 0.5

// Options are forwarded to the trainer unchanged.
type Options struct {
	BatchSize        int
	Epochs           int
	LearningRate     float64
	SchedulerFactory optim.SchedulerFactory
	LoadBest         bool
	NumWorkers       int
	Device           trainer.Device
	Optimizer        string
	Seed             int64
	LogEvery         int
	Logger           *zap.Logger
}

// DefaultOptions mirrors the usual defaults: keep the best epoch, one
// loader worker, CPU placement.
func DefaultOptions() Options {
	return Options{
		LoadBest:   true,
		NumWorkers: 1,
		Device:     trainer.CPU,
	}
}

// TrainBinary trains m as a binary classifier: sigmoid over the logits,
// binary cross-entropy as the loss, and accuracy from thresholding both
// predictions and labels at 0.5. Errors from the trainer are returned as is.
func TrainBinary(ctx context.Context, m model.Model, trainSet, valSet dataset.Dataset, opts Options) (*history.History, error) {
	return trainer.Train(ctx, m, trainer.Config{
		TrainSet:         trainSet,
		ValSet:           valSet,
		BatchSize:        opts.BatchSize,
		Epochs:           opts.Epochs,
		LearningRate:     opts.LearningRate,
		ForwardPass:      newForwardPass(nn.BCELoss{}),
		CountCorrect:     countCorrectClassified,
		SchedulerFactory: opts.SchedulerFactory,
		LoadBest:         opts.LoadBest,
		NumWorkers:       opts.NumWorkers,
		Device:           opts.Device,
		Optimizer:        opts.Optimizer,
		Seed:             opts.Seed,
		LogEvery:         opts.LogEvery,
		Logger:           opts.Logger,
	})
}

func newForwardPass(lossFn nn.BCELoss) trainer.ForwardPassFunc {
	return func(m model.Model, samples, labels *mat.Dense) (*mat.Dense, *nn.Loss, error) {
		logits, err := m.Forward(samples)
		if err != nil {
			return nil, nil, err
		}
		predictions := nn.Sigmoid(logits)
		value, err := lossFn.Forward(predictions, labels)
		if err != nil {
			return nil, nil, err
		}
		return predictions, nn.NewLoss(value, func() error {
			gradPred, err := lossFn.Grad(predictions, labels)
			if err != nil {
				return err
			}
			gradLogits, err := nn.SigmoidBackward(predictions, gradPred)
			if err != nil {
				return err
			}
			return m.Backward(gradLogits)
		}), nil
	}
}

// countCorrectClassified compares predictions and labels elementwise after
// binarizing both at decisionThreshold. Both must have the same shape.
func countCorrectClassified(predictions, labels *mat.Dense) int {
	r, c := predictions.Dims()
	correct := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if binarize(predictions.At(i, j)) == binarize(labels.At(i, j)) {
				correct++
			}
		}
	}
	return correct
}

func binarize(v float64) int {
	if v < decisionThreshold {
		return 0
	}
	return 1
}
