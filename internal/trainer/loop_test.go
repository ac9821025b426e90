package trainer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"binclass-forge/internal/dataset"
	"binclass-forge/internal/model"
	"binclass-forge/internal/nn"
	"binclass-forge/internal/optim"
)

func sigmoidBCE(m model.Model, x, y *mat.Dense) (*mat.Dense, *nn.Loss, error) {
	logits, err := m.Forward(x)
	if err != nil {
		return nil, nil, err
	}
	preds := nn.Sigmoid(logits)
	value, err := nn.BCELoss{}.Forward(preds, y)
	if err != nil {
		return nil, nil, err
	}
	return preds, nn.NewLoss(value, func() error {
		g, err := nn.BCELoss{}.Grad(preds, y)
		if err != nil {
			return err
		}
		g, err = nn.SigmoidBackward(preds, g)
		if err != nil {
			return err
		}
		return m.Backward(g)
	}), nil
}

func countNone(_, _ *mat.Dense) int { return 0 }

func baseConfig() Config {
	return Config{
		TrainSet:     dataset.Separable(4, 1),
		ValSet:       dataset.Separable(4, 2),
		BatchSize:    4,
		Epochs:       3,
		LearningRate: 0.1,
		ForwardPass:  sigmoidBCE,
		CountCorrect: countNone,
		NumWorkers:   1,
		Device:       CPU,
	}
}

func TestTrainValidatesConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"batch size":    func(c *Config) { c.BatchSize = 0 },
		"epochs":        func(c *Config) { c.Epochs = 0 },
		"learning rate": func(c *Config) { c.LearningRate = 0 },
		"workers":       func(c *Config) { c.NumWorkers = -1 },
		"train set":     func(c *Config) { c.TrainSet = dataset.NewInMemory(nil) },
		"val set":       func(c *Config) { c.ValSet = nil },
		"callbacks":     func(c *Config) { c.ForwardPass = nil },
		"optimizer":     func(c *Config) { c.Optimizer = "rmsprop" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(&cfg)
			_, err := Train(context.Background(), model.NewLinear(1, 1, 1), cfg)
			require.Error(t, err)
		})
	}
}

func TestTrainRejectsUnknownDevice(t *testing.T) {
	cfg := baseConfig()
	cfg.Device = "cuda:0"
	_, err := Train(context.Background(), model.NewLinear(1, 1, 1), cfg)
	require.True(t, errors.Is(err, ErrUnsupportedDevice))
}

func TestTrainRecordsEpochsAndSchedule(t *testing.T) {
	cfg := baseConfig()
	cfg.Epochs = 4
	cfg.SchedulerFactory = optim.StepLR(2, 0.5)
	cfg.Optimizer = "sgd"

	hist, err := Train(context.Background(), model.NewLinear(1, 1, 1), cfg)
	require.NoError(t, err)
	require.Len(t, hist.Epochs, 4)

	var rates []float64
	for i, rec := range hist.Epochs {
		require.Equal(t, i+1, rec.Epoch)
		require.Greater(t, rec.TrainLoss, 0.0)
		rates = append(rates, rec.LearningRate)
	}
	require.Equal(t, []float64{0.1, 0.1, 0.05, 0.05}, rates)
}

func TestTrainLoadBestRestoresBestEpoch(t *testing.T) {
	for _, loadBest := range []bool{true, false} {
		cfg := baseConfig()
		cfg.LoadBest = loadBest

		m := model.NewLinear(1, 1, 7)
		var (
			calls      int
			afterFirst model.Snapshot
		)
		cfg.ForwardPass = func(mm model.Model, x, y *mat.Dense) (*mat.Dense, *nn.Loss, error) {
			calls++
			if calls == 2 {
				afterFirst = model.TakeSnapshot(mm)
			}
			return sigmoidBCE(mm, x, y)
		}
		counts := 0
		cfg.CountCorrect = func(_, _ *mat.Dense) int {
			counts++
			if counts == 2 {
				return 4
			}
			return 0
		}

		hist, err := Train(context.Background(), m, cfg)
		require.NoError(t, err)
		require.Equal(t, 1, hist.BestEpoch)
		require.Equal(t, loadBest, hist.Restored)

		got := model.TakeSnapshot(m)
		require.Equal(t, loadBest, mat.Equal(afterFirst[0], got[0]), "loadBest=%v", loadBest)
	}
}

func TestTrainPropagatesForwardError(t *testing.T) {
	boom := errors.New("boom")
	cfg := baseConfig()
	cfg.ForwardPass = func(model.Model, *mat.Dense, *mat.Dense) (*mat.Dense, *nn.Loss, error) {
		return nil, nil, boom
	}
	_, err := Train(context.Background(), model.NewLinear(1, 1, 1), cfg)
	require.True(t, errors.Is(err, boom))
}

func TestTrainPropagatesShapeMismatch(t *testing.T) {
	cfg := baseConfig()
	_, err := Train(context.Background(), model.NewLinear(3, 1, 1), cfg)
	require.True(t, errors.Is(err, nn.ErrShapeMismatch))
}

func TestTrainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Train(ctx, model.NewLinear(1, 1, 1), baseConfig())
	require.True(t, errors.Is(err, context.Canceled))
}
