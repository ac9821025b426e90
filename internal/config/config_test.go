package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
train_root: /data/train
epochs: 5
model:
  kind: mlp
schedule:
  kind: step
  step_size: 2
  gamma: 0.5
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/train", cfg.TrainRoot)
	require.Equal(t, 5, cfg.Epochs)
	require.Equal(t, "mlp", cfg.Model.Kind)
	require.Equal(t, 16, cfg.Model.Hidden)
	require.Equal(t, 32, cfg.BatchSize)
	require.Equal(t, "step", cfg.Schedule.Kind)
	require.True(t, cfg.LoadBest)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "train_root: x\nsteps: 5\n"))
	require.ErrorContains(t, err, "parse config")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "open config")
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{
		TrainRoot:    "/a",
		Epochs:       3,
		LearningRate: 0.5,
		Device:       "cuda:1",
		NoLoadBest:   true,
	})
	require.Equal(t, "/a", cfg.TrainRoot)
	require.Equal(t, 3, cfg.Epochs)
	require.Equal(t, 0.5, cfg.LearningRate)
	require.Equal(t, "cuda:1", cfg.Device)
	require.False(t, cfg.LoadBest)
	require.Equal(t, 32, cfg.BatchSize)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no data":       func(c *Config) { c.TrainRoot = ""; c.SyntheticSamples = 0 },
		"bad split":     func(c *Config) { c.ValSplit = 1 },
		"epochs":        func(c *Config) { c.Epochs = 0 },
		"batch size":    func(c *Config) { c.BatchSize = -1 },
		"learning rate": func(c *Config) { c.LearningRate = 0 },
		"workers":       func(c *Config) { c.NumWorkers = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.SyntheticSamples = 100
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.SyntheticSamples = 100
	cfg.LogEvery = 0
	require.NoError(t, cfg.Validate())
	require.Equal(t, 50, cfg.LogEvery)

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}

func TestReadSkipsValidation(t *testing.T) {
	path := writeConfig(t, "epochs: 2\n")
	_, err := Load(path)
	require.Error(t, err)

	cfg, err := Read(path)
	require.NoError(t, err)
	cfg.ApplyOverrides(Overrides{TrainRoot: "/data"})
	require.NoError(t, cfg.Validate())
}

func TestLoadDemoConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "demo.yaml"))
	require.NoError(t, err)
	require.Equal(t, 512, cfg.SyntheticSamples)
	require.Equal(t, "mlp", cfg.Model.Kind)
	require.Equal(t, "step", cfg.Schedule.Kind)
}
