package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"binclass-forge/internal/logging"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	TrainRoot        string         `yaml:"train_root"`
	ValRoot          string         `yaml:"val_root"`
	ValSplit         float64        `yaml:"val_split"`
	SyntheticSamples int            `yaml:"synthetic_samples"`
	Model            ModelConfig    `yaml:"model"`
	Epochs           int            `yaml:"epochs"`
	BatchSize        int            `yaml:"batch_size"`
	LearningRate     float64        `yaml:"learning_rate"`
	Optimizer        string         `yaml:"optimizer"`
	Schedule         ScheduleConfig `yaml:"schedule"`
	LoadBest         bool           `yaml:"load_best"`
	NumWorkers       int            `yaml:"num_workers"`
	Device           string         `yaml:"device"`
	Seed             int64          `yaml:"seed"`
	LogEvery         int            `yaml:"log_every"`
	HistoryDB        string         `yaml:"history_db"`
	Log              logging.Config `yaml:"log"`
}

// ModelConfig selects the network.
type ModelConfig struct {
	Kind   string `yaml:"kind"`
	Hidden int    `yaml:"hidden"`
}

// ScheduleConfig selects an optional learning-rate schedule.
type ScheduleConfig struct {
	Kind     string  `yaml:"kind"`
	StepSize int     `yaml:"step_size"`
	Gamma    float64 `yaml:"gamma"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	TrainRoot    string
	ValRoot      string
	Epochs       int
	BatchSize    int
	LearningRate float64
	NumWorkers   int
	Device       string
	Seed         int64
	LogEvery     int
	HistoryDB    string
	NoLoadBest   bool
}

// Default returns the values used for keys absent from the YAML file.
func Default() *Config {
	return &Config{
		ValSplit:     0.2,
		Model:        ModelConfig{Kind: "linear", Hidden: 16},
		Epochs:       10,
		BatchSize:    32,
		LearningRate: 0.01,
		Optimizer:    "adam",
		LoadBest:     true,
		NumWorkers:   1,
		Device:       "cpu",
		Seed:         42,
		LogEvery:     50,
		Log:          logging.Config{Level: "info", Format: "console"},
	}
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read parses the YAML file at path over Default without validating, so
// that overrides can complete it first.
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.TrainRoot != "" {
		c.TrainRoot = o.TrainRoot
	}
	if o.ValRoot != "" {
		c.ValRoot = o.ValRoot
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Device != "" {
		c.Device = o.Device
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.HistoryDB != "" {
		c.HistoryDB = o.HistoryDB
	}
	if o.NoLoadBest {
		c.LoadBest = false
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.TrainRoot == "" && c.SyntheticSamples <= 0 {
		return errors.New("either train_root or synthetic_samples must be set")
	}
	if c.ValRoot == "" && (c.ValSplit <= 0 || c.ValSplit >= 1) {
		return fmt.Errorf("val_split must be in (0,1) when val_root is empty (got %g)", c.ValSplit)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("num_workers must be >= 0 (got %d)", c.NumWorkers)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	return nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}
