package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"binclass-forge/internal/classifier"
	"binclass-forge/internal/config"
	"binclass-forge/internal/dataset"
	"binclass-forge/internal/logging"
	"binclass-forge/internal/model"
	"binclass-forge/internal/optim"
	"binclass-forge/internal/store"
	"binclass-forge/internal/trainer"
)

func newTrainCmd() *cobra.Command {
	var (
		cfgPath   string
		synthetic int
		o         config.Overrides
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a binary classifier on tar shards or synthetic data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				loaded, err := config.Read(cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if synthetic > 0 {
				cfg.SyntheticSamples = synthetic
			}
			cfg.ApplyOverrides(o)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return runTrain(cmd.Context(), cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", "", "Path to YAML config (see configs/demo.yaml)")
	f.IntVar(&synthetic, "synthetic", 0, "Generate N linearly separable samples instead of reading shards")
	f.StringVar(&o.TrainRoot, "train-root", "", "Override training shard root")
	f.StringVar(&o.ValRoot, "val-root", "", "Override validation shard root")
	f.IntVar(&o.Epochs, "epochs", 0, "Number of epochs")
	f.IntVar(&o.BatchSize, "batch-size", 0, "Batch size")
	f.Float64Var(&o.LearningRate, "lr", 0, "Learning rate")
	f.IntVar(&o.NumWorkers, "num-workers", 0, "Number of data loader workers")
	f.StringVar(&o.Device, "device", "", "Device token")
	f.Int64Var(&o.Seed, "seed", 0, "PRNG seed")
	f.IntVar(&o.LogEvery, "log-every", 0, "Log every N steps")
	f.StringVar(&o.HistoryDB, "history-db", "", "SQLite file to record the run in")
	f.BoolVar(&o.NoLoadBest, "no-load-best", false, "Keep last-epoch weights instead of the best")
	return cmd
}

func runTrain(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	trainSet, valSet, err := loadData(ctx, cfg, logger)
	if err != nil {
		return err
	}

	first, err := trainSet.Get(0)
	if err != nil {
		return err
	}
	m, err := model.New(cfg.Model.Kind, len(first.Features), cfg.Model.Hidden, len(first.Label), cfg.Seed)
	if err != nil {
		return err
	}
	sched, err := optim.FactoryFromConfig(cfg.Schedule.Kind, cfg.Schedule.StepSize, cfg.Schedule.Gamma)
	if err != nil {
		return err
	}

	started := time.Now()
	hist, err := classifier.TrainBinary(ctx, m, trainSet, valSet, classifier.Options{
		BatchSize:        cfg.BatchSize,
		Epochs:           cfg.Epochs,
		LearningRate:     cfg.LearningRate,
		SchedulerFactory: sched,
		LoadBest:         cfg.LoadBest,
		NumWorkers:       cfg.NumWorkers,
		Device:           trainer.Device(cfg.Device),
		Optimizer:        cfg.Optimizer,
		Seed:             cfg.Seed,
		LogEvery:         cfg.LogEvery,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if best, ok := hist.Best(); ok {
		logger.Info("training finished",
			zap.Int("best_epoch", best.Epoch),
			zap.Float64("best_val_acc", best.ValAccuracy),
			zap.Float64("best_val_loss", best.ValLoss),
			zap.Bool("restored", hist.Restored),
		)
	}

	if cfg.HistoryDB == "" {
		return nil
	}
	s, err := store.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer s.Close()
	id, err := s.SaveRun(ctx, store.RunInfo{
		ModelName:    cfg.Model.Kind,
		Optimizer:    cfg.Optimizer,
		BatchSize:    cfg.BatchSize,
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
		Device:       cfg.Device,
		TrainSize:    trainSet.Len(),
		ValSize:      valSet.Len(),
		StartedAt:    started,
	}, hist)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	logger.Info("run recorded", zap.Int64("run_id", id), zap.String("db", cfg.HistoryDB))
	return nil
}

func loadData(ctx context.Context, cfg *config.Config, logger *zap.Logger) (dataset.Dataset, dataset.Dataset, error) {
	var all dataset.Dataset
	if cfg.TrainRoot != "" {
		ds, err := loadRoot(ctx, cfg.TrainRoot, logger)
		if err != nil {
			return nil, nil, err
		}
		all = ds
	} else {
		all = dataset.Separable(cfg.SyntheticSamples, cfg.Seed)
		logger.Info("generated synthetic data", zap.Int("samples", cfg.SyntheticSamples))
	}

	if cfg.ValRoot == "" {
		return dataset.Split(all, cfg.ValSplit, cfg.Seed)
	}
	val, err := loadRoot(ctx, cfg.ValRoot, logger)
	if err != nil {
		return nil, nil, err
	}
	return all, val, nil
}

func loadRoot(ctx context.Context, root string, logger *zap.Logger) (*dataset.InMemory, error) {
	shards, err := dataset.DiscoverShards(root)
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards discovered under %s", root)
	}
	ds, err := dataset.LoadShards(ctx, shards)
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("shards under %s hold no samples", root)
	}
	logger.Info("loaded shards", zap.String("root", root), zap.Int("shards", len(shards)), zap.Int("samples", ds.Len()))
	return ds, nil
}
