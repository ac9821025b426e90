package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "binclass-forge", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(newTrainCmd(), newHistoryCmd())
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrainSyntheticThenHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "train",
		"--synthetic", "120",
		"--epochs", "3",
		"--batch-size", "16",
		"--lr", "0.05",
		"--num-workers", "2",
		"--history-db", db,
	)
	require.NoError(t, err)

	out, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, "linear")
	require.Contains(t, out, "adam")

	out, err = execute(t, "history", "--db", db, "--run", "1")
	require.NoError(t, err)
	require.Contains(t, out, "TRAIN_LOSS")
	require.Contains(t, out, "*")
}

func TestTrainRejectsUnsupportedDevice(t *testing.T) {
	_, err := execute(t, "train", "--synthetic", "20", "--epochs", "1", "--device", "cuda:0")
	require.ErrorContains(t, err, "unsupported device")
}

func TestTrainRequiresData(t *testing.T) {
	_, err := execute(t, "train", "--epochs", "1")
	require.ErrorContains(t, err, "invalid config")
}

func TestHistoryUnknownRun(t *testing.T) {
	_, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "runs.db"), "--run", "7")
	require.ErrorContains(t, err, "run not found")
}
