package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"binclass-forge/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var (
		dbPath string
		runID  int64
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or show the epochs of one run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if runID > 0 {
				run, err := s.LoadRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				return printRun(out, run)
			}
			runs, err := s.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			return printRuns(out, runs)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "runs.db", "SQLite file holding recorded runs")
	cmd.Flags().Int64Var(&runID, "run", 0, "Show per-epoch metrics for this run id")
	return cmd
}

func printRuns(w io.Writer, runs []store.RunInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tMODEL\tOPTIMIZER\tEPOCHS\tBATCH\tLR\tTRAIN\tVAL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%g\t%d\t%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.ModelName, r.Optimizer,
			r.Epochs, r.BatchSize, r.LearningRate, r.TrainSize, r.ValSize)
	}
	return tw.Flush()
}

func printRun(w io.Writer, run *store.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EPOCH\tTRAIN_LOSS\tTRAIN_ACC\tVAL_LOSS\tVAL_ACC\tLR\tTOOK")
	for _, rec := range run.History.Epochs {
		marker := ""
		if rec.Epoch == run.History.BestEpoch {
			marker = " *"
		}
		fmt.Fprintf(tw, "%d%s\t%.4f\t%.4f\t%.4f\t%.4f\t%g\t%s\n",
			rec.Epoch, marker, rec.TrainLoss, rec.TrainAccuracy, rec.ValLoss, rec.ValAccuracy,
			rec.LearningRate, rec.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}
