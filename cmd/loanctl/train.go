package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"loan-scorer/internal/dataset"
	"loan-scorer/internal/ml"
	"loan-scorer/internal/storage"
)

func trainCmd(a *app) *cobra.Command {
	var (
		dataFile   string
		iterations int
		l2         float64
		threshold  float64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the transformer, encoders and classifier on a labeled CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.settings
			if dataFile == "" {
				dataFile = s.TrainingData
			}

			lc := ml.LogisticConfig{
				Iterations: s.TrainIterations,
				L2:         s.TrainL2,
				Threshold:  s.DecisionThreshold,
			}
			if cmd.Flags().Changed("iterations") {
				lc.Iterations = iterations
			}
			if cmd.Flags().Changed("l2") {
				lc.L2 = l2
			}
			if cmd.Flags().Changed("threshold") {
				lc.Threshold = threshold
			}

			ds, err := dataset.LoadCSV(dataFile)
			if err != nil {
				return err
			}

			artifacts, report, err := ml.Train(ds, ml.TrainOptions{Logistic: lc})
			if err != nil {
				return fmt.Errorf("training failed: %w", err)
			}

			store, err := storage.New(s.DataPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := ml.SaveArtifacts(store, artifacts); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Trained on %s\n", dataFile)
			fmt.Fprintf(out, "Rows: %d, used: %d, failed: %d, unlabeled: %d\n",
				report.Rows, report.UsedRows, len(report.FailedRows), report.Unlabeled)
			for _, f := range report.FailedRows {
				fmt.Fprintf(out, "  row %d: %v\n", f.Index, f.Err)
			}
			fmt.Fprintf(out, "Classes: %s\n", formatCounts(report.ClassCounts))
			fmt.Fprintf(out, "Features: %s\n", strings.Join(report.FeatureOrder, ", "))
			fmt.Fprintf(out, "Training accuracy: %.2f%%\n", report.Accuracy*100)
			if stats := ml.FeatureImportance(artifacts); len(stats) > 0 {
				fmt.Fprintf(out, "Feature importance:\n")
				for _, f := range stats {
					fmt.Fprintf(out, "  %-18s %6.2f%%  weight %+.4f\n", f.Name, f.ImportanceScore*100, f.Weight)
				}
			}
			fmt.Fprintf(out, "Artifacts written to %s\n", s.DataPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "training CSV (defaults to TRAINING_DATA)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "maximum optimizer iterations")
	cmd.Flags().Float64Var(&l2, "l2", 0, "L2 penalty")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "probability at or above which an application is approved")

	return cmd
}

// formatCounts renders counts as "a=1, b=2" in key order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
