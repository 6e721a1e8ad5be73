package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"loan-scorer/internal/dataset"
	"loan-scorer/internal/evaluate"
	"loan-scorer/internal/storage"
)

func evaluateCmd(a *app) *cobra.Command {
	var (
		dataFile string
		output   string
		name     string
		noRecord bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a labeled CSV through the serving path and report accuracy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.settings
			if dataFile == "" {
				dataFile = s.TrainingData
			}
			if name == "" {
				name = filepath.Base(dataFile)
			}

			ds, err := dataset.LoadCSV(dataFile)
			if err != nil {
				return err
			}

			store, err := storage.Open(s.DataPath, storage.Options{ReadOnly: noRecord})
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := a.loadEngine(store)
			if err != nil {
				return err
			}

			report, err := evaluate.Run(cmd.Context(), engine, ds, engine.Artifacts().TargetEncoder, name)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}

			if output != "" {
				if err := evaluate.NewReporter(report, output).GenerateReport(); err != nil {
					return err
				}
			}
			if !noRecord {
				if err := store.StoreEvaluation(report.Record()); err != nil {
					return fmt.Errorf("failed to store evaluation: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dataset: %s\n", report.Dataset)
			fmt.Fprintf(out, "Rows: %d, scored: %d, labeled: %d\n", report.Rows, report.Scored, report.Labeled)
			fmt.Fprintf(out, "Accuracy: %.2f%%\n", report.Accuracy*100)
			fmt.Fprintf(out, "Approval rate: %.2f%%\n", report.ApprovalRate*100)

			kinds := make([]string, 0, len(report.Failures))
			for k := range report.Failures {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				fmt.Fprintf(out, "Failures (%s): %d\n", k, report.Failures[k])
			}
			if output != "" {
				fmt.Fprintf(out, "Reports written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "labeled CSV (defaults to TRAINING_DATA)")
	cmd.Flags().StringVar(&output, "output", "", "directory for summary, decision log and JSON reports")
	cmd.Flags().StringVar(&name, "name", "", "dataset name for stored history (defaults to the file name)")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not store the run in the evaluation history")

	return cmd
}
