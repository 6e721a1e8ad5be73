package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"loan-scorer/internal/storage"
)

func historyCmd(a *app) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "history <dataset>",
		Short: "List stored evaluation runs for a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.Open(a.settings.DataPath, storage.Options{ReadOnly: true})
			if err != nil {
				return err
			}
			defer store.Close()

			end := time.Now()
			records, err := store.GetEvaluations(args[0], end.Add(-since), end)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No evaluations for %s\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tROWS\tSCORED\tACCURACY\tAPPROVAL\tFAILURES")
			for _, r := range records {
				failed := 0
				for _, n := range r.Failures {
					failed += n
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%.2f%%\t%.2f%%\t%d\n",
					r.Timestamp.Format(time.RFC3339), r.Rows, r.Scored,
					r.Accuracy*100, r.ApprovalRate*100, failed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&since, "since", 30*24*time.Hour, "how far back to list runs")

	return cmd
}
