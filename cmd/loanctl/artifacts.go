package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"loan-scorer/internal/ml"
	"loan-scorer/internal/storage"
)

func artifactsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts",
		Short: "List the stored model artifacts and their training metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.Open(a.settings.DataPath, storage.Options{ReadOnly: true})
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.Keys()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintf(out, "No artifacts in %s\n", a.settings.DataPath)
				return nil
			}

			fmt.Fprintf(out, "Artifacts in %s:\n", a.settings.DataPath)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s\n", k)
			}

			data, err := store.Get(ml.KeyMetadata)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			var meta ml.Metadata
			if err := json.Unmarshal(data, &meta); err != nil {
				return fmt.Errorf("decode metadata: %w", err)
			}
			fmt.Fprintf(out, "Trained at: %s\n", meta.TrainedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Classifier: %s\n", meta.ClassifierKind)
			fmt.Fprintf(out, "Training rows: %d, dropped: %d\n", meta.TrainingRows, meta.DroppedRows)
			fmt.Fprintf(out, "Training accuracy: %.2f%%\n", meta.TrainingAccuracy*100)
			return nil
		},
	}
}
