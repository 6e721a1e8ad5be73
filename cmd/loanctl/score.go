package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"loan-scorer/internal/loan"
	"loan-scorer/internal/ml"
	"loan-scorer/internal/storage"
)

func scoreCmd(a *app) *cobra.Command {
	var (
		body   string
		fields map[string]string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a single application from a JSON object or field flags",
		Example: `  loanctl score --field Gender=Male --field ApplicantIncome=5000 ...
  echo '{"Gender":"Male","ApplicantIncome":"5000"}' | loanctl score --json -`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := readApplication(cmd.InOrStdin(), body, fields)
			if err != nil {
				return err
			}

			store, err := storage.Open(a.settings.DataPath, storage.Options{ReadOnly: true})
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := a.loadEngine(store)
			if err != nil {
				return err
			}

			d, err := engine.Predict(cmd.Context(), app)
			if err != nil {
				return fmt.Errorf("%s: %w", ml.Kind(err), err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d.Response())
		},
	}

	cmd.Flags().StringVar(&body, "json", "", "application as a JSON object of strings, or - to read stdin")
	cmd.Flags().StringToStringVar(&fields, "field", nil, "application field as name=value (repeatable)")

	return cmd
}

// readApplication merges the JSON body, if any, with explicit field flags.
// Flags win on conflict.
func readApplication(stdin io.Reader, body string, fields map[string]string) (loan.Application, error) {
	app := loan.Application{}

	if body == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		body = string(data)
	}
	if body != "" {
		if err := json.Unmarshal([]byte(body), &app); err != nil {
			return nil, fmt.Errorf("invalid application JSON: %w", err)
		}
	}

	for k, v := range fields {
		app[k] = v
	}
	if len(app) == 0 {
		return nil, errors.New("no application fields given, use --json or --field")
	}
	return app, nil
}
