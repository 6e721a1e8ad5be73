// Command loanctl trains, evaluates and queries the loan scoring model.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"loan-scorer/internal/cfg"
	"loan-scorer/internal/common"
	"loan-scorer/internal/ml"
	"loan-scorer/internal/storage"
)

// app carries the settings resolved before any subcommand runs.
type app struct {
	settings cfg.Settings

	dataPath  string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "loanctl",
		Short:         "Train, evaluate and query the loan scoring model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.dataPath, "data-path", "", "artifact store directory (overrides DATA_PATH)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (console, json)")

	root.AddCommand(trainCmd(a))
	root.AddCommand(evaluateCmd(a))
	root.AddCommand(scoreCmd(a))
	root.AddCommand(historyCmd(a))
	root.AddCommand(artifactsCmd(a))

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env file: %w", err)
	}

	s, err := cfg.Load()
	if err != nil {
		return err
	}
	if a.dataPath != "" {
		s.DataPath = a.dataPath
	}
	if a.logLevel != "" {
		s.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		s.LogFormat = a.logFormat
	}

	cfg.SetupLogging(s, cmd.ErrOrStderr())
	a.settings = s
	return nil
}

// loadEngine opens the artifacts in store and builds an engine without
// metrics.
func (a *app) loadEngine(store *storage.Store) (*ml.Engine, error) {
	var override ml.Classifier
	if a.settings.ClassifierKind == common.ClassifierRemote {
		override = ml.NewRemoteClassifier(a.settings.RemoteModelURL, a.settings.RemoteModelTimeout, nil)
	}

	artifacts, err := ml.LoadArtifacts(store, override)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts from %s: %w", a.settings.DataPath, err)
	}
	return ml.NewEngine(artifacts, nil)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
