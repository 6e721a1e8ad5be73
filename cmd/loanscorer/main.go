package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"loan-scorer/internal/cfg"
	"loan-scorer/internal/common"
	"loan-scorer/internal/metrics"
	"loan-scorer/internal/ml"
	"loan-scorer/internal/server"
	"loan-scorer/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	cfg.SetupLogging(c, os.Stderr)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store, err := storage.Open(c.DataPath, storage.Options{ReadOnly: true})
	if err != nil {
		log.Fatal().Err(err).Str("path", c.DataPath).Msg("artifact store unavailable, run loanctl train first")
	}
	defer store.Close()

	engine, err := initializeEngine(c, store, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize inference engine")
	}

	srv := server.New(server.Config{
		Addr:         c.ListenAddr,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}, engine, mw)

	var wg sync.WaitGroup
	startServer(ctx, cancel, &wg, srv)

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, &wg)
}

// initializeEngine loads the artifacts and wraps them in an engine. A remote
// classifier replaces the persisted one when configured.
func initializeEngine(c cfg.Settings, store *storage.Store, mw *metrics.MetricsWrapper) (*ml.Engine, error) {
	var override ml.Classifier
	if c.ClassifierKind == common.ClassifierRemote {
		override = ml.NewRemoteClassifier(c.RemoteModelURL, c.RemoteModelTimeout, mw)
		log.Info().Str("url", c.RemoteModelURL).Dur("timeout", c.RemoteModelTimeout).Msg("using remote classifier")
	}

	artifacts, err := ml.LoadArtifacts(store, override)
	if err != nil {
		return nil, err
	}

	if modTime, err := store.ModTime(); err == nil {
		log.Info().Time("store_modified", modTime).Msg("artifact store opened")
	}

	return ml.NewEngine(artifacts, mw)
}

// startServer runs the HTTP server until ctx is done. A listener failure
// cancels ctx.
func startServer(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, srv *server.Server) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed")
			cancel()
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown server")
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
