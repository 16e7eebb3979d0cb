package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/freight-doc-engine/internal/core"
	"github.com/mikey/freight-doc-engine/internal/di"
	"github.com/mikey/freight-doc-engine/internal/pipeline"
	"github.com/mikey/freight-doc-engine/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	processor *pipeline.Processor,
	source ports.MessageSource,
	fallback core.FallbackClassifier,
) error {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the ingestion listener when configured
	if source != nil {
		if err := source.Start(); err != nil {
			logger.Fatal("Failed to start message source", zap.Error(err))
			return err
		}
	}

	// Run the pipeline in the background
	done := make(chan error, 1)
	go func() {
		done <- processor.Run(ctx)
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Shutting down...")
	case err := <-done:
		if err != nil && err != context.Canceled {
			logger.Error("Pipeline stopped unexpectedly", zap.Error(err))
		}
	}

	cancel()

	// Stop the ingestion listener
	if source != nil {
		if err := source.Stop(); err != nil {
			logger.Error("Failed to stop message source", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := fallback.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close fallback classifier", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
