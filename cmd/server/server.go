// Package server implements the command that runs the Dess HTTP server.
package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dess-cd/dess/app"
	"github.com/dess-cd/dess/web"
	"github.com/spf13/cobra"
)

// NewCmdServer creates a command to run the webhook and health HTTP server
func NewCmdServer() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the Dess server (webhook receiver + health endpoints)",
		Long:  "Starts the HTTP server that receives repository webhooks and serves health and metrics endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	return cmd
}

// runServer starts the HTTP server and blocks until shutdown
func runServer() error {
	config := app.GetConfig()

	slog.Info("Starting Dess server")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go handleShutdown(cancel)

	srv := web.NewServer(config, app.GetDispatcher(), app.GetRuntime())

	address := fmt.Sprintf("%s:%d", config.HTTPHost, config.HTTPPort)
	httpServer := &http.Server{
		Addr:    address,
		Handler: srv.Router(),
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://%s", address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	slog.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}

// handleShutdown handles OS signals for graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	slog.Info("Shutdown signal received")
	cancel()
}
