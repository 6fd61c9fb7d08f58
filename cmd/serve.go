package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookverse/platform/internal/auth"
	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/server"
)

const shutdownTimeout = 30 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and enforcement API server",
	Long: `Start the HTTP server that receives Trust Registry lifecycle webhooks
and exposes the manual enforcement endpoint. Promotion and rollback events are
reconciled in the background; the server drains in-flight runs on shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	svc, shutdownTracing, err := taggingService(cmd)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	authService := auth.NewService(cfg.Auth, nil)
	handler := server.NewHandler(server.HandlerConfig{
		Tagging: svc,
		Auth:    authService,
	})

	srv, err := server.NewServer(server.ServerConfig{
		Addr:    addr,
		Handler: handler,
	})
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Listening on port %d\n", srv.Port())
	log.Info(log.CatHTTP, "server started", "port", srv.Port())

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		log.Info(log.CatHTTP, "shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
