package cli

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

	"churn-insights/internal/httpapi"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root.configPath, os.Stdout)
			if err != nil {
				return err
			}
			if port > 0 {
				a.cfg.HTTPPort = port
			}
			return serve(cmdContext(cmd), a, newServer(a))
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Override the configured HTTP port")
	return cmd
}

func newServer(a *app) *http.Server {
	router := httpapi.NewRouter(httpapi.NewHandler(a.service, a.logger))
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serve runs srv until the context ends or SIGINT/SIGTERM arrives, then
// shuts down with a 10s grace period.
func serve(ctx context.Context, a *app, srv *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)

	go func() {
		a.logger.InfoContext(ctx, "http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.logger.ErrorContext(ctx, "http server failure", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.WarnContext(shutdownCtx, "http shutdown", "error", err)
	}
	a.logger.InfoContext(shutdownCtx, "http server stopped")
	return runErr
}
