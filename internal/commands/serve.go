package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/cashflow/internal/api"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				if addr == "" {
					addr = ws.cfg.Server.Addr
				}
				if addr == "" {
					addr = ":8080"
				}

				srv := &http.Server{
					Addr:         addr,
					Handler:      api.NewRouter(ws.ledger, ws.metrics, ws.logger),
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 30 * time.Second,
					IdleTimeout:  60 * time.Second,
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				errCh := make(chan error, 1)
				go func() {
					ws.logger.Info("server starting", zap.String("addr", addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
					close(errCh)
				}()

				select {
				case err := <-errCh:
					if err != nil {
						return fmt.Errorf("server error: %w", err)
					}
					return nil
				case <-ctx.Done():
				}

				ws.logger.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("server shutdown: %w", err)
				}
				ws.logger.Info("server stopped")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from cashflow.yaml or CASHFLOW_ADDR)")

	return cmd
}
