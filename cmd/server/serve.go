// Copyright 2026 The Workery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/observability/logger"
)

var (
	serveWithWorker   bool
	serveCleanupEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. With the in-memory queue the provisioning worker always
runs in the same process; with NATS it runs here only when --with-worker is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := identity.BootstrapRoot(ctx, a.identity, cfg.Bootstrap); err != nil {
			slog.ErrorContext(ctx, "bootstrap failed", logger.Error(err))
		}

		if serveWithWorker || cfg.Queue.Driver == "memory" {
			unsubscribe, err := a.startWorker(ctx)
			if err != nil {
				return err
			}
			defer unsubscribe()
		}

		handler, stopLimiter := a.handler()
		defer stopLimiter()

		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		server := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), slog.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			slog.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		if serveCleanupEvery > 0 {
			g.Go(func() error {
				ticker := time.NewTicker(serveCleanupEvery)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						if err := a.cleanup(ctx); err != nil {
							slog.ErrorContext(ctx, "periodic cleanup failed", logger.Error(err))
						}
					}
				}
			})
		}

		err = g.Wait()
		slog.Info("server stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "run the provisioning worker in this process")
	serveCmd.Flags().DurationVar(&serveCleanupEvery, "cleanup-interval", time.Hour, "interval between expired session and access code sweeps (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
