package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/gateway"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.ListenAddr = addr
		}
		logger := setupLogger(cfg.Log)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger.Info("starting gateway", slog.String("service", "stm-ai"), version.Attr())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		exec, err := store.New(cfg.DB.Config, logger)
		if err != nil {
			return err
		}
		defer exec.Close()

		if cfg.DB.Migrate {
			if _, err := exec.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}

		svc, err := buildServices(cfg, exec, logger)
		if err != nil {
			return err
		}
		srv := gateway.NewServer(svc, cfg.Server.WSPath, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.Server.ListenAddr)
		})
		g.Go(func() error {
			// the executor connects lazily; report a bad database early
			if _, err := exec.DB(gctx); err != nil && gctx.Err() == nil {
				logger.Warn("database not reachable yet", slog.String("driver", cfg.DB.Driver), slog.Any("error", err))
			}
			return nil
		})
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("gateway stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides STM_LISTEN_ADDR)")
}
