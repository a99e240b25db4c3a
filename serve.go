package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/luispater/feeOptOut/internal/api"
	"github.com/luispater/feeOptOut/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command: the page agent behind an HTTP API.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the page agent and expose it over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.ApiPort = port
			}

			pa, err := startPageAgent(cfg)
			if err != nil {
				return err
			}
			defer pa.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			pa.background(ctx, cfg.Portal.AuthFile)

			apiServer := api.NewServer(&api.ServerConfig{
				Port:            cfg.ApiPort,
				Debug:           cfg.Debug,
				Handler:         pa.handler,
				ResponseTimeout: config.Millis(cfg.Timing.ResponseTimeout),
				SessionTTL:      config.Millis(cfg.Timing.SessionTTL),
			})

			errCh := make(chan error, 1)
			go func() {
				log.Infof("Starting API server on port %s", cfg.ApiPort)
				errCh <- apiServer.Start()
			}()

			select {
			case err = <-errCh:
				return err
			case <-ctx.Done():
				log.Debug("Received shutdown signal. Cleaning up...")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err = apiServer.Stop(shutdownCtx); err != nil {
				log.Debugf("Error stopping API server: %v", err)
			}
			log.Debug("Cleanup completed. Exiting...")
			return nil
		},
	}
	cmd.Flags().StringP("port", "p", "", "Port for the HTTP API (overrides api-port)")
	return cmd
}
