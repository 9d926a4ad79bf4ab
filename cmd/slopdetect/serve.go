package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kikiluvv/slopdetect/internal/api"
	"github.com/kikiluvv/slopdetect/internal/config"
	"github.com/kikiluvv/slopdetect/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		logger := logging.WithComponent("server")
		if servePort != "" {
			cfg.Server.Port = servePort
		}

		pipe, err := buildPipeline(cmd.Context(), cfg, needAll)
		if err != nil {
			return err
		}
		defer func() {
			if err := pipe.Close(); err != nil {
				logger.Warn().Err(err).Msg("error releasing resources")
			}
		}()

		srv := api.NewServer(log.Logger, pipe, api.Options{
			BodyLimitMB:  cfg.Server.BodyLimitMB,
			AllowOrigins: cfg.Server.AllowOrigins,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Listen(":" + cfg.Server.Port)
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-errCh:
			return fmt.Errorf("server stopped: %w", err)
		case <-ctx.Done():
		}

		grace := time.Duration(cfg.Server.ShutdownGrace) * time.Second
		if err := srv.Shutdown(grace); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info().Msg("server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (overrides config)")
}
