package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"dreamsaver/internal/cli"
	apphttp "dreamsaver/internal/http"
	"dreamsaver/internal/log"
	"dreamsaver/internal/middleware/ratelimit"
)

func newServeCmd() *cobra.Command {
	var (
		addr           string
		trustedProxies []string
		writesPerMin   int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.SetupLogger("info")
			cfg, err := cli.LoadAndValidateConfig(logger)
			if err != nil {
				return err
			}
			logger = cli.SetupLogger(cfg.LogLevel)
			if addr == "" {
				addr = cfg.Addr()
			}

			app, err := cli.NewApp(cmd.Context(), cfg, logger, cli.AppOptions{})
			if err != nil {
				return err
			}
			app.Caches.StartCleanup(cli.CacheCleanupInterval)

			srv := apphttp.NewServer(apphttp.Options{
				Addr:           addr,
				Goals:          app.Goals,
				Logger:         logger,
				Observer:       app.Metrics,
				MetricsHandler: app.Metrics.Handler(),
				Ready:          app.Backend.Ping,
				MaxUploadBytes: cfg.ImageMaxUploadBytes,
				RateLimit:      ratelimit.Config{RequestsPerWindow: writesPerMin, Window: time.Minute},
				TrustedProxies: trustedProxies,
			})
			if err := app.Metrics.RegisterGaugeFunc("rate_limited_clients", "Clients tracked by the write rate limiter.", func() float64 {
				return float64(srv.RateLimitMetrics().ClientCount)
			}); err != nil {
				logger.Warn("Failed to register rate limit gauge", log.FieldError, err.Error())
			}

			ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
				if err := srv.Shutdown(ctx); err != nil {
					logger.Error("Server shutdown error", log.FieldError, err.Error())
				}
			})

			logger.Info("Starting dreamsaver server",
				"addr", addr,
				"backend", cfg.DataBackend,
				"advice", cfg.AdviceEnabled(),
				"ledger_events", cfg.AMQPURL != "")
			serveErr := srv.ListenAndServe()
			if errors.Is(serveErr, http.ErrServerClosed) {
				serveErr = nil
				<-ctx.Done()
				<-done
			}

			if err := app.Close(); err != nil {
				logger.Error("Failed to release resources", log.FieldError, err.Error())
			}
			if serveErr != nil {
				logger.Error("Server error", log.FieldError, serveErr.Error(), "addr", addr)
				return serveErr
			}
			logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default BIND_ADDR:PORT)")
	cmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxy", nil, "extra CIDR whose X-Forwarded-For is trusted")
	cmd.Flags().IntVar(&writesPerMin, "writes-per-minute", 60, "write requests allowed per client per minute")
	return cmd
}
