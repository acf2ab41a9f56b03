package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dreamsaver/internal/amqp"
	"dreamsaver/internal/cli"
	"dreamsaver/internal/config"
	"dreamsaver/internal/log"
	"dreamsaver/internal/metrics"
	"dreamsaver/internal/sheets"
	gsheet "dreamsaver/internal/sheets/google"
	"dreamsaver/internal/sheets/memory"
	"dreamsaver/internal/worker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type workerOptions struct {
	envFiles   []string
	dryRun     bool
	healthAddr string
	statsEvery time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &workerOptions{}
	cmd := &cobra.Command{
		Use:          "dreamsaver-worker",
		Short:        "Mirror ledger events from AMQP into Google Sheets",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.LoadEnvFile(opts.envFiles...); err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	f.BoolVar(&opts.dryRun, "dry-run", false, "keep rows in memory and log them instead of writing to Google Sheets")
	f.StringVar(&opts.healthAddr, "health-addr", "127.0.0.1:8082", "listen address for /healthz and /metrics, empty to disable")
	f.DurationVar(&opts.statsEvery, "stats-interval", 5*time.Minute, "how often to log mirror counters")
	return cmd
}

// checkConfig validates what this run needs. A dry run needs no spreadsheet.
func checkConfig(cfg *config.Config, dryRun bool) error {
	if dryRun {
		if cfg.AMQPURL == "" {
			return errors.New("AMQP_URL is required for the worker")
		}
		return nil
	}
	return cfg.ValidateWorker()
}

func run(ctx context.Context, opts *workerOptions) error {
	logger := cli.SetupLogger("info")
	logger.Info("Starting dreamsaver-worker")

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return err
	}
	logger = cli.SetupLogger(cfg.LogLevel)
	if err := checkConfig(cfg, opts.dryRun); err != nil {
		logger.Error("Worker configuration validation failed", log.FieldError, err.Error())
		return err
	}

	writer, err := newWriter(ctx, cfg, opts.dryRun, logger)
	if err != nil {
		return err
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		return err
	}
	defer amqpClient.Close()

	ledger := worker.NewLedgerWorker(amqpClient, writer, logger)

	collector := metrics.NewCollector("dreamsaver_worker")
	for name, read := range map[string]func(worker.Stats) int64{
		"rows_mirrored": func(s worker.Stats) int64 { return s.Mirrored },
		"rows_failed":   func(s worker.Stats) int64 { return s.Failed },
	} {
		if err := collector.RegisterGaugeFunc(name, "Ledger events handled since start.", func() float64 {
			return float64(read(ledger.Stats()))
		}); err != nil {
			return fmt.Errorf("register %s gauge: %w", name, err)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := ledger.Stop(ctx); err != nil {
			logger.Error("Failed to stop ledger worker", log.FieldError, err.Error())
		}
	})

	if err := ledger.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-ledger.Done():
			return ledger.Err()
		case <-gctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return ledger.Stop(stopCtx)
		}
	})
	if opts.healthAddr != "" {
		srv := healthServer(opts.healthAddr, ledger, collector)
		g.Go(func() error {
			logger.Info("Health endpoint listening", "addr", opts.healthAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	if opts.statsEvery > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.statsEvery)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s := ledger.Stats()
					logger.Info("Ledger mirror stats", "mirrored", s.Mirrored, "failed", s.Failed)
				}
			}
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		<-done
	}
	if err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		return err
	}
	logger.Info("Worker shutdown complete")
	return nil
}

func newWriter(ctx context.Context, cfg *config.Config, dryRun bool, logger *log.Logger) (sheets.LedgerWriter, error) {
	if dryRun {
		logger.Warn("Dry run: ledger rows are kept in memory only")
		return loggingWriter{Store: memory.New(), logger: logger.WithComponent(log.ComponentSheets)}, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		SheetName:     cfg.GoogleSheetName,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

// loggingWriter keeps rows in memory and logs each one.
type loggingWriter struct {
	*memory.Store
	logger *log.Logger
}

func (w loggingWriter) AppendRow(ctx context.Context, r sheets.LedgerRow) (string, error) {
	ref, err := w.Store.AppendRow(ctx, r)
	if err == nil {
		w.logger.InfoContext(ctx, "Ledger row (dry run)",
			log.FieldSheetsRef, ref,
			log.FieldEventType, r.Event,
			log.FieldGoalID, r.GoalID,
			log.FieldAmountCents, r.Amount.Cents)
	}
	return ref, err
}

func healthServer(addr string, ledger *worker.LedgerWorker, collector *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ledger.IsRunning() {
			http.Error(w, "consumer stopped", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", collector.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
