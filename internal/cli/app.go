package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreamsaver/internal/advice"
	"dreamsaver/internal/advice/gemini"
	"dreamsaver/internal/amqp"
	"dreamsaver/internal/backend"
	"dreamsaver/internal/cache"
	"dreamsaver/internal/config"
	"dreamsaver/internal/imaging"
	"dreamsaver/internal/log"
	"dreamsaver/internal/metrics"
	"dreamsaver/internal/services"
)

// CacheCleanupInterval is how often the server sweeps expired cache entries.
const CacheCleanupInterval = 5 * time.Minute

// App is the fully wired goal service with everything it depends on.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Backend *backend.BackendResult
	Goals   *services.GoalService
	Metrics *metrics.Collector
	Advice  *advice.Service
	Caches  *cache.Manager
}

// AppOptions swaps collaborators, mainly for tests.
type AppOptions struct {
	// Generator replaces the Gemini client.
	Generator advice.Generator
	// Publisher replaces the AMQP client.
	Publisher services.Publisher
}

// NewApp opens storage, builds the collaborators the configuration asks for
// and hydrates the goals. Optional collaborators that fail to start are
// logged and left out.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, opts AppOptions) (*App, error) {
	res, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	collector := metrics.NewCollector("dreamsaver")

	gen := opts.Generator
	if gen == nil && cfg.AdviceEnabled() {
		client, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			logger.WithComponent(log.ComponentAdvice).Warn("Advice disabled", log.FieldError, err.Error())
		} else {
			gen = client
		}
	}
	adviceSvc := advice.New(gen, advice.Options{
		Timeout:  cfg.AdviceTimeout,
		CacheTTL: cfg.AdviceCacheTTL,
		Logger:   logger,
		Recorder: collector,
	})

	caches := cache.NewManager(logger)
	caches.Register(adviceSvc.Cache())
	if err := collector.RegisterGaugeFunc("advice_cache_entries", "Advice answers currently cached.", func() float64 {
		return float64(adviceSvc.Cache().Size())
	}); err != nil {
		logger.Warn("Failed to register cache gauge", log.FieldError, err.Error())
	}

	pub := opts.Publisher
	if pub == nil && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// goals still work, the mirror just misses these events
			logger.WithComponent(log.ComponentAMQP).Warn("Ledger events disabled", log.FieldError, err.Error())
		} else {
			pub = client
		}
	}

	engine := imaging.New(imaging.Options{
		OutputSize: cfg.ImageOutputSize,
		Quality:    cfg.ImageJPEGQuality,
		MinScale:   cfg.ImageMinScale,
		MaxScale:   cfg.ImageMaxScale,
	})

	goals := services.NewGoalService(services.Options{
		Store:     res.Backend,
		Key:       cfg.StorageKey,
		Baker:     engine,
		Advisor:   adviceSvc,
		Publisher: pub,
		Recorder:  collector,
		Logger:    logger,
	})
	goals.Hydrate(ctx)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Backend: res,
		Goals:   goals,
		Metrics: collector,
		Advice:  adviceSvc,
		Caches:  caches,
	}, nil
}

// Close releases the publisher, the cache sweeper and storage.
func (a *App) Close() error {
	a.Caches.Stop()
	return errors.Join(a.Goals.Close(), a.Backend.Close())
}
