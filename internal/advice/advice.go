// Package advice asks a text generator for a short motivational note about
// a savings goal. Callers always get a displayable string back: missing
// credentials, failures and empty answers map to fixed fallback messages.
package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"dreamsaver/internal/cache"
	"dreamsaver/internal/core"
	"dreamsaver/internal/log"
)

const (
	MissingKeyMessage = "API Key is missing. Please configure your environment to receive AI advice."
	EmptyMessage      = "Tetap semangat menabung! Kamu pasti bisa mencapai tujuanmu."
	FailureMessage    = "Maaf, asisten tabungan sedang istirahat. Coba lagi nanti!"
)

// Outcomes reported to the Recorder.
const (
	OutcomeOK         = "ok"
	OutcomeCached     = "cached"
	OutcomeMissingKey = "missing_key"
	OutcomeEmpty      = "empty"
	OutcomeFailed     = "failed"
	OutcomeOpen       = "circuit_open"
)

// Generator turns a prompt into text. The Gemini client implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Recorder observes advice outcomes, e.g. for metrics.
type Recorder interface {
	ObserveAdvice(outcome string, d time.Duration)
}

// Request is the numeric state of a goal sent to the generator.
type Request struct {
	Title         string
	TargetAmount  core.Money
	SavedAmount   core.Money
	TargetDate    core.Date
	DaysRemaining int
}

// RequestFor snapshots g at now.
func RequestFor(g core.Goal, now time.Time) Request {
	return Request{
		Title:         g.Title,
		TargetAmount:  g.TargetAmount,
		SavedAmount:   g.SavedAmount,
		TargetDate:    g.TargetDate,
		DaysRemaining: core.DaysRemaining(g, now),
	}
}

func (r Request) key() string {
	return fmt.Sprintf("%s|%d|%d|%s|%d", r.Title, r.TargetAmount.Cents, r.SavedAmount.Cents, r.TargetDate, r.DaysRemaining)
}

// Options configures a Service.
type Options struct {
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
	Logger    *log.Logger
	Recorder  Recorder
	// Breaker trips after this many consecutive failures. Zero means 3.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open. Zero means 30s.
	OpenTimeout time.Duration
}

// Service fronts a Generator with a cache, a circuit breaker and
// single-flight deduplication per goal state.
type Service struct {
	gen      Generator
	cache    *cache.LRUCache[string]
	group    singleflight.Group
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	logger   *log.Logger
	recorder Recorder
}

type result struct {
	text    string
	outcome string
}

// New builds a Service. gen may be nil when no API key is configured.
func New(gen Generator, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 3
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	logger := opts.Logger.WithComponent(log.ComponentAdvice)

	s := &Service{
		gen:      gen,
		cache:    cache.NewLRUCache[string](opts.CacheSize, opts.CacheTTL),
		timeout:  opts.Timeout,
		logger:   logger,
		recorder: opts.Recorder,
	}
	maxFailures := opts.MaxFailures
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "advice",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return s
}

// Cache exposes the advice cache so it can be registered with a cache.Manager.
func (s *Service) Cache() *cache.LRUCache[string] { return s.cache }

// Advise returns advice text for req. It never fails; every problem maps
// to one of the fallback messages. Only real answers are cached.
func (s *Service) Advise(ctx context.Context, req Request) string {
	start := time.Now()
	if s.gen == nil {
		s.observe(OutcomeMissingKey, start)
		return MissingKeyMessage
	}

	key := req.key()
	if text, ok := s.cache.Get(key); ok {
		s.observe(OutcomeCached, start)
		return text
	}

	// The shared call must not die with whichever caller happened to start it.
	base := context.WithoutCancel(ctx)
	v, _, _ := s.group.Do(key, func() (any, error) {
		return s.generate(base, req, key), nil
	})
	res := v.(result)
	s.observe(res.outcome, start)
	return res.text
}

func (s *Service) generate(ctx context.Context, req Request, key string) result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.breaker.Execute(func() (any, error) {
		text, err := s.gen.Generate(ctx, BuildPrompt(req))
		return text, err
	})
	if err != nil {
		outcome := OutcomeFailed
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = OutcomeOpen
		}
		s.logger.WarnContext(ctx, "Advice request failed", log.FieldOperation, log.OpAdvise, log.FieldError, err.Error(), log.FieldGoalTitle, req.Title)
		return result{text: FailureMessage, outcome: outcome}
	}

	text := strings.TrimSpace(out.(string))
	if text == "" {
		return result{text: EmptyMessage, outcome: OutcomeEmpty}
	}
	s.cache.Set(key, text)
	return result{text: text, outcome: OutcomeOK}
}

func (s *Service) observe(outcome string, start time.Time) {
	if s.recorder != nil {
		s.recorder.ObserveAdvice(outcome, time.Since(start))
	}
}
