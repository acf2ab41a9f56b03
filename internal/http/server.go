package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"dreamsaver/internal/core"
	"dreamsaver/internal/imaging"
	"dreamsaver/internal/log"
	"dreamsaver/internal/middleware/ratelimit"
	"dreamsaver/internal/middleware/security"
	"dreamsaver/internal/middleware/trace"
)

// Goals is the application surface the handlers drive. services.GoalService
// implements it.
type Goals interface {
	Now() time.Time
	List() []core.Goal
	Get(id string) (core.Goal, bool)
	Summary() core.Summary
	Series(id string) ([]core.SeriesPoint, error)
	CreateGoal(ctx context.Context, draft core.GoalDraft, picture []byte, view imaging.View) (core.Goal, error)
	RecordTransaction(ctx context.Context, id string, kind core.TransactionKind, amount core.Money, note string) (core.Goal, error)
	DeleteGoal(ctx context.Context, id string) error
	Advice(ctx context.Context, id string) (string, error)
}

// Observer receives one call per finished request.
type Observer interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Options configures a Server. Goals is required.
type Options struct {
	Addr           string
	Goals          Goals
	Logger         *log.Logger
	Observer       Observer
	MetricsHandler http.Handler
	// Ready reports whether storage is reachable, for /readyz.
	Ready          func(ctx context.Context) error
	MaxUploadBytes int64
	RateLimit      ratelimit.Config
	TrustedProxies []string
}

type Server struct {
	http.Server
	goals          Goals
	logger         *log.Logger
	observer       Observer
	ready          func(ctx context.Context) error
	maxUploadBytes int64

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

const defaultMaxUploadBytes = 10 << 20

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.WithComponent(log.ComponentSecurity).Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	s := &Server{
		goals:          opts.Goals,
		logger:         logger.WithComponent(log.ComponentHTTP),
		observer:       opts.Observer,
		ready:          opts.Ready,
		maxUploadBytes: opts.MaxUploadBytes,
		detector:       detector,
		rateLimiter:    ratelimit.NewLimiter(opts.RateLimit),
		tracer:         trace.NewMiddleware(logger, detector.ExtractClientIP),
	}

	mux := http.NewServeMux()
	s.handle(mux, "GET /healthz", handleHealth)
	s.handle(mux, "GET /readyz", s.handleReady)
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	s.handle(mux, "GET /api/goals", s.handleListGoals)
	s.handle(mux, "POST /api/goals", s.handleCreateGoal)
	s.handle(mux, "GET /api/goals/{id}", s.handleGetGoal)
	s.handle(mux, "DELETE /api/goals/{id}", s.handleDeleteGoal)
	s.handle(mux, "POST /api/goals/{id}/transactions", s.handleRecordTransaction)
	s.handle(mux, "GET /api/goals/{id}/series", s.handleSeries)
	s.handle(mux, "GET /api/goals/{id}/advice", s.handleAdvice)
	s.handle(mux, "GET /api/goals/{id}/image", security.CacheControl(300)(http.HandlerFunc(s.handleImage)).ServeHTTP)
	s.handle(mux, "GET /api/summary", s.handleSummary)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimited, http.MethodPost, http.MethodDelete)

	var handler http.Handler = mux
	handler = security.CacheControl(0)(handler)
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = detector.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// handle registers h under pattern and reports each request to the observer
// with the pattern as its route label.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		h(rw, r)
		if s.observer != nil {
			s.observer.ObserveHTTP(r.Method, pattern, rw.statusCode, time.Since(start))
		}
	}))
}

// Shutdown stops background helpers and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
	})
	return s.Server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Send(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			writeError(w, http.StatusServiceUnavailable, "storage unavailable", nil)
			return
		}
	}
	NewJSONResponse().Data(map[string]string{"status": "ready"}).Send(w)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later", nil)
}

// RateLimitMetrics exposes limiter state for gauges.
func (s *Server) RateLimitMetrics() ratelimit.Metrics { return s.rateLimiter.GetMetrics() }
