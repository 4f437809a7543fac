package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

// DefaultMaxBodySize caps inbound request bodies.
const DefaultMaxBodySize = 1 << 20

// RouterOption configures NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	logger      observability.Logger
	metrics     Metrics
	tracer      trace.Tracer
	limiter     *RateLimiter
	health      gin.HandlerFunc
	maxBodySize int64
}

// WithRouterLogger sets the access and panic logger.
func WithRouterLogger(logger observability.Logger) RouterOption {
	return func(o *routerOptions) {
		o.logger = logger
	}
}

// WithRouterMetrics records request metrics.
func WithRouterMetrics(metrics Metrics) RouterOption {
	return func(o *routerOptions) {
		o.metrics = metrics
	}
}

// WithRouterTracer starts a span per request.
func WithRouterTracer(tracer trace.Tracer) RouterOption {
	return func(o *routerOptions) {
		o.tracer = tracer
	}
}

// WithRateLimiter throttles the /api/visa routes.
func WithRateLimiter(rl *RateLimiter) RouterOption {
	return func(o *routerOptions) {
		o.limiter = rl
	}
}

// WithHealth serves GET /api/health.
func WithHealth(handler gin.HandlerFunc) RouterOption {
	return func(o *routerOptions) {
		o.health = handler
	}
}

// WithMaxBodySize overrides DefaultMaxBodySize.
func WithMaxBodySize(limit int64) RouterOption {
	return func(o *routerOptions) {
		if limit > 0 {
			o.maxBodySize = limit
		}
	}
}

// NewRouter builds the gin engine with every API route.
func NewRouter(h *Handler, opts ...RouterOption) *gin.Engine {
	o := &routerOptions{
		logger:      observability.NopLogger(),
		metrics:     noopMetrics{},
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(o)
	}

	engine := gin.New()
	engine.Use(
		RequestID(),
		Recovery(o.logger),
		Logging(o.logger, "/api/health"),
		Instrument(o.metrics),
	)
	if o.tracer != nil {
		engine.Use(Tracing(o.tracer))
	}
	engine.Use(BodyLimit(o.maxBodySize))

	api := engine.Group("/api")
	api.GET("", h.Root)
	if o.health != nil {
		api.GET("/health", o.health)
	}

	visa := api.Group("/visa")
	if o.limiter != nil {
		visa.Use(RateLimit(o.limiter, o.metrics, o.logger))
	}
	visa.GET("", h.Visa)
	visa.GET("/hello-world", h.HelloWorld)
	visa.POST("/fx-rate", h.FXRate)
	visa.GET("/currencies", h.Currencies)

	return engine
}
