package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

// Status represents a health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// DefaultCheckTimeout bounds a whole report.
const DefaultCheckTimeout = 5 * time.Second

// Check is the result of a single check.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc runs one check.
type CheckFunc func(ctx context.Context) Check

// Report is the aggregated health of the service.
type Report struct {
	Status    Status           `json:"status"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Checker runs registered checks and aggregates them into a Report.
type Checker struct {
	version   string
	startTime time.Time
	timeout   time.Duration
	logger    observability.Logger
	metrics   *Metrics
	now       func() time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// Option configures a Checker.
type Option func(*Checker)

// WithMetrics exports check results as gauges.
func WithMetrics(m *Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// WithTimeout sets the deadline applied to a report.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// NewChecker creates a new health checker.
func NewChecker(version string, logger observability.Logger, opts ...Option) *Checker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	c := &Checker{
		version: version,
		timeout: DefaultCheckTimeout,
		logger:  logger,
		now:     time.Now,
		checks:  make(map[string]CheckFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startTime = c.now()
	return c
}

// RegisterCheck registers a check, replacing any check with the same name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes a check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Report runs every registered check concurrently. Any unhealthy check
// makes the report unhealthy; otherwise any degraded check degrades it.
func (c *Checker) Report(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	funcs := make([]CheckFunc, len(names))
	for i, name := range names {
		funcs[i] = c.checks[name]
	}
	c.mu.RUnlock()

	results := make([]Check, len(funcs))
	var wg sync.WaitGroup
	for i, fn := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = fn(ctx)
		}()
	}
	wg.Wait()

	now := c.now()
	report := Report{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    now.Sub(c.startTime).Round(time.Second).String(),
		Timestamp: now.UTC(),
		Checks:    make(map[string]Check, len(results)),
	}

	for i, name := range names {
		check := results[i]
		report.Checks[name] = check
		c.metrics.setCheck(name, check.Status)

		switch check.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
			c.logger.Warn("health check failed",
				observability.String("check", name),
				observability.String("message", check.Message),
			)
		case StatusDegraded:
			if report.Status != StatusUnhealthy {
				report.Status = StatusDegraded
			}
		}
	}
	c.metrics.setCheck("overall", report.Status)

	return report
}
