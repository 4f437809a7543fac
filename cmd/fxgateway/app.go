package main

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/avafx/internal/api"
	"github.com/vyrodovalexey/avafx/internal/audit"
	"github.com/vyrodovalexey/avafx/internal/config"
	"github.com/vyrodovalexey/avafx/internal/fx"
	"github.com/vyrodovalexey/avafx/internal/health"
	"github.com/vyrodovalexey/avafx/internal/observability"
	"github.com/vyrodovalexey/avafx/internal/vault"
)

const (
	metricsNamespace = "fxgateway"

	// certificateWarnWindow degrades health ahead of client certificate expiry.
	certificateWarnWindow = 30 * 24 * time.Hour
)

// application holds all application components.
type application struct {
	config   *config.FXGatewayConfig
	logger   observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	auditor  audit.Recorder
	store    *audit.PostgresStore
	secrets  vault.SecretReader
	gateway  *fx.AtomicGateway
	handler  *api.Handler
	checker  *health.Checker
	limiter  *api.RateLimiter
	router   http.Handler
	server   *api.Server
	metricsS *api.Server
}

// newApplication wires every component from cfg. Secrets referenced from
// Vault are resolved in cfg before the gateway is built.
func newApplication(ctx context.Context, cfg *config.FXGatewayConfig, logger observability.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: observability.NewMetrics(metricsNamespace),
	}
	app.metrics.SetBuildInfo(version, gitCommit, buildTime)

	secrets, err := newSecretReader(cfg.Spec.Vault, logger)
	if err != nil {
		return nil, err
	}
	app.secrets = secrets
	if err := vault.Resolve(ctx, cfg, app.secrets); err != nil {
		return nil, fmt.Errorf("resolve secrets: %w", err)
	}

	obs := cfg.Spec.Observability
	app.tracer, err = observability.NewTracer(ctx, observability.TracerConfig{
		Enabled:        obs.Tracing.Enabled,
		ServiceName:    obs.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   obs.Tracing.OTLPEndpoint,
		SamplingRate:   obs.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}

	if err := app.initAudit(ctx); err != nil {
		return nil, err
	}

	gw, err := app.buildGateway(cfg)
	if err != nil {
		return nil, err
	}
	app.gateway = fx.NewAtomicGateway(gw)

	app.initHealth()
	app.initHTTP()

	return app, nil
}

func newSecretReader(cfg *config.VaultConfig, logger observability.Logger) (vault.SecretReader, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}
	client, err := vault.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize vault client: %w", err)
	}
	return client, nil
}

// initAudit always logs audit events and, when a database is configured,
// also persists them through a bounded queue.
func (app *application) initAudit(ctx context.Context) error {
	auditMetrics := audit.NewMetrics(metricsNamespace, app.metrics.Registry())
	recorder := audit.NewLogRecorder(app.logger, audit.WithMetrics(auditMetrics))
	app.auditor = recorder

	cfg := app.config.Spec.Audit
	if !cfg.IsEnabled() || cfg.DatabaseURL == "" {
		return nil
	}

	if cfg.AutoMigrate {
		if err := audit.Migrate(cfg.DatabaseURL, app.logger); err != nil {
			return err
		}
	}

	store, err := audit.NewPostgresStore(ctx, cfg.DatabaseURL,
		audit.WithWriteTimeout(cfg.WriteTimeout.Duration()),
		audit.WithStoreLogger(app.logger),
	)
	if err != nil {
		return err
	}
	app.store = store
	app.auditor = audit.Multi(recorder, audit.NewAsyncRecorder(store, cfg.BufferSize,
		audit.WithAsyncLogger(app.logger),
		audit.WithDropMetrics(auditMetrics),
	))

	app.logger.Info("audit store connected")
	return nil
}

func (app *application) buildGateway(cfg *config.FXGatewayConfig) (*fx.Gateway, error) {
	gw, err := fx.New(cfg.Spec.Upstream,
		fx.WithLogger(app.logger),
		fx.WithMetrics(app.metrics),
		fx.WithAuditor(app.auditor),
		fx.WithTracer(app.tracer.Tracer()),
	)
	if err != nil {
		return nil, fmt.Errorf("build fx gateway: %w", err)
	}
	return gw, nil
}

func (app *application) initHealth() {
	app.checker = health.NewChecker(version, app.logger,
		health.WithMetrics(health.NewMetrics(metricsNamespace, app.metrics.Registry())),
	)

	app.checker.RegisterCheck("circuit_breaker", health.BreakerCheck(func() string {
		return app.gateway.Load().BreakerState()
	}))
	app.checker.RegisterCheck("client_certificate", health.CertificateCheck(func() *x509.Certificate {
		return app.gateway.Load().Identity().Leaf()
	}, certificateWarnWindow, nil))
	if app.store != nil {
		app.checker.RegisterCheck("audit_db", health.PingCheck(app.store.Ping, false))
	}
}

func (app *application) initHTTP() {
	spec := app.config.Spec

	api.SetMode(spec.Server.Mode)
	app.handler = api.NewHandler(app.gateway, spec.Currencies, app.logger)
	app.limiter = api.NewRateLimiterFromConfig(spec.RateLimit)

	opts := []api.RouterOption{
		api.WithRouterLogger(app.logger),
		api.WithRouterMetrics(app.metrics),
		api.WithHealth(app.checker.Handler()),
	}
	if spec.Observability.Tracing.Enabled {
		opts = append(opts, api.WithRouterTracer(app.tracer.Tracer()))
	}
	if app.limiter != nil {
		opts = append(opts, api.WithRateLimiter(app.limiter))
	}

	app.router = api.NewRouter(app.handler, opts...)
	app.server = api.NewServer(spec.Server, app.router, app.logger)

	if m := spec.Observability.Metrics; m.Enabled {
		mux := http.NewServeMux()
		mux.Handle(m.Path, app.metrics.Handler())
		metricsCfg := spec.Server
		metricsCfg.Address = m.Address
		app.metricsS = api.NewServer(metricsCfg, mux, app.logger.With(observability.String("server", "metrics")))
	}
}

// run serves until ctx is cancelled, then releases every component.
func (app *application) run(ctx context.Context, configPath string) error {
	watcher, err := app.startWatcher(ctx, configPath)
	if err != nil {
		app.logger.Warn("configuration hot reload disabled", observability.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})
	if app.metricsS != nil {
		g.Go(func() error {
			return app.metricsS.Run(gctx)
		})
	}

	runErr := g.Wait()
	app.logger.Info("shutting down")

	if watcher != nil {
		_ = watcher.Stop()
	}
	return errors.Join(runErr, app.close(context.WithoutCancel(ctx)))
}

// close releases components in reverse order of construction.
func (app *application) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, app.config.Spec.Server.ShutdownTimeout.Duration())
	defer cancel()

	app.limiter.Stop()
	if gw := app.gateway.Load(); gw != nil {
		gw.Close()
	}

	var errs []error
	if err := app.auditor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close audit: %w", err))
	}
	if err := app.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}
	return errors.Join(errs...)
}
