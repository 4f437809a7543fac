package main

import (
	"context"

	"github.com/vyrodovalexey/avafx/internal/config"
	"github.com/vyrodovalexey/avafx/internal/observability"
	"github.com/vyrodovalexey/avafx/internal/vault"
)

// startWatcher watches the configuration and certificate files and swaps
// in a freshly built gateway on every valid change.
func (app *application) startWatcher(ctx context.Context, configPath string) (*config.Watcher, error) {
	watcher, err := config.NewWatcher(configPath,
		func(cfg *config.FXGatewayConfig) { app.reload(ctx, cfg) },
		config.WithLogger(app.logger),
		config.WithErrorCallback(func(error) { app.metrics.RecordConfigReload(false) }),
	)
	if err != nil {
		return nil, err
	}

	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}
	return watcher, nil
}

// reload builds a gateway from cfg and swaps it in. On failure the current
// gateway keeps serving. Server, audit and Vault settings only apply on
// restart.
func (app *application) reload(ctx context.Context, cfg *config.FXGatewayConfig) {
	if err := vault.Resolve(ctx, cfg, app.secrets); err != nil {
		app.reloadFailed("resolve secrets", err)
		return
	}

	gw, err := app.buildGateway(cfg)
	if err != nil {
		app.reloadFailed("build gateway", err)
		return
	}

	if previous := app.gateway.Swap(gw); previous != nil {
		previous.Close()
	}
	app.handler.SetCurrencies(cfg.Spec.Currencies)
	app.metrics.RecordConfigReload(true)

	app.logger.Info("fx gateway reloaded",
		observability.String("name", cfg.Metadata.Name),
		observability.String("base_url", cfg.Spec.Upstream.BaseURL),
		observability.String("client_identity", gw.Identity().String()),
	)
}

func (app *application) reloadFailed(stage string, err error) {
	app.metrics.RecordConfigReload(false)
	app.logger.Error("fx gateway reload failed, keeping current gateway",
		observability.String("stage", stage),
		observability.Error(err),
	)
}
