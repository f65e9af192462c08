// Package app wires the gateway together: configuration, auth, the provider
// client, the event sink, the dispatcher and the rate governor.
package app

import (
	"strconv"
	"time"

	"evolution-gateway/internal/auth"
	"evolution-gateway/internal/common/logging"
	"evolution-gateway/internal/config"
	"evolution-gateway/internal/dispatch"
	"evolution-gateway/internal/provider"
	"evolution-gateway/internal/ratelimit"
	"evolution-gateway/internal/sink"
)

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Auth       *auth.Service
	Provider   *provider.Client
	Sink       sink.Sink
	Dispatcher *dispatch.Dispatcher
	Governor   *ratelimit.Governor
	Logger     logging.Logger
}

// New creates the application with all dependencies initialized in order.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	authService, err := auth.New(cfg.JWTSecret, cfg.JWTExpiry, nil)
	if err != nil {
		return nil, err
	}
	app.Auth = authService

	providerClient, err := provider.NewClient(&provider.Config{
		BaseURL:           cfg.EvolutionURL,
		APIKey:            cfg.EvolutionAPIKey,
		Timeout:           cfg.EvolutionTimeout,
		RequestsPerSecond: cfg.EvolutionRPS,
	}, nil)
	if err != nil {
		return nil, err
	}
	app.Provider = providerClient

	if err := app.initializeSink(); err != nil {
		return nil, err
	}
	app.Dispatcher = dispatch.NewDispatcher(app.Sink, nil)

	if err := app.initializeGovernor(); err != nil {
		return nil, err
	}

	return app, nil
}

// initializeSink connects the Redis sink when an address is configured and
// falls back to the log-only sink otherwise.
func (app *App) initializeSink() error {
	if app.Config.RedisAddress == "" {
		app.Logger.Info("No Redis address configured, using log sink")
		app.Sink = sink.NewLogSink(nil)
		return nil
	}

	db, _ := strconv.Atoi(app.Config.RedisDB)
	redisSink, err := sink.NewRedisSink(&sink.RedisConfig{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       db,
	}, nil)
	if err != nil {
		return err
	}

	app.Logger.Info("Redis sink connected",
		logging.String("address", app.Config.RedisAddress),
	)
	app.Sink = redisSink
	return nil
}

// initializeGovernor builds the request governor from the configured per-class
// budgets. Window and block durations are fixed per class.
func (app *App) initializeGovernor() error {
	if !app.Config.RateLimitEnabled {
		app.Logger.Warn("Rate limiting is disabled")
		return nil
	}

	general, webhook, message := app.Config.RateLimitPoints()
	budgets := map[ratelimit.Class]ratelimit.Budget{
		ratelimit.ClassGeneral: {Points: general, Window: time.Minute, Block: 15 * time.Minute},
		ratelimit.ClassWebhook: {Points: webhook, Window: time.Minute, Block: 5 * time.Minute},
		ratelimit.ClassMessage: {Points: message, Window: time.Minute, Block: 10 * time.Minute},
	}

	governor, err := ratelimit.NewGovernor(budgets)
	if err != nil {
		return err
	}
	app.Governor = governor
	return nil
}

// Cleanup releases held resources.
func (app *App) Cleanup() {
	if redisSink, ok := app.Sink.(*sink.RedisSink); ok {
		redisSink.Close()
	}
}
