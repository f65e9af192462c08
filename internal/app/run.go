package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"evolution-gateway/internal/common/logging"
	"evolution-gateway/internal/config"
	"evolution-gateway/internal/handlers"
	"evolution-gateway/internal/server"
)

// Run is the main entry point: load configuration, wire the application and
// serve until interrupted.
func Run() error {
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	h := handlers.New(app.Dispatcher, app.Provider, app.Auth, app.Sink, cfg.AdminAPIKey, nil)

	router := mux.NewRouter()
	SetupRoutes(router, h, app.Auth, app.Governor)

	srv := server.New(router, cfg.Port)
	errCh := srv.Start()

	logging.Info("Gateway started",
		logging.String("port", cfg.Port),
		logging.String("provider_url", cfg.EvolutionURL),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logging.Error("Server failed", err)
		return err
	case sig := <-quit:
		logging.Info("Shutting down", logging.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return nil
}
