package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tbraun92/boardcast/internal/app"
	"github.com/tbraun92/boardcast/internal/config"
	"github.com/tbraun92/boardcast/internal/domain"
	"github.com/tbraun92/boardcast/internal/hub"
	"github.com/tbraun92/boardcast/internal/platform/logging"
	"github.com/tbraun92/boardcast/internal/server"
	"github.com/tbraun92/boardcast/internal/store"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func seedItems(itemStore *store.ItemStore) {
	itemStore.Seed([]domain.Item{
		{ID: 1, Title: "Set up CI pipeline", Description: "Build and test on every push", State: domain.StateActive},
		{ID: 2, Title: "Fix login redirect loop", Description: "Users bounce between /login and /", State: domain.StateNew},
		{ID: 3, Title: "Write onboarding guide", Description: "First-week checklist for new hires", State: domain.StateResolved},
	})
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		h.Stop()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	itemStore := store.NewItemStore(clock)
	if cfg.SeedDemoData {
		seedItems(itemStore)
	}

	h := hub.New(clock, cfg.MaxGroupMembers)
	appSvc := app.NewService(itemStore, h)
	srv := server.NewServer(cfg, appSvc, h)

	done := runGracefulShutdown(srv, h)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
