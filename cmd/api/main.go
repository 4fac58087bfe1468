package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"patient-portal/internal/config"
	"patient-portal/internal/platform/logger"
	"patient-portal/internal/router"
)

// @title        Patient Portal API
// @version      1.0
// @description  Agenda, consentimientos y divulgación de historia clínica.
// @BasePath     /
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewFromEnv()

	r := router.NewRouter(router.Options{
		Config: cfg,
		Log:    log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", map[string]any{"error": err.Error()})
	}
	log.Info("server stopped", nil)
}
