package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/research"
	"github.com/KathenZK/research-agent/internal/scheduler"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// agent is the part of research.Service the HTTP endpoints need
type agent interface {
	Run(ctx context.Context) (*research.RunResult, error)
	GetMetrics() string
}

// serve runs the scheduler and HTTP endpoints until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config, service *research.Service) error {
	schedulerService := scheduler.NewService(cfg, service)
	if err := schedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer schedulerService.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      newRouter(ctx, service),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
	return nil
}

// newRouter wires the endpoints. Triggered runs inherit baseCtx so they stop
// with the daemon rather than with the request.
func newRouter(baseCtx context.Context, a agent) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	router.HandleFunc("/metrics", metricsHandler(a)).Methods(http.MethodGet)
	router.HandleFunc("/trigger", triggerHandler(baseCtx, a)).Methods(http.MethodPost)
	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func metricsHandler(a agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(a.GetMetrics()))
	}
}

// triggerHandler starts a run in the background. A run that fails within
// triggerGrace is reported directly: 409 when another run holds the lock,
// 500 otherwise.
func triggerHandler(baseCtx context.Context, a agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		early := make(chan error, 1)

		go func() {
			_, err := a.Run(baseCtx)
			if err != nil && !errors.Is(err, research.ErrRunInProgress) {
				logrus.Errorf("Manual research trigger failed: %v", err)
			}
			early <- err
		}()

		select {
		case err := <-early:
			switch {
			case errors.Is(err, research.ErrRunInProgress):
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			case err != nil:
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
		case <-time.After(triggerGrace):
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Research run triggered"})
	}
}

// triggerGrace is how long the trigger waits for an immediate failure
// before answering 202
var triggerGrace = 100 * time.Millisecond

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Debugf("Failed to write response: %v", err)
	}
}
