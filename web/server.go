// Package web exposes the HTTP surface: webhook intake, health, metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/dess-cd/dess/config"
	"github.com/dess-cd/dess/docker"
	"github.com/dess-cd/dess/webhook"
)

const maxWebhookBody = 1 << 20 // 1 MiB

var webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dess_webhook_events_total",
	Help: "Inbound webhook deliveries by outcome.",
}, []string{"outcome"})

// Server hosts the webhook endpoint alongside health and metrics.
type Server struct {
	config     *config.Config
	dispatcher *webhook.Dispatcher
	runtime    docker.ContainerRuntime
}

func NewServer(cfg *config.Config, dispatcher *webhook.Dispatcher, runtime docker.ContainerRuntime) *Server {
	return &Server{
		config:     cfg,
		dispatcher: dispatcher,
		runtime:    runtime,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/webhooks/{deployment_id}", s.handleWebhook)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	address := fmt.Sprintf("%s:%d", s.config.HTTPHost, s.config.HTTPPort)
	slog.Info("HTTP server starting",
		"layer", "web",
		"address", address,
	)
	return http.ListenAndServe(address, s.Router())
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	deploymentID, err := uuid.Parse(chi.URLParam(r, "deployment_id"))
	if err != nil {
		webhookEventsTotal.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid deployment id"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		webhookEventsTotal.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read payload"})
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		eventType = "unknown"
	}

	result, err := s.dispatcher.Handle(r.Context(), deploymentID, eventType, payload)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			webhookEventsTotal.WithLabelValues("not_found").Inc()
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "deployment not found"})
			return
		}
		webhookEventsTotal.WithLabelValues("error").Inc()
		slog.Error("Webhook handling failed",
			"layer", "web",
			"deployment_id", deploymentID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if !result.Accepted {
		webhookEventsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": result.Reason})
		return
	}

	if result.Triggered {
		webhookEventsTotal.WithLabelValues("triggered").Inc()
	} else {
		webhookEventsTotal.WithLabelValues("ignored").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    result.Reason,
		"triggered": result.Triggered,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dockerStatus := "available"
	if err := s.runtime.Ping(pingCtx); err != nil {
		dockerStatus = "unavailable"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"docker": dockerStatus,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}
