package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/webscanhq/job-triggers/internal/dispatch"
	"github.com/webscanhq/job-triggers/internal/event"
	"github.com/webscanhq/job-triggers/internal/metrics"
)

// Server is the push-mode HTTP surface. Pub/Sub push subscriptions POST
// wrapped messages to /triggers/{name}; any non-2xx response nacks the
// delivery and Pub/Sub redelivers per its own policy.
type Server struct {
	httpServer *http.Server
	dispatcher *dispatch.Dispatcher
	triggers   map[string]dispatch.Trigger
	logger     *slog.Logger
}

func New(d *dispatch.Dispatcher, triggers []dispatch.Trigger, logger *slog.Logger) *Server {
	s := &Server{
		dispatcher: d,
		triggers:   make(map[string]dispatch.Trigger),
		logger:     logger.With("component", "server"),
	}
	for _, t := range triggers {
		s.triggers[t.Name] = t
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /triggers/{name}", s.handlePush)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{Handler: mux}
	return s
}

func (s *Server) Start(port string) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	s.logger.Info("starting push server", "port", port)
	return s.Serve(lis)
}

// Serve starts the server on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	err := s.httpServer.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.httpServer.Shutdown(ctx)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	t, ok := s.triggers[name]
	if !ok {
		metrics.PushRequestsTotal.WithLabelValues(name, strconv.Itoa(http.StatusNotFound)).Inc()
		http.Error(w, "unknown trigger: "+name, http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.fail(w, t, http.StatusBadRequest, "reading push body", err)
		return
	}

	env, err := event.ParsePush(body)
	if err != nil {
		s.fail(w, t, http.StatusBadRequest, "bad push envelope", err)
		return
	}

	execution, err := s.dispatcher.Dispatch(r.Context(), t, env.Message.Data)
	if err != nil {
		var decodeErr *dispatch.DecodeError
		if errors.As(err, &decodeErr) {
			s.fail(w, t, http.StatusBadRequest, "bad message payload", err)
			return
		}
		s.fail(w, t, http.StatusBadGateway, "dispatch failed", err)
		return
	}

	metrics.PushRequestsTotal.WithLabelValues(t.Name, strconv.Itoa(http.StatusOK)).Inc()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"execution": execution})
}

func (s *Server) fail(w http.ResponseWriter, t dispatch.Trigger, code int, msg string, err error) {
	metrics.PushRequestsTotal.WithLabelValues(t.Name, strconv.Itoa(code)).Inc()
	s.logger.Error(msg, "trigger", t.Name, "error", err)
	http.Error(w, msg, code)
}
