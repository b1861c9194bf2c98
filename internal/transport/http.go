package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack/slackevents"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Server is the development webhook server. Deliveries are acknowledged
// before processing; work runs on a context detached from the request.
type Server struct {
	logger        *slog.Logger
	signingSecret string
	processor     *processor
	health        HealthCheck
	router        *mux.Router
	httpServer    *http.Server

	work   sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a webhook server listening on addr
func NewServer(logger *slog.Logger, addr, signingSecret string, dispatcher Dispatcher, health HealthCheck) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:        logger,
		signingSecret: signingSecret,
		processor:     &processor{logger: logger, dispatcher: dispatcher},
		health:        health,
		router:        mux.NewRouter(),
		ctx:           ctx,
		cancel:        cancel,
	}

	s.router.HandleFunc("/slack/events", s.handleEvents).Methods(http.MethodPost)
	s.router.HandleFunc("/slack/actions", s.handleActions).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight units of work
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.work.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		return errors.Wrap(ctx.Err(), "timed out waiting for in-flight work")
	}
	s.cancel()
	return err
}

// Wait blocks until all background units of work finish
func (s *Server) Wait() {
	s.work.Wait()
}

func (s *Server) readVerified(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return nil, false
	}
	if err := VerifyRequest(r.Header, body, s.signingSecret); err != nil {
		s.logger.Warn("Rejected unsigned request", "path", r.URL.Path, "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readVerified(w, r)
	if !ok {
		return
	}

	envelope, err := DecodeEnvelope(body)
	if err != nil {
		s.logger.Warn("Malformed event delivery", "error", err)
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	if envelope.Challenge != "" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(slackevents.ChallengeResponse{Challenge: envelope.Challenge})
		return
	}

	w.WriteHeader(http.StatusOK)
	if envelope.Event == nil {
		return
	}

	s.work.Add(1)
	go func() {
		defer s.work.Done()
		s.processor.event(s.ctx, envelope.Event)
	}()
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readVerified(w, r)
	if !ok {
		return
	}

	actions, err := DecodeInteractionForm(body)
	if err != nil {
		s.logger.Warn("Malformed interaction", "error", err)
		http.Error(w, "malformed interaction", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	if len(actions) == 0 {
		return
	}

	s.work.Add(1)
	go func() {
		defer s.work.Done()
		s.processor.actions(s.ctx, actions)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("Health check failed", "error", err)
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}
