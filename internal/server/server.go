package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/app"
	"github.com/spigell/interview-coach/internal/coach"
	"github.com/spigell/interview-coach/internal/resilience/failure"
	"github.com/spigell/interview-coach/internal/resilience/health"
	"github.com/spigell/interview-coach/internal/resilience/orchestrator"
)

const maxBodyBytes = 1 << 20

// Admin is the administrative surface of the resilience layer.
type Admin interface {
	HealthSnapshot() app.AdminSnapshot
	ResetHealthMonitor()
	ProbeNow(ctx context.Context)
	StartMonitoring(ctx context.Context) error
	StopMonitoring()
}

// Dispatcher runs a named operation with loosely typed parameters.
type Dispatcher interface {
	Dispatch(ctx context.Context, op ai.Operation, params map[string]any) (orchestrator.Envelope, error)
}

// Server provides the operations API and the ops endpoints.
type Server struct {
	admin      Admin
	dispatcher Dispatcher
	logger     *zap.Logger
	server     *http.Server
}

func New(addr string, admin Admin, dispatcher Dispatcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		admin:      admin,
		dispatcher: dispatcher,
		logger:     logger.Named("http"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /admin/health", s.handleSnapshot)
	mux.HandleFunc("POST /admin/health/reset", s.handleReset)
	mux.HandleFunc("POST /admin/health/probe", s.handleProbe)
	mux.HandleFunc("POST /admin/monitoring/start", s.handleStartMonitoring)
	mux.HandleFunc("POST /admin/monitoring/stop", s.handleStopMonitoring)
	mux.HandleFunc("POST /v1/operations/{operation}", s.handleOperation)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              addr,
		Handler:           Chain(mux, Recovery(s.logger), Logging(s.logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, middlewares included.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called. It returns nil after a graceful stop.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.admin.HealthSnapshot()

	status := http.StatusOK
	if snapshot.DegradationLevel == health.LevelSevere {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{
		"status":      statusText(snapshot.DegradationLevel),
		"degradation": string(snapshot.DegradationLevel),
	})
}

func statusText(level health.Level) string {
	switch level {
	case health.LevelSevere:
		return "critical"
	case health.LevelPartial:
		return "degraded"
	default:
		return "healthy"
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.admin.HealthSnapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.admin.ResetHealthMonitor()
	writeJSON(w, http.StatusOK, s.admin.HealthSnapshot())
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	s.admin.ProbeNow(r.Context())
	writeJSON(w, http.StatusOK, s.admin.HealthSnapshot())
}

func (s *Server) handleStartMonitoring(w http.ResponseWriter, r *http.Request) {
	err := s.admin.StartMonitoring(r.Context())
	switch {
	case errors.Is(err, health.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"monitoring": true})
	}
}

func (s *Server) handleStopMonitoring(w http.ResponseWriter, _ *http.Request) {
	s.admin.StopMonitoring()
	writeJSON(w, http.StatusOK, map[string]bool{"monitoring": false})
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	op := ai.Operation(r.PathValue("operation"))
	if !op.Known() {
		writeJSON(w, http.StatusNotFound, rejected(op, failure.CategoryInvalidInput, "unknown operation "+string(op)))
		return
	}

	params := map[string]any{}
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, rejected(op, failure.CategoryInvalidInput, "request body must be a JSON object"))
		return
	}

	env, err := s.dispatcher.Dispatch(r.Context(), op, params)
	if err != nil {
		if errors.Is(err, coach.ErrUnknownOperation) {
			writeJSON(w, http.StatusNotFound, rejected(op, failure.CategoryInvalidInput, err.Error()))
			return
		}
		typed := failure.AsError(err)
		message := typed.Message
		if message == "" {
			message = err.Error()
		}
		writeJSON(w, http.StatusBadRequest, rejected(op, typed.Category, message))
		return
	}

	writeJSON(w, envelopeStatus(env), env)
}

// rejected builds the envelope for a request refused before any call was made.
func rejected(op ai.Operation, category failure.Category, message string) orchestrator.Envelope {
	return orchestrator.Envelope{
		Operation: op,
		Source:    orchestrator.SourceNone,
		Error: &orchestrator.ErrorInfo{
			Category: category,
			Message:  message,
		},
	}
}

func envelopeStatus(env orchestrator.Envelope) int {
	if env.Success || env.Error == nil {
		return http.StatusOK
	}
	switch env.Error.Category {
	case failure.CategorySafetyBlocked, failure.CategoryInvalidInput:
		return http.StatusUnprocessableEntity
	case failure.CategoryAuthFailed, failure.CategoryUnknown:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
