package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/logger"
	"github.com/hfzizz/nao-llm/internal/metrics"
	chatuc "github.com/hfzizz/nao-llm/internal/usecase/chat"
	healthuc "github.com/hfzizz/nao-llm/internal/usecase/health"
)

const maxBodyBytes = 64 << 10

// Responder answers one utterance for a front-end session.
type Responder interface {
	Respond(ctx context.Context, sessionHandle, text string) (chatuc.Answer, error)
}

// Reloader swaps the served knowledge base.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the chat front-end.
type Server struct {
	chat          Responder
	knowledge     Reloader
	health        HealthReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Message string `json:"message"`
	Session string `json:"session,omitempty"`
}

// ChatResponse is the POST /chat reply.
type ChatResponse struct {
	Response string `json:"response"`
	Session  string `json:"session,omitempty"`
}

// ErrorResponse carries a client-safe error message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Documents int               `json:"documents"`
}

// ReloadResponse is the POST /admin/reload reply.
type ReloadResponse struct {
	Documents int `json:"documents"`
}

// NewServer creates the HTTP server handlers.
func NewServer(chat Responder, knowledge Reloader, health HealthReporter, logger *zap.Logger) *Server {
	s := &Server{
		chat:      chat,
		knowledge: knowledge,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, "No message provided"),
		sentinelHandler(domain.ErrDatasetLoad, http.StatusUnprocessableEntity, domain.ErrDatasetLoad.Error()),
	}
	return s
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/chat", s.Chat)
	r.Get("/health", s.HealthCheck)
	r.Post("/admin/reload", s.Reload)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Chat handles POST /chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ans, err := s.chat.Respond(r.Context(), req.Session, req.Message)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response: chatuc.CleanReply(ans.Reply),
		Session:  ans.Session,
	})
}

// Reload handles POST /admin/reload.
func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	n, err := s.knowledge.Reload(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{Documents: n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:    string(report.Status),
		Checks:    checks,
		Documents: report.Documents,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
