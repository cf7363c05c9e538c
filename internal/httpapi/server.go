// Package httpapi exposes the order workflow over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/petrijr/pizzaflow"
	"github.com/petrijr/pizzaflow/internal/response"
	"github.com/petrijr/pizzaflow/pkg/api"
)

// MaxPayloadBytes bounds the size of an order payload.
const MaxPayloadBytes = 1 << 20

// RequestTimeout is the router-level deadline. It only has to outlast the
// workflow timeout, which the engine enforces itself.
const RequestTimeout = 330 * time.Second

// Submitter runs an order on a remote orchestrator and returns its terminal
// result.
type Submitter func(ctx context.Context, payload []byte) (api.TerminalResult, error)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Engine api.Engine

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Remote serves POST /orders/remote when set.
	Remote Submitter

	Logger *slog.Logger
}

// NewRouter mounts h on a chi router with the standard middleware stack.
func NewRouter(h *Handler) *chi.Mux {
	if h.Logger == nil {
		h.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer, middleware.Timeout(RequestTimeout))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes adds the handler's routes to r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/order", h.HandleOrder)
	r.Get("/executions", h.HandleListExecutions)
	r.Get("/executions/{id}", h.HandleGetExecution)
	r.Get("/definition", h.HandleDefinition)
	r.Get("/healthz", h.HandleHealth)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}
	if h.Remote != nil {
		r.Post("/orders/remote", h.HandleRemoteOrder)
	}
}

// HandleOrder runs the request body through the engine. The optional
// inputPath query parameter overrides the flavour selector for this order.
func (h *Handler) HandleOrder(w http.ResponseWriter, r *http.Request) {
	payload, err := readPayload(w, r)
	if err != nil {
		h.Logger.WarnContext(r.Context(), "order_payload_unreadable", slog.Any("error", err))
		writeResponse(w, response.InternalError())
		return
	}

	resp := pizzaflow.Order(r.Context(), h.Engine, payload, r.URL.Query().Get("inputPath"))
	writeResponse(w, resp)
}

// HandleRemoteOrder submits the request body to the remote orchestrator.
func (h *Handler) HandleRemoteOrder(w http.ResponseWriter, r *http.Request) {
	payload, err := readPayload(w, r)
	if err != nil {
		writeResponse(w, response.InternalError())
		return
	}

	result, err := h.Remote(r.Context(), payload)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "remote_order_failed", slog.Any("error", err))
		writeResponse(w, response.InternalError())
		return
	}
	writeResponse(w, response.Format(result))
}

// executionView is the JSON form of an in-flight execution.
type executionView struct {
	ID            string                    `json:"id"`
	Workflow      string                    `json:"workflow"`
	CurrentState  api.StateName             `json:"currentState"`
	Status        api.Status                `json:"status"`
	StartTime     time.Time                 `json:"startTime"`
	RetryAttempts map[string]int            `json:"retryAttempts"`
	Analysis      *api.ClassificationResult `json:"pineappleAnalysis,omitempty"`
}

func viewOf(exec *api.WorkflowExecution) executionView {
	return executionView{
		ID:            exec.ID,
		Workflow:      exec.Workflow,
		CurrentState:  exec.CurrentState,
		Status:        exec.Status,
		StartTime:     exec.StartTime,
		RetryAttempts: exec.RetryAttempts,
		Analysis:      exec.Analysis,
	}
}

func (h *Handler) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := h.Engine.ListExecutions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, response.InternalServerError)
		return
	}
	views := make([]executionView, 0, len(execs))
	for _, exec := range execs {
		views = append(views, viewOf(exec))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.Engine.GetExecution(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, api.ErrExecutionNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, response.InternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(exec))
}

// definitionView pairs the state machine document with its flat options.
type definitionView struct {
	StateMachine api.Document `json:"stateMachine"`
	Options      api.Options  `json:"options"`
}

func (h *Handler) HandleDefinition(w http.ResponseWriter, r *http.Request) {
	def := h.Engine.Definition()
	writeJSON(w, http.StatusOK, definitionView{
		StateMachine: def.Document(),
		Options:      def.Options(),
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readPayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
}

func writeResponse(w http.ResponseWriter, resp response.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.JSON())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeResponse(w, response.Response{StatusCode: code, Body: response.Body{Error: msg}})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
