// Package server exposes the local HTTP control surface of a running
// conversation: health, metrics, state, history and typed prompts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/sessions"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxPromptBytes = 16 << 10

// Conversation is the part of the orchestrator the HTTP surface drives.
type Conversation interface {
	State() orchestration.ConversationState
	DisplayText() string
	StartListening() error
	StopListening() error
	SubmitText(text string) error
}

// Config holds router dependencies. Sessions and MetricsHandler are
// optional.
type Config struct {
	Conversation   Conversation
	Sessions       sessions.Store
	SessionID      string
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

type handler struct {
	conversation Conversation
	sessions     sessions.Store
	sessionID    string
	logger       *slog.Logger
}

// New creates the router with all routes configured.
func New(cfg Config) http.Handler {
	h := &handler{
		conversation: cfg.Conversation,
		sessions:     cfg.Sessions,
		sessionID:    cfg.SessionID,
		logger:       cfg.Logger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Get("/history", h.history)
		r.Post("/listen", h.listen)
		r.Post("/listen/stop", h.stopListening)
		r.Post("/prompt", h.prompt)
	})

	return otelhttp.NewHandler(r, "ema-assistant")
}

// ListenAndServe serves handler on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type stateResponse struct {
	State   string `json:"state"`
	Display string `json:"display"`
	Busy    bool   `json:"busy"`
}

type historyResponse struct {
	SessionID     string   `json:"session_id"`
	AssistantName string   `json:"assistant_name"`
	OwnerName     string   `json:"owner_name"`
	History       []string `json:"history"`
}

type promptRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) state(w http.ResponseWriter, r *http.Request) {
	state := h.conversation.State()
	writeJSON(w, http.StatusOK, stateResponse{
		State:   state.String(),
		Display: h.conversation.DisplayText(),
		Busy:    state.IsBusy(),
	})
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no session store configured"})
		return
	}

	session, err := h.sessions.Context(r.Context(), h.sessionID)
	if errors.Is(err, sessions.ErrUnknownSession) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	} else if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load session history", "session_id", h.sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load history"})
		return
	}

	history := session.History
	if history == nil {
		history = []string{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		SessionID:     session.SessionID,
		AssistantName: session.AssistantName,
		OwnerName:     session.OwnerName,
		History:       history,
	})
}

func (h *handler) listen(w http.ResponseWriter, r *http.Request) {
	if err := h.conversation.StartListening(); err != nil {
		h.writeConversationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) stopListening(w http.ResponseWriter, r *http.Request) {
	if err := h.conversation.StopListening(); err != nil {
		h.writeConversationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) prompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPromptBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}
	if h.conversation.State().IsBusy() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a reply is still pending"})
		return
	}

	if err := h.conversation.SubmitText(text); err != nil {
		h.writeConversationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) writeConversationError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, orchestration.ErrOrchestratorClosed) || errors.Is(err, orchestration.ErrNotStarted) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	h.logger.ErrorContext(r.Context(), "conversation request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
