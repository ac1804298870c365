package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"runrelay/internal/reconcile"
	"runrelay/internal/workflow"
	logx "runrelay/pkg/logx"
)

// Response bodies.
const (
	msgMethodNotAllowed  = "Only POST method is supported."
	msgMalformed         = "Malformed or missing JSON."
	msgUnsupportedAction = "Unsupported workflow_run action."
	msgUnsupportedEvent  = "Unsupported event type."
	msgRelayFailed       = "Failed to relay workflow event."
)

const (
	headerEvent    = "X-GitHub-Event"
	headerDelivery = "X-GitHub-Delivery"
	headerRequest  = "X-Request-Id"

	eventWorkflowRun = "workflow_run"
	eventPing        = "ping"
)

// DefaultMaxBodyBytes matches GitHub's webhook payload cap.
const DefaultMaxBodyBytes int64 = 25 << 20

// DefaultRelayTimeout bounds one reconciliation.
const DefaultRelayTimeout = 15 * time.Second

// Relay is the reconciliation entry point the handler drives.
type Relay interface {
	Reconcile(ctx context.Context, ev workflow.Event) (reconcile.Outcome, error)
}

type HandlerConfig struct {
	MaxBodyBytes int64
	RelayTimeout time.Duration
}

// Handler receives GitHub workflow_run webhooks.
type Handler struct {
	relay   Relay
	log     logx.Logger
	maxBody int64
	timeout time.Duration
	newID   func() string
}

func NewHandler(relay Relay, cfg HandlerConfig, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = DefaultRelayTimeout
	}
	return &Handler{
		relay:   relay,
		log:     log.With(logx.String("comp", "webhook")),
		maxBody: cfg.MaxBodyBytes,
		timeout: cfg.RelayTimeout,
		newID:   uuid.NewString,
	}
}

type response struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	delivery := strings.TrimSpace(r.Header.Get(headerDelivery))
	if delivery == "" {
		delivery = h.newID()
	}
	w.Header().Set(headerRequest, delivery)
	log := h.log.With(logx.String("delivery_id", delivery))

	defer func() {
		if p := recover(); p != nil {
			log.Error("handler panicked", logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
			writeJSON(w, http.StatusInternalServerError, response{Error: msgRelayFailed})
		}
	}()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusOK, response{Error: msgMethodNotAllowed})
		return
	}

	switch kind := strings.TrimSpace(r.Header.Get(headerEvent)); kind {
	case "", eventWorkflowRun:
	case eventPing:
		log.Info("ping received")
		writeJSON(w, http.StatusOK, response{Success: true})
		return
	default:
		log.Debug("ignoring event", logx.String("event", kind))
		writeJSON(w, http.StatusOK, response{Error: msgUnsupportedEvent})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		log.Warn("request body unreadable", logx.Err(err))
		writeJSON(w, http.StatusOK, response{Error: msgMalformed})
		return
	}

	ev, err := workflow.Parse(body)
	switch {
	case errors.Is(err, workflow.ErrUnsupportedAction):
		log.Debug("ignoring action", logx.Err(err))
		writeJSON(w, http.StatusOK, response{Error: msgUnsupportedAction})
		return
	case err != nil:
		log.Warn("malformed payload", logx.Err(err))
		writeJSON(w, http.StatusOK, response{Error: msgMalformed})
		return
	}

	// The relay outlives a client that hangs up; its own timeout bounds it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	if _, err := h.relay.Reconcile(ctx, ev); err != nil {
		log.Error("relay failed",
			logx.String("run_id", ev.RunID),
			logx.String("action", string(ev.Action)),
			logx.Err(err),
		)
		writeJSON(w, http.StatusInternalServerError, response{Error: msgRelayFailed})
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
