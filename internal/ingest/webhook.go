// Package ingest turns raw Telegram payloads into dispatched updates, via
// either a webhook push endpoint or a long-poll pull loop.
package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/bot"
	"telegram-bot-engine/internal/infra/logging"
	"telegram-bot-engine/internal/infra/metrics"
	"telegram-bot-engine/internal/telegram"
)

// UpdateHandler consumes one decoded update and reports whether anything
// handled it. *bot.Bot satisfies this.
type UpdateHandler interface {
	Handle(ctx context.Context, upd *telegram.Update) bool
}

type ackBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Webhook processes one pushed payload per call. Telegram retries on
// non-200 responses, so the acknowledgment is 200 regardless of whether the
// update was handled internally; only malformed payloads get a 400.
type Webhook struct {
	botName string
	handler UpdateHandler
	log     *zerolog.Logger
}

func NewWebhook(botName string, handler UpdateHandler, logger *zerolog.Logger) *Webhook {
	return &Webhook{botName: botName, handler: handler, log: logger}
}

// Handle decodes the raw body and dispatches the update. It returns the
// HTTP status and response body to write back.
func (w *Webhook) Handle(ctx context.Context, raw []byte) (int, []byte) {
	upd, err := telegram.ParseUpdate(raw)
	if err != nil {
		metrics.UpdateHandled(w.botName, "malformed")
		logging.With(ctx, w.log).Warn().Err(err).Msg("rejected webhook payload")
		body, _ := json.Marshal(ackBody{OK: false, Message: "invalid update payload"})
		return http.StatusBadRequest, body
	}

	metrics.UpdateReceived(w.botName, "webhook")
	handled := w.handler.Handle(ctx, upd)
	metrics.UpdateHandled(w.botName, outcome(handled))

	body, _ := json.Marshal(ackBody{OK: true})
	return http.StatusOK, body
}

func outcome(handled bool) string {
	if handled {
		return "handled"
	}
	return "unhandled"
}

// WebhookServer exposes one webhook route per registered bot, plus health
// and metrics endpoints.
type WebhookServer struct {
	registry *bot.Registry
	log      *zerolog.Logger
}

func NewWebhookServer(registry *bot.Registry, logger *zerolog.Logger) *WebhookServer {
	return &WebhookServer{registry: registry, log: logger}
}

// Routes builds the chi router: POST /webhook/{bot}, /health, /metrics.
func (s *WebhookServer) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhook/{bot}", s.handleUpdate)
	return r
}

func (s *WebhookServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bot")
	b, err := s.registry.Bot(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ackBody{OK: false, Message: "unknown bot"})
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ackBody{OK: false, Message: "unreadable body"})
		return
	}

	ctx := logging.WithTraceID(r.Context(), uuid.NewString())
	ctx = logging.WithBotName(ctx, b.Name())

	hook := NewWebhook(b.Name(), b, s.log)
	status, body := hook.Handle(ctx, raw)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, body ackBody) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
