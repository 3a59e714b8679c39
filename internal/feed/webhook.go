package feed

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ysamlan/trello-to-zulip/internal/payload"
)

// WebhookPath is where Trello delivers webhook callbacks.
const WebhookPath = "/trello"

// maxWebhookBody bounds a single callback body.
const maxWebhookBody = 1 << 20

// WebhookOptions configures the webhook receiver.
type WebhookOptions struct {
	// Enqueue receives each accepted batch. Returning false means the
	// receiver is shutting down; the request fails with 503.
	Enqueue func(Batch) bool

	Logger *slog.Logger
}

// NewWebhookHandler returns the HTTP handler for Trello webhooks.
//
// Trello verifies a callback URL with a HEAD request before creating the
// webhook, then POSTs {"action": {...}, "model": {...}} for each action.
func NewWebhookHandler(opts WebhookOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Head(WebhookPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post(WebhookPath, func(w http.ResponseWriter, req *http.Request) {
		reqID := chimw.GetReqID(req.Context())

		batch, err := decodeCallback(req)
		if err != nil {
			logger.Warn("rejected webhook", "request_id", reqID, "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !opts.Enqueue(batch) {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		logger.Debug("webhook accepted", "request_id", reqID, "actions", len(batch.Actions))
		w.WriteHeader(http.StatusOK)
	})

	return r
}

func decodeCallback(req *http.Request) (Batch, error) {
	data, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
	if err != nil {
		return Batch{}, fmt.Errorf("read body: %w", err)
	}
	doc, err := payload.DecodeObject(data)
	if err != nil {
		return Batch{}, fmt.Errorf("decode body: %w", err)
	}
	act, ok := doc.Object("action")
	if !ok {
		return Batch{}, fmt.Errorf("callback has no action")
	}
	return Batch{Origin: "webhook", Actions: []payload.Object{act}, Live: true}, nil
}
