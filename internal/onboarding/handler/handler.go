// Package handler exposes the chat webhook. The chat platform always expects
// HTTP 200 with a reply envelope; domain failures become reply text.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"askgate/internal/onboarding"
	"askgate/internal/platform/metrics"
	"askgate/pkg/platform/httputil"
	"askgate/pkg/requestcontext"
)

// Service defines the conversational operation the handler depends on.
type Service interface {
	HandleMessage(ctx context.Context, msg onboarding.Message) onboarding.Reply
}

// Handler wires the chat webhook to the onboarding service.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs a webhook handler with its dependencies.
func New(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: m}
}

// Register mounts the webhook on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhook/chat", h.HandleWebhook)
}

// WebhookRequest is the inbound chat platform envelope.
type WebhookRequest struct {
	Version     string `json:"version"`
	UserRequest struct {
		Utterance string `json:"utterance"`
		User      struct {
			ID         string            `json:"id"`
			Properties map[string]string `json:"properties"`
		} `json:"user"`
	} `json:"userRequest"`
}

// Validate requires a sender identity.
func (r *WebhookRequest) Validate() error {
	// Malformed envelopes are tolerated: the flow replies with instructions.
	return nil
}

// WebhookResponse is the outbound reply envelope.
type WebhookResponse struct {
	Version  string   `json:"version"`
	Template Template `json:"template"`
}

type Template struct {
	Outputs      []Output     `json:"outputs"`
	QuickReplies []QuickReply `json:"quickReplies,omitempty"`
}

type Output struct {
	SimpleText SimpleText `json:"simpleText"`
}

type SimpleText struct {
	Text string `json:"text"`
}

type QuickReply struct {
	Label       string `json:"label"`
	Action      string `json:"action"`
	MessageText string `json:"messageText"`
}

// FromReply converts a domain reply to the wire envelope.
func FromReply(reply onboarding.Reply) WebhookResponse {
	resp := WebhookResponse{
		Version: "2.0",
		Template: Template{
			Outputs: []Output{{SimpleText: SimpleText{Text: reply.Text}}},
		},
	}
	for _, label := range reply.QuickReplies {
		resp.Template.QuickReplies = append(resp.Template.QuickReplies, QuickReply{
			Label:       label,
			Action:      "message",
			MessageText: label,
		})
	}
	return resp
}

// HandleWebhook handles POST /webhook/chat requests.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[WebhookRequest](w, r, h.logger)
	if !ok {
		return
	}

	msg := onboarding.Message{
		ExternalID:  req.UserRequest.User.ID,
		DisplayName: req.UserRequest.User.Properties["nickname"],
		Utterance:   req.UserRequest.Utterance,
	}

	reply := h.service.HandleMessage(ctx, msg)

	if h.metrics != nil {
		h.metrics.WebhookDuration.Observe(time.Since(start).Seconds())
	}
	h.logger.InfoContext(ctx, "webhook handled",
		"request_id", requestcontext.RequestID(ctx),
		"external_id", msg.ExternalID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromReply(reply))
}
