// Package http provides HTTP handlers for webhook ingestion and queue administration.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/cecsync/internal/event/http/dto"
	"github.com/allisson/cecsync/internal/event/usecase"
)

// LivenessBody is the response body of GET requests on the webhook server.
const LivenessBody = "CEC toolkit sync server"

// WebhookHandler receives content service webhooks. Deliveries always get 200 so senders
// never retry on our account; rejected deliveries are only logged.
type WebhookHandler struct {
	ingestUseCase    usecase.IngestUseCase
	ackBeforePersist bool
	logger           *slog.Logger
}

// NewWebhookHandler creates a new webhook handler. With ackBeforePersist the response is
// flushed before the event is appended to the queue.
func NewWebhookHandler(
	ingestUseCase usecase.IngestUseCase,
	ackBeforePersist bool,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		ingestUseCase:    ingestUseCase,
		ackBeforePersist: ackBeforePersist,
		logger:           logger,
	}
}

// LivenessHandler answers any GET path.
// GET /*path - Returns 200 text/plain.
func (h *WebhookHandler) LivenessHandler(c *gin.Context) {
	c.String(http.StatusOK, LivenessBody)
}

// ReceiveHandler ingests a webhook delivery.
// POST /*path - Always returns 200 text/plain.
func (h *WebhookHandler) ReceiveHandler(c *gin.Context) {
	var req dto.WebhookRequest
	bindErr := c.ShouldBindJSON(&req)
	username, password, present := c.Request.BasicAuth()

	// The append must outlive the request once the response has been sent.
	ctx := context.WithoutCancel(c.Request.Context())

	if h.ackBeforePersist {
		h.acknowledge(c)
	}

	h.ingest(ctx, bindErr, &req, usecase.Credentials{
		Username: username,
		Password: password,
		Present:  present,
	})

	if !h.ackBeforePersist {
		h.acknowledge(c)
	}
}

func (h *WebhookHandler) acknowledge(c *gin.Context) {
	c.String(http.StatusOK, "OK")
	c.Writer.Flush()
}

func (h *WebhookHandler) ingest(
	ctx context.Context,
	bindErr error,
	req *dto.WebhookRequest,
	credentials usecase.Credentials,
) {
	payload := req.ToPayload()
	payload.Invalid = bindErr
	if bindErr == nil {
		payload.Invalid = req.Validate()
	}

	// Rejections are logged by the use case.
	_, _ = h.ingestUseCase.Ingest(ctx, credentials, payload)
}
