package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/allisson/cecsync/internal/event/http/dto"
	"github.com/allisson/cecsync/internal/event/usecase"
	"github.com/allisson/cecsync/internal/httputil"
)

// EventHandler exposes the queue to operators on the admin server.
type EventHandler struct {
	queueUseCase usecase.QueueUseCase
	logger       *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(queueUseCase usecase.QueueUseCase, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		queueUseCase: queueUseCase,
		logger:       logger,
	}
}

// ListHandler lists queued events in queue order.
// GET /v1/events?pending=true&offset=0&limit=50 - Returns 200 with a page of events.
func (h *EventHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	pendingOnly := false
	if raw := c.Query("pending"); raw != "" {
		pendingOnly, err = strconv.ParseBool(raw)
		if err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
	}

	events, err := h.queueUseCase.List(c.Request.Context(), pendingOnly)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	total := len(events)
	start := min(offset, total)
	end := min(start+limit, total)

	c.JSON(http.StatusOK, dto.MapEventsToListResponse(events[start:end], total))
}

// RequeueHandler resets a failed event so it is dispatched again.
// POST /v1/events/:id/requeue - Returns 200 with the requeued event, 404 when no failed event matches.
func (h *EventHandler) RequeueHandler(c *gin.Context) {
	event, err := h.queueUseCase.Requeue(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("event requeued", slog.String("event_id", event.ID))
	c.JSON(http.StatusOK, dto.MapEventToResponse(event))
}
