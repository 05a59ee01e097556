package dto

import (
	"time"

	"github.com/allisson/cecsync/internal/event/domain"
)

// EventResponse represents a queued event in admin API responses.
type EventResponse struct {
	ID           string     `json:"id"`
	Action       string     `json:"action"`
	EntityID     string     `json:"entity_id"`
	EntityName   string     `json:"entity_name,omitempty"`
	RepositoryID string     `json:"repository_id,omitempty"`
	ItemIDs      []string   `json:"item_ids,omitempty"`
	Processed    bool       `json:"processed"`
	Success      bool       `json:"success"`
	RetryCount   int        `json:"retry_count"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// ListEventsResponse represents a page of queued events.
type ListEventsResponse struct {
	Data  []EventResponse `json:"data"`
	Total int             `json:"total"`
}

// MapEventToResponse converts a domain event to an API response.
func MapEventToResponse(event *domain.Event) EventResponse {
	return EventResponse{
		ID:           event.ID,
		Action:       event.Action.String(),
		EntityID:     event.EntityID,
		EntityName:   event.EntityName,
		RepositoryID: event.RepositoryID,
		ItemIDs:      event.ItemIDs,
		Processed:    event.Processed,
		Success:      event.Success,
		RetryCount:   event.RetryCount,
		ProcessedAt:  event.ProcessedAt,
	}
}

// MapEventsToListResponse converts a page of events to a list response. Total is the size of
// the full, unpaginated result.
func MapEventsToListResponse(events []*domain.Event, total int) ListEventsResponse {
	data := make([]EventResponse, 0, len(events))
	for _, event := range events {
		data = append(data, MapEventToResponse(event))
	}
	return ListEventsResponse{Data: data, Total: total}
}
