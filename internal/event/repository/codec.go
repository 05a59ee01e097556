// Package repository provides persistence implementations for the event queue.
//
// Every backend stores the queue as one JSON document, an array of records in queue order,
// and replaces the whole document on each save.
package repository

import (
	"bytes"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/allisson/cecsync/internal/event/domain"
)

// queueRecord is the persisted shape of an event. The double-underscore fields hold
// processing bookkeeping; event and entity keep the webhook payload.
type queueRecord struct {
	ID            string       `json:"__id"`
	Processed     bool         `json:"__processed"`
	ProcessedDate *time.Time   `json:"__processed_date"`
	Success       bool         `json:"__success"`
	Retry         int          `json:"__retry"`
	Event         recordEvent  `json:"event"`
	Entity        recordEntity `json:"entity"`
}

type recordEvent struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type recordEntity struct {
	ID           string       `json:"id"`
	Name         string       `json:"name,omitempty"`
	RepositoryID string       `json:"repositoryId,omitempty"`
	Items        []recordItem `json:"items,omitempty"`
}

type recordItem struct {
	ID string `json:"id"`
}

// encodeQueue serializes events in queue order.
func encodeQueue(events []*domain.Event) ([]byte, error) {
	records := make([]queueRecord, 0, len(events))
	for _, event := range events {
		records = append(records, toRecord(event))
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue: %w", err)
	}
	return data, nil
}

// decodeQueue parses a persisted document. An empty document is an empty queue;
// anything that is not a JSON array of records yields ErrCorruptQueue.
func decodeQueue(data []byte) ([]*domain.Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []*domain.Event{}, nil
	}

	var records []queueRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptQueue, err)
	}

	events := make([]*domain.Event, 0, len(records))
	for i := range records {
		events = append(events, fromRecord(&records[i]))
	}
	return events, nil
}

func toRecord(event *domain.Event) queueRecord {
	record := queueRecord{
		ID:            event.ID,
		Processed:     event.Processed,
		ProcessedDate: event.ProcessedAt,
		Success:       event.Success,
		Retry:         event.RetryCount,
		Event: recordEvent{
			Name: event.Action.String(),
			ID:   event.ID,
		},
		Entity: recordEntity{
			ID:           event.EntityID,
			Name:         event.EntityName,
			RepositoryID: event.RepositoryID,
		},
	}
	for _, itemID := range event.ItemIDs {
		record.Entity.Items = append(record.Entity.Items, recordItem{ID: itemID})
	}
	return record
}

func fromRecord(record *queueRecord) *domain.Event {
	id := record.ID
	if id == "" {
		id = record.Event.ID
	}
	event := &domain.Event{
		ID:           id,
		Action:       domain.Action(record.Event.Name),
		EntityID:     record.Entity.ID,
		EntityName:   record.Entity.Name,
		RepositoryID: record.Entity.RepositoryID,
		Processed:    record.Processed,
		Success:      record.Success,
		RetryCount:   record.Retry,
		ProcessedAt:  record.ProcessedDate,
	}
	for _, item := range record.Entity.Items {
		event.ItemIDs = append(event.ItemIDs, item.ID)
	}
	return event
}
