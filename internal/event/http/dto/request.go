// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/allisson/cecsync/internal/event/usecase"
	customValidation "github.com/allisson/cecsync/internal/validation"
)

// WebhookRequest is the body of a content service webhook delivery. Fields outside event and
// entity are ignored.
type WebhookRequest struct {
	Event  WebhookEvent  `json:"event"`
	Entity WebhookEntity `json:"entity"`
}

// WebhookEvent identifies the change.
type WebhookEvent struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// WebhookEntity describes the changed item, asset or channel.
type WebhookEntity struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	RepositoryID string        `json:"repositoryId"`
	Items        []WebhookItem `json:"items"`
}

// WebhookItem is one member of a publish/unpublish batch.
type WebhookItem struct {
	ID string `json:"id"`
}

// Validate checks that the delivery carries an event name and an entity id. Failures wrap
// ErrInvalidInput.
func (r *WebhookRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Event),
		validation.Field(&r.Entity),
	)
	return customValidation.WrapValidationError(err)
}

// Validate checks the event block.
func (e WebhookEvent) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, customValidation.NotBlank),
	)
}

// Validate checks the entity block.
func (e WebhookEntity) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required, customValidation.NotBlank),
	)
}

// ToPayload converts the request into the ingestion payload.
func (r *WebhookRequest) ToPayload() usecase.Payload {
	payload := usecase.Payload{
		EventName:    r.Event.Name,
		EventID:      r.Event.ID,
		EntityID:     r.Entity.ID,
		EntityName:   r.Entity.Name,
		RepositoryID: r.Entity.RepositoryID,
	}
	for _, item := range r.Entity.Items {
		// Blank batch members are skipped, the rest of the batch is kept.
		if strings.TrimSpace(item.ID) == "" {
			continue
		}
		payload.ItemIDs = append(payload.ItemIDs, item.ID)
	}
	return payload
}
