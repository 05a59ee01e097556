package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventDomain "github.com/allisson/cecsync/internal/event/domain"
)

func TestRegistry_Handle(t *testing.T) {
	ctx := context.Background()
	syncHandler := &stubHandler{outcome: eventDomain.Succeeded()}
	remove := &stubHandler{outcome: eventDomain.Retryable()}

	registry := NewRegistry(newTestLogger()).
		Register(syncHandler, eventDomain.ActionItemCreated, eventDomain.ActionItemUpdated).
		Register(remove, eventDomain.ActionItemDeleted)

	t.Run("Success_RoutesByAction", func(t *testing.T) {
		created := newItemEvent(eventDomain.ActionItemCreated)
		deleted := newItemEvent(eventDomain.ActionItemDeleted)

		assert.Equal(t, eventDomain.Succeeded(), registry.Handle(ctx, created))
		assert.Equal(t, eventDomain.Retryable(), registry.Handle(ctx, deleted))

		require.Len(t, syncHandler.events, 1)
		assert.Same(t, created, syncHandler.events[0])
		require.Len(t, remove.events, 1)
		assert.Same(t, deleted, remove.events[0])
	})

	t.Run("Failure_NoHandler", func(t *testing.T) {
		outcome := registry.Handle(ctx, newItemEvent(eventDomain.ActionAssetDeleted))
		assert.Equal(t, eventDomain.Failed(), outcome)
	})
}
