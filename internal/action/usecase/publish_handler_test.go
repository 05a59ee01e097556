package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	contentDomain "github.com/allisson/cecsync/internal/content/domain"
	"github.com/allisson/cecsync/internal/errors"
	eventDomain "github.com/allisson/cecsync/internal/event/domain"
	jobDomain "github.com/allisson/cecsync/internal/job/domain"
)

func newChannelEvent(action eventDomain.Action, itemIDs ...string) *eventDomain.Event {
	return &eventDomain.Event{
		ID:       "e2",
		Action:   action,
		EntityID: "channel1",
		ItemIDs:  itemIDs,
	}
}

func TestPublishHandler_Handle(t *testing.T) {
	ctx := context.Background()
	items := []string{"i1", "i2"}

	t.Run("Success_Publish", func(t *testing.T) {
		destination := &mockDestinationServer{}
		jobs := newStubJobRunner().resolve(jobDomain.KindPublish, &jobDomain.Job{Status: jobDomain.StatusSuccess}, nil)
		destination.On("PublishItems", mock.Anything, "channel1", items).Return("bulk-1", nil).Once()

		handler := NewPublishHandler(destination, jobs, newTestLogger())
		outcome := handler.Handle(ctx, newChannelEvent(eventDomain.ActionChannelAssetPublished, items...))

		assert.Equal(t, eventDomain.Succeeded(), outcome)
		assert.Equal(t, []jobDomain.Kind{jobDomain.KindPublish}, jobs.ranKinds())
		destination.AssertExpectations(t)
	})

	t.Run("Success_Unpublish", func(t *testing.T) {
		destination := &mockDestinationServer{}
		jobs := newStubJobRunner().resolve(jobDomain.KindUnpublish, &jobDomain.Job{Status: jobDomain.StatusSuccess}, nil)
		destination.On("UnpublishItems", mock.Anything, "channel1", items).Return("bulk-2", nil).Once()

		handler := NewUnpublishHandler(destination, jobs, newTestLogger())
		outcome := handler.Handle(ctx, newChannelEvent(eventDomain.ActionChannelAssetUnpublished, items...))

		assert.Equal(t, eventDomain.Succeeded(), outcome)
		assert.Equal(t, []jobDomain.Kind{jobDomain.KindUnpublish}, jobs.ranKinds())
		destination.AssertExpectations(t)
		destination.AssertNotCalled(t, "PublishItems", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Success_EmptyBatch", func(t *testing.T) {
		destination := &mockDestinationServer{}
		jobs := newStubJobRunner()

		handler := NewPublishHandler(destination, jobs, newTestLogger())
		outcome := handler.Handle(ctx, newChannelEvent(eventDomain.ActionChannelAssetPublished))

		assert.Equal(t, eventDomain.Succeeded(), outcome)
		assert.Empty(t, jobs.ranKinds())
	})

	t.Run("Failure_JobFailedIsNotRetried", func(t *testing.T) {
		destination := &mockDestinationServer{}
		jobs := newStubJobRunner().resolve(
			jobDomain.KindPublish,
			&jobDomain.Job{Status: jobDomain.StatusFailed, ErrorDescription: "channel is not targeted"},
			errors.Wrap(jobDomain.ErrJobFailed, "channel is not targeted"),
		)
		destination.On("PublishItems", mock.Anything, "channel1", items).Return("bulk-1", nil)

		handler := NewPublishHandler(destination, jobs, newTestLogger())
		outcome := handler.Handle(ctx, newChannelEvent(eventDomain.ActionChannelAssetPublished, items...))

		assert.Equal(t, eventDomain.Failed(), outcome)
		assert.False(t, outcome.Retry)
	})

	t.Run("Failure_SubmitError", func(t *testing.T) {
		destination := &mockDestinationServer{}
		jobs := newStubJobRunner()
		destination.On("PublishItems", mock.Anything, "channel1", items).Return("", contentDomain.ErrTransport)

		handler := NewPublishHandler(destination, jobs, newTestLogger())
		outcome := handler.Handle(ctx, newChannelEvent(eventDomain.ActionChannelAssetPublished, items...))

		assert.Equal(t, eventDomain.Failed(), outcome)
	})

	t.Run("Failure_TimedOut", func(t *testing.T) {
		destination := &mockDestinationServer{}
		jobs := newStubJobRunner().resolve(jobDomain.KindUnpublish, nil, jobDomain.ErrTimedOut)
		destination.On("UnpublishItems", mock.Anything, "channel1", items).Return("bulk-2", nil)

		handler := NewUnpublishHandler(destination, jobs, newTestLogger())
		outcome := handler.Handle(ctx, newChannelEvent(eventDomain.ActionChannelAssetUnpublished, items...))

		assert.Equal(t, eventDomain.Failed(), outcome)
	})
}
