// Package domain defines the queued webhook event model and its processing bookkeeping.
//
// An Event is created once by the ingestion endpoint and afterwards only its processing
// fields (Processed, Success, RetryCount, ProcessedAt) and its position in the queue change.
package domain

import (
	"slices"
	"time"
)

const (
	// DefaultMaxRetries is the number of retryable failures tolerated before an event is given up.
	DefaultMaxRetries = 10

	// DefaultRetention is how long processed events are kept in the queue.
	DefaultRetention = 7 * 24 * time.Hour
)

// Action identifies the kind of change a webhook reports. Values are the webhook event names.
type Action string

const (
	ActionItemCreated             Action = "CONTENTITEM_CREATED"
	ActionItemUpdated             Action = "CONTENTITEM_UPDATED"
	ActionItemDeleted             Action = "CONTENTITEM_DELETED"
	ActionAssetCreated            Action = "DIGITALASSET_CREATED"
	ActionAssetUpdated            Action = "DIGITALASSET_UPDATED"
	ActionAssetDeleted            Action = "DIGITALASSET_DELETED"
	ActionChannelAssetPublished   Action = "CHANNEL_ASSETPUBLISHED"
	ActionChannelAssetUnpublished Action = "CHANNEL_ASSETUNPUBLISHED"
)

// SupportedActions lists every action accepted at ingestion, in a stable order.
var SupportedActions = []Action{
	ActionItemCreated,
	ActionItemUpdated,
	ActionItemDeleted,
	ActionAssetCreated,
	ActionAssetUpdated,
	ActionAssetDeleted,
	ActionChannelAssetPublished,
	ActionChannelAssetUnpublished,
}

// ParseAction converts a webhook event name into an Action.
// Returns ErrUnsupportedAction for names outside SupportedActions.
func ParseAction(name string) (Action, error) {
	action := Action(name)
	if !action.IsSupported() {
		return "", ErrUnsupportedAction
	}
	return action, nil
}

// IsSupported reports whether the action is one the dispatcher can handle.
func (a Action) IsSupported() bool {
	return slices.Contains(SupportedActions, a)
}

// IsAsset reports whether the action concerns a digital asset rather than a content item.
func (a Action) IsAsset() bool {
	switch a {
	case ActionAssetCreated, ActionAssetUpdated, ActionAssetDeleted:
		return true
	default:
		return false
	}
}

// String returns the webhook event name.
func (a Action) String() string {
	return string(a)
}

// Event is one queued unit of work.
type Event struct {
	ID           string     // Webhook event id assigned by the source server
	Action       Action     // Kind of change
	EntityID     string     // Item, asset or channel id the change refers to
	EntityName   string     // Display name of the entity, informational only
	RepositoryID string     // Source repository, empty when the payload carries none
	ItemIDs      []string   // Items of a publish/unpublish batch
	Processed    bool       // True once the event reached a terminal state
	Success      bool       // Meaningful only when Processed is true
	RetryCount   int        // Number of retryable failures so far
	ProcessedAt  *time.Time // Set when Processed becomes true
}

// IsExpired reports whether a processed event is older than the retention window at now.
// Unprocessed events never expire.
func (e *Event) IsExpired(now time.Time, retention time.Duration) bool {
	if !e.Processed || e.ProcessedAt == nil {
		return false
	}
	return e.ProcessedAt.Before(now.Add(-retention))
}

// Complete marks the event as terminal with the given result.
func (e *Event) Complete(success bool, now time.Time) {
	e.Processed = true
	e.Success = success
	e.ProcessedAt = &now
}

// Reset clears the processing fields so the event is dispatched again from scratch.
func (e *Event) Reset() {
	e.Processed = false
	e.Success = false
	e.RetryCount = 0
	e.ProcessedAt = nil
}

// Clone returns a deep copy so callers outside the queue cannot mutate queued state.
func (e *Event) Clone() *Event {
	clone := *e
	clone.ItemIDs = slices.Clone(e.ItemIDs)
	if e.ProcessedAt != nil {
		processedAt := *e.ProcessedAt
		clone.ProcessedAt = &processedAt
	}
	return &clone
}

// Outcome is the normalized result of handling an event.
type Outcome struct {
	Success bool
	Retry   bool
}

// Succeeded is the outcome of a handler that completed its work.
func Succeeded() Outcome {
	return Outcome{Success: true}
}

// Failed is the outcome of a handler that failed in a way retrying will not fix.
func Failed() Outcome {
	return Outcome{}
}

// Retryable is the outcome of a handler that failed but may succeed later.
func Retryable() Outcome {
	return Outcome{Retry: true}
}

// Status returns a low-cardinality label for logs and metrics.
func (o Outcome) Status() string {
	switch {
	case o.Success:
		return "success"
	case o.Retry:
		return "retry"
	default:
		return "failure"
	}
}

// Disposition describes what UpdateOutcome did with an event.
type Disposition string

const (
	// DispositionCompleted means the event was marked processed with the handler's result.
	DispositionCompleted Disposition = "completed"
	// DispositionRequeued means the event stays pending and moved to the tail of the queue.
	DispositionRequeued Disposition = "requeued"
	// DispositionGaveUp means the retry budget was exhausted and the event was marked failed.
	DispositionGaveUp Disposition = "gave_up"
)
