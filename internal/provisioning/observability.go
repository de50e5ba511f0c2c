package provisioning

import (
	"github.com/go-logr/logr"
)

// EventType represents the type of workflow event.
type EventType string

const (
	// EventStageStarted indicates a stage handler is about to run.
	EventStageStarted EventType = "stage.started"
	// EventStageCompleted indicates a stage handler returned without error.
	EventStageCompleted EventType = "stage.completed"
	// EventStageFailed indicates a stage handler failed.
	EventStageFailed EventType = "stage.failed"

	// EventResourceCreated indicates a resource was created.
	EventResourceCreated EventType = "resource.created"
	// EventResourceExists indicates a resource already existed and was bound.
	EventResourceExists EventType = "resource.exists"
	// EventResourceSkipped indicates a resource could not be created and was skipped.
	EventResourceSkipped EventType = "resource.skipped"
	// EventResourceDeleted indicates a resource was deleted.
	EventResourceDeleted EventType = "resource.deleted"

	// EventCleanupFailed indicates a tolerated teardown failure.
	EventCleanupFailed EventType = "cleanup.failed"

	// EventWorkflowFinished indicates the success notification was sent.
	EventWorkflowFinished EventType = "workflow.finished"
	// EventWorkflowFailed indicates the failure notification was sent.
	EventWorkflowFailed EventType = "workflow.failed"
)

// Emit logs a structured event. Failure events are logged as errors when err
// is set.
func Emit(log logr.Logger, event EventType, resource string, err error, keysAndValues ...any) {
	kv := append([]any{"event", string(event)}, keysAndValues...)
	if resource != "" {
		kv = append(kv, "resource", resource)
	}
	if err != nil {
		log.Error(err, string(event), kv...)
		return
	}
	log.V(eventLevel(event)).Info(string(event), kv...)
}

func eventLevel(event EventType) int {
	switch event {
	case EventStageStarted, EventStageCompleted:
		return 1
	default:
		return 0
	}
}
