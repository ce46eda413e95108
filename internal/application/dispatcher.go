package application

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

type pipelineReconciler interface {
	Reconcile(ctx context.Context, ev *PipelineEvent) error
}

type jobReconciler interface {
	Reconcile(ctx context.Context, ev *JobEvent) error
}

// Dispatcher classifies a raw webhook payload by its object_kind
// discriminator and routes it to the matching reconciler. The payload is
// decoded into its event shape only after the discriminator is confirmed.
type Dispatcher struct {
	log       *zap.Logger
	pipelines pipelineReconciler
	jobs      jobReconciler
}

func NewDispatcher(log *zap.Logger, pipelines pipelineReconciler, jobs jobReconciler) *Dispatcher {
	return &Dispatcher{log: log, pipelines: pipelines, jobs: jobs}
}

// Process handles one webhook delivery. It fails with *EventParsingError on
// anything that is not a well-formed, supported event; reconciler failures
// are wrapped into the same type unless already typed.
func (d *Dispatcher) Process(ctx context.Context, payload []byte) error {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(payload, &root); err != nil {
		return NewEventParsingError("Unsupported payload type")
	}

	kindRaw, ok := root["object_kind"]
	if !ok || string(kindRaw) == "null" {
		return NewEventParsingError("Missing 'object_kind' in event payload")
	}

	var kind string
	if err := json.Unmarshal(kindRaw, &kind); err != nil {
		return WrapEventParsingError("Error while processing event: "+err.Error(), err)
	}

	// The discriminator is matched verbatim, no trimming: " pipeline " is
	// an unsupported kind.
	switch kind {
	case "pipeline":
		var ev PipelineEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return WrapEventParsingError("Error while processing event: "+err.Error(), err)
		}
		if err := d.pipelines.Reconcile(ctx, &ev); err != nil {
			return wrap(err)
		}
	case "build":
		var ev JobEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return WrapEventParsingError("Error while processing event: "+err.Error(), err)
		}
		if err := d.jobs.Reconcile(ctx, &ev); err != nil {
			return wrap(err)
		}
	default:
		return NewEventParsingError("Event type not yet supported: " + kind)
	}

	return nil
}

func wrap(err error) error {
	var pe *EventParsingError
	if errors.As(err, &pe) {
		return pe
	}
	return WrapEventParsingError("Error while processing event: "+err.Error(), err)
}
