package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubPipelineReconciler struct {
	Called int
	Last   *PipelineEvent
	Err    error
}

func (s *stubPipelineReconciler) Reconcile(_ context.Context, ev *PipelineEvent) error {
	s.Called++
	s.Last = ev
	return s.Err
}

type stubJobReconciler struct {
	Called int
	Last   *JobEvent
	Err    error
}

func (s *stubJobReconciler) Reconcile(_ context.Context, ev *JobEvent) error {
	s.Called++
	s.Last = ev
	return s.Err
}

func newTestDispatcher(p *stubPipelineReconciler, j *stubJobReconciler) *Dispatcher {
	return NewDispatcher(zap.NewNop(), p, j)
}

func TestProcess_RoutesPipelineEvent(t *testing.T) {
	p := &stubPipelineReconciler{}
	j := &stubJobReconciler{}
	d := newTestDispatcher(p, j)

	payload := `{"object_kind":"pipeline","object_attributes":{"id":123,"status":"running"}}`
	if err := d.Process(context.Background(), []byte(payload)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Called != 1 {
		t.Errorf("expected 1 pipeline reconciliation, got %d", p.Called)
	}
	if j.Called != 0 {
		t.Errorf("expected no job reconciliation, got %d", j.Called)
	}
	if p.Last.ObjectAttributes.ID != 123 {
		t.Errorf("expected pipeline id 123, got %d", p.Last.ObjectAttributes.ID)
	}
}

func TestProcess_RoutesBuildEvent(t *testing.T) {
	p := &stubPipelineReconciler{}
	j := &stubJobReconciler{}
	d := newTestDispatcher(p, j)

	payload := `{"object_kind":"build","build_id":456,"pipeline_id":123}`
	if err := d.Process(context.Background(), []byte(payload)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if j.Called != 1 {
		t.Errorf("expected 1 job reconciliation, got %d", j.Called)
	}
	if p.Called != 0 {
		t.Errorf("expected no pipeline reconciliation, got %d", p.Called)
	}
	if j.Last.BuildID != 456 {
		t.Errorf("expected build id 456, got %d", j.Last.BuildID)
	}
}

func TestProcess_MissingObjectKind(t *testing.T) {
	d := newTestDispatcher(&stubPipelineReconciler{}, &stubJobReconciler{})

	for _, payload := range []string{`{}`, `{"object_kind":null}`} {
		err := d.Process(context.Background(), []byte(payload))
		var pe *EventParsingError
		if !errors.As(err, &pe) {
			t.Fatalf("payload %s: expected *EventParsingError, got %v", payload, err)
		}
		if pe.Error() != "Missing 'object_kind' in event payload" {
			t.Errorf("payload %s: unexpected message %q", payload, pe.Error())
		}
	}
}

func TestProcess_UnsupportedKind(t *testing.T) {
	d := newTestDispatcher(&stubPipelineReconciler{}, &stubJobReconciler{})

	err := d.Process(context.Background(), []byte(`{"object_kind":"merge_request"}`))
	var pe *EventParsingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *EventParsingError, got %v", err)
	}
	if !strings.Contains(pe.Error(), "Event type not yet supported: merge_request") {
		t.Errorf("unexpected message %q", pe.Error())
	}
}

func TestProcess_WhitespaceKindIsUnsupported(t *testing.T) {
	p := &stubPipelineReconciler{}
	d := newTestDispatcher(p, &stubJobReconciler{})

	// The discriminator is not trimmed: " pipeline " is an unknown kind.
	err := d.Process(context.Background(), []byte(`{"object_kind":" pipeline "}`))
	var pe *EventParsingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *EventParsingError, got %v", err)
	}
	if !strings.Contains(pe.Error(), "Event type not yet supported:") {
		t.Errorf("unexpected message %q", pe.Error())
	}
	if p.Called != 0 {
		t.Errorf("pipeline reconciler must not be invoked, got %d calls", p.Called)
	}
}

func TestProcess_NonObjectPayload(t *testing.T) {
	d := newTestDispatcher(&stubPipelineReconciler{}, &stubJobReconciler{})

	for _, payload := range []string{`[1,2,3]`, `"pipeline"`, `42`, `not json at all`} {
		err := d.Process(context.Background(), []byte(payload))
		var pe *EventParsingError
		if !errors.As(err, &pe) {
			t.Fatalf("payload %s: expected *EventParsingError, got %v", payload, err)
		}
		if pe.Error() != "Unsupported payload type" {
			t.Errorf("payload %s: unexpected message %q", payload, pe.Error())
		}
	}
}

func TestProcess_WrapsReconcilerFailure(t *testing.T) {
	boom := errors.New("store down")
	d := newTestDispatcher(&stubPipelineReconciler{Err: boom}, &stubJobReconciler{})

	err := d.Process(context.Background(), []byte(`{"object_kind":"pipeline"}`))
	var pe *EventParsingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *EventParsingError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("wrapped error should expose the cause")
	}
}

func TestProcess_TypedErrorPropagatesUnchanged(t *testing.T) {
	typed := NewEventParsingError("already typed")
	d := newTestDispatcher(&stubPipelineReconciler{Err: typed}, &stubJobReconciler{})

	err := d.Process(context.Background(), []byte(`{"object_kind":"pipeline"}`))
	if !errors.Is(err, typed) {
		t.Fatalf("expected the original typed error, got %v", err)
	}
	if err.Error() != "already typed" {
		t.Errorf("typed error must not be re-wrapped, got %q", err.Error())
	}
}
