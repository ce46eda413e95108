package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/davarch/ci-board/internal/domain"
	"go.uber.org/zap"
)

func trackedProject() *domain.Project {
	p := &domain.Project{ID: 1, Name: "alpha", RepositoryID: 200}
	p.Versions = []*domain.ProjectVersion{
		{ID: 10, Version: 2, BranchID: "main", ProjectID: 1},
		{ID: 11, Version: 1, BranchID: "release/1.0", ProjectID: 1},
	}
	return p
}

func pipelineEvent(t *testing.T, id int64, ref, sha, beforeSHA, status string) *PipelineEvent {
	t.Helper()
	ev := &PipelineEvent{ObjectKind: "pipeline"}
	ev.ObjectAttributes.ID = id
	ev.ObjectAttributes.Ref = ref
	ev.ObjectAttributes.SHA = sha
	ev.ObjectAttributes.BeforeSHA = beforeSHA
	ev.ObjectAttributes.Status = status
	ev.ObjectAttributes.CreatedAt = &EventTime{Time: time.Date(2025, 12, 14, 15, 10, 1, 0, time.UTC)}
	ev.Project = EventProject{ID: 200, Name: "alpha", WebURL: "https://gitlab.example.com/sg1/alpha"}
	return ev
}

func TestReconcilePipeline_UntrackedRepositoryIsNoop(t *testing.T) {
	store := &domain.MockStore{}
	r := NewPipelineReconciler(zap.NewNop(), store)

	if err := r.Reconcile(context.Background(), pipelineEvent(t, 123, "main", "abc", "def", "running")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.SavedPipelines) != 0 {
		t.Errorf("expected no save, got %d", len(store.SavedPipelines))
	}
}

func TestReconcilePipeline_CreatesPipelineForMatchingVersion(t *testing.T) {
	store := &domain.MockStore{Projects: []*domain.Project{trackedProject()}}
	r := NewPipelineReconciler(zap.NewNop(), store)

	if err := r.Reconcile(context.Background(), pipelineEvent(t, 123, "main", "abc", "def", "success")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.SavedPipelines) != 1 {
		t.Fatalf("expected 1 save, got %d", len(store.SavedPipelines))
	}
	p := store.SavedPipelines[0]
	if p.Status != domain.StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", p.Status)
	}
	if p.ProjectVersionID != 10 {
		t.Errorf("expected version 10, got %d", p.ProjectVersionID)
	}
	if !strings.HasSuffix(p.URL, "/pipelines/123") {
		t.Errorf("unexpected url %q", p.URL)
	}
	if !strings.HasSuffix(p.ChangesURL, "def...abc") {
		t.Errorf("unexpected changes url %q", p.ChangesURL)
	}
	if p.CreatedDate.Location() != time.UTC {
		t.Errorf("created date not UTC: %v", p.CreatedDate)
	}
}

func TestReconcilePipeline_NoChangesURLWithoutBothShas(t *testing.T) {
	store := &domain.MockStore{Projects: []*domain.Project{trackedProject()}}
	r := NewPipelineReconciler(zap.NewNop(), store)

	if err := r.Reconcile(context.Background(), pipelineEvent(t, 123, "main", "abc", "", "created")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.SavedPipelines) != 1 {
		t.Fatalf("expected 1 save, got %d", len(store.SavedPipelines))
	}
	if store.SavedPipelines[0].ChangesURL != "" {
		t.Errorf("expected empty changes url, got %q", store.SavedPipelines[0].ChangesURL)
	}
}

func TestReconcilePipeline_NoMatchingVersionIsNoop(t *testing.T) {
	store := &domain.MockStore{Projects: []*domain.Project{trackedProject()}}
	r := NewPipelineReconciler(zap.NewNop(), store)

	if err := r.Reconcile(context.Background(), pipelineEvent(t, 123, "feature/x", "abc", "def", "running")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.SavedPipelines) != 0 {
		t.Errorf("expected no save, got %d", len(store.SavedPipelines))
	}
}

func TestReconcilePipeline_UpdatesStatusOnce(t *testing.T) {
	project := trackedProject()
	existing := &domain.Pipeline{ID: 5, CIID: 123, Status: domain.StatusInProgress, ProjectVersionID: 10}
	store := &domain.MockStore{
		Projects:  []*domain.Project{project},
		Pipelines: []*domain.Pipeline{existing},
	}
	r := NewPipelineReconciler(zap.NewNop(), store)

	if err := r.Reconcile(context.Background(), pipelineEvent(t, 123, "main", "abc", "def", "success")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if existing.Status != domain.StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", existing.Status)
	}
	if len(store.SavedPipelines) != 1 {
		t.Errorf("expected exactly 1 save, got %d", len(store.SavedPipelines))
	}
}

func TestReconcilePipeline_NoWriteWhenNothingChanged(t *testing.T) {
	project := trackedProject()
	existing := &domain.Pipeline{ID: 5, CIID: 123, Status: domain.StatusInProgress, ProjectVersionID: 10}
	store := &domain.MockStore{
		Projects:  []*domain.Project{project},
		Pipelines: []*domain.Pipeline{existing},
	}
	r := NewPipelineReconciler(zap.NewNop(), store)

	// "running" and "canceling" both normalize to the current IN_PROGRESS.
	for _, status := range []string{"running", "canceling"} {
		if err := r.Reconcile(context.Background(), pipelineEvent(t, 123, "main", "abc", "def", status)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(store.SavedPipelines) != 0 {
		t.Errorf("expected no persistence call, got %d", len(store.SavedPipelines))
	}
}

func TestReconcilePipeline_EndDateSetOnce(t *testing.T) {
	project := trackedProject()
	existing := &domain.Pipeline{ID: 5, CIID: 123, Status: domain.StatusSuccess, ProjectVersionID: 10}
	store := &domain.MockStore{
		Projects:  []*domain.Project{project},
		Pipelines: []*domain.Pipeline{existing},
	}
	r := NewPipelineReconciler(zap.NewNop(), store)

	ev := pipelineEvent(t, 123, "main", "abc", "def", "success")
	first := time.Date(2025, 12, 14, 16, 7, 21, 0, time.UTC)
	ev.ObjectAttributes.FinishedAt = &EventTime{Time: first}

	if err := r.Reconcile(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if existing.EndDate == nil || !existing.EndDate.Equal(first) {
		t.Fatalf("expected end date %v, got %v", first, existing.EndDate)
	}

	// A later finish timestamp must not overwrite the recorded one.
	ev.ObjectAttributes.FinishedAt = &EventTime{Time: first.Add(time.Hour)}
	if err := r.Reconcile(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !existing.EndDate.Equal(first) {
		t.Errorf("end date was overwritten: %v", existing.EndDate)
	}
	if len(store.SavedPipelines) != 1 {
		t.Errorf("expected exactly 1 save, got %d", len(store.SavedPipelines))
	}
}

func TestReconcilePipeline_MatchesAcrossAllVersions(t *testing.T) {
	project := trackedProject()
	// Existing pipeline sits under the release version; the event's ref
	// points at main. The update path must still find it.
	existing := &domain.Pipeline{ID: 5, CIID: 123, Status: domain.StatusInProgress, ProjectVersionID: 11}
	store := &domain.MockStore{
		Projects:  []*domain.Project{project},
		Pipelines: []*domain.Pipeline{existing},
	}
	r := NewPipelineReconciler(zap.NewNop(), store)

	if err := r.Reconcile(context.Background(), pipelineEvent(t, 123, "main", "abc", "def", "failed")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if existing.Status != domain.StatusFailed {
		t.Errorf("expected FAILED, got %s", existing.Status)
	}
	if len(store.SavedPipelines) != 1 {
		t.Errorf("expected 1 update save, got %d", len(store.SavedPipelines))
	}
	if store.SavedPipelines[0].ProjectVersionID != 11 {
		t.Errorf("pipeline must stay attached to version 11, got %d", store.SavedPipelines[0].ProjectVersionID)
	}
}

func TestReconcilePipeline_AmbiguousRefPicksFirstVersion(t *testing.T) {
	project := &domain.Project{ID: 1, RepositoryID: 200}
	project.Versions = []*domain.ProjectVersion{
		{ID: 20, Version: 3, BranchID: "main", ProjectID: 1},
		{ID: 21, Version: 2, BranchID: "main", ProjectID: 1},
	}
	store := &domain.MockStore{Projects: []*domain.Project{project}}
	r := NewPipelineReconciler(zap.NewNop(), store)

	if err := r.Reconcile(context.Background(), pipelineEvent(t, 123, "main", "abc", "def", "created")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.SavedPipelines) != 1 {
		t.Fatalf("expected 1 save, got %d", len(store.SavedPipelines))
	}
	if store.SavedPipelines[0].ProjectVersionID != 20 {
		t.Errorf("expected first matching version 20, got %d", store.SavedPipelines[0].ProjectVersionID)
	}
}
