package application

import (
	"context"
	"errors"
	"strconv"

	"github.com/davarch/ci-board/internal/domain"
	"go.uber.org/zap"
)

// PipelineReconciler applies a pipeline event to the persisted model:
// create-or-update keyed by the pipeline's external CI id. Expected "not
// found" conditions (untracked repository, no version for the event's ref)
// end processing cleanly and are only logged.
type PipelineReconciler struct {
	log   *zap.Logger
	store domain.Store
	locks shardedLocks
}

func NewPipelineReconciler(log *zap.Logger, store domain.Store) *PipelineReconciler {
	return &PipelineReconciler{log: log, store: store}
}

func (r *PipelineReconciler) Reconcile(ctx context.Context, ev *PipelineEvent) error {
	attrs := &ev.ObjectAttributes
	r.log.Debug("pipeline event",
		zap.Int64("pipeline", attrs.ID),
		zap.String("status", attrs.Status),
		zap.Int64("repository", ev.Project.ID),
	)

	project, err := r.store.ProjectByRepositoryID(ctx, ev.Project.ID)
	if err != nil {
		return err
	}
	if project == nil {
		r.log.Debug("no project for repository", zap.Int64("repository", ev.Project.ID))
		return nil
	}

	unlock := r.locks.lock(attrs.ID)
	defer unlock()

	// Search across every version of the project: a pipeline already known
	// anywhere under the project must be updated, not recreated.
	pipelines, err := r.store.PipelinesByProject(ctx, project)
	if err != nil {
		return err
	}

	var existing *domain.Pipeline
	for _, p := range pipelines {
		if p.CIID == attrs.ID {
			existing = p
			break
		}
	}

	status := domain.StatusFromString(attrs.Status)

	if existing != nil {
		changed := false
		if existing.Status != status {
			existing.Status = status
			changed = true
			r.log.Debug("pipeline status updated",
				zap.Int64("pipeline", existing.CIID),
				zap.String("status", string(status)),
			)
		}
		// End date is set once and never overwritten.
		if existing.EndDate == nil && attrs.FinishedAt != nil && !attrs.FinishedAt.IsZero() {
			end := attrs.FinishedAt.UTC()
			existing.EndDate = &end
			changed = true
			r.log.Debug("pipeline end date set",
				zap.Int64("pipeline", existing.CIID),
				zap.Time("end", end),
			)
		}
		if !changed {
			return nil
		}
		return r.store.SavePipeline(ctx, existing)
	}

	version := matchVersion(project, attrs.Ref)
	if version == nil {
		r.log.Debug("no version for ref",
			zap.Int64("repository", ev.Project.ID),
			zap.String("ref", attrs.Ref),
		)
		return nil
	}

	if attrs.CreatedAt == nil || attrs.CreatedAt.IsZero() {
		return errors.New("pipeline event has no created_at")
	}

	created := &domain.Pipeline{
		CIID:             attrs.ID,
		SHA1:             attrs.SHA,
		PreviousSHA1:     attrs.BeforeSHA,
		Status:           status,
		URL:              ev.Project.WebURL + "/-/pipelines/" + strconv.FormatInt(attrs.ID, 10),
		CreatedDate:      attrs.CreatedAt.UTC(),
		ProjectVersionID: version.ID,
	}
	if attrs.SHA != "" && attrs.BeforeSHA != "" {
		created.ChangesURL = ev.Project.WebURL + "/-/compare/" + attrs.BeforeSHA + "..." + attrs.SHA
	}

	if err := r.store.SavePipeline(ctx, created); err != nil {
		return err
	}
	r.log.Debug("pipeline created",
		zap.Int64("pipeline", created.CIID),
		zap.Int("version", version.Version),
	)
	return nil
}

// matchVersion returns the first version whose branch ref equals the
// event's ref, in iteration order. Ambiguity between versions sharing a
// branch ref resolves to that first match.
func matchVersion(project *domain.Project, ref string) *domain.ProjectVersion {
	for _, v := range project.Versions {
		if v.BranchID == ref {
			return v
		}
	}
	return nil
}
