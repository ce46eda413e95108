package application

import (
	"context"
	"strconv"

	"github.com/davarch/ci-board/internal/domain"
	"go.uber.org/zap"
)

// JobReconciler applies a build event to the persisted model: create-or-
// update keyed by the job's external CI id, attached to the pipeline named
// by the event. An untracked pipeline id ends processing cleanly.
type JobReconciler struct {
	log   *zap.Logger
	store domain.Store
	locks shardedLocks
}

func NewJobReconciler(log *zap.Logger, store domain.Store) *JobReconciler {
	return &JobReconciler{log: log, store: store}
}

func (r *JobReconciler) Reconcile(ctx context.Context, ev *JobEvent) error {
	r.log.Debug("job event",
		zap.Int64("job", ev.BuildID),
		zap.String("status", ev.BuildStatus),
		zap.Int64("pipeline", ev.PipelineID),
		zap.Int64("repository", ev.ProjectID),
	)

	pipeline, err := r.store.PipelineByCIID(ctx, ev.PipelineID)
	if err != nil {
		return err
	}
	if pipeline == nil {
		r.log.Debug("no pipeline for job event", zap.Int64("pipeline", ev.PipelineID))
		return nil
	}

	unlock := r.locks.lock(ev.BuildID)
	defer unlock()

	job, err := r.store.JobByCIID(ctx, ev.BuildID)
	if err != nil {
		return err
	}

	status := domain.StatusFromString(ev.BuildStatus)

	if job != nil {
		// Name is never overwritten on update.
		if job.Status != status {
			job.Status = status
			r.log.Debug("job status updated",
				zap.Int64("job", job.CIID),
				zap.String("status", string(status)),
			)
		}
	} else {
		job = &domain.Job{
			CIID:       ev.BuildID,
			Name:       ev.BuildName,
			Status:     status,
			LogsURL:    ev.Project.WebURL + "/-/jobs/" + strconv.FormatInt(ev.BuildID, 10),
			PipelineID: pipeline.ID,
		}
		r.log.Debug("job created",
			zap.Int64("job", job.CIID),
			zap.Int64("pipeline", pipeline.CIID),
		)
	}

	// Unlike pipeline end dates, job timestamps are overwritten whenever the
	// event carries them.
	if ev.BuildStartedAt != nil && !ev.BuildStartedAt.IsZero() {
		start := ev.BuildStartedAt.UTC()
		job.StartDate = &start
	}
	if ev.BuildFinishedAt != nil && !ev.BuildFinishedAt.IsZero() {
		end := ev.BuildFinishedAt.UTC()
		job.EndDate = &end
	}

	return r.store.SaveJob(ctx, job)
}
