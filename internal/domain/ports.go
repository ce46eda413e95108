package domain

import "context"

// Store is the persistence collaborator consumed by the reconciliation
// engine and the dashboard read endpoints. Finder methods return nil (not an
// error) when no row matches.
type Store interface {
	ProjectByRepositoryID(ctx context.Context, repositoryID int64) (*Project, error)
	PipelinesByProject(ctx context.Context, project *Project) ([]*Pipeline, error)
	PipelineByCIID(ctx context.Context, ciID int64) (*Pipeline, error)
	JobByCIID(ctx context.Context, ciID int64) (*Job, error)
	SavePipeline(ctx context.Context, p *Pipeline) error
	SaveJob(ctx context.Context, j *Job) error

	CreateProject(ctx context.Context, p *Project) error
	CreateVersion(ctx context.Context, v *ProjectVersion) error
	ListProjects(ctx context.Context) ([]*Project, error)
}

// GitlabClient is the GitLab read API used for project and branch lookups.
// It plays no part in webhook processing.
type GitlabClient interface {
	Project(ctx context.Context, path string) (GitLabProject, error)
	Branches(ctx context.Context, projectID int64) ([]Branch, error)
	SearchProjects(ctx context.Context, pattern string) ([]GitLabProject, error)
}
