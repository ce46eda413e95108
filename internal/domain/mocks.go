package domain

import (
	"context"
)

type MockStore struct {
	Projects  []*Project
	Pipelines []*Pipeline
	Jobs      []*Job

	SavedPipelines []*Pipeline
	SavedJobs      []*Job

	Err error
}

func (s *MockStore) ProjectByRepositoryID(_ context.Context, repositoryID int64) (*Project, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, p := range s.Projects {
		if p.RepositoryID == repositoryID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *MockStore) PipelinesByProject(_ context.Context, project *Project) ([]*Pipeline, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	versions := make(map[int64]bool, len(project.Versions))
	for _, v := range project.Versions {
		versions[v.ID] = true
	}
	var out []*Pipeline
	for _, p := range s.Pipelines {
		if versions[p.ProjectVersionID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MockStore) PipelineByCIID(_ context.Context, ciID int64) (*Pipeline, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, p := range s.Pipelines {
		if p.CIID == ciID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *MockStore) JobByCIID(_ context.Context, ciID int64) (*Job, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, j := range s.Jobs {
		if j.CIID == ciID {
			return j, nil
		}
	}
	return nil, nil
}

func (s *MockStore) SavePipeline(_ context.Context, p *Pipeline) error {
	if s.Err != nil {
		return s.Err
	}
	s.SavedPipelines = append(s.SavedPipelines, p)
	return nil
}

func (s *MockStore) SaveJob(_ context.Context, j *Job) error {
	if s.Err != nil {
		return s.Err
	}
	s.SavedJobs = append(s.SavedJobs, j)
	return nil
}

func (s *MockStore) CreateProject(_ context.Context, p *Project) error {
	if s.Err != nil {
		return s.Err
	}
	s.Projects = append(s.Projects, p)
	return nil
}

func (s *MockStore) CreateVersion(_ context.Context, v *ProjectVersion) error {
	if s.Err != nil {
		return s.Err
	}
	for _, p := range s.Projects {
		if p.ID == v.ProjectID {
			p.Versions = append(p.Versions, v)
		}
	}
	return nil
}

func (s *MockStore) ListProjects(_ context.Context) ([]*Project, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Projects, nil
}

type MockGitLab struct {
	Proj     GitLabProject
	Projects []GitLabProject
	Branch   []Branch
	Err      error
	Called   int
}

func (m *MockGitLab) Project(_ context.Context, path string) (GitLabProject, error) {
	m.Called++
	if m.Err != nil {
		return GitLabProject{}, m.Err
	}
	return m.Proj, nil
}

func (m *MockGitLab) Branches(_ context.Context, projectID int64) ([]Branch, error) {
	m.Called++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Branch, nil
}

func (m *MockGitLab) SearchProjects(_ context.Context, pattern string) ([]GitLabProject, error) {
	m.Called++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Projects, nil
}
