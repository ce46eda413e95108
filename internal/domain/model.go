package domain

import "time"

type Project struct {
	ID            int64
	Name          string
	RepositoryURL string
	RepositoryID  int64
	Versions      []*ProjectVersion
}

type ProjectVersion struct {
	ID        int64
	Version   int
	BranchID  string
	ProjectID int64
	Pipelines []*Pipeline
}

type Pipeline struct {
	ID               int64
	CIID             int64
	SHA1             string
	PreviousSHA1     string
	ChangesURL       string
	Status           Status
	URL              string
	CreatedDate      time.Time
	EndDate          *time.Time
	ProjectVersionID int64
	Jobs             []*Job
}

type Job struct {
	ID         int64
	CIID       int64
	Name       string
	Status     Status
	LogsURL    string
	StartDate  *time.Time
	EndDate    *time.Time
	PipelineID int64
}

type GitLabProject struct {
	ID                int64
	Name              string
	PathWithNamespace string
	WebURL            string
	Visibility        string
	DefaultBranch     string
	Description       string
}

type Branch struct {
	Name     string
	CommitID string
	Default  bool
}
