package server_http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/davarch/ci-board/internal/domain"
	"go.uber.org/zap"
)

type projectView struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	RepositoryURL string        `json:"repositoryUrl"`
	RepositoryID  int64         `json:"repositoryId"`
	Versions      []versionView `json:"versions"`
}

type versionView struct {
	ID        int64          `json:"id"`
	Version   int            `json:"version"`
	BranchID  string         `json:"branchId"`
	Pipelines []pipelineView `json:"pipelines"`
}

type pipelineView struct {
	ID           int64      `json:"id"`
	CIID         int64      `json:"ciId"`
	SHA1         string     `json:"sha1"`
	PreviousSHA1 string     `json:"previousSha1"`
	ChangesURL   string     `json:"changesUrl,omitempty"`
	Status       string     `json:"status"`
	URL          string     `json:"url"`
	CreatedDate  time.Time  `json:"createdDate"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	Jobs         []jobView  `json:"jobs"`
}

type jobView struct {
	ID        int64      `json:"id"`
	CIID      int64      `json:"ciId"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	LogsURL   string     `json:"logsUrl"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.log.Error("list projects", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, mapProjectView(p))
	}
	writeJSON(s.log, w, http.StatusOK, views)
}

type createProjectRequest struct {
	Name          string `json:"name"`
	RepositoryURL string `json:"repositoryUrl"`
	RepositoryID  int64  `json:"repositoryId"`
	Versions      []struct {
		Version  int    `json:"version"`
		BranchID string `json:"branchId"`
	} `json:"versions"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid project payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.RepositoryID == 0 {
		http.Error(w, "name and repositoryId are required", http.StatusBadRequest)
		return
	}

	existing, err := s.store.ProjectByRepositoryID(r.Context(), req.RepositoryID)
	if err != nil {
		s.log.Error("lookup project", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "project with this repositoryId already exists", http.StatusConflict)
		return
	}

	project := &domain.Project{
		Name:          req.Name,
		RepositoryURL: req.RepositoryURL,
		RepositoryID:  req.RepositoryID,
	}
	for _, v := range req.Versions {
		project.Versions = append(project.Versions, &domain.ProjectVersion{
			Version:  v.Version,
			BranchID: v.BranchID,
		})
	}

	if err := s.store.CreateProject(r.Context(), project); err != nil {
		s.log.Error("create project", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.log.Info("project onboarded",
		zap.String("name", project.Name),
		zap.Int64("repository", project.RepositoryID),
		zap.Int("versions", len(project.Versions)),
	)
	writeJSON(s.log, w, http.StatusCreated, mapProjectView(project))
}

func mapProjectView(p *domain.Project) projectView {
	view := projectView{
		ID:            p.ID,
		Name:          p.Name,
		RepositoryURL: p.RepositoryURL,
		RepositoryID:  p.RepositoryID,
		Versions:      make([]versionView, 0, len(p.Versions)),
	}
	for _, v := range p.Versions {
		vv := versionView{
			ID:        v.ID,
			Version:   v.Version,
			BranchID:  v.BranchID,
			Pipelines: make([]pipelineView, 0, len(v.Pipelines)),
		}
		for _, pipe := range v.Pipelines {
			pv := pipelineView{
				ID:           pipe.ID,
				CIID:         pipe.CIID,
				SHA1:         pipe.SHA1,
				PreviousSHA1: pipe.PreviousSHA1,
				ChangesURL:   pipe.ChangesURL,
				Status:       string(pipe.Status),
				URL:          pipe.URL,
				CreatedDate:  pipe.CreatedDate,
				EndDate:      pipe.EndDate,
				Jobs:         make([]jobView, 0, len(pipe.Jobs)),
			}
			for _, j := range pipe.Jobs {
				pv.Jobs = append(pv.Jobs, jobView{
					ID:        j.ID,
					CIID:      j.CIID,
					Name:      j.Name,
					Status:    string(j.Status),
					LogsURL:   j.LogsURL,
					StartDate: j.StartDate,
					EndDate:   j.EndDate,
				})
			}
			vv.Pipelines = append(vv.Pipelines, pv)
		}
		view.Versions = append(view.Versions, vv)
	}
	return view
}
