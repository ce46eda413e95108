package server_http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/davarch/ci-board/internal/domain"
	"github.com/davarch/ci-board/internal/infrastructure/gitlab_http"
	"go.uber.org/zap"
)

type gitlabProjectView struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"pathWithNamespace"`
	WebURL            string `json:"webUrl"`
	Visibility        string `json:"visibility,omitempty"`
	DefaultBranch     string `json:"defaultBranch,omitempty"`
	Description       string `json:"description,omitempty"`
}

type branchView struct {
	Name     string `json:"name"`
	CommitID string `json:"commitId,omitempty"`
	Default  bool   `json:"default"`
}

func mapGitLabProjectView(p domain.GitLabProject) gitlabProjectView {
	return gitlabProjectView{
		ID:                p.ID,
		Name:              p.Name,
		PathWithNamespace: p.PathWithNamespace,
		WebURL:            p.WebURL,
		Visibility:        p.Visibility,
		DefaultBranch:     p.DefaultBranch,
		Description:       p.Description,
	}
}

func (s *Server) handleGitLabProject(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "Missing 'path' query parameter", http.StatusBadRequest)
		return
	}

	project, err := s.gitlab.Project(r.Context(), path)
	if err != nil {
		s.gitlabError(w, err, "fetch project", zap.String("path", path))
		return
	}
	writeJSON(s.log, w, http.StatusOK, mapGitLabProjectView(project))
}

func (s *Server) handleGitLabBranches(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Missing or invalid 'id' query parameter", http.StatusBadRequest)
		return
	}

	branches, err := s.gitlab.Branches(r.Context(), id)
	if err != nil {
		s.gitlabError(w, err, "fetch branches", zap.Int64("id", id))
		return
	}
	views := make([]branchView, 0, len(branches))
	for _, b := range branches {
		views = append(views, branchView{Name: b.Name, CommitID: b.CommitID, Default: b.Default})
	}
	writeJSON(s.log, w, http.StatusOK, views)
}

func (s *Server) handleGitLabSearch(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		http.Error(w, "Missing 'pattern' query parameter", http.StatusBadRequest)
		return
	}

	projects, err := s.gitlab.SearchProjects(r.Context(), pattern)
	if err != nil {
		s.gitlabError(w, err, "search projects", zap.String("pattern", pattern))
		return
	}
	views := make([]gitlabProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, mapGitLabProjectView(p))
	}
	writeJSON(s.log, w, http.StatusOK, views)
}

// gitlabError maps GitLab API failures onto this service's responses:
// upstream 404 stays a 404, auth failures become 403, anything else a 500.
func (s *Server) gitlabError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	s.log.Error(msg, append(fields, zap.Error(err))...)

	var apiErr *gitlab_http.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		case http.StatusUnauthorized, http.StatusForbidden:
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
