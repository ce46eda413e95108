package server_http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/davarch/ci-board/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type eventProcessor interface {
	Process(ctx context.Context, payload []byte) error
}

// Server exposes the webhook endpoint, the dashboard read API and the
// GitLab lookup pass-through.
type Server struct {
	log    *zap.Logger
	events eventProcessor
	store  domain.Store
	gitlab domain.GitlabClient
}

func New(log *zap.Logger, events eventProcessor, store domain.Store, gitlab domain.GitlabClient) *Server {
	return &Server{log: log, events: events, store: store, gitlab: gitlab}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhooks/gitlab", s.handleWebhook)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /gitlab/projects", s.handleGitLabProject)
	mux.HandleFunc("GET /gitlab/projects/branches", s.handleGitLabBranches)
	mux.HandleFunc("GET /gitlab/projects/search", s.handleGitLabSearch)

	return s.withRequestLog(mux)
}

// withRequestLog tags every request with its GitLab delivery id when the
// sender provides one, else a generated one, and logs the request line.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivery := r.Header.Get("X-Gitlab-Event-UUID")
		if delivery == "" {
			delivery = uuid.NewString()
		}

		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("delivery", delivery),
		)

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.log, w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(log *zap.Logger, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("encode response", zap.Error(err))
	}
}
