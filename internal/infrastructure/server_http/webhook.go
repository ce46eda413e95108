package server_http

import (
	"errors"
	"io"
	"net/http"

	"github.com/davarch/ci-board/internal/application"
	"go.uber.org/zap"
)

const maxPayloadBytes = 1 << 20

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusInternalServerError)
		return
	}

	if err := s.events.Process(r.Context(), payload); err != nil {
		var pe *application.EventParsingError
		if errors.As(err, &pe) {
			s.log.Warn("rejected event", zap.Error(pe))
			http.Error(w, "Invalid GitLab event format: "+pe.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.log.Error("event processing failed", zap.Error(err))
		http.Error(w, "Error while processing GitLab event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
