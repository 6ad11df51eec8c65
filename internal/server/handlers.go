package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tellergate/tellergate/internal/schema"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"tools":  s.executor.Registry().Len(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	list := []schema.ToolDefinition{}
	for def := range s.executor.Registry().List(category) {
		list = append(list, def)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": list})
}

func (s *Server) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.executor.Registry().Categories(),
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req schema.ExecuteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Failures travel inside the envelope; the transport call itself is OK.
	writeJSON(w, http.StatusOK, s.executor.Execute(r.Context(), req.Tool, req.Parameters))
}

func (s *Server) handleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []schema.ExecuteRequest `json:"requests"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": s.executor.ExecuteBatch(r.Context(), req.Requests),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"userId"`
		SessionID string `json:"sessionId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errBody(schema.NewError(schema.CodeValidation, "userId is required")))
		return
	}

	id, err := s.orch.CreateOrResumeSession(req.UserID, req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sum, err := s.orch.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.CloseSession(chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "closed"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
		Intent  string `json:"intent"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	reply, err := s.orch.Process(r.Context(), chi.URLParam(r, "sessionID"), req.UserID, req.Message, req.Intent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value any `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	reply, err := s.orch.Feedback(r.Context(),
		chi.URLParam(r, "sessionID"), chi.URLParam(r, "executionID"), req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.orch.GetUserSessions(chi.URLParam(r, "userID")),
	})
}

// ---------------------------------------------------------------------------
// Helpers

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errBody(schema.NewError(schema.CodeValidation, "invalid JSON body: %v", err)))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errBody(e *schema.Error) map[string]any {
	return map[string]any{"error": e}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var e *schema.Error
	if !errors.As(err, &e) {
		writeJSON(w, http.StatusInternalServerError,
			errBody(schema.NewError(schema.CodeToolExecution, "%v", err)))
		return
	}

	status := http.StatusBadRequest
	switch e.Code {
	case schema.CodeSessionNotFound, schema.CodeExecutionNotFound, schema.CodeToolNotFound:
		status = http.StatusNotFound
	case schema.CodeTimeout:
		status = http.StatusGatewayTimeout
	case schema.CodeSessionExpired:
		status = http.StatusGone
	default:
		if e.Kind == schema.KindFatal {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, errBody(e))
}
