package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/vera/internal/interview"
)

type startInterviewRequest struct {
	RoleID string `json:"role_id"`
}

func (s *Server) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.RoleID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "role_id is required")
		return
	}

	result, err := s.interviews.Start(r.Context(), req.RoleID)
	if err != nil {
		respondInterviewError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.interviews.List(r.Context())
	if err != nil {
		respondInterviewError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.interviews.Get(r.Context(), id)
	if err != nil {
		respondInterviewError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

type submitAnswerRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req submitAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "empty_answer", "answer is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.interviews.SubmitAnswer(r.Context(), id, req.Answer)
	if err != nil {
		respondInterviewError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type endInterviewResponse struct {
	Session    *interview.Session    `json:"session"`
	Evaluation *interview.Evaluation `json:"evaluation"`
}

func (s *Server) handleEndInterview(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	result, err := s.interviews.End(r.Context(), id)
	if err != nil {
		respondInterviewError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, endInterviewResponse{
		Session:    result.Session,
		Evaluation: result.Evaluation,
	})
}

func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	eval, err := s.interviews.EvaluationFor(r.Context(), id)
	if err != nil {
		respondInterviewError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, eval)
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return "", false
	}
	return id, true
}
