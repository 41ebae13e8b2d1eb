package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mockmate-backend/internal/middleware"
	"mockmate-backend/internal/models"
	"mockmate-backend/internal/services"
)

type InterviewHandler struct {
	interviews *services.InterviewService
	feedback   *services.FeedbackService
}

func NewInterviewHandler(interviews *services.InterviewService, feedback *services.FeedbackService) *InterviewHandler {
	return &InterviewHandler{interviews: interviews, feedback: feedback}
}

// Start begins (or resumes) a round: POST /api/v1/interviews/start
func (h *InterviewHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.StartRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	resp, err := h.interviews.StartRound(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Submit scores a round's answers: POST /api/v1/interviews/submit
func (h *InterviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.SubmitRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	resp, err := h.interviews.SubmitRound(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// StartNew cancels the active session: POST /api/v1/interviews/start-new
func (h *InterviewHandler) StartNew(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	cancelled, err := h.interviews.StartNew(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled": cancelled,
	})
}

// Results returns one session with its feedback:
// GET /api/v1/interviews/results/{sessionId}
func (h *InterviewHandler) Results(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID := chi.URLParam(r, "sessionId")

	session, feedback, err := h.interviews.GetResults(r.Context(), userID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":  session,
		"feedback": feedback,
	})
}

// UserResults lists all of the caller's sessions:
// GET /api/v1/interviews/results
func (h *InterviewHandler) UserResults(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessions, err := h.interviews.ListResults(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*models.InterviewSession{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// Progress summarizes the active session: GET /api/v1/interviews/progress
func (h *InterviewHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	progress, err := h.interviews.GetProgress(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// No active session is a normal state, not a 404.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"progress": progress,
	})
}

// Feedback returns the feedback snapshot, or {"feedback": null} when it has
// not been generated yet: GET /api/v1/interviews/feedback?sessionId=
func (h *InterviewHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "sessionId is required", r))
		return
	}

	feedback, err := h.feedback.GetBySessionID(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if feedback != nil && feedback.UserID != userID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Interview session not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feedback": feedback,
	})
}
