package handlers

import (
	"encoding/json"
	"net/http"

	"mockmate-backend/internal/services"
)

type CodeHandler struct {
	runner *services.CodeRunner
}

func NewCodeHandler(runner *services.CodeRunner) *CodeHandler {
	return &CodeHandler{runner: runner}
}

// Run executes a code snippet via the external sandbox:
// POST /api/v1/code/run
func (h *CodeHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req services.RunCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
