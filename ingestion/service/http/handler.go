package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"cchain/chain"
	core "cchain/ingestion/service/core"
)

// CommitHandler encapsulates the logic for handling HTTP commit requests.
type CommitHandler struct {
	svc    *core.Service
	logger *log.Logger
}

// NewCommitHandler creates a new CommitHandler.
func NewCommitHandler(s *core.Service, l *log.Logger) *CommitHandler {
	return &CommitHandler{svc: s, logger: l}
}

// SubmitCommit handles POST /v1/commits requests.
func (h *CommitHandler) SubmitCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		h.respondError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	if r.ContentLength > 1*1024*1024 { // 1MB limit
		h.respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	var reqPayload struct {
		Type    string `json:"type"`
		Message string `json:"message,omitempty"`
		User    string `json:"user,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&reqPayload); err != nil {
		h.logger.Printf("HTTP Handler: Failed to parse JSON request: %v", err)
		h.respondError(w, "Bad Request: Invalid JSON format", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if reqPayload.Type == "" {
		h.respondError(w, "type is required", http.StatusBadRequest)
		return
	}

	// User may also arrive from an upstream auth proxy.
	user := r.Header.Get("X-Commit-User")
	if user == "" {
		user = reqPayload.User
	}

	input := &core.CommitInput{
		Type:    reqPayload.Type,
		Message: reqPayload.Message,
		User:    user,
	}

	result, err := h.svc.SubmitCommit(r.Context(), input)
	if err != nil {
		h.logger.Printf("HTTP Handler: Service layer processing failed: %v", err)

		statusCode := http.StatusInternalServerError
		switch {
		case err.Error() == "commit type cannot be empty":
			statusCode = http.StatusBadRequest
		case errors.Is(err, chain.ErrTailMoved):
			statusCode = http.StatusConflict
		}

		h.respondError(w, err.Error(), statusCode)
		return
	}

	respPayload := map[string]interface{}{
		"request_id": result.RequestID,
		"hash":       result.Hash,
		"prev":       result.Prev,
		"user":       result.User,
		"timestamp":  result.Timestamp,
		"status":     "RECORDED",
	}

	h.respondJSON(w, respPayload, http.StatusCreated)
}

// VerifyChain handles GET /v1/commits/verify requests. With ?all=true it
// collects every inconsistency instead of stopping at the first one.
func (h *CommitHandler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Query().Get("all") == "true" {
		breaks, err := h.svc.VerifyChainAll(r.Context())
		if err != nil {
			h.logger.Printf("HTTP Handler: VerifyChainAll failed: %v", err)
			h.respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.respondJSON(w, map[string]interface{}{
			"valid":  len(breaks) == 0,
			"breaks": breaks,
		}, http.StatusOK)
		return
	}

	result, err := h.svc.VerifyChain(r.Context())
	if err != nil {
		h.logger.Printf("HTTP Handler: VerifyChain failed: %v", err)
		h.respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, result, http.StatusOK)
}

// ChainStats handles GET /v1/commits/stats requests.
func (h *CommitHandler) ChainStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.svc.ChainStats(r.Context())
	if err != nil {
		h.logger.Printf("HTTP Handler: ChainStats failed: %v", err)
		h.respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, stats, http.StatusOK)
}

// HealthCheck handles GET /health requests.
func (h *CommitHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"service":   "commit-gateway",
	}

	h.respondJSON(w, resp, http.StatusOK)
}

// respondJSON sends a JSON response.
func (h *CommitHandler) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("HTTP Handler: Failed to encode JSON response: %v", err)
		// Cannot send error to client at this point
	}
}

// respondError sends an error response.
func (h *CommitHandler) respondError(w http.ResponseWriter, message string, statusCode int) {
	errorResp := map[string]interface{}{
		"error":   message,
		"status":  statusCode,
		"message": http.StatusText(statusCode),
	}

	h.respondJSON(w, errorResp, statusCode)
}
