package progress

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/learncheck/learncheck/internal/assessment"
	httperrors "github.com/learncheck/learncheck/pkg/http/errors"
)

// HTTPHandler exposes the progress REST endpoints.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs the progress HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "progress_http").Logger(),
	}
}

// HandleGet serves GET /api/v1/progress?user_id=&tutorial_id=.
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	tutorialID := q.Get("tutorial_id")
	if !validIDs(w, userID, tutorialID) {
		return
	}

	p, err := h.svc.GetProgress(r.Context(), userID, tutorialID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("progress lookup failed")
		httperrors.RespondError(w, http.StatusInternalServerError,
			httperrors.ErrCodeProgressFetchFailed, "failed to load progress")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// HandlePost serves POST /api/v1/progress. The body is one attempt; the
// response is the updated aggregate.
func (h *HTTPHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID     string `json:"user_id"`
		TutorialID string `json:"tutorial_id"`
		AttemptInput
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if !validIDs(w, body.UserID, body.TutorialID) {
		return
	}

	p, err := h.svc.SaveProgress(r.Context(), body.UserID, body.TutorialID, body.AttemptInput)
	if err != nil {
		if errors.Is(err, ErrMissingTimestamp) || errors.Is(err, ErrMissingScore) {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidAttempt, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("user_id", body.UserID).Msg("progress save failed")
		httperrors.RespondError(w, http.StatusInternalServerError,
			httperrors.ErrCodeProgressSaveFailed, "failed to save progress")
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func validIDs(w http.ResponseWriter, userID, tutorialID string) bool {
	if !assessment.ValidateID(userID) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidUserID,
			"user_id must be 1-50 alphanumeric, hyphen, or underscore characters", "user_id")
		return false
	}
	if !assessment.ValidateID(tutorialID) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidTutorialID,
			"tutorial_id must be 1-50 alphanumeric, hyphen, or underscore characters", "tutorial_id")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
