package assessment

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	httperrors "github.com/learncheck/learncheck/pkg/http/errors"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// ValidateID checks a tutorial/user identifier: alphanumeric plus hyphen and
// underscore, 1-50 chars, and never the literal "admin".
func ValidateID(id string) bool {
	if !idPattern.MatchString(id) {
		return false
	}
	return strings.ToLower(id) != "admin"
}

// HTTPHandler exposes the assessment REST endpoints.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs the assessment HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "assessment_http").Logger(),
	}
}

// HandleGetAssessment serves GET /api/v1/assessment.
// Query: tutorial_id, user_id, fresh=true, new_session=true.
func (h *HTTPHandler) HandleGetAssessment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tutorialID := q.Get("tutorial_id")
	userID := q.Get("user_id")

	if !ValidateID(tutorialID) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidTutorialID,
			"tutorial_id must be 1-50 alphanumeric, hyphen, or underscore characters", "tutorial_id")
		return
	}
	if !ValidateID(userID) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidUserID,
			"user_id must be 1-50 alphanumeric, hyphen, or underscore characters", "user_id")
		return
	}

	opts := RequestOptions{
		SkipCache:  q.Get("fresh") == "true",
		NewSession: q.Get("new_session") == "true",
	}

	outcome, err := h.svc.GetOrCreateAssessment(r.Context(), tutorialID, userID, opts)
	if err != nil {
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			httperrors.RespondRateLimited(w,
				"Too many quiz requests. Please try again in a minute.",
				int(rateErr.RetryAfter.Seconds()))
			return
		}
		h.logger.Error().Err(err).Str("tutorial_id", tutorialID).Msg("assessment request failed")
		httperrors.RespondInternalError(w, "failed to process assessment request")
		return
	}

	switch {
	case outcome.Ready != nil:
		respondJSON(w, http.StatusOK, outcome.Ready)
	case outcome.Accepted != nil:
		respondJSON(w, http.StatusAccepted, outcome.Accepted)
	case outcome.Failed != nil:
		httperrors.RespondRetryable(w, http.StatusInternalServerError,
			httperrors.ErrCodeGenerationFailed, outcome.Failed.Message)
	default:
		httperrors.RespondInternalError(w, "empty orchestrator outcome")
	}
}

// HandlePrepare serves POST /api/v1/assessment/prepare. Fire-and-forget pool
// warming; always 202 for valid input.
func (h *HTTPHandler) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TutorialID string `json:"tutorial_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if !ValidateID(body.TutorialID) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidTutorialID,
			"tutorial_id must be 1-50 alphanumeric, hyphen, or underscore characters", "tutorial_id")
		return
	}

	h.svc.PrepareAssessment(r.Context(), body.TutorialID)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message":     "Quiz generation started in background",
		"tutorial_id": body.TutorialID,
	})
}

// HandleGetPreferences serves GET /api/v1/preferences?user_id=.
func (h *HTTPHandler) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if !ValidateID(userID) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidUserID,
			"user_id must be 1-50 alphanumeric, hyphen, or underscore characters", "user_id")
		return
	}

	prefs := h.svc.GetUserPreferences(r.Context(), userID)
	respondJSON(w, http.StatusOK, map[string]UserPreferences{"userPreferences": prefs})
}

// HandleFeedback serves POST /api/v1/assessment/feedback.
func (h *HTTPHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Question == "" || req.SelectedOption == "" || req.CorrectOption == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField,
			"question, selectedOption, and correctOption are required")
		return
	}

	feedback, err := h.svc.GenerateFeedback(r.Context(), req)
	if err != nil {
		h.logger.Error().Err(err).Msg("feedback generation failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeFeedbackFailed,
			"failed to generate answer feedback")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"feedback": feedback})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
