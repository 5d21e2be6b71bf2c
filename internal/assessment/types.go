package assessment

import (
	"encoding/json"
	"fmt"
	"time"
)

// PregenerateUserID is the sentinel user for pool-warming jobs.
const PregenerateUserID = "system-pregenerate"

// QuizOption is one selectable answer.
type QuizOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuizQuestion is a single multiple-choice question with its answer key.
type QuizQuestion struct {
	ID              string       `json:"id"`
	QuestionText    string       `json:"questionText"`
	Options         []QuizOption `json:"options"`
	CorrectOptionID string       `json:"correctOptionId"`
	Explanation     string       `json:"explanation"`
}

// Assessment is a set of generated questions. The full pool (tutorial-scoped,
// shared by all users) and the per-user 3-question sample use the same shape.
type Assessment struct {
	Questions []QuizQuestion `json:"questions"`
	CachedAt  string         `json:"cachedAt,omitempty"`
}

// UserPreferences are display settings fetched from the profile upstream.
type UserPreferences struct {
	Theme       string `json:"theme"`
	FontSize    string `json:"fontSize"`
	FontStyle   string `json:"fontStyle"`
	LayoutWidth string `json:"layoutWidth"`
}

// DefaultPreferences is served when the profile upstream is unreachable.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Theme:       "light",
		FontSize:    "medium",
		FontStyle:   "default",
		LayoutWidth: "standard",
	}
}

// AssessmentResponse is the payload delivered to the widget.
type AssessmentResponse struct {
	Assessment      Assessment      `json:"assessment"`
	UserPreferences UserPreferences `json:"userPreferences"`
	FromCache       bool            `json:"fromCache"`
}

// AcceptedResponse signals the client to poll; it is not an error.
type AcceptedResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	JobID      string `json:"jobId"`
	TutorialID string `json:"tutorialId"`
	UserID     string `json:"userId"`
}

// JobPayload is the unit of queued generation work.
type JobPayload struct {
	TutorialID string `json:"tutorialId"`
	UserID     string `json:"userId"`
	SkipCache  bool   `json:"skipCache"`
}

// JobID is the deterministic deduplication key for a user's request.
func JobID(userID, tutorialID string) string {
	return fmt.Sprintf("%s-%s", userID, tutorialID)
}

// PregenerateJobID keys pool-warming jobs so repeated prepare calls for one
// tutorial collapse onto a single job.
func PregenerateJobID(tutorialID string) string {
	return fmt.Sprintf("pregenerate-%s", tutorialID)
}

// TutorialContent is what the content provider returns for one tutorial.
type TutorialContent struct {
	TutorialID string `json:"tutorialId"`
	Content    string `json:"content"`
	RawContent string `json:"rawContent"`
}

// JobResult is the durable outcome of a generation job, persisted under the
// job-result key independently of queue bookkeeping. It is a closed union:
// JobCompleted or JobFailed.
type JobResult interface {
	jobResult()
}

// JobCompleted carries the generated response.
type JobCompleted struct {
	Data        AssessmentResponse
	CompletedAt time.Time
}

// JobFailed carries the terminal error message from the last attempt.
type JobFailed struct {
	Message  string
	FailedAt time.Time
}

func (JobCompleted) jobResult() {}
func (JobFailed) jobResult()    {}

type jobResultEnvelope struct {
	Status      string              `json:"status"`
	Data        *AssessmentResponse `json:"data,omitempty"`
	CompletedAt string              `json:"completedAt,omitempty"`
	Error       string              `json:"error,omitempty"`
	FailedAt    string              `json:"failedAt,omitempty"`
}

// EncodeJobResult serializes a JobResult for the result store.
func EncodeJobResult(r JobResult) ([]byte, error) {
	switch v := r.(type) {
	case JobCompleted:
		data := v.Data
		return json.Marshal(jobResultEnvelope{
			Status:      "completed",
			Data:        &data,
			CompletedAt: v.CompletedAt.UTC().Format(time.RFC3339),
		})
	case JobFailed:
		return json.Marshal(jobResultEnvelope{
			Status:   "failed",
			Error:    v.Message,
			FailedAt: v.FailedAt.UTC().Format(time.RFC3339),
		})
	default:
		return nil, fmt.Errorf("unknown job result type %T", r)
	}
}

// DecodeJobResult parses a stored JobResult.
func DecodeJobResult(data []byte) (JobResult, error) {
	var env jobResultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}
	switch env.Status {
	case "completed":
		if env.Data == nil {
			return nil, fmt.Errorf("completed job result missing data")
		}
		at, _ := time.Parse(time.RFC3339, env.CompletedAt)
		return JobCompleted{Data: *env.Data, CompletedAt: at}, nil
	case "failed":
		at, _ := time.Parse(time.RFC3339, env.FailedAt)
		return JobFailed{Message: env.Error, FailedAt: at}, nil
	default:
		return nil, fmt.Errorf("unknown job result status %q", env.Status)
	}
}
