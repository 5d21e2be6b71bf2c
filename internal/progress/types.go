package progress

// Answer records one answered question within an attempt.
type Answer struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
	IsCorrect        bool   `json:"is_correct"`
}

// Attempt is one completed quiz run.
type Attempt struct {
	AttemptNumber  int      `json:"attempt_number"`
	Timestamp      string   `json:"timestamp"`
	Score          float64  `json:"score"`
	TotalQuestions int      `json:"total_questions"`
	Difficulty     string   `json:"difficulty"`
	TimeTaken      int      `json:"time_taken,omitempty"`
	Answers        []Answer `json:"answers"`
}

// Progress aggregates a user's attempt history for one tutorial.
type Progress struct {
	UserID        string    `json:"user_id"`
	TutorialID    string    `json:"tutorial_id"`
	Attempts      []Attempt `json:"attempts"`
	TotalAttempts int       `json:"total_attempts"`
	AverageScore  string    `json:"average_score"`
	BestScore     float64   `json:"best_score"`
	LastAttempt   string    `json:"last_attempt,omitempty"`

	// NextDifficulty is the adaptive recommendation for the user's next
	// quiz on this tutorial, derived from recent scores.
	NextDifficulty string `json:"next_difficulty"`
}

// AttemptInput is the client-submitted portion of an attempt.
type AttemptInput struct {
	Timestamp      string   `json:"timestamp"`
	Score          *float64 `json:"score"`
	TotalQuestions int      `json:"total_questions"`
	Difficulty     string   `json:"difficulty"`
	TimeTaken      int      `json:"time_taken"`
	Answers        []Answer `json:"answers"`
}
