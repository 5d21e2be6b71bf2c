package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the durable attempt log. The cache in front of it holds the
// aggregated Progress view; Postgres keeps the raw per-attempt rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a pgx pool for attempt persistence.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertAttempt appends one attempt row.
func (r *Repository) InsertAttempt(ctx context.Context, userID, tutorialID string, a Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO quiz_attempts
			(user_id, tutorial_id, attempt_number, attempted_at, score, total_questions, difficulty, time_taken_seconds, answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, tutorialID, a.AttemptNumber, a.Timestamp, a.Score, a.TotalQuestions, a.Difficulty, a.TimeTaken, answers,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListAttempts returns all attempts for (user, tutorial) in attempt order.
func (r *Repository) ListAttempts(ctx context.Context, userID, tutorialID string) ([]Attempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT attempt_number, attempted_at, score, total_questions, difficulty, time_taken_seconds, answers
		FROM quiz_attempts
		WHERE user_id = $1 AND tutorial_id = $2
		ORDER BY attempt_number`,
		userID, tutorialID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a       Attempt
			answers []byte
		)
		if err := rows.Scan(&a.AttemptNumber, &a.Timestamp, &a.Score, &a.TotalQuestions, &a.Difficulty, &a.TimeTaken, &answers); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if len(answers) > 0 {
			if err := json.Unmarshal(answers, &a.Answers); err != nil {
				return nil, fmt.Errorf("decode answers: %w", err)
			}
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
