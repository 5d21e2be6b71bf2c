package cache

import "fmt"

// All cache keys live under the learncheck: namespace except job results,
// which keep their own prefix so retrieval never depends on queue retention.

// QuizPoolKey holds the full generated question pool for one tutorial.
func QuizPoolKey(tutorialID string) string {
	return fmt.Sprintf("learncheck:quiz:pool:%s", tutorialID)
}

// ActiveSessionKey holds the sampled questions currently shown to one user.
func ActiveSessionKey(tutorialID, userID string) string {
	return fmt.Sprintf("learncheck:session:%s:%s", tutorialID, userID)
}

// PreferencesKey caches upstream user preferences.
func PreferencesKey(userID string) string {
	return fmt.Sprintf("learncheck:prefs:user:%s", userID)
}

// RateLimitKey is the per-user generation request counter.
func RateLimitKey(userID string) string {
	return fmt.Sprintf("learncheck:ratelimit:%s", userID)
}

// GenerationLockKey guards pool generation so concurrent cold requests for
// one tutorial do not all hit the question generator.
func GenerationLockKey(tutorialID string) string {
	return fmt.Sprintf("learncheck:lock:generation:%s", tutorialID)
}

// ProgressKey caches per-(user,tutorial) attempt progress.
func ProgressKey(userID, tutorialID string) string {
	return fmt.Sprintf("learncheck:progress:%s:%s", userID, tutorialID)
}

// JobResultKey stores the durable outcome of a generation job.
func JobResultKey(tutorialID, userID string) string {
	return fmt.Sprintf("assessment:%s:%s", tutorialID, userID)
}
