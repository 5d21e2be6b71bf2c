package assessment

import "math/rand"

// SampleQuestions draws n questions at random without replacement from the
// pool. When the pool holds n or fewer questions the whole pool is returned
// in its stored order. The pool itself is never mutated.
func SampleQuestions(pool Assessment, n int) Assessment {
	if n <= 0 || len(pool.Questions) <= n {
		return Assessment{
			Questions: append([]QuizQuestion(nil), pool.Questions...),
			CachedAt:  pool.CachedAt,
		}
	}

	idx := rand.Perm(len(pool.Questions))
	picked := make([]QuizQuestion, 0, n)
	for _, i := range idx[:n] {
		picked = append(picked, pool.Questions[i])
	}
	return Assessment{Questions: picked, CachedAt: pool.CachedAt}
}
