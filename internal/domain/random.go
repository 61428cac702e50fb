package domain

import "math/rand"

// RandomQuizDuration is the per-question countdown for random-mode games.
const RandomQuizDuration = 20

// DrawRandomQuiz assembles a random-mode quiz from a question bank. Only
// multiple-choice questions qualify; grading a long answer needs an organizer
// and random mode has none.
func DrawRandomQuiz(bank []Question, count int, rnd *rand.Rand) (Quiz, error) {
	eligible := make([]Question, 0, len(bank))
	for _, q := range bank {
		if q.Type == MultipleChoice {
			eligible = append(eligible, q)
		}
	}
	if len(eligible) < count || count <= 0 {
		return Quiz{}, ErrQuizNotFound
	}
	rnd.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	return Quiz{
		ID:        "random",
		Title:     "Random quiz",
		Duration:  RandomQuizDuration,
		Questions: eligible[:count],
	}, nil
}
