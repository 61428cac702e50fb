package memory

import (
	"context"
	"testing"
	"time"

	"quizroom/internal/domain"
)

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:       "quiz-1",
			Title:    "Sample",
			Duration: 30,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Text:   "What is 2 + 2?",
					Type:   domain.MultipleChoice,
					Points: 10,
					Choices: []domain.Choice{
						{Text: "3"},
						{Text: "4", Correct: true},
						{Text: "5"},
					},
				},
				{
					ID:     "q2",
					Text:   "Pick blue",
					Type:   domain.MultipleChoice,
					Points: 10,
					Choices: []domain.Choice{
						{Text: "blue", Correct: true},
						{Text: "red"},
					},
				},
				{ID: "q3", Text: "Explain", Type: domain.LongAnswer, Points: 20},
			},
		},
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func TestQuizRepositoryCachesWithTTL(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(sampleQuizzes())}
	repo := NewQuizRepository(loader, 5*time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected one loader hit, got %d", loader.calls)
	}
}

func TestQuizRepositoryUnknownQuiz(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "nope"); err == nil {
		t.Fatalf("expected unknown quiz to fail")
	}
}

func TestRandomQuizDrawsOnlyMultipleChoice(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(sampleQuizzes()), time.Minute)

	quiz, err := repo.RandomQuiz(context.Background(), 2)
	if err != nil {
		t.Fatalf("random quiz: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(quiz.Questions))
	}
	for _, q := range quiz.Questions {
		if q.Type != domain.MultipleChoice {
			t.Fatalf("long-answer question drawn into random mode: %+v", q)
		}
	}
	if quiz.Duration != domain.RandomQuizDuration {
		t.Fatalf("unexpected duration %d", quiz.Duration)
	}

	// The bank holds only two eligible questions; asking for more must fail.
	if _, err := repo.RandomQuiz(context.Background(), 3); err == nil {
		t.Fatalf("expected draw beyond bank size to fail")
	}
}
