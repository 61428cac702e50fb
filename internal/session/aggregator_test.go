package session

import (
	"testing"

	"quizroom/internal/domain"
)

func choiceQuestion() domain.Question {
	return domain.Question{
		ID:     "q1",
		Text:   "Pick one",
		Type:   domain.MultipleChoice,
		Points: 20,
		Choices: []domain.Choice{
			{Text: "a"},
			{Text: "b", Correct: true},
			{Text: "c"},
			{Text: "d"},
		},
	}
}

func TestHistogramCountsSelections(t *testing.T) {
	agg := NewAnswerAggregator(nil)
	agg.Reset(choiceQuestion())

	if err := agg.SubmitChoices("alice", []int{1}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := agg.SubmitChoices("bob", []int{0}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	counts := agg.Histogram()
	want := []int{1, 1, 0, 0}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("histogram mismatch at %d: got %v", i, counts)
		}
	}
}

func TestPercentagesZeroDenominator(t *testing.T) {
	agg := NewAnswerAggregator(nil)
	agg.Reset(choiceQuestion())

	sum := 0.0
	for _, pct := range agg.Percentages() {
		sum += pct
	}
	if sum != 0 {
		t.Fatalf("expected all-zero percentages with no respondents, sum=%v", sum)
	}
}

func TestPercentagesSumToHundred(t *testing.T) {
	agg := NewAnswerAggregator(nil)
	agg.Reset(choiceQuestion())
	_ = agg.SubmitChoices("alice", []int{1})
	_ = agg.SubmitChoices("bob", []int{2})

	sum := 0.0
	for _, pct := range agg.Percentages() {
		sum += pct
	}
	if sum < 99.9 || sum > 100.1 {
		t.Fatalf("expected percentages summing to ~100, got %v", sum)
	}
}

func TestSubmitOverwritesPendingOnly(t *testing.T) {
	agg := NewAnswerAggregator(nil)
	agg.Reset(choiceQuestion())

	_ = agg.SubmitChoices("alice", []int{0})
	_ = agg.SubmitChoices("alice", []int{1, 1, 2})
	counts := agg.Histogram()
	if counts[0] != 0 || counts[1] != 1 || counts[2] != 1 {
		t.Fatalf("expected overwrite with dedupe, got %v", counts)
	}

	if err := agg.Finalize("alice"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := agg.SubmitChoices("alice", []int{3}); err == nil {
		t.Fatalf("expected submit after finalize to be rejected")
	}
}

func TestFinalizeRejectsEmptyChoiceSelection(t *testing.T) {
	agg := NewAnswerAggregator(nil)
	agg.Reset(choiceQuestion())

	if err := agg.Finalize("alice"); err == nil {
		t.Fatalf("expected empty multiple-choice finalize to be rejected")
	}
}

func TestSubmitRejectsOutOfRangeIndex(t *testing.T) {
	agg := NewAnswerAggregator(nil)
	agg.Reset(choiceQuestion())

	if err := agg.SubmitChoices("alice", []int{4}); err == nil {
		t.Fatalf("expected out-of-range index to be rejected")
	}
	if err := agg.SubmitChoices("alice", []int{-1}); err == nil {
		t.Fatalf("expected negative index to be rejected")
	}
}

func TestLongAnswersSortedCaseSensitively(t *testing.T) {
	agg := NewAnswerAggregator(nil)
	agg.Reset(domain.Question{ID: "q2", Type: domain.LongAnswer, Points: 10})

	_ = agg.SubmitText("zoe", "last")
	_ = agg.SubmitText("Bob", "first")
	_ = agg.SubmitText("alice", "middle")

	views := agg.LongAnswers()
	got := make([]string, len(views))
	for i, v := range views {
		got[i] = v.Name
	}
	// Uppercase sorts before lowercase in a case-sensitive order.
	want := []string{"Bob", "alice", "zoe"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestLongAnswerFinalizeWithoutTextIsAccepted(t *testing.T) {
	agg := NewAnswerAggregator(nil)
	agg.Reset(domain.Question{ID: "q2", Type: domain.LongAnswer, Points: 10})

	if err := agg.Finalize("alice"); err != nil {
		t.Fatalf("long-answer finalize without text should be accepted: %v", err)
	}
	if !agg.HasFinalized("alice") {
		t.Fatalf("expected alice finalized")
	}
	if got := agg.Respondents(); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("expected alice as respondent, got %v", got)
	}
}
