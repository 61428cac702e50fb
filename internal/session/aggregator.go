package session

import (
	"sort"
	"time"

	"quizroom/internal/domain"
)

// SubmissionRecord holds one participant's answer for the current question.
type SubmissionRecord struct {
	Choices     []int
	Text        string
	Finalized   bool
	SubmittedAt time.Time
}

// AnswerAggregator collects submissions for the current question only and
// derives the selection histogram. It is owned by the session worker and
// needs no locking.
type AnswerAggregator struct {
	question domain.Question
	records  map[string]*SubmissionRecord
	clock    func() time.Time
}

func NewAnswerAggregator(clock func() time.Time) *AnswerAggregator {
	if clock == nil {
		clock = time.Now
	}
	return &AnswerAggregator{
		records: make(map[string]*SubmissionRecord),
		clock:   clock,
	}
}

// Reset clears all submissions and binds the aggregator to a new question.
func (a *AnswerAggregator) Reset(q domain.Question) {
	a.question = q
	a.records = make(map[string]*SubmissionRecord)
}

// SubmitChoices records or overwrites a pending multiple-choice selection.
func (a *AnswerAggregator) SubmitChoices(name string, choices []int) error {
	if a.question.Type != domain.MultipleChoice {
		return domain.ErrInvalidSubmission
	}
	for _, idx := range choices {
		if idx < 0 || idx >= len(a.question.Choices) {
			return domain.ErrInvalidSubmission
		}
	}
	rec := a.record(name)
	if rec.Finalized {
		return domain.ErrInvalidSubmission
	}
	rec.Choices = dedupe(choices)
	rec.SubmittedAt = a.clock()
	return nil
}

// SubmitText records or overwrites a pending free-text answer.
func (a *AnswerAggregator) SubmitText(name, text string) error {
	if a.question.Type != domain.LongAnswer {
		return domain.ErrInvalidSubmission
	}
	rec := a.record(name)
	if rec.Finalized {
		return domain.ErrInvalidSubmission
	}
	rec.Text = text
	rec.SubmittedAt = a.clock()
	return nil
}

// Finalize marks a submission irrevocable. A multiple-choice finalize with no
// selection is rejected. Finalizing twice is accepted and changes nothing.
func (a *AnswerAggregator) Finalize(name string) error {
	rec, ok := a.records[name]
	if a.question.Type == domain.MultipleChoice {
		if !ok || len(rec.Choices) == 0 {
			return domain.ErrInvalidSubmission
		}
	}
	if !ok {
		rec = a.record(name)
		rec.SubmittedAt = a.clock()
	}
	rec.Finalized = true
	return nil
}

// HasFinalized reports whether the named participant locked in an answer.
func (a *AnswerAggregator) HasFinalized(name string) bool {
	rec, ok := a.records[name]
	return ok && rec.Finalized
}

// Records returns the raw submissions, finalized or pending.
func (a *AnswerAggregator) Records() map[string]*SubmissionRecord {
	return a.records
}

// Histogram returns, per choice, how many participants selected it.
func (a *AnswerAggregator) Histogram() []int {
	counts := make([]int, len(a.question.Choices))
	for _, rec := range a.records {
		for _, idx := range rec.Choices {
			counts[idx]++
		}
	}
	return counts
}

// Percentages converts the histogram to per-choice shares of respondents.
// With no respondents every share is zero rather than NaN.
func (a *AnswerAggregator) Percentages() []float64 {
	counts := a.Histogram()
	pct := make([]float64, len(counts))
	respondents := 0
	for _, rec := range a.records {
		if len(rec.Choices) > 0 {
			respondents++
		}
	}
	if respondents == 0 {
		return pct
	}
	for i, c := range counts {
		pct[i] = float64(c) / float64(respondents) * 100
	}
	return pct
}

// LongAnswers returns the free-text submissions sorted by participant name
// (case-sensitive) so the organizer grades in a stable order.
func (a *AnswerAggregator) LongAnswers() []domain.LongAnswerView {
	views := make([]domain.LongAnswerView, 0, len(a.records))
	for name, rec := range a.records {
		views = append(views, domain.LongAnswerView{Name: name, Text: rec.Text})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}

// Respondents returns the sorted names holding a submission record, i.e. the
// set an evaluation must cover exactly.
func (a *AnswerAggregator) Respondents() []string {
	names := make([]string, 0, len(a.records))
	for name := range a.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *AnswerAggregator) record(name string) *SubmissionRecord {
	rec, ok := a.records[name]
	if !ok {
		rec = &SubmissionRecord{}
		a.records[name] = rec
	}
	return rec
}

func dedupe(choices []int) []int {
	seen := make(map[int]bool, len(choices))
	out := make([]int, 0, len(choices))
	for _, c := range choices {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
