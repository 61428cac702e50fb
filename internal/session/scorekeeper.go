package session

import (
	"math"
	"sort"

	"quizroom/internal/domain"
)

// ScoreKeeper converts graded answers into point deltas and derives the
// ordered leaderboard. Scores only ever grow.
type ScoreKeeper struct {
	scores map[string]int
}

func NewScoreKeeper() *ScoreKeeper {
	return &ScoreKeeper{scores: make(map[string]int)}
}

// Register ensures a participant appears on the leaderboard with zero points.
func (s *ScoreKeeper) Register(name string) {
	if _, ok := s.scores[name]; !ok {
		s.scores[name] = 0
	}
}

// Award adds points to a participant's cumulative score. Negative deltas are
// ignored; corrections are out of scope.
func (s *ScoreKeeper) Award(name string, points int) {
	if points <= 0 {
		return
	}
	s.scores[name] += points
}

// AwardMultiplied applies an organizer-assigned grading factor to a
// long-answer question's point value.
func (s *ScoreKeeper) AwardMultiplied(name string, points int, multiplier float64) {
	s.Award(name, int(math.Round(float64(points)*multiplier)))
}

func (s *ScoreKeeper) Score(name string) int {
	return s.scores[name]
}

// TopScore returns the highest cumulative score, zero when nobody scored.
func (s *ScoreKeeper) TopScore() int {
	top := 0
	for _, score := range s.scores {
		if score > top {
			top = score
		}
	}
	return top
}

// Leaderboard orders participants by score descending, ties broken by name
// ascending, and assigns gold/silver/bronze medals to the first three rows.
// Medals are a read-side derivation, never stored.
func (s *ScoreKeeper) Leaderboard() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(s.scores))
	for name, score := range s.scores {
		entries = append(entries, domain.LeaderboardEntry{Name: name, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	medals := []string{"gold", "silver", "bronze"}
	for i := range entries {
		if i < len(medals) {
			entries[i].Medal = medals[i]
		}
	}
	return entries
}

// GradeChoices awards full credit only when the selected set exactly equals
// the set of correct choices. No partial credit.
func GradeChoices(q domain.Question, selected []int) bool {
	if len(selected) == 0 {
		return false
	}
	picked := make(map[int]bool, len(selected))
	for _, idx := range selected {
		picked[idx] = true
	}
	for i, choice := range q.Choices {
		if choice.Correct != picked[i] {
			return false
		}
	}
	return true
}
