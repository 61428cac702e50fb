package domain

import "time"

// QuestionType distinguishes multiple-choice questions from free-text ones.
type QuestionType string

const (
	MultipleChoice QuestionType = "multipleChoice"
	LongAnswer     QuestionType = "longAnswer"
)

// Role determines which inbound events a connection may send.
type Role string

const (
	RoleOrganizer    Role = "organizer"
	RolePlayer       Role = "player"
	RoleTester       Role = "tester"
	RoleRandomPlayer Role = "randomPlayer"
)

// Phase is the current stage of a game session's state machine.
type Phase string

const (
	PhaseLobby              Phase = "lobby"
	PhaseQuestionActive     Phase = "questionActive"
	PhaseAwaitingEvaluation Phase = "awaitingEvaluation"
	PhaseShowingResults     Phase = "showingResults"
	PhaseFinished           Phase = "finished"
)

// PlayerState tracks where a participant is in the answer cycle.
type PlayerState string

const (
	StateConnected    PlayerState = "connected"
	StateAnswering    PlayerState = "answering"
	StateFinalized    PlayerState = "finalized"
	StateDisconnected PlayerState = "disconnected"
)

// Choice is a possible answer for a multiple-choice question.
type Choice struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is one quiz question. MultipleChoice questions carry 2-4 choices
// with at least one marked correct; LongAnswer questions carry none and are
// graded manually by the organizer.
type Question struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Points  int          `json:"points"`
	Choices []Choice     `json:"choices,omitempty"`
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Duration  int        `json:"duration"` // seconds per multiple-choice question
	Questions []Question `json:"questions"`
}

// QuestionView is the player-facing projection of a question, with
// correctness flags stripped.
type QuestionView struct {
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Points  int          `json:"points"`
	Choices []string     `json:"choices,omitempty"`
	Index   int          `json:"index"`
	Total   int          `json:"total"`
}

// PlayerView is the roster projection broadcast to clients.
type PlayerView struct {
	Name  string      `json:"name"`
	State PlayerState `json:"state"`
	Muted bool        `json:"muted"`
	Score int         `json:"score"`
}

// TimerView mirrors the countdown state for display sync.
type TimerView struct {
	Remaining int  `json:"remaining"`
	Paused    bool `json:"paused"`
	Panic     bool `json:"panic"`
}

// HistogramView carries per-choice selection counts for result display.
type HistogramView struct {
	ChoiceTexts    []string  `json:"choiceTexts"`
	Counts         []int     `json:"counts"`
	Percentages    []float64 `json:"percentages"`
	CorrectChoices []int     `json:"correctChoices"`
}

// LongAnswerView is one pending free-text submission shown to the organizer.
type LongAnswerView struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Evaluation is the organizer-assigned grading factor for one respondent.
type Evaluation struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
}

// LeaderboardEntry is a ranked scoreboard row. Medal is derived from the
// ordering and never stored.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Medal string `json:"medal,omitempty"`
}

// Event is one typed message on the websocket wire, in either direction.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// GameRecord summarizes a finished game for the history repository.
type GameRecord struct {
	ID          string    `json:"id"`
	QuizTitle   string    `json:"quizTitle"`
	StartedAt   time.Time `json:"startedAt"`
	DurationSec int       `json:"durationSec"`
	PlayerCount int       `json:"playerCount"`
	TopScore    int       `json:"topScore"`
}
