package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quizroom/internal/domain"
)

// LivenessMarker tracks which join codes are live in an external store, so
// operators can inspect running games. Both methods are best-effort.
type LivenessMarker interface {
	Mark(code string)
	Clear(code string)
}

// Registry maps human-entered join codes to live game sessions. Sessions are
// created on organizer start and evicted when they finish or empty out.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession
	history  HistoryRepository
	marker   LivenessMarker
	rnd      *rand.Rand
}

func NewRegistry(history HistoryRepository, marker LivenessMarker) *Registry {
	return &Registry{
		sessions: make(map[string]*GameSession),
		history:  history,
		marker:   marker,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create validates the quiz, allocates an unused four-digit join code and
// starts the session worker.
func (r *Registry) Create(quiz domain.Quiz, mode Mode) (*GameSession, error) {
	if err := validateQuiz(quiz); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.newCode()
	for _, taken := r.sessions[code]; taken; _, taken = r.sessions[code] {
		code = r.newCode()
	}

	sess := NewGameSession(code, quiz, mode, Options{
		History: r.history,
		OnEvict: r.evict,
	})
	r.sessions[code] = sess
	if r.marker != nil {
		r.marker.Mark(code)
	}
	return sess, nil
}

// Lookup resolves a join code to its live session.
func (r *Registry) Lookup(code string) (*GameSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[code]
	return sess, ok
}

// Count reports how many sessions are live.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) evict(code string) {
	r.mu.Lock()
	delete(r.sessions, code)
	r.mu.Unlock()
	if r.marker != nil {
		r.marker.Clear(code)
	}
}

func (r *Registry) newCode() string {
	return fmt.Sprintf("%04d", r.rnd.Intn(10000))
}

func validateQuiz(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: quiz has no questions", domain.ErrInvalidSubmission)
	}
	for _, q := range quiz.Questions {
		if q.Type == domain.LongAnswer {
			continue
		}
		if len(q.Choices) < 2 || len(q.Choices) > 4 {
			return fmt.Errorf("%w: question %q needs 2-4 choices", domain.ErrInvalidSubmission, q.ID)
		}
		correct := false
		for _, c := range q.Choices {
			if c.Correct {
				correct = true
				break
			}
		}
		if !correct {
			return fmt.Errorf("%w: question %q has no correct choice", domain.ErrInvalidSubmission, q.ID)
		}
	}
	return nil
}
