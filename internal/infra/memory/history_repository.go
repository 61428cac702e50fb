package memory

import (
	"context"
	"sync"

	"quizroom/internal/domain"
)

// HistoryRepository keeps finished-game records in memory. Useful for demos
// and tests; production wires the Postgres implementation instead.
type HistoryRepository struct {
	mu      sync.RWMutex
	records []domain.GameRecord
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) SaveGame(_ context.Context, record domain.GameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// Games returns a copy of everything recorded so far.
func (r *HistoryRepository) Games() []domain.GameRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.GameRecord, len(r.records))
	copy(out, r.records)
	return out
}
