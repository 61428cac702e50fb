package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizroom/internal/domain"
)

// HistoryRepository persists finished-game summaries.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

func (r *HistoryRepository) SaveGame(ctx context.Context, record domain.GameRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO game_history (id, quiz_title, started_at, duration_sec, player_count, top_score)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.QuizTitle, record.StartedAt, record.DurationSec, record.PlayerCount, record.TopScore,
	)
	if err != nil {
		return fmt.Errorf("save game record: %w", err)
	}
	return nil
}
