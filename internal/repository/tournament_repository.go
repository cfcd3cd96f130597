package repository

import (
	"context"
	"fmt"

	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/pkg/database"
)

// TournamentRepository 토너먼트 상태를 담는 단일 행 테이블 접근자.
// 회차 인덱스는 원격 브래킷 URL 접미어로 쓰이므로 destroy 후에도 유지된다.
type TournamentRepository struct {
	db *database.DB
}

func NewTournamentRepository(db *database.DB) *TournamentRepository {
	return &TournamentRepository{db: db}
}

// State 현재 토너먼트 상태와 회차 인덱스 조회
func (r *TournamentRepository) State(ctx context.Context) (models.TournamentStatus, int, error) {
	query := `SELECT status, round_index FROM tournament_state WHERE id = 1`

	var status models.TournamentStatus
	var index int
	if err := r.db.QueryRowContext(ctx, query).Scan(&status, &index); err != nil {
		return "", 0, fmt.Errorf("failed to get tournament state: %w", err)
	}

	return status, index, nil
}

// MarkRunning idle → running 전이. 이미 진행 중이면 false.
func (r *TournamentRepository) MarkRunning(ctx context.Context) (bool, error) {
	query := `
		UPDATE tournament_state
		SET status = 'running', round_index = round_index + 1
		WHERE id = 1 AND status = 'idle'
	`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to mark tournament running: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// MarkIdle running → idle 전이. 진행 중이 아니면 false.
func (r *TournamentRepository) MarkIdle(ctx context.Context) (bool, error) {
	query := `
		UPDATE tournament_state
		SET status = 'idle'
		WHERE id = 1 AND status = 'running'
	`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to mark tournament idle: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}
