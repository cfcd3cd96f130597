package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/progclub/duel-arena-backend/pkg/database"
)

var ErrHandleNotLinked = errors.New("user has no linked judge handle")

// HandleRepository 사용자와 저지 핸들의 연결. 결투에 참가하려면 먼저
// 핸들을 연결해야 한다.
type HandleRepository struct {
	db *database.DB
}

func NewHandleRepository(db *database.DB) *HandleRepository {
	return &HandleRepository{db: db}
}

// Link 핸들 연결 (재연결 시 덮어쓰기)
func (r *HandleRepository) Link(ctx context.Context, userID, handle string) error {
	query := `
		INSERT INTO user_handles (user_id, handle)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET handle = EXCLUDED.handle
	`

	if _, err := r.db.ExecContext(ctx, query, userID, handle); err != nil {
		return fmt.Errorf("failed to link handle: %w", err)
	}

	return nil
}

// HandleOf 사용자의 저지 핸들 조회
func (r *HandleRepository) HandleOf(ctx context.Context, userID string) (string, error) {
	query := `SELECT handle FROM user_handles WHERE user_id = $1`

	var handle string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&handle)
	if err == sql.ErrNoRows {
		return "", ErrHandleNotLinked
	}
	if err != nil {
		return "", fmt.Errorf("failed to get handle: %w", err)
	}

	return handle, nil
}
