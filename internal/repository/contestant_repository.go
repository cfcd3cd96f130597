package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/pkg/database"
)

type ContestantRepository struct {
	db *database.DB
}

func NewContestantRepository(db *database.DB) *ContestantRepository {
	return &ContestantRepository{db: db}
}

// Register 토너먼트 참가 등록. 이미 등록된 사용자는 false.
func (r *ContestantRepository) Register(ctx context.Context, c *models.Contestant) (bool, error) {
	query := `
		INSERT INTO contestants (user_id, handle, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query, c.UserID, c.Handle, c.DisplayName)
	if err != nil {
		return false, fmt.Errorf("failed to register contestant: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// FindByUser 사용자 ID로 참가자 조회
func (r *ContestantRepository) FindByUser(ctx context.Context, userID string) (*models.Contestant, error) {
	query := `SELECT user_id, handle, display_name FROM contestants WHERE user_id = $1`

	c := &models.Contestant{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&c.UserID, &c.Handle, &c.DisplayName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contestant: %w", err)
	}

	return c, nil
}

// List 전체 참가자 목록
func (r *ContestantRepository) List(ctx context.Context) ([]models.Contestant, error) {
	query := `SELECT user_id, handle, display_name FROM contestants ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list contestants: %w", err)
	}
	defer rows.Close()

	var result []models.Contestant
	for rows.Next() {
		var c models.Contestant
		if err := rows.Scan(&c.UserID, &c.Handle, &c.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan contestant: %w", err)
		}
		result = append(result, c)
	}

	return result, rows.Err()
}

// Clear 참가자 전체 삭제 (토너먼트 destroy 시)
func (r *ContestantRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM contestants`); err != nil {
		return fmt.Errorf("failed to clear contestants: %w", err)
	}
	return nil
}
