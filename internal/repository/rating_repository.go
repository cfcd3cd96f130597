package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/pkg/database"
)

type RatingRepository struct {
	db *database.DB
}

func NewRatingRepository(db *database.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Rating 사용자의 결투 레이팅 조회. 행이 없으면 기본값 1500.
func (r *RatingRepository) Rating(ctx context.Context, userID string) (int, error) {
	query := `SELECT rating FROM duel_ratings WHERE user_id = $1`

	var rating int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&rating)
	if err == sql.ErrNoRows {
		return defaultRating, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rating: %w", err)
	}

	return rating, nil
}

// Top 레이팅 상위 목록
func (r *RatingRepository) Top(ctx context.Context, limit int) ([]models.RatingRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT r.user_id, COALESCE(h.handle, ''), r.rating
		FROM duel_ratings r
		LEFT JOIN user_handles h ON h.user_id = r.user_id
		ORDER BY r.rating DESC, r.user_id ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	var result []models.RatingRow
	for rows.Next() {
		var row models.RatingRow
		if err := rows.Scan(&row.UserID, &row.Handle, &row.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
