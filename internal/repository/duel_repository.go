package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/pkg/database"
)

const defaultRating = 1500

// DeltaFunc 완료 트랜잭션 안에서 잠근 레이팅으로 델타를 계산하는 콜백.
// 레이팅 읽기와 쓰기가 같은 트랜잭션에 묶여 사용자별 갱신 유실이 없다.
type DeltaFunc func(challengerRating, challengeeRating int) (challengerDelta, challengeeDelta int)

type DuelRepository struct {
	db *database.DB
}

func NewDuelRepository(db *database.DB) *DuelRepository {
	return &DuelRepository{db: db}
}

// Create 새 결투 생성 (PENDING)
func (r *DuelRepository) Create(ctx context.Context, duel *models.Duel) (*models.Duel, error) {
	query := `
		INSERT INTO duels (challenger_id, challengee_id, problem_contest_id, problem_index,
		                   problem_name, problem_rating, duel_type, status, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		duel.ChallengerID,
		duel.ChallengeeID,
		duel.ProblemContest,
		duel.ProblemIndex,
		duel.ProblemName,
		duel.ProblemRating,
		duel.Type,
		duel.IssuedAt,
	).Scan(&duel.ID, &duel.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create duel: %w", err)
	}

	duel.Status = models.DuelStatusPending
	return duel, nil
}

// Start PENDING → ACTIVE 전이 클레임. 이미 다른 경로로 전이된 경우 false.
func (r *DuelRepository) Start(ctx context.Context, duelID string, startedAt time.Time) (bool, error) {
	query := `
		UPDATE duels
		SET status = 'active', started_at = $2
		WHERE id = $1 AND status = 'pending'
	`

	res, err := r.db.ExecContext(ctx, query, duelID, startedAt)
	if err != nil {
		return false, fmt.Errorf("failed to start duel: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// Cancel PENDING 결투를 사유와 함께 취소 (declined/withdrawn/expired).
// 조건부 UPDATE이므로 만료 타이머와 수락이 경합해도 한쪽만 이긴다.
func (r *DuelRepository) Cancel(ctx context.Context, duelID string, to models.DuelStatus) (bool, error) {
	switch to {
	case models.DuelStatusDeclined, models.DuelStatusWithdrawn, models.DuelStatusExpired:
	default:
		return false, fmt.Errorf("invalid cancel status: %s", to)
	}

	query := `
		UPDATE duels
		SET status = $2
		WHERE id = $1 AND status = 'pending'
	`

	res, err := r.db.ExecContext(ctx, query, duelID, to)
	if err != nil {
		return false, fmt.Errorf("failed to cancel duel: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// Invalidate ACTIVE 결투 무효화 클레임
func (r *DuelRepository) Invalidate(ctx context.Context, duelID string) (bool, error) {
	query := `
		UPDATE duels
		SET status = 'invalidated'
		WHERE id = $1 AND status = 'active'
	`

	res, err := r.db.ExecContext(ctx, query, duelID)
	if err != nil {
		return false, fmt.Errorf("failed to invalidate duel: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// Complete ACTIVE 결투 완료 클레임 + 레이팅 반영을 한 트랜잭션으로 수행.
// 두 참가자의 레이팅 행을 user_id 순으로 잠근 뒤 deltas로 델타를 계산하고,
// 상태 클레임이 0행이면 전부 롤백하고 false를 돌려준다 (동시 완료 감지).
func (r *DuelRepository) Complete(
	ctx context.Context,
	duelID string,
	to models.DuelStatus,
	winner models.Winner,
	finishedAt time.Time,
	challengerID, challengeeID string,
	applyRatings bool,
	deltas DeltaFunc,
) (claimed bool, challengerDelta, challengeeDelta int, err error) {
	if to != models.DuelStatusCompleted && to != models.DuelStatusDrawn {
		return false, 0, 0, fmt.Errorf("invalid completion status: %s", to)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	challengerRating, challengeeRating := defaultRating, defaultRating
	if applyRatings {
		challengerRating, challengeeRating, err = lockRatings(ctx, tx, challengerID, challengeeID)
		if err != nil {
			return false, 0, 0, err
		}
	}

	challengerDelta, challengeeDelta = deltas(challengerRating, challengeeRating)

	claimQuery := `
		UPDATE duels
		SET status = $2, winner = $3, finished_at = $4,
		    challenger_delta = $5, challengee_delta = $6
		WHERE id = $1 AND status = 'active'
	`

	res, err := tx.ExecContext(ctx, claimQuery,
		duelID, to, winner, finishedAt, challengerDelta, challengeeDelta)
	if err != nil {
		return false, 0, 0, fmt.Errorf("failed to claim duel completion: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, 0, 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return false, 0, 0, nil
	}

	if applyRatings {
		updateQuery := `UPDATE duel_ratings SET rating = rating + $2 WHERE user_id = $1`
		if _, err := tx.ExecContext(ctx, updateQuery, challengerID, challengerDelta); err != nil {
			return false, 0, 0, fmt.Errorf("failed to update challenger rating: %w", err)
		}
		if _, err := tx.ExecContext(ctx, updateQuery, challengeeID, challengeeDelta); err != nil {
			return false, 0, 0, fmt.Errorf("failed to update challengee rating: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, 0, 0, fmt.Errorf("failed to commit duel completion: %w", err)
	}

	return true, challengerDelta, challengeeDelta, nil
}

// lockRatings 두 사용자의 레이팅 행 확보 후 잠금. 데드락을 피하기 위해
// user_id 순서로 잠근다.
func lockRatings(ctx context.Context, tx *sql.Tx, userA, userB string) (ratingA, ratingB int, err error) {
	ensure := `
		INSERT INTO duel_ratings (user_id, rating)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	for _, id := range []string{userA, userB} {
		if _, err := tx.ExecContext(ctx, ensure, id, defaultRating); err != nil {
			return 0, 0, fmt.Errorf("failed to ensure rating row: %w", err)
		}
	}

	query := `
		SELECT user_id, rating
		FROM duel_ratings
		WHERE user_id = ANY(ARRAY[$1, $2])
		ORDER BY user_id
		FOR UPDATE
	`

	rows, err := tx.QueryContext(ctx, query, userA, userB)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to lock ratings: %w", err)
	}
	defer rows.Close()

	ratings := make(map[string]int, 2)
	for rows.Next() {
		var id string
		var rating int
		if err := rows.Scan(&id, &rating); err != nil {
			return 0, 0, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings[id] = rating
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to read ratings: %w", err)
	}

	return ratings[userA], ratings[userB], nil
}

// FindByID ID로 결투 조회
func (r *DuelRepository) FindByID(ctx context.Context, id string) (*models.Duel, error) {
	query := `
		SELECT id, challenger_id, challengee_id, problem_contest_id, problem_index,
		       problem_name, problem_rating, duel_type, status, winner,
		       challenger_delta, challengee_delta, issued_at, started_at, finished_at, created_at
		FROM duels
		WHERE id = $1
	`

	duel := &models.Duel{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&duel.ID,
		&duel.ChallengerID,
		&duel.ChallengeeID,
		&duel.ProblemContest,
		&duel.ProblemIndex,
		&duel.ProblemName,
		&duel.ProblemRating,
		&duel.Type,
		&duel.Status,
		&duel.Winner,
		&duel.ChallengerDelta,
		&duel.ChallengeeDelta,
		&duel.IssuedAt,
		&duel.StartedAt,
		&duel.FinishedAt,
		&duel.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duel: %w", err)
	}

	return duel, nil
}

// FindActiveByUser 사용자가 참가 중인 ACTIVE 결투 조회
func (r *DuelRepository) FindActiveByUser(ctx context.Context, userID string) (*models.ActiveDuelView, error) {
	query := `
		SELECT id, challenger_id, challengee_id, problem_contest_id, problem_index,
		       problem_name, problem_rating, duel_type, started_at
		FROM duels
		WHERE status = 'active' AND (challenger_id = $1 OR challengee_id = $1)
	`

	view := &models.ActiveDuelView{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&view.DuelID,
		&view.ChallengerID,
		&view.ChallengeeID,
		&view.ProblemContest,
		&view.ProblemIndex,
		&view.ProblemName,
		&view.ProblemRating,
		&view.Type,
		&view.StartedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active duel: %w", err)
	}

	return view, nil
}

// FindPendingByChallengee 사용자가 도전받은 PENDING 결투 조회
func (r *DuelRepository) FindPendingByChallengee(ctx context.Context, userID string) (*models.PendingDuelView, error) {
	return r.findPending(ctx, "challengee_id", userID)
}

// FindPendingByChallenger 사용자가 도전한 PENDING 결투 조회
func (r *DuelRepository) FindPendingByChallenger(ctx context.Context, userID string) (*models.PendingDuelView, error) {
	return r.findPending(ctx, "challenger_id", userID)
}

func (r *DuelRepository) findPending(ctx context.Context, column, userID string) (*models.PendingDuelView, error) {
	query := fmt.Sprintf(`
		SELECT id, challenger_id, challengee_id, problem_name, problem_rating, duel_type, issued_at
		FROM duels
		WHERE status = 'pending' AND %s = $1
	`, column)

	view := &models.PendingDuelView{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&view.DuelID,
		&view.ChallengerID,
		&view.ChallengeeID,
		&view.ProblemName,
		&view.ProblemRating,
		&view.Type,
		&view.IssuedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending duel: %w", err)
	}

	return view, nil
}

// HasOpenDuel 사용자가 PENDING/ACTIVE 결투에 묶여 있는지 확인
func (r *DuelRepository) HasOpenDuel(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM duels
			WHERE status IN ('pending', 'active')
			  AND (challenger_id = $1 OR challengee_id = $1)
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check open duels: %w", err)
	}

	return exists, nil
}

// ListOngoing 진행 중인 모든 결투 목록
func (r *DuelRepository) ListOngoing(ctx context.Context) ([]models.ActiveDuelView, error) {
	query := `
		SELECT id, challenger_id, challengee_id, problem_contest_id, problem_index,
		       problem_name, problem_rating, duel_type, started_at
		FROM duels
		WHERE status = 'active'
		ORDER BY started_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ongoing duels: %w", err)
	}
	defer rows.Close()

	var views []models.ActiveDuelView
	for rows.Next() {
		var view models.ActiveDuelView
		if err := rows.Scan(
			&view.DuelID,
			&view.ChallengerID,
			&view.ChallengeeID,
			&view.ProblemContest,
			&view.ProblemIndex,
			&view.ProblemName,
			&view.ProblemRating,
			&view.Type,
			&view.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ongoing duel: %w", err)
		}
		views = append(views, view)
	}

	return views, rows.Err()
}

// ListPending 수락 대기 중인 모든 결투 목록
func (r *DuelRepository) ListPending(ctx context.Context) ([]models.PendingDuelView, error) {
	query := `
		SELECT id, challenger_id, challengee_id, problem_name, problem_rating, duel_type, issued_at
		FROM duels
		WHERE status = 'pending'
		ORDER BY issued_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending duels: %w", err)
	}
	defer rows.Close()

	var views []models.PendingDuelView
	for rows.Next() {
		var view models.PendingDuelView
		if err := rows.Scan(
			&view.DuelID,
			&view.ChallengerID,
			&view.ChallengeeID,
			&view.ProblemName,
			&view.ProblemRating,
			&view.Type,
			&view.IssuedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending duel: %w", err)
		}
		views = append(views, view)
	}

	return views, rows.Err()
}

// ListRecent 최근에 끝난 결투 목록 (completed/drawn)
func (r *DuelRepository) ListRecent(ctx context.Context, limit int) ([]*models.Duel, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, challenger_id, challengee_id, problem_contest_id, problem_index,
		       problem_name, problem_rating, duel_type, status, winner,
		       challenger_delta, challengee_delta, issued_at, started_at, finished_at, created_at
		FROM duels
		WHERE status IN ('completed', 'drawn')
		ORDER BY finished_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent duels: %w", err)
	}
	defer rows.Close()

	var duels []*models.Duel
	for rows.Next() {
		duel := &models.Duel{}
		if err := rows.Scan(
			&duel.ID,
			&duel.ChallengerID,
			&duel.ChallengeeID,
			&duel.ProblemContest,
			&duel.ProblemIndex,
			&duel.ProblemName,
			&duel.ProblemRating,
			&duel.Type,
			&duel.Status,
			&duel.Winner,
			&duel.ChallengerDelta,
			&duel.ChallengeeDelta,
			&duel.IssuedAt,
			&duel.StartedAt,
			&duel.FinishedAt,
			&duel.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan duel: %w", err)
		}
		duels = append(duels, duel)
	}

	return duels, rows.Err()
}

// ProblemNamesSeenBy 사용자가 해당 종류의 결투에서 이미 받은 문제 이름 집합.
// 비공식 결투와 브래킷 결투의 집합은 따로 관리된다.
func (r *DuelRepository) ProblemNamesSeenBy(ctx context.Context, userID string, dtype models.DuelType) ([]string, error) {
	query := `
		SELECT DISTINCT problem_name
		FROM duels
		WHERE duel_type = $2 AND (challenger_id = $1 OR challengee_id = $1)
	`

	rows, err := r.db.QueryContext(ctx, query, userID, dtype)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen problems: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan problem name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
