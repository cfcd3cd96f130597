package models

import "time"

type DuelStatus string

const (
	DuelStatusPending     DuelStatus = "pending"
	DuelStatusActive      DuelStatus = "active"
	DuelStatusCompleted   DuelStatus = "completed"
	DuelStatusDrawn       DuelStatus = "drawn"
	DuelStatusDeclined    DuelStatus = "declined"
	DuelStatusWithdrawn   DuelStatus = "withdrawn"
	DuelStatusExpired     DuelStatus = "expired"
	DuelStatusInvalidated DuelStatus = "invalidated"
)

// Terminal 종료 상태 여부 (종료 상태에서는 어떤 전이도 허용되지 않음)
func (s DuelStatus) Terminal() bool {
	switch s {
	case DuelStatusPending, DuelStatusActive:
		return false
	}
	return true
}

type DuelType string

const (
	DuelTypeOfficial   DuelType = "official"
	DuelTypeUnofficial DuelType = "unofficial"
)

type Winner string

const (
	WinnerChallenger Winner = "challenger"
	WinnerChallengee Winner = "challengee"
	WinnerDraw       Winner = "draw"
)

type Duel struct {
	ID              string     `json:"id" db:"id"`
	ChallengerID    string     `json:"challengerId" db:"challenger_id"`
	ChallengeeID    string     `json:"challengeeId" db:"challengee_id"`
	ProblemContest  int        `json:"problemContestId" db:"problem_contest_id"`
	ProblemIndex    string     `json:"problemIndex" db:"problem_index"`
	ProblemName     string     `json:"problemName" db:"problem_name"`
	ProblemRating   int        `json:"problemRating" db:"problem_rating"`
	Type            DuelType   `json:"type" db:"duel_type"`
	Status          DuelStatus `json:"status" db:"status"`
	Winner          *Winner    `json:"winner,omitempty" db:"winner"`
	ChallengerDelta *int       `json:"challengerDelta,omitempty" db:"challenger_delta"`
	ChallengeeDelta *int       `json:"challengeeDelta,omitempty" db:"challengee_delta"`
	IssuedAt        time.Time  `json:"issuedAt" db:"issued_at"`
	StartedAt       *time.Time `json:"startedAt,omitempty" db:"started_at"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty" db:"finished_at"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
}

// ActiveDuelView 진행 중 결투 조회 결과 (포지셔널 튜플 대신 명시적 뷰)
type ActiveDuelView struct {
	DuelID         string    `json:"duelId"`
	ChallengerID   string    `json:"challengerId"`
	ChallengeeID   string    `json:"challengeeId"`
	ProblemContest int       `json:"problemContestId"`
	ProblemIndex   string    `json:"problemIndex"`
	ProblemName    string    `json:"problemName"`
	ProblemRating  int       `json:"problemRating"`
	Type           DuelType  `json:"type"`
	StartedAt      time.Time `json:"startedAt"`
}

// PendingDuelView 수락 대기 중 결투 조회 결과
type PendingDuelView struct {
	DuelID        string    `json:"duelId"`
	ChallengerID  string    `json:"challengerId"`
	ChallengeeID  string    `json:"challengeeId"`
	ProblemName   string    `json:"problemName"`
	ProblemRating int       `json:"problemRating"`
	Type          DuelType  `json:"type"`
	IssuedAt      time.Time `json:"issuedAt"`
}

type DrawReason string

const (
	DrawReasonSimultaneous DrawReason = "simultaneous_solve"
	DrawReasonNegotiated   DrawReason = "negotiated"
)

// DuelResult 결투 완료 결과 (호스트가 렌더링할 데이터)
type DuelResult struct {
	DuelID          string        `json:"duelId"`
	Resolved        bool          `json:"resolved"`
	Status          DuelStatus    `json:"status,omitempty"`
	Winner          Winner        `json:"winner,omitempty"`
	WinnerID        string        `json:"winnerId,omitempty"`
	LoserID         string        `json:"loserId,omitempty"`
	FinishedAt      *time.Time    `json:"finishedAt,omitempty"`
	SolveTimeDiff   time.Duration `json:"solveTimeDiff,omitempty"`
	ChallengerDelta int           `json:"challengerDelta"`
	ChallengeeDelta int           `json:"challengeeDelta"`
	DrawReason      DrawReason    `json:"drawReason,omitempty"`
	Message         string        `json:"message"`
}
