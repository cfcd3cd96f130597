package models

type TournamentStatus string

const (
	TournamentStatusIdle    TournamentStatus = "idle"
	TournamentStatusRunning TournamentStatus = "running"
)

type Contestant struct {
	UserID      string `json:"userId" db:"user_id"`
	Handle      string `json:"handle" db:"handle"`
	DisplayName string `json:"displayName" db:"display_name"`
}

// RatingRow 리더보드 한 줄
type RatingRow struct {
	UserID string `json:"userId"`
	Handle string `json:"handle"`
	Rating int    `json:"rating"`
}
