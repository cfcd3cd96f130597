package models

import "time"

type Problem struct {
	ContestID      int       `json:"contestId"`
	Index          string    `json:"index"`
	Name           string    `json:"name"`
	Rating         int       `json:"rating"`
	URL            string    `json:"url"`
	Tags           []string  `json:"tags,omitempty"`
	ContestStartAt time.Time `json:"contestStartAt"`
}

type Verdict string

const (
	VerdictOK               Verdict = "OK"
	VerdictTesting          Verdict = "TESTING"
	VerdictCompilationError Verdict = "COMPILATION_ERROR"
)

// Submission 저지 제출 기록 (외부 저지 API 응답)
type Submission struct {
	ContestID    int       `json:"contestId"`
	ProblemIndex string    `json:"problemIndex"`
	ProblemName  string    `json:"problemName"`
	Verdict      Verdict   `json:"verdict"`
	CreatedAt    time.Time `json:"createdAt"`
}

type SolveState string

const (
	SolveStateUnsolved SolveState = "unsolved"
	SolveStateTesting  SolveState = "testing"
	SolveStateSolved   SolveState = "solved"
)

// SolveOutcome 특정 문제에 대한 참가자의 제출 판정 요약.
// Testing은 아직 채점 중인 제출이 있어 결과를 확정할 수 없다는 뜻이다.
type SolveOutcome struct {
	State SolveState `json:"state"`
	At    time.Time  `json:"at,omitempty"`
}
