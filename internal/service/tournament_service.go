package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/progclub/duel-arena-backend/internal/bracket"
	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/pkg/distributed"
	"github.com/progclub/duel-arena-backend/pkg/logger"
)

// BracketAPI 원격 브래킷 호스팅 서비스
type BracketAPI interface {
	CreateTournament(ctx context.Context, name, urlStub string) (*bracket.Tournament, error)
	StartTournament(ctx context.Context, urlStub string) error
	FinalizeTournament(ctx context.Context, urlStub string) error
	AddParticipant(ctx context.Context, urlStub, name, misc string) (*bracket.Participant, error)
	Participants(ctx context.Context, urlStub string) ([]bracket.Participant, error)
	Matches(ctx context.Context, urlStub string) ([]bracket.Match, error)
	ReportWinner(ctx context.Context, urlStub string, matchID, winnerParticipantID int, score string) error
}

// ContestantStore 참가자 영속화
type ContestantStore interface {
	Register(ctx context.Context, c *models.Contestant) (bool, error)
	FindByUser(ctx context.Context, userID string) (*models.Contestant, error)
	List(ctx context.Context) ([]models.Contestant, error)
	Clear(ctx context.Context) error
}

// TournamentStateStore 토너먼트 상태 영속화
type TournamentStateStore interface {
	State(ctx context.Context) (models.TournamentStatus, int, error)
	MarkRunning(ctx context.Context) (bool, error)
	MarkIdle(ctx context.Context) (bool, error)
}

// LifecycleLock begin/destroy가 인스턴스 간에 겹치지 않게 하는 락
type LifecycleLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// ReportSink 브래킷 승자 보고 큐
type ReportSink interface {
	Enqueue(ctx context.Context, item *distributed.ReportItem) error
	Dequeue(ctx context.Context) (*distributed.ReportItem, error)
	Retry(ctx context.Context, item *distributed.ReportItem) error
}

// OpenMatch 브래킷에서 대기 중인 매치와 양쪽 참가자
type OpenMatch struct {
	MatchID int               `json:"matchId"`
	Player1 models.Contestant `json:"player1"`
	Player2 models.Contestant `json:"player2"`
}

// TournamentService 토너먼트 수명주기와 브래킷 연동. 원격 브래킷이
// 대진의 단일 진실이고, 로컬은 등록 명단과 running 여부만 기억한다.
type TournamentService struct {
	brackets    BracketAPI
	contestants ContestantStore
	state       TournamentStateStore
	lock        LifecycleLock
	reports     ReportSink

	name    string
	urlStub string

	sf singleflight.Group
}

func NewTournamentService(
	brackets BracketAPI,
	contestants ContestantStore,
	state TournamentStateStore,
	lock LifecycleLock,
	reports ReportSink,
	name, urlStub string,
) *TournamentService {
	return &TournamentService{
		brackets:    brackets,
		contestants: contestants,
		state:       state,
		lock:        lock,
		reports:     reports,
		name:        name,
		urlStub:     urlStub,
	}
}

// NewRedisLifecycleLock Redis 분산 락 기반 LifecycleLock
func NewRedisLifecycleLock(manager *distributed.RedisLockManager) LifecycleLock {
	return &redisLifecycleLock{manager: manager}
}

type redisLifecycleLock struct {
	manager *distributed.RedisLockManager
}

func (l *redisLifecycleLock) Acquire(ctx context.Context) (func(), error) {
	lock, err := l.manager.TryLockWithRetry(ctx, "tournament:lifecycle", "", 30*time.Second, 3, time.Second)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("failed to release tournament lock", "error", err)
		}
	}, nil
}

// Register 토너먼트 참가 등록. 진행 중에는 새 등록을 받지 않는다.
func (s *TournamentService) Register(ctx context.Context, c *models.Contestant) error {
	status, _, err := s.state.State(ctx)
	if err != nil {
		return err
	}
	if status == models.TournamentStatusRunning {
		return ErrTournamentRunning
	}

	created, err := s.contestants.Register(ctx, c)
	if err != nil {
		return err
	}
	if !created {
		return ErrAlreadyRegistered
	}

	logger.Info("contestant registered", "userId", c.UserID, "handle", c.Handle)
	return nil
}

// Contestants 현재 등록 명단
func (s *TournamentService) Contestants(ctx context.Context) ([]models.Contestant, error) {
	return s.contestants.List(ctx)
}

// Begin 토너먼트 시작. 등록된 전원을 원격 브래킷에 올리고 대진을 연다.
// 원격 생성이 실패하면 로컬 상태를 되돌린다.
func (s *TournamentService) Begin(ctx context.Context) (string, error) {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}
	defer release()

	contestants, err := s.contestants.List(ctx)
	if err != nil {
		return "", err
	}
	if len(contestants) < 2 {
		return "", ErrNotEnoughContestants
	}

	claimed, err := s.state.MarkRunning(ctx)
	if err != nil {
		return "", err
	}
	if !claimed {
		return "", ErrTournamentRunning
	}

	_, index, err := s.state.State(ctx)
	if err != nil {
		return "", err
	}
	stub := s.roundStub(index)

	if err := s.provisionBracket(ctx, stub, contestants); err != nil {
		if _, revertErr := s.state.MarkIdle(ctx); revertErr != nil {
			logger.Error("failed to revert tournament state", "error", revertErr)
		}
		return "", fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}

	logger.Info("tournament started", "round", index, "contestants", len(contestants))
	return s.StandingsURL(stub), nil
}

func (s *TournamentService) provisionBracket(ctx context.Context, stub string, contestants []models.Contestant) error {
	if _, err := s.brackets.CreateTournament(ctx, s.name, stub); err != nil {
		return err
	}

	for _, c := range contestants {
		if _, err := s.brackets.AddParticipant(ctx, stub, c.DisplayName, c.UserID); err != nil {
			return err
		}
	}

	return s.brackets.StartTournament(ctx, stub)
}

// Destroy 진행 중인 토너먼트를 끝내고 등록 명단을 비운다.
// 원격 마무리 실패는 기록만 하고 로컬 정리는 계속한다.
func (s *TournamentService) Destroy(ctx context.Context) error {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}
	defer release()

	_, index, err := s.state.State(ctx)
	if err != nil {
		return err
	}

	claimed, err := s.state.MarkIdle(ctx)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrTournamentNotRunning
	}

	if err := s.brackets.FinalizeTournament(ctx, s.roundStub(index)); err != nil {
		logger.Warn("failed to finalize remote bracket", "error", err)
	}

	if err := s.contestants.Clear(ctx); err != nil {
		return err
	}

	logger.Info("tournament destroyed", "round", index)
	return nil
}

// StandingsURL 현황판 공개 URL
func (s *TournamentService) StandingsURL(stub string) string {
	return "https://challonge.com/" + stub
}

// CurrentStandingsURL 진행 중인 회차의 현황판 URL
func (s *TournamentService) CurrentStandingsURL(ctx context.Context) (string, error) {
	status, index, err := s.state.State(ctx)
	if err != nil {
		return "", err
	}
	if status != models.TournamentStatusRunning {
		return "", ErrTournamentNotRunning
	}
	return s.StandingsURL(s.roundStub(index)), nil
}

func (s *TournamentService) roundStub(index int) string {
	return fmt.Sprintf("%s_%d", s.urlStub, index)
}

// bracketSession 한 번의 질의로 받아온 브래킷 스냅샷
type bracketSession struct {
	stub         string
	participants map[string]bracket.Participant // userID 기준
	byID         map[int]bracket.Participant
	matches      []bracket.Match
}

// session 브래킷 스냅샷 조회. 동시에 여러 요청이 와도 원격 호출은
// singleflight로 한 번만 나간다.
func (s *TournamentService) session(ctx context.Context) (*bracketSession, error) {
	v, err, _ := s.sf.Do("session", func() (interface{}, error) {
		status, index, err := s.state.State(ctx)
		if err != nil {
			return nil, err
		}
		if status != models.TournamentStatusRunning {
			return nil, ErrTournamentNotRunning
		}

		stub := s.roundStub(index)
		participants, err := s.brackets.Participants(ctx, stub)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
		}
		matches, err := s.brackets.Matches(ctx, stub)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
		}

		sess := &bracketSession{
			stub:         stub,
			participants: make(map[string]bracket.Participant, len(participants)),
			byID:         make(map[int]bracket.Participant, len(participants)),
			matches:      matches,
		}
		for _, p := range participants {
			sess.participants[p.Misc] = p
			sess.byID[p.ID] = p
		}
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bracketSession), nil
}

// EnsureChallengeable 두 사용자가 지금 브래킷에서 맞붙을 차례인지 확인
func (s *TournamentService) EnsureChallengeable(ctx context.Context, challengerID, challengeeID string) error {
	sess, err := s.session(ctx)
	if err != nil {
		return err
	}

	pa, ok := sess.participants[challengerID]
	if !ok {
		return ErrNotInTournament
	}
	pb, ok := sess.participants[challengeeID]
	if !ok {
		return ErrNotInTournament
	}

	if openMatchBetween(sess.matches, pa.ID, pb.ID) == nil {
		return ErrNoOpenMatch
	}
	return nil
}

// EnqueueWinReport 승자 보고를 재시도 큐에 적재. 실제 전송은 백그라운드
// 워커가 맡고, 실패해도 로컬 결투 결과는 되돌리지 않는다.
func (s *TournamentService) EnqueueWinReport(ctx context.Context, duelID, winnerUserID string) error {
	return s.reports.Enqueue(ctx, &distributed.ReportItem{
		DuelID:       duelID,
		WinnerUserID: winnerUserID,
	})
}

// ProcessReport 큐에서 꺼낸 승자 보고 한 건을 브래킷에 반영한다.
// 멱등: 매치가 이미 닫혀 있으면 성공으로 친다.
func (s *TournamentService) ProcessReport(ctx context.Context, item *distributed.ReportItem) error {
	sess, err := s.session(ctx)
	if err != nil {
		if errors.Is(err, ErrTournamentNotRunning) {
			// 보고가 남은 채 토너먼트가 끝났다면 버리는 수밖에 없다
			logger.Warn("dropping report for finished tournament", "duelId", item.DuelID)
			return nil
		}
		return err
	}

	winner, ok := sess.participants[item.WinnerUserID]
	if !ok {
		return fmt.Errorf("winner %s is not a bracket participant", item.WinnerUserID)
	}

	match := openMatchWith(sess.matches, winner.ID)
	if match == nil {
		if closedMatchWith(sess.matches, winner.ID) != nil {
			return nil
		}
		return fmt.Errorf("no open match for participant %d", winner.ID)
	}

	score := bracket.ScoreChallengerWin
	if match.Player2ID != nil && *match.Player2ID == winner.ID {
		score = bracket.ScoreChallengeeWin
	}

	err = s.brackets.ReportWinner(ctx, sess.stub, match.ID, winner.ID, score)
	if errors.Is(err, bracket.ErrAlreadyClosed) {
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("bracket report delivered", "duelId", item.DuelID, "matchId", match.ID, "score", score)
	return nil
}

// OpenMatches 현재 대기 중인 매치와 로컬 참가자 정보
func (s *TournamentService) OpenMatches(ctx context.Context) ([]OpenMatch, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	contestants, err := s.contestants.List(ctx)
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]models.Contestant, len(contestants))
	for _, c := range contestants {
		byUser[c.UserID] = c
	}

	var out []OpenMatch
	for _, m := range sess.matches {
		if m.State != bracket.MatchStateOpen || m.Player1ID == nil || m.Player2ID == nil {
			continue
		}
		p1, p2 := sess.byID[*m.Player1ID], sess.byID[*m.Player2ID]
		out = append(out, OpenMatch{
			MatchID: m.ID,
			Player1: byUser[p1.Misc],
			Player2: byUser[p2.Misc],
		})
	}

	return out, nil
}

func openMatchBetween(matches []bracket.Match, a, b int) *bracket.Match {
	for i := range matches {
		m := &matches[i]
		if m.State != bracket.MatchStateOpen || m.Player1ID == nil || m.Player2ID == nil {
			continue
		}
		if (*m.Player1ID == a && *m.Player2ID == b) || (*m.Player1ID == b && *m.Player2ID == a) {
			return m
		}
	}
	return nil
}

func openMatchWith(matches []bracket.Match, participantID int) *bracket.Match {
	for i := range matches {
		m := &matches[i]
		if m.State != bracket.MatchStateOpen {
			continue
		}
		if (m.Player1ID != nil && *m.Player1ID == participantID) ||
			(m.Player2ID != nil && *m.Player2ID == participantID) {
			return m
		}
	}
	return nil
}

func closedMatchWith(matches []bracket.Match, participantID int) *bracket.Match {
	for i := range matches {
		m := &matches[i]
		if m.State != bracket.MatchStateComplete {
			continue
		}
		if (m.Player1ID != nil && *m.Player1ID == participantID) ||
			(m.Player2ID != nil && *m.Player2ID == participantID) {
			return m
		}
	}
	return nil
}
