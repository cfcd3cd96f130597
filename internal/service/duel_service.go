package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/internal/repository"
	"github.com/progclub/duel-arena-backend/pkg/logger"
)

// DuelStore 결투 영속화 계층. 모든 상태 전이는 조건부 UPDATE 클레임이다.
type DuelStore interface {
	Create(ctx context.Context, duel *models.Duel) (*models.Duel, error)
	Start(ctx context.Context, duelID string, startedAt time.Time) (bool, error)
	Cancel(ctx context.Context, duelID string, to models.DuelStatus) (bool, error)
	Invalidate(ctx context.Context, duelID string) (bool, error)
	Complete(ctx context.Context, duelID string, to models.DuelStatus, winner models.Winner,
		finishedAt time.Time, challengerID, challengeeID string,
		applyRatings bool, deltas repository.DeltaFunc) (bool, int, int, error)
	FindByID(ctx context.Context, id string) (*models.Duel, error)
	FindActiveByUser(ctx context.Context, userID string) (*models.ActiveDuelView, error)
	FindPendingByChallengee(ctx context.Context, userID string) (*models.PendingDuelView, error)
	FindPendingByChallenger(ctx context.Context, userID string) (*models.PendingDuelView, error)
	HasOpenDuel(ctx context.Context, userID string) (bool, error)
	ListOngoing(ctx context.Context) ([]models.ActiveDuelView, error)
	ListPending(ctx context.Context) ([]models.PendingDuelView, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Duel, error)
	ProblemNamesSeenBy(ctx context.Context, userID string, dtype models.DuelType) ([]string, error)
}

// Judge 외부 저지 질의
type Judge interface {
	SolveTime(ctx context.Context, handle string, contestID int, index string) (models.SolveOutcome, error)
	Ratings(ctx context.Context, handles []string) ([]int, error)
	AttemptedProblems(ctx context.Context, handle string) (map[string]struct{}, error)
}

// HandleResolver 사용자 ID를 저지 핸들로 변환
type HandleResolver interface {
	HandleOf(ctx context.Context, userID string) (string, error)
}

// BracketGuard 공식 결투와 브래킷의 접점. 도전 가능 여부 확인과
// 승자 보고 적재만 담당하며, 보고 실패는 로컬 상태에 영향을 주지 않는다.
type BracketGuard interface {
	EnsureChallengeable(ctx context.Context, challengerID, challengeeID string) error
	EnqueueWinReport(ctx context.Context, duelID, winnerUserID string) error
}

// Notifier 사용자에게 이벤트 푸시
type Notifier interface {
	SendToUser(userID string, msgType string, payload interface{})
}

// DuelScheduler 키 단위 지연 실행기
type DuelScheduler interface {
	Schedule(key string, d time.Duration, fn func())
	Cancel(key string) bool
}

// WriterChecker 출제자 판별. 참가자가 출제한 콘테스트의 문제는 내지 않는다.
type WriterChecker interface {
	WroteContest(contestID int, handle string) bool
}

// DuelService 결투 수명주기 전체를 관장한다. 전이의 원자성은 저장소의
// 조건부 클레임이 보장하고, 서비스는 가드와 부수 효과만 책임진다.
type DuelService struct {
	store     DuelStore
	handles   HandleResolver
	judge     Judge
	selector  *SelectorService
	ratings   *RatingService
	brackets  BracketGuard
	notifier  Notifier
	scheduler DuelScheduler
	writers   WriterChecker

	expiry           time.Duration
	settleDelay      time.Duration
	invalidateWindow time.Duration

	mu         sync.Mutex
	drawOffers map[string]string // duelID → 먼저 제안한 사용자
}

func NewDuelService(
	store DuelStore,
	handles HandleResolver,
	judge Judge,
	selector *SelectorService,
	ratings *RatingService,
	brackets BracketGuard,
	notifier Notifier,
	scheduler DuelScheduler,
	writers WriterChecker,
	expiry, settleDelay, invalidateWindow time.Duration,
) *DuelService {
	return &DuelService{
		store:            store,
		handles:          handles,
		judge:            judge,
		selector:         selector,
		ratings:          ratings,
		brackets:         brackets,
		notifier:         notifier,
		scheduler:        scheduler,
		writers:          writers,
		expiry:           expiry,
		settleDelay:      settleDelay,
		invalidateWindow: invalidateWindow,
		drawOffers:       make(map[string]string),
	}
}

func expiryKey(duelID string) string { return "duel:expire:" + duelID }
func startKey(duelID string) string  { return "duel:start:" + duelID }

// Challenge 결투 신청. 두 사용자 모두 열린 결투가 없어야 하고, 공식
// 결투라면 브래킷에서 맞붙을 차례여야 한다. 문제는 두 사람 모두 접해본
// 적 없는 것 중에서 고르고, requestedRating이 0이 아니면 제안 난이도
// 대신 100 단위로 반올림한 요청 난이도를 쓴다.
func (s *DuelService) Challenge(ctx context.Context, challengerID, challengeeID string, dtype models.DuelType, requestedRating int) (*models.Duel, error) {
	if challengerID == challengeeID {
		return nil, ErrSelfChallenge
	}

	if busy, err := s.store.HasOpenDuel(ctx, challengerID); err != nil {
		return nil, err
	} else if busy {
		return nil, ErrAlreadyInDuel
	}
	if busy, err := s.store.HasOpenDuel(ctx, challengeeID); err != nil {
		return nil, err
	} else if busy {
		return nil, ErrOpponentBusy
	}

	if dtype == models.DuelTypeOfficial {
		if err := s.brackets.EnsureChallengeable(ctx, challengerID, challengeeID); err != nil {
			return nil, err
		}
	}

	challengerHandle, err := s.handles.HandleOf(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	challengeeHandle, err := s.handles.HandleOf(ctx, challengeeID)
	if err != nil {
		return nil, err
	}

	participantRatings, err := s.judge.Ratings(ctx, []string{challengerHandle, challengeeHandle})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}

	unsuitable, err := s.unsuitableFor(ctx, challengerID, challengeeID, challengerHandle, challengeeHandle)
	if err != nil {
		return nil, err
	}

	target := s.selector.SuggestedRating(participantRatings)
	if requestedRating != 0 {
		target = RoundRating(requestedRating)
	}

	var reject func(models.Problem) bool
	if s.writers != nil {
		reject = func(p models.Problem) bool {
			return s.writers.WroteContest(p.ContestID, challengerHandle) ||
				s.writers.WroteContest(p.ContestID, challengeeHandle)
		}
	}

	problem, err := s.selector.Pick(target, unsuitable, reject)
	if err != nil {
		return nil, err
	}

	duel := &models.Duel{
		ChallengerID:   challengerID,
		ChallengeeID:   challengeeID,
		ProblemContest: problem.ContestID,
		ProblemIndex:   problem.Index,
		ProblemName:    problem.Name,
		ProblemRating:  problem.Rating,
		Type:           dtype,
		IssuedAt:       time.Now(),
	}

	duel, err = s.store.Create(ctx, duel)
	if err != nil {
		return nil, err
	}

	duelID := duel.ID
	s.scheduler.Schedule(expiryKey(duelID), s.expiry, func() {
		s.expire(duelID)
	})

	s.notifier.SendToUser(challengeeID, "duel.challenged", duel)
	logger.Info("duel challenged",
		"duelId", duelID, "challenger", challengerID, "challengee", challengeeID, "type", dtype)

	return duel, nil
}

// expire 만료 타이머 콜백. 그 사이 수락/거절됐다면 클레임이 0행이라 무시된다.
func (s *DuelService) expire(duelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	claimed, err := s.store.Cancel(ctx, duelID, models.DuelStatusExpired)
	if err != nil {
		logger.Error("failed to expire duel", "duelId", duelID, "error", err)
		return
	}
	if !claimed {
		return
	}

	duel, err := s.store.FindByID(ctx, duelID)
	if err != nil || duel == nil {
		logger.Error("expired duel not found", "duelId", duelID, "error", err)
		return
	}

	s.notifier.SendToUser(duel.ChallengerID, "duel.expired", duel)
	s.notifier.SendToUser(duel.ChallengeeID, "duel.expired", duel)
	logger.Info("duel expired", "duelId", duelID)
}

// Accept 도전 수락. 만료 타이머를 멈추고, 준비 시간이 지난 뒤 ACTIVE
// 클레임을 시도한다. 준비 시간 동안 취소되면 클레임이 져서 시작되지 않는다.
func (s *DuelService) Accept(ctx context.Context, userID string) (*models.PendingDuelView, error) {
	view, err := s.store.FindPendingByChallengee(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrNotChallenged
	}

	duelID := view.DuelID
	s.scheduler.Cancel(expiryKey(duelID))
	s.scheduler.Schedule(startKey(duelID), s.settleDelay, func() {
		s.begin(duelID)
	})

	s.notifier.SendToUser(view.ChallengerID, "duel.accepted", view)
	logger.Info("duel accepted", "duelId", duelID, "challengee", userID)

	return view, nil
}

func (s *DuelService) begin(duelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	startedAt := time.Now()
	claimed, err := s.store.Start(ctx, duelID, startedAt)
	if err != nil {
		logger.Error("failed to start duel", "duelId", duelID, "error", err)
		return
	}
	if !claimed {
		logger.Warn("duel no longer pending at start", "duelId", duelID)
		return
	}

	duel, err := s.store.FindByID(ctx, duelID)
	if err != nil || duel == nil {
		logger.Error("started duel not found", "duelId", duelID, "error", err)
		return
	}

	s.notifier.SendToUser(duel.ChallengerID, "duel.started", duel)
	s.notifier.SendToUser(duel.ChallengeeID, "duel.started", duel)
	logger.Info("duel started", "duelId", duelID, "problem", duel.ProblemName)
}

// Decline 받은 도전 거절
func (s *DuelService) Decline(ctx context.Context, userID string) (*models.PendingDuelView, error) {
	view, err := s.store.FindPendingByChallengee(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrNotChallenged
	}

	return s.cancelPending(ctx, view, models.DuelStatusDeclined, "duel.declined")
}

// Withdraw 보낸 도전 철회
func (s *DuelService) Withdraw(ctx context.Context, userID string) (*models.PendingDuelView, error) {
	view, err := s.store.FindPendingByChallenger(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrNotChallenging
	}

	return s.cancelPending(ctx, view, models.DuelStatusWithdrawn, "duel.withdrawn")
}

func (s *DuelService) cancelPending(ctx context.Context, view *models.PendingDuelView, to models.DuelStatus, event string) (*models.PendingDuelView, error) {
	claimed, err := s.store.Cancel(ctx, view.DuelID, to)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrNotPending
	}

	s.scheduler.Cancel(expiryKey(view.DuelID))
	s.scheduler.Cancel(startKey(view.DuelID))

	s.notifier.SendToUser(view.ChallengerID, event, view)
	s.notifier.SendToUser(view.ChallengeeID, event, view)
	logger.Info("duel cancelled", "duelId", view.DuelID, "status", to)

	return view, nil
}

// Complete 결투 완료 시도. 저지에서 양측의 풀이 시각을 가져와 승패를
// 가리고, ACTIVE → 종료 클레임과 레이팅 반영을 한 트랜잭션으로 수행한다.
// 아무도 풀지 않았다면 Resolved=false 결과를 돌려주고 결투는 계속된다.
func (s *DuelService) Complete(ctx context.Context, userID string) (*models.DuelResult, error) {
	view, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrNotActive
	}

	challengerHandle, err := s.handles.HandleOf(ctx, view.ChallengerID)
	if err != nil {
		return nil, err
	}
	challengeeHandle, err := s.handles.HandleOf(ctx, view.ChallengeeID)
	if err != nil {
		return nil, err
	}

	challengerSolve, err := s.judge.SolveTime(ctx, challengerHandle, view.ProblemContest, view.ProblemIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}
	challengeeSolve, err := s.judge.SolveTime(ctx, challengeeHandle, view.ProblemContest, view.ProblemIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}

	// 채점 중인 제출이 있으면 어느 쪽으로도 확정할 수 없다
	if challengerSolve.State == models.SolveStateTesting || challengeeSolve.State == models.SolveStateTesting {
		return nil, ErrInconclusive
	}

	cSolved := challengerSolve.State == models.SolveStateSolved
	eSolved := challengeeSolve.State == models.SolveStateSolved

	if !cSolved && !eSolved {
		return &models.DuelResult{
			DuelID:   view.DuelID,
			Resolved: false,
			Message:  "Nobody has solved the problem yet.",
		}, nil
	}

	if cSolved && eSolved && challengerSolve.At.Equal(challengeeSolve.At) {
		return s.settleDraw(ctx, view, challengerSolve.At, models.DrawReasonSimultaneous, view.ChallengerID)
	}

	winner := models.WinnerChallenger
	winnerID, loserID := view.ChallengerID, view.ChallengeeID
	finishedAt := challengerSolve.At
	if !cSolved || (eSolved && challengeeSolve.At.Before(challengerSolve.At)) {
		winner = models.WinnerChallengee
		winnerID, loserID = view.ChallengeeID, view.ChallengerID
		finishedAt = challengeeSolve.At
	}

	official := view.Type == models.DuelTypeOfficial
	deltas := func(challengerRating, challengeeRating int) (int, int) {
		if winner == models.WinnerChallenger {
			d := s.ratings.Delta(challengerRating, challengeeRating, 1)
			return d, -d
		}
		d := s.ratings.Delta(challengeeRating, challengerRating, 1)
		return -d, d
	}

	claimed, cd, ed, err := s.store.Complete(ctx, view.DuelID, models.DuelStatusCompleted,
		winner, finishedAt, view.ChallengerID, view.ChallengeeID, official, deltas)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrRaceLost
	}

	s.voidDrawOffer(view.DuelID)

	if official {
		if err := s.brackets.EnqueueWinReport(ctx, view.DuelID, winnerID); err != nil {
			logger.Error("failed to enqueue bracket report", "duelId", view.DuelID, "error", err)
		}
	}

	var diff time.Duration
	if cSolved && eSolved {
		diff = challengerSolve.At.Sub(challengeeSolve.At)
		if diff < 0 {
			diff = -diff
		}
	}

	result := &models.DuelResult{
		DuelID:          view.DuelID,
		Resolved:        true,
		Status:          models.DuelStatusCompleted,
		Winner:          winner,
		WinnerID:        winnerID,
		LoserID:         loserID,
		FinishedAt:      &finishedAt,
		SolveTimeDiff:   diff,
		ChallengerDelta: cd,
		ChallengeeDelta: ed,
		Message:         fmt.Sprintf("%s won the duel against %s!", winnerID, loserID),
	}

	s.notifier.SendToUser(view.ChallengerID, "duel.completed", result)
	s.notifier.SendToUser(view.ChallengeeID, "duel.completed", result)
	logger.Info("duel completed", "duelId", view.DuelID, "winner", winnerID)

	return result, nil
}

// settleDraw ACTIVE → DRAWN 클레임. 양측 모두 0.5점으로 정산한다.
// reporterID는 브래킷에 승자로 보고할 쪽이다.
func (s *DuelService) settleDraw(ctx context.Context, view *models.ActiveDuelView, finishedAt time.Time, reason models.DrawReason, reporterID string) (*models.DuelResult, error) {
	official := view.Type == models.DuelTypeOfficial
	deltas := func(challengerRating, challengeeRating int) (int, int) {
		return s.ratings.Delta(challengerRating, challengeeRating, 0.5),
			s.ratings.Delta(challengeeRating, challengerRating, 0.5)
	}

	claimed, cd, ed, err := s.store.Complete(ctx, view.DuelID, models.DuelStatusDrawn,
		models.WinnerDraw, finishedAt, view.ChallengerID, view.ChallengeeID, official, deltas)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrRaceLost
	}

	s.voidDrawOffer(view.DuelID)

	if official {
		if err := s.brackets.EnqueueWinReport(ctx, view.DuelID, reporterID); err != nil {
			logger.Error("failed to enqueue bracket report", "duelId", view.DuelID, "error", err)
		}
	}

	result := &models.DuelResult{
		DuelID:          view.DuelID,
		Resolved:        true,
		Status:          models.DuelStatusDrawn,
		Winner:          models.WinnerDraw,
		FinishedAt:      &finishedAt,
		ChallengerDelta: cd,
		ChallengeeDelta: ed,
		DrawReason:      reason,
		Message:         "The duel ended in a draw.",
	}

	s.notifier.SendToUser(view.ChallengerID, "duel.drawn", result)
	s.notifier.SendToUser(view.ChallengeeID, "duel.drawn", result)
	logger.Info("duel drawn", "duelId", view.DuelID, "reason", reason)

	return result, nil
}

// OfferDraw 무승부 협상. 먼저 제안하면 제안이 기록되고, 상대의 제안이
// 이미 있으면 합의로 보고 결투를 무승부로 끝낸다. 같은 사람이 또
// 제안하면 상태 변화 없이 안내만 한다. 제안은 결투가 끝나면 자동으로
// 무효가 된다.
func (s *DuelService) OfferDraw(ctx context.Context, userID string) (*models.DuelResult, error) {
	view, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrNotActive
	}

	s.mu.Lock()
	offerer, offered := s.drawOffers[view.DuelID]
	if !offered {
		s.drawOffers[view.DuelID] = userID
		s.mu.Unlock()

		opponent := view.ChallengerID
		if userID == view.ChallengerID {
			opponent = view.ChallengeeID
		}
		s.notifier.SendToUser(opponent, "duel.draw_offered", view)
		logger.Info("draw offered", "duelId", view.DuelID, "by", userID)

		return &models.DuelResult{
			DuelID:   view.DuelID,
			Resolved: false,
			Message:  "Draw offered. Waiting for the opponent to agree.",
		}, nil
	}
	s.mu.Unlock()

	// 같은 사람이 또 제안해도 상태는 그대로
	if offerer == userID {
		return &models.DuelResult{
			DuelID:   view.DuelID,
			Resolved: false,
			Message:  "Draw already offered. Waiting for the opponent to agree.",
		}, nil
	}

	// 합의 성립: 먼저 제안한 쪽을 브래킷 보고 담당으로 삼는다
	return s.settleDraw(ctx, view, time.Now(), models.DrawReasonNegotiated, offerer)
}

func (s *DuelService) voidDrawOffer(duelID string) {
	s.mu.Lock()
	delete(s.drawOffers, duelID)
	s.mu.Unlock()
}

// Invalidate 결투 당사자가 시작 직후의 결투를 무효화한다.
// 시작 후 허용 시간이 지나면 관리자만 무효화할 수 있다.
func (s *DuelService) Invalidate(ctx context.Context, userID string) (*models.ActiveDuelView, error) {
	view, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrNotActive
	}

	if time.Since(view.StartedAt) > s.invalidateWindow {
		return nil, ErrWindowExpired
	}

	return s.invalidate(ctx, view)
}

// AdminInvalidate 관리자의 무효화. 시간 제한이 없다.
func (s *DuelService) AdminInvalidate(ctx context.Context, duelID string) (*models.ActiveDuelView, error) {
	duel, err := s.store.FindByID(ctx, duelID)
	if err != nil {
		return nil, err
	}
	if duel == nil || duel.Status != models.DuelStatusActive {
		return nil, ErrNotActive
	}

	view := &models.ActiveDuelView{
		DuelID:         duel.ID,
		ChallengerID:   duel.ChallengerID,
		ChallengeeID:   duel.ChallengeeID,
		ProblemContest: duel.ProblemContest,
		ProblemIndex:   duel.ProblemIndex,
		ProblemName:    duel.ProblemName,
		ProblemRating:  duel.ProblemRating,
		Type:           duel.Type,
	}
	if duel.StartedAt != nil {
		view.StartedAt = *duel.StartedAt
	}

	return s.invalidate(ctx, view)
}

func (s *DuelService) invalidate(ctx context.Context, view *models.ActiveDuelView) (*models.ActiveDuelView, error) {
	claimed, err := s.store.Invalidate(ctx, view.DuelID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrNotActive
	}

	s.voidDrawOffer(view.DuelID)

	s.notifier.SendToUser(view.ChallengerID, "duel.invalidated", view)
	s.notifier.SendToUser(view.ChallengeeID, "duel.invalidated", view)
	logger.Info("duel invalidated", "duelId", view.DuelID)

	return view, nil
}

// Ongoing 진행 중인 결투 목록
func (s *DuelService) Ongoing(ctx context.Context) ([]models.ActiveDuelView, error) {
	return s.store.ListOngoing(ctx)
}

// Pending 수락 대기 중인 결투 목록
func (s *DuelService) Pending(ctx context.Context) ([]models.PendingDuelView, error) {
	return s.store.ListPending(ctx)
}

// Recent 최근 끝난 결투 목록
func (s *DuelService) Recent(ctx context.Context, limit int) ([]*models.Duel, error) {
	return s.store.ListRecent(ctx, limit)
}

// unsuitableFor 두 참가자 중 한 명이라도 접해본 문제의 이름 집합.
// 공식/비공식 양쪽 결투에서 받았던 문제와 저지에서 시도한 문제를 합친다.
func (s *DuelService) unsuitableFor(ctx context.Context, userA, userB, handleA, handleB string) (map[string]struct{}, error) {
	unsuitable := make(map[string]struct{})

	for _, id := range []string{userA, userB} {
		for _, dtype := range []models.DuelType{models.DuelTypeOfficial, models.DuelTypeUnofficial} {
			names, err := s.store.ProblemNamesSeenBy(ctx, id, dtype)
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				unsuitable[name] = struct{}{}
			}
		}
	}

	for _, handle := range []string{handleA, handleB} {
		attempted, err := s.judge.AttemptedProblems(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
		}
		for name := range attempted {
			unsuitable[name] = struct{}{}
		}
	}

	return unsuitable, nil
}
