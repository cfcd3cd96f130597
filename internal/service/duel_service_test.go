package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/internal/repository"
	"github.com/progclub/duel-arena-backend/pkg/scheduler"
)

// fakeDuelStore 조건부 클레임 의미론을 그대로 흉내내는 인메모리 저장소
type fakeDuelStore struct {
	mu      sync.Mutex
	seq     int
	duels   map[string]*models.Duel
	ratings map[string]int
}

func newFakeDuelStore() *fakeDuelStore {
	return &fakeDuelStore{
		duels:   make(map[string]*models.Duel),
		ratings: make(map[string]int),
	}
}

func (f *fakeDuelStore) Create(_ context.Context, duel *models.Duel) (*models.Duel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	duel.ID = fmt.Sprintf("duel-%d", f.seq)
	duel.Status = models.DuelStatusPending
	duel.CreatedAt = time.Now()
	f.duels[duel.ID] = duel
	return duel, nil
}

func (f *fakeDuelStore) Start(_ context.Context, duelID string, startedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.duels[duelID]
	if !ok || d.Status != models.DuelStatusPending {
		return false, nil
	}
	d.Status = models.DuelStatusActive
	d.StartedAt = &startedAt
	return true, nil
}

func (f *fakeDuelStore) Cancel(_ context.Context, duelID string, to models.DuelStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.duels[duelID]
	if !ok || d.Status != models.DuelStatusPending {
		return false, nil
	}
	d.Status = to
	return true, nil
}

func (f *fakeDuelStore) Invalidate(_ context.Context, duelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.duels[duelID]
	if !ok || d.Status != models.DuelStatusActive {
		return false, nil
	}
	d.Status = models.DuelStatusInvalidated
	return true, nil
}

func (f *fakeDuelStore) Complete(_ context.Context, duelID string, to models.DuelStatus, winner models.Winner,
	finishedAt time.Time, challengerID, challengeeID string,
	applyRatings bool, deltas repository.DeltaFunc) (bool, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.duels[duelID]
	if !ok || d.Status != models.DuelStatusActive {
		return false, 0, 0, nil
	}

	cr, er := f.ratingLocked(challengerID), f.ratingLocked(challengeeID)
	cd, ed := deltas(cr, er)

	d.Status = to
	d.Winner = &winner
	d.FinishedAt = &finishedAt
	d.ChallengerDelta = &cd
	d.ChallengeeDelta = &ed

	if applyRatings {
		f.ratings[challengerID] = cr + cd
		f.ratings[challengeeID] = er + ed
	}

	return true, cd, ed, nil
}

func (f *fakeDuelStore) ratingLocked(userID string) int {
	if r, ok := f.ratings[userID]; ok {
		return r
	}
	return 1500
}

func (f *fakeDuelStore) FindByID(_ context.Context, id string) (*models.Duel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duels[id], nil
}

func (f *fakeDuelStore) FindActiveByUser(_ context.Context, userID string) (*models.ActiveDuelView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.duels {
		if d.Status == models.DuelStatusActive && (d.ChallengerID == userID || d.ChallengeeID == userID) {
			view := &models.ActiveDuelView{
				DuelID:         d.ID,
				ChallengerID:   d.ChallengerID,
				ChallengeeID:   d.ChallengeeID,
				ProblemContest: d.ProblemContest,
				ProblemIndex:   d.ProblemIndex,
				ProblemName:    d.ProblemName,
				ProblemRating:  d.ProblemRating,
				Type:           d.Type,
			}
			if d.StartedAt != nil {
				view.StartedAt = *d.StartedAt
			}
			return view, nil
		}
	}
	return nil, nil
}

func (f *fakeDuelStore) FindPendingByChallengee(_ context.Context, userID string) (*models.PendingDuelView, error) {
	return f.findPending(func(d *models.Duel) bool { return d.ChallengeeID == userID })
}

func (f *fakeDuelStore) FindPendingByChallenger(_ context.Context, userID string) (*models.PendingDuelView, error) {
	return f.findPending(func(d *models.Duel) bool { return d.ChallengerID == userID })
}

func (f *fakeDuelStore) findPending(match func(*models.Duel) bool) (*models.PendingDuelView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.duels {
		if d.Status == models.DuelStatusPending && match(d) {
			return &models.PendingDuelView{
				DuelID:        d.ID,
				ChallengerID:  d.ChallengerID,
				ChallengeeID:  d.ChallengeeID,
				ProblemName:   d.ProblemName,
				ProblemRating: d.ProblemRating,
				Type:          d.Type,
				IssuedAt:      d.IssuedAt,
			}, nil
		}
	}
	return nil, nil
}

func (f *fakeDuelStore) HasOpenDuel(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.duels {
		if !d.Status.Terminal() && (d.ChallengerID == userID || d.ChallengeeID == userID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDuelStore) ListOngoing(_ context.Context) ([]models.ActiveDuelView, error) {
	return nil, nil
}

func (f *fakeDuelStore) ListPending(_ context.Context) ([]models.PendingDuelView, error) {
	return nil, nil
}

func (f *fakeDuelStore) ListRecent(_ context.Context, _ int) ([]*models.Duel, error) {
	return nil, nil
}

func (f *fakeDuelStore) ProblemNamesSeenBy(_ context.Context, userID string, dtype models.DuelType) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, d := range f.duels {
		if d.Type == dtype && (d.ChallengerID == userID || d.ChallengeeID == userID) {
			names = append(names, d.ProblemName)
		}
	}
	return names, nil
}

type fakeJudge struct {
	mu        sync.Mutex
	solves    map[string]models.SolveOutcome
	ratings   map[string]int
	attempted map[string]map[string]struct{}
}

func newFakeJudge() *fakeJudge {
	return &fakeJudge{
		solves:    make(map[string]models.SolveOutcome),
		ratings:   make(map[string]int),
		attempted: make(map[string]map[string]struct{}),
	}
}

func (j *fakeJudge) setSolve(handle string, outcome models.SolveOutcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.solves[handle] = outcome
}

func (j *fakeJudge) SolveTime(_ context.Context, handle string, _ int, _ string) (models.SolveOutcome, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if outcome, ok := j.solves[handle]; ok {
		return outcome, nil
	}
	return models.SolveOutcome{State: models.SolveStateUnsolved}, nil
}

func (j *fakeJudge) Ratings(_ context.Context, handles []string) ([]int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]int, 0, len(handles))
	for _, h := range handles {
		if r, ok := j.ratings[h]; ok {
			out = append(out, r)
		} else {
			out = append(out, 1500)
		}
	}
	return out, nil
}

func (j *fakeJudge) AttemptedProblems(_ context.Context, handle string) (map[string]struct{}, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attempted[handle], nil
}

type fakeHandles struct{}

func (fakeHandles) HandleOf(_ context.Context, userID string) (string, error) {
	return "h-" + userID, nil
}

type fakeBrackets struct {
	mu           sync.Mutex
	challengeErr error
	reports      []string // winnerUserID 순서대로
}

func (b *fakeBrackets) EnsureChallengeable(_ context.Context, _, _ string) error {
	return b.challengeErr
}

func (b *fakeBrackets) EnqueueWinReport(_ context.Context, _, winnerUserID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports = append(b.reports, winnerUserID)
	return nil
}

func (b *fakeBrackets) reported() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.reports...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string // "userID:msgType"
}

func (n *fakeNotifier) SendToUser(userID, msgType string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, userID+":"+msgType)
}

func (n *fakeNotifier) has(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

// fakeWriters 핸들이 출제한 콘테스트 ID 집합
type fakeWriters struct {
	byHandle map[string]map[int]struct{}
}

func (w *fakeWriters) WroteContest(contestID int, handle string) bool {
	_, ok := w.byHandle[handle][contestID]
	return ok
}

type duelEnv struct {
	store    *fakeDuelStore
	judge    *fakeJudge
	brackets *fakeBrackets
	notifier *fakeNotifier
	writers  *fakeWriters
	sched    *scheduler.Scheduler
	svc      *DuelService
}

func newDuelEnv(t *testing.T, expiry, settleDelay time.Duration) *duelEnv {
	t.Helper()

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	catalog := &fakeCatalog{byRating: map[int][]models.Problem{}}
	for rating := 400; rating <= 2000; rating += 100 {
		for i := 0; i < 3; i++ {
			name := fmt.Sprintf("P%d-%d", rating, i)
			catalog.byRating[rating] = append(catalog.byRating[rating],
				problemAt(name, rating, base.Add(time.Duration(i)*time.Hour)))
		}
	}

	env := &duelEnv{
		store:    newFakeDuelStore(),
		judge:    newFakeJudge(),
		brackets: &fakeBrackets{},
		notifier: &fakeNotifier{},
		writers:  &fakeWriters{byHandle: make(map[string]map[int]struct{})},
		sched:    scheduler.New(),
	}
	t.Cleanup(env.sched.Close)

	selector := NewSelectorService(catalog, 400, -400, rand.New(rand.NewSource(7)))
	env.svc = NewDuelService(
		env.store, fakeHandles{}, env.judge, selector, NewRatingService(),
		env.brackets, env.notifier, env.sched, env.writers,
		expiry, settleDelay, 2*time.Minute,
	)
	return env
}

// activeDuel 도전, 수락, 시작까지 끝난 ACTIVE 결투 준비
func (e *duelEnv) activeDuel(t *testing.T, dtype models.DuelType) *models.Duel {
	t.Helper()
	ctx := context.Background()

	duel, err := e.svc.Challenge(ctx, "alice", "bob", dtype, 0)
	require.NoError(t, err)

	_, err = e.svc.Accept(ctx, "bob")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		d, _ := e.store.FindByID(ctx, duel.ID)
		return d.Status == models.DuelStatusActive
	}, time.Second, 5*time.Millisecond)

	return duel
}

func TestDuelService_Challenge(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending duel with a fresh problem", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		env.judge.ratings["h-alice"] = 1850
		env.judge.ratings["h-bob"] = 1720
		env.judge.attempted["h-bob"] = map[string]struct{}{"P1300-0": {}, "P1300-1": {}, "P1300-2": {}}

		duel, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 0)
		require.NoError(t, err)

		assert.Equal(t, models.DuelStatusPending, duel.Status)
		// 제안 난이도 1300은 모두 시도된 문제라 1200으로 내려간다
		assert.Equal(t, 1200, duel.ProblemRating)
		assert.True(t, env.notifier.has("bob:duel.challenged"))
	})

	t.Run("rejects self challenge", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		_, err := env.svc.Challenge(ctx, "alice", "alice", models.DuelTypeUnofficial, 0)
		assert.ErrorIs(t, err, ErrSelfChallenge)
	})

	t.Run("one open duel per user", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)

		_, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 0)
		require.NoError(t, err)

		_, err = env.svc.Challenge(ctx, "alice", "carol", models.DuelTypeUnofficial, 0)
		assert.ErrorIs(t, err, ErrAlreadyInDuel)

		_, err = env.svc.Challenge(ctx, "carol", "bob", models.DuelTypeUnofficial, 0)
		assert.ErrorIs(t, err, ErrOpponentBusy)
	})

	t.Run("official duel requires an open bracket match", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		env.brackets.challengeErr = ErrNoOpenMatch

		_, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeOfficial, 0)
		assert.ErrorIs(t, err, ErrNoOpenMatch)
	})

	t.Run("explicit rating request is rounded and honoured", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		env.judge.ratings["h-alice"] = 1850
		env.judge.ratings["h-bob"] = 1720

		duel, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 949)
		require.NoError(t, err)
		assert.Equal(t, 900, duel.ProblemRating)
	})

	t.Run("problems from a contest a participant wrote are excluded", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		// 테스트 카탈로그의 모든 문제는 콘테스트 1 소속이다
		env.writers.byHandle["h-bob"] = map[int]struct{}{1: {}}

		_, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 0)
		assert.ErrorIs(t, err, ErrNoCandidateProblem)
	})

	t.Run("a problem from an earlier duel of either type is never reissued", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)

		first, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 0)
		require.NoError(t, err)
		_, err = env.svc.Decline(ctx, "bob")
		require.NoError(t, err)

		second, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeOfficial, 0)
		require.NoError(t, err)
		assert.NotEqual(t, first.ProblemName, second.ProblemName)
	})
}

func TestDuelService_ExpiryAndAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("unanswered challenge expires", func(t *testing.T) {
		env := newDuelEnv(t, 20*time.Millisecond, time.Millisecond)

		duel, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 0)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			d, _ := env.store.FindByID(ctx, duel.ID)
			return d.Status == models.DuelStatusExpired
		}, time.Second, 5*time.Millisecond)

		assert.True(t, env.notifier.has("alice:duel.expired"))
	})

	t.Run("accept cancels the expiry and starts after the settle delay", func(t *testing.T) {
		env := newDuelEnv(t, 50*time.Millisecond, 10*time.Millisecond)

		duel, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 0)
		require.NoError(t, err)

		_, err = env.svc.Accept(ctx, "bob")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			d, _ := env.store.FindByID(ctx, duel.ID)
			return d.Status == models.DuelStatusActive
		}, time.Second, 5*time.Millisecond)

		// 만료 예정 시간이 지나도 ACTIVE 그대로
		time.Sleep(80 * time.Millisecond)
		d, _ := env.store.FindByID(ctx, duel.ID)
		assert.Equal(t, models.DuelStatusActive, d.Status)
		assert.True(t, env.notifier.has("bob:duel.started"))
	})

	t.Run("accept without an incoming challenge", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		_, err := env.svc.Accept(ctx, "bob")
		assert.ErrorIs(t, err, ErrNotChallenged)
	})
}

func TestDuelService_DeclineAndWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("challengee declines", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)

		duel, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 0)
		require.NoError(t, err)

		_, err = env.svc.Decline(ctx, "bob")
		require.NoError(t, err)

		d, _ := env.store.FindByID(ctx, duel.ID)
		assert.Equal(t, models.DuelStatusDeclined, d.Status)

		// 거절 후에는 둘 다 새 결투 가능
		_, err = env.svc.Challenge(ctx, "bob", "alice", models.DuelTypeUnofficial, 0)
		assert.NoError(t, err)
	})

	t.Run("challenger withdraws", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)

		duel, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 0)
		require.NoError(t, err)

		_, err = env.svc.Withdraw(ctx, "alice")
		require.NoError(t, err)

		d, _ := env.store.FindByID(ctx, duel.ID)
		assert.Equal(t, models.DuelStatusWithdrawn, d.Status)
	})

	t.Run("decline requires an incoming challenge", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)

		_, err := env.svc.Challenge(ctx, "alice", "bob", models.DuelTypeUnofficial, 0)
		require.NoError(t, err)

		// 도전자가 거절을 시도하면 실패해야 한다
		_, err = env.svc.Decline(ctx, "alice")
		assert.ErrorIs(t, err, ErrNotChallenged)
	})
}

func TestDuelService_Complete(t *testing.T) {
	ctx := context.Background()
	solveBase := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("faster solver wins and ratings move", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		duel := env.activeDuel(t, models.DuelTypeOfficial)

		env.judge.setSolve("h-alice", models.SolveOutcome{State: models.SolveStateSolved, At: solveBase.Add(100 * time.Second)})
		env.judge.setSolve("h-bob", models.SolveOutcome{State: models.SolveStateSolved, At: solveBase.Add(80 * time.Second)})

		result, err := env.svc.Complete(ctx, "alice")
		require.NoError(t, err)

		assert.True(t, result.Resolved)
		assert.Equal(t, models.WinnerChallengee, result.Winner)
		assert.Equal(t, "bob", result.WinnerID)
		assert.Equal(t, 20*time.Second, result.SolveTimeDiff)
		assert.Equal(t, 30, result.ChallengeeDelta)
		assert.Equal(t, -30, result.ChallengerDelta)

		d, _ := env.store.FindByID(ctx, duel.ID)
		assert.Equal(t, models.DuelStatusCompleted, d.Status)
		assert.Equal(t, 1530, env.store.ratingLocked("bob"))
		assert.Equal(t, 1470, env.store.ratingLocked("alice"))
		assert.Equal(t, []string{"bob"}, env.brackets.reported())
	})

	t.Run("unofficial duel leaves ratings and bracket untouched", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		env.activeDuel(t, models.DuelTypeUnofficial)

		env.judge.setSolve("h-alice", models.SolveOutcome{State: models.SolveStateSolved, At: solveBase})

		result, err := env.svc.Complete(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "alice", result.WinnerID)

		assert.Equal(t, 1500, env.store.ratingLocked("alice"))
		assert.Empty(t, env.brackets.reported())
	})

	t.Run("identical solve times draw the duel", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		env.activeDuel(t, models.DuelTypeUnofficial)

		at := solveBase.Add(90 * time.Second)
		env.judge.setSolve("h-alice", models.SolveOutcome{State: models.SolveStateSolved, At: at})
		env.judge.setSolve("h-bob", models.SolveOutcome{State: models.SolveStateSolved, At: at})

		result, err := env.svc.Complete(ctx, "alice")
		require.NoError(t, err)

		assert.Equal(t, models.DuelStatusDrawn, result.Status)
		assert.Equal(t, models.DrawReasonSimultaneous, result.DrawReason)
		assert.Equal(t, 0, result.ChallengerDelta)
		assert.Equal(t, 0, result.ChallengeeDelta)
	})

	t.Run("pending judgement is inconclusive", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		duel := env.activeDuel(t, models.DuelTypeUnofficial)

		env.judge.setSolve("h-alice", models.SolveOutcome{State: models.SolveStateSolved, At: solveBase})
		env.judge.setSolve("h-bob", models.SolveOutcome{State: models.SolveStateTesting})

		_, err := env.svc.Complete(ctx, "alice")
		assert.ErrorIs(t, err, ErrInconclusive)

		// 결투는 그대로 진행 중
		d, _ := env.store.FindByID(ctx, duel.ID)
		assert.Equal(t, models.DuelStatusActive, d.Status)
	})

	t.Run("nobody solved yet keeps the duel running", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		duel := env.activeDuel(t, models.DuelTypeUnofficial)

		result, err := env.svc.Complete(ctx, "alice")
		require.NoError(t, err)

		assert.False(t, result.Resolved)
		d, _ := env.store.FindByID(ctx, duel.ID)
		assert.Equal(t, models.DuelStatusActive, d.Status)
	})

	t.Run("concurrent completion settles exactly once", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		env.activeDuel(t, models.DuelTypeOfficial)

		env.judge.setSolve("h-alice", models.SolveOutcome{State: models.SolveStateSolved, At: solveBase})

		const attempts = 8
		errs := make(chan error, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.svc.Complete(ctx, "alice")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var won, lost int
		for err := range errs {
			switch {
			case err == nil:
				won++
			case err == ErrRaceLost || err == ErrNotActive:
				lost++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}

		assert.Equal(t, 1, won)
		assert.Equal(t, attempts-1, lost)
		assert.Len(t, env.brackets.reported(), 1)
	})
}

func TestDuelService_DrawNegotiation(t *testing.T) {
	ctx := context.Background()

	t.Run("handshake completes the duel as a draw", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		duel := env.activeDuel(t, models.DuelTypeOfficial)

		first, err := env.svc.OfferDraw(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, first.Resolved)
		assert.True(t, env.notifier.has("bob:duel.draw_offered"))

		second, err := env.svc.OfferDraw(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, second.Resolved)
		assert.Equal(t, models.DrawReasonNegotiated, second.DrawReason)

		d, _ := env.store.FindByID(ctx, duel.ID)
		assert.Equal(t, models.DuelStatusDrawn, d.Status)
		// 먼저 제안한 쪽이 브래킷 보고 담당
		assert.Equal(t, []string{"alice"}, env.brackets.reported())
	})

	t.Run("offering twice changes nothing", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		duel := env.activeDuel(t, models.DuelTypeUnofficial)

		_, err := env.svc.OfferDraw(ctx, "alice")
		require.NoError(t, err)

		again, err := env.svc.OfferDraw(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, again.Resolved)

		d, _ := env.store.FindByID(ctx, duel.ID)
		assert.Equal(t, models.DuelStatusActive, d.Status)
	})

	t.Run("stale offer does not survive a completed duel", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		env.activeDuel(t, models.DuelTypeUnofficial)

		_, err := env.svc.OfferDraw(ctx, "alice")
		require.NoError(t, err)

		env.judge.setSolve("h-alice", models.SolveOutcome{State: models.SolveStateSolved, At: time.Now()})
		_, err = env.svc.Complete(ctx, "bob")
		require.NoError(t, err)

		// 새 결투에서는 이전 제안이 남아 있지 않다
		env.activeDuel(t, models.DuelTypeUnofficial)
		result, err := env.svc.OfferDraw(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, result.Resolved)
	})
}

func TestDuelService_Invalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("participant can invalidate right after start", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		duel := env.activeDuel(t, models.DuelTypeUnofficial)

		_, err := env.svc.Invalidate(ctx, "alice")
		require.NoError(t, err)

		d, _ := env.store.FindByID(ctx, duel.ID)
		assert.Equal(t, models.DuelStatusInvalidated, d.Status)
	})

	t.Run("window is enforced for participants", func(t *testing.T) {
		env := newDuelEnv(t, time.Hour, time.Millisecond)
		duel := env.activeDuel(t, models.DuelTypeUnofficial)

		// 시작 시각을 창 너머로 밀어낸다
		env.store.mu.Lock()
		past := time.Now().Add(-3 * time.Minute)
		env.store.duels[duel.ID].StartedAt = &past
		env.store.mu.Unlock()

		_, err := env.svc.Invalidate(ctx, "alice")
		assert.ErrorIs(t, err, ErrWindowExpired)

		// 관리자는 창과 무관하게 무효화 가능
		_, err = env.svc.AdminInvalidate(ctx, duel.ID)
		assert.NoError(t, err)
	})
}
