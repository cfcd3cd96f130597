package service

import "errors"

var (
	// 결투 생성/상태 가드
	ErrAlreadyInDuel      = errors.New("user already has an open duel")
	ErrOpponentBusy       = errors.New("opponent already has an open duel")
	ErrSelfChallenge      = errors.New("cannot challenge yourself")
	ErrNotChallenged      = errors.New("user has no incoming challenge")
	ErrNotChallenging     = errors.New("user has no outgoing challenge")
	ErrNotPending         = errors.New("duel is not pending")
	ErrNotActive          = errors.New("duel is not active")
	ErrNoCandidateProblem = errors.New("no unseen problem available at any rating")

	// 완료 경합/판정
	ErrRaceLost      = errors.New("duel was already completed by the opponent")
	ErrInconclusive  = errors.New("a submission is still being judged, try again later")
	ErrWindowExpired = errors.New("invalidation window has passed")

	// 무승부 협상
	ErrNoDrawOffer = errors.New("no draw offer from the opponent")

	// 토너먼트
	ErrTournamentRunning    = errors.New("a tournament is already in progress")
	ErrTournamentNotRunning = errors.New("no tournament is in progress")
	ErrNotInTournament      = errors.New("user is not registered in the tournament")
	ErrAlreadyRegistered    = errors.New("user is already registered in the tournament")
	ErrNoOpenMatch          = errors.New("no open bracket match between these users")
	ErrNotEnoughContestants = errors.New("a tournament needs at least two contestants")

	// 외부 서비스
	ErrExternalUnavailable = errors.New("external service unavailable")
)
