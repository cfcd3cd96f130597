package service

import "math"

// eloConstant 결투 한 판의 레이팅 변동 폭 (K-factor)
const eloConstant = 60.0

// RatingService Elo 레이팅 계산
type RatingService struct{}

func NewRatingService() *RatingService {
	return &RatingService{}
}

// WinProbability a가 b를 이길 확률 (표준 Elo 기대 점수)
func (s *RatingService) WinProbability(ratingA, ratingB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/400.0))
}

// Delta 결과 반영 후 a의 레이팅 변동. score는 1(승), 0.5(무), 0(패).
// 반올림 후 정수이므로 승자와 패자의 변동 합이 0이 되도록 호출 측에서
// 승자 델타의 부호 반전으로 패자 델타를 만든다.
func (s *RatingService) Delta(ratingA, ratingB int, score float64) int {
	return int(math.Round(eloConstant * (score - s.WinProbability(ratingA, ratingB))))
}
