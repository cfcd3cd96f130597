package service

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/progclub/duel-arena-backend/internal/models"
)

// ProblemCatalog 레이팅별 출제 가능 문제 목록 제공자
type ProblemCatalog interface {
	ProblemsAt(rating int) []models.Problem
}

// SelectorService 결투 문제 선택기. 두 참가자 모두에게 새 문제를,
// 참가자 실력보다 낮은 난이도에서 고른다.
type SelectorService struct {
	catalog ProblemCatalog
	floor   int
	delta   int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelectorService(catalog ProblemCatalog, floor, delta int, rng *rand.Rand) *SelectorService {
	return &SelectorService{
		catalog: catalog,
		floor:   floor,
		delta:   delta,
		rng:     rng,
	}
}

// RoundRating 레이팅을 100 단위로 반올림 (명시적 난이도 요청용)
func RoundRating(rating int) int {
	return int(math.Round(float64(rating)/100.0)) * 100
}

// SuggestedRating 참가자 저지 레이팅으로부터 출제 난이도 제안.
// 낮은 쪽 레이팅을 100 단위로 반올림한 뒤 delta를 더하고 500 미만으로는
// 내려가지 않는다. 레이팅이 하나도 없으면 1500을 기준으로 삼는다.
func (s *SelectorService) SuggestedRating(participantRatings []int) int {
	lowest := 1500
	for i, r := range participantRatings {
		if i == 0 || r < lowest {
			lowest = r
		}
	}

	suggested := int(math.Round(float64(lowest)/100.0))*100 + s.delta
	if suggested < 500 {
		suggested = 500
	}
	return suggested
}

// Pick 목표 레이팅에서 시작해 100씩 내려가며 unsuitable에 없고 reject에
// 걸리지 않는 문제를 찾는다. 후보는 콘테스트 시작 시각 오름차순으로
// 정렬되고, 균등 난수 두 개 중 큰 인덱스를 골라 최근 문제 쪽으로 치우치게
// 한다. 하한까지 내려가도 후보가 없으면 ErrNoCandidateProblem.
func (s *SelectorService) Pick(target int, unsuitable map[string]struct{}, reject func(models.Problem) bool) (*models.Problem, error) {
	for rating := target; rating >= s.floor; rating -= 100 {
		candidates := s.suitableAt(rating, unsuitable, reject)
		if len(candidates) == 0 {
			continue
		}

		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].ContestStartAt.Before(candidates[j].ContestStartAt)
		})

		s.mu.Lock()
		a, b := s.rng.Intn(len(candidates)), s.rng.Intn(len(candidates))
		s.mu.Unlock()
		if b > a {
			a = b
		}

		picked := candidates[a]
		return &picked, nil
	}

	return nil, ErrNoCandidateProblem
}

func (s *SelectorService) suitableAt(rating int, unsuitable map[string]struct{}, reject func(models.Problem) bool) []models.Problem {
	pool := s.catalog.ProblemsAt(rating)
	candidates := make([]models.Problem, 0, len(pool))
	for _, p := range pool {
		if _, seen := unsuitable[p.Name]; seen {
			continue
		}
		if reject != nil && reject(p) {
			continue
		}
		candidates = append(candidates, p)
	}
	return candidates
}
