package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/progclub/duel-arena-backend/internal/judge"
	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/pkg/logger"
)

// Source 문제와 콘테스트 원본 제공자
type Source interface {
	Problems(ctx context.Context) ([]models.Problem, error)
	Contests(ctx context.Context) ([]judge.Contest, error)
}

// 비정규 콘테스트 이름 징후. 이런 콘테스트의 문제는 출제에서 제외한다.
var nonStandardMarkers = []string{
	"wild", "fools", "unrated", "surprise", "unknown",
	"marathon", "kotlin", "onsite", "experimental", "testing",
}

// Catalog 출제 가능 문제의 메모리 캐시. 주기적으로 저지에서 새로
// 받아오고, 그 사이에는 레이팅별 색인으로 바로 답한다.
type Catalog struct {
	source          Source
	refreshInterval time.Duration

	mu       sync.RWMutex
	byRating map[int][]models.Problem
	writers  map[int]map[string]struct{} // contestID → 출제자 핸들(소문자)
	total    int

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(source Source, refreshInterval time.Duration) *Catalog {
	return &Catalog{
		source:          source,
		refreshInterval: refreshInterval,
		byRating:        make(map[int][]models.Problem),
		writers:         make(map[int]map[string]struct{}),
		stopChan:        make(chan struct{}),
	}
}

// LoadWriters 콘테스트별 출제자 목록을 JSON 파일에서 읽는다.
// 형식은 {"1234": ["handleA", "handleB"], ...} 이다.
func (c *Catalog) LoadWriters(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read writers file: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse writers file: %w", err)
	}

	writers := make(map[int]map[string]struct{}, len(raw))
	for key, handles := range raw {
		contestID, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid contest id %q in writers file", key)
		}
		set := make(map[string]struct{}, len(handles))
		for _, h := range handles {
			set[strings.ToLower(h)] = struct{}{}
		}
		writers[contestID] = set
	}

	c.mu.Lock()
	c.writers = writers
	c.mu.Unlock()

	logger.Info("contest writers loaded", "contests", len(writers), "path", path)
	return nil
}

// WroteContest 해당 핸들이 그 콘테스트의 출제자인지. 대소문자 무시.
func (c *Catalog) WroteContest(contestID int, handle string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.writers[contestID][strings.ToLower(handle)]
	return ok
}

// Start 최초 적재 후 주기적 갱신 시작
func (c *Catalog) Start(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.refreshLoop()

	logger.Info("problem catalog started", "problems", c.Size(), "interval", c.refreshInterval)
	return nil
}

// Stop 갱신 루프 종료
func (c *Catalog) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	logger.Info("problem catalog stopped")
}

func (c *Catalog) refreshLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if err := c.Refresh(ctx); err != nil {
				// 갱신 실패 시 기존 캐시로 계속 서비스
				logger.Error("catalog refresh failed", "error", err)
			}
			cancel()
		}
	}
}

// Refresh 저지에서 문제와 콘테스트를 받아 색인을 새로 만든다.
// 끝난 정규 콘테스트의 문제만 남긴다.
func (c *Catalog) Refresh(ctx context.Context) error {
	contests, err := c.source.Contests(ctx)
	if err != nil {
		return err
	}

	starts := make(map[int]time.Time, len(contests))
	for _, contest := range contests {
		if contest.Phase != "FINISHED" || isNonStandard(contest.Name) {
			continue
		}
		starts[contest.ID] = time.Unix(contest.StartTimeSeconds, 0).UTC()
	}

	problems, err := c.source.Problems(ctx)
	if err != nil {
		return err
	}

	byRating := make(map[int][]models.Problem)
	total := 0
	for _, p := range problems {
		start, ok := starts[p.ContestID]
		if !ok {
			continue
		}
		p.ContestStartAt = start
		byRating[p.Rating] = append(byRating[p.Rating], p)
		total++
	}

	c.mu.Lock()
	c.byRating = byRating
	c.total = total
	c.mu.Unlock()

	logger.Debug("catalog refreshed", "problems", total, "ratings", len(byRating))
	return nil
}

// ProblemsAt 해당 레이팅의 출제 후보. 반환 슬라이스는 다음 갱신까지
// 불변이므로 그대로 읽어도 된다.
func (c *Catalog) ProblemsAt(rating int) []models.Problem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byRating[rating]
}

// Size 적재된 문제 수
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

func isNonStandard(contestName string) bool {
	lower := strings.ToLower(contestName)
	for _, marker := range nonStandardMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
