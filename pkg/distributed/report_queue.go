package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrQueueEmpty = errors.New("queue is empty")

// ReportItem 브래킷 승자 보고 재시도 항목. 결투는 로컬에서 이미 종료되었고
// 원격 브래킷 반영만 남은 상태를 나타낸다.
type ReportItem struct {
	ID           string    `json:"id"`
	DuelID       string    `json:"duelId"`
	WinnerUserID string    `json:"winnerUserId"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"maxAttempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ReportQueue Redis 리스트 기반 보고 재시도 큐. 최대 재시도를 넘긴 항목은
// DLQ로 옮겨 운영자가 수동 처리할 수 있게 남긴다.
type ReportQueue struct {
	client   *redis.Client
	queueKey string
	dlqKey   string
}

// NewReportQueue 보고 재시도 큐 생성
func NewReportQueue(client *redis.Client, name string) *ReportQueue {
	return &ReportQueue{
		client:   client,
		queueKey: fmt.Sprintf("queue:%s", name),
		dlqKey:   fmt.Sprintf("queue:%s:dlq", name),
	}
}

// Enqueue 큐에 항목 추가
func (q *ReportQueue) Enqueue(ctx context.Context, item *ReportItem) error {
	now := time.Now()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.MaxAttempts <= 0 {
		item.MaxAttempts = 10
	}
	item.UpdatedAt = now

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal report item: %w", err)
	}

	if err := q.client.RPush(ctx, q.queueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue report: %w", err)
	}

	return nil
}

// Dequeue 큐 앞에서 항목 하나 꺼내기
func (q *ReportQueue) Dequeue(ctx context.Context) (*ReportItem, error) {
	data, err := q.client.LPop(ctx, q.queueKey).Result()
	if err == redis.Nil {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue report: %w", err)
	}

	var item ReportItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report item: %w", err)
	}

	return &item, nil
}

// Retry 실패한 항목을 다시 큐에 넣기. 재시도 한도를 넘기면 DLQ로 이동.
func (q *ReportQueue) Retry(ctx context.Context, item *ReportItem) error {
	item.Attempts++
	item.UpdatedAt = time.Now()

	if item.Attempts >= item.MaxAttempts {
		return q.moveToDLQ(ctx, item)
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal report item: %w", err)
	}

	if err := q.client.RPush(ctx, q.queueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to requeue report: %w", err)
	}

	return nil
}

func (q *ReportQueue) moveToDLQ(ctx context.Context, item *ReportItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ item: %w", err)
	}

	if err := q.client.RPush(ctx, q.dlqKey, data).Err(); err != nil {
		return fmt.Errorf("failed to move to DLQ: %w", err)
	}

	return nil
}

// Size 큐 크기 조회
func (q *ReportQueue) Size(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueKey).Result()
}

// DLQSize DLQ 크기 조회
func (q *ReportQueue) DLQSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.dlqKey).Result()
}
