package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/progclub/duel-arena-backend/pkg/distributed"
	"github.com/progclub/duel-arena-backend/pkg/logger"
)

// BracketSyncWorker 브래킷 승자 보고 큐를 주기적으로 비우는 워커.
// 전송 실패는 재시도 큐로 돌려보내고, 한도를 넘기면 큐가 DLQ로 옮긴다.
type BracketSyncWorker struct {
	tournaments *TournamentService
	reports     ReportSink
	interval    time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewBracketSyncWorker(tournaments *TournamentService, reports ReportSink, interval time.Duration) *BracketSyncWorker {
	return &BracketSyncWorker{
		tournaments: tournaments,
		reports:     reports,
		interval:    interval,
	}
}

// Start 워커 시작
func (w *BracketSyncWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		logger.Warn("bracket sync worker already running")
		return
	}

	w.running = true
	w.stopChan = make(chan struct{})
	w.wg.Add(1)
	go w.loop()

	logger.Info("bracket sync worker started", "interval", w.interval)
}

// Stop 워커 정지
func (w *BracketSyncWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	w.mu.Unlock()

	w.wg.Wait()
	logger.Info("bracket sync worker stopped")
}

func (w *BracketSyncWorker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.drain()
		}
	}
}

// drain 큐가 빌 때까지 보고를 전송한다. 한 건이라도 실패하면 그 항목만
// 재시도로 돌리고 나머지는 계속 처리한다.
func (w *BracketSyncWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	for {
		item, err := w.reports.Dequeue(ctx)
		if errors.Is(err, distributed.ErrQueueEmpty) {
			return
		}
		if err != nil {
			logger.Error("failed to dequeue bracket report", "error", err)
			return
		}

		if err := w.tournaments.ProcessReport(ctx, item); err != nil {
			logger.Warn("bracket report failed, will retry",
				"duelId", item.DuelID, "attempts", item.Attempts, "error", err)
			if err := w.reports.Retry(ctx, item); err != nil {
				logger.Error("failed to requeue bracket report", "duelId", item.DuelID, "error", err)
			}
		}
	}
}
