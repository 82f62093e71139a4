package sweeper

import (
	"log/slog"
	"sync"
	"time"

	"iped-studio/models"
)

// Repository is the data access needed by the sweeper.
type Repository interface {
	GetStaleInProgressResponses(cutoff time.Time, limit int) ([]models.StudyResponse, error)
	UpdateResponse(resp *models.StudyResponse) error
	IncrementAbandonedResponses(studyID string) error
	DeleteCompletedDrafts() (int64, error)
}

// Worker abandons respondent sessions that went idle and prunes drafts
// left behind after a launch. It runs on an adaptive interval: the base
// interval while there is work, backing off to the max when idle.
type Worker struct {
	repo            Repository
	logger          *slog.Logger
	staleAfter      time.Duration
	batchSize       int
	baseInterval    time.Duration
	maxInterval     time.Duration
	currentInterval time.Duration
	running         bool
	mu              sync.Mutex
	stopChan        chan struct{}
}

// NewWorker creates a sweeper. Responses idle longer than staleAfter
// are marked abandoned.
func NewWorker(repo Repository, logger *slog.Logger, staleAfter time.Duration) *Worker {
	return &Worker{
		repo:            repo,
		logger:          logger,
		staleAfter:      staleAfter,
		batchSize:       100,
		baseInterval:    2 * time.Minute,
		maxInterval:     10 * time.Minute,
		currentInterval: 2 * time.Minute,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sweeper started", "stale_after", w.staleAfter)
	go w.run()
}

// Stop gracefully stops the sweep loop.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopChan)
	w.running = false
	w.logger.Info("sweeper stopped")
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.currentInterval)
	defer ticker.Stop()

	w.sweep()

	for {
		select {
		case <-ticker.C:
			hadWork := w.sweep()

			w.mu.Lock()
			if hadWork {
				if w.currentInterval != w.baseInterval {
					w.currentInterval = w.baseInterval
					ticker.Reset(w.currentInterval)
				}
			} else {
				if w.currentInterval < w.maxInterval {
					w.currentInterval = w.maxInterval
					ticker.Reset(w.currentInterval)
				}
			}
			w.mu.Unlock()
		case <-w.stopChan:
			return
		}
	}
}

// sweep runs one pass and reports whether it found anything to do.
func (w *Worker) sweep() bool {
	abandoned := w.abandonStaleResponses()
	pruned := w.pruneCompletedDrafts()
	return abandoned > 0 || pruned > 0
}

func (w *Worker) abandonStaleResponses() int {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.repo.GetStaleInProgressResponses(cutoff, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list stale responses", "error", err)
		return 0
	}

	abandoned := 0
	for i := range stale {
		resp := &stale[i]
		resp.MarkAbandoned("Session timed out due to inactivity", time.Now())
		if err := w.repo.UpdateResponse(resp); err != nil {
			w.logger.Error("failed to abandon stale response",
				"session_id", resp.SessionID, "error", err)
			continue
		}
		if err := w.repo.IncrementAbandonedResponses(resp.StudyID); err != nil {
			w.logger.Error("failed to update study counters",
				"study_id", resp.StudyID, "error", err)
		}
		abandoned++
	}

	if abandoned > 0 {
		w.logger.Info("abandoned stale responses", "count", abandoned)
	}
	return abandoned
}

func (w *Worker) pruneCompletedDrafts() int {
	n, err := w.repo.DeleteCompletedDrafts()
	if err != nil {
		w.logger.Error("failed to prune completed drafts", "error", err)
		return 0
	}
	if n > 0 {
		w.logger.Info("pruned completed drafts", "count", n)
	}
	return int(n)
}
