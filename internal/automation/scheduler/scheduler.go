package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"giftwise-backend/internal/automation/repository"
	"giftwise-backend/internal/automation/usecase"

	"github.com/robfig/cron/v3"
)

// ExecutionScheduler periodically runs the batch processing pass for
// every user with pending executions. Passes for different users are
// independent; one user's pass failing never stops the sweep.
type ExecutionScheduler struct {
	execRepo    repository.ExecutionRepository
	execUsecase usecase.ExecutionUsecase
	interval    time.Duration
	cron        *cron.Cron
}

func NewExecutionScheduler(execRepo repository.ExecutionRepository, execUsecase usecase.ExecutionUsecase, interval time.Duration) *ExecutionScheduler {
	return &ExecutionScheduler{
		execRepo:    execRepo,
		execUsecase: execUsecase,
		interval:    interval,
		cron:        cron.New(),
	}
}

// Start registers the sweep and begins the cron loop
func (s *ExecutionScheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.runPass); err != nil {
		return fmt.Errorf("failed to schedule execution sweep: %w", err)
	}

	log.Printf("[Scheduler] Starting execution sweep (interval: %s)", s.interval)
	s.cron.Start()

	// Run immediately on start so restarts pick work up without waiting
	go s.runPass()
	return nil
}

// Stop halts the cron loop, letting an in-flight sweep finish
func (s *ExecutionScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Scheduler] Execution sweep stopped")
}

func (s *ExecutionScheduler) runPass() {
	userIDs, err := s.execRepo.ListUserIDsWithPending()
	if err != nil {
		log.Printf("[Scheduler] Failed to list users with pending executions: %v", err)
		return
	}
	if len(userIDs) == 0 {
		return
	}

	log.Printf("[Scheduler] Sweeping pending executions for %d user(s)", len(userIDs))
	for _, userID := range userIDs {
		if err := s.execUsecase.ProcessPendingExecutions(context.Background(), userID); err != nil {
			log.Printf("[Scheduler] Processing pass failed for user %s: %v", userID, err)
		}
	}
}
