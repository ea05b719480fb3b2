package repository

import (
	"time"

	"giftwise-backend/internal/automation/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Linear backoff per prior retry before a recovered execution is
// considered stale again. Deliberately linear, not exponential.
const retryBackoff = 5 * time.Minute

// ExecutionRepository defines access to gift execution records
type ExecutionRepository interface {
	Create(execution *domain.GiftExecution) error
	FindByID(id string) (*domain.GiftExecution, error)
	FindByUser(userID string, status *domain.ExecutionStatus) ([]*domain.GiftExecution, error)
	// FindRecoverable returns the user's executions eligible for the
	// recovery pass: processing records whose last update is older than
	// the staleness window, and transiently failed records (retry count
	// between 1 and maxRetries-1) past the same window. A failed record
	// with retry count zero is a data-integrity fault and stays failed.
	// A linear per-retry backoff extends the window for retried records.
	FindRecoverable(userID string, now time.Time, window time.Duration, maxRetries int) ([]*domain.GiftExecution, error)
	// ListUserIDsWithPending returns the distinct owners of pending
	// executions, for the batch scheduler
	ListUserIDsWithPending() ([]string, error)
	Update(execution *domain.GiftExecution) error
}

// executionRepository implements ExecutionRepository using GORM
type executionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) ExecutionRepository {
	return &executionRepository{db: db}
}

func (r *executionRepository) Create(execution *domain.GiftExecution) error {
	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}
	execution.CreatedAt = time.Now()
	execution.UpdatedAt = time.Now()
	return r.db.Create(execution).Error
}

func (r *executionRepository) FindByID(id string) (*domain.GiftExecution, error) {
	var execution domain.GiftExecution
	err := r.db.Where("id = ?", id).First(&execution).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &execution, nil
}

func (r *executionRepository) FindByUser(userID string, status *domain.ExecutionStatus) ([]*domain.GiftExecution, error) {
	var executions []*domain.GiftExecution
	query := r.db.Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err := query.Order("trigger_date ASC, created_at ASC").Find(&executions).Error
	return executions, err
}

func (r *executionRepository) FindRecoverable(userID string, now time.Time, window time.Duration, maxRetries int) ([]*domain.GiftExecution, error) {
	// Coarse cutoff in SQL, per-retry backoff applied in Go so the
	// query stays portable across postgres and the sqlite test driver
	var candidates []*domain.GiftExecution
	err := r.db.Where("user_id = ? AND updated_at < ? AND (status = ? OR (status = ? AND retry_count > 0 AND retry_count < ?))",
		userID, now.Add(-window), domain.StatusProcessing, domain.StatusFailed, maxRetries).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	var stale []*domain.GiftExecution
	for _, ex := range candidates {
		cutoff := now.Add(-window - time.Duration(ex.RetryCount)*retryBackoff)
		if ex.UpdatedAt.Before(cutoff) {
			stale = append(stale, ex)
		}
	}
	return stale, nil
}

func (r *executionRepository) ListUserIDsWithPending() ([]string, error) {
	var userIDs []string
	err := r.db.Model(&domain.GiftExecution{}).
		Where("status = ?", domain.StatusPending).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

func (r *executionRepository) Update(execution *domain.GiftExecution) error {
	execution.UpdatedAt = time.Now()
	return r.db.Save(execution).Error
}
