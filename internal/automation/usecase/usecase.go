package usecase

import (
	"context"

	"giftwise-backend/internal/address"
	"giftwise-backend/internal/automation/domain"
	"giftwise-backend/internal/guard"
	"giftwise-backend/internal/selection"
)

// ExecutionUsecase owns the gift execution lifecycle
type ExecutionUsecase interface {
	// ProcessPendingExecutions runs one batch pass for a user: stuck
	// recovery first, then every pending execution. Per-record failures
	// are recorded on the record and never abort the pass.
	ProcessPendingExecutions(ctx context.Context, userID string) error

	// Approve transitions a pending execution to processing with the
	// (possibly user-edited) product selection
	Approve(userID, executionID string, productIDs []string) (*domain.GiftExecution, error)

	// Complete marks a processing execution as delivered. The host's
	// fulfillment pipeline owns the actual purchase and shipping; this is
	// the write-back that terminates the lifecycle on success.
	Complete(userID, executionID string) (*domain.GiftExecution, error)

	// Cancel is a direct state write; any non-terminal execution can be
	// cancelled by its owner
	Cancel(userID, executionID string) (*domain.GiftExecution, error)

	ListExecutions(userID string, status *domain.ExecutionStatus) ([]*domain.GiftExecution, error)
	GetRateLimitStatus(userID string) guard.RateLimitStatus
	GetBudgetAllocation() guard.BudgetAllocation
}

// GiftSelector is the tiered selection algorithm the manager consults
type GiftSelector interface {
	Select(ctx context.Context, req selection.Request) (*selection.Result, error)
}

// AddressResolver finds a shipping destination before an execution may
// proceed to selection
type AddressResolver interface {
	Resolve(userID, recipientID string) (*address.Resolved, error)
	HasRequested(userID, recipientEmail string) (bool, error)
	RequestAddress(userID, recipientEmail, recipientName, message string) (*address.AddressRequest, error)
}

// ExecutionGuard gates batch passes and reports quota status
type ExecutionGuard interface {
	CanExecute(userID string) bool
	Status(userID string) guard.RateLimitStatus
	Allocation() guard.BudgetAllocation
}

// Notifier delivers user-facing notices. Fire-and-forget: the
// implementation logs failures, the engine never sees them.
type Notifier interface {
	Notify(userID, title, body string, data map[string]string)
}
