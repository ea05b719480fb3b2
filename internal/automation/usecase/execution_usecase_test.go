package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"giftwise-backend/internal/address"
	"giftwise-backend/internal/automation/domain"
	"giftwise-backend/internal/automation/repository"
	"giftwise-backend/internal/guard"
	peopledomain "giftwise-backend/internal/people/domain"
	peoplerepo "giftwise-backend/internal/people/repository"
	"giftwise-backend/internal/selection"
	"giftwise-backend/pkg/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeSelector struct {
	result  *selection.Result
	calls   int
	lastReq selection.Request
}

func (f *fakeSelector) Select(_ context.Context, req selection.Request) (*selection.Result, error) {
	f.calls++
	f.lastReq = req
	if f.result != nil {
		return f.result, nil
	}
	return &selection.Result{Tier: selection.TierAIGuess}, nil
}

type fakeResolver struct {
	resolved  *address.Resolved
	requested map[string]bool
	requests  int
}

func newFakeResolver(resolved *address.Resolved) *fakeResolver {
	return &fakeResolver{resolved: resolved, requested: map[string]bool{}}
}

func (f *fakeResolver) Resolve(userID, recipientID string) (*address.Resolved, error) {
	return f.resolved, nil
}

func (f *fakeResolver) HasRequested(userID, recipientEmail string) (bool, error) {
	return f.requested[recipientEmail], nil
}

func (f *fakeResolver) RequestAddress(userID, recipientEmail, recipientName, message string) (*address.AddressRequest, error) {
	f.requests++
	f.requested[recipientEmail] = true
	return &address.AddressRequest{ID: "req-1", RecipientEmail: recipientEmail}, nil
}

type fakeExecGuard struct {
	denyExecute bool
}

func (f *fakeExecGuard) CanExecute(string) bool               { return !f.denyExecute }
func (f *fakeExecGuard) Status(string) guard.RateLimitStatus  { return guard.RateLimitStatus{} }
func (f *fakeExecGuard) Allocation() guard.BudgetAllocation   { return guard.BudgetAllocation{} }

type recordingNotifier struct {
	types []string
}

func (n *recordingNotifier) Notify(userID, title, body string, data map[string]string) {
	n.types = append(n.types, data["type"])
}

type executionTestEnv struct {
	db       *gorm.DB
	usecase  ExecutionUsecase
	execRepo repository.ExecutionRepository
	selector *fakeSelector
	resolver *fakeResolver
	guard    *fakeExecGuard
	notifier *recordingNotifier
}

func setupExecutionTest(t *testing.T) *executionTestEnv {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&domain.AutomationRule{},
		&domain.AutomationSettings{},
		&domain.GiftExecution{},
		&peopledomain.RecipientProfile{},
	)
	require.NoError(t, err)

	env := &executionTestEnv{
		db:       db,
		execRepo: repository.NewExecutionRepository(db),
		selector: &fakeSelector{},
		resolver: newFakeResolver(&address.Resolved{
			Address:  address.Address{Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701"},
			Source:   address.SourceUserVerified,
			Verified: true,
		}),
		guard:    &fakeExecGuard{},
		notifier: &recordingNotifier{},
	}
	env.usecase = NewExecutionUsecase(
		env.execRepo,
		repository.NewRuleRepository(db),
		repository.NewSettingsRepository(db),
		peoplerepo.NewProfileRepository(db),
		env.resolver,
		env.selector,
		env.guard,
		env.notifier,
		30*time.Minute,
		3,
	)
	return env
}

func (env *executionTestEnv) seedRule(t *testing.T, rule *domain.AutomationRule) *domain.AutomationRule {
	if rule.ID == "" {
		rule.ID = "rule-1"
	}
	if rule.UserID == "" {
		rule.UserID = "user-1"
	}
	if rule.RecipientID == "" {
		rule.RecipientID = "rec-1"
	}
	if rule.BudgetLimit == 0 {
		rule.BudgetLimit = 50
	}
	if rule.Criteria.Source == "" {
		rule.Criteria.Source = domain.CriteriaSourceBoth
	}
	require.NoError(t, env.db.Create(rule).Error)
	return rule
}

func (env *executionTestEnv) seedExecution(t *testing.T, execution *domain.GiftExecution) *domain.GiftExecution {
	if execution.ID == "" {
		execution.ID = "exec-1"
	}
	if execution.UserID == "" {
		execution.UserID = "user-1"
	}
	if execution.RuleID == "" {
		execution.RuleID = "rule-1"
	}
	if execution.Status == "" {
		execution.Status = domain.StatusPending
	}
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now()
	}
	if execution.UpdatedAt.IsZero() {
		execution.UpdatedAt = time.Now()
	}
	require.NoError(t, env.db.Create(execution).Error)
	return execution
}

func (env *executionTestEnv) reload(t *testing.T, id string) *domain.GiftExecution {
	execution, err := env.execRepo.FindByID(id)
	require.NoError(t, err)
	require.NotNil(t, execution)
	return execution
}

func twoProducts() []catalog.Item {
	return []catalog.Item{
		{ID: "p1", Title: "Board game", Price: 20},
		{ID: "p2", Title: "Puzzle", Price: 15},
	}
}

func TestQuotaDenialDefersPass(t *testing.T) {
	env := setupExecutionTest(t)
	env.guard.denyExecute = true
	env.seedRule(t, &domain.AutomationRule{Active: true, AutoApprove: true})
	env.seedExecution(t, &domain.GiftExecution{})

	err := env.usecase.ProcessPendingExecutions(context.Background(), "user-1")
	require.NoError(t, err, "a denied pass is deferral, not failure")

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusPending, execution.Status, "records stay pending for a later day")
	assert.Empty(t, execution.ErrorMessage)
	assert.Zero(t, env.selector.calls, "no selection work happens on a denied pass")
	assert.Contains(t, env.notifier.types, "quota_deferred")
}

func TestAutoApproveCommitsSpend(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedRule(t, &domain.AutomationRule{Active: true, AutoApprove: true, NotifyOnExecution: true})
	env.seedExecution(t, &domain.GiftExecution{})
	env.selector.result = &selection.Result{
		Tier:       selection.TierWishlist,
		Products:   twoProducts(),
		Confidence: 0.95,
	}

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusProcessing, execution.Status)
	assert.Equal(t, 35.0, execution.TotalAmount)
	assert.Equal(t, string(selection.TierWishlist), execution.SelectionTier)
	assert.Equal(t, 0.95, execution.Confidence)
	assert.Equal(t, string(address.SourceUserVerified), execution.AddressSource)
	assert.True(t, execution.AddressVerified)

	var settings domain.AutomationSettings
	require.NoError(t, env.db.Where("user_id = ?", "user-1").First(&settings).Error)
	assert.Equal(t, 35.0, settings.MonthlySpent)
	assert.Contains(t, env.notifier.types, "execution_update")
}

func TestManualApprovalFlow(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedRule(t, &domain.AutomationRule{Active: true})
	env.seedExecution(t, &domain.GiftExecution{})
	env.selector.result = &selection.Result{
		Tier:       selection.TierPreferences,
		Products:   twoProducts(),
		Confidence: 0.75,
	}

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusPending, execution.Status, "without auto-approve the record waits")
	assert.Len(t, []catalog.Item(execution.SelectedProducts), 2)

	// Approve a subset of the selection
	approved, err := env.usecase.Approve("user-1", "exec-1", []string{"p2"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, approved.Status)
	require.Len(t, []catalog.Item(approved.SelectedProducts), 1)
	assert.Equal(t, "p2", approved.SelectedProducts[0].ID)
	assert.Equal(t, 15.0, approved.TotalAmount)

	var settings domain.AutomationSettings
	require.NoError(t, env.db.Where("user_id = ?", "user-1").First(&settings).Error)
	assert.Equal(t, 15.0, settings.MonthlySpent, "spend is committed at approval time")
}

func TestApproveRejectsUnknownProductIDs(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedExecution(t, &domain.GiftExecution{SelectedProducts: twoProducts()})

	_, err := env.usecase.Approve("user-1", "exec-1", []string{"nope"})
	assert.ErrorContains(t, err, "do not match")
}

func TestApproveEnforcesOwnershipAndState(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedExecution(t, &domain.GiftExecution{SelectedProducts: twoProducts()})

	_, err := env.usecase.Approve("user-2", "exec-1", nil)
	assert.ErrorContains(t, err, "unauthorized")

	_, err = env.usecase.Approve("user-1", "missing", nil)
	assert.ErrorContains(t, err, "not found")

	env.seedExecution(t, &domain.GiftExecution{ID: "exec-2", Status: domain.StatusProcessing, SelectedProducts: twoProducts()})
	_, err = env.usecase.Approve("user-1", "exec-2", nil)
	assert.ErrorContains(t, err, "only pending")
}

func TestCancelNonTerminalOnly(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedExecution(t, &domain.GiftExecution{Status: domain.StatusProcessing})

	cancelled, err := env.usecase.Cancel("user-1", "exec-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	_, err = env.usecase.Cancel("user-1", "exec-1")
	assert.ErrorContains(t, err, "already cancelled")

	env.seedExecution(t, &domain.GiftExecution{ID: "exec-2", Status: domain.StatusCompleted})
	_, err = env.usecase.Cancel("user-1", "exec-2")
	assert.Error(t, err)
}

func TestMissingAddressSendsRequestOnce(t *testing.T) {
	env := setupExecutionTest(t)
	env.resolver.resolved = nil
	env.seedRule(t, &domain.AutomationRule{Active: true})
	require.NoError(t, env.db.Create(&peopledomain.RecipientProfile{
		ID: "rec-1", DisplayName: "Alice", Email: "alice@example.com",
	}).Error)
	env.seedExecution(t, &domain.GiftExecution{})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusAddressRequired, execution.Status)
	assert.Equal(t, "missing", execution.AddressSource)
	assert.Equal(t, 1, env.resolver.requests, "the first encounter sends one request")
	assert.Contains(t, env.notifier.types, "address_required")
	assert.Zero(t, env.selector.calls, "no selection without a shipping address")

	// A later execution for the same recipient finds the request on
	// record and waits instead of re-asking
	env.seedExecution(t, &domain.GiftExecution{ID: "exec-2"})
	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	second := env.reload(t, "exec-2")
	assert.Equal(t, domain.StatusPendingAddress, second.Status)
	assert.Equal(t, 1, env.resolver.requests, "no duplicate request")
}

func TestDanglingRuleFailsTerminally(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedExecution(t, &domain.GiftExecution{RuleID: "gone"})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "recipient information is missing")
}

func TestPausedRuleParksExecution(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedRule(t, &domain.AutomationRule{Active: false})
	env.seedExecution(t, &domain.GiftExecution{})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusPending, execution.Status)
	assert.Zero(t, env.selector.calls)
}

func TestEmptySelectionStaysPending(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedRule(t, &domain.AutomationRule{Active: true})
	env.seedExecution(t, &domain.GiftExecution{})
	env.selector.result = &selection.Result{Tier: selection.TierAIGuess}

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusPending, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "no suitable gifts")
	assert.Contains(t, env.notifier.types, "selection_empty")
}

func TestSelectorReceivesRuleCriteria(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedRule(t, &domain.AutomationRule{
		Active:   true,
		DateType: "anniversary",
		Criteria: domain.GiftSelectionCriteria{
			Source:            domain.CriteriaSourceWishlist,
			IncludeCategories: []string{"books", "games", "candy"},
			ExcludeCategories: []string{"candy"},
			MinPrice:          10,
			MaxPrice:          40,
		},
	})
	env.seedExecution(t, &domain.GiftExecution{})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	req := env.selector.lastReq
	assert.Equal(t, "anniversary", req.Occasion)
	assert.Equal(t, selection.SourceWishlistOnly, req.Source)
	assert.Equal(t, []string{"books", "games"}, req.Categories)
	assert.Equal(t, 50.0, req.Budget)
	assert.Equal(t, 10.0, req.MinPrice, "the rule's price floor reaches the selector")
	assert.Equal(t, 40.0, req.MaxPrice, "the rule's price cap reaches the selector")
}

func TestEventTypeOverridesRuleDateType(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedRule(t, &domain.AutomationRule{Active: true, DateType: "anniversary"})
	env.seedExecution(t, &domain.GiftExecution{EventID: "evt-1", EventType: "graduation"})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	assert.Equal(t, "graduation", env.selector.lastReq.Occasion)
}

func TestStuckExecutionRecovery(t *testing.T) {
	env := setupExecutionTest(t)
	env.guard.denyExecute = true // isolate recovery from the processing loop

	stale := time.Now().Add(-45 * time.Minute)
	env.seedExecution(t, &domain.GiftExecution{
		Status:    domain.StatusProcessing,
		UpdatedAt: stale,
	})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusPending, execution.Status)
	assert.Equal(t, 1, execution.RetryCount)
	assert.Contains(t, execution.ErrorMessage, "recovered from stuck processing")
}

func TestStuckRecoveryIsIdempotentWithinWindow(t *testing.T) {
	env := setupExecutionTest(t)
	env.guard.denyExecute = true

	// Updated 10 minutes ago: inside the 30-minute window, not stale
	env.seedExecution(t, &domain.GiftExecution{
		Status:    domain.StatusProcessing,
		UpdatedAt: time.Now().Add(-10 * time.Minute),
	})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusProcessing, execution.Status, "recent processing records are untouched")
	assert.Zero(t, execution.RetryCount)
}

func TestStuckRecoveryRespectsRetryBackoff(t *testing.T) {
	env := setupExecutionTest(t)
	env.guard.denyExecute = true

	// Two prior retries push the staleness cutoff out by 10 minutes;
	// 35 minutes is past the base window but inside the extended one
	env.seedExecution(t, &domain.GiftExecution{
		Status:     domain.StatusProcessing,
		RetryCount: 2,
		UpdatedAt:  time.Now().Add(-35 * time.Minute),
	})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusProcessing, execution.Status)
	assert.Equal(t, 2, execution.RetryCount)
}

func TestStuckRecoveryExhaustsRetries(t *testing.T) {
	env := setupExecutionTest(t)
	env.guard.denyExecute = true

	env.seedExecution(t, &domain.GiftExecution{
		Status:     domain.StatusProcessing,
		RetryCount: 3,
		UpdatedAt:  time.Now().Add(-2 * time.Hour),
	})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "maximum retries")
}

func TestTransientFailureIsRequeued(t *testing.T) {
	env := setupExecutionTest(t)
	env.guard.denyExecute = true // isolate recovery from the processing loop

	// A failed attempt already incremented the retry count, so the
	// re-queue keeps it as is
	env.seedExecution(t, &domain.GiftExecution{
		Status:       domain.StatusFailed,
		RetryCount:   1,
		ErrorMessage: "gift selection failed: gateway timeout",
		UpdatedAt:    time.Now().Add(-2 * time.Hour),
	})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusPending, execution.Status)
	assert.Equal(t, 1, execution.RetryCount, "re-queueing does not count as another attempt")
	assert.Contains(t, execution.ErrorMessage, "re-queued after transient failure")
}

func TestDataIntegrityFailureIsNeverRequeued(t *testing.T) {
	env := setupExecutionTest(t)
	env.guard.denyExecute = true

	// Zero retries marks failures like a dangling rule; retrying cannot
	// fix those
	env.seedExecution(t, &domain.GiftExecution{
		Status:       domain.StatusFailed,
		RetryCount:   0,
		ErrorMessage: "recipient information is missing or invalid",
		UpdatedAt:    time.Now().Add(-24 * time.Hour),
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))
	}

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusFailed, execution.Status)
	assert.Zero(t, execution.RetryCount)
	assert.Contains(t, execution.ErrorMessage, "recipient information is missing")
}

func TestFailureWithRetriesExhaustedStaysFailed(t *testing.T) {
	env := setupExecutionTest(t)
	env.guard.denyExecute = true

	env.seedExecution(t, &domain.GiftExecution{
		Status:       domain.StatusFailed,
		RetryCount:   3,
		ErrorMessage: "gift selection failed: gateway timeout",
		UpdatedAt:    time.Now().Add(-24 * time.Hour),
	})

	require.NoError(t, env.usecase.ProcessPendingExecutions(context.Background(), "user-1"))

	execution := env.reload(t, "exec-1")
	assert.Equal(t, domain.StatusFailed, execution.Status)
	assert.Equal(t, 3, execution.RetryCount)
}

func TestCompleteMarksProcessingDelivered(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedExecution(t, &domain.GiftExecution{
		Status:       domain.StatusProcessing,
		ErrorMessage: "recovered from stuck processing state (attempt 1 of 3)",
	})

	completed, err := env.usecase.Complete("user-1", "exec-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)
	assert.Empty(t, completed.ErrorMessage, "stale recovery notes are cleared on delivery")
	assert.Contains(t, env.notifier.types, "execution_update")
}

func TestCompleteRequiresProcessingState(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedExecution(t, &domain.GiftExecution{Status: domain.StatusPending})

	_, err := env.usecase.Complete("user-1", "exec-1")
	assert.ErrorContains(t, err, "only processing")

	_, err = env.usecase.Complete("user-2", "exec-1")
	assert.ErrorContains(t, err, "unauthorized")

	_, err = env.usecase.Complete("user-1", "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestListExecutionsFiltersByStatus(t *testing.T) {
	env := setupExecutionTest(t)
	env.seedExecution(t, &domain.GiftExecution{ID: "exec-1"})
	env.seedExecution(t, &domain.GiftExecution{ID: "exec-2", Status: domain.StatusCompleted})
	env.seedExecution(t, &domain.GiftExecution{ID: "exec-3", UserID: "user-2"})

	all, err := env.usecase.ListExecutions("user-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed := domain.StatusCompleted
	filtered, err := env.usecase.ListExecutions("user-1", &completed)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "exec-2", filtered[0].ID)
}
