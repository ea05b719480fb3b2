package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"giftwise-backend/internal/automation/domain"
	"giftwise-backend/internal/automation/repository"
	"giftwise-backend/internal/guard"
	peoplerepo "giftwise-backend/internal/people/repository"
	"giftwise-backend/internal/selection"
)

const defaultOccasion = "birthday"

// executionUsecase implements ExecutionUsecase
type executionUsecase struct {
	execRepo     repository.ExecutionRepository
	ruleRepo     repository.RuleRepository
	settingsRepo repository.SettingsRepository
	profileRepo  peoplerepo.ProfileRepository

	resolver AddressResolver
	selector GiftSelector
	guard    ExecutionGuard
	notifier Notifier

	stuckWindow time.Duration
	maxRetries  int
}

func NewExecutionUsecase(
	execRepo repository.ExecutionRepository,
	ruleRepo repository.RuleRepository,
	settingsRepo repository.SettingsRepository,
	profileRepo peoplerepo.ProfileRepository,
	resolver AddressResolver,
	selector GiftSelector,
	execGuard ExecutionGuard,
	notifier Notifier,
	stuckWindow time.Duration,
	maxRetries int,
) ExecutionUsecase {
	return &executionUsecase{
		execRepo:     execRepo,
		ruleRepo:     ruleRepo,
		settingsRepo: settingsRepo,
		profileRepo:  profileRepo,
		resolver:     resolver,
		selector:     selector,
		guard:        execGuard,
		notifier:     notifier,
		stuckWindow:  stuckWindow,
		maxRetries:   maxRetries,
	}
}

func (u *executionUsecase) ProcessPendingExecutions(ctx context.Context, userID string) error {
	// Recovery runs first so recovered records are picked up in the
	// same pass
	u.recoverStuckExecutions(userID)

	// Scenario: daily execution ceiling reached. Not an error — records
	// stay pending and the pass is deferred to a later day.
	if !u.guard.CanExecute(userID) {
		log.Printf("[ExecutionUsecase] Daily execution limit reached for user %s, deferring pass", userID)
		u.notify(userID, "Daily automation limit reached",
			"Your automated gift executions will resume tomorrow.", map[string]string{"type": "quota_deferred"})
		return nil
	}

	status := domain.StatusPending
	pending, err := u.execRepo.FindByUser(userID, &status)
	if err != nil {
		return fmt.Errorf("failed to load pending executions: %w", err)
	}

	for _, execution := range pending {
		if err := u.processOne(ctx, execution); err != nil {
			// One execution's failure must never abort the batch
			execution.Status = domain.StatusFailed
			execution.ErrorMessage = err.Error()
			execution.RetryCount++
			if updateErr := u.execRepo.Update(execution); updateErr != nil {
				log.Printf("[ExecutionUsecase] Failed to record failure on execution %s: %v", execution.ID, updateErr)
			}
			log.Printf("[ExecutionUsecase] Execution %s failed: %v", execution.ID, err)
		}
	}

	return nil
}

// recoverStuckExecutions re-queues recoverable records: stale processing
// records (crashed or hung processor) and transiently failed records
// below the retry ceiling. Updating a record bumps its timestamp, so a
// second pass inside the window touches nothing. A transient failure
// already incremented the retry counter, so its re-queue does not count
// again; only stuck processing records consume a retry here.
func (u *executionUsecase) recoverStuckExecutions(userID string) {
	recoverable, err := u.execRepo.FindRecoverable(userID, time.Now(), u.stuckWindow, u.maxRetries)
	if err != nil {
		log.Printf("[ExecutionUsecase] Recovery lookup failed for user %s: %v", userID, err)
		return
	}

	for _, execution := range recoverable {
		switch {
		case execution.Status == domain.StatusFailed:
			execution.Status = domain.StatusPending
			execution.ErrorMessage = fmt.Sprintf("re-queued after transient failure (attempt %d of %d)",
				execution.RetryCount, u.maxRetries)
			log.Printf("[ExecutionUsecase] Re-queued failed execution %s (retry %d)", execution.ID, execution.RetryCount)
		case execution.RetryCount < u.maxRetries:
			execution.Status = domain.StatusPending
			execution.RetryCount++
			execution.ErrorMessage = fmt.Sprintf("recovered from stuck processing state (attempt %d of %d)",
				execution.RetryCount, u.maxRetries)
			log.Printf("[ExecutionUsecase] Recovered stuck execution %s (retry %d)", execution.ID, execution.RetryCount)
		default:
			execution.Status = domain.StatusFailed
			execution.ErrorMessage = fmt.Sprintf("maximum retries (%d) exceeded after stuck processing", u.maxRetries)
			log.Printf("[ExecutionUsecase] Execution %s permanently failed after %d retries", execution.ID, execution.RetryCount)
		}
		if err := u.execRepo.Update(execution); err != nil {
			log.Printf("[ExecutionUsecase] Failed to update recovered execution %s: %v", execution.ID, err)
		}
	}
}

// processOne drives a single pending execution toward selection. A
// returned error is a transient fault; data-integrity and
// address-blocked outcomes are committed here and return nil.
func (u *executionUsecase) processOne(ctx context.Context, execution *domain.GiftExecution) error {
	rule, err := u.ruleRepo.FindByID(execution.RuleID)
	if err != nil {
		return fmt.Errorf("failed to load rule: %w", err)
	}

	// Dangling references cannot be fixed by retrying
	if rule == nil || rule.RecipientID == "" {
		execution.Status = domain.StatusFailed
		execution.ErrorMessage = "recipient information is missing or invalid"
		return u.execRepo.Update(execution)
	}

	// Paused rules park their executions untouched
	if !rule.Active {
		log.Printf("[ExecutionUsecase] Rule %s is paused, skipping execution %s", rule.ID, execution.ID)
		return nil
	}

	resolved, err := u.resolver.Resolve(execution.UserID, rule.RecipientID)
	if err != nil {
		return fmt.Errorf("address resolution failed: %w", err)
	}
	if resolved == nil {
		return u.markAddressBlocked(execution, rule)
	}

	occasion := u.occasionFor(execution, rule)

	result, err := u.selector.Select(ctx, selection.Request{
		RecipientID:       rule.RecipientID,
		UserID:            execution.UserID,
		Budget:            rule.BudgetLimit,
		Occasion:          occasion,
		Categories:        allowedCategories(rule.Criteria),
		MinPrice:          rule.Criteria.MinPrice,
		MaxPrice:          rule.Criteria.MaxPrice,
		Source:            sourcePreference(rule.Criteria.Source),
		SpecificProductID: rule.Criteria.SpecificProductID,
	})
	if err != nil {
		return fmt.Errorf("gift selection failed: %w", err)
	}

	if len(result.Products) == 0 {
		// No automated selection possible: not a failure, stay pending
		// for a later pass with fresh data
		execution.ErrorMessage = "no suitable gifts found within budget"
		if err := u.execRepo.Update(execution); err != nil {
			return err
		}
		u.notify(execution.UserID, "No gift selected",
			fmt.Sprintf("We could not find a suitable gift within your %.2f budget.", rule.BudgetLimit),
			map[string]string{"type": "selection_empty", "execution_id": execution.ID})
		return nil
	}

	total := domain.ProductList(result.Products).Total()
	if total > rule.BudgetLimit {
		// The selector guarantees this never happens; refusing to
		// commit keeps the budget invariant even if it regresses
		return fmt.Errorf("selected total %.2f exceeds budget %.2f", total, rule.BudgetLimit)
	}

	// A user cancel racing this pass wins: re-check before committing
	current, err := u.execRepo.FindByID(execution.ID)
	if err != nil {
		return err
	}
	if current != nil && current.Status == domain.StatusCancelled {
		log.Printf("[ExecutionUsecase] Execution %s was cancelled mid-pass, dropping selection", execution.ID)
		return nil
	}

	execution.SelectedProducts = result.Products
	execution.TotalAmount = total
	execution.SelectionTier = string(result.Tier)
	execution.Confidence = result.Confidence
	execution.AddressSource = string(resolved.Source)
	execution.AddressVerified = resolved.Verified
	execution.AddressNeedsConfirmation = resolved.NeedsConfirmation
	execution.ErrorMessage = ""

	autoApprove := rule.AutoApprove
	if !autoApprove {
		if settings, err := u.settingsRepo.GetByUserID(execution.UserID); err == nil && settings != nil {
			autoApprove = settings.AutoApprove
		}
	}

	if autoApprove {
		execution.Status = domain.StatusProcessing
	}
	// Without auto-approve the record stays pending awaiting Approve

	if err := u.execRepo.Update(execution); err != nil {
		return err
	}

	if autoApprove {
		// Spend is committed exactly once, on the transition into
		// processing
		if err := u.settingsRepo.AddSpend(execution.UserID, total); err != nil {
			log.Printf("[ExecutionUsecase] Failed to record spend for user %s: %v", execution.UserID, err)
		}
	}

	if rule.NotifyOnExecution {
		u.notify(execution.UserID, "Gift selected",
			fmt.Sprintf("Picked %d gift(s) via the %s strategy (%.0f%% confidence), total %.2f.",
				len(result.Products), result.Tier, result.Confidence*100, total),
			map[string]string{
				"type":         "execution_update",
				"execution_id": execution.ID,
				"tier":         string(result.Tier),
			})
	}

	return nil
}

// markAddressBlocked parks an execution that has no resolvable address.
// The first time we also send an address request; once one is recorded
// the softer pending_address state signals we are waiting on it.
func (u *executionUsecase) markAddressBlocked(execution *domain.GiftExecution, rule *domain.AutomationRule) error {
	email, name := u.recipientContact(rule.RecipientID)

	alreadyRequested := false
	if email != "" {
		already, err := u.resolver.HasRequested(execution.UserID, email)
		if err != nil {
			log.Printf("[ExecutionUsecase] Address-request lookup failed: %v", err)
		}
		alreadyRequested = already
		if !already {
			message := fmt.Sprintf("%s would like to send you a gift and needs your shipping address.", name)
			if _, err := u.resolver.RequestAddress(execution.UserID, email, name, message); err != nil {
				log.Printf("[ExecutionUsecase] Failed to record address request: %v", err)
			}
		}
	}

	// First encounter sends the request and hard-blocks; once a request
	// is on record the softer waiting state applies
	if alreadyRequested {
		execution.Status = domain.StatusPendingAddress
	} else {
		execution.Status = domain.StatusAddressRequired
	}
	execution.AddressSource = "missing"
	execution.ErrorMessage = "no shipping address available for the recipient"

	if err := u.execRepo.Update(execution); err != nil {
		return err
	}

	u.notify(execution.UserID, "Shipping address needed",
		"We asked your recipient for a shipping address; the gift will proceed once it arrives.",
		map[string]string{"type": "address_required", "execution_id": execution.ID})
	return nil
}

// occasionFor prefers the linked calendar event's type, then the rule's
// configured date type, then the default
func (u *executionUsecase) occasionFor(execution *domain.GiftExecution, rule *domain.AutomationRule) string {
	if execution.EventType != "" {
		return execution.EventType
	}
	if rule.DateType != "" {
		return rule.DateType
	}
	return defaultOccasion
}

// recipientContact pulls a notification target from the recipient profile
func (u *executionUsecase) recipientContact(recipientID string) (email, name string) {
	profile, err := u.profileRepo.FindByID(recipientID)
	if err != nil || profile == nil {
		return "", ""
	}
	return profile.Email, profile.DisplayName
}

func (u *executionUsecase) Approve(userID, executionID string, productIDs []string) (*domain.GiftExecution, error) {
	execution, err := u.execRepo.FindByID(executionID)
	if err != nil {
		return nil, err
	}
	if execution == nil {
		return nil, errors.New("execution not found")
	}
	if execution.UserID != userID {
		return nil, errors.New("unauthorized")
	}
	if execution.Status != domain.StatusPending {
		return nil, fmt.Errorf("only pending executions can be approved (current status: %s)", execution.Status)
	}
	if len(execution.SelectedProducts) == 0 {
		return nil, errors.New("execution has no selected products to approve")
	}

	// Keep only the approved product ids; an empty list approves the
	// selection as-is
	products := execution.SelectedProducts
	if len(productIDs) > 0 {
		keep := make(map[string]bool, len(productIDs))
		for _, id := range productIDs {
			keep[id] = true
		}
		var kept domain.ProductList
		for _, p := range products {
			if keep[p.ID] {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			return nil, errors.New("approved product ids do not match the selection")
		}
		products = kept
	}

	rule, err := u.ruleRepo.FindByID(execution.RuleID)
	if err != nil {
		return nil, err
	}

	total := products.Total()
	if rule != nil && total > rule.BudgetLimit {
		return nil, fmt.Errorf("approved total %.2f exceeds the rule budget %.2f", total, rule.BudgetLimit)
	}

	execution.SelectedProducts = products
	execution.TotalAmount = total
	execution.Status = domain.StatusProcessing
	if err := u.execRepo.Update(execution); err != nil {
		return nil, err
	}

	if err := u.settingsRepo.AddSpend(userID, total); err != nil {
		log.Printf("[ExecutionUsecase] Failed to record spend for user %s: %v", userID, err)
	}

	u.notify(userID, "Gift approved",
		fmt.Sprintf("Your gift of %.2f is now being processed.", total),
		map[string]string{"type": "execution_update", "execution_id": execution.ID})

	return execution, nil
}

func (u *executionUsecase) Complete(userID, executionID string) (*domain.GiftExecution, error) {
	execution, err := u.execRepo.FindByID(executionID)
	if err != nil {
		return nil, err
	}
	if execution == nil {
		return nil, errors.New("execution not found")
	}
	if execution.UserID != userID {
		return nil, errors.New("unauthorized")
	}
	if execution.Status != domain.StatusProcessing {
		return nil, fmt.Errorf("only processing executions can be completed (current status: %s)", execution.Status)
	}

	execution.Status = domain.StatusCompleted
	execution.ErrorMessage = ""
	if err := u.execRepo.Update(execution); err != nil {
		return nil, err
	}

	u.notify(userID, "Gift delivered",
		fmt.Sprintf("Your gift of %.2f has been delivered.", execution.TotalAmount),
		map[string]string{"type": "execution_update", "execution_id": execution.ID})

	return execution, nil
}

func (u *executionUsecase) Cancel(userID, executionID string) (*domain.GiftExecution, error) {
	execution, err := u.execRepo.FindByID(executionID)
	if err != nil {
		return nil, err
	}
	if execution == nil {
		return nil, errors.New("execution not found")
	}
	if execution.UserID != userID {
		return nil, errors.New("unauthorized")
	}
	if execution.Status.Terminal() {
		return nil, fmt.Errorf("execution is already %s", execution.Status)
	}

	execution.Status = domain.StatusCancelled
	if err := u.execRepo.Update(execution); err != nil {
		return nil, err
	}
	return execution, nil
}

func (u *executionUsecase) ListExecutions(userID string, status *domain.ExecutionStatus) ([]*domain.GiftExecution, error) {
	return u.execRepo.FindByUser(userID, status)
}

func (u *executionUsecase) GetRateLimitStatus(userID string) guard.RateLimitStatus {
	return u.guard.Status(userID)
}

func (u *executionUsecase) GetBudgetAllocation() guard.BudgetAllocation {
	return u.guard.Allocation()
}

func (u *executionUsecase) notify(userID, title, body string, data map[string]string) {
	if u.notifier == nil {
		return
	}
	u.notifier.Notify(userID, title, body, data)
}

// allowedCategories applies the rule's include/exclude lists
func allowedCategories(criteria domain.GiftSelectionCriteria) []string {
	if len(criteria.IncludeCategories) == 0 {
		return nil
	}
	excluded := make(map[string]bool, len(criteria.ExcludeCategories))
	for _, c := range criteria.ExcludeCategories {
		excluded[c] = true
	}
	var out []string
	for _, c := range criteria.IncludeCategories {
		if !excluded[c] {
			out = append(out, c)
		}
	}
	return out
}

func sourcePreference(source domain.CriteriaSource) selection.SourcePreference {
	switch source {
	case domain.CriteriaSourceWishlist:
		return selection.SourceWishlistOnly
	case domain.CriteriaSourceAI:
		return selection.SourceAIOnly
	default:
		return selection.SourceBoth
	}
}
