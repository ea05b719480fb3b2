package usecase

import (
	"errors"
	"fmt"

	"giftwise-backend/internal/automation/domain"
	"giftwise-backend/internal/automation/repository"
)

// RuleUsecase owns rule CRUD and per-user settings
type RuleUsecase interface {
	CreateRule(userID string, req CreateRuleRequest) (*domain.AutomationRule, error)
	GetRule(userID, ruleID string) (*domain.AutomationRule, error)
	ListRules(userID string) ([]*domain.AutomationRule, error)
	UpdateRule(userID, ruleID string, updates RuleUpdateRequest) (*domain.AutomationRule, error)
	DeleteRule(userID, ruleID string) error
	GetSettings(userID string) (*domain.AutomationSettings, error)
	UpsertSettings(userID string, req SettingsRequest) (*domain.AutomationSettings, error)
}

// CreateRuleRequest is the input for creating an automation rule
type CreateRuleRequest struct {
	RecipientID       string                       `json:"recipient_id"`
	DateType          string                       `json:"date_type"`
	EventID           string                       `json:"event_id"`
	BudgetLimit       float64                      `json:"budget_limit"`
	Criteria          domain.GiftSelectionCriteria `json:"criteria"`
	AutoApprove       bool                         `json:"auto_approve"`
	NotifyDaysBefore  *int                         `json:"notify_days_before"`
	NotifyOnExecution *bool                        `json:"notify_on_execution"`
}

// RuleUpdateRequest carries optional field updates; nil means unchanged
type RuleUpdateRequest struct {
	DateType          *string                       `json:"date_type"`
	EventID           *string                       `json:"event_id"`
	Active            *bool                         `json:"active"`
	BudgetLimit       *float64                      `json:"budget_limit"`
	Criteria          *domain.GiftSelectionCriteria `json:"criteria"`
	AutoApprove       *bool                         `json:"auto_approve"`
	NotifyDaysBefore  *int                          `json:"notify_days_before"`
	NotifyOnExecution *bool                         `json:"notify_on_execution"`
}

// SettingsRequest is the upsert payload for automation settings
type SettingsRequest struct {
	DefaultBudget    *float64 `json:"default_budget"`
	NotifyDaysBefore *int     `json:"notify_days_before"`
	AutoApprove      *bool    `json:"auto_approve"`
}

// ruleUsecase implements RuleUsecase
type ruleUsecase struct {
	ruleRepo     repository.RuleRepository
	settingsRepo repository.SettingsRepository
}

func NewRuleUsecase(ruleRepo repository.RuleRepository, settingsRepo repository.SettingsRepository) RuleUsecase {
	return &ruleUsecase{
		ruleRepo:     ruleRepo,
		settingsRepo: settingsRepo,
	}
}

func (u *ruleUsecase) CreateRule(userID string, req CreateRuleRequest) (*domain.AutomationRule, error) {
	// Validation faults are rejected synchronously, never defaulted
	if req.RecipientID == "" {
		return nil, errors.New("recipient is required")
	}
	if req.DateType == "" && req.EventID == "" {
		return nil, errors.New("a trigger date type or calendar event is required")
	}
	if req.BudgetLimit <= 0 {
		return nil, errors.New("budget limit must be greater than zero")
	}
	if err := req.Criteria.Validate(); err != nil {
		return nil, err
	}
	if req.Criteria.MaxPrice > 0 && req.Criteria.MaxPrice > req.BudgetLimit {
		return nil, fmt.Errorf("criteria max price %.2f exceeds the rule budget %.2f", req.Criteria.MaxPrice, req.BudgetLimit)
	}

	// Rule creation requires configured automation settings
	settings, err := u.settingsRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, errors.New("automation settings must be configured before creating rules")
	}

	rule := &domain.AutomationRule{
		UserID:            userID,
		RecipientID:       req.RecipientID,
		DateType:          req.DateType,
		EventID:           req.EventID,
		Active:            true,
		BudgetLimit:       req.BudgetLimit,
		Criteria:          req.Criteria,
		AutoApprove:       req.AutoApprove,
		NotifyDaysBefore:  settings.NotifyDaysBefore,
		NotifyOnExecution: true,
	}
	if req.NotifyDaysBefore != nil {
		rule.NotifyDaysBefore = *req.NotifyDaysBefore
	}
	if req.NotifyOnExecution != nil {
		rule.NotifyOnExecution = *req.NotifyOnExecution
	}

	if err := u.ruleRepo.Create(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (u *ruleUsecase) GetRule(userID, ruleID string) (*domain.AutomationRule, error) {
	rule, err := u.ruleRepo.FindByID(ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, errors.New("rule not found")
	}
	if rule.UserID != userID {
		return nil, errors.New("unauthorized")
	}
	return rule, nil
}

func (u *ruleUsecase) ListRules(userID string) ([]*domain.AutomationRule, error) {
	return u.ruleRepo.FindByUserID(userID)
}

func (u *ruleUsecase) UpdateRule(userID, ruleID string, updates RuleUpdateRequest) (*domain.AutomationRule, error) {
	rule, err := u.GetRule(userID, ruleID)
	if err != nil {
		return nil, err
	}

	if updates.DateType != nil {
		rule.DateType = *updates.DateType
	}
	if updates.EventID != nil {
		rule.EventID = *updates.EventID
	}
	if updates.Active != nil {
		rule.Active = *updates.Active
	}
	if updates.BudgetLimit != nil {
		if *updates.BudgetLimit <= 0 {
			return nil, errors.New("budget limit must be greater than zero")
		}
		rule.BudgetLimit = *updates.BudgetLimit
	}
	if updates.Criteria != nil {
		if err := updates.Criteria.Validate(); err != nil {
			return nil, err
		}
		rule.Criteria = *updates.Criteria
	}
	if updates.AutoApprove != nil {
		rule.AutoApprove = *updates.AutoApprove
	}
	if updates.NotifyDaysBefore != nil {
		rule.NotifyDaysBefore = *updates.NotifyDaysBefore
	}
	if updates.NotifyOnExecution != nil {
		rule.NotifyOnExecution = *updates.NotifyOnExecution
	}

	if err := u.ruleRepo.Update(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (u *ruleUsecase) DeleteRule(userID, ruleID string) error {
	rule, err := u.GetRule(userID, ruleID)
	if err != nil {
		return err
	}
	return u.ruleRepo.Delete(rule.ID)
}

func (u *ruleUsecase) GetSettings(userID string) (*domain.AutomationSettings, error) {
	return u.settingsRepo.GetOrCreate(userID)
}

func (u *ruleUsecase) UpsertSettings(userID string, req SettingsRequest) (*domain.AutomationSettings, error) {
	settings, err := u.settingsRepo.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	if req.DefaultBudget != nil {
		if *req.DefaultBudget <= 0 {
			return nil, errors.New("default budget must be greater than zero")
		}
		settings.DefaultBudget = *req.DefaultBudget
	}
	if req.NotifyDaysBefore != nil {
		settings.NotifyDaysBefore = *req.NotifyDaysBefore
	}
	if req.AutoApprove != nil {
		settings.AutoApprove = *req.AutoApprove
	}

	if err := u.settingsRepo.Upsert(settings); err != nil {
		return nil, err
	}
	return settings, nil
}
