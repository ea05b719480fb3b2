package repository

import (
	"time"

	"giftwise-backend/internal/automation/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleRepository defines access to automation rules
type RuleRepository interface {
	Create(rule *domain.AutomationRule) error
	FindByID(id string) (*domain.AutomationRule, error)
	FindByUserID(userID string) ([]*domain.AutomationRule, error)
	Update(rule *domain.AutomationRule) error
	Delete(id string) error
}

// ruleRepository implements RuleRepository using GORM
type ruleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) Create(rule *domain.AutomationRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()
	return r.db.Create(rule).Error
}

func (r *ruleRepository) FindByID(id string) (*domain.AutomationRule, error) {
	var rule domain.AutomationRule
	err := r.db.Where("id = ?", id).First(&rule).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepository) FindByUserID(userID string) ([]*domain.AutomationRule, error) {
	var rules []*domain.AutomationRule
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) Update(rule *domain.AutomationRule) error {
	rule.UpdatedAt = time.Now()
	return r.db.Save(rule).Error
}

func (r *ruleRepository) Delete(id string) error {
	return r.db.Delete(&domain.AutomationRule{}, "id = ?", id).Error
}
