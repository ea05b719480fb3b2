package repository

import (
	"time"

	"giftwise-backend/internal/automation/domain"

	"gorm.io/gorm"
)

// SettingsRepository defines access to per-user automation settings.
// AddSpend is the only write path the execution pipeline uses.
type SettingsRepository interface {
	GetByUserID(userID string) (*domain.AutomationSettings, error)
	// GetOrCreate returns the user's settings, creating the defaults row
	// on first access
	GetOrCreate(userID string) (*domain.AutomationSettings, error)
	Upsert(settings *domain.AutomationSettings) error
	// AddSpend atomically adds a committed gift total to the user's
	// monthly and annual counters, resetting a counter first when its
	// period has rolled over
	AddSpend(userID string, amount float64) error
	// TotalMonthlySpend sums all users' spend for the current month;
	// feeds the emergency circuit breaker
	TotalMonthlySpend() (float64, error)
}

// settingsRepository implements SettingsRepository using GORM
type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetByUserID(userID string) (*domain.AutomationSettings, error) {
	var settings domain.AutomationSettings
	err := r.db.Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) GetOrCreate(userID string) (*domain.AutomationSettings, error) {
	settings, err := r.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	now := time.Now()
	settings = &domain.AutomationSettings{
		UserID:           userID,
		DefaultBudget:    50,
		NotifyDaysBefore: 3,
		SpendMonth:       now.Format("2006-01"),
		SpendYear:        now.Format("2006"),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.db.Create(settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *settingsRepository) Upsert(settings *domain.AutomationSettings) error {
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = time.Now()
	}
	settings.UpdatedAt = time.Now()
	return r.db.Save(settings).Error
}

func (r *settingsRepository) AddSpend(userID string, amount float64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var settings domain.AutomationSettings
		err := tx.Where("user_id = ?", userID).First(&settings).Error
		if err == gorm.ErrRecordNotFound {
			now := time.Now()
			settings = domain.AutomationSettings{
				UserID:           userID,
				DefaultBudget:    50,
				NotifyDaysBefore: 3,
				CreatedAt:        now,
			}
		} else if err != nil {
			return err
		}

		now := time.Now()
		month := now.Format("2006-01")
		year := now.Format("2006")

		if settings.SpendMonth != month {
			settings.MonthlySpent = 0
			settings.SpendMonth = month
		}
		if settings.SpendYear != year {
			settings.AnnualSpent = 0
			settings.SpendYear = year
		}

		settings.MonthlySpent += amount
		settings.AnnualSpent += amount
		settings.UpdatedAt = now

		return tx.Save(&settings).Error
	})
}

func (r *settingsRepository) TotalMonthlySpend() (float64, error) {
	var total float64
	month := time.Now().Format("2006-01")
	err := r.db.Model(&domain.AutomationSettings{}).
		Where("spend_month = ?", month).
		Select("COALESCE(SUM(monthly_spent), 0)").
		Scan(&total).Error
	return total, err
}
