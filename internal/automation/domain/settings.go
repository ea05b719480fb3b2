package domain

import "time"

// AutomationSettings is the per-user singleton of automation defaults.
// The spend counters are the only fields the execution pipeline itself
// mutates; they increase monotonically until a period reset.
type AutomationSettings struct {
	UserID           string  `json:"user_id" gorm:"primaryKey"`
	DefaultBudget    float64 `json:"default_budget" gorm:"default:50"`
	NotifyDaysBefore int     `json:"notify_days_before" gorm:"default:3"`
	AutoApprove      bool    `json:"auto_approve"`

	MonthlySpent float64 `json:"monthly_spent" gorm:"default:0"`
	AnnualSpent  float64 `json:"annual_spent" gorm:"default:0"`
	// SpendMonth is the "2006-01" period the monthly counter belongs to
	SpendMonth string `json:"spend_month,omitempty"`
	// SpendYear is the "2006" period the annual counter belongs to
	SpendYear string `json:"spend_year,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
