package guard

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyUsage is one user's persisted usage row for one calendar day.
// Keyed by (user_id, day) so a day rollover simply starts a fresh row
// and the ceilings hold across restarts and instances.
type DailyUsage struct {
	UserID        string    `json:"user_id" gorm:"primaryKey"`
	Day           string    `json:"day" gorm:"primaryKey"`
	Executions    int       `json:"executions" gorm:"default:0"`
	APICalls      int       `json:"api_calls" gorm:"default:0"`
	LastExecution time.Time `json:"last_execution"`
}

// usageRepository implements UsageStore on the shared transactional
// store with an atomic upsert-increment
type usageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageStore {
	return &usageRepository{db: db}
}

func (r *usageRepository) Usage(userID, day string) (Usage, error) {
	var row DailyUsage
	err := r.db.Where("user_id = ? AND day = ?", userID, day).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return Usage{}, nil
		}
		return Usage{}, err
	}
	return Usage{
		Executions:    row.Executions,
		APICalls:      row.APICalls,
		LastExecution: row.LastExecution,
	}, nil
}

// Record increments both counters in a single upsert so concurrent
// recorders never lose an increment
func (r *usageRepository) Record(userID, day string, now time.Time) error {
	row := &DailyUsage{
		UserID:        userID,
		Day:           day,
		Executions:    1,
		APICalls:      1,
		LastExecution: now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"executions":     gorm.Expr("executions + 1"),
			"api_calls":      gorm.Expr("api_calls + 1"),
			"last_execution": now,
		}),
	}).Create(row).Error
}

// Reserve claims one unit of quota with a conditional increment. The
// ceiling check lives inside the UPDATE's WHERE clause, so two callers
// racing on the last unit serialize in the database and only one wins.
func (r *usageRepository) Reserve(userID, day string, apiCallLimit int, now time.Time) (bool, error) {
	claim := func() (bool, error) {
		result := r.db.Model(&DailyUsage{}).
			Where("user_id = ? AND day = ? AND api_calls < ?", userID, day, apiCallLimit).
			Updates(map[string]interface{}{
				"executions":     gorm.Expr("executions + 1"),
				"api_calls":      gorm.Expr("api_calls + 1"),
				"last_execution": now,
			})
		return result.RowsAffected > 0, result.Error
	}

	claimed, err := claim()
	if err != nil || claimed {
		return claimed, err
	}

	// Zero rows means either the ceiling was hit or no row exists yet
	// for this (user, day). Seed the row and retry the claim once; the
	// DoNothing clause keeps a concurrent seeder from double-counting.
	seed := &DailyUsage{UserID: userID, Day: day}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return false, err
	}
	return claim()
}

// Release returns one reserved unit after a search that never completed
func (r *usageRepository) Release(userID, day string) error {
	return r.db.Model(&DailyUsage{}).
		Where("user_id = ? AND day = ? AND api_calls > 0", userID, day).
		Updates(map[string]interface{}{
			"executions": gorm.Expr("CASE WHEN executions > 0 THEN executions - 1 ELSE 0 END"),
			"api_calls":  gorm.Expr("api_calls - 1"),
		}).Error
}
