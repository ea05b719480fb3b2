package usecase

import (
	"fmt"
	"testing"

	"giftwise-backend/internal/automation/domain"
	"giftwise-backend/internal/automation/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRuleTest(t *testing.T) (RuleUsecase, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&domain.AutomationRule{}, &domain.AutomationSettings{})
	require.NoError(t, err)

	u := NewRuleUsecase(repository.NewRuleRepository(db), repository.NewSettingsRepository(db))
	return u, db
}

func seedSettings(t *testing.T, db *gorm.DB, userID string) {
	require.NoError(t, db.Create(&domain.AutomationSettings{
		UserID: userID, DefaultBudget: 50, NotifyDaysBefore: 3,
	}).Error)
}

func validCreateRequest() CreateRuleRequest {
	return CreateRuleRequest{
		RecipientID: "rec-1",
		DateType:    "birthday",
		BudgetLimit: 75,
		Criteria:    domain.GiftSelectionCriteria{Source: domain.CriteriaSourceBoth},
	}
}

func TestCreateRule(t *testing.T) {
	u, db := setupRuleTest(t)
	seedSettings(t, db, "user-1")

	rule, err := u.CreateRule("user-1", validCreateRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, rule.ID)
	assert.True(t, rule.Active)
	assert.Equal(t, 75.0, rule.BudgetLimit)
	assert.Equal(t, 3, rule.NotifyDaysBefore, "defaults come from the user's settings")
	assert.True(t, rule.NotifyOnExecution)
}

func TestCreateRuleValidation(t *testing.T) {
	u, db := setupRuleTest(t)
	seedSettings(t, db, "user-1")

	req := validCreateRequest()
	req.RecipientID = ""
	_, err := u.CreateRule("user-1", req)
	assert.ErrorContains(t, err, "recipient is required")

	req = validCreateRequest()
	req.DateType = ""
	req.EventID = ""
	_, err = u.CreateRule("user-1", req)
	assert.ErrorContains(t, err, "trigger date type or calendar event")

	req = validCreateRequest()
	req.BudgetLimit = 0
	_, err = u.CreateRule("user-1", req)
	assert.ErrorContains(t, err, "budget limit")

	req = validCreateRequest()
	req.Criteria = domain.GiftSelectionCriteria{Source: domain.CriteriaSourceSpecific}
	_, err = u.CreateRule("user-1", req)
	assert.ErrorContains(t, err, "requires a product id")

	req = validCreateRequest()
	req.Criteria.MaxPrice = 100
	_, err = u.CreateRule("user-1", req)
	assert.ErrorContains(t, err, "exceeds the rule budget")
}

func TestCreateRuleRequiresSettings(t *testing.T) {
	u, _ := setupRuleTest(t)

	_, err := u.CreateRule("user-1", validCreateRequest())
	assert.ErrorContains(t, err, "settings must be configured")
}

func TestUpdateRule(t *testing.T) {
	u, db := setupRuleTest(t)
	seedSettings(t, db, "user-1")
	rule, err := u.CreateRule("user-1", validCreateRequest())
	require.NoError(t, err)

	active := false
	budget := 120.0
	updated, err := u.UpdateRule("user-1", rule.ID, RuleUpdateRequest{
		Active:      &active,
		BudgetLimit: &budget,
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, 120.0, updated.BudgetLimit)

	badBudget := -1.0
	_, err = u.UpdateRule("user-1", rule.ID, RuleUpdateRequest{BudgetLimit: &badBudget})
	assert.ErrorContains(t, err, "budget limit")

	badCriteria := domain.GiftSelectionCriteria{Source: "mystery"}
	_, err = u.UpdateRule("user-1", rule.ID, RuleUpdateRequest{Criteria: &badCriteria})
	assert.ErrorContains(t, err, "unknown gift selection source")
}

func TestRuleOwnership(t *testing.T) {
	u, db := setupRuleTest(t)
	seedSettings(t, db, "user-1")
	rule, err := u.CreateRule("user-1", validCreateRequest())
	require.NoError(t, err)

	_, err = u.GetRule("user-2", rule.ID)
	assert.ErrorContains(t, err, "unauthorized")

	_, err = u.GetRule("user-1", "missing")
	assert.ErrorContains(t, err, "not found")

	err = u.DeleteRule("user-2", rule.ID)
	assert.ErrorContains(t, err, "unauthorized")

	require.NoError(t, u.DeleteRule("user-1", rule.ID))
	_, err = u.GetRule("user-1", rule.ID)
	assert.ErrorContains(t, err, "not found")
}

func TestListRulesScopedToUser(t *testing.T) {
	u, db := setupRuleTest(t)
	seedSettings(t, db, "user-1")
	seedSettings(t, db, "user-2")

	_, err := u.CreateRule("user-1", validCreateRequest())
	require.NoError(t, err)
	_, err = u.CreateRule("user-2", validCreateRequest())
	require.NoError(t, err)

	rules, err := u.ListRules("user-1")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestGetSettingsCreatesDefaults(t *testing.T) {
	u, _ := setupRuleTest(t)

	settings, err := u.GetSettings("user-1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, settings.DefaultBudget)
	assert.Equal(t, 3, settings.NotifyDaysBefore)
	assert.False(t, settings.AutoApprove)
}

func TestUpsertSettings(t *testing.T) {
	u, _ := setupRuleTest(t)

	budget := 80.0
	autoApprove := true
	settings, err := u.UpsertSettings("user-1", SettingsRequest{
		DefaultBudget: &budget,
		AutoApprove:   &autoApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, 80.0, settings.DefaultBudget)
	assert.True(t, settings.AutoApprove)

	badBudget := 0.0
	_, err = u.UpsertSettings("user-1", SettingsRequest{DefaultBudget: &badBudget})
	assert.ErrorContains(t, err, "default budget")
}
