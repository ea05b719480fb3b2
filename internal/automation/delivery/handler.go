package delivery

import (
	"net/http"

	"giftwise-backend/internal/automation/domain"
	"giftwise-backend/internal/automation/usecase"

	"github.com/gin-gonic/gin"
)

// AutomationHandler handles rule, settings and execution HTTP requests
type AutomationHandler struct {
	ruleUsecase usecase.RuleUsecase
	execUsecase usecase.ExecutionUsecase
}

func NewAutomationHandler(ruleUsecase usecase.RuleUsecase, execUsecase usecase.ExecutionUsecase) *AutomationHandler {
	return &AutomationHandler{
		ruleUsecase: ruleUsecase,
		execUsecase: execUsecase,
	}
}

// CreateRule creates a new automation rule
// POST /api/rules
func (h *AutomationHandler) CreateRule(c *gin.Context) {
	userID := c.GetString("userID")

	var req usecase.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.ruleUsecase.CreateRule(userID, req)
	if err != nil {
		// Rule creation errors are validation faults, surfaced verbatim
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// ListRules returns the user's automation rules
// GET /api/rules
func (h *AutomationHandler) ListRules(c *gin.Context) {
	userID := c.GetString("userID")

	rules, err := h.ruleUsecase.ListRules(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules, "total": len(rules)})
}

// GetRule returns one rule
// GET /api/rules/:id
func (h *AutomationHandler) GetRule(c *gin.Context) {
	userID := c.GetString("userID")

	rule, err := h.ruleUsecase.GetRule(userID, c.Param("id"))
	if err != nil {
		respondUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// UpdateRule updates an existing rule
// PUT /api/rules/:id
func (h *AutomationHandler) UpdateRule(c *gin.Context) {
	userID := c.GetString("userID")

	var updates usecase.RuleUpdateRequest
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.ruleUsecase.UpdateRule(userID, c.Param("id"), updates)
	if err != nil {
		respondUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// DeleteRule removes a rule
// DELETE /api/rules/:id
func (h *AutomationHandler) DeleteRule(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.ruleUsecase.DeleteRule(userID, c.Param("id")); err != nil {
		respondUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "rule deleted"})
}

// GetSettings returns the user's automation settings
// GET /api/settings
func (h *AutomationHandler) GetSettings(c *gin.Context) {
	userID := c.GetString("userID")

	settings, err := h.ruleUsecase.GetSettings(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings upserts the user's automation settings
// PUT /api/settings
func (h *AutomationHandler) UpdateSettings(c *gin.Context) {
	userID := c.GetString("userID")

	var req usecase.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.ruleUsecase.UpsertSettings(userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// ProcessExecutions runs one batch pass for the authenticated user
// POST /api/executions/process
func (h *AutomationHandler) ProcessExecutions(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.execUsecase.ProcessPendingExecutions(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "processing pass completed"})
}

// ListExecutions returns the user's executions, optionally by status
// GET /api/executions?status=pending
func (h *AutomationHandler) ListExecutions(c *gin.Context) {
	userID := c.GetString("userID")

	var statusPtr *domain.ExecutionStatus
	if status := c.Query("status"); status != "" {
		s := domain.ExecutionStatus(status)
		statusPtr = &s
	}

	executions, err := h.execUsecase.ListExecutions(userID, statusPtr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"executions": executions, "total": len(executions)})
}

// ApproveRequest is the body for approving an execution
type ApproveRequest struct {
	ProductIDs []string `json:"product_ids"`
}

// ApproveExecution transitions a pending execution into processing
// POST /api/executions/:id/approve
func (h *AutomationHandler) ApproveExecution(c *gin.Context) {
	userID := c.GetString("userID")

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	execution, err := h.execUsecase.Approve(userID, c.Param("id"), req.ProductIDs)
	if err != nil {
		respondUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, execution)
}

// CompleteExecution marks a processing execution as delivered
// POST /api/executions/:id/complete
func (h *AutomationHandler) CompleteExecution(c *gin.Context) {
	userID := c.GetString("userID")

	execution, err := h.execUsecase.Complete(userID, c.Param("id"))
	if err != nil {
		respondUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, execution)
}

// CancelExecution cancels a non-terminal execution
// POST /api/executions/:id/cancel
func (h *AutomationHandler) CancelExecution(c *gin.Context) {
	userID := c.GetString("userID")

	execution, err := h.execUsecase.Cancel(userID, c.Param("id"))
	if err != nil {
		respondUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, execution)
}

// GetRateLimitStatus returns remaining daily quota and the advisory
// budget allocation
// GET /api/rate-limit
func (h *AutomationHandler) GetRateLimitStatus(c *gin.Context) {
	userID := c.GetString("userID")

	c.JSON(http.StatusOK, gin.H{
		"rate_limit":        h.execUsecase.GetRateLimitStatus(userID),
		"budget_allocation": h.execUsecase.GetBudgetAllocation(),
	})
}

func respondUsecaseError(c *gin.Context, err error) {
	switch err.Error() {
	case "rule not found", "execution not found":
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case "unauthorized":
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
