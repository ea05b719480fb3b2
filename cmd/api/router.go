package api

import (
	addresspkg "giftwise-backend/internal/address"
	"giftwise-backend/internal/auth/delivery"
	automationDelivery "giftwise-backend/internal/automation/delivery"
	"giftwise-backend/internal/notification"
	"giftwise-backend/pkg/config"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, automationHandler *automationDelivery.AutomationHandler, deviceHandler *notification.DeviceHandler, addressHandler *addresspkg.Handler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := delivery.AuthMiddleware(cfg.JWTSecret)

		// Automation rules (protected)
		rules := api.Group("/rules")
		rules.Use(auth)
		{
			rules.GET("", automationHandler.ListRules)
			rules.POST("", automationHandler.CreateRule)
			rules.GET("/:id", automationHandler.GetRule)
			rules.PUT("/:id", automationHandler.UpdateRule)
			rules.DELETE("/:id", automationHandler.DeleteRule)
		}

		// Automation settings (protected)
		settings := api.Group("/settings")
		settings.Use(auth)
		{
			settings.GET("", automationHandler.GetSettings)
			settings.PUT("", automationHandler.UpdateSettings)
		}

		// Gift executions (protected)
		executions := api.Group("/executions")
		executions.Use(auth)
		{
			executions.GET("", automationHandler.ListExecutions)
			executions.POST("/process", automationHandler.ProcessExecutions)
			executions.POST("/:id/approve", automationHandler.ApproveExecution)
			executions.POST("/:id/complete", automationHandler.CompleteExecution)
			executions.POST("/:id/cancel", automationHandler.CancelExecution)
		}

		// Quota status (protected)
		api.GET("/rate-limit", auth, automationHandler.GetRateLimitStatus)

		// Push notification devices (protected)
		devices := api.Group("/devices")
		devices.Use(auth)
		{
			devices.POST("", deviceHandler.RegisterDevice)
			devices.DELETE("/:token", deviceHandler.UnregisterDevice)
		}

		// Manual address requests (protected)
		api.POST("/address-requests", auth, addressHandler.RequestAddress)
	}
}
