package api

import (
	addresspkg "giftwise-backend/internal/address"
	automationDelivery "giftwise-backend/internal/automation/delivery"
	"giftwise-backend/internal/automation/usecase"
	"giftwise-backend/internal/notification"
	"giftwise-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	config            *config.Config
	automationHandler *automationDelivery.AutomationHandler
	deviceHandler     *notification.DeviceHandler
	addressHandler    *addresspkg.Handler
}

func NewHandler(cfg *config.Config, ruleUsecase usecase.RuleUsecase, execUsecase usecase.ExecutionUsecase, deviceRepo notification.DeviceTokenRepository, resolver *addresspkg.Resolver) *Handler {
	return &Handler{
		config:            cfg,
		automationHandler: automationDelivery.NewAutomationHandler(ruleUsecase, execUsecase),
		deviceHandler:     notification.NewDeviceHandler(deviceRepo),
		addressHandler:    addresspkg.NewHandler(resolver),
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.config, h.automationHandler, h.deviceHandler, h.addressHandler)

	return r.Run(addr)
}
