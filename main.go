package main

import (
	"log"

	api "giftwise-backend/cmd/api"
	"giftwise-backend/internal/address"
	automationDomain "giftwise-backend/internal/automation/domain"
	automationRepo "giftwise-backend/internal/automation/repository"
	"giftwise-backend/internal/automation/scheduler"
	automationUsecase "giftwise-backend/internal/automation/usecase"
	"giftwise-backend/internal/guard"
	"giftwise-backend/internal/notification"
	peopleDomain "giftwise-backend/internal/people/domain"
	peopleRepo "giftwise-backend/internal/people/repository"
	"giftwise-backend/internal/selection"
	"giftwise-backend/pkg/catalog"
	"giftwise-backend/pkg/config"
	"giftwise-backend/pkg/database"
	"giftwise-backend/pkg/fcm"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&automationDomain.AutomationRule{},
		&automationDomain.AutomationSettings{},
		&automationDomain.GiftExecution{},
		&peopleDomain.RecipientProfile{},
		&peopleDomain.Wishlist{},
		&peopleDomain.WishlistItem{},
		&peopleDomain.Connection{},
		&address.AddressRequest{},
		&notification.DeviceToken{},
		&guard.DailyUsage{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	ruleRepository := automationRepo.NewRuleRepository(db)
	settingsRepository := automationRepo.NewSettingsRepository(db)
	executionRepository := automationRepo.NewExecutionRepository(db)
	profileRepository := peopleRepo.NewProfileRepository(db)
	wishlistRepository := peopleRepo.NewWishlistRepository(db)
	connectionRepository := peopleRepo.NewConnectionRepository(db)
	requestRepository := address.NewRequestRepository(db)
	deviceRepository := notification.NewDeviceTokenRepository(db)

	// Initialize FCM client (optional; notifications degrade to logs)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		}
	} else {
		log.Println("[WARN] No Firebase credentials configured, push notifications disabled")
	}
	notifier := notification.NewService(deviceRepository, fcmClient)

	// Budget & rate guard: counters persisted in the shared store so the
	// ceilings hold across restarts and instances, spend fed from the
	// aggregate committed totals
	rateGuard := guard.New(
		guard.NewUsageRepository(db),
		cfg.DailyExecutionLimit,
		cfg.DailyAPICallLimit,
		cfg.HighPriorityBonus,
		cfg.MonthlyBudgetGlobal,
		func() float64 {
			total, err := settingsRepository.TotalMonthlySpend()
			if err != nil {
				log.Printf("[WARN] Failed to read monthly spend, assuming zero: %v", err)
				return 0
			}
			return total
		},
	)

	// Catalog search gateway
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout)

	// Core engine components
	resolver := address.NewResolver(profileRepository, connectionRepository, requestRepository, notifier)
	selector := selection.NewSelector(wishlistRepository, profileRepository, catalogClient, rateGuard)

	ruleUsecaseInstance := automationUsecase.NewRuleUsecase(ruleRepository, settingsRepository)
	executionUsecaseInstance := automationUsecase.NewExecutionUsecase(
		executionRepository,
		ruleRepository,
		settingsRepository,
		profileRepository,
		resolver,
		selector,
		rateGuard,
		notifier,
		cfg.StuckExecutionWindow,
		cfg.MaxRetries,
	)

	// Background execution sweep
	executionScheduler := scheduler.NewExecutionScheduler(executionRepository, executionUsecaseInstance, cfg.ProcessInterval)
	if err := executionScheduler.Start(); err != nil {
		log.Fatal("Failed to start execution scheduler:", err)
	}
	defer executionScheduler.Stop()

	// Initialize HTTP handler
	handler := api.NewHandler(cfg, ruleUsecaseInstance, executionUsecaseInstance, deviceRepository, resolver)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
