package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	JWTSecret string

	DatabaseDSN string

	CatalogBaseURL string
	CatalogTimeout time.Duration

	FirebaseCredentials string

	// Guard ceilings
	DailyExecutionLimit int
	DailyAPICallLimit   int
	HighPriorityBonus   int
	MonthlyBudgetGlobal float64

	// Execution lifecycle
	StuckExecutionWindow time.Duration
	MaxRetries           int
	ProcessInterval      time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	catalogTimeout := 10 * time.Second
	if t := os.Getenv("CATALOG_TIMEOUT"); t != "" {
		if parsed, err := time.ParseDuration(t); err == nil {
			catalogTimeout = parsed
		}
	}

	stuckWindow := 30 * time.Minute
	if w := os.Getenv("STUCK_EXECUTION_WINDOW"); w != "" {
		if parsed, err := time.ParseDuration(w); err == nil {
			stuckWindow = parsed
		}
	}

	processInterval := 5 * time.Minute
	if i := os.Getenv("PROCESS_INTERVAL"); i != "" {
		if parsed, err := time.ParseDuration(i); err == nil {
			processInterval = parsed
		}
	}

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		JWTSecret:            getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		DatabaseDSN:          getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=giftwise port=5432 sslmode=disable"),
		CatalogBaseURL:       getEnv("CATALOG_BASE_URL", "http://localhost:9090"),
		CatalogTimeout:       catalogTimeout,
		FirebaseCredentials:  getEnv("FIREBASE_CREDENTIALS", ""),
		DailyExecutionLimit:  getEnvInt("DAILY_EXECUTION_LIMIT", 5),
		DailyAPICallLimit:    getEnvInt("DAILY_API_CALL_LIMIT", 20),
		HighPriorityBonus:    getEnvInt("HIGH_PRIORITY_BONUS", 5),
		MonthlyBudgetGlobal:  getEnvFloat("MONTHLY_BUDGET_GLOBAL", 10000),
		StuckExecutionWindow: stuckWindow,
		MaxRetries:           getEnvInt("MAX_RETRIES", 3),
		ProcessInterval:      processInterval,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
