package main

import (
	"context"
	"time"

	"stockledger/server/internal/config"
	"stockledger/server/internal/database"
	"stockledger/server/internal/models"
	"stockledger/server/internal/seed"
	"stockledger/server/internal/utils"

	"github.com/joho/godotenv"
)

// go run ./scripts
func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogLevel)
	if envErr != nil {
		logger.Debug(".env not found, using process environment")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PostgresOptions{}, logger)
	if err != nil {
		logger.WithError(err).Fatal("postgres connection failed")
	}
	defer database.ClosePostgres(db)

	if err := models.AutoMigrate(db); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := seed.Demo(ctx, db, logger); err != nil {
		logger.WithError(err).Fatal("seeding failed")
	}
}
