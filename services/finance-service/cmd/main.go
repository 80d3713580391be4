package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/cli"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/config"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	l := logger.WithComponent("main")
	l.Info().Msg("Starting finance service")
	cli.Execute(cfg)
}
