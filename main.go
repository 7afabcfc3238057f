package main

import (
	"github.com/joho/godotenv"

	"github.com/matyaskozubik2/canvas-word-play/config"
	"github.com/matyaskozubik2/canvas-word-play/logger"
	"github.com/matyaskozubik2/canvas-word-play/monitor"
	"github.com/matyaskozubik2/canvas-word-play/persistence"
	"github.com/matyaskozubik2/canvas-word-play/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// .env 不存在时忽略,环境变量照常由 viper 读取
	if err := godotenv.Load(); err == nil {
		logger.Log.Info("Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize storage
	var store persistence.Store
	switch cfg.Database.Driver {
	case "memory":
		logger.Log.Warn("Using in-memory storage, rooms will not survive a restart")
		store = persistence.NewMemoryStore()
	default:
		store, err = persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		logger.Log.Info("Database connection successful.")
	}
	defer store.Close()

	// Metrics endpoint
	mon := monitor.NewMonitor("canvas_word_play")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, store, mon)

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
