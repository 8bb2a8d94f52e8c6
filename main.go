package main

import (
	"github.com/wfunc/matchserver/config"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/server"
	"github.com/wfunc/matchserver/store"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open the store
	db, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()
	logger.Log.Infof("Store ready (backend: %s)", cfg.Store.Backend)

	// Start the game server
	gameServer := server.NewGameServer(cfg, db)
	logger.Log.Infof("Starting match server on %s", cfg.Server.ListenAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	pg := cfg.Store.Postgres
	switch cfg.Store.Backend {
	case "postgres":
		return store.NewPostgresStore(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "gorm":
		return store.NewGormStore(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return store.NewFileStore(cfg.Store.DataDir)
	}
}
