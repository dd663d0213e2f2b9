package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"pmcell-separacao/internal/api"
	"pmcell-separacao/internal/auth"
	"pmcell-separacao/internal/config"
	"pmcell-separacao/internal/db"
	"pmcell-separacao/internal/logger"
	"pmcell-separacao/internal/orders"
	"pmcell-separacao/internal/pdfparse"
	"pmcell-separacao/internal/ws"
)

var version = "dev"

func main() {
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	seedDemo := flag.Bool("seed", false, "seed demo users alongside the admin on an empty database")
	flag.Parse()

	logger.Banner(version)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("Config", fmt.Sprintf("Invalid configuration: %v", err))
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger.Section("Configuration")
	logger.Stats("Environment", cfg.Environment)
	logger.Stats("Database", cfg.DBPath)
	logger.Stats("Parse workers", cfg.ParseWorkers)
	logger.Stats("Max upload (bytes)", cfg.MaxUploadBytes)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	if err := seedUsers(database, cfg.AdminPIN, *seedDemo); err != nil {
		logger.Error("DB", fmt.Sprintf("Seed failed: %v", err))
		os.Exit(1)
	}

	authSvc := auth.NewService(database, cfg.JWTSecret, cfg.TokenTTL())
	hub := ws.NewHub(database)
	orderSvc := orders.NewService(database, hub)
	parser := pdfparse.New(cfg.ParseWorkers)

	srv := api.NewServer(cfg, database, authSvc, orderSvc, parser, hub, version)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Server(addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
}

// seedUsers creates the bootstrap admin operator on an empty user table so
// a fresh install can log in and register the rest of the team. With demo
// set it also creates one user per remaining role for local testing.
func seedUsers(database *db.DB, adminPIN string, demo bool) error {
	n, err := database.CountUsers()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	type seed struct{ name, pin, role string }
	seeds := []seed{{"Administrador", adminPIN, db.RoleAdmin}}
	if demo {
		seeds = append(seeds,
			seed{"Maria Silva", "1111", db.RoleSeparator},
			seed{"João Santos", "2222", db.RoleSeller},
			seed{"Carlos Souza", "3333", db.RoleBuyer},
		)
	}
	for _, s := range seeds {
		hash, err := auth.HashPIN(s.pin)
		if err != nil {
			return err
		}
		u := &db.User{
			Name:     s.name,
			Pin:      s.pin,
			PinHash:  hash,
			Role:     s.role,
			IsActive: true,
		}
		if err := database.CreateUser(u); err != nil {
			return err
		}
		logger.Success("DB", fmt.Sprintf("Seeded %s user #%d (%s)", s.role, u.ID, s.name))
	}
	return nil
}
