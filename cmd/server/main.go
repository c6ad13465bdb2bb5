package main

import (
	"flag"
	"log"
	"os"

	"github.com/JayJamieson/csv-sql/pkg/api"
	"github.com/JayJamieson/csv-sql/pkg/config"
)

func main() {

	configPath := flag.String("config", "", "Path to a TOML config file")
	port := flag.Int("port", 0, "Server port (default 8001)")
	dbURL := flag.String("db-url", "", "Database URL: postgres://, duckdb:, libsql://, file: (default file:data.db)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbURL != "" {
		cfg.Server.DatabaseURL = *dbURL
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	server, err := api.New(cfg)

	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
