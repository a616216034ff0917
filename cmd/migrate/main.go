package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/config"
	"github.com/Rrens/rag-agent/internal/logger"
	"github.com/Rrens/rag-agent/internal/repository/postgres"
)

func main() {
	source := flag.String("source", "", "migration source URL (default database.migrations_source)")
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if _, err := logger.Setup(cfg.Env, config.LoggingConfig{Level: cfg.Logging.Level}); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	if *source == "" {
		*source = cfg.Database.MigrationsSource
	}

	dsn := cfg.Database.DSN()
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("Connecting to database")

	switch cmd := flag.Arg(0); cmd {
	case "", "up":
		err = postgres.RunMigrations(dsn, *source)
	case "down":
		err = postgres.RollbackMigrations(dsn, *source, *steps)
		if err == nil {
			log.Info().Int("steps", *steps).Msg("Database migration: rolled back")
		}
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = postgres.MigrationVersion(dsn, *source)
		if err == nil {
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Database migration version")
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
