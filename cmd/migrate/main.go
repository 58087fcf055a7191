package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Rrens/bloombuddy/internal/config"
	"github.com/Rrens/bloombuddy/internal/logging"
	"github.com/Rrens/bloombuddy/internal/repository/mysql"
	"github.com/Rrens/bloombuddy/internal/repository/postgres"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up (postgres only)")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if _, err := logging.Setup(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	source := cfg.Archive.Migrations

	switch cfg.Archive.Driver {
	case config.ArchivePostgres, "":
		log.Info().Str("host", cfg.Database.Host).Int("port", cfg.Database.Port).Msg("migrating PostgreSQL archive")
		if *down > 0 {
			err = postgres.RollbackMigrations(cfg.Database.DSN(), source, *down)
		} else {
			err = postgres.RunMigrations(cfg.Database.DSN(), source)
		}
	case config.ArchiveMySQL:
		log.Info().Str("host", cfg.MySQL.Host).Int("port", cfg.MySQL.Port).Msg("migrating MySQL archive")
		err = mysql.RunMigrations(cfg.MySQL, source+"/mysql")
	default:
		log.Info().Str("driver", cfg.Archive.Driver).Msg("archive driver has no SQL migrations")
		return
	}

	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}
