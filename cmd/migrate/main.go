package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/Arcana/internal/pkg/database"
	"github.com/ManuelReschke/Arcana/internal/pkg/env"
)

func main() {
	// load environment from .env
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	driver := strings.ToLower(env.GetEnv("DB_DRIVER", database.DriverMySQL))

	var dbURL, sourceURL string
	switch driver {
	case database.DriverSQLite:
		path := env.GetEnv("DB_PATH", "arcana.db")
		dbURL = "sqlite3://" + path
		sourceURL = "file://migrations/sqlite"
		log.Printf("Connecting to sqlite database: %s", path)
	default:
		dbURL = fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
			env.GetEnv("DB_USER", "arcana"),
			env.GetEnv("DB_PASSWORD", "arcana"),
			env.GetEnv("DB_HOST", "db"),
			env.GetEnv("DB_PORT", "3306"),
			env.GetEnv("DB_NAME", "arcana_db"),
		)
		sourceURL = "file://migrations/mysql"
		log.Printf("Connecting to database: %s@%s:%s/%s",
			env.GetEnv("DB_USER", "arcana"),
			env.GetEnv("DB_HOST", "db"),
			env.GetEnv("DB_PORT", "3306"),
			env.GetEnv("DB_NAME", "arcana_db"),
		)
	}

	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		log.Fatalf("Failed to initialise migrations: %v", err)
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Failed to close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		// apply all pending migrations
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to apply migrations: %v", err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No change: database is already up to date")
		} else {
			log.Println("Migrations applied")
		}

	case "down":
		// roll back the last migration
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Failed to roll back the last migration: %v", err)
		}
		log.Println("Last migration rolled back")

	case "goto":
		version := parseVersion()
		if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to migrate to version %d: %v", version, err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Printf("No change: database is already at version %d", version)
		} else {
			log.Printf("Migrated to version %d", version)
		}

	case "force":
		// clear a dirty flag after fixing a failed migration by hand
		version := parseVersion()
		if err := m.Force(int(version)); err != nil {
			log.Fatalf("Failed to force version %d: %v", version, err)
		}
		log.Printf("Forced version %d", version)

	case "status":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("No migrations have been applied yet")
			} else {
				log.Fatalf("Failed to read migration version: %v", err)
			}
		} else {
			dirtyStatus := ""
			if dirty {
				dirtyStatus = " (dirty)"
			}
			log.Printf("Current migration version: %d%s", version, dirtyStatus)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func parseVersion() uint {
	if len(os.Args) < 3 {
		log.Fatalf("Please provide a version number")
	}
	version, err := strconv.ParseUint(os.Args[2], 10, 64)
	if err != nil {
		log.Fatalf("Invalid version number: %v", err)
	}
	return uint(version)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up      - apply all pending migrations")
	fmt.Println("  down    - roll back the last migration")
	fmt.Println("  goto N  - migrate to version N")
	fmt.Println("  force N - set version N without running migrations")
	fmt.Println("  status  - show the current migration version")
	fmt.Println("DB_DRIVER selects migrations/mysql or migrations/sqlite.")
}
