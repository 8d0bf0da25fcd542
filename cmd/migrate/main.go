package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ManuelReschke/PayHook/internal/pkg/env"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	user := env.GetEnv("DB_USER", "payhook")
	host := env.GetEnv("DB_HOST", "db")
	port := env.GetEnv("DB_PORT", "3306")
	name := env.GetEnv("DB_NAME", "payhook_db")
	dbURL := fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		user, env.GetEnv("DB_PASSWORD", "payhook"), host, port, name)

	log.Printf("Connecting to database: %s@%s:%s/%s", user, host, port, name)
	m, err := migrate.New("file://"+env.GetEnv("MIGRATIONS_PATH", "migrations"), dbURL)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}

	runErr := run(m, os.Args[1:])
	if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
		log.Printf("Failed to close migration resources: %v, %v", sourceErr, dbErr)
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}

func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		return report(m.Up(), "Migrations applied")

	case "down":
		return report(m.Steps(-1), "Last migration rolled back")

	case "goto", "force":
		if len(args) < 2 {
			return errors.New("please provide a version number")
		}
		version, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version number: %w", err)
		}
		if args[0] == "force" {
			return report(m.Force(int(version)), fmt.Sprintf("Forced version %d", version))
		}
		return report(m.Migrate(uint(version)), fmt.Sprintf("Migrated to version %d", version))

	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("No migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read migration version: %w", err)
		}
		suffix := ""
		if dirty {
			suffix = " (dirty, run force to clear)"
		}
		log.Printf("Current migration version: %d%s", version, suffix)
		return nil

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// report treats ErrNoChange as success.
func report(err error, done string) error {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("No changes: database is up to date")
	case err != nil:
		return err
	default:
		log.Println(done)
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up      - apply all pending migrations")
	fmt.Println("  down    - roll back the last migration")
	fmt.Println("  goto N  - migrate to version N")
	fmt.Println("  force N - set version N without migrating, clears the dirty flag")
	fmt.Println("  status  - show the current migration version")
}
