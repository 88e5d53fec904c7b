// Command migrate runs schema operations for the sync server.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"coffer/internal/config"
	"coffer/internal/database"
	"coffer/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate/main.go <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.InitMiddleware(cfg)

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "up":
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Println("migrations applied")
	case "status":
		migrator := db.Migrator()
		for _, table := range []string{
			"stokens", "users", "collections", "collection_items",
			"collection_members", "collection_invitations",
		} {
			log.Printf("%-24s present=%t", table, migrator.HasTable(table))
		}
	default:
		return usage()
	}
	return nil
}
