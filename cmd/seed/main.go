// Command seed populates the database with development data.
package main

import (
	"flag"
	"log"

	"coffer/internal/config"
	"coffer/internal/database"
	"coffer/internal/middleware"
	"coffer/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "number of users to create")
	numCollections := flag.Int("collections", 40, "number of collections to create")
	itemsPer := flag.Int("items", 20, "max items per collection")
	clean := flag.Bool("clean", false, "delete existing data first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Env == "production" || cfg.Env == "prod" {
		log.Fatal("refusing to seed a production database")
	}
	middleware.InitMiddleware(cfg)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = seed.Seed(db, seed.Options{
		NumUsers:           *numUsers,
		NumCollections:     *numCollections,
		ItemsPerCollection: *itemsPer,
		ShouldClean:        *clean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("seeding complete")
}
