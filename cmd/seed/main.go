// Command seed fills the database with demo travellers and experiences.
package main

import (
	"context"
	"flag"
	"log"

	"explorer/internal/bootstrap"
	"explorer/internal/config"
	"explorer/internal/geo"
	"explorer/internal/observability"
	"explorer/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 10, "Number of users to create")
	numExperiences := flag.Int("experiences", 40, "Number of experiences to create")
	shouldClean := flag.Bool("clean", false, "Delete all users and experiences before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = random)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d experiences, clean=%v\n", *numUsers, *numExperiences, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}
	logger := observability.NewLogger(false)

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer rt.Close()

	s := seed.NewSeeder(rt.DB, geo.Default(), seed.Options{
		NumUsers:       *numUsers,
		NumExperiences: *numExperiences,
		ShouldClean:    *shouldClean,
		Seed:           *randSeed,
		BcryptCost:     cfg.BcryptCost,
	}, logger)

	result, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	for _, u := range result.Users {
		log.Printf("👤 %s (%s)", u.Username, u.Name)
	}
	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("🔑 All test users have the password: %s", seed.DefaultPassword)
}
