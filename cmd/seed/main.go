// Command seed fills the Quill database with demo accounts, posts and
// threaded comments.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 40, "Number of posts to create")
	numComments := flag.Int("comments", 6, "Maximum comments per post")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a named preset ("+strings.Join(seed.PresetNames(seed.Presets), ", ")+" or one from -presets)")
	presetFile := flag.String("presets", "seed.yml", "YAML file with extra presets")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	opts := seed.Options{Users: *numUsers, Posts: *numPosts, CommentsPerPost: *numComments, ReplyRatio: 0.6, ImageRatio: 0.25}
	if *preset != "" {
		presets, err := seed.LoadPresetFile(*presetFile)
		if err != nil {
			log.Fatalf("Failed to load presets: %v", err)
		}
		p, ok := presets[*preset]
		if !ok {
			log.Fatalf("Unknown preset %q; available: %s", *preset, strings.Join(seed.PresetNames(presets), ", "))
		}
		log.Printf("Applying preset: %s (ignoring count flags)", *preset)
		opts = p
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, opts)
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}
	if _, err := s.Run(ctx); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All test users have the password: %s", seed.DefaultPassword)
}
