package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/taleweave/taleweave/internal/config"
	"github.com/taleweave/taleweave/internal/llm"
	"github.com/taleweave/taleweave/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s: %v. Using defaults", cfgPath, err)
		cfg = config.Default()
	}
	cfg.FromEnv()

	classifier, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize classifier client: %v", err)
	}

	srv := server.New(cfg, classifier)
	r := srv.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting story memory server on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
