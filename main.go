// Package main is the entry point for the placement engine.
package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/linkdeck/placement-engine/internal/app"
)

var (
	// version can be set at build time via -ldflags
	version = "dev"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		runServer()
	case "run-once":
		runOnce()
	case "version":
		log.Printf("Placement engine version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		log.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// runServer starts the API server and, when enabled, the periodic scheduler
func runServer() {
	a, err := app.New(app.Options{
		ConfigPath: configPath(),
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if err := a.Run(context.Background()); err != nil {
		log.Fatalf("Service error: %v", err)
	}
}

// runOnce executes a single batch run over all users and exits. Useful for
// external cron and for smoke-testing a deployment.
func runOnce() {
	a, err := app.New(app.Options{
		ConfigPath: configPath(),
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if err := a.RunBatchOnce(context.Background()); err != nil {
		log.Fatalf("Batch run error: %v", err)
	}
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yaml"
}

func printUsage() {
	log.Println("Placement Engine - automatic backlink placement")
	log.Println()
	log.Println("Usage:")
	log.Println("  placement-engine [command]")
	log.Println()
	log.Println("Commands:")
	log.Println("  serve      Start the HTTP API server and scheduler (default)")
	log.Println("  run-once   Run one batch placement pass over all users, then exit")
	log.Println("  version    Print version information")
	log.Println("  help       Show this help message")
	log.Println()
	log.Println("Environment Variables:")
	log.Println("  CONFIG_PATH          - Path to config file (default: config.yaml)")
	log.Println("  DATABASE_HOST        - PostgreSQL host")
	log.Println("  DATABASE_PASSWORD    - PostgreSQL password")
	log.Println("  REDIS_ADDR           - Redis address")
	log.Println("  AI_API_KEY           - API key for the sentence generator")
	log.Println("  ADMIN_SECRET         - Shared secret for manual overrides")
	log.Println("  ENGINE_PORT          - HTTP port override")
	log.Println("  APP_DEBUG            - Enable debug logging (true/false)")
}
