package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/reviewd-dev/reviewd/internal/config"
	"github.com/reviewd-dev/reviewd/internal/daemon"
	"github.com/reviewd-dev/reviewd/internal/llm"
	"github.com/reviewd-dev/reviewd/internal/review"
	"github.com/reviewd-dev/reviewd/internal/storage"
	"github.com/reviewd-dev/reviewd/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("reviewd %s\n", version.Version)
		return
	}

	var (
		dbPath     = flag.String("db", storage.DefaultDBPath(), "path to sqlite database")
		configPath = flag.String("config", config.DefaultConfigPath(), "path to config file")
		addr       = flag.String("addr", "", "server address (overrides config)")
		noHistory  = flag.Bool("no-history", false, "disable review history storage")
	)
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting reviewd...")

	// Local .env is a convenience for development; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", *configPath, err)
	}
	if *addr != "" {
		cfg.ServerAddr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("LLM provider: %s (model %s)", cfg.LLMProvider, cfg.LLMModel())

	client, err := llm.New(llm.Options{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel(),
		APIKey:   cfg.LLMAPIKey(),
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}

	var db *storage.DB
	if !*noHistory {
		db, err = storage.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		log.Printf("Database: %s", *dbPath)
	}

	service := daemon.NewService(cfg, review.NewOrchestrator(client), db)
	server := daemon.NewServer(cfg, service, db)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		if err := server.Stop(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
