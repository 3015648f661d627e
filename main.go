package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cymbalair/assistant/config"
	"github.com/cymbalair/assistant/internal/adapter/llm"
	"github.com/cymbalair/assistant/internal/adapter/retrieval"
	"github.com/cymbalair/assistant/internal/engine"
	"github.com/cymbalair/assistant/internal/service"
	"github.com/cymbalair/assistant/internal/session"
	"github.com/cymbalair/assistant/internal/tools"
	transport "github.com/cymbalair/assistant/internal/transport/http"
	"github.com/cymbalair/assistant/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting assistant...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Retrieval URL: %s", cfg.RetrievalBaseURL)
	log.Printf("LLM URL: %s (model %s)", cfg.LLMBaseURL, cfg.LLMModel)

	// Initialize session store
	var store session.Store
	if cfg.DatabaseURL != "" {
		log.Printf("Database: %s", cfg.DatabaseURL)
		sqliteStore, err := session.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize store: %v", err)
		}
		store = sqliteStore
	} else {
		log.Printf("Database: in-memory")
		store = session.NewMemoryStore()
	}
	defer store.Close()
	sessions := session.NewManager(store)

	// Initialize retrieval client and tool registry
	retrievalClient := retrieval.NewClient(cfg.RetrievalBaseURL, cfg.RetrievalTimeout)
	registry := tools.NewBuiltinRegistry(retrievalClient)

	// Initialize LLM client and gateway
	llmClient := llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)
	gateway := engine.NewLLMGateway(llmClient, cfg.LLMModel, registry.Definitions())

	// Initialize policy engine
	ctx := context.Background()
	policyContent := policy.DefaultPolicy
	if cfg.PolicyPath != "" {
		data, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			log.Fatalf("Failed to read policy file: %v", err)
		}
		policyContent = string(data)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize engine and service
	dialogEngine := engine.NewEngine(gateway, registry, policyEngine, cfg.MaxTurns)
	svc := service.NewService(sessions, dialogEngine)

	// Create HTTP server
	server := transport.NewServer(svc)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Assistant API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down assistant...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Assistant stopped")
}
