package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/google/uuid"

	"alfredoptarigan/job-autopilot/internal/config"
	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
	"alfredoptarigan/job-autopilot/internal/services"
)

// Loads a knowledge base JSON file for a user and indexes it into Qdrant.
//
// Usage: go run scripts/ingest_knowledge.go <user-id> <knowledge.json>
func main() {
	log.Println("🚀 Starting knowledge ingestion...")

	if len(os.Args) != 3 {
		log.Fatalf("Usage: %s <user-id> <knowledge.json>", os.Args[0])
	}

	userID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatalf("❌ Invalid user id: %v", err)
	}

	raw, err := os.ReadFile(os.Args[2])
	if err != nil {
		log.Fatalf("❌ Failed to read knowledge file: %v", err)
	}

	var kb models.KnowledgeBase
	if err := json.Unmarshal(raw, &kb); err != nil {
		log.Fatalf("❌ Failed to parse knowledge file: %v", err)
	}
	kb.UserID = userID

	// Load configuration
	cfg := config.Load()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbedModel)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	vectorIndex, err := services.NewQdrantIndex(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}
	if err := vectorIndex.InitCollection(); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	kbRepo := repositories.NewKnowledgeBaseRepository(db)
	if err := kbRepo.Upsert(&kb); err != nil {
		log.Fatalf("❌ Failed to save knowledge base: %v", err)
	}

	retrieval := services.NewRetrievalService(
		geminiService,
		vectorIndex,
		services.NewKnowledgeChunker(),
	)

	ctx := context.Background()
	indexed, err := retrieval.IndexKnowledgeBase(ctx, &kb)
	if err != nil {
		log.Fatalf("❌ Failed to index knowledge base: %v", err)
	}
	if err := kbRepo.SetEmbeddingID(kb.ID, kb.ID.String()); err != nil {
		log.Printf("⚠️  Failed to record embedding id: %v\n", err)
	}

	log.Printf("✅ Indexed %d chunks for user %s\n", indexed, userID)
}
