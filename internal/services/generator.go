package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
)

// GenerationRequest describes one accounted language model call.
type GenerationRequest struct {
	UserID        uuid.UUID
	JobID         *uuid.UUID
	ApplicationID *uuid.UUID
	OperationType models.OperationType
	Endpoint      string
	Prompt        string
	Temperature   float32
	// Retrieval carries the RAG selection injected into the prompt, nil when
	// generation runs without context.
	Retrieval *RetrievalResult
}

// GenerationResult is the successful outcome of an accounted call.
type GenerationResult struct {
	Text  string
	Usage *models.TokenUsage
}

// GeneratorService is the single choke point through which every language
// model call passes. No call escapes accounting: each attempt, successful or
// not, writes exactly one token usage row.
type GeneratorService interface {
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
}

type generatorService struct {
	llm          TextGenerator
	modelName    string
	usageRepo    repositories.TokenUsageRepository
	budgetRepo   repositories.BudgetRepository
	ceilingUSD   float64
	budgetPeriod time.Duration
	maxAttempts  int
	initialDelay time.Duration
}

func NewGeneratorService(
	llm TextGenerator,
	modelName string,
	usageRepo repositories.TokenUsageRepository,
	budgetRepo repositories.BudgetRepository,
	ceilingUSD float64,
	budgetPeriod time.Duration,
	maxAttempts int,
	initialDelay time.Duration,
) GeneratorService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &generatorService{
		llm:          llm,
		modelName:    modelName,
		usageRepo:    usageRepo,
		budgetRepo:   budgetRepo,
		ceilingUSD:   ceilingUSD,
		budgetPeriod: budgetPeriod,
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
	}
}

// periodStart aligns now to the configured budget window.
func (g *generatorService) periodStart(now time.Time) time.Time {
	return now.UTC().Truncate(g.budgetPeriod)
}

// Generate implements GeneratorService.
//
// The per-user budget check and the cost increment are a single conditional
// update in the store, performed before each attempt with the worst possible
// cost of the call; the unused remainder is released once actual usage is
// known. Transient provider errors are retried with exponential backoff up
// to the configured bound, and every attempt writes its own usage row so the
// cost ledger reflects what actually happened.
func (g *generatorService) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	promptTokens := EstimateTokens(req.Prompt)
	worstCost := WorstCaseCost(g.modelName, promptTokens)

	delay := g.initialDelay
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		period := g.periodStart(time.Now())
		if worstCost > 0 {
			if err := g.budgetRepo.Reserve(req.UserID, period, worstCost, g.ceilingUSD); err != nil {
				return nil, fmt.Errorf("budget check failed for %s: %w", req.OperationType, err)
			}
		}

		completion, callErr := g.llm.GenerateText(ctx, req.Prompt, req.Temperature)

		usage := g.buildUsage(req, promptTokens, completion, callErr)
		if err := g.usageRepo.Create(usage); err != nil {
			// The ledger must never silently lose a row.
			log.Printf("❌ Failed to record token usage for %s: %v\n", req.OperationType, err)
		}

		if worstCost > 0 {
			if err := g.budgetRepo.Release(req.UserID, period, worstCost-usage.EstimatedCost); err != nil {
				log.Printf("⚠️  Failed to release reserved budget: %v\n", err)
			}
		}

		if callErr == nil {
			return &GenerationResult{Text: completion.Text, Usage: usage}, nil
		}

		lastErr = callErr
		if !IsTransient(callErr) {
			return nil, fmt.Errorf("generation failed for %s: %w", req.OperationType, callErr)
		}

		if attempt < g.maxAttempts {
			log.Printf("⚠️  Attempt %d/%d failed for %s: %v. Retrying in %s...\n",
				attempt, g.maxAttempts, req.OperationType, callErr, delay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("generation cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return nil, fmt.Errorf("generation failed for %s after %d attempts: %w",
		req.OperationType, g.maxAttempts, lastErr)
}

// buildUsage assembles the immutable audit row for one attempt. Failed calls
// bill zero tokens and zero cost; estimated_cost only ever reflects tokens
// the provider actually reported.
func (g *generatorService) buildUsage(req *GenerationRequest, estimatedPromptTokens int, completion *Completion, callErr error) *models.TokenUsage {
	usage := &models.TokenUsage{
		ID:            uuid.New(),
		UserID:        req.UserID,
		JobID:         req.JobID,
		ApplicationID: req.ApplicationID,
		OperationType: req.OperationType,
		Endpoint:      req.Endpoint,
		ModelName:     g.modelName,
		PromptText:    req.Prompt,
		ContextLength: len(req.Prompt),
		Success:       callErr == nil,
		CreatedAt:     time.Now(),
	}

	if req.Retrieval != nil && req.Retrieval.ChunksUsed > 0 {
		usage.RagUsed = true
		usage.RagChunksRetrieved = req.Retrieval.ChunksUsed
	}

	if callErr != nil {
		msg := callErr.Error()
		usage.ErrorMessage = &msg
		return usage
	}

	usage.CompletionText = completion.Text
	usage.ResponseTimeMs = completion.LatencyMs
	usage.PromptTokens = completion.PromptTokens
	usage.CompletionTokens = completion.CompletionTokens
	if usage.PromptTokens == 0 {
		usage.PromptTokens = estimatedPromptTokens
	}
	if usage.CompletionTokens == 0 {
		usage.CompletionTokens = EstimateTokens(completion.Text)
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	usage.EstimatedCost = EstimateCost(g.modelName, usage.PromptTokens, usage.CompletionTokens)
	return usage
}
