package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Completion is one language model response together with the provider's
// reported token counts and the observed latency.
type Completion struct {
	Text             string
	ModelName        string
	PromptTokens     int
	CompletionTokens int
	LatencyMs        float64
}

// TextGenerator is the language model capability. Only the generation
// orchestrator may call it.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, temperature float32) (*Completion, error)
}

// Embedder is the embedding capability used by the retrieval engine.
// Failures are non-fatal there: retrieval degrades to no-RAG generation.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type GeminiService interface {
	TextGenerator
	Embedder
	ModelName() string
}

type geminiService struct {
	client     *genai.Client
	modelName  string
	embedModel string
}

func NewGeminiService(apiKey, model, embedModel string) (GeminiService, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiService{
		client:     client,
		modelName:  model,
		embedModel: embedModel,
	}, nil
}

func (g *geminiService) ModelName() string {
	return g.modelName
}

// GenerateEmbedding implements Embedder.
func (g *geminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	// Truncate text if too long (max ~10000 tokens for embedding)
	if len(text) > 40000 {
		text = text[:40000]
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}

// GenerateText implements TextGenerator. Provider failures are classified as
// transient or not so the orchestrator knows what to retry.
func (g *geminiService) GenerateText(ctx context.Context, prompt string, temperature float32) (*Completion, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 4096,
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		return nil, &ProviderError{
			Transient: isTransientProviderError(err),
			Err:       err,
		}
	}

	if resp == nil {
		return nil, &ProviderError{Transient: true, Err: fmt.Errorf("nil response from provider")}
	}

	text := resp.Text()
	if text == "" {
		return nil, &ProviderError{Transient: true, Err: fmt.Errorf("no text content in response")}
	}

	completion := &Completion{
		Text:      text,
		ModelName: g.modelName,
		LatencyMs: latency,
	}
	if resp.UsageMetadata != nil {
		completion.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completion.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return completion, nil
}

func isTransientProviderError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "resource exhausted", "resource_exhausted",
		"timeout", "deadline exceeded", "503", "unavailable", "500", "internal",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
