package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"alfredoptarigan/job-autopilot/internal/models"
)

// RetrievalResult is the ordered, bounded chunk selection injected into a
// generation prompt. ChunksUsed is surfaced as rag_chunks_retrieved on the
// token usage row.
type RetrievalResult struct {
	Chunks     []ScoredChunk
	ChunksUsed int
}

// Context renders the selected chunks into prompt text.
func (r *RetrievalResult) Context() string {
	if r == nil || len(r.Chunks) == 0 {
		return ""
	}
	var parts []string
	for i, chunk := range r.Chunks {
		parts = append(parts, fmt.Sprintf("--- Context %d (%s, score %.2f) ---\n%s",
			i+1, chunk.Kind, chunk.Score, strings.TrimSpace(chunk.Text)))
	}
	return strings.Join(parts, "\n\n")
}

type RetrievalService interface {
	// IndexKnowledgeBase decomposes the knowledge base into chunks, embeds
	// them and replaces the user's entries in the vector index. Returns the
	// number of chunks indexed.
	IndexKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) (int, error)

	// Retrieve returns the chunks most relevant to the job text, at most
	// maxChunks of them and never exceeding maxChars cumulative size.
	// ErrNoContext is returned (with an empty result) when nothing usable
	// exists; callers degrade to generation without RAG context.
	Retrieve(ctx context.Context, jobText, kbID string, maxChunks, maxChars int) (*RetrievalResult, error)
}

type retrievalService struct {
	embedder Embedder
	index    VectorIndex
	chunker  KnowledgeChunker
}

func NewRetrievalService(embedder Embedder, index VectorIndex, chunker KnowledgeChunker) RetrievalService {
	return &retrievalService{
		embedder: embedder,
		index:    index,
		chunker:  chunker,
	}
}

// IndexKnowledgeBase implements RetrievalService.
func (s *retrievalService) IndexKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) (int, error) {
	chunks := s.chunker.BuildChunks(kb)
	if len(chunks) == 0 {
		return 0, nil
	}

	kbID := kb.ID.String()
	if err := s.index.DeleteKnowledgeBase(ctx, kbID); err != nil {
		log.Printf("⚠️  Failed to clear old index entries for %s: %v\n", kbID, err)
	}

	indexed := 0
	for _, chunk := range chunks {
		embedding, err := s.embedder.GenerateEmbedding(ctx, chunk.Text)
		if err != nil {
			log.Printf("⚠️  Failed to embed chunk %s: %v\n", chunk.ID, err)
			continue
		}
		if err := s.index.UpsertChunk(ctx, kbID, chunk, embedding); err != nil {
			log.Printf("⚠️  Failed to index chunk %s: %v\n", chunk.ID, err)
			continue
		}
		indexed++
	}

	if indexed == 0 {
		return 0, fmt.Errorf("failed to index any of %d chunks", len(chunks))
	}
	return indexed, nil
}

// Retrieve implements RetrievalService.
func (s *retrievalService) Retrieve(ctx context.Context, jobText, kbID string, maxChunks, maxChars int) (*RetrievalResult, error) {
	empty := &RetrievalResult{}

	jobText = strings.TrimSpace(jobText)
	if jobText == "" || kbID == "" {
		return empty, ErrNoContext
	}

	queryEmbedding, err := s.embedder.GenerateEmbedding(ctx, jobText)
	if err != nil {
		// Embedding failure degrades to no-RAG generation.
		log.Printf("⚠️  Failed to embed job text: %v\n", err)
		return empty, ErrNoContext
	}

	// Over-fetch so the size budget still has candidates after skips.
	candidates, err := s.index.SearchChunks(ctx, kbID, queryEmbedding, maxChunks*3)
	if err != nil {
		log.Printf("⚠️  Vector search failed: %v\n", err)
		return empty, ErrNoContext
	}
	if len(candidates) == 0 {
		return empty, ErrNoContext
	}

	selected := SelectChunks(candidates, maxChunks, maxChars)
	if len(selected) == 0 {
		return empty, ErrNoContext
	}

	return &RetrievalResult{
		Chunks:     selected,
		ChunksUsed: len(selected),
	}, nil
}

// SelectChunks orders candidates by similarity descending, breaking ties by
// most recent update then chunk id, and greedily picks chunks until either
// maxChunks are chosen or the size budget is reached. A chunk that would
// overflow the budget is skipped, not truncated, so structured content is
// never cut mid-way. The ordering is fully deterministic: identical inputs
// always produce the identical sequence.
func SelectChunks(candidates []ScoredChunk, maxChunks, maxChars int) []ScoredChunk {
	ordered := make([]ScoredChunk, len(candidates))
	copy(ordered, candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		if !ordered[i].UpdatedAt.Equal(ordered[j].UpdatedAt) {
			return ordered[i].UpdatedAt.After(ordered[j].UpdatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	var selected []ScoredChunk
	used := 0
	for _, chunk := range ordered {
		if len(selected) >= maxChunks {
			break
		}
		if strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		size := len(chunk.Text)
		if maxChars > 0 && used+size > maxChars {
			continue
		}
		selected = append(selected, chunk)
		used += size
	}
	return selected
}
