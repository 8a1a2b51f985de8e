package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(id string, score float32, text string, updatedAt time.Time) ScoredChunk {
	return ScoredChunk{
		Chunk: Chunk{ID: id, Kind: ChunkSkill, Text: text, UpdatedAt: updatedAt},
		Score: score,
	}
}

func TestSelectChunksOrdersByScore(t *testing.T) {
	now := time.Now()
	candidates := []ScoredChunk{
		scored("a", 0.50, "aaa", now),
		scored("b", 0.90, "bbb", now),
		scored("c", 0.70, "ccc", now),
	}

	selected := SelectChunks(candidates, 3, 0)
	require.Len(t, selected, 3)
	assert.Equal(t, "b", selected[0].ID)
	assert.Equal(t, "c", selected[1].ID)
	assert.Equal(t, "a", selected[2].ID)
}

func TestSelectChunksTieBreaks(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Equal score: newer entry wins.
	selected := SelectChunks([]ScoredChunk{
		scored("old", 0.8, "x", older),
		scored("new", 0.8, "y", newer),
	}, 2, 0)
	require.Len(t, selected, 2)
	assert.Equal(t, "new", selected[0].ID)

	// Equal score and timestamp: lower id wins.
	selected = SelectChunks([]ScoredChunk{
		scored("zzz", 0.8, "x", older),
		scored("aaa", 0.8, "y", older),
	}, 2, 0)
	require.Len(t, selected, 2)
	assert.Equal(t, "aaa", selected[0].ID)
}

func TestSelectChunksDeterministic(t *testing.T) {
	now := time.Now()
	candidates := []ScoredChunk{
		scored("c", 0.8, "third", now),
		scored("a", 0.8, "first", now),
		scored("b", 0.8, "second", now),
	}

	first := SelectChunks(candidates, 3, 0)
	for i := 0; i < 10; i++ {
		again := SelectChunks(candidates, 3, 0)
		assert.Equal(t, first, again)
	}
}

func TestSelectChunksRespectsMaxChunks(t *testing.T) {
	now := time.Now()
	candidates := []ScoredChunk{
		scored("a", 0.9, "x", now),
		scored("b", 0.8, "y", now),
		scored("c", 0.7, "z", now),
	}

	selected := SelectChunks(candidates, 2, 0)
	assert.Len(t, selected, 2)
}

func TestSelectChunksSkipsOverflowingChunk(t *testing.T) {
	now := time.Now()
	big := strings.Repeat("x", 90)
	small := strings.Repeat("y", 20)

	candidates := []ScoredChunk{
		scored("big1", 0.9, big, now),
		scored("big2", 0.8, big, now),
		scored("small", 0.7, small, now),
	}

	// Budget fits the first big chunk, not the second; the smaller,
	// lower-scored chunk still gets in.
	selected := SelectChunks(candidates, 3, 120)
	require.Len(t, selected, 2)
	assert.Equal(t, "big1", selected[0].ID)
	assert.Equal(t, "small", selected[1].ID)
}

func TestSelectChunksSkipsEmptyText(t *testing.T) {
	now := time.Now()
	selected := SelectChunks([]ScoredChunk{
		scored("blank", 0.9, "   ", now),
		scored("real", 0.5, "content", now),
	}, 2, 0)
	require.Len(t, selected, 1)
	assert.Equal(t, "real", selected[0].ID)
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeIndex struct {
	results   []ScoredChunk
	searchErr error
	upserts   []Chunk
	deleted   []string
}

func (f *fakeIndex) InitCollection() error { return nil }

func (f *fakeIndex) UpsertChunk(ctx context.Context, kbID string, chunk Chunk, embedding []float32) error {
	f.upserts = append(f.upserts, chunk)
	return nil
}

func (f *fakeIndex) SearchChunks(ctx context.Context, kbID string, queryEmbedding []float32, limit int) ([]ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeIndex) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	f.deleted = append(f.deleted, kbID)
	return nil
}

func TestRetrieveEmptyJobTextReturnsNoContext(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1}}, &fakeIndex{}, NewKnowledgeChunker())

	result, err := svc.Retrieve(context.Background(), "   ", "kb-1", 5, 1000)
	assert.ErrorIs(t, err, ErrNoContext)
	assert.Empty(t, result.Chunks)
}

func TestRetrieveEmbeddingFailureDegradesToNoContext(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	svc := NewRetrievalService(embedder, &fakeIndex{}, NewKnowledgeChunker())

	_, err := svc.Retrieve(context.Background(), "Backend Engineer", "kb-1", 5, 1000)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestRetrieveSearchFailureDegradesToNoContext(t *testing.T) {
	index := &fakeIndex{searchErr: errors.New("qdrant unavailable")}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1}}, index, NewKnowledgeChunker())

	_, err := svc.Retrieve(context.Background(), "Backend Engineer", "kb-1", 5, 1000)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestRetrieveNoCandidatesReturnsNoContext(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1}}, &fakeIndex{}, NewKnowledgeChunker())

	_, err := svc.Retrieve(context.Background(), "Backend Engineer", "kb-1", 5, 1000)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestRetrieveReturnsBoundedSelection(t *testing.T) {
	now := time.Now()
	index := &fakeIndex{results: []ScoredChunk{
		scored("a", 0.9, "Go, Postgres, Kubernetes", now),
		scored("b", 0.8, "Led migration to microservices", now),
		scored("c", 0.4, "Hiking and chess", now),
	}}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1}}, index, NewKnowledgeChunker())

	result, err := svc.Retrieve(context.Background(), "Backend Engineer role", "kb-1", 2, 1000)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunksUsed)
	assert.Equal(t, "a", result.Chunks[0].ID)

	rendered := result.Context()
	assert.Contains(t, rendered, "Go, Postgres, Kubernetes")
	assert.NotContains(t, rendered, "Hiking")
}
