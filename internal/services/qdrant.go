package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// VectorIndex stores knowledge chunk embeddings per knowledge base and
// serves cosine similarity search for the retrieval engine.
type VectorIndex interface {
	InitCollection() error
	UpsertChunk(ctx context.Context, kbID string, chunk Chunk, embedding []float32) error
	SearchChunks(ctx context.Context, kbID string, queryEmbedding []float32, limit int) ([]ScoredChunk, error)
	DeleteKnowledgeBase(ctx context.Context, kbID string) error
}

// ScoredChunk is a knowledge chunk with its similarity score against the
// query embedding.
type ScoredChunk struct {
	Chunk
	Score float32
}

type qdrantIndex struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
}

func NewQdrantIndex(urlStr, apiKey, collectionName string) (VectorIndex, error) {
	// Parse URL to extract host, port, and TLS usage
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// For gRPC client, use port 6334 by default (gRPC port)
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantIndex{
		client:         client,
		collectionName: collectionName,
		vectorSize:     768, // text-embedding-004 size
	}, nil
}

// InitCollection implements VectorIndex.
func (q *qdrantIndex) InitCollection() error {
	ctx := context.Background()

	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		log.Println("✅ Collection already exists")
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("✅ Qdrant collection '%s' created successfully\n", q.collectionName)
	return nil
}

// UpsertChunk implements VectorIndex.
func (q *qdrantIndex) UpsertChunk(ctx context.Context, kbID string, chunk Chunk, embedding []float32) error {
	pointID := uuid.New()

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(pointID.ID())),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"kb_id":      kbID,
			"chunk_id":   chunk.ID,
			"kind":       string(chunk.Kind),
			"text":       chunk.Text,
			"updated_at": chunk.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}),
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	return nil
}

// SearchChunks implements VectorIndex.
func (q *qdrantIndex) SearchChunks(ctx context.Context, kbID string, queryEmbedding []float32, limit int) ([]ScoredChunk, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("kb_id", kbID),
		},
	}

	searchResult, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	var results []ScoredChunk
	for _, point := range searchResult {
		payload := point.Payload

		result := ScoredChunk{Score: point.Score}
		result.ID = payloadString(payload, "chunk_id")
		result.Kind = ChunkKind(payloadString(payload, "kind"))
		result.Text = payloadString(payload, "text")
		if raw := payloadString(payload, "updated_at"); raw != "" {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				result.UpdatedAt = t
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// DeleteKnowledgeBase implements VectorIndex.
func (q *qdrantIndex) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("kb_id", kbID),
		},
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: filter,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete knowledge base chunks: %w", err)
	}

	return nil
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	value, ok := payload[key]
	if !ok {
		return ""
	}
	if str, ok := value.GetKind().(*qdrant.Value_StringValue); ok {
		return str.StringValue
	}
	return ""
}
