package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
)

func createTestUsage(t *testing.T, db *gorm.DB, userID uuid.UUID, completionText string) *models.TokenUsage {
	t.Helper()

	usage := &models.TokenUsage{
		ID:             uuid.New(),
		UserID:         userID,
		OperationType:  models.OperationQuestionAnswer,
		ModelName:      "gemini-2.5-flash",
		CompletionText: completionText,
		Success:        true,
	}
	require.NoError(t, db.Create(usage).Error)
	return usage
}

func TestEvaluateKeywordCoverage(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	usage := createTestUsage(t, db, user.ID, "I have worked with Go and PostgreSQL in production.")

	evaluator := NewEvaluatorService(repositories.NewEvaluationRepository(db), nil, nil, 3.5)

	eval, err := evaluator.Evaluate(context.Background(), models.EvaluationAutoKeyword, &EvaluationInput{
		Usage:            usage,
		Question:         "What is your backend experience?",
		SourceText:       "Go PostgreSQL Kubernetes production",
		ExpectedKeywords: []string{"Go", "PostgreSQL", "Kubernetes", "Terraform"},
	})
	require.NoError(t, err)

	// 2 of 4 keywords matched: completeness 1 + 0.5*4 = 3.0, below threshold.
	require.NotNil(t, eval.CompletenessScore)
	assert.InDelta(t, 3.0, *eval.CompletenessScore, 1e-9)
	assert.InDelta(t, 3.0, eval.OverallScore, 1e-9)
	assert.True(t, eval.NeedsImprovement)
	assert.Equal(t, models.EvaluationAutoKeyword, eval.EvaluationMethod)

	// The evaluation was persisted.
	stored, err := repositories.NewEvaluationRepository(db).FindByTokenUsage(usage.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestEvaluateKeywordFullCoveragePasses(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	usage := createTestUsage(t, db, user.ID, "Go and PostgreSQL, plus Kubernetes.")

	evaluator := NewEvaluatorService(repositories.NewEvaluationRepository(db), nil, nil, 3.5)

	eval, err := evaluator.Evaluate(context.Background(), models.EvaluationAutoKeyword, &EvaluationInput{
		Usage:            usage,
		SourceText:       "Go PostgreSQL Kubernetes",
		ExpectedKeywords: []string{"go", "postgresql", "kubernetes"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, eval.OverallScore, 1e-9)
	assert.False(t, eval.NeedsImprovement)
	assert.False(t, eval.Flagged())
}

func TestEvaluateSimilarity(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	usage := createTestUsage(t, db, user.ID, "Two weeks of notice.")

	// Identical embeddings: cosine 1.0, accuracy 5.0.
	embedder := &fakeEmbedder{vector: []float32{0.6, 0.8}}
	evaluator := NewEvaluatorService(repositories.NewEvaluationRepository(db), nil, embedder, 3.5)

	eval, err := evaluator.Evaluate(context.Background(), models.EvaluationAutoSimilarity, &EvaluationInput{
		Usage:          usage,
		SourceText:     "Two weeks notice period",
		ExpectedAnswer: "My notice period is two weeks.",
	})
	require.NoError(t, err)
	require.NotNil(t, eval.AccuracyScore)
	assert.InDelta(t, 5.0, *eval.AccuracyScore, 1e-6)
	assert.False(t, eval.Flagged())
}

func TestEvaluateSimilarityRequiresExpectedAnswer(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	usage := createTestUsage(t, db, user.ID, "answer")

	evaluator := NewEvaluatorService(repositories.NewEvaluationRepository(db), nil, &fakeEmbedder{}, 3.5)

	_, err := evaluator.Evaluate(context.Background(), models.EvaluationAutoSimilarity, &EvaluationInput{
		Usage: usage,
	})
	assert.Error(t, err)
}

func TestEvaluateUnknownMethodRejected(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	usage := createTestUsage(t, db, user.ID, "answer")

	evaluator := NewEvaluatorService(repositories.NewEvaluationRepository(db), nil, nil, 3.5)

	_, err := evaluator.Evaluate(context.Background(), models.EvaluationMethod("vibes"), &EvaluationInput{Usage: usage})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity(nil, []float32{1}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestDetectHallucinationUnsupportedFacts(t *testing.T) {
	jobText := "Backend Engineer at Acme. Go and PostgreSQL required."

	// Response invents an employer, a university and a year.
	response := "I spent 2019 at Globocorp after graduating from Eastfield University with honors from the Wintermute programme."
	assert.True(t, DetectHallucination(response, jobText, nil))
}

func TestDetectHallucinationGroundedResponsePasses(t *testing.T) {
	jobText := "Backend Engineer at Acme. Go and PostgreSQL required."
	retrieval := &RetrievalResult{Chunks: []ScoredChunk{
		{Chunk: Chunk{ID: "exp_0", Text: "Senior Engineer at Initech, 2019 to 2024, Go and PostgreSQL."}},
	}}

	response := "At Initech I used Go and PostgreSQL daily since 2019, which matches what Acme needs."
	assert.False(t, DetectHallucination(response, jobText, retrieval))
}

func TestDetectHallucinationIgnoresSparseResponses(t *testing.T) {
	// Fewer than three distinct fact tokens never flags.
	assert.False(t, DetectHallucination("I am excited to apply.", "some job", nil))
	assert.False(t, DetectHallucination("", "some job", nil))
}
