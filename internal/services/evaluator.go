package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
)

// EvaluationInput carries everything an automatic scorer needs to judge one
// generated response.
type EvaluationInput struct {
	Usage *models.TokenUsage
	// Question is the task the response answered (cover letter brief, form
	// question, ...).
	Question string
	// SourceText is the job text the response may legitimately reference.
	SourceText string
	// Retrieval is the RAG selection the response was grounded on, nil when
	// generation ran without context.
	Retrieval *RetrievalResult
	// ExpectedKeywords drive the auto_keyword method.
	ExpectedKeywords []string
	// ExpectedAnswer drives the auto_similarity method.
	ExpectedAnswer string
}

// EvaluatorService scores generated responses and raises the quality flags
// the pipeline feeds back into its retry decisions.
type EvaluatorService interface {
	// Evaluate dispatches on the method and records the resulting
	// assessment. All methods produce the same result shape.
	Evaluate(ctx context.Context, method models.EvaluationMethod, input *EvaluationInput) (*models.ResponseEvaluation, error)

	// RecordManual persists a reviewer-supplied assessment.
	RecordManual(eval *models.ResponseEvaluation) error
}

type evaluatorService struct {
	evalRepo       repositories.EvaluationRepository
	generator      GeneratorService
	embedder       Embedder
	promptBuilder  *PromptBuilder
	scoreThreshold float64
}

func NewEvaluatorService(
	evalRepo repositories.EvaluationRepository,
	generator GeneratorService,
	embedder Embedder,
	scoreThreshold float64,
) EvaluatorService {
	return &evaluatorService{
		evalRepo:       evalRepo,
		generator:      generator,
		embedder:       embedder,
		promptBuilder:  NewPromptBuilder(),
		scoreThreshold: scoreThreshold,
	}
}

// Evaluate implements EvaluatorService.
func (e *evaluatorService) Evaluate(ctx context.Context, method models.EvaluationMethod, input *EvaluationInput) (*models.ResponseEvaluation, error) {
	if input == nil || input.Usage == nil {
		return nil, fmt.Errorf("evaluation input requires a token usage row")
	}

	var (
		eval *models.ResponseEvaluation
		err  error
	)
	switch method {
	case models.EvaluationAutoKeyword:
		eval, err = e.evaluateKeyword(input)
	case models.EvaluationAutoLLM:
		eval, err = e.evaluateWithLLM(ctx, input)
	case models.EvaluationAutoSimilarity:
		eval, err = e.evaluateSimilarity(ctx, input)
	default:
		return nil, fmt.Errorf("unsupported automatic evaluation method: %s", method)
	}
	if err != nil {
		return nil, err
	}

	// Local grounding check runs for every method: facts that appear in
	// neither the job text nor the retrieved chunks mark the response as a
	// hallucination.
	if DetectHallucination(input.Usage.CompletionText, input.SourceText, input.Retrieval) {
		eval.IsHallucination = true
	}
	if eval.OverallScore < e.scoreThreshold {
		eval.NeedsImprovement = true
	}

	if err := e.evalRepo.Create(eval); err != nil {
		return nil, err
	}
	return eval, nil
}

// RecordManual implements EvaluatorService.
func (e *evaluatorService) RecordManual(eval *models.ResponseEvaluation) error {
	eval.EvaluationMethod = models.EvaluationManual
	return e.evalRepo.Create(eval)
}

func (e *evaluatorService) newEvaluation(input *EvaluationInput, method models.EvaluationMethod) *models.ResponseEvaluation {
	return &models.ResponseEvaluation{
		ID:               uuid.New(),
		TokenUsageID:     input.Usage.ID,
		UserID:           input.Usage.UserID,
		EvaluationMethod: method,
		ExpectedAnswer:   input.ExpectedAnswer,
	}
}

// evaluateKeyword scores the response by expected keyword coverage.
func (e *evaluatorService) evaluateKeyword(input *EvaluationInput) (*models.ResponseEvaluation, error) {
	responseLower := strings.ToLower(input.Usage.CompletionText)

	matched := 0
	for _, keyword := range input.ExpectedKeywords {
		if strings.Contains(responseLower, strings.ToLower(keyword)) {
			matched++
		}
	}

	coverage := 0.0
	if len(input.ExpectedKeywords) > 0 {
		coverage = float64(matched) / float64(len(input.ExpectedKeywords))
	}

	completeness := 1 + coverage*4
	eval := e.newEvaluation(input, models.EvaluationAutoKeyword)
	eval.CompletenessScore = &completeness
	eval.OverallScore = meanScore(eval)
	eval.EvaluatorNotes = fmt.Sprintf("Matched %d/%d keywords", matched, len(input.ExpectedKeywords))
	return eval, nil
}

// llmJudgement mirrors the JSON shape requested from the judge model.
type llmJudgement struct {
	RelevanceScore       *float64 `json:"relevance_score"`
	AccuracyScore        *float64 `json:"accuracy_score"`
	CompletenessScore    *float64 `json:"completeness_score"`
	ConcisenessScore     *float64 `json:"conciseness_score"`
	ProfessionalismScore *float64 `json:"professionalism_score"`
	OverallScore         float64  `json:"overall_score"`
	IsHallucination      bool     `json:"is_hallucination"`
	IsInappropriate      bool     `json:"is_inappropriate"`
	Notes                string   `json:"notes"`
}

// evaluateWithLLM asks a judge model to score the response. The judge call
// goes through the orchestrator like any other generation, so it is itself
// accounted and budget-checked.
func (e *evaluatorService) evaluateWithLLM(ctx context.Context, input *EvaluationInput) (*models.ResponseEvaluation, error) {
	contextText := ""
	if input.Retrieval != nil {
		contextText = input.Retrieval.Context()
	}
	prompt := e.promptBuilder.BuildEvaluationPrompt(input.Question, input.Usage.CompletionText, contextText)

	result, err := e.generator.Generate(ctx, &GenerationRequest{
		UserID:        input.Usage.UserID,
		JobID:         input.Usage.JobID,
		ApplicationID: input.Usage.ApplicationID,
		OperationType: models.OperationEvaluation,
		Endpoint:      "evaluator/auto_llm",
		Prompt:        prompt,
		Temperature:   0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("judge call failed: %w", err)
	}

	var judgement llmJudgement
	if err := json.Unmarshal([]byte(ExtractJSON(result.Text)), &judgement); err != nil {
		return nil, fmt.Errorf("failed to parse judge response: %w", err)
	}

	eval := e.newEvaluation(input, models.EvaluationAutoLLM)
	eval.RelevanceScore = judgement.RelevanceScore
	eval.AccuracyScore = judgement.AccuracyScore
	eval.CompletenessScore = judgement.CompletenessScore
	eval.ConcisenessScore = judgement.ConcisenessScore
	eval.ProfessionalismScore = judgement.ProfessionalismScore
	eval.OverallScore = judgement.OverallScore
	if eval.OverallScore == 0 {
		eval.OverallScore = meanScore(eval)
	}
	eval.IsHallucination = judgement.IsHallucination
	eval.IsInappropriate = judgement.IsInappropriate
	eval.EvaluatorNotes = judgement.Notes
	return eval, nil
}

// evaluateSimilarity scores the response by embedding similarity against the
// expected answer.
func (e *evaluatorService) evaluateSimilarity(ctx context.Context, input *EvaluationInput) (*models.ResponseEvaluation, error) {
	if input.ExpectedAnswer == "" {
		return nil, fmt.Errorf("similarity evaluation requires an expected answer")
	}

	responseVec, err := e.embedder.GenerateEmbedding(ctx, input.Usage.CompletionText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed response: %w", err)
	}
	expectedVec, err := e.embedder.GenerateEmbedding(ctx, input.ExpectedAnswer)
	if err != nil {
		return nil, fmt.Errorf("failed to embed expected answer: %w", err)
	}

	similarity := CosineSimilarity(responseVec, expectedVec)
	accuracy := 1 + math.Max(0, similarity)*4

	eval := e.newEvaluation(input, models.EvaluationAutoSimilarity)
	eval.AccuracyScore = &accuracy
	eval.OverallScore = meanScore(eval)
	eval.EvaluatorNotes = fmt.Sprintf("Cosine similarity %.3f against expected answer", similarity)
	return eval, nil
}

// meanScore is the arithmetic mean of the dimension scores that were
// actually assessed.
func meanScore(eval *models.ResponseEvaluation) float64 {
	var sum float64
	var n int
	for _, score := range []*float64{
		eval.RelevanceScore,
		eval.AccuracyScore,
		eval.CompletenessScore,
		eval.ConcisenessScore,
		eval.ProfessionalismScore,
	} {
		if score != nil {
			sum += *score
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// CosineSimilarity computes the cosine of the angle between two embedding
// vectors, 0 when either is degenerate.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var factTokenPattern = regexp.MustCompile(`\b(?:[A-Z][A-Za-z0-9+./#-]{2,}|\d{4})\b`)

// commonFactWords are capitalized tokens that carry no factual weight and
// would otherwise dominate the grounding check (sentence starts, generic
// application vocabulary).
var commonFactWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "dear": true,
	"sincerely": true, "regards": true, "thank": true, "you": true,
	"your": true, "this": true, "that": true, "have": true, "has": true,
	"was": true, "were": true, "will": true, "would": true, "are": true,
	"team": true, "company": true, "position": true, "role": true,
	"experience": true, "skills": true, "best": true, "hiring": true,
	"manager": true, "while": true, "during": true, "additionally": true,
	"furthermore": true, "throughout": true, "when": true, "where": true,
	"what": true, "they": true, "their": true, "these": true, "those": true,
	"also": true, "about": true, "over": true, "after": true, "before": true,
}

// DetectHallucination reports whether the response references specific facts
// (named entities, years) that appear in neither the job text nor the
// retrieved knowledge chunks. Deterministic and deliberately conservative: a
// response is only flagged when a majority of its fact tokens are unsupported
// and there are at least three of them.
func DetectHallucination(response, sourceText string, retrieval *RetrievalResult) bool {
	if strings.TrimSpace(response) == "" {
		return false
	}

	var sources strings.Builder
	sources.WriteString(strings.ToLower(sourceText))
	if retrieval != nil {
		for _, chunk := range retrieval.Chunks {
			sources.WriteString("\n")
			sources.WriteString(strings.ToLower(chunk.Text))
		}
	}
	sourceLower := sources.String()

	tokens := factTokenPattern.FindAllString(response, -1)
	seen := make(map[string]bool)
	total := 0
	unsupported := 0
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if seen[lower] || commonFactWords[lower] {
			continue
		}
		seen[lower] = true
		total++
		if !strings.Contains(sourceLower, lower) {
			unsupported++
		}
	}

	if total < 3 {
		return false
	}
	return float64(unsupported)/float64(total) > 0.5
}
