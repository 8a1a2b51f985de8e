package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/reporter"
	"alfredoptarigan/job-autopilot/internal/repositories"
)

type fakeEvaluator struct {
	flagRounds int
	calls      int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, method models.EvaluationMethod, input *EvaluationInput) (*models.ResponseEvaluation, error) {
	f.calls++
	eval := &models.ResponseEvaluation{
		ID:               uuid.New(),
		TokenUsageID:     input.Usage.ID,
		UserID:           input.Usage.UserID,
		EvaluationMethod: method,
		OverallScore:     4.5,
	}
	if f.calls <= f.flagRounds {
		eval.IsHallucination = true
		eval.OverallScore = 2.0
	}
	return eval, nil
}

func (f *fakeEvaluator) RecordManual(eval *models.ResponseEvaluation) error { return nil }

type fakeSubmitter struct {
	result   *SubmitResult
	requests []*SubmitRequest
}

func (f *fakeSubmitter) Submit(ctx context.Context, req *SubmitRequest) *SubmitResult {
	f.requests = append(f.requests, req)
	return f.result
}

type pipelineFixture struct {
	db        *gorm.DB
	appRepo   repositories.ApplicationRepository
	jobRepo   repositories.JobRepository
	llm       *scriptedLLM
	evaluator *fakeEvaluator
	submitter *fakeSubmitter
	pipeline  PipelineService
	user      *models.User
	job       *models.Job
	app       *models.Application
}

func newPipelineFixture(t *testing.T, llm *scriptedLLM, evaluator *fakeEvaluator, submitter *fakeSubmitter, index *fakeIndex) *pipelineFixture {
	t.Helper()

	db := setupTestDB(t)
	user := createTestUser(t, db)

	job := &models.Job{
		ID:           uuid.New(),
		UserID:       user.ID,
		URL:          "https://jobs.example.com/backend",
		Title:        "Backend Engineer",
		Company:      "Acme",
		Description:  "Build Go services.",
		Requirements: "Go, PostgreSQL.",
		Status:       models.JobStatusScraped,
	}
	require.NoError(t, db.Create(job).Error)

	kb := &models.KnowledgeBase{
		ID:        uuid.New(),
		UserID:    user.ID,
		FullName:  "Jamie Candidate",
		Summary:   "Backend engineer, eight years of Go.",
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(kb).Error)

	app := &models.Application{
		ID:            uuid.New(),
		UserID:        user.ID,
		JobID:         &job.ID,
		Status:        models.ApplicationStatusPending,
		FormResponses: datatypes.JSON(`{"Why do you want this role?": ""}`),
	}
	require.NoError(t, db.Create(app).Error)

	appRepo := repositories.NewApplicationRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	kbRepo := repositories.NewKnowledgeBaseRepository(db)

	generator := newTestGenerator(db, llm, 100.0, 1)
	retrieval := NewRetrievalService(&fakeEmbedder{vector: []float32{1}}, index, NewKnowledgeChunker())

	pipeline := NewPipelineService(
		appRepo,
		jobRepo,
		kbRepo,
		generator,
		retrieval,
		evaluator,
		submitter,
		reporter.NewTelegramReporter("", 0),
		5,
		4000,
		time.Minute,
	)

	return &pipelineFixture{
		db:        db,
		appRepo:   appRepo,
		jobRepo:   jobRepo,
		llm:       llm,
		evaluator: evaluator,
		submitter: submitter,
		pipeline:  pipeline,
		user:      user,
		job:       job,
		app:       app,
	}
}

func successIndex() *fakeIndex {
	return &fakeIndex{results: []ScoredChunk{
		scored("exp_0", 0.9, "Senior Engineer at Initech, Go and PostgreSQL.", time.Now()),
	}}
}

func TestPipelineHappyPath(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{okTurn("Dear Acme team, I build Go services.", 200, 150)}}
	submitter := &fakeSubmitter{result: &SubmitResult{Success: true, AppliedAt: time.Now()}}
	f := newPipelineFixture(t, llm, &fakeEvaluator{}, submitter, successIndex())

	require.NoError(t, f.pipeline.Process(context.Background(), f.app.ID))

	stored, err := f.appRepo.FindByID(f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApplied, stored.Status)
	assert.NotEmpty(t, stored.CoverLetter)
	require.NotNil(t, stored.AppliedAt)

	// Cover letter plus one form answer.
	assert.Equal(t, 2, llm.calls)
	assert.Equal(t, 2, f.evaluator.calls)

	// The submitter received the generated answers.
	require.Len(t, f.submitter.requests, 1)
	assert.Contains(t, f.submitter.requests[0].FormResponses, "Why do you want this role?")
	assert.NotEmpty(t, f.submitter.requests[0].FormResponses["Why do you want this role?"])

	// The job follows the application into applied.
	job, err := f.jobRepo.FindByID(f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusApplied, job.Status)

	// Generation left accounted usage rows with RAG context recorded.
	var usages []models.TokenUsage
	require.NoError(t, f.db.Where("application_id = ?", f.app.ID).Find(&usages).Error)
	require.Len(t, usages, 2)
	for _, u := range usages {
		assert.True(t, u.Success)
		assert.True(t, u.RagUsed)
		assert.Equal(t, 1, u.RagChunksRetrieved)
	}
}

func TestPipelineNoContextDegradesToNoRAG(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{okTurn("Letter without background.", 100, 80)}}
	submitter := &fakeSubmitter{result: &SubmitResult{Success: true, AppliedAt: time.Now()}}
	f := newPipelineFixture(t, llm, &fakeEvaluator{}, submitter, &fakeIndex{})

	require.NoError(t, f.pipeline.Process(context.Background(), f.app.ID))

	stored, err := f.appRepo.FindByID(f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApplied, stored.Status)

	var usages []models.TokenUsage
	require.NoError(t, f.db.Where("application_id = ?", f.app.ID).Find(&usages).Error)
	require.NotEmpty(t, usages)
	for _, u := range usages {
		assert.False(t, u.RagUsed)
		assert.Zero(t, u.RagChunksRetrieved)
	}
}

func TestPipelineSecondProcessIsNoOp(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{okTurn("Letter.", 10, 10)}}
	submitter := &fakeSubmitter{result: &SubmitResult{Success: true, AppliedAt: time.Now()}}
	f := newPipelineFixture(t, llm, &fakeEvaluator{}, submitter, successIndex())

	require.NoError(t, f.pipeline.Process(context.Background(), f.app.ID))
	callsAfterFirst := llm.calls

	// Losing the claim is not an error and triggers no work.
	require.NoError(t, f.pipeline.Process(context.Background(), f.app.ID))
	assert.Equal(t, callsAfterFirst, llm.calls)
	assert.Len(t, f.submitter.requests, 1)
}

func TestPipelineSubmitFailureSettlesToFailed(t *testing.T) {
	shot := "/logs/screenshots/fail.png"
	llm := &scriptedLLM{turns: []llmTurn{okTurn("Letter.", 10, 10)}}
	submitter := &fakeSubmitter{result: &SubmitResult{
		Success:        false,
		ScreenshotPath: &shot,
		Error:          ErrSubmitTimeout,
	}}
	f := newPipelineFixture(t, llm, &fakeEvaluator{}, submitter, successIndex())

	err := f.pipeline.Process(context.Background(), f.app.ID)
	require.Error(t, err)

	stored, findErr := f.appRepo.FindByID(f.app.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.ApplicationStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "timed out")
	require.NotNil(t, stored.ScreenshotPath)
	assert.Equal(t, shot, *stored.ScreenshotPath)
}

func TestPipelineFlaggedContentRegeneratesOnceThenFails(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{okTurn("Invented facts.", 10, 10)}}
	// Every evaluation flags: the first generation and its single retry.
	evaluator := &fakeEvaluator{flagRounds: 100}
	submitter := &fakeSubmitter{result: &SubmitResult{Success: true, AppliedAt: time.Now()}}
	f := newPipelineFixture(t, llm, evaluator, submitter, successIndex())

	err := f.pipeline.Process(context.Background(), f.app.ID)
	require.Error(t, err)

	// Exactly one regeneration: two generations total, then abort.
	assert.Equal(t, 2, llm.calls)
	assert.Len(t, f.submitter.requests, 0)

	stored, findErr := f.appRepo.FindByID(f.app.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.ApplicationStatusFailed, stored.Status)
}

func TestPipelineFlaggedOnceRecoversOnRetry(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{okTurn("Better letter.", 10, 10)}}
	evaluator := &fakeEvaluator{flagRounds: 1}
	submitter := &fakeSubmitter{result: &SubmitResult{Success: true, AppliedAt: time.Now()}}
	f := newPipelineFixture(t, llm, evaluator, submitter, successIndex())

	require.NoError(t, f.pipeline.Process(context.Background(), f.app.ID))

	// Cover letter took two rounds, the form answer one.
	assert.Equal(t, 3, llm.calls)

	stored, err := f.appRepo.FindByID(f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApplied, stored.Status)
}

func TestPipelineGenerationFailureSettlesToFailed(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{fatalTurn()}}
	submitter := &fakeSubmitter{result: &SubmitResult{Success: true, AppliedAt: time.Now()}}
	f := newPipelineFixture(t, llm, &fakeEvaluator{}, submitter, successIndex())

	err := f.pipeline.Process(context.Background(), f.app.ID)
	require.Error(t, err)

	stored, findErr := f.appRepo.FindByID(f.app.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.ApplicationStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Len(t, f.submitter.requests, 0)
}

func TestPipelineCancel(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{okTurn("Letter.", 10, 10)}}
	submitter := &fakeSubmitter{result: &SubmitResult{Success: true, AppliedAt: time.Now()}}
	f := newPipelineFixture(t, llm, &fakeEvaluator{}, submitter, successIndex())

	require.NoError(t, f.pipeline.Cancel(f.app.ID))

	stored, err := f.appRepo.FindByID(f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, ErrCancelled.Error(), *stored.ErrorMessage)

	// A settled application cannot be cancelled again.
	err = f.pipeline.Cancel(f.app.ID)
	assert.ErrorIs(t, err, repositories.ErrInvalidTransition)
}

func TestPipelineCancelAfterSubmittingRejected(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{okTurn("Letter.", 10, 10)}}
	submitter := &fakeSubmitter{result: &SubmitResult{Success: true, AppliedAt: time.Now()}}
	f := newPipelineFixture(t, llm, &fakeEvaluator{}, submitter, successIndex())

	require.NoError(t, f.appRepo.Transition(f.app.ID, models.ApplicationStatusPending, models.ApplicationStatusGenerating))
	require.NoError(t, f.appRepo.Transition(f.app.ID, models.ApplicationStatusGenerating, models.ApplicationStatusSubmitting))

	err := f.pipeline.Cancel(f.app.ID)
	assert.ErrorIs(t, err, repositories.ErrInvalidTransition)
}
