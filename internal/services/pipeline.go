package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/reporter"
	"alfredoptarigan/job-autopilot/internal/repositories"
)

// PipelineService walks one application through its lifecycle:
// pending -> generating -> submitting -> applied, with failed reachable from
// every non-terminal state. Every transition is a conditional update in the
// store, so concurrent workers racing on the same application resolve to
// exactly one winner.
type PipelineService interface {
	// Process runs the full pipeline for one pending application. It is safe
	// to call concurrently for the same application; only one caller makes
	// progress.
	Process(ctx context.Context, applicationID uuid.UUID) error

	// Cancel aborts an application that has not yet started submitting.
	Cancel(applicationID uuid.UUID) error
}

type pipelineService struct {
	appRepo   repositories.ApplicationRepository
	jobRepo   repositories.JobRepository
	kbRepo    repositories.KnowledgeBaseRepository
	generator GeneratorService
	retrieval RetrievalService
	evaluator EvaluatorService
	submitter FormSubmitter
	reporter  reporter.Reporter
	prompts   *PromptBuilder

	maxChunks     int
	maxChars      int
	submitTimeout time.Duration
}

func NewPipelineService(
	appRepo repositories.ApplicationRepository,
	jobRepo repositories.JobRepository,
	kbRepo repositories.KnowledgeBaseRepository,
	generator GeneratorService,
	retrieval RetrievalService,
	evaluator EvaluatorService,
	submitter FormSubmitter,
	rep reporter.Reporter,
	maxChunks, maxChars int,
	submitTimeout time.Duration,
) PipelineService {
	return &pipelineService{
		appRepo:       appRepo,
		jobRepo:       jobRepo,
		kbRepo:        kbRepo,
		generator:     generator,
		retrieval:     retrieval,
		evaluator:     evaluator,
		submitter:     submitter,
		reporter:      rep,
		prompts:       NewPromptBuilder(),
		maxChunks:     maxChunks,
		maxChars:      maxChars,
		submitTimeout: submitTimeout,
	}
}

// Process implements PipelineService.
func (p *pipelineService) Process(ctx context.Context, applicationID uuid.UUID) error {
	// Claim the application. Losing the race is not an error: another worker
	// owns it now.
	err := p.appRepo.Transition(applicationID, models.ApplicationStatusPending, models.ApplicationStatusGenerating)
	if errors.Is(err, repositories.ErrInvalidTransition) {
		log.Printf("ℹ️  Application %s already claimed, skipping\n", applicationID)
		return nil
	}
	if err != nil {
		return err
	}

	app, err := p.appRepo.FindByID(applicationID)
	if err != nil {
		return p.failApplication(app, applicationID, models.ApplicationStatusGenerating, err, nil)
	}

	job, kb, err := p.loadInputs(app)
	if err != nil {
		return p.failApplication(app, applicationID, models.ApplicationStatusGenerating, err, nil)
	}

	retrieved := p.retrieveContext(ctx, job, kb)

	if err := p.generateContent(ctx, app, job, kb, retrieved); err != nil {
		return p.failApplication(app, applicationID, models.ApplicationStatusGenerating, err, nil)
	}

	// Reload to pick up the generated content before submitting.
	app, err = p.appRepo.FindByID(applicationID)
	if err != nil {
		return p.failApplication(app, applicationID, models.ApplicationStatusGenerating, err, nil)
	}
	if app.CoverLetter == "" {
		err := fmt.Errorf("generation finished without a cover letter")
		return p.failApplication(app, applicationID, models.ApplicationStatusGenerating, err, nil)
	}

	if err := p.appRepo.Transition(applicationID, models.ApplicationStatusGenerating, models.ApplicationStatusSubmitting); err != nil {
		// The application was cancelled or failed under us; leave it be.
		return err
	}

	return p.submit(ctx, app, job, kb)
}

// Cancel implements PipelineService. Only applications that have not started
// submitting can be cancelled: once the browser may have touched the external
// site, the outcome must come from the submission itself.
func (p *pipelineService) Cancel(applicationID uuid.UUID) error {
	for _, from := range []models.ApplicationStatus{
		models.ApplicationStatusPending,
		models.ApplicationStatusGenerating,
	} {
		err := p.appRepo.MarkFailed(applicationID, from, ErrCancelled.Error(), nil)
		if err == nil {
			log.Printf("🚫 Application %s cancelled\n", applicationID)
			return nil
		}
		if !errors.Is(err, repositories.ErrInvalidTransition) {
			return err
		}
	}
	return repositories.ErrInvalidTransition
}

func (p *pipelineService) loadInputs(app *models.Application) (*models.Job, *models.KnowledgeBase, error) {
	if app.JobID == nil {
		return nil, nil, fmt.Errorf("application has no job attached")
	}
	job, err := p.jobRepo.FindByID(*app.JobID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status != models.JobStatusScraped && job.Status != models.JobStatusApplied {
		return nil, nil, fmt.Errorf("job %s is not scraped (status %s)", job.ID, job.Status)
	}

	kb, err := p.kbRepo.FindByUserID(app.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}
	return job, kb, nil
}

// retrieveContext fetches RAG context for the job. No context is a degraded
// mode, not a failure: generation proceeds without it and the usage rows
// record rag_used=false.
func (p *pipelineService) retrieveContext(ctx context.Context, job *models.Job, kb *models.KnowledgeBase) *RetrievalResult {
	result, err := p.retrieval.Retrieve(ctx, job.JobText(), kb.ID.String(), p.maxChunks, p.maxChars)
	if err != nil {
		if errors.Is(err, ErrNoContext) {
			log.Printf("ℹ️  No retrieval context for job %s, generating without RAG\n", job.ID)
			return nil
		}
		log.Printf("⚠️  Retrieval failed for job %s, generating without RAG: %v\n", job.ID, err)
		return nil
	}
	return result
}

// generateContent produces the cover letter and the form answers, evaluates
// each, and regenerates a flagged response exactly once before giving up.
func (p *pipelineService) generateContent(ctx context.Context, app *models.Application, job *models.Job, kb *models.KnowledgeBase, retrieved *RetrievalResult) error {
	ragContext := retrieved.Context()

	coverPrompt := p.prompts.BuildCoverLetterPrompt(job, kb, ragContext)
	coverBrief := fmt.Sprintf("Write a cover letter for %s at %s", job.Title, job.Company)
	coverLetter, err := p.generateChecked(ctx, app, job, models.OperationCoverLetter,
		"pipeline/cover_letter", coverPrompt, coverBrief, retrieved)
	if err != nil {
		return fmt.Errorf("cover letter generation failed: %w", err)
	}

	questions := formQuestions(app.FormResponses)
	answers := make(map[string]string, len(questions))
	for _, question := range questions {
		prompt := p.prompts.BuildFormAnswerPrompt(question, job, ragContext)
		answer, err := p.generateChecked(ctx, app, job, models.OperationQuestionAnswer,
			"pipeline/form_answer", prompt, question, retrieved)
		if err != nil {
			return fmt.Errorf("form answer generation failed for %q: %w", question, err)
		}
		answers[question] = answer
	}

	encoded, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode form responses: %w", err)
	}

	return p.appRepo.SetGeneratedContent(app.ID, coverLetter, datatypes.JSON(encoded), kb.ResumePath)
}

// generateChecked runs one generation, auto-evaluates the result, and
// regenerates exactly once when the evaluation raises a quality flag. A
// flagged regeneration aborts the pipeline rather than submitting content
// known to be bad.
func (p *pipelineService) generateChecked(
	ctx context.Context,
	app *models.Application,
	job *models.Job,
	op models.OperationType,
	endpoint, prompt, question string,
	retrieved *RetrievalResult,
) (string, error) {
	const maxGenerations = 2

	var lastEval *models.ResponseEvaluation
	for round := 1; round <= maxGenerations; round++ {
		result, err := p.generator.Generate(ctx, &GenerationRequest{
			UserID:        app.UserID,
			JobID:         app.JobID,
			ApplicationID: &app.ID,
			OperationType: op,
			Endpoint:      endpoint,
			Prompt:        prompt,
			Temperature:   0.7,
			Retrieval:     retrieved,
		})
		if err != nil {
			return "", err
		}

		eval, evalErr := p.evaluator.Evaluate(ctx, models.EvaluationAutoLLM, &EvaluationInput{
			Usage:      result.Usage,
			Question:   question,
			SourceText: job.JobText(),
			Retrieval:  retrieved,
		})
		if evalErr != nil {
			// An unevaluated response is still usable content; quality
			// checking is advisory when the judge itself is down.
			log.Printf("⚠️  Auto evaluation failed for %s: %v\n", op, evalErr)
			return result.Text, nil
		}

		if !eval.Flagged() {
			return result.Text, nil
		}

		lastEval = eval
		log.Printf("⚠️  %s flagged (hallucination=%t, inappropriate=%t, needs_improvement=%t), round %d/%d\n",
			op, eval.IsHallucination, eval.IsInappropriate, eval.NeedsImprovement, round, maxGenerations)
	}

	return "", fmt.Errorf("%s flagged by evaluation after %d rounds (overall %.2f)",
		op, maxGenerations, lastEval.OverallScore)
}

// submit drives the browser under a hard deadline and settles the
// application to a terminal state.
func (p *pipelineService) submit(ctx context.Context, app *models.Application, job *models.Job, kb *models.KnowledgeBase) error {
	submitCtx, cancel := context.WithTimeout(ctx, p.submitTimeout)
	defer cancel()

	result := p.submitter.Submit(submitCtx, &SubmitRequest{
		Application:   app,
		Job:           job,
		FormResponses: DecodeFormResponses(app.FormResponses),
		ResumePath:    kb.ResumePath,
	})

	if !result.Success {
		reason := "submission failed"
		if result.Error != nil {
			reason = result.Error.Error()
		}
		return p.failApplication(app, app.ID, models.ApplicationStatusSubmitting,
			fmt.Errorf("%s", reason), result.ScreenshotPath)
	}

	if err := p.appRepo.MarkApplied(app.ID, result.AppliedAt); err != nil {
		return fmt.Errorf("failed to settle application %s: %w", app.ID, err)
	}
	if err := p.jobRepo.UpdateStatus(job.ID, models.JobStatusApplied); err != nil {
		log.Printf("⚠️  Failed to mark job %s applied: %v\n", job.ID, err)
	}

	log.Printf("✅ Application %s submitted for %s at %s\n", app.ID, job.Title, job.Company)
	p.reporter.ApplicationApplied(app, job)
	return nil
}

// failApplication settles the application to failed and notifies. The
// original error is always returned so callers see why the pipeline stopped.
func (p *pipelineService) failApplication(app *models.Application, id uuid.UUID, from models.ApplicationStatus, cause error, screenshotPath *string) error {
	if markErr := p.appRepo.MarkFailed(id, from, cause.Error(), screenshotPath); markErr != nil {
		log.Printf("❌ Failed to mark application %s failed: %v\n", id, markErr)
	} else {
		log.Printf("❌ Application %s failed: %v\n", id, cause)
	}

	if app != nil {
		var job *models.Job
		if app.JobID != nil {
			job, _ = p.jobRepo.FindByID(*app.JobID)
		}
		p.reporter.ApplicationFailed(app, job, cause.Error())
	}

	if errors.Is(cause, repositories.ErrBudgetExceeded) && app != nil {
		p.reporter.BudgetExceeded(app.UserID.String())
	}
	return cause
}

// formQuestions extracts the question list stored on the application at
// creation time. Keys with answers already present are regenerated too; the
// pipeline owns all generated content.
func formQuestions(raw datatypes.JSON) []string {
	responses := DecodeFormResponses(raw)
	questions := make([]string, 0, len(responses))
	for question := range responses {
		questions = append(questions, question)
	}
	// Deterministic order for stable accounting.
	sort.Strings(questions)
	return questions
}
