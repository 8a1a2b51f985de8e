package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-autopilot/internal/models"
)

func TestApplicationCreateRejectsDuplicateActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	user := createTestUser(t, db)
	job := createTestJob(t, db, user.ID, models.JobStatusScraped)

	first := &models.Application{
		ID:     uuid.New(),
		UserID: user.ID,
		JobID:  &job.ID,
		Status: models.ApplicationStatusPending,
	}
	require.NoError(t, repo.Create(first))

	second := &models.Application{
		ID:     uuid.New(),
		UserID: user.ID,
		JobID:  &job.ID,
		Status: models.ApplicationStatusPending,
	}
	err := repo.Create(second)
	assert.ErrorIs(t, err, ErrDuplicateActive)
}

func TestApplicationCreateAllowsRetryAfterTerminal(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	user := createTestUser(t, db)
	job := createTestJob(t, db, user.ID, models.JobStatusScraped)

	createTestApplication(t, db, user.ID, job.ID, models.ApplicationStatusFailed)

	retry := &models.Application{
		ID:     uuid.New(),
		UserID: user.ID,
		JobID:  &job.ID,
		Status: models.ApplicationStatusPending,
	}
	assert.NoError(t, repo.Create(retry))
}

func TestApplicationTransitionCAS(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	user := createTestUser(t, db)
	job := createTestJob(t, db, user.ID, models.JobStatusScraped)
	app := createTestApplication(t, db, user.ID, job.ID, models.ApplicationStatusPending)

	// First claim wins.
	require.NoError(t, repo.Transition(app.ID, models.ApplicationStatusPending, models.ApplicationStatusGenerating))

	// Second claim sees the status already changed and loses.
	err := repo.Transition(app.ID, models.ApplicationStatusPending, models.ApplicationStatusGenerating)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := repo.FindByID(app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusGenerating, stored.Status)
}

func TestApplicationTransitionRejectsNonAdjacentEdge(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	user := createTestUser(t, db)
	job := createTestJob(t, db, user.ID, models.JobStatusScraped)

	// Skipping a state forward is rejected even though the stored status
	// matches the expected one.
	pending := createTestApplication(t, db, user.ID, job.ID, models.ApplicationStatusPending)
	err := repo.Transition(pending.ID, models.ApplicationStatusPending, models.ApplicationStatusApplied)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = repo.Transition(pending.ID, models.ApplicationStatusPending, models.ApplicationStatusSubmitting)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Moving backwards is rejected too.
	otherJob := createTestJob(t, db, user.ID, models.JobStatusScraped)
	submitting := createTestApplication(t, db, user.ID, otherJob.ID, models.ApplicationStatusSubmitting)
	err = repo.Transition(submitting.ID, models.ApplicationStatusSubmitting, models.ApplicationStatusGenerating)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Neither application moved.
	stored, findErr := repo.FindByID(pending.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.ApplicationStatusPending, stored.Status)
	stored, findErr = repo.FindByID(submitting.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.ApplicationStatusSubmitting, stored.Status)
}

func TestApplicationTransitionFromTerminalRejected(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	user := createTestUser(t, db)
	job := createTestJob(t, db, user.ID, models.JobStatusScraped)
	app := createTestApplication(t, db, user.ID, job.ID, models.ApplicationStatusApplied)

	err := repo.Transition(app.ID, models.ApplicationStatusApplied, models.ApplicationStatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = repo.MarkFailed(app.ID, models.ApplicationStatusApplied, "late failure", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplicationMarkAppliedRequiresGeneratedContent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	usageRepo := NewTokenUsageRepository(db)
	user := createTestUser(t, db)
	job := createTestJob(t, db, user.ID, models.JobStatusScraped)
	app := createTestApplication(t, db, user.ID, job.ID, models.ApplicationStatusSubmitting)

	// No successful content rows yet.
	err := repo.MarkApplied(app.ID, time.Now())
	assert.ErrorIs(t, err, ErrMissingContent)

	// A failed generation attempt does not count as content.
	failMsg := "provider error"
	require.NoError(t, usageRepo.Create(&models.TokenUsage{
		UserID:        user.ID,
		ApplicationID: &app.ID,
		OperationType: models.OperationCoverLetter,
		ModelName:     "gemini-2.5-flash",
		Success:       false,
		ErrorMessage:  &failMsg,
	}))
	err = repo.MarkApplied(app.ID, time.Now())
	assert.ErrorIs(t, err, ErrMissingContent)

	// A successful cover letter row unlocks the transition.
	require.NoError(t, usageRepo.Create(&models.TokenUsage{
		UserID:        user.ID,
		ApplicationID: &app.ID,
		OperationType: models.OperationCoverLetter,
		ModelName:     "gemini-2.5-flash",
		Success:       true,
	}))
	appliedAt := time.Now()
	require.NoError(t, repo.MarkApplied(app.ID, appliedAt))

	stored, err := repo.FindByID(app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApplied, stored.Status)
	require.NotNil(t, stored.AppliedAt)
}

func TestApplicationMarkFailedRecordsScreenshot(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	user := createTestUser(t, db)
	job := createTestJob(t, db, user.ID, models.JobStatusScraped)
	app := createTestApplication(t, db, user.ID, job.ID, models.ApplicationStatusSubmitting)

	shot := "/logs/screenshots/abc.png"
	require.NoError(t, repo.MarkFailed(app.ID, models.ApplicationStatusSubmitting, "no submit button", &shot))

	stored, err := repo.FindByID(app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "no submit button", *stored.ErrorMessage)
	require.NotNil(t, stored.ScreenshotPath)
	assert.Equal(t, shot, *stored.ScreenshotPath)
}

func TestSetGeneratedContentOnlyWhileGenerating(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	user := createTestUser(t, db)
	job := createTestJob(t, db, user.ID, models.JobStatusScraped)

	pending := createTestApplication(t, db, user.ID, job.ID, models.ApplicationStatusPending)
	err := repo.SetGeneratedContent(pending.ID, "letter", nil, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, repo.Transition(pending.ID, models.ApplicationStatusPending, models.ApplicationStatusGenerating))
	require.NoError(t, repo.SetGeneratedContent(pending.ID, "letter", nil, "resume.pdf"))

	stored, err := repo.FindByID(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "letter", stored.CoverLetter)
	assert.Equal(t, "resume.pdf", stored.ResumeUsed)
}
