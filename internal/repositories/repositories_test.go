package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alfredoptarigan/job-autopilot/internal/config"
	"alfredoptarigan/job-autopilot/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.New().String() + "@example.com",
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestJob(t *testing.T, db *gorm.DB, userID uuid.UUID, status models.JobStatus) *models.Job {
	t.Helper()

	job := &models.Job{
		ID:        uuid.New(),
		UserID:    userID,
		URL:       "https://jobs.example.com/" + uuid.New().String(),
		Title:     "Backend Engineer",
		Company:   "Acme",
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func createTestApplication(t *testing.T, db *gorm.DB, userID, jobID uuid.UUID, status models.ApplicationStatus) *models.Application {
	t.Helper()

	app := &models.Application{
		ID:        uuid.New(),
		UserID:    userID,
		JobID:     &jobID,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(app).Error)
	return app
}
