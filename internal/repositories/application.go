package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"alfredoptarigan/job-autopilot/internal/models"
)

type ApplicationRepository interface {
	Create(app *models.Application) error
	FindByID(id uuid.UUID) (*models.Application, error)
	FindByStatus(status models.ApplicationStatus, limit int) ([]models.Application, error)
	Transition(id uuid.UUID, from, to models.ApplicationStatus) error
	SetGeneratedContent(id uuid.UUID, coverLetter string, formResponses datatypes.JSON, resumeUsed string) error
	MarkApplied(id uuid.UUID, appliedAt time.Time) error
	MarkFailed(id uuid.UUID, from models.ApplicationStatus, errorMessage string, screenshotPath *string) error
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

// Create implements ApplicationRepository. At most one application per
// (user, job) may be non-terminal at any time; a retry for a failed attempt
// is a fresh row, created only once the previous one has settled.
func (r *applicationRepository) Create(app *models.Application) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if app.JobID != nil {
			var active int64
			err := tx.Model(&models.Application{}).
				Where("user_id = ? AND job_id = ? AND status NOT IN ?",
					app.UserID, *app.JobID,
					[]models.ApplicationStatus{
						models.ApplicationStatusApplied,
						models.ApplicationStatusFailed,
					}).
				Count(&active).Error
			if err != nil {
				return fmt.Errorf("failed to check active applications: %w", err)
			}
			if active > 0 {
				return ErrDuplicateActive
			}
		}

		if err := tx.Create(app).Error; err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		return nil
	})
}

// FindByID implements ApplicationRepository.
func (r *applicationRepository) FindByID(id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.db.Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return &app, nil
}

// FindByStatus implements ApplicationRepository. The scheduler uses this to
// find pending work, oldest first.
func (r *applicationRepository) FindByStatus(status models.ApplicationStatus, limit int) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find applications: %w", err)
	}
	return apps, nil
}

// forwardTransitions lists the allowed forward edges of the application
// lifecycle. failed is reachable from any non-terminal state, but only
// through MarkFailed; applied only through MarkApplied.
var forwardTransitions = map[models.ApplicationStatus]models.ApplicationStatus{
	models.ApplicationStatusPending:    models.ApplicationStatusGenerating,
	models.ApplicationStatusGenerating: models.ApplicationStatusSubmitting,
}

// Transition implements ApplicationRepository. The update is conditional on
// the stored status matching the expected one, so two workers racing on the
// same application cannot both win: the loser sees ErrInvalidTransition.
// Edges outside the lifecycle are rejected outright.
func (r *applicationRepository) Transition(id uuid.UUID, from, to models.ApplicationStatus) error {
	if forwardTransitions[from] != to {
		return ErrInvalidTransition
	}

	result := r.db.Model(&models.Application{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to transition application: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// SetGeneratedContent implements ApplicationRepository. Content may only be
// attached while the application is generating.
func (r *applicationRepository) SetGeneratedContent(id uuid.UUID, coverLetter string, formResponses datatypes.JSON, resumeUsed string) error {
	result := r.db.Model(&models.Application{}).
		Where("id = ? AND status = ?", id, models.ApplicationStatusGenerating).
		Updates(map[string]interface{}{
			"cover_letter":   coverLetter,
			"form_responses": formResponses,
			"resume_used":    resumeUsed,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set generated content: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkApplied implements ApplicationRepository. The transition is rejected
// unless at least one successful content-generation usage row exists for the
// application, so an application can never reach applied without paid-for
// generated content backing it.
func (r *applicationRepository) MarkApplied(id uuid.UUID, appliedAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var content int64
		err := tx.Model(&models.TokenUsage{}).
			Where("application_id = ? AND success = ? AND operation_type IN ?",
				id, true,
				[]models.OperationType{
					models.OperationCoverLetter,
					models.OperationQuestionAnswer,
				}).
			Count(&content).Error
		if err != nil {
			return fmt.Errorf("failed to check generated content: %w", err)
		}
		if content == 0 {
			return ErrMissingContent
		}

		result := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", id, models.ApplicationStatusSubmitting).
			Updates(map[string]interface{}{
				"status":     models.ApplicationStatusApplied,
				"applied_at": appliedAt,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark applied: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
}

// MarkFailed implements ApplicationRepository. failed is terminal; the row is
// never resurrected afterwards.
func (r *applicationRepository) MarkFailed(id uuid.UUID, from models.ApplicationStatus, errorMessage string, screenshotPath *string) error {
	if from.IsTerminal() {
		return ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"status":        models.ApplicationStatusFailed,
		"error_message": errorMessage,
		"updated_at":    time.Now(),
	}
	if screenshotPath != nil {
		updates["screenshot_path"] = *screenshotPath
	}

	result := r.db.Model(&models.Application{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to mark failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}
