package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/job-autopilot/internal/models"
)

type JobRepository interface {
	Create(job *models.Job) error
	FindByID(id uuid.UUID) (*models.Job, error)
	FindByStatus(status models.JobStatus, limit int) ([]models.Job, error)
	UpdateStatus(id uuid.UUID, status models.JobStatus) error
	MarkScraped(id uuid.UUID, fields *ScrapedFields) error
	MarkFailed(id uuid.UUID) error
	Delete(id uuid.UUID) error
}

// ScrapedFields carries the structured fields returned by the scraper.
type ScrapedFields struct {
	Title         string
	Company       string
	Location      string
	JobType       string
	WorkplaceType string
	Description   string
	Requirements  string
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

// Create implements JobRepository.
func (r *jobRepository) Create(job *models.Job) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// FindByID implements JobRepository.
func (r *jobRepository) FindByID(id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return &job, nil
}

// FindByStatus implements JobRepository.
func (r *jobRepository) FindByStatus(status models.JobStatus, limit int) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find jobs: %w", err)
	}
	return jobs, nil
}

// UpdateStatus implements JobRepository.
func (r *jobRepository) UpdateStatus(id uuid.UUID, status models.JobStatus) error {
	result := r.db.Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update job status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkScraped implements JobRepository.
func (r *jobRepository) MarkScraped(id uuid.UUID, fields *ScrapedFields) error {
	now := time.Now()
	result := r.db.Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":          fields.Title,
			"company":        fields.Company,
			"location":       fields.Location,
			"job_type":       fields.JobType,
			"workplace_type": fields.WorkplaceType,
			"description":    fields.Description,
			"requirements":   fields.Requirements,
			"status":         models.JobStatusScraped,
			"scraped_at":     now,
			"updated_at":     now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark job scraped: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed implements JobRepository.
func (r *jobRepository) MarkFailed(id uuid.UUID) error {
	return r.UpdateStatus(id, models.JobStatusFailed)
}

// Delete implements JobRepository. Applications and token usage rows
// referencing the job are detached rather than deleted: the financial and
// audit data outlives the scraped posting.
func (r *jobRepository) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Application{}).
			Where("job_id = ?", id).
			Update("job_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach applications: %w", err)
		}
		if err := tx.Model(&models.TokenUsage{}).
			Where("job_id = ?", id).
			Update("job_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach token usage: %w", err)
		}

		result := tx.Where("id = ?", id).Delete(&models.Job{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete job: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
