package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/job-autopilot/internal/models"
)

type EvaluationRepository interface {
	Create(eval *models.ResponseEvaluation) error
	FindByID(id uuid.UUID) (*models.ResponseEvaluation, error)
	FindByTokenUsage(tokenUsageID uuid.UUID) ([]models.ResponseEvaluation, error)
	FindFlagged(userID *uuid.UUID, limit int) ([]models.ResponseEvaluation, error)
	FindBelowScore(threshold float64, limit int) ([]models.ResponseEvaluation, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Create implements EvaluationRepository. Evaluations are append-only; a
// changed assessment is a new record, never a mutation of a flagged one.
func (r *evaluationRepository) Create(eval *models.ResponseEvaluation) error {
	if eval.ID == uuid.Nil {
		eval.ID = uuid.New()
	}
	if err := r.db.Create(eval).Error; err != nil {
		return fmt.Errorf("failed to create evaluation: %w", err)
	}
	return nil
}

// FindByID implements EvaluationRepository.
func (r *evaluationRepository) FindByID(id uuid.UUID) (*models.ResponseEvaluation, error) {
	var eval models.ResponseEvaluation
	if err := r.db.Where("id = ?", id).First(&eval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find evaluation: %w", err)
	}
	return &eval, nil
}

// FindByTokenUsage implements EvaluationRepository.
func (r *evaluationRepository) FindByTokenUsage(tokenUsageID uuid.UUID) ([]models.ResponseEvaluation, error) {
	var evals []models.ResponseEvaluation
	err := r.db.
		Where("token_usage_id = ?", tokenUsageID).
		Order("created_at ASC").
		Find(&evals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find evaluations: %w", err)
	}
	return evals, nil
}

// FindFlagged implements EvaluationRepository.
func (r *evaluationRepository) FindFlagged(userID *uuid.UUID, limit int) ([]models.ResponseEvaluation, error) {
	query := r.db.
		Where("needs_improvement = ? OR is_hallucination = ? OR is_inappropriate = ?", true, true, true)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var evals []models.ResponseEvaluation
	err := query.Order("created_at DESC").Limit(limit).Find(&evals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find flagged evaluations: %w", err)
	}
	return evals, nil
}

// FindBelowScore implements EvaluationRepository.
func (r *evaluationRepository) FindBelowScore(threshold float64, limit int) ([]models.ResponseEvaluation, error) {
	var evals []models.ResponseEvaluation
	err := r.db.
		Where("overall_score < ?", threshold).
		Order("overall_score ASC").
		Limit(limit).
		Find(&evals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find evaluations below score: %w", err)
	}
	return evals, nil
}
