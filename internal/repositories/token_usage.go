package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/job-autopilot/internal/models"
)

type TokenUsageRepository interface {
	Create(usage *models.TokenUsage) error
	FindByID(id uuid.UUID) (*models.TokenUsage, error)
	FindByApplication(appID uuid.UUID) ([]models.TokenUsage, error)
	Filter(filter *TokenUsageFilter) ([]models.TokenUsage, error)
	Stats(filter *TokenUsageFilter) (*models.UsageStatsResponse, error)
}

// TokenUsageFilter narrows usage queries for the cost dashboards.
type TokenUsageFilter struct {
	UserID        *uuid.UUID
	JobID         *uuid.UUID
	ApplicationID *uuid.UUID
	OperationType *models.OperationType
	StartDate     *time.Time
	EndDate       *time.Time
	Success       *bool
	RagUsed       *bool
	Limit         int
}

type tokenUsageRepository struct {
	db *gorm.DB
}

func NewTokenUsageRepository(db *gorm.DB) TokenUsageRepository {
	return &tokenUsageRepository{db: db}
}

// Create implements TokenUsageRepository. The ledger is append-only: rows
// are never updated after creation, corrections are new rows.
func (r *tokenUsageRepository) Create(usage *models.TokenUsage) error {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	if err := r.db.Create(usage).Error; err != nil {
		return fmt.Errorf("failed to record token usage: %w", err)
	}
	return nil
}

// FindByID implements TokenUsageRepository.
func (r *tokenUsageRepository) FindByID(id uuid.UUID) (*models.TokenUsage, error) {
	var usage models.TokenUsage
	if err := r.db.Where("id = ?", id).First(&usage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find token usage: %w", err)
	}
	return &usage, nil
}

// FindByApplication implements TokenUsageRepository.
func (r *tokenUsageRepository) FindByApplication(appID uuid.UUID) ([]models.TokenUsage, error) {
	var usages []models.TokenUsage
	err := r.db.
		Where("application_id = ?", appID).
		Order("created_at ASC").
		Find(&usages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find token usage: %w", err)
	}
	return usages, nil
}

func (r *tokenUsageRepository) filtered(filter *TokenUsageFilter) *gorm.DB {
	query := r.db.Model(&models.TokenUsage{})
	if filter == nil {
		return query
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.JobID != nil {
		query = query.Where("job_id = ?", *filter.JobID)
	}
	if filter.ApplicationID != nil {
		query = query.Where("application_id = ?", *filter.ApplicationID)
	}
	if filter.OperationType != nil {
		query = query.Where("operation_type = ?", *filter.OperationType)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}
	if filter.Success != nil {
		query = query.Where("success = ?", *filter.Success)
	}
	if filter.RagUsed != nil {
		query = query.Where("rag_used = ?", *filter.RagUsed)
	}
	return query
}

// Filter implements TokenUsageRepository.
func (r *tokenUsageRepository) Filter(filter *TokenUsageFilter) ([]models.TokenUsage, error) {
	query := r.filtered(filter).Order("created_at DESC")
	if filter != nil && filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var usages []models.TokenUsage
	if err := query.Find(&usages).Error; err != nil {
		return nil, fmt.Errorf("failed to filter token usage: %w", err)
	}
	return usages, nil
}

// Stats implements TokenUsageRepository.
func (r *tokenUsageRepository) Stats(filter *TokenUsageFilter) (*models.UsageStatsResponse, error) {
	var usages []models.TokenUsage
	if err := r.filtered(filter).Find(&usages).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate token usage: %w", err)
	}

	stats := &models.UsageStatsResponse{
		OperationsByType: make(map[string]int64),
		TokensByType:     make(map[string]int64),
	}

	var succeeded int64
	var totalLatency float64
	for _, u := range usages {
		stats.TotalOperations++
		stats.TotalTokens += int64(u.TotalTokens)
		stats.TotalPromptTokens += int64(u.PromptTokens)
		stats.TotalCompletionTokens += int64(u.CompletionTokens)
		stats.TotalCost += u.EstimatedCost
		stats.OperationsByType[string(u.OperationType)]++
		stats.TokensByType[string(u.OperationType)] += int64(u.TotalTokens)
		totalLatency += u.ResponseTimeMs
		if u.Success {
			succeeded++
		}
		if u.RagUsed {
			stats.RagOperations++
		}
	}

	if stats.TotalOperations > 0 {
		stats.SuccessRate = float64(succeeded) / float64(stats.TotalOperations)
		stats.AvgResponseTimeMs = totalLatency / float64(stats.TotalOperations)
	}
	return stats, nil
}
