package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/job-autopilot/internal/models"
)

type UserRepository interface {
	Create(user *models.User) error
	FindByID(id uuid.UUID) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	Deactivate(id uuid.UUID) error
	Delete(id uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create implements UserRepository.
func (r *userRepository) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByID implements UserRepository.
func (r *userRepository) FindByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// FindByEmail implements UserRepository.
func (r *userRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// Deactivate implements UserRepository.
func (r *userRepository) Deactivate(id uuid.UUID) error {
	result := r.db.Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements UserRepository. Deleting a user cascades through the
// full ownership chain: evaluations, token usage, applications, jobs,
// knowledge base and budget ledger rows all go with it.
func (r *userRepository) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"token_usage_id IN (?)",
			tx.Model(&models.TokenUsage{}).Select("id").Where("user_id = ?", id),
		).Delete(&models.ResponseEvaluation{}).Error; err != nil {
			return fmt.Errorf("failed to delete evaluations: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.TokenUsage{}).Error; err != nil {
			return fmt.Errorf("failed to delete token usage: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Application{}).Error; err != nil {
			return fmt.Errorf("failed to delete applications: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Job{}).Error; err != nil {
			return fmt.Errorf("failed to delete jobs: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.KnowledgeBase{}).Error; err != nil {
			return fmt.Errorf("failed to delete knowledge base: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.BudgetLedger{}).Error; err != nil {
			return fmt.Errorf("failed to delete budget ledger: %w", err)
		}

		result := tx.Where("id = ?", id).Delete(&models.User{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
