package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/job-autopilot/internal/models"
)

type KnowledgeBaseRepository interface {
	Upsert(kb *models.KnowledgeBase) error
	FindByUserID(userID uuid.UUID) (*models.KnowledgeBase, error)
	SetEmbeddingID(id uuid.UUID, embeddingID string) error
}

type knowledgeBaseRepository struct {
	db *gorm.DB
}

func NewKnowledgeBaseRepository(db *gorm.DB) KnowledgeBaseRepository {
	return &knowledgeBaseRepository{db: db}
}

// Upsert implements KnowledgeBaseRepository. A user has exactly one
// knowledge base row; edits replace it in place.
func (r *knowledgeBaseRepository) Upsert(kb *models.KnowledgeBase) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.KnowledgeBase
		err := tx.Where("user_id = ?", kb.UserID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if kb.ID == uuid.Nil {
				kb.ID = uuid.New()
			}
			if err := tx.Create(kb).Error; err != nil {
				return fmt.Errorf("failed to create knowledge base: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up knowledge base: %w", err)
		}

		kb.ID = existing.ID
		kb.CreatedAt = existing.CreatedAt
		kb.UpdatedAt = time.Now()
		if err := tx.Save(kb).Error; err != nil {
			return fmt.Errorf("failed to update knowledge base: %w", err)
		}
		return nil
	})
}

// FindByUserID implements KnowledgeBaseRepository.
func (r *knowledgeBaseRepository) FindByUserID(userID uuid.UUID) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	if err := r.db.Where("user_id = ?", userID).First(&kb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find knowledge base: %w", err)
	}
	return &kb, nil
}

// SetEmbeddingID implements KnowledgeBaseRepository.
func (r *knowledgeBaseRepository) SetEmbeddingID(id uuid.UUID, embeddingID string) error {
	result := r.db.Model(&models.KnowledgeBase{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding_id": embeddingID,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set embedding id: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
