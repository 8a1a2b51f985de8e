package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// KnowledgeBase holds a user's personal facts used for RAG. One row per user.
// The loosely structured profile sections are stored as JSON documents and
// decomposed into atomic chunks by the chunker before indexing.
type KnowledgeBase struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	// Profile data
	FullName     string `gorm:"type:text" json:"full_name"`
	Email        string `gorm:"type:text" json:"email"`
	Phone        string `gorm:"type:text" json:"phone"`
	Location     string `gorm:"type:text" json:"location"`
	LinkedinURL  string `gorm:"type:text" json:"linkedin_url"`
	PortfolioURL string `gorm:"type:text" json:"portfolio_url"`
	Summary      string `gorm:"type:text" json:"summary"`

	// Structured sections
	WorkExperience datatypes.JSON `gorm:"type:json" json:"work_experience,omitempty"`
	Education      datatypes.JSON `gorm:"type:json" json:"education,omitempty"`
	Skills         datatypes.JSON `gorm:"type:json" json:"skills,omitempty"`
	Certifications datatypes.JSON `gorm:"type:json" json:"certifications,omitempty"`
	Projects       datatypes.JSON `gorm:"type:json" json:"projects,omitempty"`
	Preferences    datatypes.JSON `gorm:"type:json" json:"preferences,omitempty"`
	QAPairs        datatypes.JSON `gorm:"type:json" json:"qa_pairs,omitempty"`

	// Resume files
	ResumePath          string `gorm:"type:text" json:"resume_path"`
	CoverLetterTemplate string `gorm:"type:text" json:"cover_letter_template"`

	// Reference to the vector index entry used by the retrieval engine
	EmbeddingID string `gorm:"type:text" json:"embedding_id"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_base"
}
