package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OperationType string

const (
	OperationChat           OperationType = "chat"
	OperationRAGAnswer      OperationType = "rag_answer"
	OperationCoverLetter    OperationType = "cover_letter"
	OperationQuestionAnswer OperationType = "question_answer"
	OperationJobExtract     OperationType = "job_extract"
	OperationResumeParse    OperationType = "resume_parse"
	OperationEvaluation     OperationType = "response_evaluation"
)

// IsApplicationContent reports whether the operation produces content that
// counts toward an application (the cover letter / form answer set).
func (t OperationType) IsApplicationContent() bool {
	return t == OperationCoverLetter || t == OperationQuestionAnswer
}

// TokenUsage is an immutable audit record of one generation attempt. Rows are
// never updated after creation; corrections are modeled as new rows.
type TokenUsage struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	JobID         *uuid.UUID `gorm:"type:uuid;index" json:"job_id,omitempty"`
	ApplicationID *uuid.UUID `gorm:"type:uuid;index" json:"application_id,omitempty"`

	// Operation details
	OperationType OperationType `gorm:"type:text;not null;index" json:"operation_type"`
	Endpoint      string        `gorm:"type:text" json:"endpoint"`
	ModelName     string        `gorm:"type:text;not null" json:"model_name"`

	// Token counts
	PromptTokens     int `gorm:"not null;default:0" json:"prompt_tokens"`
	CompletionTokens int `gorm:"not null;default:0" json:"completion_tokens"`
	TotalTokens      int `gorm:"not null;default:0" json:"total_tokens"`

	// Actual text, kept for evaluation
	PromptText     string `gorm:"type:text" json:"prompt_text"`
	CompletionText string `gorm:"type:text" json:"completion_text"`

	// RAG context information
	RagUsed            bool `gorm:"not null;default:false" json:"rag_used"`
	RagChunksRetrieved int  `gorm:"not null;default:0" json:"rag_chunks_retrieved"`
	ContextLength      int  `gorm:"not null;default:0" json:"context_length"`

	// Performance
	ResponseTimeMs float64 `gorm:"not null;default:0" json:"response_time_ms"`
	Success        bool    `gorm:"not null;default:true" json:"success"`
	ErrorMessage   *string `gorm:"type:text" json:"error_message,omitempty"`

	// Cost tracking
	EstimatedCost float64 `gorm:"not null;default:0" json:"estimated_cost"`

	ExtraMetadata datatypes.JSON `gorm:"type:json" json:"extra_metadata,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`

	// Relations
	User        User         `gorm:"foreignKey:UserID" json:"-"`
	Job         *Job         `gorm:"foreignKey:JobID" json:"-"`
	Application *Application `gorm:"foreignKey:ApplicationID" json:"-"`
}

func (TokenUsage) TableName() string {
	return "token_usage"
}
