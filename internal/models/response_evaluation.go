package models

import (
	"time"

	"github.com/google/uuid"
)

type EvaluationMethod string

const (
	EvaluationManual         EvaluationMethod = "manual"
	EvaluationAutoLLM        EvaluationMethod = "auto_llm"
	EvaluationAutoKeyword    EvaluationMethod = "auto_keyword"
	EvaluationAutoSimilarity EvaluationMethod = "auto_similarity"
)

// ResponseEvaluation is a quality assessment of exactly one TokenUsage row.
// Once is_hallucination or is_inappropriate is set, the row is never mutated;
// a re-assessment is a new record.
type ResponseEvaluation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TokenUsageID uuid.UUID `gorm:"type:uuid;not null;index" json:"token_usage_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	// Dimension scores on a 1-5 scale, nullable when not assessed
	RelevanceScore       *float64 `gorm:"type:decimal(3,2)" json:"relevance_score,omitempty"`
	AccuracyScore        *float64 `gorm:"type:decimal(3,2)" json:"accuracy_score,omitempty"`
	CompletenessScore    *float64 `gorm:"type:decimal(3,2)" json:"completeness_score,omitempty"`
	ConcisenessScore     *float64 `gorm:"type:decimal(3,2)" json:"conciseness_score,omitempty"`
	ProfessionalismScore *float64 `gorm:"type:decimal(3,2)" json:"professionalism_score,omitempty"`
	OverallScore         float64  `gorm:"type:decimal(3,2);not null" json:"overall_score"`

	EvaluationMethod EvaluationMethod `gorm:"type:varchar(50);not null" json:"evaluation_method"`
	EvaluatorNotes   string           `gorm:"type:text" json:"evaluator_notes"`
	ExpectedAnswer   string           `gorm:"type:text" json:"expected_answer"`

	// Quality flags
	NeedsImprovement bool `gorm:"not null;default:false" json:"needs_improvement"`
	IsHallucination  bool `gorm:"not null;default:false" json:"is_hallucination"`
	IsInappropriate  bool `gorm:"not null;default:false" json:"is_inappropriate"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Relations
	TokenUsage TokenUsage `gorm:"foreignKey:TokenUsageID;constraint:OnDelete:CASCADE" json:"-"`
	User       User       `gorm:"foreignKey:UserID" json:"-"`
}

func (ResponseEvaluation) TableName() string {
	return "response_evaluations"
}

// Flagged reports whether the evaluation should trigger the pipeline's
// regeneration / abort feedback.
func (e *ResponseEvaluation) Flagged() bool {
	return e.NeedsImprovement || e.IsHallucination || e.IsInappropriate
}
