package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ApplicationStatus string

const (
	ApplicationStatusPending    ApplicationStatus = "pending"
	ApplicationStatusGenerating ApplicationStatus = "generating"
	ApplicationStatusSubmitting ApplicationStatus = "submitting"
	ApplicationStatusApplied    ApplicationStatus = "applied"
	ApplicationStatusFailed     ApplicationStatus = "failed"
)

// IsTerminal reports whether no further pipeline-driven transition may occur.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusApplied || s == ApplicationStatusFailed
}

// Application is the unit of work per (user, job). A failed application is
// retried by creating a fresh row for the same pair, never by resurrecting
// this one, so the audit trail of attempts stays intact.
type Application struct {
	ID     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	JobID  *uuid.UUID `gorm:"type:uuid;index" json:"job_id,omitempty"`

	Status      ApplicationStatus `gorm:"not null;default:'pending';index" json:"status"`
	CoverLetter string            `gorm:"type:text" json:"cover_letter"`
	ResumeUsed  string            `gorm:"type:text" json:"resume_used"`

	FormResponses datatypes.JSON `gorm:"type:json" json:"form_responses,omitempty"`

	AppliedAt      *time.Time `gorm:"type:timestamp" json:"applied_at,omitempty"`
	ErrorMessage   *string    `gorm:"type:text" json:"error_message,omitempty"`
	ScreenshotPath *string    `gorm:"type:text" json:"screenshot_path,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
	Job  *Job `gorm:"foreignKey:JobID" json:"-"`
}

func (Application) TableName() string {
	return "applications"
}
