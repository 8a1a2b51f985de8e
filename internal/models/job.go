package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusScraped JobStatus = "scraped"
	JobStatusFailed  JobStatus = "failed"
	JobStatusApplied JobStatus = "applied"
	JobStatusSkipped JobStatus = "skipped"
)

type Job struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	URL           string     `gorm:"type:text;not null" json:"url"`
	Title         string     `gorm:"type:text" json:"title"`
	Company       string     `gorm:"type:text" json:"company"`
	Location      string     `gorm:"type:text" json:"location"`
	JobType       string     `gorm:"type:text" json:"job_type"`
	WorkplaceType string     `gorm:"type:text" json:"workplace_type"`
	Description   string     `gorm:"type:text" json:"description"`
	Requirements  string     `gorm:"type:text" json:"requirements"`
	Status        JobStatus  `gorm:"not null;default:'pending';index" json:"status"`
	ScrapedAt     *time.Time `gorm:"type:timestamp" json:"scraped_at,omitempty"`
	CreatedAt     time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Job) TableName() string {
	return "jobs"
}

// JobText is the text the retrieval engine embeds when ranking knowledge
// chunks against this posting.
func (j *Job) JobText() string {
	text := j.Title
	if j.Description != "" {
		text += "\n" + j.Description
	}
	if j.Requirements != "" {
		text += "\n" + j.Requirements
	}
	return text
}
