package models

import (
	"time"

	"github.com/google/uuid"
)

// BudgetLedger accumulates estimated generation cost per user and budget
// period. The reserve operation is a single conditional increment so
// concurrent generation calls cannot jointly overshoot the ceiling.
type BudgetLedger struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_budget_user_period" json:"user_id"`
	PeriodStart     time.Time `gorm:"type:timestamp;not null;uniqueIndex:idx_budget_user_period" json:"period_start"`
	AccumulatedCost float64   `gorm:"not null;default:0" json:"accumulated_cost"`
	CreatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (BudgetLedger) TableName() string {
	return "budget_ledgers"
}
