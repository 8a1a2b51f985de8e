package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/job-autopilot/internal/models"
)

type BudgetRepository interface {
	// Reserve adds amount to the user's accumulated cost for the period,
	// failing with ErrBudgetExceeded if the ceiling would be crossed. The
	// check and the increment are a single conditional update, never a
	// read-then-write pair.
	Reserve(userID uuid.UUID, periodStart time.Time, amount, ceiling float64) error

	// Release gives back unused reserved cost once the actual spend of a
	// generation call is known.
	Release(userID uuid.UUID, periodStart time.Time, amount float64) error

	Accumulated(userID uuid.UUID, periodStart time.Time) (float64, error)
}

type budgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) BudgetRepository {
	return &budgetRepository{db: db}
}

// Reserve implements BudgetRepository.
func (r *budgetRepository) Reserve(userID uuid.UUID, periodStart time.Time, amount, ceiling float64) error {
	if amount < 0 {
		return fmt.Errorf("reserve amount must be non-negative")
	}

	// Two first reservations for the same period race on the insert; the
	// conflict target is the unique (user_id, period_start) index, so the
	// loser falls through to the conditional increment like everyone else.
	ledger := models.BudgetLedger{
		ID:          uuid.New(),
		UserID:      userID,
		PeriodStart: periodStart,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "period_start"}},
		DoNothing: true,
	}).Create(&ledger).Error
	if err != nil {
		return fmt.Errorf("failed to open budget period: %w", err)
	}

	// Conditional increment: the WHERE clause re-checks the ceiling so a
	// concurrent reservation committed in between cannot be overdrawn.
	result := r.db.Model(&models.BudgetLedger{}).
		Where("user_id = ? AND period_start = ? AND accumulated_cost + ? <= ?",
			userID, periodStart, amount, ceiling).
		Updates(map[string]interface{}{
			"accumulated_cost": gorm.Expr("accumulated_cost + ?", amount),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to reserve budget: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBudgetExceeded
	}
	return nil
}

// Release implements BudgetRepository.
func (r *budgetRepository) Release(userID uuid.UUID, periodStart time.Time, amount float64) error {
	if amount <= 0 {
		return nil
	}

	result := r.db.Model(&models.BudgetLedger{}).
		Where("user_id = ? AND period_start = ?", userID, periodStart).
		Updates(map[string]interface{}{
			"accumulated_cost": gorm.Expr("CASE WHEN accumulated_cost > ? THEN accumulated_cost - ? ELSE 0 END", amount, amount),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release budget: %w", result.Error)
	}
	return nil
}

// Accumulated implements BudgetRepository.
func (r *budgetRepository) Accumulated(userID uuid.UUID, periodStart time.Time) (float64, error) {
	var ledger models.BudgetLedger
	err := r.db.Where("user_id = ? AND period_start = ?", userID, periodStart).
		First(&ledger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load budget ledger: %w", err)
	}
	return ledger.AccumulatedCost, nil
}
