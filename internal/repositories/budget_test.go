package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-autopilot/internal/models"
)

func TestBudgetReserveWithinCeiling(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBudgetRepository(db)
	user := createTestUser(t, db)
	period := time.Now().UTC().Truncate(24 * time.Hour)

	require.NoError(t, repo.Reserve(user.ID, period, 0.40, 1.0))
	require.NoError(t, repo.Reserve(user.ID, period, 0.60, 1.0))

	accumulated, err := repo.Accumulated(user.ID, period)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, accumulated, 1e-9)
}

func TestBudgetReserveRejectsOverCeiling(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBudgetRepository(db)
	user := createTestUser(t, db)
	period := time.Now().UTC().Truncate(24 * time.Hour)

	require.NoError(t, repo.Reserve(user.ID, period, 0.90, 1.0))

	err := repo.Reserve(user.ID, period, 0.20, 1.0)
	assert.ErrorIs(t, err, ErrBudgetExceeded)

	// The failed reservation must not have changed the ledger.
	accumulated, err := repo.Accumulated(user.ID, period)
	require.NoError(t, err)
	assert.InDelta(t, 0.90, accumulated, 1e-9)
}

func TestBudgetReserveToleratesExistingPeriodRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBudgetRepository(db)
	user := createTestUser(t, db)
	period := time.Now().UTC().Truncate(24 * time.Hour)

	// The period row already exists, as when another reservation opened the
	// window first. The insert must hit the unique (user, period) index
	// without aborting the reservation.
	require.NoError(t, db.Create(&models.BudgetLedger{
		ID:              uuid.New(),
		UserID:          user.ID,
		PeriodStart:     period,
		AccumulatedCost: 0.50,
	}).Error)

	require.NoError(t, repo.Reserve(user.ID, period, 0.30, 1.0))

	accumulated, err := repo.Accumulated(user.ID, period)
	require.NoError(t, err)
	assert.InDelta(t, 0.80, accumulated, 1e-9)

	// Still exactly one ledger row for the period.
	var rows int64
	require.NoError(t, db.Model(&models.BudgetLedger{}).
		Where("user_id = ? AND period_start = ?", user.ID, period).
		Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestBudgetReleaseReturnsUnusedReservation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBudgetRepository(db)
	user := createTestUser(t, db)
	period := time.Now().UTC().Truncate(24 * time.Hour)

	require.NoError(t, repo.Reserve(user.ID, period, 0.50, 1.0))
	require.NoError(t, repo.Release(user.ID, period, 0.30))

	accumulated, err := repo.Accumulated(user.ID, period)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, accumulated, 1e-9)
}

func TestBudgetReleaseNeverGoesNegative(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBudgetRepository(db)
	user := createTestUser(t, db)
	period := time.Now().UTC().Truncate(24 * time.Hour)

	require.NoError(t, repo.Reserve(user.ID, period, 0.10, 1.0))
	require.NoError(t, repo.Release(user.ID, period, 5.0))

	accumulated, err := repo.Accumulated(user.ID, period)
	require.NoError(t, err)
	assert.Zero(t, accumulated)
}

func TestBudgetPeriodsAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBudgetRepository(db)
	user := createTestUser(t, db)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	yesterday := today.Add(-24 * time.Hour)

	require.NoError(t, repo.Reserve(user.ID, yesterday, 1.0, 1.0))

	// Yesterday's spend does not count against today's ceiling.
	assert.NoError(t, repo.Reserve(user.ID, today, 1.0, 1.0))
}

func TestBudgetAccumulatedUnknownPeriodIsZero(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBudgetRepository(db)
	user := createTestUser(t, db)

	accumulated, err := repo.Accumulated(user.ID, time.Now().UTC().Truncate(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, accumulated)
}
