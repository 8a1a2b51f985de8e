package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
)

type UsageHandler struct {
	usageRepo  repositories.TokenUsageRepository
	budgetRepo repositories.BudgetRepository
}

func NewUsageHandler(
	usageRepo repositories.TokenUsageRepository,
	budgetRepo repositories.BudgetRepository,
) *UsageHandler {
	return &UsageHandler{
		usageRepo:  usageRepo,
		budgetRepo: budgetRepo,
	}
}

// HandleList handles GET /usage with optional filters:
// user_id, job_id, application_id, operation_type, start_date, end_date,
// success, rag_used, limit.
func (h *UsageHandler) HandleList(c *fiber.Ctx) error {
	filter, err := usageFilterFromQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	usages, err := h.usageRepo.Filter(filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list usage",
		})
	}

	return c.JSON(fiber.Map{"usage": usages})
}

// HandleStats handles GET /usage/stats with the same filters as HandleList.
func (h *UsageHandler) HandleStats(c *fiber.Ctx) error {
	filter, err := usageFilterFromQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	stats, err := h.usageRepo.Stats(filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to aggregate usage",
		})
	}

	return c.JSON(stats)
}

// HandleBudget handles GET /usage/budget/:userId, the accumulated cost for
// the current budget period.
func (h *UsageHandler) HandleBudget(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user id format",
		})
	}

	period := c.Query("period", "24h")
	duration, err := time.ParseDuration(period)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid period format",
		})
	}

	periodStart := time.Now().UTC().Truncate(duration)
	accumulated, err := h.budgetRepo.Accumulated(userID, periodStart)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load budget",
		})
	}

	return c.JSON(fiber.Map{
		"user_id":          userID.String(),
		"period_start":     periodStart,
		"accumulated_cost": accumulated,
	})
}

func usageFilterFromQuery(c *fiber.Ctx) (*repositories.TokenUsageFilter, error) {
	filter := &repositories.TokenUsageFilter{
		Limit: c.QueryInt("limit", 100),
	}

	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid user_id format")
		}
		filter.UserID = &id
	}
	if raw := c.Query("job_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid job_id format")
		}
		filter.JobID = &id
	}
	if raw := c.Query("application_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid application_id format")
		}
		filter.ApplicationID = &id
	}
	if raw := c.Query("operation_type"); raw != "" {
		op := models.OperationType(raw)
		filter.OperationType = &op
	}
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid start_date format (use RFC3339)")
		}
		filter.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid end_date format (use RFC3339)")
		}
		filter.EndDate = &t
	}
	if raw := c.Query("success"); raw != "" {
		success := raw == "true"
		filter.Success = &success
	}
	if raw := c.Query("rag_used"); raw != "" {
		ragUsed := raw == "true"
		filter.RagUsed = &ragUsed
	}

	return filter, nil
}
