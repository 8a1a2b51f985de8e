package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
	"alfredoptarigan/job-autopilot/internal/services"
)

type EvaluationHandler struct {
	evalRepo  repositories.EvaluationRepository
	usageRepo repositories.TokenUsageRepository
	evaluator services.EvaluatorService
}

func NewEvaluationHandler(
	evalRepo repositories.EvaluationRepository,
	usageRepo repositories.TokenUsageRepository,
	evaluator services.EvaluatorService,
) *EvaluationHandler {
	return &EvaluationHandler{
		evalRepo:  evalRepo,
		usageRepo: usageRepo,
		evaluator: evaluator,
	}
}

// HandleCreateManual handles POST /evaluations, a reviewer-entered quality
// assessment of one generated response.
func (h *EvaluationHandler) HandleCreateManual(c *fiber.Ctx) error {
	var req models.ManualEvaluationRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	tokenUsageID, err := uuid.Parse(req.TokenUsageID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid token_usage_id format",
		})
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user_id format",
		})
	}

	if _, err := h.usageRepo.FindByID(tokenUsageID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Token usage record not found",
		})
	}

	if req.OverallScore < 1 || req.OverallScore > 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "overall_score must be between 1 and 5",
		})
	}

	eval := &models.ResponseEvaluation{
		ID:                   uuid.New(),
		TokenUsageID:         tokenUsageID,
		UserID:               userID,
		RelevanceScore:       req.RelevanceScore,
		AccuracyScore:        req.AccuracyScore,
		CompletenessScore:    req.CompletenessScore,
		ConcisenessScore:     req.ConcisenessScore,
		ProfessionalismScore: req.ProfessionalismScore,
		OverallScore:         req.OverallScore,
		EvaluatorNotes:       req.EvaluatorNotes,
		ExpectedAnswer:       req.ExpectedAnswer,
		NeedsImprovement:     req.NeedsImprovement,
		IsHallucination:      req.IsHallucination,
		IsInappropriate:      req.IsInappropriate,
	}

	if err := h.evaluator.RecordManual(eval); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save evaluation",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(eval)
}

// HandleListFlagged handles GET /evaluations/flagged?user_id=...&limit=20
func (h *EvaluationHandler) HandleListFlagged(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid user_id format",
			})
		}
		userID = &id
	}

	evals, err := h.evalRepo.FindFlagged(userID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list flagged evaluations",
		})
	}

	return c.JSON(fiber.Map{"evaluations": evals})
}

// HandleListBelowScore handles GET /evaluations/below?threshold=3.5&limit=20
func (h *EvaluationHandler) HandleListBelowScore(c *fiber.Ctx) error {
	threshold := c.QueryFloat("threshold", 3.5)
	limit := c.QueryInt("limit", 20)

	evals, err := h.evalRepo.FindBelowScore(threshold, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list evaluations",
		})
	}

	return c.JSON(fiber.Map{"evaluations": evals})
}

// HandleListForUsage handles GET /usage/:id/evaluations
func (h *EvaluationHandler) HandleListForUsage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid token usage id format",
		})
	}

	evals, err := h.evalRepo.FindByTokenUsage(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list evaluations",
		})
	}

	return c.JSON(fiber.Map{"evaluations": evals})
}
