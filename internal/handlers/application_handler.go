package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
	"alfredoptarigan/job-autopilot/internal/services"
)

type ApplicationHandler struct {
	appRepo   repositories.ApplicationRepository
	jobRepo   repositories.JobRepository
	usageRepo repositories.TokenUsageRepository
	pipeline  services.PipelineService
	worker    services.Worker
}

func NewApplicationHandler(
	appRepo repositories.ApplicationRepository,
	jobRepo repositories.JobRepository,
	usageRepo repositories.TokenUsageRepository,
	pipeline services.PipelineService,
	worker services.Worker,
) *ApplicationHandler {
	return &ApplicationHandler{
		appRepo:   appRepo,
		jobRepo:   jobRepo,
		usageRepo: usageRepo,
		pipeline:  pipeline,
		worker:    worker,
	}
}

// HandleCreate handles POST /applications. The application is created
// pending and picked up by the pipeline worker.
func (h *ApplicationHandler) HandleCreate(c *fiber.Ctx) error {
	var req models.CreateApplicationRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user_id format",
		})
	}
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job_id format",
		})
	}

	job, err := h.jobRepo.FindByID(jobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}
	if job.Status != models.JobStatusScraped {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Job is not ready for application (status: " + string(job.Status) + ")",
		})
	}

	// Form questions are stored on the application so the pipeline knows
	// what to answer.
	questions := make(map[string]string, len(req.FormQuestions))
	for _, question := range req.FormQuestions {
		if question != "" {
			questions[question] = ""
		}
	}
	encoded, err := json.Marshal(questions)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to encode form questions",
		})
	}

	app := &models.Application{
		ID:            uuid.New(),
		UserID:        userID,
		JobID:         &jobID,
		Status:        models.ApplicationStatusPending,
		FormResponses: datatypes.JSON(encoded),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := h.appRepo.Create(app); err != nil {
		if errors.Is(err, repositories.ErrDuplicateActive) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "An application for this job is already in progress",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create application",
		})
	}

	h.worker.EnqueueApplication(app.ID)

	return c.Status(fiber.StatusAccepted).JSON(applicationResponse(app))
}

// HandleGet handles GET /applications/:id
func (h *ApplicationHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid application id format",
		})
	}

	app, err := h.appRepo.FindByID(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Application not found",
		})
	}

	return c.JSON(app)
}

// HandleList handles GET /applications?status=applied&limit=20
func (h *ApplicationHandler) HandleList(c *fiber.Ctx) error {
	status := models.ApplicationStatus(c.Query("status", string(models.ApplicationStatusPending)))
	limit := c.QueryInt("limit", 20)

	apps, err := h.appRepo.FindByStatus(status, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list applications",
		})
	}

	responses := make([]models.ApplicationResponse, 0, len(apps))
	for i := range apps {
		responses = append(responses, applicationResponse(&apps[i]))
	}
	return c.JSON(fiber.Map{"applications": responses})
}

// HandleCancel handles POST /applications/:id/cancel. Applications that
// already reached submitting cannot be cancelled.
func (h *ApplicationHandler) HandleCancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid application id format",
		})
	}

	if err := h.pipeline.Cancel(id); err != nil {
		if errors.Is(err, repositories.ErrInvalidTransition) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Application can no longer be cancelled",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to cancel application",
		})
	}

	return c.JSON(fiber.Map{"message": "Application cancelled"})
}

// HandleUsage handles GET /applications/:id/usage, the per-application cost
// breakdown.
func (h *ApplicationHandler) HandleUsage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid application id format",
		})
	}

	usages, err := h.usageRepo.FindByApplication(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load usage",
		})
	}

	var totalCost float64
	var totalTokens int
	for _, u := range usages {
		totalCost += u.EstimatedCost
		totalTokens += u.TotalTokens
	}

	return c.JSON(fiber.Map{
		"usage":        usages,
		"total_cost":   totalCost,
		"total_tokens": totalTokens,
	})
}

func applicationResponse(app *models.Application) models.ApplicationResponse {
	resp := models.ApplicationResponse{
		ID:             app.ID.String(),
		Status:         string(app.Status),
		CoverLetter:    app.CoverLetter,
		AppliedAt:      app.AppliedAt,
		ErrorMessage:   app.ErrorMessage,
		ScreenshotPath: app.ScreenshotPath,
	}
	if app.JobID != nil {
		resp.JobID = app.JobID.String()
	}
	return resp
}
