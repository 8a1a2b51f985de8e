package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
	"alfredoptarigan/job-autopilot/internal/services"
)

type JobHandler struct {
	jobRepo  repositories.JobRepository
	userRepo repositories.UserRepository
	worker   services.Worker
}

func NewJobHandler(
	jobRepo repositories.JobRepository,
	userRepo repositories.UserRepository,
	worker services.Worker,
) *JobHandler {
	return &JobHandler{
		jobRepo:  jobRepo,
		userRepo: userRepo,
		worker:   worker,
	}
}

// HandleCreate handles POST /jobs. The job is created pending and handed to
// the scraper asynchronously.
func (h *JobHandler) HandleCreate(c *fiber.Ctx) error {
	var req models.CreateJobRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user_id format",
		})
	}
	if _, err := h.userRepo.FindByID(userID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	job := &models.Job{
		ID:        uuid.New(),
		UserID:    userID,
		URL:       req.URL,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := h.jobRepo.Create(job); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create job",
		})
	}

	h.worker.EnqueueScrape(job.ID)

	return c.Status(fiber.StatusAccepted).JSON(jobResponse(job))
}

// HandleGet handles GET /jobs/:id
func (h *JobHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id format",
		})
	}

	job, err := h.jobRepo.FindByID(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	return c.JSON(job)
}

// HandleList handles GET /jobs?status=scraped&limit=20
func (h *JobHandler) HandleList(c *fiber.Ctx) error {
	status := models.JobStatus(c.Query("status", string(models.JobStatusScraped)))
	limit := c.QueryInt("limit", 20)

	jobs, err := h.jobRepo.FindByStatus(status, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list jobs",
		})
	}

	responses := make([]models.JobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, jobResponse(&jobs[i]))
	}
	return c.JSON(fiber.Map{"jobs": responses})
}

// HandleSkip handles POST /jobs/:id/skip
func (h *JobHandler) HandleSkip(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id format",
		})
	}

	if err := h.jobRepo.UpdateStatus(id, models.JobStatusSkipped); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Job skipped"})
}

// HandleDelete handles DELETE /jobs/:id
func (h *JobHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id format",
		})
	}

	if err := h.jobRepo.Delete(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Job deleted"})
}

func jobResponse(job *models.Job) models.JobResponse {
	return models.JobResponse{
		ID:        job.ID.String(),
		URL:       job.URL,
		Title:     job.Title,
		Company:   job.Company,
		Status:    string(job.Status),
		ScrapedAt: job.ScrapedAt,
	}
}
