package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
	"alfredoptarigan/job-autopilot/internal/services"
)

type KnowledgeHandler struct {
	kbRepo    repositories.KnowledgeBaseRepository
	userRepo  repositories.UserRepository
	retrieval services.RetrievalService
	parser    services.ResumeParserService
	storage   services.StorageService
}

func NewKnowledgeHandler(
	kbRepo repositories.KnowledgeBaseRepository,
	userRepo repositories.UserRepository,
	retrieval services.RetrievalService,
	parser services.ResumeParserService,
	storage services.StorageService,
) *KnowledgeHandler {
	return &KnowledgeHandler{
		kbRepo:    kbRepo,
		userRepo:  userRepo,
		retrieval: retrieval,
		parser:    parser,
		storage:   storage,
	}
}

// HandleUpsert handles PUT /knowledge/:userId. The whole knowledge base is
// replaced and reindexed.
func (h *KnowledgeHandler) HandleUpsert(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user id format",
		})
	}
	if _, err := h.userRepo.FindByID(userID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	var kb models.KnowledgeBase
	if err := c.BodyParser(&kb); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}
	kb.UserID = userID
	kb.UpdatedAt = time.Now()

	if err := h.kbRepo.Upsert(&kb); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save knowledge base",
		})
	}

	indexed, err := h.retrieval.IndexKnowledgeBase(c.Context(), &kb)
	if err != nil {
		log.Printf("⚠️  Failed to reindex knowledge base for user %s: %v\n", userID, err)
	} else if err := h.kbRepo.SetEmbeddingID(kb.ID, kb.ID.String()); err != nil {
		log.Printf("⚠️  Failed to record embedding id: %v\n", err)
	}

	return c.JSON(fiber.Map{
		"message":        "Knowledge base saved",
		"chunks_indexed": indexed,
	})
}

// HandleGet handles GET /knowledge/:userId
func (h *KnowledgeHandler) HandleGet(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user id format",
		})
	}

	kb, err := h.kbRepo.FindByUserID(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Knowledge base not found",
		})
	}

	return c.JSON(kb)
}

// HandleResumeUpload handles POST /knowledge/:userId/resume. The PDF is
// stored, parsed into the knowledge base and the index refreshed.
func (h *KnowledgeHandler) HandleResumeUpload(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user id format",
		})
	}
	if _, err := h.userRepo.FindByID(userID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	file, err := c.FormFile("resume")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resume file is required",
		})
	}

	filename, filePath, err := h.storage.SaveResume(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	kb, err := h.parser.ParseIntoKnowledgeBase(c.Context(), userID, filePath)
	if err != nil {
		h.storage.DeleteFile(filename)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to parse resume: " + err.Error(),
		})
	}

	indexed, err := h.retrieval.IndexKnowledgeBase(c.Context(), kb)
	if err != nil {
		log.Printf("⚠️  Failed to reindex knowledge base for user %s: %v\n", userID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":        "Resume parsed into knowledge base",
		"resume_path":    filePath,
		"chunks_indexed": indexed,
	})
}
