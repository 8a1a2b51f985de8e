package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"gorm.io/datatypes"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
)

// ResumeParserService extracts text from an uploaded resume PDF and folds
// the structured profile data into the user's knowledge base.
type ResumeParserService interface {
	ExtractText(filePath string) (string, error)
	ParseIntoKnowledgeBase(ctx context.Context, userID uuid.UUID, filePath string) (*models.KnowledgeBase, error)
}

type resumeParserService struct {
	generator GeneratorService
	kbRepo    repositories.KnowledgeBaseRepository
	prompts   *PromptBuilder
}

func NewResumeParserService(generator GeneratorService, kbRepo repositories.KnowledgeBaseRepository) ResumeParserService {
	return &resumeParserService{
		generator: generator,
		kbRepo:    kbRepo,
		prompts:   NewPromptBuilder(),
	}
}

// ExtractText implements ResumeParserService.
func (p *resumeParserService) ExtractText(filePath string) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages, the rest may still parse
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	text := textBuilder.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content found in PDF")
	}

	return text, nil
}

// parsedResume mirrors the JSON shape requested from the extraction model.
type parsedResume struct {
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Location       string          `json:"location"`
	Summary        string          `json:"summary"`
	WorkExperience json.RawMessage `json:"work_experience"`
	Education      json.RawMessage `json:"education"`
	Skills         json.RawMessage `json:"skills"`
	Certifications json.RawMessage `json:"certifications"`
	Projects       json.RawMessage `json:"projects"`
}

// ParseIntoKnowledgeBase implements ResumeParserService. Parsed fields only
// fill gaps in an existing knowledge base; values the user entered by hand
// are never overwritten by a resume upload.
func (p *resumeParserService) ParseIntoKnowledgeBase(ctx context.Context, userID uuid.UUID, filePath string) (*models.KnowledgeBase, error) {
	resumeText, err := p.ExtractText(filePath)
	if err != nil {
		return nil, err
	}

	result, err := p.generator.Generate(ctx, &GenerationRequest{
		UserID:        userID,
		OperationType: models.OperationResumeParse,
		Endpoint:      "resume/parse",
		Prompt:        p.prompts.BuildResumeExtractionPrompt(resumeText),
		Temperature:   0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("resume extraction call failed: %w", err)
	}

	var parsed parsedResume
	if err := json.Unmarshal([]byte(ExtractJSON(result.Text)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse resume extraction response: %w", err)
	}

	kb, err := p.kbRepo.FindByUserID(userID)
	if err != nil {
		if err != repositories.ErrNotFound {
			return nil, err
		}
		kb = &models.KnowledgeBase{ID: uuid.New(), UserID: userID}
	}

	mergeScalar(&kb.FullName, parsed.FullName)
	mergeScalar(&kb.Email, parsed.Email)
	mergeScalar(&kb.Phone, parsed.Phone)
	mergeScalar(&kb.Location, parsed.Location)
	mergeScalar(&kb.Summary, parsed.Summary)
	mergeSection(&kb.WorkExperience, parsed.WorkExperience)
	mergeSection(&kb.Education, parsed.Education)
	mergeSection(&kb.Skills, parsed.Skills)
	mergeSection(&kb.Certifications, parsed.Certifications)
	mergeSection(&kb.Projects, parsed.Projects)
	kb.ResumePath = filePath

	if err := p.kbRepo.Upsert(kb); err != nil {
		return nil, err
	}

	log.Printf("✅ Resume parsed into knowledge base for user %s\n", userID)
	return kb, nil
}

func mergeScalar(dst *string, parsed string) {
	if *dst == "" && parsed != "" {
		*dst = parsed
	}
}

func mergeSection(dst *datatypes.JSON, parsed json.RawMessage) {
	if len(*dst) > 0 || len(parsed) == 0 || string(parsed) == "null" {
		return
	}
	*dst = datatypes.JSON(parsed)
}
