package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"alfredoptarigan/job-autopilot/internal/models"
	"alfredoptarigan/job-autopilot/internal/repositories"
)

// PageFetcher retrieves the visible text of a job posting page.
type PageFetcher interface {
	FetchPageText(ctx context.Context, url string) (string, error)
}

// JobScraper turns a job URL into structured job fields and persists the
// outcome on the job row.
type JobScraper interface {
	Scrape(ctx context.Context, jobID uuid.UUID) error
}

type jobScraper struct {
	fetcher   PageFetcher
	generator GeneratorService
	jobRepo   repositories.JobRepository
	prompts   *PromptBuilder
}

func NewJobScraper(fetcher PageFetcher, generator GeneratorService, jobRepo repositories.JobRepository) JobScraper {
	return &jobScraper{
		fetcher:   fetcher,
		generator: generator,
		jobRepo:   jobRepo,
		prompts:   NewPromptBuilder(),
	}
}

// extractedJob mirrors the JSON shape requested from the extraction model.
type extractedJob struct {
	Title         string `json:"title"`
	Company       string `json:"company"`
	Location      string `json:"location"`
	JobType       string `json:"job_type"`
	WorkplaceType string `json:"workplace_type"`
	Description   string `json:"description"`
	Requirements  string `json:"requirements"`
}

// Scrape implements JobScraper. Fetch failures and unusable extractions both
// move the job to failed with the cause preserved in the returned error; the
// pipeline never generates content against a job that did not scrape.
func (s *jobScraper) Scrape(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobRepo.FindByID(jobID)
	if err != nil {
		return err
	}

	pageText, err := s.fetcher.FetchPageText(ctx, job.URL)
	if err != nil {
		if markErr := s.jobRepo.MarkFailed(job.ID); markErr != nil {
			log.Printf("❌ Failed to mark job %s failed: %v\n", job.ID, markErr)
		}
		return &ScrapeError{URL: job.URL, Err: err}
	}

	fields, err := s.extractFields(ctx, job, pageText)
	if err != nil {
		if markErr := s.jobRepo.MarkFailed(job.ID); markErr != nil {
			log.Printf("❌ Failed to mark job %s failed: %v\n", job.ID, markErr)
		}
		return &ScrapeError{URL: job.URL, Err: err}
	}

	if err := s.jobRepo.MarkScraped(job.ID, fields); err != nil {
		return err
	}

	log.Printf("✅ Scraped job %s: %s at %s\n", job.ID, fields.Title, fields.Company)
	return nil
}

func (s *jobScraper) extractFields(ctx context.Context, job *models.Job, pageText string) (*repositories.ScrapedFields, error) {
	pageText = strings.TrimSpace(pageText)
	if pageText == "" {
		return nil, fmt.Errorf("page contained no text")
	}

	result, err := s.generator.Generate(ctx, &GenerationRequest{
		UserID:        job.UserID,
		JobID:         &job.ID,
		OperationType: models.OperationJobExtract,
		Endpoint:      "scraper/extract",
		Prompt:        s.prompts.BuildJobExtractionPrompt(pageText),
		Temperature:   0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	var extracted extractedJob
	if err := json.Unmarshal([]byte(ExtractJSON(result.Text)), &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	if extracted.Title == "" && extracted.Description == "" {
		return nil, fmt.Errorf("extraction produced no usable fields")
	}

	return &repositories.ScrapedFields{
		Title:         extracted.Title,
		Company:       extracted.Company,
		Location:      extracted.Location,
		JobType:       extracted.JobType,
		WorkplaceType: extracted.WorkplaceType,
		Description:   extracted.Description,
		Requirements:  extracted.Requirements,
	}, nil
}

type playwrightFetcher struct {
	headless bool
}

func NewPlaywrightFetcher(headless bool) PageFetcher {
	return &playwrightFetcher{headless: headless}
}

// FetchPageText implements PageFetcher. A fresh browser per fetch keeps the
// scraper stateless across postings.
func (f *playwrightFetcher) FetchPageText(ctx context.Context, url string) (string, error) {
	pw, err := playwright.Run()
	if err != nil {
		return "", fmt.Errorf("failed to start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.headless),
	})
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline).Milliseconds()
		if remaining <= 0 {
			return "", ctx.Err()
		}
		page.SetDefaultTimeout(float64(remaining))
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return "", fmt.Errorf("failed to open %s: %w", url, err)
	}

	text, err := page.Locator("body").TextContent()
	if err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}
