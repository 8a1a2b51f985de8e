package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"alfredoptarigan/job-autopilot/internal/models"
)

// SubmitRequest carries everything the browser needs to complete one
// application form.
type SubmitRequest struct {
	Application *models.Application
	Job         *models.Job
	// FormResponses maps question text to the generated answer.
	FormResponses map[string]string
	ResumePath    string
}

// SubmitResult is the outcome of one submission attempt. ScreenshotPath is
// set when the attempt failed and a screenshot could be captured.
type SubmitResult struct {
	Success        bool
	AppliedAt      time.Time
	ScreenshotPath *string
	Error          error
}

// FormSubmitter drives a browser through a job application form. The caller
// bounds the attempt with a context deadline; a submitter must honor
// cancellation and report an unambiguous outcome.
type FormSubmitter interface {
	Submit(ctx context.Context, req *SubmitRequest) *SubmitResult
}

type playwrightSubmitter struct {
	headless      bool
	screenshotDir string
}

func NewPlaywrightSubmitter(headless bool, screenshotDir string) FormSubmitter {
	return &playwrightSubmitter{
		headless:      headless,
		screenshotDir: screenshotDir,
	}
}

// Submit implements FormSubmitter. Each attempt launches a fresh browser so
// that no session state leaks between applications.
func (s *playwrightSubmitter) Submit(ctx context.Context, req *SubmitRequest) *SubmitResult {
	fail := func(err error) *SubmitResult {
		return &SubmitResult{Success: false, Error: err}
	}

	if req.Job == nil || req.Job.URL == "" {
		return fail(fmt.Errorf("application has no job URL to submit to"))
	}

	pw, err := playwright.Run()
	if err != nil {
		return fail(fmt.Errorf("failed to start playwright: %w", err))
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.headless),
	})
	if err != nil {
		return fail(fmt.Errorf("failed to launch browser: %w", err))
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return fail(fmt.Errorf("failed to open page: %w", err))
	}

	// The context deadline is the hard bound on the whole attempt; wire it
	// into playwright's own timeout so the browser gives up in time.
	timeoutMs := 60_000.0
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline).Milliseconds()
		if remaining <= 0 {
			return fail(ErrSubmitTimeout)
		}
		timeoutMs = float64(remaining)
	}
	page.SetDefaultTimeout(timeoutMs)

	done := make(chan *SubmitResult, 1)
	go func() {
		done <- s.fillAndSubmit(page, req)
	}()

	select {
	case <-ctx.Done():
		result := fail(fmt.Errorf("submission aborted: %w", ErrSubmitTimeout))
		result.ScreenshotPath = s.captureScreenshot(page, req.Application.ID.String())
		return result
	case result := <-done:
		if !result.Success && result.ScreenshotPath == nil {
			result.ScreenshotPath = s.captureScreenshot(page, req.Application.ID.String())
		}
		return result
	}
}

func (s *playwrightSubmitter) fillAndSubmit(page playwright.Page, req *SubmitRequest) *SubmitResult {
	fail := func(err error) *SubmitResult {
		return &SubmitResult{Success: false, Error: err}
	}

	if _, err := page.Goto(req.Job.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fail(fmt.Errorf("failed to open job page: %w", err))
	}

	if err := s.clickApply(page); err != nil {
		return fail(err)
	}

	if err := s.fillFields(page, req); err != nil {
		return fail(err)
	}

	if err := s.clickSubmit(page); err != nil {
		return fail(err)
	}

	// Give the site a moment to register the submission before we declare
	// success.
	page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})

	return &SubmitResult{Success: true, AppliedAt: time.Now()}
}

// clickApply finds and clicks the apply button on the posting page. Some
// postings land directly on the form, so a missing button is not fatal.
func (s *playwrightSubmitter) clickApply(page playwright.Page) error {
	selectors := []string{
		"button:has-text('Apply')",
		"a:has-text('Apply')",
		"button:has-text('Easy Apply')",
		"[data-testid='apply-button']",
	}
	for _, selector := range selectors {
		locator := page.Locator(selector).First()
		visible, err := locator.IsVisible()
		if err != nil || !visible {
			continue
		}
		if err := locator.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(5000),
		}); err == nil {
			page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
				State: playwright.LoadStateDomcontentloaded,
			})
			return nil
		}
	}
	log.Println("⚠️  No apply button found; assuming the form is already open")
	return nil
}

// fillFields matches generated answers to visible form inputs by label text
// and uploads the resume when a file input is present.
func (s *playwrightSubmitter) fillFields(page playwright.Page, req *SubmitRequest) error {
	if req.Application.CoverLetter != "" {
		coverLocator := page.Locator("textarea[name*='cover' i], textarea[id*='cover' i]").First()
		if visible, _ := coverLocator.IsVisible(); visible {
			if err := coverLocator.Fill(req.Application.CoverLetter); err != nil {
				return fmt.Errorf("failed to fill cover letter: %w", err)
			}
		}
	}

	for question, answer := range req.FormResponses {
		locator := page.
			Locator("label", playwright.PageLocatorOptions{
				HasText: truncateLabel(question),
			}).
			Locator("xpath=following::textarea[1] | following::input[@type='text'][1]").
			First()
		visible, err := locator.IsVisible()
		if err != nil || !visible {
			log.Printf("⚠️  No form field matched question %q; skipping\n", truncateLabel(question))
			continue
		}
		if err := locator.Fill(answer); err != nil {
			return fmt.Errorf("failed to fill answer for %q: %w", truncateLabel(question), err)
		}
	}

	if req.ResumePath != "" {
		fileLocator := page.Locator("input[type='file']").First()
		if visible, _ := fileLocator.IsVisible(); visible {
			if err := fileLocator.SetInputFiles(req.ResumePath); err != nil {
				return fmt.Errorf("failed to upload resume: %w", err)
			}
		}
	}

	return nil
}

func (s *playwrightSubmitter) clickSubmit(page playwright.Page) error {
	selectors := []string{
		"button[type='submit']",
		"button:has-text('Submit application')",
		"button:has-text('Submit')",
		"input[type='submit']",
	}
	for _, selector := range selectors {
		locator := page.Locator(selector).First()
		visible, err := locator.IsVisible()
		if err != nil || !visible {
			continue
		}
		if err := locator.Click(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no submit button found on the application form")
}

// captureScreenshot saves the current page for failure diagnosis. Best
// effort: a screenshot failure never masks the original error.
func (s *playwrightSubmitter) captureScreenshot(page playwright.Page, applicationID string) *string {
	if page == nil {
		return nil
	}
	if err := os.MkdirAll(s.screenshotDir, 0o755); err != nil {
		log.Printf("⚠️  Failed to create screenshot dir: %v\n", err)
		return nil
	}

	path := filepath.Join(s.screenshotDir,
		fmt.Sprintf("%s-%d.png", applicationID, time.Now().Unix()))
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		log.Printf("⚠️  Failed to capture screenshot: %v\n", err)
		return nil
	}
	return &path
}

func truncateLabel(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 60 {
		return text[:60]
	}
	return text
}

// DecodeFormResponses converts the stored JSON map back into question/answer
// pairs for submission.
func DecodeFormResponses(raw []byte) map[string]string {
	responses := make(map[string]string)
	if len(raw) == 0 {
		return responses
	}
	if err := json.Unmarshal(raw, &responses); err != nil {
		log.Printf("⚠️  Failed to decode form responses: %v\n", err)
	}
	return responses
}
