package models

import "time"

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

type CreateJobRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	URL    string `json:"url" validate:"required,url"`
}

type JobResponse struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Company   string     `json:"company"`
	Status    string     `json:"status"`
	ScrapedAt *time.Time `json:"scraped_at,omitempty"`
}

type CreateApplicationRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	JobID  string `json:"job_id" validate:"required,uuid"`
	// FormQuestions are the free-text questions on the application form; the
	// pipeline generates an answer for each.
	FormQuestions []string `json:"form_questions,omitempty"`
}

type ApplicationResponse struct {
	ID             string     `json:"id"`
	JobID          string     `json:"job_id,omitempty"`
	Status         string     `json:"status"`
	CoverLetter    string     `json:"cover_letter,omitempty"`
	AppliedAt      *time.Time `json:"applied_at,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	ScreenshotPath *string    `json:"screenshot_path,omitempty"`
}

type ManualEvaluationRequest struct {
	TokenUsageID         string   `json:"token_usage_id" validate:"required,uuid"`
	UserID               string   `json:"user_id" validate:"required,uuid"`
	RelevanceScore       *float64 `json:"relevance_score,omitempty"`
	AccuracyScore        *float64 `json:"accuracy_score,omitempty"`
	CompletenessScore    *float64 `json:"completeness_score,omitempty"`
	ConcisenessScore     *float64 `json:"conciseness_score,omitempty"`
	ProfessionalismScore *float64 `json:"professionalism_score,omitempty"`
	OverallScore         float64  `json:"overall_score" validate:"required"`
	EvaluatorNotes       string   `json:"evaluator_notes"`
	ExpectedAnswer       string   `json:"expected_answer"`
	NeedsImprovement     bool     `json:"needs_improvement"`
	IsHallucination      bool     `json:"is_hallucination"`
	IsInappropriate      bool     `json:"is_inappropriate"`
}

type UsageStatsResponse struct {
	TotalOperations       int64            `json:"total_operations"`
	TotalTokens           int64            `json:"total_tokens"`
	TotalPromptTokens     int64            `json:"total_prompt_tokens"`
	TotalCompletionTokens int64            `json:"total_completion_tokens"`
	TotalCost             float64          `json:"total_cost"`
	SuccessRate           float64          `json:"success_rate"`
	AvgResponseTimeMs     float64          `json:"avg_response_time_ms"`
	RagOperations         int64            `json:"rag_operations"`
	OperationsByType      map[string]int64 `json:"operations_by_type"`
	TokensByType          map[string]int64 `json:"tokens_by_type"`
}
