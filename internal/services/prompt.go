package services

import (
	"fmt"
	"strings"

	"alfredoptarigan/job-autopilot/internal/models"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildCoverLetterPrompt creates the prompt for cover letter generation.
func (pb *PromptBuilder) BuildCoverLetterPrompt(job *models.Job, kb *models.KnowledgeBase, ragContext string) string {
	if ragContext == "" {
		ragContext = "No additional context available."
	}

	template := kb.CoverLetterTemplate
	if template == "" {
		template = "No template provided; use a standard professional structure."
	}

	return fmt.Sprintf(`You are writing a cover letter on behalf of %s for the following job posting.

JOB:
Title: %s
Company: %s
Location: %s

DESCRIPTION:
%s

REQUIREMENTS:
%s

RELEVANT BACKGROUND (retrieved from the candidate's knowledge base):
%s

CANDIDATE'S PREFERRED STRUCTURE:
%s

Write a concise, specific cover letter (250-400 words). Only reference
experience, skills and projects that appear in the background above or in the
job posting. Never invent employers, dates or qualifications. Return ONLY the
letter text, no JSON and no commentary.`,
		kb.FullName, job.Title, job.Company, job.Location,
		job.Description, job.Requirements, ragContext, template)
}

// BuildFormAnswerPrompt creates the prompt for answering one application
// form question.
func (pb *PromptBuilder) BuildFormAnswerPrompt(question string, job *models.Job, ragContext string) string {
	if ragContext == "" {
		ragContext = "No additional context available."
	}

	return fmt.Sprintf(`You are completing a job application form for a %s position at %s.

QUESTION:
%s

RELEVANT BACKGROUND (retrieved from the candidate's knowledge base):
%s

Answer the question in the first person, truthfully, using only facts from
the background above. Keep it under 150 words. If the background does not
contain the answer, give a brief honest response rather than inventing one.
Return ONLY the answer text.`,
		job.Title, job.Company, question, ragContext)
}

// BuildJobExtractionPrompt creates the prompt for turning raw page text into
// structured job fields.
func (pb *PromptBuilder) BuildJobExtractionPrompt(rawText string) string {
	// Keep the raw page inside the prompt budget.
	if len(rawText) > 20000 {
		rawText = rawText[:20000]
	}

	return fmt.Sprintf(`You are a job posting extraction agent. Analyze the raw page text below and
extract the structured job fields. Ignore navigation, footers, similar-jobs
lists and advertisements.

Return ONLY valid JSON in exactly this shape:
{
  "title": "Job title",
  "company": "Company name",
  "location": "Location or 'Remote'",
  "job_type": "Full-time, Part-time, Contract, or null",
  "workplace_type": "Remote, Hybrid, On-site, or null",
  "description": "Clean summary of responsibilities",
  "requirements": "Clean summary of requirements and qualifications"
}

If a field is missing, use null. Do not guess.

RAW PAGE TEXT:
%s`, rawText)
}

// BuildResumeExtractionPrompt creates the prompt for parsing resume text
// into knowledge base sections.
func (pb *PromptBuilder) BuildResumeExtractionPrompt(resumeText string) string {
	if len(resumeText) > 30000 {
		resumeText = resumeText[:30000]
	}

	return fmt.Sprintf(`Extract structured profile data from this resume text.

Return ONLY valid JSON in exactly this shape:
{
  "full_name": "...",
  "email": "...",
  "phone": "...",
  "location": "...",
  "summary": "2-3 sentence professional summary",
  "work_experience": [{"title": "...", "company": "...", "duration": "...", "description": "..."}],
  "education": [{"degree": "...", "institution": "...", "field": "...", "year": "..."}],
  "skills": ["..."],
  "certifications": ["..."],
  "projects": [{"name": "...", "description": "...", "technologies": ["..."]}]
}

Use null for missing scalar fields and empty arrays for missing sections. Do
not invent information that is not in the resume.

RESUME TEXT:
%s`, resumeText)
}

// BuildEvaluationPrompt creates the judge prompt for auto_llm response
// evaluation.
func (pb *PromptBuilder) BuildEvaluationPrompt(question, response, context string) string {
	contextBlock := ""
	if context != "" {
		contextBlock = fmt.Sprintf("CONTEXT THE RESPONSE WAS GROUNDED ON:\n%s\n\n", context)
	}

	return fmt.Sprintf(`Evaluate this AI-generated response on a 1-5 scale for each criterion.

TASK / QUESTION:
%s

%sRESPONSE TO EVALUATE:
%s

Rate the following (1-5, where 5 is excellent):
1. Relevance: does it address the task?
2. Accuracy: is every stated fact supported by the context?
3. Completeness: does it cover the necessary points?
4. Conciseness: is it appropriately brief?
5. Professionalism: is it well written for a job application?

Also report whether the response states facts found in neither the task nor
the context (hallucination) and whether any content is inappropriate.

Respond ONLY with JSON in this exact format:
{
  "relevance_score": 4.5,
  "accuracy_score": 5.0,
  "completeness_score": 4.0,
  "conciseness_score": 3.5,
  "professionalism_score": 4.5,
  "overall_score": 4.3,
  "is_hallucination": false,
  "is_inappropriate": false,
  "notes": "Brief explanation"
}`, question, contextBlock, response)
}

// ExtractJSON pulls a JSON object or array out of text that may wrap it in
// markdown fences or prose.
func ExtractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")
	endObj := strings.LastIndex(text, "}")
	endArr := strings.LastIndex(text, "]")

	if startObj != -1 && endObj != -1 && endObj > startObj {
		return text[startObj : endObj+1]
	} else if startArr != -1 && endArr != -1 && endArr > startArr {
		return text[startArr : endArr+1]
	}

	return text
}
