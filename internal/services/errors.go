package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNoContext signals that the knowledge base had zero usable chunks.
	// Non-fatal: generation proceeds without RAG context.
	ErrNoContext = errors.New("no knowledge base context available")

	// ErrCancelled marks an application failed by explicit external request.
	ErrCancelled = errors.New("application cancelled")

	// ErrSubmitTimeout marks a submission that exceeded the browser timeout.
	ErrSubmitTimeout = errors.New("form submission timed out")
)

// ProviderError wraps a failure from the language model provider. Transient
// failures (timeouts, rate limits) are retried with backoff; everything else
// propagates immediately.
type ProviderError struct {
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// ScrapeError wraps a scraping failure for a job URL. The job moves to
// failed; the pipeline does not retry scraping.
type ScrapeError struct {
	URL string
	Err error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("failed to scrape %s: %v", e.URL, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}
