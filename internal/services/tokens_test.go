package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCostKnownModel(t *testing.T) {
	// 1M prompt tokens at $0.30 plus 1M completion tokens at $2.50.
	cost := EstimateCost("gemini-2.5-flash", 1_000_000, 1_000_000)
	assert.InDelta(t, 2.80, cost, 1e-9)
}

func TestEstimateCostZeroTokens(t *testing.T) {
	assert.Zero(t, EstimateCost("gemini-2.5-flash", 0, 0))
}

func TestEstimateCostUnknownModelIsFree(t *testing.T) {
	assert.Zero(t, EstimateCost("local-llama", 1_000_000, 1_000_000))
}

func TestWorstCaseCostExceedsPromptOnlyCost(t *testing.T) {
	worst := WorstCaseCost("gemini-2.5-flash", 1000)
	actual := EstimateCost("gemini-2.5-flash", 1000, 500)
	assert.Greater(t, worst, actual)

	capped := EstimateCost("gemini-2.5-flash", 1000, MaxCompletionTokens)
	assert.InDelta(t, capped, worst, 1e-12)
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))

	short := EstimateTokens("hello world")
	long := EstimateTokens("hello world, this is a considerably longer piece of text about Go services")
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
}
