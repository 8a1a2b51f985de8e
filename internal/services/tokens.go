package services

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// modelRate holds USD prices per million tokens.
type modelRate struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Per-model rate table for cost estimation. Models not listed (local models
// in particular) cost zero.
var modelRates = map[string]modelRate{
	"gemini-2.5-flash": {InputPerMTok: 0.30, OutputPerMTok: 2.50},
	"gemini-2.5-pro":   {InputPerMTok: 1.25, OutputPerMTok: 10.00},
	"gemini-2.0-flash": {InputPerMTok: 0.10, OutputPerMTok: 0.40},
}

// EstimateCost computes the estimated USD cost of a generation call from the
// per-model rate table. Only tokens actually billed count: a fully failed
// call has zero tokens and therefore zero cost.
func EstimateCost(modelName string, promptTokens, completionTokens int) float64 {
	rate, ok := modelRates[modelName]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1e6*rate.InputPerMTok +
		float64(completionTokens)/1e6*rate.OutputPerMTok
}

// MaxCompletionTokens is the generation cap used to bound the worst-case
// cost of a single call for budget reservation.
const MaxCompletionTokens = 4096

// WorstCaseCost is the maximum possible cost of one generation call given
// its prompt. Reserved against the budget before calling the provider; the
// unused remainder is released once actual usage is known.
func WorstCaseCost(modelName string, promptTokens int) float64 {
	return EstimateCost(modelName, promptTokens, MaxCompletionTokens)
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens counts tokens for a text. Used when the provider does not
// report usage (failed calls, budget pre-checks). Falls back to the rough
// 4-characters-per-token rule when the tokenizer is unavailable.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Printf("⚠️  Failed to load tokenizer, using character estimate: %v\n", err)
			return
		}
		encoding = enc
	})

	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}
