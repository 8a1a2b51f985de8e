package services

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"alfredoptarigan/job-autopilot/internal/models"
)

func TestBuildChunksDecomposesSections(t *testing.T) {
	kb := &models.KnowledgeBase{
		Summary: "Backend engineer with eight years of Go experience.",
		WorkExperience: datatypes.JSON(`[
			{"title": "Senior Engineer", "company": "Acme", "duration": "2020-2024", "description": "Built the billing platform."},
			{"title": "Engineer", "company": "Initech", "duration": "2017-2020", "description": "Payments integrations."}
		]`),
		Education: datatypes.JSON(`[
			{"degree": "BSc", "institution": "State University", "field": "Computer Science", "year": "2017"}
		]`),
		Skills:    datatypes.JSON(`["Go", "PostgreSQL", "Kubernetes"]`),
		QAPairs:   datatypes.JSON(`[{"question": "Why this role?", "answer": "I want to work on infrastructure."}]`),
		UpdatedAt: time.Now(),
	}

	chunks := NewKnowledgeChunker().BuildChunks(kb)

	kinds := map[ChunkKind]int{}
	for _, chunk := range chunks {
		kinds[chunk.Kind]++
	}
	assert.Equal(t, 1, kinds[ChunkSummary])
	assert.Equal(t, 2, kinds[ChunkExperience])
	assert.Equal(t, 1, kinds[ChunkEducation])
	assert.Equal(t, 3, kinds[ChunkSkill])
	assert.Equal(t, 1, kinds[ChunkQA])
}

func TestBuildChunksEmptyKnowledgeBase(t *testing.T) {
	chunks := NewKnowledgeChunker().BuildChunks(&models.KnowledgeBase{})
	assert.Empty(t, chunks)
}

func TestBuildChunksExperienceTextJoinsFields(t *testing.T) {
	kb := &models.KnowledgeBase{
		WorkExperience: datatypes.JSON(`[{"title": "Engineer", "company": "Acme", "description": "Shipped things."}]`),
		UpdatedAt:      time.Now(),
	}

	chunks := NewKnowledgeChunker().BuildChunks(kb)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "Engineer")
	assert.Contains(t, chunks[0].Text, "Acme")
	assert.Contains(t, chunks[0].Text, "Shipped things.")
}

func TestBuildChunksEntryTimestampOverridesFallback(t *testing.T) {
	fallback := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	kb := &models.KnowledgeBase{
		WorkExperience: datatypes.JSON(`[{"title": "Engineer", "company": "Acme", "updated_at": "2025-06-15T00:00:00Z"}]`),
		UpdatedAt:      fallback,
	}

	chunks := NewKnowledgeChunker().BuildChunks(kb)
	require.Len(t, chunks, 1)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), chunks[0].UpdatedAt)
}

func TestBuildChunksSplitsOversizedContent(t *testing.T) {
	long := strings.Repeat("This sentence fills the description with repeated content. ", 60)
	kb := &models.KnowledgeBase{
		WorkExperience: datatypes.JSON(`[{"title": "Engineer", "description": "` + strings.TrimSpace(long) + `"}]`),
		UpdatedAt:      time.Now(),
	}

	chunks := NewKnowledgeChunker().BuildChunks(kb)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Text), maxChunkChars+2)
	}
}

func TestBuildChunksHardSplitsUnpunctuatedContent(t *testing.T) {
	// One 2500-rune run with no sentence boundaries at all.
	long := strings.Repeat("x", 2500)
	kb := &models.KnowledgeBase{
		WorkExperience: datatypes.JSON(`[{"title": "Engineer", "description": "` + long + `"}]`),
		UpdatedAt:      time.Now(),
	}

	chunks := NewKnowledgeChunker().BuildChunks(kb)
	require.Len(t, chunks, 3)
	total := 0
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Text), maxChunkChars)
		total += utf8.RuneCountInString(chunk.Text)
	}
	assert.GreaterOrEqual(t, total, 2500)
}

func TestBuildChunksSplitCapCountsRunes(t *testing.T) {
	// Multibyte content: 1500 runes but 3000 bytes.
	long := strings.Repeat("é", 1500)
	kb := &models.KnowledgeBase{
		WorkExperience: datatypes.JSON(`[{"title": "Engineer", "description": "` + long + `"}]`),
		UpdatedAt:      time.Now(),
	}

	chunks := NewKnowledgeChunker().BuildChunks(kb)
	require.Len(t, chunks, 2)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Text), maxChunkChars)
	}
}

func TestBuildChunksQAPairsTolerateMapShape(t *testing.T) {
	kb := &models.KnowledgeBase{
		QAPairs:   datatypes.JSON(`{"Why us?": "Because of the mission.", "Notice period?": "Two weeks."}`),
		UpdatedAt: time.Now(),
	}

	chunks := NewKnowledgeChunker().BuildChunks(kb)
	require.Len(t, chunks, 2)
	// Map-shaped input still yields a deterministic order.
	assert.Contains(t, chunks[0].Text, "Notice period?")
	assert.Contains(t, chunks[1].Text, "Why us?")
}

func TestBuildChunksPreferencesAreStable(t *testing.T) {
	kb := &models.KnowledgeBase{
		Preferences: datatypes.JSON(`{"remote": "required", "salary": "90k+", "location": "Berlin"}`),
		UpdatedAt:   time.Now(),
	}

	chunker := NewKnowledgeChunker()
	first := chunker.BuildChunks(kb)
	require.Len(t, first, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first[0].Text, chunker.BuildChunks(kb)[0].Text)
	}
}
