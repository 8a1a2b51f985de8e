package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"alfredoptarigan/job-autopilot/internal/models"
)

type ChunkKind string

const (
	ChunkExperience    ChunkKind = "experience"
	ChunkEducation     ChunkKind = "education"
	ChunkSkill         ChunkKind = "skill"
	ChunkCertification ChunkKind = "certification"
	ChunkProject       ChunkKind = "project"
	ChunkQA            ChunkKind = "qa"
	ChunkPreference    ChunkKind = "preference"
	ChunkSummary       ChunkKind = "summary"
)

// Chunk is an atomic unit of knowledge base content eligible for retrieval.
// Every structured section is projected onto the same (text, kind, updated)
// shape so the retrieval engine can treat them uniformly.
type Chunk struct {
	ID        string
	Kind      ChunkKind
	Text      string
	UpdatedAt time.Time
}

const maxChunkChars = 1000

type KnowledgeChunker interface {
	BuildChunks(kb *models.KnowledgeBase) []Chunk
}

type knowledgeChunker struct{}

func NewKnowledgeChunker() KnowledgeChunker {
	return &knowledgeChunker{}
}

// BuildChunks implements KnowledgeChunker. It decomposes the loosely
// structured knowledge base sections into atomic chunks. Entries carrying
// their own updated_at keep it; everything else inherits the knowledge base
// timestamp.
func (c *knowledgeChunker) BuildChunks(kb *models.KnowledgeBase) []Chunk {
	var chunks []Chunk

	if summary := strings.TrimSpace(kb.Summary); summary != "" {
		chunks = append(chunks, Chunk{
			ID:        "summary_0",
			Kind:      ChunkSummary,
			Text:      summary,
			UpdatedAt: kb.UpdatedAt,
		})
	}

	for i, entry := range decodeEntries(kb.WorkExperience) {
		text := joinFields(entry, []string{"title", "company", "duration", "description"})
		chunks = appendChunks(chunks, ChunkExperience, fmt.Sprintf("exp_%d", i), text, entryUpdatedAt(entry, kb.UpdatedAt))
	}

	for i, entry := range decodeEntries(kb.Education) {
		text := joinFields(entry, []string{"degree", "institution", "field", "year", "description"})
		chunks = appendChunks(chunks, ChunkEducation, fmt.Sprintf("edu_%d", i), text, entryUpdatedAt(entry, kb.UpdatedAt))
	}

	for i, skill := range decodeStringsOrEntries(kb.Skills, "skill") {
		chunks = appendChunks(chunks, ChunkSkill, fmt.Sprintf("skill_%d", i), skill, kb.UpdatedAt)
	}

	for i, cert := range decodeStringsOrEntries(kb.Certifications, "name") {
		chunks = appendChunks(chunks, ChunkCertification, fmt.Sprintf("cert_%d", i), cert, kb.UpdatedAt)
	}

	for i, entry := range decodeEntries(kb.Projects) {
		text := joinFields(entry, []string{"name", "role", "technologies", "description"})
		chunks = appendChunks(chunks, ChunkProject, fmt.Sprintf("proj_%d", i), text, entryUpdatedAt(entry, kb.UpdatedAt))
	}

	for i, entry := range decodeEntries(kb.QAPairs) {
		question := stringField(entry, "question")
		answer := stringField(entry, "answer")
		if question == "" && answer == "" {
			continue
		}
		text := fmt.Sprintf("Q: %s\nA: %s", question, answer)
		chunks = appendChunks(chunks, ChunkQA, fmt.Sprintf("qa_%d", i), text, entryUpdatedAt(entry, kb.UpdatedAt))
	}

	if prefs := decodeMap(kb.Preferences); len(prefs) > 0 {
		var parts []string
		for key, value := range prefs {
			parts = append(parts, fmt.Sprintf("%s: %v", key, value))
		}
		// Map iteration order is random; keep the chunk text stable.
		sort.Strings(parts)
		chunks = appendChunks(chunks, ChunkPreference, "pref_0", strings.Join(parts, "\n"), kb.UpdatedAt)
	}

	return chunks
}

func appendChunks(chunks []Chunk, kind ChunkKind, id, text string, updatedAt time.Time) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return chunks
	}

	if utf8.RuneCountInString(text) <= maxChunkChars {
		return append(chunks, Chunk{ID: id, Kind: kind, Text: text, UpdatedAt: updatedAt})
	}

	for j, part := range splitLongText(text, maxChunkChars) {
		chunks = append(chunks, Chunk{
			ID:        fmt.Sprintf("%s_part%d", id, j),
			Kind:      kind,
			Text:      part,
			UpdatedAt: updatedAt,
		})
	}
	return chunks
}

// splitLongText breaks oversized content on sentence boundaries, hard-cutting
// any single sentence that is itself longer than the cap. Sizes are measured
// in runes, matching the cap check in appendChunks.
func splitLongText(text string, maxSize int) []string {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})

	var parts []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, string(current))
			current = current[:0]
		}
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		runes := []rune(sentence)
		for len(runes) > maxSize {
			flush()
			parts = append(parts, string(runes[:maxSize]))
			runes = runes[maxSize:]
		}
		if len(runes) == 0 {
			continue
		}
		if len(current) > 0 && len(current)+len(runes)+2 > maxSize {
			flush()
		}
		if len(current) > 0 {
			current = append(current, '.', ' ')
		}
		current = append(current, runes...)
	}
	flush()
	return parts
}

func decodeEntries(raw []byte) []map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var entries []map[string]interface{}
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries
	}
	// Tolerate a map shape (e.g. qa_pairs stored as question -> answer).
	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil
	}
	keys := make([]string, 0, len(asMap))
	for key := range asMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	entries = make([]map[string]interface{}, 0, len(asMap))
	for _, key := range keys {
		entries = append(entries, map[string]interface{}{
			"question": key,
			"answer":   asMap[key],
		})
	}
	return entries
}

func decodeStringsOrEntries(raw []byte, field string) []string {
	if len(raw) == 0 {
		return nil
	}
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var out []string
	for _, entry := range decodeEntries(raw) {
		if value := stringField(entry, field); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func decodeMap(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func joinFields(entry map[string]interface{}, fields []string) string {
	var parts []string
	for _, field := range fields {
		if value := stringField(entry, field); value != "" {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, " - ")
}

func stringField(entry map[string]interface{}, field string) string {
	value, ok := entry[field]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		var parts []string
		for _, item := range v {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func entryUpdatedAt(entry map[string]interface{}, fallback time.Time) time.Time {
	if raw := stringField(entry, "updated_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return fallback
}
