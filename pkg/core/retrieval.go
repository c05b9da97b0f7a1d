package core

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/quantself/engram-go/pkg/storage"
)

// RetrieveMemories retrieves memories for a query using multi-factor
// ranking.
//
// An empty query returns the most recent memories up to limit. Otherwise
// the query is embedded and every memory above the retention threshold is
// scored on five factors:
//
//	semantic similarity 40% + keyword match 25% + recency 15% +
//	importance/strength 15% + access frequency 5%
//
// Memories scoring above MinRetrievalScore are returned best first, and
// each returned memory has its access count and last-accessed time bumped.
//
// A limit of 0 or less falls back to MaxSearchResults.
func (e *Engine) RetrieveMemories(ctx context.Context, userID, query string, limit int) ([]*storage.Memory, error) {
	if limit <= 0 {
		limit = e.config.MaxSearchResults
	}

	allMemories, err := e.store.ListMemories(ctx, &storage.MemoryFilter{UserID: userID})
	if err != nil {
		return nil, NewEngineError("RetrieveMemories", err)
	}

	// Empty query: most recent first, no ranking and no access bump.
	if query == "" {
		if len(allMemories) > limit {
			allMemories = allMemories[:limit]
		}
		return allMemories, nil
	}

	queryEmbedding, embErr := e.embedder.Embed(ctx, query)
	if embErr != nil {
		e.logger.Warn("failed to embed query, ranking without similarity", "error", embErr)
	}

	type scoredMemory struct {
		memory *storage.Memory
		score  float64
	}

	var scored []scoredMemory
	for _, memory := range allMemories {
		if memory.Strength < e.config.MinStrengthThreshold {
			continue
		}

		score := e.calculateMemoryScore(memory, query, queryEmbedding, embErr == nil)
		if score > e.config.MinRetrievalScore {
			scored = append(scored, scoredMemory{memory, score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	var result []*storage.Memory
	for i, sm := range scored {
		if i >= limit {
			break
		}

		sm.memory.AccessCount++
		sm.memory.LastAccessed = time.Now()
		if err := e.store.SaveMemory(ctx, sm.memory); err != nil {
			e.logger.Warn("failed to record memory access", "memory", sm.memory.ID, "error", err)
		}

		result = append(result, sm.memory)
	}

	return result, nil
}

// calculateMemoryScore combines the five ranking factors for one memory.
func (e *Engine) calculateMemoryScore(memory *storage.Memory, query string, queryEmbedding []float64, useEmbedding bool) float64 {
	// Factor 1: semantic similarity (40% weight)
	semanticScore := 0.1 // floor when no usable vector
	if useEmbedding && len(memory.Embedding) > 0 {
		similarity := cosineSimilarity(queryEmbedding, memory.Embedding)
		if similarity > 0.3 { // only consider reasonable matches
			semanticScore = similarity
		}
	}

	// Factor 2: keyword matching (25% weight)
	keywordScore := calculateKeywordScore(memory, query)

	// Factor 3: recency (15% weight)
	recencyScore := calculateRecencyScore(memory.CreatedAt)

	// Factor 4: importance and strength (15% weight)
	importanceStrengthScore := (memory.Importance * 0.7) + (memory.Strength * 0.3)

	// Factor 5: access frequency (5% weight)
	accessScore := math.Min(float64(memory.AccessCount)/10.0, 1.0)

	return (semanticScore * 0.4) +
		(keywordScore * 0.25) +
		(recencyScore * 0.15) +
		(importanceStrengthScore * 0.15) +
		(accessScore * 0.05)
}

// calculateRecencyScore decays exponentially with a 30-day scale.
func calculateRecencyScore(t time.Time) float64 {
	daysSince := time.Since(t).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}
	return math.Exp(-daysSince / 30)
}

// calculateKeywordScore scores direct text matches between the query and
// the memory. A title substring match dominates, then a content substring
// match, then the fraction of non-trivial query tokens found anywhere.
func calculateKeywordScore(memory *storage.Memory, query string) float64 {
	content := strings.ToLower(memory.Content)
	title := strings.ToLower(memory.Title)
	queryLower := strings.ToLower(query)

	if strings.Contains(title, queryLower) {
		return 1.0
	}
	if strings.Contains(content, queryLower) {
		return 0.9
	}

	keywords := strings.Fields(queryLower)
	matchCount := 0
	filteredCount := 0

	for _, keyword := range keywords {
		keyword = strings.Trim(keyword, `.,!?():;"'`)
		if len(keyword) <= 2 || isStopWord(keyword) {
			continue
		}
		filteredCount++
		if strings.Contains(content, keyword) || strings.Contains(title, keyword) {
			matchCount++
		}
	}

	if filteredCount > 0 {
		return float64(matchCount) / float64(filteredCount)
	}
	return 0.0
}
