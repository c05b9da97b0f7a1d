package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quantself/engram-go/pkg/storage"
)

// ConsolidateMemories runs one maintenance pass over a user's memories:
// it decays memory strength by type-weighted forgetting curves, links
// related recent memories, distills recurring groups into semantic
// pattern memories, and optionally generates insights.
//
// Runs are rate limited per user by Config.ConsolidationInterval and
// serialized per user, so concurrent callers cannot interleave passes.
// A Process record tracks each run's outcome.
func (e *Engine) ConsolidateMemories(ctx context.Context, userID string) error {
	if userID == "" {
		return NewEngineError("ConsolidateMemories", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}

	if !e.consolidationDue(userID) {
		return nil
	}

	lock := e.consolidationLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// A concurrent caller may have finished a pass while this one waited
	// on the lock, so the interval has to hold after acquisition too.
	if !e.consolidationDue(userID) {
		return nil
	}

	now := time.Now()
	process := &storage.Process{
		ID:        e.node.Generate().String(),
		UserID:    userID,
		Type:      "consolidation",
		StartTime: now,
		Status:    storage.ProcessInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.SaveProcess(ctx, process); err != nil {
		return NewEngineError("ConsolidateMemories", fmt.Errorf("failed to record consolidation process: %w", err))
	}

	var itemsProcessed, itemsCreated, itemsModified int

	completeProcess := func(status storage.ProcessStatus, logLine string) {
		end := time.Now()
		process.EndTime = &end
		process.Status = status
		process.ItemsProcessed = itemsProcessed
		process.ItemsCreated = itemsCreated
		process.ItemsModified = itemsModified
		process.Log = append(process.Log, logLine)
		process.UpdatedAt = end
		if err := e.store.SaveProcess(ctx, process); err != nil {
			e.logger.Warn("failed to update consolidation process", "process", process.ID, "error", err)
		}

		e.mu.Lock()
		e.lastConsolidation[userID] = time.Now()
		e.mu.Unlock()
	}

	memories, err := e.store.ListMemories(ctx, &storage.MemoryFilter{UserID: userID})
	if err != nil {
		completeProcess(storage.ProcessFailed, fmt.Sprintf("Failed to retrieve memories: %v", err))
		return NewEngineError("ConsolidateMemories", fmt.Errorf("failed to retrieve memories: %w", err))
	}

	// ListMemories returns newest first, so truncating keeps the most
	// recent memories when a user has more than one pass can handle.
	if len(memories) > e.config.MaxMemoriesPerConsolidation {
		memories = memories[:e.config.MaxMemoriesPerConsolidation]
	}

	for _, memory := range memories {
		if e.decayMemory(ctx, memory) {
			itemsModified++
		}
		itemsProcessed++
	}

	recentCutoff := time.Now().AddDate(0, 0, -e.config.RecentDays)
	var recent []*storage.Memory
	for _, memory := range memories {
		if memory.CreatedAt.After(recentCutoff) {
			recent = append(recent, memory)
		}
	}

	groups := e.groupRelatedMemories(recent)
	for _, group := range groups {
		if len(group) > 1 {
			for i := 0; i < len(group); i++ {
				for j := i + 1; j < len(group); j++ {
					err := e.CreateConnection(ctx, userID,
						storage.NodeMemory, group[i].ID,
						storage.NodeMemory, group[j].ID,
						storage.ConnectionRelatedTo, 0.7)
					if err != nil {
						e.logger.Warn("failed to connect related memories", "error", err)
					} else {
						itemsCreated++
					}
				}
			}
		}

		if len(group) >= 3 {
			itemsCreated += e.distillPattern(ctx, userID, group)
		}
	}

	if e.config.EnableInsights {
		insights, err := e.generateInsights(ctx, userID)
		if err != nil {
			e.logger.Warn("insight generation failed", "user", userID, "error", err)
		} else {
			itemsCreated += len(insights)
		}
	}

	completeProcess(storage.ProcessCompleted, "Successfully consolidated memories")

	e.logger.Info("consolidated memories",
		"user", userID,
		"processed", itemsProcessed,
		"created", itemsCreated,
		"modified", itemsModified)
	return nil
}

// consolidationDue reports whether the user's consolidation interval has
// elapsed since the last completed pass.
func (e *Engine) consolidationDue(userID string) bool {
	e.mu.RLock()
	last, ran := e.lastConsolidation[userID]
	e.mu.RUnlock()
	if ran && time.Since(last) < e.config.ConsolidationInterval {
		e.logger.Debug("skipping consolidation, interval not elapsed", "user", userID, "last_run", last)
		return false
	}
	return true
}

// consolidationLock returns the per-user mutex, creating it on first use.
func (e *Engine) consolidationLock(userID string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	lock, ok := e.consolidationLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.consolidationLocks[userID] = lock
	}
	return lock
}

// decayMemory applies an exponential forgetting curve to one memory and
// persists the new strength when it moved meaningfully. Episodic memories
// fade fastest, procedural slowest, and frequently accessed or important
// memories are more stable. Reports whether the memory was updated.
func (e *Engine) decayMemory(ctx context.Context, memory *storage.Memory) bool {
	daysSinceAccess := time.Since(memory.LastAccessed).Hours() / 24
	if daysSinceAccess <= 0 {
		return false
	}

	decayRate := e.config.DecayRate
	switch memory.Type {
	case storage.MemoryTypeEpisodic:
		decayRate *= 1.2
	case storage.MemoryTypeSemantic:
		decayRate *= 0.7
	case storage.MemoryTypeProcedural:
		decayRate *= 0.5
	}

	stability := 5.0 + float64(memory.AccessCount) + memory.Importance*10.0
	newStrength := memory.Strength * math.Exp(-daysSinceAccess*decayRate/stability)

	if math.Abs(newStrength-memory.Strength) <= 0.01 {
		return false
	}

	memory.Strength = newStrength
	memory.UpdatedAt = time.Now()
	if err := e.store.SaveMemory(ctx, memory); err != nil {
		e.logger.Warn("failed to save decayed memory", "memory", memory.ID, "error", err)
		return false
	}
	return true
}

// distillPattern creates a semantic pattern memory summarizing a group of
// related memories and links each member to it. Returns the number of
// records created.
func (e *Engine) distillPattern(ctx context.Context, userID string, group []*storage.Memory) int {
	commonTags := findCommonTags(group)
	if len(commonTags) == 0 {
		return 0
	}

	var excerpts []string
	for i, memory := range group {
		if i >= 3 {
			break
		}
		excerpts = append(excerpts, extractExcerpt(memory.Content, 50))
	}

	title := fmt.Sprintf("Pattern: %s", strings.Join(commonTags, ", "))
	content := "A pattern has been identified across multiple memories. " +
		fmt.Sprintf("Examples include: %s", strings.Join(excerpts, "; "))

	now := time.Now()
	patternMemory := &storage.Memory{
		ID:           e.node.Generate().String(),
		UserID:       userID,
		Type:         storage.MemoryTypeSemantic,
		Title:        title,
		Content:      content,
		Importance:   0.7,
		Strength:     1.0,
		LastAccessed: now,
		TemporalContext: map[string]interface{}{
			"created_at":   now,
			"pattern_size": len(group),
		},
		Tags:      append([]string{"pattern"}, commonTags...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	embedding, err := e.embedder.Embed(ctx, title+" "+content)
	if err != nil {
		e.logger.Warn("failed to embed pattern memory", "error", err)
	} else {
		patternMemory.Embedding = embedding
	}

	if err := e.store.SaveMemory(ctx, patternMemory); err != nil {
		e.logger.Warn("failed to save pattern memory", "error", err)
		return 0
	}

	created := 1
	for _, memory := range group {
		err := e.CreateConnection(ctx, userID,
			storage.NodeMemory, memory.ID,
			storage.NodeMemory, patternMemory.ID,
			storage.ConnectionPartOfPattern, 0.75)
		if err != nil {
			e.logger.Warn("failed to connect memory to pattern", "error", err)
		} else {
			created++
		}
	}
	return created
}

// groupRelatedMemories partitions memories into related groups, trying
// embedding-space clustering first, then shared tags, then title and
// content word overlap. Each memory appears in at most one group.
func (e *Engine) groupRelatedMemories(memories []*storage.Memory) [][]*storage.Memory {
	var groups [][]*storage.Memory
	processed := make(map[string]bool)

	if e.config.EnableSemanticClustering {
		var embedded []*storage.Memory
		for _, memory := range memories {
			if len(memory.Embedding) > 0 {
				embedded = append(embedded, memory)
			}
		}

		if len(embedded) >= 5 {
			for i, memory := range embedded {
				if processed[memory.ID] {
					continue
				}
				group := []*storage.Memory{memory}
				processed[memory.ID] = true

				for _, other := range embedded[i+1:] {
					if processed[other.ID] {
						continue
					}
					if cosineSimilarity(memory.Embedding, other.Embedding) >= e.config.MinSimilarityThreshold {
						group = append(group, other)
						processed[other.ID] = true
					}
				}
				groups = append(groups, group)
			}
		}
	}

	// Tag grouping over whatever embedding clustering left behind.
	tagGroups := make(map[string][]*storage.Memory)
	for _, memory := range memories {
		if processed[memory.ID] {
			continue
		}
		for _, tag := range memory.Tags {
			if tag == "daily_log" || tag == "app_usage" {
				continue
			}
			tagGroups[tag] = append(tagGroups[tag], memory)
		}
	}
	for _, tagged := range tagGroups {
		if len(tagged) < 3 {
			continue
		}
		var group []*storage.Memory
		for _, memory := range tagged {
			if processed[memory.ID] {
				continue
			}
			group = append(group, memory)
			processed[memory.ID] = true
		}
		if len(group) >= 2 {
			groups = append(groups, group)
		}
	}

	// Text similarity for the stragglers.
	for i, memory := range memories {
		if processed[memory.ID] {
			continue
		}
		group := []*storage.Memory{memory}
		processed[memory.ID] = true

		for _, other := range memories[i+1:] {
			if processed[other.ID] {
				continue
			}
			similarity := textSimilarity(memory.Title+" "+memory.Content, other.Title+" "+other.Content)
			if similarity >= e.config.MinSimilarityThreshold {
				group = append(group, other)
				processed[other.ID] = true
			}
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}

	return groups
}

// findCommonTags returns the tags shared by at least half of a group
// (minimum two memories), excluding collection tags that would group
// everything together.
func findCommonTags(group []*storage.Memory) []string {
	counts := make(map[string]int)
	for _, memory := range group {
		seen := make(map[string]bool)
		for _, tag := range memory.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			counts[tag]++
		}
	}

	threshold := len(group) / 2
	if threshold < 2 {
		threshold = 2
	}

	var common []string
	for tag, count := range counts {
		if count >= threshold && tag != "daily_log" && tag != "app_usage" {
			common = append(common, tag)
		}
	}
	sort.Strings(common)
	return common
}
