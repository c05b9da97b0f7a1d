package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantself/engram-go/pkg/storage"
)

func saveMemoryAt(t *testing.T, store storage.Store, id, userID string, memType storage.MemoryType, when time.Time, tags []string) *storage.Memory {
	t.Helper()
	memory := &storage.Memory{
		ID:           id,
		UserID:       userID,
		Type:         memType,
		Title:        "Memory " + id,
		Content:      "Content of memory " + id,
		Importance:   0.5,
		Strength:     1.0,
		LastAccessed: when,
		Tags:         tags,
		CreatedAt:    when,
		UpdatedAt:    when,
	}
	require.NoError(t, store.SaveMemory(context.Background(), memory))
	return memory
}

func TestConsolidateMemoriesDecays(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	tenDaysAgo := time.Now().AddDate(0, 0, -10)
	saveMemoryAt(t, store, "ep1", "u1", storage.MemoryTypeEpisodic, tenDaysAgo, nil)
	saveMemoryAt(t, store, "pr1", "u1", storage.MemoryTypeProcedural, tenDaysAgo, nil)

	require.NoError(t, engine.ConsolidateMemories(ctx, "u1"))

	episodic, err := store.GetMemory(ctx, "u1", "ep1")
	require.NoError(t, err)
	procedural, err := store.GetMemory(ctx, "u1", "pr1")
	require.NoError(t, err)

	assert.Less(t, episodic.Strength, 1.0)
	assert.Less(t, procedural.Strength, 1.0)
	assert.Less(t, episodic.Strength, procedural.Strength,
		"episodic memories decay faster than procedural ones")
	assert.Greater(t, episodic.Strength, 0.0)
}

func TestConsolidateMemoriesRecordsProcess(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	saveMemoryAt(t, store, "m1", "u1", storage.MemoryTypeEpisodic, time.Now().AddDate(0, 0, -10), nil)

	require.NoError(t, engine.ConsolidateMemories(ctx, "u1"))

	processes := store.Processes("u1")
	require.Len(t, processes, 1)
	process := processes[0]
	assert.Equal(t, "consolidation", process.Type)
	assert.Equal(t, storage.ProcessCompleted, process.Status)
	require.NotNil(t, process.EndTime)
	assert.Equal(t, 1, process.ItemsProcessed)
	assert.Equal(t, 1, process.ItemsModified)
	assert.NotEmpty(t, process.Log)
}

func TestConsolidateMemoriesRespectsInterval(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	saveMemoryAt(t, store, "m1", "u1", storage.MemoryTypeEpisodic, time.Now(), nil)

	require.NoError(t, engine.ConsolidateMemories(ctx, "u1"))
	require.NoError(t, engine.ConsolidateMemories(ctx, "u1"), "second run inside the interval is a no-op")

	assert.Len(t, store.Processes("u1"), 1)
}

func TestConsolidateMemoriesRechecksIntervalAfterLock(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	saveMemoryAt(t, store, "m1", "u1", storage.MemoryTypeEpisodic, time.Now(), nil)

	// Hold the per-user lock so a concurrent call blocks after passing
	// the first interval check, then record a completed pass before
	// releasing. The blocked call must notice it and skip.
	lock := engine.consolidationLock("u1")
	lock.Lock()

	done := make(chan error, 1)
	go func() { done <- engine.ConsolidateMemories(ctx, "u1") }()

	engine.mu.Lock()
	engine.lastConsolidation["u1"] = time.Now()
	engine.mu.Unlock()
	lock.Unlock()

	require.NoError(t, <-done)
	assert.Empty(t, store.Processes("u1"), "no pass runs when another completed during the wait")
}

func TestConsolidateMemoriesDistillsPattern(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 4; i++ {
		memory := saveMemoryAt(t, store, fmt.Sprintf("hike%d", i), "u1",
			storage.MemoryTypeEpisodic, now.Add(time.Duration(i)*time.Second), []string{"hiking"})
		memory.Content = fmt.Sprintf("Hiked trail number %d today.", i)
		require.NoError(t, store.SaveMemory(ctx, memory))
	}

	require.NoError(t, engine.ConsolidateMemories(ctx, "u1"))

	patterns, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"pattern"}, 10)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	pattern := patterns[0]
	assert.Equal(t, "Pattern: hiking", pattern.Title)
	assert.Equal(t, storage.MemoryTypeSemantic, pattern.Type)
	assert.InDelta(t, 0.7, pattern.Importance, 1e-9)
	assert.Equal(t, 4, pattern.TemporalContext["pattern_size"])
	assert.NotEmpty(t, pattern.Embedding)

	// Every group member is linked to the pattern memory.
	links, err := store.ListConnections(ctx, &storage.ConnectionFilter{
		UserID: "u1",
		Type:   storage.ConnectionPartOfPattern,
	})
	require.NoError(t, err)
	assert.Len(t, links, 4)
	for _, link := range links {
		assert.Equal(t, pattern.ID, link.TargetID)
	}

	// Group members are pairwise related.
	related, err := store.ListConnections(ctx, &storage.ConnectionFilter{
		UserID: "u1",
		Type:   storage.ConnectionRelatedTo,
	})
	require.NoError(t, err)
	assert.Len(t, related, 6)
}

func TestConsolidateMemoriesRequiresUser(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.ConsolidateMemories(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGroupRelatedMemoriesByTag(t *testing.T) {
	engine, _ := newTestEngine(t)

	var memories []*storage.Memory
	for i := 0; i < 3; i++ {
		memories = append(memories, &storage.Memory{
			ID:      fmt.Sprintf("m%d", i),
			Title:   fmt.Sprintf("Entry %d", i),
			Content: fmt.Sprintf("Completely unrelated content number %d.", i),
			Tags:    []string{"climbing"},
		})
	}
	memories = append(memories, &storage.Memory{
		ID:      "solo",
		Title:   "Standalone",
		Content: "Nothing in common with the rest whatsoever.",
		Tags:    []string{"daily_log"},
	})

	groups := engine.groupRelatedMemories(memories)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 3)
}

func TestGroupRelatedMemoriesIgnoresCollectionTags(t *testing.T) {
	engine, _ := newTestEngine(t)

	memories := []*storage.Memory{
		{ID: "m0", Title: "Garden", Content: "Watered the tomatoes before sunrise.", Tags: []string{"daily_log"}},
		{ID: "m1", Title: "Billing", Content: "Refactored invoice generation logic.", Tags: []string{"daily_log"}},
		{ID: "m2", Title: "Travel", Content: "Booked autumn flights yesterday evening.", Tags: []string{"daily_log"}},
	}

	groups := engine.groupRelatedMemories(memories)
	assert.Empty(t, groups, "daily_log alone never forms a group")
}

func TestFindCommonTags(t *testing.T) {
	group := []*storage.Memory{
		{Tags: []string{"hiking", "outdoors", "daily_log"}},
		{Tags: []string{"hiking", "outdoors"}},
		{Tags: []string{"hiking", "gear"}},
		{Tags: []string{"hiking"}},
	}

	common := findCommonTags(group)
	assert.Equal(t, []string{"hiking", "outdoors"}, common)
}

func TestFindCommonTagsNeedsTwo(t *testing.T) {
	group := []*storage.Memory{
		{Tags: []string{"alpha"}},
		{Tags: []string{"beta"}},
	}
	assert.Empty(t, findCommonTags(group))
}
