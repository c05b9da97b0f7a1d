package inmem

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantself/engram-go/pkg/storage"
)

func seedMemory(t *testing.T, store *Store, id, userID string, mutate func(*storage.Memory)) *storage.Memory {
	t.Helper()
	memory := &storage.Memory{
		ID:        id,
		UserID:    userID,
		Type:      storage.MemoryTypeEpisodic,
		Title:     "Memory " + id,
		Content:   "Content for " + id,
		Tags:      []string{"seed"},
		Strength:  1.0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if mutate != nil {
		mutate(memory)
	}
	require.NoError(t, store.SaveMemory(context.Background(), memory))
	return memory
}

func TestMemoryRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seedMemory(t, store, "m1", "u1", func(m *storage.Memory) {
		m.Embedding = []float64{0.1, 0.2}
		m.TemporalContext = map[string]interface{}{"created_at": "today"}
	})

	got, err := store.GetMemory(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "Memory m1", got.Title)
	assert.Equal(t, []float64{0.1, 0.2}, got.Embedding)
	assert.Equal(t, "today", got.TemporalContext["created_at"])
}

func TestMemoryUserScoping(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seedMemory(t, store, "m1", "u1", nil)

	_, err := store.GetMemory(ctx, "u2", "m1")
	assert.ErrorIs(t, err, storage.ErrNoRows)

	err = store.DeleteMemory(ctx, "u2", "m1")
	assert.ErrorIs(t, err, storage.ErrNoRows)

	require.NoError(t, store.DeleteMemory(ctx, "u1", "m1"))
	_, err = store.GetMemory(ctx, "u1", "m1")
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestListMemoriesNewestFirst(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		age := time.Duration(i) * time.Hour
		seedMemory(t, store, fmt.Sprintf("m%d", i), "u1", func(m *storage.Memory) {
			m.CreatedAt = base.Add(-age)
		})
	}

	memories, err := store.ListMemories(ctx, &storage.MemoryFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, memories, 3)
	assert.Equal(t, "m0", memories[0].ID)
	assert.Equal(t, "m2", memories[2].ID)
}

func TestListMemoriesFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seedMemory(t, store, "m1", "u1", func(m *storage.Memory) {
		m.Type = storage.MemoryTypeSemantic
		m.Tags = []string{"cooking"}
		m.Title = "Pasta technique"
	})
	seedMemory(t, store, "m2", "u1", func(m *storage.Memory) {
		m.Tags = []string{"cooking", "dinner"}
		m.Strength = 0.1
	})
	seedMemory(t, store, "m3", "u1", func(m *storage.Memory) {
		m.Tags = []string{"hiking"}
	})

	byType, err := store.ListMemories(ctx, &storage.MemoryFilter{
		UserID: "u1",
		Types:  []storage.MemoryType{storage.MemoryTypeSemantic},
	})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "m1", byType[0].ID)

	// Tag matching is any-of.
	byTags, err := store.ListMemories(ctx, &storage.MemoryFilter{
		UserID: "u1",
		Tags:   []string{"dinner", "hiking"},
	})
	require.NoError(t, err)
	assert.Len(t, byTags, 2)

	strong, err := store.ListMemories(ctx, &storage.MemoryFilter{UserID: "u1", MinStrength: 0.5})
	require.NoError(t, err)
	assert.Len(t, strong, 2)

	byTitle, err := store.ListMemories(ctx, &storage.MemoryFilter{UserID: "u1", TitleContains: "pasta"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "m1", byTitle[0].ID)
}

func TestListMemoriesLimitAndOffset(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		age := time.Duration(i) * time.Minute
		seedMemory(t, store, fmt.Sprintf("m%d", i), "u1", func(m *storage.Memory) {
			m.CreatedAt = base.Add(-age)
		})
	}

	page, err := store.ListMemories(ctx, &storage.MemoryFilter{UserID: "u1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m1", page[0].ID)
	assert.Equal(t, "m2", page[1].ID)

	past, err := store.ListMemories(ctx, &storage.MemoryFilter{UserID: "u1", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestFindEntityCaseInsensitive(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveEntity(ctx, &storage.Entity{
		ID:     "e1",
		UserID: "u1",
		Type:   storage.EntityTypePerson,
		Name:   "Sarah Johnson",
	}))

	found, err := store.FindEntity(ctx, "u1", storage.EntityTypePerson, "SARAH JOHNSON")
	require.NoError(t, err)
	assert.Equal(t, "e1", found.ID)

	_, err = store.FindEntity(ctx, "u1", storage.EntityTypePlace, "Sarah Johnson")
	assert.ErrorIs(t, err, storage.ErrNoRows)

	_, err = store.FindEntity(ctx, "u2", storage.EntityTypePerson, "Sarah Johnson")
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestListEntitiesRecentFirst(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveEntity(ctx, &storage.Entity{
		ID: "e1", UserID: "u1", Type: storage.EntityTypePlace, Name: "Lisbon", LastSeen: now.Add(-time.Hour),
	}))
	require.NoError(t, store.SaveEntity(ctx, &storage.Entity{
		ID: "e2", UserID: "u1", Type: storage.EntityTypePerson, Name: "Mara", LastSeen: now,
	}))

	entities, err := store.ListEntities(ctx, &storage.EntityFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "e2", entities[0].ID)

	people, err := store.ListEntities(ctx, &storage.EntityFilter{UserID: "u1", Type: storage.EntityTypePerson})
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "e2", people[0].ID)
}

func TestFindConnectionByTuple(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveConnection(ctx, &storage.Connection{
		ID:         "c1",
		UserID:     "u1",
		SourceType: storage.NodeMemory,
		SourceID:   "m1",
		TargetType: storage.NodeEntity,
		TargetID:   "e1",
		Type:       storage.ConnectionRelatedTo,
		Strength:   0.7,
	}))

	found, err := store.FindConnection(ctx, "u1", "m1", "e1", storage.ConnectionRelatedTo)
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ID)

	_, err = store.FindConnection(ctx, "u1", "m1", "e1", storage.ConnectionPartOfPattern)
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestListConnectionsNodeFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	edges := []struct{ id, source, target string }{
		{"c1", "m1", "e1"},
		{"c2", "e2", "m1"},
		{"c3", "m2", "e1"},
	}
	for _, edge := range edges {
		require.NoError(t, store.SaveConnection(ctx, &storage.Connection{
			ID:         edge.id,
			UserID:     "u1",
			SourceType: storage.NodeMemory,
			SourceID:   edge.source,
			TargetType: storage.NodeEntity,
			TargetID:   edge.target,
			Type:       storage.ConnectionRelatedTo,
		}))
	}

	// NodeID matches either endpoint.
	around, err := store.ListConnections(ctx, &storage.ConnectionFilter{UserID: "u1", NodeID: "m1"})
	require.NoError(t, err)
	assert.Len(t, around, 2)

	from, err := store.ListConnections(ctx, &storage.ConnectionFilter{UserID: "u1", SourceID: "m2"})
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "c3", from[0].ID)
}

func TestInsightScopingAndCategoryFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveInsight(ctx, &storage.Insight{
		ID:       "i1",
		UserID:   "u1",
		Category: storage.InsightTopicTrend,
		Title:    "Interest in Photography",
	}))
	require.NoError(t, store.SaveInsight(ctx, &storage.Insight{
		ID:       "i2",
		UserID:   "u1",
		Category: storage.InsightHighlight,
		Title:    "Memory Highlight",
	}))

	_, err := store.GetInsight(ctx, "u2", "i1")
	assert.ErrorIs(t, err, storage.ErrNoRows)

	trends, err := store.ListInsights(ctx, &storage.InsightFilter{UserID: "u1", Category: storage.InsightTopicTrend})
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.Equal(t, "i1", trends[0].ID)

	all, err := store.ListInsights(ctx, &storage.InsightFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProcessesSortedByStartTime(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveProcess(ctx, &storage.Process{
		ID: "p2", UserID: "u1", Type: "consolidation", StartTime: now,
	}))
	require.NoError(t, store.SaveProcess(ctx, &storage.Process{
		ID: "p1", UserID: "u1", Type: "consolidation", StartTime: now.Add(-time.Hour),
	}))
	require.NoError(t, store.SaveProcess(ctx, &storage.Process{
		ID: "p3", UserID: "u2", Type: "consolidation", StartTime: now,
	}))

	processes := store.Processes("u1")
	require.Len(t, processes, 2)
	assert.Equal(t, "p1", processes[0].ID)
	assert.Equal(t, "p2", processes[1].ID)
}

func TestCopiesIsolateCallerMutations(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	original := seedMemory(t, store, "m1", "u1", func(m *storage.Memory) {
		m.Tags = []string{"seed"}
		m.TemporalContext = map[string]interface{}{"mood": "calm"}
	})

	// Mutating the saved value must not reach the store.
	original.Tags[0] = "tampered"
	original.TemporalContext["mood"] = "tampered"

	first, err := store.GetMemory(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, first.Tags)
	assert.Equal(t, "calm", first.TemporalContext["mood"])

	// Mutating a returned value must not reach the store either.
	first.Tags[0] = "tampered"
	second, err := store.GetMemory(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, second.Tags)
}
