package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantself/engram-go/pkg/storage"
)

func TestCreateMemory(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	memory, err := engine.CreateMemory(ctx, MemoryInput{
		UserID:   "u1",
		Title:    "First standup",
		Content:  "Attended the first standup of the sprint.",
		SourceID: "rec-1",
		Tags:     []string{"work"},
		Metadata: map[string]interface{}{"room": "A4"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, memory.ID)
	assert.Equal(t, storage.MemoryTypeEpisodic, memory.Type, "type defaults to episodic")
	assert.Equal(t, 1.0, memory.Strength)
	assert.Zero(t, memory.AccessCount)
	assert.Equal(t, []string{"rec-1"}, memory.SourceRecords)
	assert.Equal(t, []string{"work"}, memory.Tags)
	assert.NotEmpty(t, memory.Embedding)
	assert.Contains(t, memory.TemporalContext, "created_at")
	assert.Equal(t, "A4", memory.TemporalContext["room"])

	stored, err := engine.GetMemory(ctx, "u1", memory.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.Title, stored.Title)
}

func TestCreateMemoryValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateMemory(ctx, MemoryInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = engine.CreateMemory(ctx, MemoryInput{UserID: "u1", Content: "c"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = engine.CreateMemory(ctx, MemoryInput{UserID: "u1", Title: "t"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateMemoryImportanceOverride(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	importance := 0.42
	memory, err := engine.CreateMemory(ctx, MemoryInput{
		UserID:     "u1",
		Title:      "Override",
		Content:    "Explicit importance wins over the computed score.",
		Importance: &importance,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.42, memory.Importance)
}

func TestCreateMemoryLinksEntities(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	ent, err := engine.Recognizer().GetOrCreateEntity(ctx, "u1", storage.EntityTypePerson, "Ada", "")
	require.NoError(t, err)

	memory, err := engine.CreateMemory(ctx, MemoryInput{
		UserID:   "u1",
		Title:    "Pairing session",
		Content:  "Paired with Ada on the parser.",
		Entities: []string{ent.ID},
	})
	require.NoError(t, err)

	connections, err := engine.GetMemoryConnections(ctx, "u1", memory.ID)
	require.NoError(t, err)
	require.Len(t, connections, 1)
	assert.Equal(t, storage.ConnectionRelatedTo, connections[0].Type)
	assert.Equal(t, ent.ID, connections[0].TargetID)
}

func TestCreateOrUpdateSemanticMemoryAppendsContent(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.CreateOrUpdateSemanticMemory(ctx, MemoryInput{
		UserID:   "u1",
		Title:    "Understanding of health area",
		Content:  "The health area of life shows a positive pattern.",
		SourceID: "rec-1",
		Tags:     []string{"life_balance", "health"},
	})
	require.NoError(t, err)
	assert.Equal(t, storage.MemoryTypeSemantic, first.Type)

	second, err := engine.CreateOrUpdateSemanticMemory(ctx, MemoryInput{
		UserID:   "u1",
		Title:    "Understanding of health area",
		Content:  "Sleep quality improved this month.",
		SourceID: "rec-2",
		Tags:     []string{"sleep"},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same title updates the existing memory")
	assert.Contains(t, second.Content, "positive pattern")
	assert.Contains(t, second.Content, "Sleep quality improved")
	assert.ElementsMatch(t, []string{"rec-1", "rec-2"}, second.SourceRecords)
	assert.Contains(t, second.Tags, "sleep")

	// Re-sending the same content neither duplicates nor grows the text.
	third, err := engine.CreateOrUpdateSemanticMemory(ctx, MemoryInput{
		UserID:  "u1",
		Title:   "Understanding of health area",
		Content: "Sleep quality improved this month.",
	})
	require.NoError(t, err)
	assert.Equal(t, second.Content, third.Content)
}

func TestCreateOrUpdateTypedMatchesWantedType(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// A semantic memory with a matching title must not absorb a
	// procedural update.
	_, err := engine.CreateOrUpdateSemanticMemory(ctx, MemoryInput{
		UserID:  "u1",
		Title:   "Morning routine",
		Content: "Mornings follow a stable structure.",
	})
	require.NoError(t, err)

	procedural, err := engine.CreateOrUpdateProceduralMemory(ctx, MemoryInput{
		UserID:  "u1",
		Title:   "Morning routine",
		Content: "Wake, run, shower, coffee.",
	})
	require.NoError(t, err)
	assert.Equal(t, storage.MemoryTypeProcedural, procedural.Type)
	assert.NotContains(t, procedural.Content, "stable structure")
}

func TestGetMemoryNotFound(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.GetMemory(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMemory(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	memory, err := engine.CreateMemory(ctx, MemoryInput{
		UserID: "u1", Title: "Ephemeral", Content: "Soon gone.",
	})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteMemory(ctx, "u1", memory.ID))

	_, err = engine.GetMemory(ctx, "u1", memory.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRecentMemoriesByTags(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for _, in := range []MemoryInput{
		{UserID: "u1", Title: "Hike", Content: "Hiked the ridge.", Tags: []string{"hiking"}},
		{UserID: "u1", Title: "Book", Content: "Read two chapters.", Tags: []string{"reading"}},
		{UserID: "u1", Title: "Trail", Content: "Scouted a new trail.", Tags: []string{"hiking"}},
	} {
		_, err := engine.CreateMemory(ctx, in)
		require.NoError(t, err)
	}

	hiking, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"hiking"}, 10)
	require.NoError(t, err)
	require.Len(t, hiking, 2)
	assert.Equal(t, "Trail", hiking[0].Title, "newest first")

	all, err := engine.GetRecentMemoriesByTags(ctx, "u1", nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
