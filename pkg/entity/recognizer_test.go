package entity

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantself/engram-go/pkg/embedder/hashing"
	"github.com/quantself/engram-go/pkg/storage"
	"github.com/quantself/engram-go/pkg/storage/inmem"
)

func newTestRecognizer(t *testing.T) (*Recognizer, *inmem.Store) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	store := inmem.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRecognizer(store, hashing.New(64), node, logger), store
}

func TestGetOrCreateEntityCreates(t *testing.T) {
	recognizer, store := newTestRecognizer(t)
	ctx := context.Background()

	entity, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypePerson, "Sarah Johnson", "A colleague")
	require.NoError(t, err)

	assert.NotEmpty(t, entity.ID)
	assert.Equal(t, "Sarah Johnson", entity.Name)
	assert.Equal(t, 1, entity.InteractionCount)
	assert.Equal(t, 0.7, entity.Importance)
	assert.NotEmpty(t, entity.Embedding)

	stored, err := store.FindEntity(ctx, "u1", storage.EntityTypePerson, "sarah johnson")
	require.NoError(t, err)
	assert.Equal(t, entity.ID, stored.ID)
}

func TestGetOrCreateEntityBumpsInteractionCount(t *testing.T) {
	recognizer, _ := newTestRecognizer(t)
	ctx := context.Background()

	first, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypePlace, "Lisbon", "")
	require.NoError(t, err)

	second, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypePlace, "Lisbon", "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.InteractionCount)
}

func TestGetOrCreateEntityMergesSimilarNames(t *testing.T) {
	recognizer, store := newTestRecognizer(t)
	ctx := context.Background()

	canonical, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypePerson, "Sarah Johnson", "A colleague")
	require.NoError(t, err)

	variant, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypePerson, "Sara Johnson", "")
	require.NoError(t, err)

	assert.Equal(t, canonical.ID, variant.ID, "variant spelling resolves to the canonical entity")
	assert.Equal(t, "Sarah Johnson", variant.Name)
	assert.Contains(t, variant.Description, "Also known as: Sara Johnson")

	entities, err := store.ListEntities(ctx, &storage.EntityFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, entities, 1, "no duplicate entity is created")
}

func TestGetOrCreateEntityScopedPerUser(t *testing.T) {
	recognizer, _ := newTestRecognizer(t)
	ctx := context.Background()

	mine, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypePerson, "Alex Chen", "")
	require.NoError(t, err)

	theirs, err := recognizer.GetOrCreateEntity(ctx, "u2", storage.EntityTypePerson, "Alex Chen", "")
	require.NoError(t, err)

	assert.NotEqual(t, mine.ID, theirs.ID)
}

func TestExtractEntitiesFindsPerson(t *testing.T) {
	recognizer, _ := newTestRecognizer(t)
	ctx := context.Background()

	entities, err := recognizer.ExtractEntities(ctx, "u1", "I met with Sarah Johnson yesterday")
	require.NoError(t, err)
	require.NotEmpty(t, entities)

	var found *storage.Entity
	for _, entity := range entities {
		if entity.Name == "Sarah Johnson" && entity.Type == storage.EntityTypePerson {
			found = entity
		}
	}
	require.NotNil(t, found, "expected person Sarah Johnson among %d extracted entities", len(entities))
}

func TestExtractEntitiesCoversDistinctTypes(t *testing.T) {
	recognizer, _ := newTestRecognizer(t)
	ctx := context.Background()

	text := "Met Sarah Johnson at Central Park to discuss the Phoenix project"
	entities, err := recognizer.ExtractEntities(ctx, "u1", text)
	require.NoError(t, err)

	types := make(map[storage.EntityType]bool)
	byTypeAndName := make(map[string]*storage.Entity)
	for _, entity := range entities {
		types[entity.Type] = true
		byTypeAndName[string(entity.Type)+"/"+entity.Name] = entity
	}

	// Person, place, and project patterns all fire on this sentence and
	// must yield entities of their own type, not aliases of one type.
	assert.True(t, types[storage.EntityTypePerson], "expected a person entity, got types %v", types)
	assert.True(t, types[storage.EntityTypePlace], "expected a place entity, got types %v", types)
	assert.True(t, types[storage.EntityTypeProject], "expected a project entity, got types %v", types)

	place := byTypeAndName["place/Central Park"]
	project := byTypeAndName["project/Central Park"]
	require.NotNil(t, place)
	require.NotNil(t, project)
	assert.NotEqual(t, place.ID, project.ID, "same name under different types stays distinct")
}

func TestGetOrCreateEntityKeepsTypesDistinct(t *testing.T) {
	recognizer, store := newTestRecognizer(t)
	ctx := context.Background()

	place, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypePlace, "Central Park", "")
	require.NoError(t, err)

	project, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypeProject, "Central Park", "")
	require.NoError(t, err)

	assert.NotEqual(t, place.ID, project.ID)
	assert.Equal(t, storage.EntityTypeProject, project.Type)
	assert.Equal(t, 1, project.InteractionCount)

	// Both survive in the store, and a repeat lookup bumps only its own type.
	again, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypePlace, "Central Park", "")
	require.NoError(t, err)
	assert.Equal(t, place.ID, again.ID)
	assert.Equal(t, 2, again.InteractionCount)

	entities, err := store.ListEntities(ctx, &storage.EntityFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, entities, 2)
}

func TestExtractEntitiesRequiresContext(t *testing.T) {
	recognizer, _ := newTestRecognizer(t)
	ctx := context.Background()

	// No project context words, so the project pattern must stay silent.
	entities, err := recognizer.ExtractEntities(ctx, "u1", "Quiet")
	require.NoError(t, err)
	for _, entity := range entities {
		assert.NotEqual(t, storage.EntityTypeProject, entity.Type)
	}
}

func TestExtractEntitiesMinesFrequentConcepts(t *testing.T) {
	recognizer, _ := newTestRecognizer(t)
	ctx := context.Background()

	text := "Glassblowing again today. Glassblowing takes patience. I want more glassblowing practice."
	entities, err := recognizer.ExtractEntities(ctx, "u1", text)
	require.NoError(t, err)

	var concept *storage.Entity
	for _, entity := range entities {
		if entity.Name == "glassblowing" && entity.Type == storage.EntityTypeConcept {
			concept = entity
		}
	}
	require.NotNil(t, concept)
	assert.Contains(t, concept.Description, "mentioned frequently")
}

func TestRegisterPatternRejectsInvalidRegexp(t *testing.T) {
	recognizer, _ := newTestRecognizer(t)

	err := recognizer.RegisterPattern(storage.EntityTypeConcept, "([unclosed", nil, 10)
	assert.Error(t, err)
}

func TestLoadUserEntities(t *testing.T) {
	recognizer, store := newTestRecognizer(t)
	ctx := context.Background()

	_, err := recognizer.GetOrCreateEntity(ctx, "u1", storage.EntityTypeTechnology, "Quarkdb", "")
	require.NoError(t, err)

	// A fresh recognizer sharing the store resolves the same entity
	// after loading the user's entities.
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fresh := NewRecognizer(store, hashing.New(64), node, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, fresh.LoadUserEntities(ctx, "u1"))

	again, err := fresh.GetOrCreateEntity(ctx, "u1", storage.EntityTypeTechnology, "Quarkdb", "")
	require.NoError(t, err)
	assert.Equal(t, 2, again.InteractionCount)
}
