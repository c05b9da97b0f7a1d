package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantself/engram-go/pkg/storage"
)

func TestCreateConnection(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	err := engine.CreateConnection(ctx, "u1",
		storage.NodeMemory, "m1",
		storage.NodeEntity, "e1",
		storage.ConnectionRelatedTo, 0.7)
	require.NoError(t, err)

	conn, err := store.FindConnection(ctx, "u1", "m1", "e1", storage.ConnectionRelatedTo)
	require.NoError(t, err)
	assert.Equal(t, 0.7, conn.Strength)
	assert.Equal(t, storage.NodeMemory, conn.SourceType)
	assert.Equal(t, storage.NodeEntity, conn.TargetType)
	assert.Contains(t, conn.Metadata, "created_at")
}

func TestCreateConnectionStrengthOnlyRises(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	create := func(strength float64) {
		require.NoError(t, engine.CreateConnection(ctx, "u1",
			storage.NodeMemory, "m1",
			storage.NodeMemory, "m2",
			storage.ConnectionContributesTo, strength))
	}

	create(0.5)
	create(0.9)
	create(0.3)

	conn, err := store.FindConnection(ctx, "u1", "m1", "m2", storage.ConnectionContributesTo)
	require.NoError(t, err)
	assert.Equal(t, 0.9, conn.Strength)

	// Re-creating never duplicates the edge.
	all, err := store.ListConnections(ctx, &storage.ConnectionFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateConnectionValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	err := engine.CreateConnection(ctx, "",
		storage.NodeMemory, "m1", storage.NodeMemory, "m2",
		storage.ConnectionRelatedTo, 0.5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = engine.CreateConnection(ctx, "u1",
		storage.NodeMemory, "", storage.NodeMemory, "m2",
		storage.ConnectionRelatedTo, 0.5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = engine.CreateConnection(ctx, "u1",
		storage.NodeMemory, "m1", storage.NodeMemory, "m2",
		"", 0.5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetMemoryConnectionsEitherEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.CreateConnection(ctx, "u1",
		storage.NodeMemory, "m1", storage.NodeMemory, "m2",
		storage.ConnectionRelatedTo, 0.7))
	require.NoError(t, engine.CreateConnection(ctx, "u1",
		storage.NodeMemory, "m3", storage.NodeMemory, "m1",
		storage.ConnectionContributesTo, 0.8))
	require.NoError(t, engine.CreateConnection(ctx, "u1",
		storage.NodeMemory, "m3", storage.NodeMemory, "m4",
		storage.ConnectionRelatedTo, 0.6))

	connections, err := engine.GetMemoryConnections(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Len(t, connections, 2)
}
