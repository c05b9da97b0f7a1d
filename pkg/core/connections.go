package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantself/engram-go/pkg/storage"
)

// CreateConnection creates a typed, weighted edge between two nodes in the
// memory graph.
//
// Connections are idempotent per (user, source, target, type): re-creating
// an existing edge only raises its strength, never lowers it.
func (e *Engine) CreateConnection(ctx context.Context, userID string,
	sourceType storage.NodeType, sourceID string,
	targetType storage.NodeType, targetID string,
	connType storage.ConnectionType, strength float64) error {

	if userID == "" {
		return NewEngineError("CreateConnection", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}
	if sourceType == "" || sourceID == "" {
		return NewEngineError("CreateConnection", fmt.Errorf("%w: source type and id are required", ErrInvalidInput))
	}
	if targetType == "" || targetID == "" {
		return NewEngineError("CreateConnection", fmt.Errorf("%w: target type and id are required", ErrInvalidInput))
	}
	if connType == "" {
		return NewEngineError("CreateConnection", fmt.Errorf("%w: connection type is required", ErrInvalidInput))
	}

	existing, err := e.store.FindConnection(ctx, userID, sourceID, targetID, connType)
	if err == nil {
		if strength > existing.Strength {
			existing.Strength = strength
			existing.UpdatedAt = time.Now()
			if err := e.store.SaveConnection(ctx, existing); err != nil {
				return NewEngineError("CreateConnection", err)
			}
		}
		return nil
	}
	if !errors.Is(err, storage.ErrNoRows) {
		return NewEngineError("CreateConnection", err)
	}

	now := time.Now()
	connection := &storage.Connection{
		ID:         e.node.Generate().String(),
		UserID:     userID,
		SourceType: sourceType,
		SourceID:   sourceID,
		TargetType: targetType,
		TargetID:   targetID,
		Type:       connType,
		Strength:   strength,
		Metadata: map[string]interface{}{
			"created_at": now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.SaveConnection(ctx, connection); err != nil {
		return NewEngineError("CreateConnection", err)
	}

	return nil
}

// GetMemoryConnections retrieves all connections where the memory appears
// as either endpoint.
func (e *Engine) GetMemoryConnections(ctx context.Context, userID, memoryID string) ([]*storage.Connection, error) {
	connections, err := e.store.ListConnections(ctx, &storage.ConnectionFilter{
		UserID: userID,
		NodeID: memoryID,
	})
	if err != nil {
		return nil, NewEngineError("GetMemoryConnections", err)
	}
	return connections, nil
}

// GetEntityConnections retrieves all connections where the entity appears
// as either endpoint.
func (e *Engine) GetEntityConnections(ctx context.Context, userID, entityID string) ([]*storage.Connection, error) {
	connections, err := e.store.ListConnections(ctx, &storage.ConnectionFilter{
		UserID: userID,
		NodeID: entityID,
	})
	if err != nil {
		return nil, NewEngineError("GetEntityConnections", err)
	}
	return connections, nil
}
