package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quantself/engram-go/pkg/storage"
)

// MemoryInput is the input for creating a memory.
type MemoryInput struct {
	// UserID identifies the owning user. Required.
	UserID string

	// Type is the memory classification. Defaults to episodic.
	Type storage.MemoryType

	// Title is a short summary line. Required.
	Title string

	// Content is the full memory text. Required.
	Content string

	// Importance overrides the computed importance when non-nil.
	Importance *float64

	// SourceID is the id of the activity record the memory derives from.
	SourceID string

	// SourceKind names the activity stream the memory derives from.
	// It feeds the importance model.
	SourceKind RecordKind

	// Metadata is merged into the memory's temporal context.
	Metadata map[string]interface{}

	// Tags are lowercase grouping labels.
	Tags []string

	// Entities lists entity ids to connect with related_to edges.
	Entities []string
}

// CreateMemory creates a new memory from the input.
//
// The memory starts at full strength, gets an importance score (computed
// when the input does not provide one), a temporal context that always
// carries created_at, and an embedding of "title content". Embedding
// failures are logged and the memory is stored without a vector. Every
// entity id in the input is linked with a related_to connection.
//
// Returns the stored memory, or an error when validation or persistence
// fails.
func (e *Engine) CreateMemory(ctx context.Context, input MemoryInput) (*storage.Memory, error) {
	if input.UserID == "" {
		return nil, NewEngineError("CreateMemory", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}
	if input.Title == "" {
		return nil, NewEngineError("CreateMemory", fmt.Errorf("%w: title is required", ErrInvalidInput))
	}
	if input.Content == "" {
		return nil, NewEngineError("CreateMemory", fmt.Errorf("%w: content is required", ErrInvalidInput))
	}
	if input.Type == "" {
		input.Type = storage.MemoryTypeEpisodic
	}

	now := time.Now()
	memory := &storage.Memory{
		ID:           e.node.Generate().String(),
		UserID:       input.UserID,
		Type:         input.Type,
		Title:        input.Title,
		Content:      input.Content,
		Strength:     1.0, // new memories start at full strength
		AccessCount:  0,
		LastAccessed: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if input.Importance != nil {
		memory.Importance = *input.Importance
	} else {
		memory.Importance = e.calculateImportance(input)
	}

	if input.SourceID != "" {
		memory.SourceRecords = []string{input.SourceID}
	}

	temporalContext := map[string]interface{}{
		"created_at": now,
	}
	for k, v := range input.Metadata {
		temporalContext[k] = v
	}
	memory.TemporalContext = temporalContext

	if len(input.Tags) > 0 {
		memory.Tags = input.Tags
	}

	embedding, err := e.embedder.Embed(ctx, input.Title+" "+input.Content)
	if err != nil {
		e.logger.Warn("failed to generate embedding", "error", err)
	} else {
		memory.Embedding = embedding
	}

	if err := e.store.SaveMemory(ctx, memory); err != nil {
		return nil, NewEngineError("CreateMemory", err)
	}

	for _, entityID := range input.Entities {
		err := e.CreateConnection(ctx, input.UserID,
			storage.NodeMemory, memory.ID,
			storage.NodeEntity, entityID,
			storage.ConnectionRelatedTo, 0.7)
		if err != nil {
			e.logger.Warn("failed to create entity connection",
				"memory", memory.ID, "entity", entityID, "error", err)
		}
	}

	return memory, nil
}

// CreateOrUpdateSemanticMemory creates a semantic memory, or updates an
// existing one when a retrieval for the input title already surfaces a
// semantic match. Updates append novel content (re-embedding when the text
// changed) and merge source ids and tags.
func (e *Engine) CreateOrUpdateSemanticMemory(ctx context.Context, input MemoryInput) (*storage.Memory, error) {
	input.Type = storage.MemoryTypeSemantic
	return e.createOrUpdateTyped(ctx, input)
}

// CreateOrUpdateProceduralMemory is CreateOrUpdateSemanticMemory for
// procedural memories.
func (e *Engine) CreateOrUpdateProceduralMemory(ctx context.Context, input MemoryInput) (*storage.Memory, error) {
	input.Type = storage.MemoryTypeProcedural
	return e.createOrUpdateTyped(ctx, input)
}

func (e *Engine) createOrUpdateTyped(ctx context.Context, input MemoryInput) (*storage.Memory, error) {
	existing, err := e.RetrieveMemories(ctx, input.UserID, input.Title, 5)
	if err != nil {
		e.logger.Warn("failed to retrieve memories for update check", "error", err)
	}

	for _, memory := range existing {
		if memory.Type != input.Type {
			continue
		}

		if !strings.Contains(memory.Content, input.Content) {
			memory.Content = memory.Content + " " + input.Content

			embedding, err := e.embedder.Embed(ctx, memory.Title+" "+memory.Content)
			if err != nil {
				e.logger.Warn("failed to refresh embedding", "memory", memory.ID, "error", err)
			} else {
				memory.Embedding = embedding
			}
		}

		if input.SourceID != "" && !containsString(memory.SourceRecords, input.SourceID) {
			memory.SourceRecords = append(memory.SourceRecords, input.SourceID)
		}

		for _, tag := range input.Tags {
			if !containsString(memory.Tags, tag) {
				memory.Tags = append(memory.Tags, tag)
			}
		}

		memory.UpdatedAt = time.Now()
		if err := e.store.SaveMemory(ctx, memory); err != nil {
			return nil, NewEngineError("CreateOrUpdateMemory", err)
		}

		return memory, nil
	}

	return e.CreateMemory(ctx, input)
}

// GetMemory retrieves a single memory by id.
func (e *Engine) GetMemory(ctx context.Context, userID, id string) (*storage.Memory, error) {
	memory, err := e.store.GetMemory(ctx, userID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return nil, NewEngineError("GetMemory", ErrNotFound)
		}
		return nil, NewEngineError("GetMemory", err)
	}
	return memory, nil
}

// DeleteMemory deletes a memory by id.
func (e *Engine) DeleteMemory(ctx context.Context, userID, id string) error {
	if err := e.store.DeleteMemory(ctx, userID, id); err != nil {
		return NewEngineError("DeleteMemory", err)
	}
	return nil
}

// GetRecentMemoriesByTags retrieves the most recent memories carrying any
// of the given tags (all memories when tags is empty), newest first.
func (e *Engine) GetRecentMemoriesByTags(ctx context.Context, userID string, tags []string, limit int) ([]*storage.Memory, error) {
	memories, err := e.store.ListMemories(ctx, &storage.MemoryFilter{
		UserID: userID,
		Tags:   tags,
		Limit:  limit,
	})
	if err != nil {
		return nil, NewEngineError("GetRecentMemoriesByTags", err)
	}
	return memories, nil
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
