// Package storage defines the record types and the Store interface that all
// persistence backends must satisfy.
//
// The engine persists five record kinds: memories, entities, connections,
// insights, and processes. Records are partitioned by user; every query
// carries a user id and backends must never return rows across users.
package storage

import (
	"context"
	"time"
)

// MemoryType classifies a memory by how it was formed.
type MemoryType string

const (
	// MemoryTypeEpisodic is a memory of a specific event or moment.
	MemoryTypeEpisodic MemoryType = "episodic"

	// MemoryTypeSemantic is distilled knowledge or an observed pattern.
	MemoryTypeSemantic MemoryType = "semantic"

	// MemoryTypeProcedural is a memory of a repeated behavior or routine.
	MemoryTypeProcedural MemoryType = "procedural"
)

// EntityType classifies a recognized entity.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypePlace        EntityType = "place"
	EntityTypeProject      EntityType = "project"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeTechnology   EntityType = "technology"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeDevice       EntityType = "device"
)

// ConnectionType classifies an edge between two nodes in the memory graph.
type ConnectionType string

const (
	ConnectionRelatedTo               ConnectionType = "related_to"
	ConnectionBelongsToProject        ConnectionType = "belongs_to_project"
	ConnectionContributesTo           ConnectionType = "contributes_to"
	ConnectionReinforcesPattern       ConnectionType = "reinforces_pattern"
	ConnectionDemonstratesPattern     ConnectionType = "demonstrates_pattern"
	ConnectionEstablishesPattern      ConnectionType = "establishes_pattern"
	ConnectionPartOfPattern           ConnectionType = "part_of_pattern"
	ConnectionContributesToPattern    ConnectionType = "contributes_to_pattern"
	ConnectionProvidesUnderstanding   ConnectionType = "provides_understanding"
	ConnectionReinforcesUnderstanding ConnectionType = "reinforces_understanding"
	ConnectionEvidenceOfTrend         ConnectionType = "evidence_of_trend"
	ConnectionUsedDevice              ConnectionType = "used_device"
)

// NodeType identifies which record kind a connection endpoint refers to.
type NodeType string

const (
	NodeMemory NodeType = "memory"
	NodeEntity NodeType = "entity"
)

// InsightCategory classifies a generated insight.
type InsightCategory string

const (
	InsightEntitySummary   InsightCategory = "entity_summary"
	InsightTemporalPattern InsightCategory = "temporal_pattern"
	InsightThematicPattern InsightCategory = "thematic_pattern"
	InsightTopicTrend      InsightCategory = "topic_trend"
	InsightHighlight       InsightCategory = "highlight"
)

// ProcessStatus is the lifecycle state of a background process record.
type ProcessStatus string

const (
	ProcessInProgress ProcessStatus = "in_progress"
	ProcessCompleted  ProcessStatus = "completed"
	ProcessFailed     ProcessStatus = "failed"
)

// Memory is a single stored memory.
type Memory struct {
	// ID is the unique identifier of the memory.
	ID string

	// UserID identifies the user who owns this memory.
	UserID string

	// Type is the memory classification (episodic, semantic, procedural).
	Type MemoryType

	// Title is a short human-readable summary line.
	Title string

	// Content is the full text content of the memory.
	Content string

	// Embedding is the vector embedding for similarity search.
	// Empty when embedding generation was unavailable at creation time.
	Embedding []float64

	// Importance is the significance score in [0, 1].
	Importance float64

	// Strength is the current retention strength in [0, 1].
	// It decays over time and is reinforced by access.
	Strength float64

	// AccessCount is the number of times this memory was retrieved.
	AccessCount int

	// LastAccessed is when the memory was last retrieved or created.
	LastAccessed time.Time

	// SourceRecords lists the ids of the activity records this memory
	// was derived from.
	SourceRecords []string

	// TemporalContext holds time-related context captured at creation
	// (created_at, due dates, session start, and similar).
	TemporalContext map[string]interface{}

	// Tags are lowercase labels used for grouping and trend detection.
	Tags []string

	// CreatedAt is when the memory was created.
	CreatedAt time.Time

	// UpdatedAt is when the memory was last written.
	UpdatedAt time.Time
}

// Entity is a person, place, project, or other recognized thing.
type Entity struct {
	// ID is the unique identifier of the entity.
	ID string

	// UserID identifies the user who owns this entity.
	UserID string

	// Type is the entity classification.
	Type EntityType

	// Name is the canonical name of the entity.
	Name string

	// Description accumulates context lines, including alias notes.
	Description string

	// Attributes holds additional structured information.
	Attributes map[string]interface{}

	// Importance is the significance score in [0, 1].
	Importance float64

	// FirstSeen is when the entity was first recognized.
	FirstSeen time.Time

	// LastSeen is when the entity was most recently recognized.
	LastSeen time.Time

	// InteractionCount is the number of times the entity was recognized.
	InteractionCount int

	// SourceRecords lists the ids of the records the entity appeared in.
	SourceRecords []string

	// Embedding is the vector embedding of the name and description.
	Embedding []float64

	// CreatedAt is when the entity was created.
	CreatedAt time.Time

	// UpdatedAt is when the entity was last written.
	UpdatedAt time.Time
}

// Connection is a typed, weighted edge between two nodes (memories or
// entities) in the memory graph.
type Connection struct {
	// ID is the unique identifier of the connection.
	ID string

	// UserID identifies the user who owns this connection.
	UserID string

	// SourceType and SourceID identify the source node.
	SourceType NodeType
	SourceID   string

	// TargetType and TargetID identify the target node.
	TargetType NodeType
	TargetID   string

	// Type is the relationship classification.
	Type ConnectionType

	// Strength is the edge weight in [0, 1]. Re-creating an existing
	// connection only ever raises it.
	Strength float64

	// Metadata holds additional structured information.
	Metadata map[string]interface{}

	// CreatedAt is when the connection was created.
	CreatedAt time.Time

	// UpdatedAt is when the connection was last written.
	UpdatedAt time.Time
}

// Insight is a generated observation about the user's memories.
type Insight struct {
	// ID is the unique identifier of the insight.
	ID string

	// UserID identifies the user who owns this insight.
	UserID string

	// Title is a short headline for the insight.
	Title string

	// Content is the full insight text.
	Content string

	// Category classifies the insight.
	Category InsightCategory

	// Confidence is the generator's confidence in [0, 1].
	Confidence float64

	// SourceMemories lists the ids of memories the insight was drawn from.
	SourceMemories []string

	// RelatedEntities lists the ids of entities the insight refers to.
	RelatedEntities []string

	// IsHighlighted marks the insight for prominent display.
	IsHighlighted bool

	// UserRating is the user's feedback rating (1-5, 0 when unrated).
	UserRating int

	// CreatedAt is when the insight was created.
	CreatedAt time.Time

	// UpdatedAt is when the insight was last written.
	UpdatedAt time.Time
}

// Process is an audit record for a background maintenance run.
type Process struct {
	// ID is the unique identifier of the process record.
	ID string

	// UserID identifies the user the process ran for.
	UserID string

	// Type names the process (e.g. "consolidation").
	Type string

	// StartTime and EndTime bound the run. EndTime is nil while running.
	StartTime time.Time
	EndTime   *time.Time

	// Status is the lifecycle state.
	Status ProcessStatus

	// ItemsProcessed, ItemsCreated, and ItemsModified are run counters.
	ItemsProcessed int
	ItemsCreated   int
	ItemsModified  int

	// Log holds free-form progress lines.
	Log []string

	// CreatedAt is when the process record was created.
	CreatedAt time.Time

	// UpdatedAt is when the process record was last written.
	UpdatedAt time.Time
}

// Store defines the interface for persistence backends.
//
// All implementations (SQLite, PostgreSQL, MySQL, in-memory) must implement
// this interface. Save methods upsert: inserting a record whose id already
// exists replaces the stored row.
type Store interface {
	// SaveMemory inserts or updates a memory.
	SaveMemory(ctx context.Context, memory *Memory) error

	// GetMemory retrieves a memory by id, scoped to the given user.
	GetMemory(ctx context.Context, userID, id string) (*Memory, error)

	// ListMemories retrieves memories matching the filter,
	// newest first.
	ListMemories(ctx context.Context, filter *MemoryFilter) ([]*Memory, error)

	// DeleteMemory deletes a memory by id, scoped to the given user.
	DeleteMemory(ctx context.Context, userID, id string) error

	// SaveEntity inserts or updates an entity.
	SaveEntity(ctx context.Context, entity *Entity) error

	// FindEntity retrieves an entity by exact (user, type, name) match.
	// Name matching is case-insensitive.
	FindEntity(ctx context.Context, userID string, entityType EntityType, name string) (*Entity, error)

	// ListEntities retrieves entities matching the filter.
	ListEntities(ctx context.Context, filter *EntityFilter) ([]*Entity, error)

	// SaveConnection inserts or updates a connection.
	SaveConnection(ctx context.Context, connection *Connection) error

	// FindConnection retrieves a connection by its identifying tuple
	// (user, source, target, type).
	FindConnection(ctx context.Context, userID, sourceID, targetID string, connType ConnectionType) (*Connection, error)

	// ListConnections retrieves connections matching the filter.
	ListConnections(ctx context.Context, filter *ConnectionFilter) ([]*Connection, error)

	// SaveInsight inserts or updates an insight.
	SaveInsight(ctx context.Context, insight *Insight) error

	// GetInsight retrieves an insight by id, scoped to the given user.
	GetInsight(ctx context.Context, userID, id string) (*Insight, error)

	// ListInsights retrieves insights matching the filter, newest first.
	ListInsights(ctx context.Context, filter *InsightFilter) ([]*Insight, error)

	// SaveProcess inserts or updates a process record.
	SaveProcess(ctx context.Context, process *Process) error

	// Close closes the store and releases resources.
	Close() error
}

// ErrNoRows is returned by Get/Find methods when no record matches.
// It is defined here so callers can test for absence without depending
// on database/sql.
type notFoundError string

func (e notFoundError) Error() string { return string(e) }

// ErrNoRows indicates that no record matched the lookup.
const ErrNoRows = notFoundError("storage: no matching record")

// MemoryFilter selects memories in ListMemories.
type MemoryFilter struct {
	// UserID scopes the query to a single user. Required.
	UserID string

	// Types restricts results to the given memory types (empty = all).
	Types []MemoryType

	// Tags restricts results to memories carrying at least one of the
	// given tags (empty = all).
	Tags []string

	// CreatedAfter restricts results to memories created after the
	// given time (zero = no restriction).
	CreatedAfter time.Time

	// MinStrength restricts results to memories with at least the given
	// retention strength.
	MinStrength float64

	// TitleContains restricts results to memories whose title contains
	// the given substring (case-insensitive, empty = no restriction).
	TitleContains string

	// Limit sets the maximum number of results (0 = no limit).
	Limit int

	// Offset sets the number of results to skip (for pagination).
	Offset int
}

// EntityFilter selects entities in ListEntities.
type EntityFilter struct {
	// UserID scopes the query to a single user. Required.
	UserID string

	// Type restricts results to a single entity type (empty = all).
	Type EntityType

	// Limit sets the maximum number of results (0 = no limit).
	Limit int
}

// ConnectionFilter selects connections in ListConnections.
type ConnectionFilter struct {
	// UserID scopes the query to a single user. Required.
	UserID string

	// NodeID, when set, matches connections where the node appears as
	// either source or target.
	NodeID string

	// SourceID and TargetID match exact endpoints when set.
	SourceID string
	TargetID string

	// Type restricts results to a single connection type (empty = all).
	Type ConnectionType

	// Limit sets the maximum number of results (0 = no limit).
	Limit int
}

// InsightFilter selects insights in ListInsights.
type InsightFilter struct {
	// UserID scopes the query to a single user. Required.
	UserID string

	// Category restricts results to a single category (empty = all).
	Category InsightCategory

	// Limit sets the maximum number of results (0 = no limit).
	Limit int
}
