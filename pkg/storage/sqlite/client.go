// Package sqlite provides the SQLite implementation of the storage.Store
// interface.
//
// SQLite is a lightweight, file-based database suitable for local use.
// Vectors, tags, and other structured columns are stored as JSON strings in
// TEXT fields; tag filtering uses LIKE matching against the JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/quantself/engram-go/pkg/storage"
)

// Client implements storage.Store using SQLite as the backend.
type Client struct {
	db *sql.DB
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// NewClient creates a new SQLite store.
//
// The parent directory of DBPath is created if it does not exist, and all
// tables and indexes are initialized on first use.
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{db: db}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			memory_type TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT,
			importance REAL NOT NULL DEFAULT 0.5,
			strength REAL NOT NULL DEFAULT 1.0,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed DATETIME,
			source_records TEXT,
			temporal_context TEXT,
			tags TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			attributes TEXT,
			importance REAL NOT NULL DEFAULT 0.5,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL,
			interaction_count INTEGER NOT NULL DEFAULT 1,
			source_records TEXT,
			embedding TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_user_type_name ON entities(user_id, entity_type, name)`,
		`CREATE TABLE IF NOT EXISTS memory_connections (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			source_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			connection_type TEXT NOT NULL,
			strength REAL NOT NULL DEFAULT 0.5,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_source ON memory_connections(user_id, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_target ON memory_connections(user_id, target_id)`,
		`CREATE TABLE IF NOT EXISTS insights (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0.5,
			source_memories TEXT,
			related_entities TEXT,
			is_highlighted INTEGER NOT NULL DEFAULT 0,
			user_rating INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_user ON insights(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS memory_processes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			process_type TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			status TEXT NOT NULL,
			items_processed INTEGER NOT NULL DEFAULT 0,
			items_created INTEGER NOT NULL DEFAULT 0,
			items_modified INTEGER NOT NULL DEFAULT 0,
			log TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processes_user ON memory_processes(user_id, start_time)`,
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}

	return nil
}

// SaveMemory inserts or updates a memory.
func (c *Client) SaveMemory(ctx context.Context, memory *storage.Memory) error {
	embedding, err := marshalJSON(memory.Embedding)
	if err != nil {
		return fmt.Errorf("SaveMemory: %w", err)
	}
	sourceRecords, err := marshalJSON(memory.SourceRecords)
	if err != nil {
		return fmt.Errorf("SaveMemory: %w", err)
	}
	temporalContext, err := marshalJSON(memory.TemporalContext)
	if err != nil {
		return fmt.Errorf("SaveMemory: %w", err)
	}
	tags, err := marshalJSON(memory.Tags)
	if err != nil {
		return fmt.Errorf("SaveMemory: %w", err)
	}

	query := `
		INSERT INTO memories
		(id, user_id, memory_type, title, content, embedding, importance, strength,
		 access_count, last_accessed, source_records, temporal_context, tags,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			memory_type = excluded.memory_type,
			title = excluded.title,
			content = excluded.content,
			embedding = excluded.embedding,
			importance = excluded.importance,
			strength = excluded.strength,
			access_count = excluded.access_count,
			last_accessed = excluded.last_accessed,
			source_records = excluded.source_records,
			temporal_context = excluded.temporal_context,
			tags = excluded.tags,
			updated_at = excluded.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.UserID,
		string(memory.Type),
		memory.Title,
		memory.Content,
		embedding,
		memory.Importance,
		memory.Strength,
		memory.AccessCount,
		memory.LastAccessed,
		sourceRecords,
		temporalContext,
		tags,
		memory.CreatedAt,
		memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveMemory: %w", err)
	}

	return nil
}

// GetMemory retrieves a memory by id, scoped to the given user.
func (c *Client) GetMemory(ctx context.Context, userID, id string) (*storage.Memory, error) {
	query := `
		SELECT id, user_id, memory_type, title, content, embedding, importance,
		       strength, access_count, last_accessed, source_records,
		       temporal_context, tags, created_at, updated_at
		FROM memories
		WHERE user_id = ? AND id = ?
	`

	memory, err := scanMemory(c.db.QueryRowContext(ctx, query, userID, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("GetMemory: %w", err)
	}

	return memory, nil
}

// ListMemories retrieves memories matching the filter, newest first.
func (c *Client) ListMemories(ctx context.Context, filter *storage.MemoryFilter) ([]*storage.Memory, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{filter.UserID}

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, fmt.Sprintf("memory_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if !filter.CreatedAfter.IsZero() {
		where = append(where, "created_at > ?")
		args = append(args, filter.CreatedAfter)
	}
	if filter.MinStrength > 0 {
		where = append(where, "strength >= ?")
		args = append(args, filter.MinStrength)
	}
	if filter.TitleContains != "" {
		where = append(where, "lower(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.TitleContains)+"%")
	}
	if len(filter.Tags) > 0 {
		// Tags are stored as a JSON array; match the quoted element text.
		likes := make([]string, len(filter.Tags))
		for i, tag := range filter.Tags {
			likes[i] = "tags LIKE ?"
			args = append(args, `%"`+tag+`"%`)
		}
		where = append(where, "("+strings.Join(likes, " OR ")+")")
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, memory_type, title, content, embedding, importance,
		       strength, access_count, last_accessed, source_records,
		       temporal_context, tags, created_at, updated_at
		FROM memories
		WHERE %s
		ORDER BY created_at DESC
	`, strings.Join(where, " AND "))

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListMemories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListMemories: %w", err)
		}
		memories = append(memories, memory)
	}

	return memories, rows.Err()
}

// DeleteMemory deletes a memory by id, scoped to the given user.
func (c *Client) DeleteMemory(ctx context.Context, userID, id string) error {
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM memories WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("DeleteMemory: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteMemory: %w", err)
	}
	if affected == 0 {
		return storage.ErrNoRows
	}

	return nil
}

// SaveEntity inserts or updates an entity.
func (c *Client) SaveEntity(ctx context.Context, entity *storage.Entity) error {
	attributes, err := marshalJSON(entity.Attributes)
	if err != nil {
		return fmt.Errorf("SaveEntity: %w", err)
	}
	sourceRecords, err := marshalJSON(entity.SourceRecords)
	if err != nil {
		return fmt.Errorf("SaveEntity: %w", err)
	}
	embedding, err := marshalJSON(entity.Embedding)
	if err != nil {
		return fmt.Errorf("SaveEntity: %w", err)
	}

	query := `
		INSERT INTO entities
		(id, user_id, entity_type, name, description, attributes, importance,
		 first_seen, last_seen, interaction_count, source_records, embedding,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			attributes = excluded.attributes,
			importance = excluded.importance,
			last_seen = excluded.last_seen,
			interaction_count = excluded.interaction_count,
			source_records = excluded.source_records,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		entity.ID,
		entity.UserID,
		string(entity.Type),
		entity.Name,
		entity.Description,
		attributes,
		entity.Importance,
		entity.FirstSeen,
		entity.LastSeen,
		entity.InteractionCount,
		sourceRecords,
		embedding,
		entity.CreatedAt,
		entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveEntity: %w", err)
	}

	return nil
}

// FindEntity retrieves an entity by exact (user, type, name) match.
func (c *Client) FindEntity(ctx context.Context, userID string, entityType storage.EntityType, name string) (*storage.Entity, error) {
	query := `
		SELECT id, user_id, entity_type, name, description, attributes,
		       importance, first_seen, last_seen, interaction_count,
		       source_records, embedding, created_at, updated_at
		FROM entities
		WHERE user_id = ? AND entity_type = ? AND lower(name) = lower(?)
	`

	entity, err := scanEntity(c.db.QueryRowContext(ctx, query, userID, string(entityType), name))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("FindEntity: %w", err)
	}

	return entity, nil
}

// ListEntities retrieves entities matching the filter.
func (c *Client) ListEntities(ctx context.Context, filter *storage.EntityFilter) ([]*storage.Entity, error) {
	where := "WHERE user_id = ?"
	args := []interface{}{filter.UserID}

	if filter.Type != "" {
		where += " AND entity_type = ?"
		args = append(args, string(filter.Type))
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, entity_type, name, description, attributes,
		       importance, first_seen, last_seen, interaction_count,
		       source_records, embedding, created_at, updated_at
		FROM entities
		%s
		ORDER BY last_seen DESC
	`, where)

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEntities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []*storage.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("ListEntities: %w", err)
		}
		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

// SaveConnection inserts or updates a connection.
func (c *Client) SaveConnection(ctx context.Context, connection *storage.Connection) error {
	metadata, err := marshalJSON(connection.Metadata)
	if err != nil {
		return fmt.Errorf("SaveConnection: %w", err)
	}

	query := `
		INSERT INTO memory_connections
		(id, user_id, source_type, source_id, target_type, target_id,
		 connection_type, strength, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			strength = excluded.strength,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		connection.ID,
		connection.UserID,
		string(connection.SourceType),
		connection.SourceID,
		string(connection.TargetType),
		connection.TargetID,
		string(connection.Type),
		connection.Strength,
		metadata,
		connection.CreatedAt,
		connection.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveConnection: %w", err)
	}

	return nil
}

// FindConnection retrieves a connection by its identifying tuple.
func (c *Client) FindConnection(ctx context.Context, userID, sourceID, targetID string, connType storage.ConnectionType) (*storage.Connection, error) {
	query := `
		SELECT id, user_id, source_type, source_id, target_type, target_id,
		       connection_type, strength, metadata, created_at, updated_at
		FROM memory_connections
		WHERE user_id = ? AND source_id = ? AND target_id = ? AND connection_type = ?
	`

	connection, err := scanConnection(c.db.QueryRowContext(ctx, query, userID, sourceID, targetID, string(connType)))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("FindConnection: %w", err)
	}

	return connection, nil
}

// ListConnections retrieves connections matching the filter.
func (c *Client) ListConnections(ctx context.Context, filter *storage.ConnectionFilter) ([]*storage.Connection, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{filter.UserID}

	if filter.NodeID != "" {
		where = append(where, "(source_id = ? OR target_id = ?)")
		args = append(args, filter.NodeID, filter.NodeID)
	}
	if filter.SourceID != "" {
		where = append(where, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if filter.TargetID != "" {
		where = append(where, "target_id = ?")
		args = append(args, filter.TargetID)
	}
	if filter.Type != "" {
		where = append(where, "connection_type = ?")
		args = append(args, string(filter.Type))
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, source_type, source_id, target_type, target_id,
		       connection_type, strength, metadata, created_at, updated_at
		FROM memory_connections
		WHERE %s
		ORDER BY created_at DESC
	`, strings.Join(where, " AND "))

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListConnections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var connections []*storage.Connection
	for rows.Next() {
		connection, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("ListConnections: %w", err)
		}
		connections = append(connections, connection)
	}

	return connections, rows.Err()
}

// SaveInsight inserts or updates an insight.
func (c *Client) SaveInsight(ctx context.Context, insight *storage.Insight) error {
	sourceMemories, err := marshalJSON(insight.SourceMemories)
	if err != nil {
		return fmt.Errorf("SaveInsight: %w", err)
	}
	relatedEntities, err := marshalJSON(insight.RelatedEntities)
	if err != nil {
		return fmt.Errorf("SaveInsight: %w", err)
	}

	query := `
		INSERT INTO insights
		(id, user_id, title, content, category, confidence, source_memories,
		 related_entities, is_highlighted, user_rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			confidence = excluded.confidence,
			is_highlighted = excluded.is_highlighted,
			user_rating = excluded.user_rating,
			updated_at = excluded.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		insight.ID,
		insight.UserID,
		insight.Title,
		insight.Content,
		string(insight.Category),
		insight.Confidence,
		sourceMemories,
		relatedEntities,
		insight.IsHighlighted,
		insight.UserRating,
		insight.CreatedAt,
		insight.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveInsight: %w", err)
	}

	return nil
}

// GetInsight retrieves an insight by id, scoped to the given user.
func (c *Client) GetInsight(ctx context.Context, userID, id string) (*storage.Insight, error) {
	query := `
		SELECT id, user_id, title, content, category, confidence,
		       source_memories, related_entities, is_highlighted, user_rating,
		       created_at, updated_at
		FROM insights
		WHERE user_id = ? AND id = ?
	`

	insight, err := scanInsight(c.db.QueryRowContext(ctx, query, userID, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("GetInsight: %w", err)
	}

	return insight, nil
}

// ListInsights retrieves insights matching the filter, newest first.
func (c *Client) ListInsights(ctx context.Context, filter *storage.InsightFilter) ([]*storage.Insight, error) {
	where := "WHERE user_id = ?"
	args := []interface{}{filter.UserID}

	if filter.Category != "" {
		where += " AND category = ?"
		args = append(args, string(filter.Category))
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, title, content, category, confidence,
		       source_memories, related_entities, is_highlighted, user_rating,
		       created_at, updated_at
		FROM insights
		%s
		ORDER BY created_at DESC
	`, where)

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListInsights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var insights []*storage.Insight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("ListInsights: %w", err)
		}
		insights = append(insights, insight)
	}

	return insights, rows.Err()
}

// SaveProcess inserts or updates a process record.
func (c *Client) SaveProcess(ctx context.Context, process *storage.Process) error {
	logJSON, err := marshalJSON(process.Log)
	if err != nil {
		return fmt.Errorf("SaveProcess: %w", err)
	}

	query := `
		INSERT INTO memory_processes
		(id, user_id, process_type, start_time, end_time, status,
		 items_processed, items_created, items_modified, log,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			end_time = excluded.end_time,
			status = excluded.status,
			items_processed = excluded.items_processed,
			items_created = excluded.items_created,
			items_modified = excluded.items_modified,
			log = excluded.log,
			updated_at = excluded.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		process.ID,
		process.UserID,
		process.Type,
		process.StartTime,
		process.EndTime,
		string(process.Status),
		process.ItemsProcessed,
		process.ItemsCreated,
		process.ItemsModified,
		logJSON,
		process.CreatedAt,
		process.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveProcess: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// scanMemory scans a memory row.
func scanMemory(s rowScanner) (*storage.Memory, error) {
	var memory storage.Memory
	var memoryType string
	var embedding, sourceRecords, temporalContext, tags sql.NullString
	var lastAccessed sql.NullTime

	err := s.Scan(
		&memory.ID,
		&memory.UserID,
		&memoryType,
		&memory.Title,
		&memory.Content,
		&embedding,
		&memory.Importance,
		&memory.Strength,
		&memory.AccessCount,
		&lastAccessed,
		&sourceRecords,
		&temporalContext,
		&tags,
		&memory.CreatedAt,
		&memory.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	memory.Type = storage.MemoryType(memoryType)
	if lastAccessed.Valid {
		memory.LastAccessed = lastAccessed.Time
	}
	if err := unmarshalJSON(embedding, &memory.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	if err := unmarshalJSON(sourceRecords, &memory.SourceRecords); err != nil {
		return nil, fmt.Errorf("parse source_records: %w", err)
	}
	if err := unmarshalJSON(temporalContext, &memory.TemporalContext); err != nil {
		return nil, fmt.Errorf("parse temporal_context: %w", err)
	}
	if err := unmarshalJSON(tags, &memory.Tags); err != nil {
		return nil, fmt.Errorf("parse tags: %w", err)
	}

	return &memory, nil
}

// scanEntity scans an entity row.
func scanEntity(s rowScanner) (*storage.Entity, error) {
	var entity storage.Entity
	var entityType string
	var description sql.NullString
	var attributes, sourceRecords, embedding sql.NullString

	err := s.Scan(
		&entity.ID,
		&entity.UserID,
		&entityType,
		&entity.Name,
		&description,
		&attributes,
		&entity.Importance,
		&entity.FirstSeen,
		&entity.LastSeen,
		&entity.InteractionCount,
		&sourceRecords,
		&embedding,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entity.Type = storage.EntityType(entityType)
	entity.Description = description.String
	if err := unmarshalJSON(attributes, &entity.Attributes); err != nil {
		return nil, fmt.Errorf("parse attributes: %w", err)
	}
	if err := unmarshalJSON(sourceRecords, &entity.SourceRecords); err != nil {
		return nil, fmt.Errorf("parse source_records: %w", err)
	}
	if err := unmarshalJSON(embedding, &entity.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}

	return &entity, nil
}

// scanConnection scans a connection row.
func scanConnection(s rowScanner) (*storage.Connection, error) {
	var connection storage.Connection
	var sourceType, targetType, connType string
	var metadata sql.NullString

	err := s.Scan(
		&connection.ID,
		&connection.UserID,
		&sourceType,
		&connection.SourceID,
		&targetType,
		&connection.TargetID,
		&connType,
		&connection.Strength,
		&metadata,
		&connection.CreatedAt,
		&connection.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	connection.SourceType = storage.NodeType(sourceType)
	connection.TargetType = storage.NodeType(targetType)
	connection.Type = storage.ConnectionType(connType)
	if err := unmarshalJSON(metadata, &connection.Metadata); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	return &connection, nil
}

// scanInsight scans an insight row.
func scanInsight(s rowScanner) (*storage.Insight, error) {
	var insight storage.Insight
	var category string
	var sourceMemories, relatedEntities sql.NullString

	err := s.Scan(
		&insight.ID,
		&insight.UserID,
		&insight.Title,
		&insight.Content,
		&category,
		&insight.Confidence,
		&sourceMemories,
		&relatedEntities,
		&insight.IsHighlighted,
		&insight.UserRating,
		&insight.CreatedAt,
		&insight.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	insight.Category = storage.InsightCategory(category)
	if err := unmarshalJSON(sourceMemories, &insight.SourceMemories); err != nil {
		return nil, fmt.Errorf("parse source_memories: %w", err)
	}
	if err := unmarshalJSON(relatedEntities, &insight.RelatedEntities); err != nil {
		return nil, fmt.Errorf("parse related_entities: %w", err)
	}

	return &insight, nil
}

// marshalJSON renders v as a JSON string for a TEXT column.
// Nil values are stored as empty strings.
func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalJSON parses a JSON TEXT column into dest, tolerating NULL and
// empty strings.
func unmarshalJSON(src sql.NullString, dest interface{}) error {
	if !src.Valid || src.String == "" || src.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dest)
}
