// Package postgres provides the PostgreSQL implementation of storage.Store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/quantself/engram-go/pkg/storage"
)

// Client is a PostgreSQL store client.
type Client struct {
	db *sql.DB
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// NewClient creates a new PostgreSQL client.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	client := &Client{db: db}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database tables. Structured columns use JSONB.
func (c *Client) initTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			memory_type VARCHAR(32) NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding JSONB,
			importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			strength DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed TIMESTAMP,
			source_records JSONB,
			temporal_context JSONB,
			tags JSONB,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			entity_type VARCHAR(32) NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			attributes JSONB,
			importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			first_seen TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL,
			interaction_count INTEGER NOT NULL DEFAULT 1,
			source_records JSONB,
			embedding JSONB,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_user_type_name ON entities(user_id, entity_type, name)`,
		`CREATE TABLE IF NOT EXISTS memory_connections (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			source_type VARCHAR(16) NOT NULL,
			source_id VARCHAR(64) NOT NULL,
			target_type VARCHAR(16) NOT NULL,
			target_id VARCHAR(64) NOT NULL,
			connection_type VARCHAR(64) NOT NULL,
			strength DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			metadata JSONB,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_source ON memory_connections(user_id, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_target ON memory_connections(user_id, target_id)`,
		`CREATE TABLE IF NOT EXISTS insights (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			category VARCHAR(32) NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			source_memories JSONB,
			related_entities JSONB,
			is_highlighted BOOLEAN NOT NULL DEFAULT FALSE,
			user_rating INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_user ON insights(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS memory_processes (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			process_type VARCHAR(64) NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			status VARCHAR(32) NOT NULL,
			items_processed INTEGER NOT NULL DEFAULT 0,
			items_created INTEGER NOT NULL DEFAULT 0,
			items_modified INTEGER NOT NULL DEFAULT 0,
			log JSONB,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			memory_type = EXCLUDED.memory_type,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			importance = EXCLUDED.importance,
			strength = EXCLUDED.strength,
			access_count = EXCLUDED.access_count,
			last_accessed = EXCLUDED.last_accessed,
			source_records = EXCLUDED.source_records,
			temporal_context = EXCLUDED.temporal_context,
			tags = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		memory.ID, memory.UserID, string(memory.Type), memory.Title, memory.Content,
		embedding, memory.Importance, memory.Strength, memory.AccessCount,
		nullableTime(memory.LastAccessed), sourceRecords, temporalContext, tags,
		memory.CreatedAt, memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveMemory: %w", err)
	}

	return nil
}

// GetMemory retrieves a memory by id.
func (c *Client) GetMemory(ctx context.Context, userID, id string) (*storage.Memory, error) {
	query := `
		SELECT id, user_id, memory_type, title, content, embedding, importance,
		       strength, access_count, last_accessed, source_records,
		       temporal_context, tags, created_at, updated_at
		FROM memories
		WHERE user_id = $1 AND id = $2
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
//
// Tag matching uses the JSONB containment operator.
func (c *Client) ListMemories(ctx context.Context, filter *storage.MemoryFilter) ([]*storage.Memory, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			args = append(args, string(t))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, fmt.Sprintf("memory_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter)
		where = append(where, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if filter.MinStrength > 0 {
		args = append(args, filter.MinStrength)
		where = append(where, fmt.Sprintf("strength >= $%d", len(args)))
	}
	if filter.TitleContains != "" {
		args = append(args, "%"+filter.TitleContains+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if len(filter.Tags) > 0 {
		likes := make([]string, len(filter.Tags))
		for i, tag := range filter.Tags {
			tagJSON, err := json.Marshal([]string{tag})
			if err != nil {
				return nil, fmt.Errorf("ListMemories: %w", err)
			}
			args = append(args, string(tagJSON))
			likes[i] = fmt.Sprintf("tags @> $%d", len(args))
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
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
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

// DeleteMemory deletes a memory by id.
func (c *Client) DeleteMemory(ctx context.Context, userID, id string) error {
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM memories WHERE user_id = $1 AND id = $2", userID, id)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			attributes = EXCLUDED.attributes,
			importance = EXCLUDED.importance,
			last_seen = EXCLUDED.last_seen,
			interaction_count = EXCLUDED.interaction_count,
			source_records = EXCLUDED.source_records,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		entity.ID, entity.UserID, string(entity.Type), entity.Name,
		entity.Description, attributes, entity.Importance,
		entity.FirstSeen, entity.LastSeen, entity.InteractionCount,
		sourceRecords, embedding, entity.CreatedAt, entity.UpdatedAt,
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
		WHERE user_id = $1 AND entity_type = $2 AND lower(name) = lower($3)
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
	where := "WHERE user_id = $1"
	args := []interface{}{filter.UserID}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where += fmt.Sprintf(" AND entity_type = $%d", len(args))
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
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			strength = EXCLUDED.strength,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		connection.ID, connection.UserID, string(connection.SourceType),
		connection.SourceID, string(connection.TargetType), connection.TargetID,
		string(connection.Type), connection.Strength, metadata,
		connection.CreatedAt, connection.UpdatedAt,
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
		WHERE user_id = $1 AND source_id = $2 AND target_id = $3 AND connection_type = $4
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
	where := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}

	if filter.NodeID != "" {
		args = append(args, filter.NodeID)
		where = append(where, fmt.Sprintf("(source_id = $%d OR target_id = $%d)", len(args), len(args)))
	}
	if filter.SourceID != "" {
		args = append(args, filter.SourceID)
		where = append(where, fmt.Sprintf("source_id = $%d", len(args)))
	}
	if filter.TargetID != "" {
		args = append(args, filter.TargetID)
		where = append(where, fmt.Sprintf("target_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("connection_type = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, source_type, source_id, target_type, target_id,
		       connection_type, strength, metadata, created_at, updated_at
		FROM memory_connections
		WHERE %s
		ORDER BY created_at DESC
	`, strings.Join(where, " AND "))

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			confidence = EXCLUDED.confidence,
			is_highlighted = EXCLUDED.is_highlighted,
			user_rating = EXCLUDED.user_rating,
			updated_at = EXCLUDED.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		insight.ID, insight.UserID, insight.Title, insight.Content,
		string(insight.Category), insight.Confidence, sourceMemories,
		relatedEntities, insight.IsHighlighted, insight.UserRating,
		insight.CreatedAt, insight.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveInsight: %w", err)
	}

	return nil
}

// GetInsight retrieves an insight by id.
func (c *Client) GetInsight(ctx context.Context, userID, id string) (*storage.Insight, error) {
	query := `
		SELECT id, user_id, title, content, category, confidence,
		       source_memories, related_entities, is_highlighted, user_rating,
		       created_at, updated_at
		FROM insights
		WHERE user_id = $1 AND id = $2
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
	where := "WHERE user_id = $1"
	args := []interface{}{filter.UserID}

	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where += fmt.Sprintf(" AND category = $%d", len(args))
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
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			status = EXCLUDED.status,
			items_processed = EXCLUDED.items_processed,
			items_created = EXCLUDED.items_created,
			items_modified = EXCLUDED.items_modified,
			log = EXCLUDED.log,
			updated_at = EXCLUDED.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		process.ID, process.UserID, process.Type, process.StartTime,
		process.EndTime, string(process.Status), process.ItemsProcessed,
		process.ItemsCreated, process.ItemsModified, logJSON,
		process.CreatedAt, process.UpdatedAt,
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

func scanMemory(s rowScanner) (*storage.Memory, error) {
	var memory storage.Memory
	var memoryType string
	var embedding, sourceRecords, temporalContext, tags sql.NullString
	var lastAccessed sql.NullTime

	err := s.Scan(
		&memory.ID, &memory.UserID, &memoryType, &memory.Title, &memory.Content,
		&embedding, &memory.Importance, &memory.Strength, &memory.AccessCount,
		&lastAccessed, &sourceRecords, &temporalContext, &tags,
		&memory.CreatedAt, &memory.UpdatedAt,
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

func scanEntity(s rowScanner) (*storage.Entity, error) {
	var entity storage.Entity
	var entityType string
	var description, attributes, sourceRecords, embedding sql.NullString

	err := s.Scan(
		&entity.ID, &entity.UserID, &entityType, &entity.Name, &description,
		&attributes, &entity.Importance, &entity.FirstSeen, &entity.LastSeen,
		&entity.InteractionCount, &sourceRecords, &embedding,
		&entity.CreatedAt, &entity.UpdatedAt,
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

func scanConnection(s rowScanner) (*storage.Connection, error) {
	var connection storage.Connection
	var sourceType, targetType, connType string
	var metadata sql.NullString

	err := s.Scan(
		&connection.ID, &connection.UserID, &sourceType, &connection.SourceID,
		&targetType, &connection.TargetID, &connType, &connection.Strength,
		&metadata, &connection.CreatedAt, &connection.UpdatedAt,
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

func scanInsight(s rowScanner) (*storage.Insight, error) {
	var insight storage.Insight
	var category string
	var sourceMemories, relatedEntities sql.NullString

	err := s.Scan(
		&insight.ID, &insight.UserID, &insight.Title, &insight.Content,
		&category, &insight.Confidence, &sourceMemories, &relatedEntities,
		&insight.IsHighlighted, &insight.UserRating,
		&insight.CreatedAt, &insight.UpdatedAt,
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

// marshalJSON renders v for a JSONB column. Nil values become SQL NULL.
func marshalJSON(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalJSON(src sql.NullString, dest interface{}) error {
	if !src.Valid || src.String == "" || src.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dest)
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
