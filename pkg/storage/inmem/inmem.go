// Package inmem provides an in-memory implementation of storage.Store.
//
// It is intended for tests and short-lived embedded use. All data is lost
// when the process exits. Records are deep-copied on the way in and out so
// callers cannot mutate stored state through shared slices or maps.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/quantself/engram-go/pkg/storage"
)

// Store implements storage.Store backed by in-process maps.
type Store struct {
	mu          sync.RWMutex
	memories    map[string]*storage.Memory
	entities    map[string]*storage.Entity
	connections map[string]*storage.Connection
	insights    map[string]*storage.Insight
	processes   map[string]*storage.Process
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		memories:    make(map[string]*storage.Memory),
		entities:    make(map[string]*storage.Entity),
		connections: make(map[string]*storage.Connection),
		insights:    make(map[string]*storage.Insight),
		processes:   make(map[string]*storage.Process),
	}
}

// SaveMemory inserts or updates a memory.
func (s *Store) SaveMemory(ctx context.Context, memory *storage.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[memory.ID] = copyMemory(memory)
	return nil
}

// GetMemory retrieves a memory by id, scoped to the given user.
func (s *Store) GetMemory(ctx context.Context, userID, id string) (*storage.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	memory, ok := s.memories[id]
	if !ok || memory.UserID != userID {
		return nil, storage.ErrNoRows
	}
	return copyMemory(memory), nil
}

// ListMemories retrieves memories matching the filter, newest first.
func (s *Store) ListMemories(ctx context.Context, filter *storage.MemoryFilter) ([]*storage.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Memory
	for _, memory := range s.memories {
		if !matchMemory(memory, filter) {
			continue
		}
		result = append(result, copyMemory(memory))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// DeleteMemory deletes a memory by id, scoped to the given user.
func (s *Store) DeleteMemory(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	memory, ok := s.memories[id]
	if !ok || memory.UserID != userID {
		return storage.ErrNoRows
	}
	delete(s.memories, id)
	return nil
}

// SaveEntity inserts or updates an entity.
func (s *Store) SaveEntity(ctx context.Context, entity *storage.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[entity.ID] = copyEntity(entity)
	return nil
}

// FindEntity retrieves an entity by exact (user, type, name) match.
func (s *Store) FindEntity(ctx context.Context, userID string, entityType storage.EntityType, name string) (*storage.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(name)
	for _, entity := range s.entities {
		if entity.UserID == userID && entity.Type == entityType && strings.ToLower(entity.Name) == lower {
			return copyEntity(entity), nil
		}
	}
	return nil, storage.ErrNoRows
}

// ListEntities retrieves entities matching the filter, most recently
// seen first.
func (s *Store) ListEntities(ctx context.Context, filter *storage.EntityFilter) ([]*storage.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Entity
	for _, entity := range s.entities {
		if entity.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && entity.Type != filter.Type {
			continue
		}
		result = append(result, copyEntity(entity))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastSeen.After(result[j].LastSeen)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// SaveConnection inserts or updates a connection.
func (s *Store) SaveConnection(ctx context.Context, connection *storage.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[connection.ID] = copyConnection(connection)
	return nil
}

// FindConnection retrieves a connection by its identifying tuple.
func (s *Store) FindConnection(ctx context.Context, userID, sourceID, targetID string, connType storage.ConnectionType) (*storage.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, connection := range s.connections {
		if connection.UserID == userID &&
			connection.SourceID == sourceID &&
			connection.TargetID == targetID &&
			connection.Type == connType {
			return copyConnection(connection), nil
		}
	}
	return nil, storage.ErrNoRows
}

// ListConnections retrieves connections matching the filter.
func (s *Store) ListConnections(ctx context.Context, filter *storage.ConnectionFilter) ([]*storage.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Connection
	for _, connection := range s.connections {
		if connection.UserID != filter.UserID {
			continue
		}
		if filter.NodeID != "" && connection.SourceID != filter.NodeID && connection.TargetID != filter.NodeID {
			continue
		}
		if filter.SourceID != "" && connection.SourceID != filter.SourceID {
			continue
		}
		if filter.TargetID != "" && connection.TargetID != filter.TargetID {
			continue
		}
		if filter.Type != "" && connection.Type != filter.Type {
			continue
		}
		result = append(result, copyConnection(connection))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// SaveInsight inserts or updates an insight.
func (s *Store) SaveInsight(ctx context.Context, insight *storage.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights[insight.ID] = copyInsight(insight)
	return nil
}

// GetInsight retrieves an insight by id, scoped to the given user.
func (s *Store) GetInsight(ctx context.Context, userID, id string) (*storage.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	insight, ok := s.insights[id]
	if !ok || insight.UserID != userID {
		return nil, storage.ErrNoRows
	}
	return copyInsight(insight), nil
}

// ListInsights retrieves insights matching the filter, newest first.
func (s *Store) ListInsights(ctx context.Context, filter *storage.InsightFilter) ([]*storage.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Insight
	for _, insight := range s.insights {
		if insight.UserID != filter.UserID {
			continue
		}
		if filter.Category != "" && insight.Category != filter.Category {
			continue
		}
		result = append(result, copyInsight(insight))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// SaveProcess inserts or updates a process record.
func (s *Store) SaveProcess(ctx context.Context, process *storage.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processes[process.ID] = copyProcess(process)
	return nil
}

// Processes returns all process records for a user, for inspection in tests.
func (s *Store) Processes(userID string) []*storage.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*storage.Process
	for _, process := range s.processes {
		if process.UserID == userID {
			result = append(result, copyProcess(process))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result
}

// Close releases nothing; it exists to satisfy storage.Store.
func (s *Store) Close() error {
	return nil
}

func matchMemory(memory *storage.Memory, filter *storage.MemoryFilter) bool {
	if memory.UserID != filter.UserID {
		return false
	}
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if memory.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !filter.CreatedAfter.IsZero() && !memory.CreatedAt.After(filter.CreatedAfter) {
		return false
	}
	if filter.MinStrength > 0 && memory.Strength < filter.MinStrength {
		return false
	}
	if filter.TitleContains != "" &&
		!strings.Contains(strings.ToLower(memory.Title), strings.ToLower(filter.TitleContains)) {
		return false
	}
	if len(filter.Tags) > 0 {
		found := false
		for _, want := range filter.Tags {
			for _, tag := range memory.Tags {
				if tag == want {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func copyMemory(m *storage.Memory) *storage.Memory {
	out := *m
	out.Embedding = append([]float64(nil), m.Embedding...)
	out.SourceRecords = append([]string(nil), m.SourceRecords...)
	out.Tags = append([]string(nil), m.Tags...)
	out.TemporalContext = copyMap(m.TemporalContext)
	return &out
}

func copyEntity(e *storage.Entity) *storage.Entity {
	out := *e
	out.Attributes = copyMap(e.Attributes)
	out.SourceRecords = append([]string(nil), e.SourceRecords...)
	out.Embedding = append([]float64(nil), e.Embedding...)
	return &out
}

func copyConnection(c *storage.Connection) *storage.Connection {
	out := *c
	out.Metadata = copyMap(c.Metadata)
	return &out
}

func copyInsight(i *storage.Insight) *storage.Insight {
	out := *i
	out.SourceMemories = append([]string(nil), i.SourceMemories...)
	out.RelatedEntities = append([]string(nil), i.RelatedEntities...)
	return &out
}

func copyProcess(p *storage.Process) *storage.Process {
	out := *p
	out.Log = append([]string(nil), p.Log...)
	if p.EndTime != nil {
		end := *p.EndTime
		out.EndTime = &end
	}
	return &out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
