// Package entity extracts people, places, projects, and other entities from
// memory text using priority-ordered, context-gated patterns.
//
// Recognized entities are persisted through a storage.Store and cached per
// user so repeated mentions update interaction counts instead of creating
// duplicates. Near-duplicate names ("Sara" vs "Sarah") are merged into the
// existing entity with an alias note.
package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quantself/engram-go/pkg/storage"
)

// Embedder generates vector embeddings for entity descriptions.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Pattern is a context-aware extraction rule for one entity type.
type Pattern struct {
	// Type is the entity type this pattern produces.
	Type storage.EntityType

	// Pattern is the compiled capture regexp; the first capture group is
	// the candidate name.
	Pattern *regexp.Regexp

	// ContextWords gate the pattern: when non-empty, at least one must
	// occur in the text (case-insensitive) for the pattern to fire.
	ContextWords []string

	// Priority orders patterns within a type, highest first.
	Priority int
}

// Recognizer extracts and manages entities for all users.
type Recognizer struct {
	store    storage.Store
	embedder Embedder
	node     *snowflake.Node
	logger   *slog.Logger

	mu sync.Mutex
	// known caches entities per user, keyed by type and lowercased name.
	// Keys carry the type so "Central Park" the place and a same-named
	// project stay distinct entities.
	known    map[string]map[string]*storage.Entity
	patterns map[storage.EntityType][]*Pattern
	common   map[string]bool
}

// frequentConceptThreshold is the minimum number of occurrences for a word
// to be mined as a concept in the frequency pass.
const frequentConceptThreshold = 3

// NewRecognizer creates an entity recognizer with the default pattern set.
func NewRecognizer(store storage.Store, embedder Embedder, node *snowflake.Node, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recognizer{
		store:    store,
		embedder: embedder,
		node:     node,
		logger:   logger,
		known:    make(map[string]map[string]*storage.Entity),
		patterns: make(map[storage.EntityType][]*Pattern),
		common:   buildCommonWords(),
	}

	r.registerDefaultPatterns()

	return r
}

// RegisterPattern adds an extraction pattern for the given entity type.
//
// Patterns for a type are kept sorted by descending priority. Returns an
// error if the regular expression does not compile.
func (r *Recognizer) RegisterPattern(entityType storage.EntityType, expr string, contextWords []string, priority int) error {
	compiled, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("RegisterPattern: invalid pattern %q: %w", expr, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.patterns[entityType] = append(r.patterns[entityType], &Pattern{
		Type:         entityType,
		Pattern:      compiled,
		ContextWords: contextWords,
		Priority:     priority,
	})

	sort.Slice(r.patterns[entityType], func(i, j int) bool {
		return r.patterns[entityType][i].Priority > r.patterns[entityType][j].Priority
	})

	return nil
}

// registerDefaultPatterns sets up the standard recognition patterns.
func (r *Recognizer) registerDefaultPatterns() {
	_ = r.RegisterPattern(
		storage.EntityTypePerson,
		`(?i)\b([A-Z][a-z]{2,}(?:\s+[A-Z][a-z]{1,})?)\b`,
		[]string{"met", "with", "talked", "spoke", "called", "messaged", "visited", "saw", "meeting", "colleague", "friend", "family"},
		100,
	)

	_ = r.RegisterPattern(
		storage.EntityTypePlace,
		`(?i)\b([A-Z][a-z]{2,}(?:\s+[A-Z][a-z]{1,})?)\b`,
		[]string{"at", "in", "to", "from", "near", "visited", "went", "location", "restaurant", "cafe", "park", "building", "street", "avenue", "plaza"},
		90,
	)

	_ = r.RegisterPattern(
		storage.EntityTypeProject,
		`(?i)\b([A-Z][a-z]{2,}(?:\s+[A-Z][a-z]{1,})?|[A-Z]{2,})\b`,
		[]string{"project", "working", "developing", "building", "creating", "planning", "designing", "implementing", "milestone", "deadline", "sprint", "feature"},
		80,
	)

	_ = r.RegisterPattern(
		storage.EntityTypeOrganization,
		`(?i)\b([A-Z][a-z]{2,}(?:\s+[A-Z][a-z]{1,})?|[A-Z]{2,})\b`,
		[]string{"company", "organization", "team", "group", "department", "corp", "inc", "llc", "ltd", "corporation", "association", "institute"},
		70,
	)

	_ = r.RegisterPattern(
		storage.EntityTypeTechnology,
		`(?i)\b([A-Z][a-z]{2,}(?:\s+[A-Z][a-z]{1,})?|[A-Z][a-zA-Z]*(?:\.[a-zA-Z]+)+)\b`,
		[]string{"using", "learning", "working", "coding", "programming", "technology", "software", "platform", "framework", "language", "library", "tool"},
		60,
	)

	_ = r.RegisterPattern(
		storage.EntityTypeConcept,
		`(?i)\b([a-z]{4,})\b`,
		[]string{"concept", "idea", "theory", "strategy", "approach", "method", "philosophy", "principle", "thought", "insight", "understanding"},
		50,
	)
}

// ExtractEntities analyzes text and returns the entities it mentions,
// creating or updating stored entities as a side effect.
//
// Extraction never fails the caller outright: per-candidate persistence
// errors are logged and skipped.
func (r *Recognizer) ExtractEntities(ctx context.Context, userID, text string) ([]*storage.Entity, error) {
	if err := r.ensureUserCache(ctx, userID); err != nil {
		return nil, fmt.Errorf("ExtractEntities: %w", err)
	}

	var extracted []*storage.Entity
	for entityType, patterns := range r.snapshotPatterns() {
		extracted = append(extracted, r.extractByType(ctx, userID, text, entityType, patterns)...)
	}

	extracted = append(extracted, r.extractFrequentConcepts(ctx, userID, text)...)

	return dedupeByID(extracted), nil
}

// snapshotPatterns copies the pattern registry so extraction can run
// without holding the cache mutex.
func (r *Recognizer) snapshotPatterns() map[storage.EntityType][]*Pattern {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[storage.EntityType][]*Pattern, len(r.patterns))
	for entityType, patterns := range r.patterns {
		snapshot[entityType] = append([]*Pattern(nil), patterns...)
	}
	return snapshot
}

// extractByType runs the patterns of one entity type against the text.
func (r *Recognizer) extractByType(ctx context.Context, userID, text string, entityType storage.EntityType, patterns []*Pattern) []*storage.Entity {
	var entities []*storage.Entity
	lowerText := strings.ToLower(text)

	for _, pattern := range patterns {
		if len(pattern.ContextWords) > 0 {
			hasContext := false
			for _, word := range pattern.ContextWords {
				if strings.Contains(lowerText, strings.ToLower(word)) {
					hasContext = true
					break
				}
			}
			if !hasContext {
				continue
			}
		}

		for _, match := range pattern.Pattern.FindAllStringSubmatch(text, -1) {
			if len(match) < 2 {
				continue
			}
			name := strings.TrimSpace(match[1])

			if len(name) < 3 || r.isCommonWord(name) {
				continue
			}

			// Concepts must recur within the text to count.
			if entityType == storage.EntityTypeConcept {
				if strings.Count(lowerText, strings.ToLower(name)) < 2 {
					continue
				}
			}

			entity, err := r.GetOrCreateEntity(ctx, userID, entityType, name, describeEntity(entityType))
			if err != nil {
				r.logger.Error("failed to create entity", "name", name, "type", entityType, "error", err)
				continue
			}

			entities = append(entities, entity)
		}
	}

	return entities
}

// extractFrequentConcepts mines concept entities from word frequency:
// any non-trivial word of four or more characters appearing at least three
// times becomes a concept.
func (r *Recognizer) extractFrequentConcepts(ctx context.Context, userID, text string) []*storage.Entity {
	counts := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?():;\"'")
		if len(word) >= 4 && !r.isCommonWord(word) {
			counts[word]++
		}
	}

	var entities []*storage.Entity
	for word, count := range counts {
		if count < frequentConceptThreshold {
			continue
		}
		description := fmt.Sprintf("A concept mentioned frequently in content (%d times)", count)
		entity, err := r.GetOrCreateEntity(ctx, userID, storage.EntityTypeConcept, word, description)
		if err != nil {
			r.logger.Error("failed to create concept entity", "name", word, "error", err)
			continue
		}
		entities = append(entities, entity)
	}

	return entities
}

// GetOrCreateEntity returns the entity with the given name, creating it if
// it does not exist.
//
// Resolution order: exact (type, lowercase name) cache hit, then a
// similar-name scan over cached entities of the same type (merged as an
// alias), then a store lookup, then creation. Every resolution bumps the
// interaction count and refreshes LastSeen.
func (r *Recognizer) GetOrCreateEntity(ctx context.Context, userID string, entityType storage.EntityType, name, description string) (*storage.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	userEntities, cached := r.known[userID]
	if cached {
		if entity, ok := userEntities[cacheKey(entityType, name)]; ok {
			entity.InteractionCount++
			entity.LastSeen = now
			if description != "" && !strings.Contains(entity.Description, description) {
				entity.Description = strings.TrimSpace(entity.Description + " " + description)
			}
			entity.UpdatedAt = now

			if err := r.store.SaveEntity(ctx, entity); err != nil {
				return nil, fmt.Errorf("GetOrCreateEntity: %w", err)
			}
			return entity, nil
		}

		for _, entity := range userEntities {
			if entity.Type != entityType || !namesSimilar(name, entity.Name) {
				continue
			}
			// Same entity under a variant spelling; keep the canonical
			// name and note the alias.
			if !strings.Contains(entity.Description, name) {
				entity.Description = strings.TrimSpace(entity.Description + " Also known as: " + name)
			}
			entity.InteractionCount++
			entity.LastSeen = now
			entity.UpdatedAt = now

			if err := r.store.SaveEntity(ctx, entity); err != nil {
				return nil, fmt.Errorf("GetOrCreateEntity: %w", err)
			}
			return entity, nil
		}
	} else {
		r.known[userID] = make(map[string]*storage.Entity)
	}

	existing, err := r.store.FindEntity(ctx, userID, entityType, name)
	if err != nil && !errors.Is(err, storage.ErrNoRows) {
		return nil, fmt.Errorf("GetOrCreateEntity: %w", err)
	}
	if existing != nil {
		existing.InteractionCount++
		existing.LastSeen = now
		if description != "" && !strings.Contains(existing.Description, description) {
			existing.Description = strings.TrimSpace(existing.Description + " " + description)
		}
		existing.UpdatedAt = now

		if err := r.store.SaveEntity(ctx, existing); err != nil {
			return nil, fmt.Errorf("GetOrCreateEntity: %w", err)
		}
		r.known[userID][cacheKey(entityType, name)] = existing
		return existing, nil
	}

	entity := &storage.Entity{
		ID:               r.node.Generate().String(),
		UserID:           userID,
		Type:             entityType,
		Name:             name,
		Description:      description,
		Attributes:       map[string]interface{}{},
		Importance:       initialImportance(entityType),
		FirstSeen:        now,
		LastSeen:         now,
		InteractionCount: 1,
		SourceRecords:    []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// The embedding is an enrichment; its absence never blocks creation.
	if r.embedder != nil {
		embedding, err := r.embedder.Embed(ctx, name+" "+description)
		if err != nil {
			r.logger.Warn("entity embedding failed", "name", name, "error", err)
		} else {
			entity.Embedding = embedding
		}
	}

	if err := r.store.SaveEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("GetOrCreateEntity: %w", err)
	}

	r.known[userID][cacheKey(entityType, name)] = entity
	return entity, nil
}

// LoadUserEntities replaces the user's entity cache with the stored set.
func (r *Recognizer) LoadUserEntities(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entities, err := r.store.ListEntities(ctx, &storage.EntityFilter{UserID: userID})
	if err != nil {
		return fmt.Errorf("LoadUserEntities: %w", err)
	}

	r.known[userID] = make(map[string]*storage.Entity, len(entities))
	for _, entity := range entities {
		r.known[userID][cacheKey(entity.Type, entity.Name)] = entity
	}

	return nil
}

// ensureUserCache lazily loads the user's entities on first use.
func (r *Recognizer) ensureUserCache(ctx context.Context, userID string) error {
	r.mu.Lock()
	_, ok := r.known[userID]
	r.mu.Unlock()
	if ok {
		return nil
	}
	return r.LoadUserEntities(ctx, userID)
}

// cacheKey builds the per-user cache key for an entity.
func cacheKey(entityType storage.EntityType, name string) string {
	return string(entityType) + ":" + strings.ToLower(name)
}

// isCommonWord reports whether a word is too common to be an entity.
func (r *Recognizer) isCommonWord(word string) bool {
	word = strings.ToLower(word)

	if r.common[word] {
		return true
	}

	for _, title := range []string{"mr", "mrs", "ms", "dr", "prof", "miss", "sir", "madam", "lord", "lady"} {
		if word == title {
			return true
		}
	}

	for _, timeWord := range []string{
		"january", "february", "march", "april", "may", "june", "july",
		"august", "september", "october", "november", "december",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		"good", "great", "bad", "nice", "fine", "new", "old", "big", "small", "high", "low",
	} {
		if word == timeWord {
			return true
		}
	}

	return false
}

// describeEntity creates the default description for an entity type.
func describeEntity(entityType storage.EntityType) string {
	switch entityType {
	case storage.EntityTypePerson:
		return "A person mentioned in your content"
	case storage.EntityTypePlace:
		return "A location referenced in your content"
	case storage.EntityTypeProject:
		return "A project you've mentioned"
	case storage.EntityTypeOrganization:
		return "An organization referenced in your content"
	case storage.EntityTypeTechnology:
		return "A technology mentioned in your content"
	case storage.EntityTypeConcept:
		return "A concept that appears in your content"
	case storage.EntityTypeDevice:
		return "A device you use"
	default:
		return fmt.Sprintf("A %s entity in your content", entityType)
	}
}

// initialImportance assigns the starting importance for a new entity.
func initialImportance(entityType storage.EntityType) float64 {
	switch entityType {
	case storage.EntityTypePerson:
		return 0.7
	case storage.EntityTypeProject:
		return 0.8
	case storage.EntityTypePlace:
		return 0.6
	case storage.EntityTypeOrganization:
		return 0.7
	case storage.EntityTypeTechnology:
		return 0.6
	default:
		return 0.5
	}
}

// dedupeByID removes duplicate entities from a list.
func dedupeByID(entities []*storage.Entity) []*storage.Entity {
	if len(entities) <= 1 {
		return entities
	}

	seen := make(map[string]bool, len(entities))
	result := make([]*storage.Entity, 0, len(entities))
	for _, entity := range entities {
		if seen[entity.ID] {
			continue
		}
		seen[entity.ID] = true
		result = append(result, entity)
	}

	return result
}
