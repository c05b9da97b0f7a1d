package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quantself/engram-go/pkg/storage"
)

// generateInsights derives insights from a user's recent memories:
// summaries of frequently referenced entities, cross-memory patterns,
// topic trends, and high-importance highlights. At most
// Config.MaxInsightsPerRun insights are produced per pass.
func (e *Engine) generateInsights(ctx context.Context, userID string) ([]*storage.Insight, error) {
	memories, err := e.GetRecentMemoriesByTags(ctx, userID, nil, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve memories: %w", err)
	}
	if len(memories) < 5 {
		return nil, errors.New("not enough memories to generate insights")
	}

	entities, err := e.store.ListEntities(ctx, &storage.EntityFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve entities: %w", err)
	}

	var insights []*storage.Insight
	maxInsights := e.config.MaxInsightsPerRun

	insights = append(insights, e.entitySummaryInsights(ctx, userID, memories, entities, maxInsights)...)

	if len(insights) < maxInsights {
		insights = append(insights, e.clusterInsights(memories, maxInsights-len(insights))...)
	}
	if len(insights) < maxInsights {
		insights = append(insights, e.topicTrendInsights(memories, maxInsights-len(insights))...)
	}
	if len(insights) < maxInsights {
		insights = append(insights, e.highlightInsights(memories, maxInsights-len(insights))...)
	}

	var saved []*storage.Insight
	for _, insight := range insights {
		insight.UserID = userID
		if err := e.CreateInsight(ctx, insight); err != nil {
			e.logger.Warn("failed to save insight", "title", insight.Title, "error", err)
			continue
		}
		saved = append(saved, insight)
	}

	e.logger.Debug("generated insights", "user", userID, "count", len(saved))
	return saved, nil
}

// entitySummaryInsights builds insights for entities referenced by at
// least three memories, most referenced first, at most five entities.
func (e *Engine) entitySummaryInsights(ctx context.Context, userID string, memories []*storage.Memory, entities []*storage.Entity, max int) []*storage.Insight {
	frequency := make(map[string]int)
	for _, entity := range entities {
		frequency[entity.ID] = 0
	}

	for _, memory := range memories {
		connections, err := e.GetMemoryConnections(ctx, userID, memory.ID)
		if err != nil {
			continue
		}
		for _, conn := range connections {
			if conn.TargetType == storage.NodeEntity {
				frequency[conn.TargetID]++
			}
			if conn.SourceType == storage.NodeEntity {
				frequency[conn.SourceID]++
			}
		}
	}

	type entityCount struct {
		entity *storage.Entity
		count  int
	}
	var frequent []entityCount
	for _, entity := range entities {
		if frequency[entity.ID] >= 3 {
			frequent = append(frequent, entityCount{entity, frequency[entity.ID]})
		}
	}
	sort.Slice(frequent, func(i, j int) bool { return frequent[i].count > frequent[j].count })
	if len(frequent) > 5 {
		frequent = frequent[:5]
	}

	var insights []*storage.Insight
	for _, ec := range frequent {
		if len(insights) >= max {
			break
		}
		entity := ec.entity

		var sourceMemories []string
		connections, err := e.GetEntityConnections(ctx, userID, entity.ID)
		if err == nil {
			for _, conn := range connections {
				var memoryID string
				if conn.SourceType == storage.NodeMemory {
					memoryID = conn.SourceID
				} else if conn.TargetType == storage.NodeMemory {
					memoryID = conn.TargetID
				}
				if memoryID == "" {
					continue
				}
				if _, err := e.GetMemory(ctx, userID, memoryID); err != nil {
					continue
				}
				sourceMemories = append(sourceMemories, memoryID)
			}
		}

		var content string
		switch entity.Type {
		case storage.EntityTypePerson:
			content = fmt.Sprintf("%s appears in several of your memories. They seem to be a significant person in your life.", entity.Name)
		case storage.EntityTypePlace:
			content = fmt.Sprintf("%s is a location you've referenced multiple times. It seems to be an important place for you.", entity.Name)
		case storage.EntityTypeProject:
			content = fmt.Sprintf("%s is a project you've been working on across multiple entries. It might be significant for your goals.", entity.Name)
		case storage.EntityTypeConcept:
			content = fmt.Sprintf("The concept of '%s' appears frequently in your memories. It might represent an important theme in your thinking.", entity.Name)
		case storage.EntityTypeOrganization:
			content = fmt.Sprintf("%s is an organization that appears in multiple memories. It might play a significant role in your activities.", entity.Name)
		case storage.EntityTypeTechnology:
			content = fmt.Sprintf("%s is a technology you've mentioned multiple times. It seems to be important in your work or interests.", entity.Name)
		default:
			content = fmt.Sprintf("%s appears frequently in your memories and might be significant.", entity.Name)
		}

		insights = append(insights, &storage.Insight{
			Title:           fmt.Sprintf("About %s", entity.Name),
			Content:         content,
			Category:        storage.InsightEntitySummary,
			Confidence:      0.8,
			SourceMemories:  sourceMemories,
			RelatedEntities: []string{entity.ID},
		})
	}
	return insights
}

// clusterInsights describes groups of three or more related memories,
// categorized by the dominant memory type in each group.
func (e *Engine) clusterInsights(memories []*storage.Memory, max int) []*storage.Insight {
	var insights []*storage.Insight
	for _, group := range e.groupRelatedMemories(memories) {
		if len(insights) >= max {
			break
		}
		if len(group) < 3 {
			continue
		}

		typeCount := make(map[storage.MemoryType]int)
		for _, memory := range group {
			typeCount[memory.Type]++
		}

		var content string
		category := storage.InsightTemporalPattern
		half := len(group) / 2
		switch {
		case typeCount[storage.MemoryTypeEpisodic] > half:
			content = "You have several related memories about similar events. This might indicate a recurring theme or pattern in your experiences."
		case typeCount[storage.MemoryTypeSemantic] > half:
			content = "You've recorded several related semantic memories. This might represent an area of knowledge or interest that's important to you."
		case typeCount[storage.MemoryTypeProcedural] > half:
			content = "You have several procedural memories with similar patterns. This might represent a workflow or process you've been refining."
		default:
			content = "A pattern has been detected across different types of memories. This might represent a multi-faceted interest or focus area."
			category = storage.InsightThematicPattern
		}

		var sourceMemories []string
		for _, memory := range group {
			sourceMemories = append(sourceMemories, memory.ID)
		}

		insights = append(insights, &storage.Insight{
			Title:          "Pattern Found",
			Content:        content,
			Category:       category,
			Confidence:     0.7,
			SourceMemories: sourceMemories,
		})
	}
	return insights
}

// topicTrendInsights surfaces simple tags that recur across three or more
// memories. Collection tags and hyphen or underscore compounds are skipped
// so trends name user-facing topics.
func (e *Engine) topicTrendInsights(memories []*storage.Memory, max int) []*storage.Insight {
	topicMemories := make(map[string][]string)
	for _, memory := range memories {
		for _, tag := range memory.Tags {
			if tag == "life_balance" || strings.Contains(tag, "_") {
				continue
			}
			topicMemories[tag] = append(topicMemories[tag], memory.ID)
		}
	}

	var topics []string
	for topic, ids := range topicMemories {
		if len(ids) >= 3 {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)

	var insights []*storage.Insight
	for _, topic := range topics {
		if len(insights) >= max {
			break
		}
		insights = append(insights, &storage.Insight{
			Title:          fmt.Sprintf("Interest in %s", titleCase(topic)),
			Content:        fmt.Sprintf("You have been recording memories related to '%s' frequently. This may indicate a current interest or focus area.", topic),
			Category:       storage.InsightTopicTrend,
			Confidence:     0.75,
			SourceMemories: topicMemories[topic],
		})
	}
	return insights
}

// highlightInsights flags memories whose importance exceeds the
// configured highlight threshold.
func (e *Engine) highlightInsights(memories []*storage.Memory, max int) []*storage.Insight {
	var insights []*storage.Insight
	for _, memory := range memories {
		if len(insights) >= max {
			break
		}
		if memory.Importance <= e.config.HighlightImportanceThreshold {
			continue
		}
		insights = append(insights, &storage.Insight{
			Title:          "Memory Highlight",
			Content:        fmt.Sprintf("This memory about '%s' seems particularly important and might be worth revisiting.", memory.Title),
			Category:       storage.InsightHighlight,
			Confidence:     0.65,
			IsHighlighted:  true,
			SourceMemories: []string{memory.ID},
		})
	}
	return insights
}

// CreateInsight stores an insight, assigning an ID and timestamps when
// they are missing.
func (e *Engine) CreateInsight(ctx context.Context, insight *storage.Insight) error {
	if insight.UserID == "" {
		return NewEngineError("CreateInsight", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}
	if insight.Title == "" || insight.Content == "" {
		return NewEngineError("CreateInsight", fmt.Errorf("%w: title and content are required", ErrInvalidInput))
	}

	now := time.Now()
	if insight.ID == "" {
		insight.ID = e.node.Generate().String()
	}
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = now
	}
	insight.UpdatedAt = now

	if err := e.store.SaveInsight(ctx, insight); err != nil {
		return NewEngineError("CreateInsight", err)
	}
	return nil
}

// GetInsights lists a user's insights, optionally filtered by category.
// A limit of zero or less returns all of them.
func (e *Engine) GetInsights(ctx context.Context, userID string, category storage.InsightCategory, limit int) ([]*storage.Insight, error) {
	if userID == "" {
		return nil, NewEngineError("GetInsights", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}
	insights, err := e.store.ListInsights(ctx, &storage.InsightFilter{
		UserID:   userID,
		Category: category,
		Limit:    limit,
	})
	if err != nil {
		return nil, NewEngineError("GetInsights", err)
	}
	return insights, nil
}

// RateInsight records the user's 1-5 rating of an insight. Feedback is
// kept so future passes can weight insight kinds the user finds useful.
func (e *Engine) RateInsight(ctx context.Context, userID, insightID string, rating int) error {
	if rating < 1 || rating > 5 {
		return NewEngineError("RateInsight", fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput))
	}

	insight, err := e.store.GetInsight(ctx, userID, insightID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return NewEngineError("RateInsight", fmt.Errorf("%w: insight %s", ErrNotFound, insightID))
		}
		return NewEngineError("RateInsight", err)
	}
	if insight.UserID != userID {
		return NewEngineError("RateInsight", ErrUnauthorized)
	}

	insight.UserRating = rating
	insight.UpdatedAt = time.Now()
	if err := e.store.SaveInsight(ctx, insight); err != nil {
		return NewEngineError("RateInsight", err)
	}
	return nil
}

// GenerateInsights runs insight generation on demand, outside of a
// consolidation pass.
func (e *Engine) GenerateInsights(ctx context.Context, userID string) ([]*storage.Insight, error) {
	if userID == "" {
		return nil, NewEngineError("GenerateInsights", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}
	insights, err := e.generateInsights(ctx, userID)
	if err != nil {
		return nil, NewEngineError("GenerateInsights", err)
	}
	return insights, nil
}
