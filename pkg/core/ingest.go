package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/quantself/engram-go/pkg/storage"
)

// RecordKind names an activity stream the engine knows how to ingest.
type RecordKind string

const (
	KindTasks       RecordKind = "tasks"
	KindHabits      RecordKind = "habits"
	KindDailyLog    RecordKind = "daily_log"
	KindLifeBalance RecordKind = "life_balance"
	KindTrackItems  RecordKind = "track_items"
	KindTrackFocus  RecordKind = "track_focus"
)

// TaskRecord is a task created or updated by the user.
type TaskRecord struct {
	ID          string
	Title       string
	Description string
	Project     string
	Category    string

	// DueDate is the task deadline. Zero when the task has no due date.
	DueDate time.Time
}

// HabitRecord is a tracked habit check-in.
type HabitRecord struct {
	ID       string
	Name     string
	Type     string
	Status   string
	Priority int
	Streak   int
}

// DailyLogRecord is a daily reflection entry.
type DailyLogRecord struct {
	ID      string
	Date    time.Time // zero means today
	Summary string
	Feeling string
	Score   int // day rating 1-5, 0 when unrated
	Bath    bool
}

// LifeBalanceRecord is a periodic life-area self-assessment.
// Scores maps area names (relationship, health, career, growth, life,
// social, hobby, finance) to ratings 1-10; missing or zero entries are
// treated as unanswered.
type LifeBalanceRecord struct {
	ID     string
	Date   time.Time // zero means today
	Scores map[string]int
}

// TrackItemRecord is an automatically collected app-usage session.
type TrackItemRecord struct {
	ID       string
	App      string
	Title    string
	DeviceID string
	Begin    time.Time
	End      time.Time
}

// FocusRecord is a deliberate focus session.
type FocusRecord struct {
	ID       string
	Tags     []string
	Notes    string
	DeviceID string
	Begin    time.Time
	End      time.Time
}

// ProcessRecord ingests one activity record into the memory system.
//
// The record must match the kind: *TaskRecord for KindTasks, *HabitRecord
// for KindHabits, and so on. Unknown kinds are skipped with a debug log.
// Handlers skip records that carry too little signal (empty titles,
// sub-minute sessions) without error.
func (e *Engine) ProcessRecord(ctx context.Context, userID string, kind RecordKind, record interface{}) error {
	if userID == "" {
		return NewEngineError("ProcessRecord", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}

	switch kind {
	case KindTasks:
		r, ok := record.(*TaskRecord)
		if !ok {
			return NewEngineError("ProcessRecord", fmt.Errorf("%w: expected *TaskRecord for kind %q", ErrInvalidInput, kind))
		}
		return e.ProcessTask(ctx, userID, r)
	case KindHabits:
		r, ok := record.(*HabitRecord)
		if !ok {
			return NewEngineError("ProcessRecord", fmt.Errorf("%w: expected *HabitRecord for kind %q", ErrInvalidInput, kind))
		}
		return e.ProcessHabit(ctx, userID, r)
	case KindDailyLog:
		r, ok := record.(*DailyLogRecord)
		if !ok {
			return NewEngineError("ProcessRecord", fmt.Errorf("%w: expected *DailyLogRecord for kind %q", ErrInvalidInput, kind))
		}
		return e.ProcessDailyLog(ctx, userID, r)
	case KindLifeBalance:
		r, ok := record.(*LifeBalanceRecord)
		if !ok {
			return NewEngineError("ProcessRecord", fmt.Errorf("%w: expected *LifeBalanceRecord for kind %q", ErrInvalidInput, kind))
		}
		return e.ProcessLifeBalance(ctx, userID, r)
	case KindTrackItems:
		r, ok := record.(*TrackItemRecord)
		if !ok {
			return NewEngineError("ProcessRecord", fmt.Errorf("%w: expected *TrackItemRecord for kind %q", ErrInvalidInput, kind))
		}
		return e.ProcessTrackItem(ctx, userID, r)
	case KindTrackFocus:
		r, ok := record.(*FocusRecord)
		if !ok {
			return NewEngineError("ProcessRecord", fmt.Errorf("%w: expected *FocusRecord for kind %q", ErrInvalidInput, kind))
		}
		return e.ProcessFocusSession(ctx, userID, r)
	default:
		e.logger.Debug("skipping unsupported record kind", "kind", kind)
		return nil
	}
}

// ProcessTask converts a task into an episodic memory, with due-date
// driven importance and tags, a project entity link, and a procedural
// project memory that accumulates the project's tasks.
func (e *Engine) ProcessTask(ctx context.Context, userID string, record *TaskRecord) error {
	e.logger.Debug("processing task", "task", record.ID)

	if record.Title == "" {
		return nil
	}

	metadata := map[string]interface{}{
		"task_id":     record.ID,
		"title":       record.Title,
		"description": record.Description,
	}
	if record.Project != "" {
		metadata["project"] = record.Project
	}
	if record.Category != "" {
		metadata["category"] = record.Category
	}

	tags := []string{"task"}
	if record.Category != "" {
		tags = append(tags, record.Category)
	}

	content := fmt.Sprintf("Created a task titled '%s'", record.Title)
	if record.Description != "" {
		content += fmt.Sprintf(" with description: %s", record.Description)
	}

	var importance *float64
	if !record.DueDate.IsZero() {
		metadata["due_date"] = record.DueDate

		daysUntil := int(time.Until(record.DueDate).Hours() / 24)
		var imp float64
		switch {
		case daysUntil < 0:
			imp = 0.9
			tags = append(tags, "overdue")
			content += fmt.Sprintf(" The task is overdue by %d days.", -daysUntil)
		case daysUntil == 0:
			imp = 0.85
			tags = append(tags, "due-today")
			content += " The task is due today."
		case daysUntil <= 2:
			imp = 0.8
			tags = append(tags, "due-soon")
			if daysUntil == 1 {
				content += " The task is due tomorrow."
			} else {
				content += fmt.Sprintf(" The task is due in %d days.", daysUntil)
			}
		case daysUntil <= 7:
			imp = 0.75
			tags = append(tags, "due-this-week")
			content += fmt.Sprintf(" The task is due in %d days.", daysUntil)
		default:
			imp = 0.7
			tags = append(tags, "future")
			content += fmt.Sprintf(" The task is due in %d days.", daysUntil)
		}
		importance = &imp
	}

	input := MemoryInput{
		UserID:     userID,
		Type:       storage.MemoryTypeEpisodic,
		Title:      fmt.Sprintf("Task: %s", record.Title),
		Content:    content,
		SourceID:   record.ID,
		SourceKind: KindTasks,
		Metadata:   metadata,
		Tags:       tags,
		Importance: importance,
	}

	extracted, err := e.recognizer.ExtractEntities(ctx, userID, record.Title+" "+record.Description)
	if err != nil {
		e.logger.Warn("entity extraction failed", "task", record.ID, "error", err)
	}
	for _, ent := range extracted {
		input.Entities = append(input.Entities, ent.ID)
	}

	taskMemory, err := e.CreateMemory(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create task memory: %w", err)
	}

	if record.Project != "" {
		e.linkTaskToProject(ctx, userID, record, taskMemory)
	}

	e.logger.Debug("created memory for task", "task", record.ID, "memory", taskMemory.ID)
	return nil
}

// linkTaskToProject registers the project entity and maintains the
// procedural memory that accumulates the project's tasks.
func (e *Engine) linkTaskToProject(ctx context.Context, userID string, record *TaskRecord, taskMemory *storage.Memory) {
	projectEntity, err := e.recognizer.GetOrCreateEntity(ctx, userID, storage.EntityTypeProject,
		record.Project, fmt.Sprintf("A project containing tasks like: %s", record.Title))
	if err != nil {
		e.logger.Warn("failed to resolve project entity", "project", record.Project, "error", err)
		return
	}

	if err := e.CreateConnection(ctx, userID,
		storage.NodeMemory, taskMemory.ID,
		storage.NodeEntity, projectEntity.ID,
		storage.ConnectionBelongsToProject, 0.9); err != nil {
		e.logger.Warn("failed to connect task to project entity", "error", err)
	}

	projectMemories, err := e.RetrieveMemories(ctx, userID, "project "+record.Project, 1)
	if err == nil && len(projectMemories) > 0 && projectMemories[0].Type == storage.MemoryTypeProcedural {
		projectMemory := projectMemories[0]
		projectMemory.Content += fmt.Sprintf(" Added new task: %s.", record.Title)
		projectMemory.UpdatedAt = time.Now()

		if err := e.CreateConnection(ctx, userID,
			storage.NodeMemory, taskMemory.ID,
			storage.NodeMemory, projectMemory.ID,
			storage.ConnectionContributesTo, 0.8); err != nil {
			e.logger.Warn("failed to connect task to project memory", "error", err)
		}

		if err := e.store.SaveMemory(ctx, projectMemory); err != nil {
			e.logger.Warn("failed to update project memory", "error", err)
		}
		return
	}

	projectMemory, err := e.CreateMemory(ctx, MemoryInput{
		UserID:     userID,
		Type:       storage.MemoryTypeProcedural,
		Title:      fmt.Sprintf("Working on project: %s", record.Project),
		Content:    fmt.Sprintf("The project %s involves tasks including: %s", record.Project, record.Title),
		SourceID:   record.ID,
		SourceKind: KindTasks,
		Tags:       []string{"project", "workflow", record.Project},
		Entities:   []string{projectEntity.ID},
	})
	if err != nil {
		e.logger.Warn("failed to create project memory", "error", err)
		return
	}

	if err := e.CreateConnection(ctx, userID,
		storage.NodeMemory, taskMemory.ID,
		storage.NodeMemory, projectMemory.ID,
		storage.ConnectionContributesTo, 0.8); err != nil {
		e.logger.Warn("failed to connect task to project memory", "error", err)
	}
}

// ProcessHabit converts a habit check-in into an episodic memory. Streaks
// of a week or longer maintain a procedural habit-formation memory.
func (e *Engine) ProcessHabit(ctx context.Context, userID string, record *HabitRecord) error {
	e.logger.Debug("processing habit", "habit", record.ID)

	if record.Name == "" {
		return nil
	}

	metadata := map[string]interface{}{
		"habit_id":   record.ID,
		"habit_name": record.Name,
		"type":       record.Type,
		"status":     record.Status,
		"streak":     record.Streak,
		"priority":   record.Priority,
	}

	tags := []string{"habit", record.Type}
	if record.Status != "" {
		tags = append(tags, record.Status)
	}

	importance := math.Min(0.5+(float64(record.Priority)*0.1)+(float64(record.Streak)*0.02), 0.95)

	content := fmt.Sprintf("Tracking habit '%s' of type '%s' with status '%s'", record.Name, record.Type, record.Status)
	if record.Streak > 0 {
		content += fmt.Sprintf(" Current streak: %d days.", record.Streak)
		if record.Streak >= 7 {
			content += " This is a significant streak!"
		}
	}

	habitMemory, err := e.CreateMemory(ctx, MemoryInput{
		UserID:     userID,
		Type:       storage.MemoryTypeEpisodic,
		Title:      fmt.Sprintf("Habit: %s", record.Name),
		Content:    content,
		SourceID:   record.ID,
		SourceKind: KindHabits,
		Metadata:   metadata,
		Tags:       tags,
		Importance: &importance,
	})
	if err != nil {
		return fmt.Errorf("failed to create habit memory: %w", err)
	}

	if record.Streak >= 7 {
		habitMemories, err := e.RetrieveMemories(ctx, userID, "habit formation pattern", 1)
		if err == nil && len(habitMemories) > 0 && habitMemories[0].Type == storage.MemoryTypeProcedural {
			procedural := habitMemories[0]

			if !strings.Contains(procedural.Content, record.Name) {
				procedural.Content += fmt.Sprintf(" The habit '%s' has been maintained for %d days, showing consistent behavior.",
					record.Name, record.Streak)
				procedural.UpdatedAt = time.Now()

				if err := e.store.SaveMemory(ctx, procedural); err != nil {
					e.logger.Warn("failed to update habit pattern memory", "error", err)
				} else if err := e.CreateConnection(ctx, userID,
					storage.NodeMemory, habitMemory.ID,
					storage.NodeMemory, procedural.ID,
					storage.ConnectionReinforcesPattern, 0.8); err != nil {
					e.logger.Warn("failed to connect habit to pattern memory", "error", err)
				}
			}
		} else {
			proceduralMemory, err := e.CreateMemory(ctx, MemoryInput{
				UserID:     userID,
				Type:       storage.MemoryTypeProcedural,
				Title:      "Habit formation patterns",
				Content:    fmt.Sprintf("Regular habits like '%s' of type '%s' with a streak of %d days demonstrate consistent behavior patterns.", record.Name, record.Type, record.Streak),
				SourceID:   record.ID,
				SourceKind: KindHabits,
				Tags:       []string{"habit", "pattern", "consistency", record.Type},
			})
			if err != nil {
				e.logger.Warn("failed to create habit pattern memory", "error", err)
			} else if err := e.CreateConnection(ctx, userID,
				storage.NodeMemory, habitMemory.ID,
				storage.NodeMemory, proceduralMemory.ID,
				storage.ConnectionDemonstratesPattern, 0.8); err != nil {
				e.logger.Warn("failed to connect habit to pattern memory", "error", err)
			}
		}
	}

	e.logger.Debug("created memory for habit", "habit", record.ID, "memory", habitMemory.ID)
	return nil
}

// ProcessDailyLog converts a daily reflection into an episodic memory and
// detects recurring feelings and day-quality streaks.
func (e *Engine) ProcessDailyLog(ctx context.Context, userID string, record *DailyLogRecord) error {
	e.logger.Debug("processing daily log", "log", record.ID)

	if record.Summary == "" && record.Feeling == "" {
		return nil
	}

	logDate := record.Date
	if logDate.IsZero() {
		logDate = time.Now()
	}

	metadata := map[string]interface{}{
		"log_id":  record.ID,
		"date":    logDate,
		"score":   record.Score,
		"feeling": record.Feeling,
		"bath":    record.Bath,
	}

	tags := []string{"daily_log"}
	if record.Feeling != "" {
		tags = append(tags, "feeling", record.Feeling)
	}
	if record.Bath {
		tags = append(tags, "bath")
	}
	if record.Score >= 4 {
		tags = append(tags, "good-day")
	} else if record.Score > 0 && record.Score <= 2 {
		tags = append(tags, "challenging-day")
	}

	importance := 0.6 // base importance for daily logs
	if record.Score >= 4 || (record.Score > 0 && record.Score <= 2) {
		importance += 0.15 // exceptional days matter more
	}

	lowercaseSummary := strings.ToLower(record.Summary)
	for _, keyword := range emotionalKeywords {
		if strings.Contains(lowercaseSummary, keyword) {
			importance += 0.1
			break
		}
	}
	if importance > 0.95 {
		importance = 0.95
	}

	content := fmt.Sprintf("Daily reflection for %s", logDate.Format("January 2, 2006"))
	if record.Feeling != "" {
		content += fmt.Sprintf(". Feeling: %s", record.Feeling)
	}
	if record.Score > 0 {
		content += fmt.Sprintf(". Day rated %d/5", record.Score)
	}
	if record.Bath {
		content += ". Took a bath today"
	}
	if record.Summary != "" {
		content += fmt.Sprintf(". %s", record.Summary)
	}

	input := MemoryInput{
		UserID:     userID,
		Type:       storage.MemoryTypeEpisodic,
		Title:      fmt.Sprintf("Daily Log: %s", logDate.Format("Jan 2, 2006")),
		Content:    content,
		SourceID:   record.ID,
		SourceKind: KindDailyLog,
		Metadata:   metadata,
		Tags:       tags,
		Importance: &importance,
	}

	if record.Summary != "" {
		extracted, err := e.recognizer.ExtractEntities(ctx, userID, record.Summary)
		if err != nil {
			e.logger.Warn("entity extraction failed", "log", record.ID, "error", err)
		}
		for _, ent := range extracted {
			input.Entities = append(input.Entities, ent.ID)
		}
	}

	logMemory, err := e.CreateMemory(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create daily log memory: %w", err)
	}

	// Recurring feeling pattern
	if record.Feeling != "" {
		recent, err := e.GetRecentMemoriesByTags(ctx, userID, []string{"feeling", record.Feeling}, 10)
		if err == nil && len(recent) >= 3 {
			patternMemory, err := e.CreateOrUpdateSemanticMemory(ctx, MemoryInput{
				UserID:     userID,
				Title:      fmt.Sprintf("Pattern of feeling: %s", record.Feeling),
				Content:    fmt.Sprintf("There appears to be a pattern of feeling '%s' across multiple days recently.", record.Feeling),
				SourceID:   record.ID,
				SourceKind: KindDailyLog,
				Tags:       []string{"pattern", "feeling", record.Feeling},
			})
			if err == nil {
				if err := e.CreateConnection(ctx, userID,
					storage.NodeMemory, logMemory.ID,
					storage.NodeMemory, patternMemory.ID,
					storage.ConnectionContributesToPattern, 0.75); err != nil {
					e.logger.Warn("failed to connect feeling pattern", "error", err)
				}
			}
		}
	}

	// Day-quality streak pattern
	if record.Score >= 4 || (record.Score > 0 && record.Score <= 2) {
		scoreTag := "good-day"
		patternType := "positive"
		if record.Score <= 2 {
			scoreTag = "challenging-day"
			patternType = "challenging"
		}

		recent, err := e.GetRecentMemoriesByTags(ctx, userID, []string{"daily_log", scoreTag}, 10)
		if err == nil && len(recent) >= 3 {
			patternMemory, err := e.CreateOrUpdateSemanticMemory(ctx, MemoryInput{
				UserID:     userID,
				Title:      fmt.Sprintf("Pattern of %s days", patternType),
				Content:    fmt.Sprintf("There appears to be a pattern of %s days recently.", patternType),
				SourceID:   record.ID,
				SourceKind: KindDailyLog,
				Tags:       []string{"pattern", "day-quality", scoreTag},
			})
			if err == nil {
				if err := e.CreateConnection(ctx, userID,
					storage.NodeMemory, logMemory.ID,
					storage.NodeMemory, patternMemory.ID,
					storage.ConnectionContributesToPattern, 0.75); err != nil {
					e.logger.Warn("failed to connect day-quality pattern", "error", err)
				}
			}
		}
	}

	e.logger.Debug("created memory for daily log", "log", record.ID, "memory", logMemory.ID)
	return nil
}

// lifeBalanceAreas are the assessed life domains, in presentation order.
var lifeBalanceAreas = []string{
	"relationship", "health", "career", "growth", "life", "social", "hobby", "finance",
}

// ProcessLifeBalance converts a life-balance assessment into an episodic
// memory, maintains semantic memories for strong and weak areas, and
// detects monotonic per-area trends.
func (e *Engine) ProcessLifeBalance(ctx context.Context, userID string, record *LifeBalanceRecord) error {
	e.logger.Debug("processing life balance", "assessment", record.ID)

	balanceDate := record.Date
	if balanceDate.IsZero() {
		balanceDate = time.Now()
	}

	validScores := make(map[string]int)
	for _, area := range lifeBalanceAreas {
		if score := record.Scores[area]; score > 0 {
			validScores[area] = score
		}
	}

	if len(validScores) < 3 {
		e.logger.Debug("not enough valid scores in life balance record", "assessment", record.ID)
		return nil
	}

	metadata := map[string]interface{}{
		"balance_id": record.ID,
		"date":       balanceDate,
	}
	for area, score := range validScores {
		metadata[area] = score
	}

	tags := []string{"life_balance", "assessment"}

	var highestArea, lowestArea string
	var highestScore, lowestScore int
	for _, area := range lifeBalanceAreas {
		score, ok := validScores[area]
		if !ok {
			continue
		}
		if highestArea == "" || score > highestScore {
			highestArea = area
			highestScore = score
		}
		if lowestArea == "" || score < lowestScore {
			lowestArea = area
			lowestScore = score
		}
	}

	tags = append(tags, "strength-"+highestArea, "challenge-"+lowestArea)

	var totalScore int
	for _, score := range validScores {
		totalScore += score
	}
	avgScore := float64(totalScore) / float64(len(validScores))

	importance := 0.6
	if avgScore >= 8.0 || avgScore <= 3.0 {
		importance += 0.2 // extreme assessments matter more
	}
	for _, score := range validScores {
		if score >= 9 || score <= 2 {
			importance += 0.1
			break
		}
	}

	content := fmt.Sprintf("Life balance assessment for %s. ", balanceDate.Format("January 2, 2006"))
	for _, area := range lifeBalanceAreas {
		if score, ok := validScores[area]; ok {
			content += fmt.Sprintf("%s: %d/10. ", titleCase(area), score)
		}
	}
	content += fmt.Sprintf("Strongest area is %s (%d/10) and the area needing most improvement is %s (%d/10).",
		titleCase(highestArea), highestScore, titleCase(lowestArea), lowestScore)

	balanceMemory, err := e.CreateMemory(ctx, MemoryInput{
		UserID:     userID,
		Type:       storage.MemoryTypeEpisodic,
		Title:      fmt.Sprintf("Life Balance: %s", balanceDate.Format("Jan 2, 2006")),
		Content:    content,
		SourceID:   record.ID,
		SourceKind: KindLifeBalance,
		Metadata:   metadata,
		Tags:       tags,
		Importance: &importance,
	})
	if err != nil {
		return fmt.Errorf("failed to create life balance memory: %w", err)
	}

	// Semantic memories for very high or very low areas
	for _, area := range lifeBalanceAreas {
		score, ok := validScores[area]
		if !ok || (score < 8 && score > 3) {
			continue
		}

		sentiment := "positive"
		if score <= 3 {
			sentiment = "negative"
		}

		areaMemories, err := e.GetRecentMemoriesByTags(ctx, userID, []string{"life_balance", area}, 5)
		var semanticMemory *storage.Memory
		if err == nil {
			for _, mem := range areaMemories {
				if mem.Type == storage.MemoryTypeSemantic && containsString(mem.Tags, area) {
					semanticMemory = mem
					break
				}
			}
		}

		if semanticMemory != nil {
			semanticMemory.Content = fmt.Sprintf("The %s area of life continues to show a %s pattern with a recent score of %d/10.",
				area, sentiment, score)
			semanticMemory.UpdatedAt = time.Now()

			if err := e.CreateConnection(ctx, userID,
				storage.NodeMemory, balanceMemory.ID,
				storage.NodeMemory, semanticMemory.ID,
				storage.ConnectionReinforcesUnderstanding, 0.8); err != nil {
				e.logger.Warn("failed to connect area memory", "area", area, "error", err)
			}
			if err := e.store.SaveMemory(ctx, semanticMemory); err != nil {
				e.logger.Warn("failed to update area memory", "area", area, "error", err)
			}
			continue
		}

		created, err := e.CreateMemory(ctx, MemoryInput{
			UserID:     userID,
			Type:       storage.MemoryTypeSemantic,
			Title:      fmt.Sprintf("Understanding of %s area", area),
			Content:    fmt.Sprintf("The %s area of life shows a %s pattern with a score of %d/10.", area, sentiment, score),
			SourceID:   record.ID,
			SourceKind: KindLifeBalance,
			Tags:       []string{"life_balance", area, sentiment},
		})
		if err != nil {
			e.logger.Warn("failed to create area memory", "area", area, "error", err)
			continue
		}
		if err := e.CreateConnection(ctx, userID,
			storage.NodeMemory, balanceMemory.ID,
			storage.NodeMemory, created.ID,
			storage.ConnectionProvidesUnderstanding, 0.8); err != nil {
			e.logger.Warn("failed to connect area memory", "area", area, "error", err)
		}
	}

	// Per-area monotonic trends over the last assessments
	for _, area := range lifeBalanceAreas {
		if _, ok := validScores[area]; !ok {
			continue
		}
		e.detectAreaTrend(ctx, userID, record.ID, area, balanceMemory)
	}

	e.logger.Debug("created memory for life balance", "assessment", record.ID, "memory", balanceMemory.ID)
	return nil
}

// detectAreaTrend looks at the last assessments carrying an area score and
// records a procedural trend memory when the scores move strictly in one
// direction.
func (e *Engine) detectAreaTrend(ctx context.Context, userID, sourceID, area string, balanceMemory *storage.Memory) {
	memories, err := e.GetRecentMemoriesByTags(ctx, userID, []string{"life_balance", area}, 5)
	if err != nil || len(memories) < 3 {
		return
	}

	// Memories arrive newest first; walk backwards so scores read in
	// chronological order.
	var scores []int
	for i := len(memories) - 1; i >= 0; i-- {
		raw, ok := memories[i].TemporalContext[area]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case int:
			scores = append(scores, v)
		case float64:
			scores = append(scores, int(v))
		}
	}

	if len(scores) < 3 {
		return
	}

	increasing := true
	decreasing := true
	for i := 1; i < len(scores); i++ {
		if scores[i] <= scores[i-1] {
			increasing = false
		}
		if scores[i] >= scores[i-1] {
			decreasing = false
		}
	}

	var trendType, trendDescription string
	switch {
	case increasing:
		trendType = "improving"
		trendDescription = "showing improvement over time"
	case decreasing:
		trendType = "declining"
		trendDescription = "showing decline over time"
	default:
		return
	}

	trendMemory, err := e.CreateOrUpdateProceduralMemory(ctx, MemoryInput{
		UserID:     userID,
		Title:      fmt.Sprintf("%s trend in %s", titleCase(trendType), area),
		Content:    fmt.Sprintf("The %s area of life is %s. This trend may indicate underlying factors affecting this life domain.", area, trendDescription),
		SourceID:   sourceID,
		SourceKind: KindLifeBalance,
		Tags:       []string{"trend", area, trendType},
	})
	if err != nil {
		e.logger.Warn("failed to create trend memory", "area", area, "error", err)
		return
	}
	if err := e.CreateConnection(ctx, userID,
		storage.NodeMemory, balanceMemory.ID,
		storage.NodeMemory, trendMemory.ID,
		storage.ConnectionEvidenceOfTrend, 0.85); err != nil {
		e.logger.Warn("failed to connect trend memory", "area", area, "error", err)
	}
}

// ProcessTrackItem converts an app-usage session into an episodic memory,
// links the device, and maintains a procedural usage-pattern memory for
// apps used regularly and at length.
func (e *Engine) ProcessTrackItem(ctx context.Context, userID string, record *TrackItemRecord) error {
	e.logger.Debug("processing track item", "item", record.ID)

	if record.App == "" || record.Begin.IsZero() || record.End.IsZero() {
		return nil
	}

	duration := record.End.Sub(record.Begin)
	if duration < time.Minute {
		return nil
	}

	metadata := map[string]interface{}{
		"track_id":   record.ID,
		"app":        record.App,
		"title":      record.Title,
		"device":     record.DeviceID,
		"begin_date": record.Begin,
		"end_date":   record.End,
		"duration":   duration.Minutes(),
	}

	tags := []string{"app_usage", record.App}
	appCategory := categorizeApp(record.App)
	if appCategory != "" {
		tags = append(tags, appCategory)
	}
	tags = append(tags, timeOfDayTag(record.Begin))

	if duration >= 60*time.Minute {
		tags = append(tags, "long-session")
	} else if duration >= 30*time.Minute {
		tags = append(tags, "medium-session")
	} else {
		tags = append(tags, "short-session")
	}

	importance := 0.3 // base importance for app usage
	if duration >= 60*time.Minute {
		importance += 0.2
	} else if duration >= 30*time.Minute {
		importance += 0.1
	} else if duration >= 15*time.Minute {
		importance += 0.05
	}
	if appCategory == "productivity" || appCategory == "development" || appCategory == "creativity" {
		importance += 0.1
	}
	if importance > 0.75 {
		importance = 0.75 // app usage stays below direct user input
	}

	durationText := formatDuration(duration)
	content := fmt.Sprintf("Used %s for %s on %s. ", record.App, durationText, record.Begin.Format("January 2, 2006"))
	title := record.Title
	if title != "" {
		content += fmt.Sprintf("Worked on: %s. ", title)
		title = "Worked on: " + title
	}
	content += fmt.Sprintf("Session started at %s. ", record.Begin.Format("3:04 PM"))

	trackMemory, err := e.CreateMemory(ctx, MemoryInput{
		UserID:     userID,
		Type:       storage.MemoryTypeEpisodic,
		Title:      fmt.Sprintf("Using %s: %s", record.App, title),
		Content:    content,
		SourceID:   record.ID,
		SourceKind: KindTrackItems,
		Metadata:   metadata,
		Tags:       tags,
		Importance: &importance,
	})
	if err != nil {
		return fmt.Errorf("failed to create track item memory: %w", err)
	}

	e.linkDevice(ctx, userID, record.DeviceID, trackMemory)

	// Significant sessions feed a per-app usage pattern.
	if duration >= 30*time.Minute {
		appMemories, err := e.GetRecentMemoriesByTags(ctx, userID, []string{"app_usage", record.App}, 10)
		if err == nil && len(appMemories) >= 3 {
			var patternMemory *storage.Memory
			for _, memory := range appMemories {
				if memory.Type == storage.MemoryTypeProcedural && strings.Contains(memory.Title, "usage pattern") {
					patternMemory = memory
					break
				}
			}

			if patternMemory != nil {
				patternMemory.Content = fmt.Sprintf("Regular usage of %s continues, with a recent session of %s.", record.App, durationText)
				patternMemory.UpdatedAt = time.Now()

				if err := e.store.SaveMemory(ctx, patternMemory); err != nil {
					e.logger.Warn("failed to update usage pattern memory", "app", record.App, "error", err)
				} else if err := e.CreateConnection(ctx, userID,
					storage.NodeMemory, trackMemory.ID,
					storage.NodeMemory, patternMemory.ID,
					storage.ConnectionReinforcesPattern, 0.75); err != nil {
					e.logger.Warn("failed to connect usage pattern memory", "app", record.App, "error", err)
				}
			} else {
				created, err := e.CreateMemory(ctx, MemoryInput{
					UserID:     userID,
					Type:       storage.MemoryTypeProcedural,
					Title:      fmt.Sprintf("%s usage pattern", record.App),
					Content:    fmt.Sprintf("Regular usage of %s has been observed, with a recent session of %s.", record.App, durationText),
					SourceID:   record.ID,
					SourceKind: KindTrackItems,
					Tags:       []string{"app_usage", "pattern", record.App},
				})
				if err != nil {
					e.logger.Warn("failed to create usage pattern memory", "app", record.App, "error", err)
				} else if err := e.CreateConnection(ctx, userID,
					storage.NodeMemory, trackMemory.ID,
					storage.NodeMemory, created.ID,
					storage.ConnectionEstablishesPattern, 0.75); err != nil {
					e.logger.Warn("failed to connect usage pattern memory", "app", record.App, "error", err)
				}
			}
		}
	}

	e.logger.Debug("created memory for track item", "item", record.ID, "memory", trackMemory.ID)
	return nil
}

// ProcessFocusSession converts a focus session into an episodic memory,
// links the device, and maintains semantic focus-pattern memories for
// categories the user returns to.
func (e *Engine) ProcessFocusSession(ctx context.Context, userID string, record *FocusRecord) error {
	e.logger.Debug("processing focus session", "session", record.ID)

	if record.Begin.IsZero() || record.End.IsZero() {
		return nil
	}

	duration := record.End.Sub(record.Begin)
	if duration < 5*time.Minute {
		return nil
	}

	metadata := map[string]interface{}{
		"focus_id":   record.ID,
		"device":     record.DeviceID,
		"notes":      record.Notes,
		"begin_date": record.Begin,
		"end_date":   record.End,
		"duration":   duration.Minutes(),
		"focus_tags": record.Tags,
	}

	memTags := []string{"focus_session"}
	memTags = append(memTags, record.Tags...)
	memTags = append(memTags, timeOfDayTag(record.Begin))

	if duration >= 90*time.Minute {
		memTags = append(memTags, "deep-focus")
	} else if duration >= 45*time.Minute {
		memTags = append(memTags, "medium-focus")
	} else {
		memTags = append(memTags, "short-focus")
	}

	importance := 0.6 // focus sessions are generally important
	if duration >= 90*time.Minute {
		importance += 0.2
	} else if duration >= 45*time.Minute {
		importance += 0.1
	}
	for _, tag := range record.Tags {
		if tag == "creative" || tag == "writing" || tag == "learning" || tag == "work" {
			importance += 0.05
			break
		}
	}
	if importance > 0.9 {
		importance = 0.9
	}

	durationText := formatDuration(duration)
	content := fmt.Sprintf("Focused for %s on %s. ", durationText, record.Begin.Format("January 2, 2006"))
	if len(record.Tags) > 0 {
		content += fmt.Sprintf("Focus categories: %s. ", strings.Join(record.Tags, ", "))
	}
	if record.Notes != "" {
		content += fmt.Sprintf("Notes: %s. ", record.Notes)
	}
	content += fmt.Sprintf("Session started at %s and ended at %s.",
		record.Begin.Format("3:04 PM"), record.End.Format("3:04 PM"))

	focusMemory, err := e.CreateMemory(ctx, MemoryInput{
		UserID:     userID,
		Type:       storage.MemoryTypeEpisodic,
		Title:      fmt.Sprintf("Focus Session: %s", strings.Join(record.Tags, ", ")),
		Content:    content,
		SourceID:   record.ID,
		SourceKind: KindTrackFocus,
		Metadata:   metadata,
		Tags:       memTags,
		Importance: &importance,
	})
	if err != nil {
		return fmt.Errorf("failed to create focus memory: %w", err)
	}

	e.linkDevice(ctx, userID, record.DeviceID, focusMemory)

	// Long sessions feed per-category focus patterns.
	if duration >= 45*time.Minute {
		for _, tag := range record.Tags {
			focusMemories, err := e.GetRecentMemoriesByTags(ctx, userID, []string{"focus_session", tag}, 5)
			if err != nil || len(focusMemories) < 3 {
				continue
			}

			var patternMemory *storage.Memory
			for _, memory := range focusMemories {
				if memory.Type == storage.MemoryTypeSemantic && strings.Contains(memory.Title, tag) {
					patternMemory = memory
					break
				}
			}

			if patternMemory != nil {
				patternMemory.Content = fmt.Sprintf("Regular focus on %s continues, with a recent session of %s.", tag, durationText)
				patternMemory.UpdatedAt = time.Now()

				if err := e.store.SaveMemory(ctx, patternMemory); err != nil {
					e.logger.Warn("failed to update focus pattern memory", "tag", tag, "error", err)
				} else if err := e.CreateConnection(ctx, userID,
					storage.NodeMemory, focusMemory.ID,
					storage.NodeMemory, patternMemory.ID,
					storage.ConnectionReinforcesPattern, 0.8); err != nil {
					e.logger.Warn("failed to connect focus pattern memory", "tag", tag, "error", err)
				}
			} else {
				created, err := e.CreateMemory(ctx, MemoryInput{
					UserID:     userID,
					Type:       storage.MemoryTypeSemantic,
					Title:      fmt.Sprintf("Focus pattern: %s", tag),
					Content:    fmt.Sprintf("Regular focus on %s has been observed, with a recent session of %s.", tag, durationText),
					SourceID:   record.ID,
					SourceKind: KindTrackFocus,
					Tags:       []string{"focus_session", "pattern", tag},
				})
				if err != nil {
					e.logger.Warn("failed to create focus pattern memory", "tag", tag, "error", err)
				} else if err := e.CreateConnection(ctx, userID,
					storage.NodeMemory, focusMemory.ID,
					storage.NodeMemory, created.ID,
					storage.ConnectionEstablishesPattern, 0.8); err != nil {
					e.logger.Warn("failed to connect focus pattern memory", "tag", tag, "error", err)
				}
			}
		}
	}

	e.logger.Debug("created memory for focus session", "session", record.ID, "memory", focusMemory.ID)
	return nil
}

// linkDevice registers the device entity and connects the memory to it.
func (e *Engine) linkDevice(ctx context.Context, userID, deviceID string, memory *storage.Memory) {
	if deviceID == "" {
		return
	}

	deviceEntity, err := e.recognizer.GetOrCreateEntity(ctx, userID, storage.EntityTypeDevice,
		"Device "+deviceID, "A device used for activities")
	if err != nil {
		e.logger.Warn("failed to resolve device entity", "device", deviceID, "error", err)
		return
	}

	if err := e.CreateConnection(ctx, userID,
		storage.NodeMemory, memory.ID,
		storage.NodeEntity, deviceEntity.ID,
		storage.ConnectionUsedDevice, 0.7); err != nil {
		e.logger.Warn("failed to connect device", "device", deviceID, "error", err)
	}
}
