package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantself/engram-go/pkg/storage"
)

func TestProcessRecordDispatch(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	err := engine.ProcessRecord(ctx, "", KindTasks, &TaskRecord{})
	assert.ErrorIs(t, err, ErrInvalidInput, "user id is required")

	err = engine.ProcessRecord(ctx, "u1", KindTasks, &HabitRecord{})
	assert.ErrorIs(t, err, ErrInvalidInput, "record type must match the kind")

	err = engine.ProcessRecord(ctx, "u1", RecordKind("bookmarks"), nil)
	assert.NoError(t, err, "unknown kinds are skipped")
}

func TestProcessTaskSkipsUntitled(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.ProcessTask(ctx, "u1", &TaskRecord{ID: "t0"}))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestProcessTaskDueSoon(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	record := &TaskRecord{
		ID:       "t1",
		Title:    "Prepare quarterly report",
		Category: "work",
		DueDate:  time.Now().Add(30 * time.Hour),
	}
	require.NoError(t, engine.ProcessTask(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"task"}, 10)
	require.NoError(t, err)
	require.Len(t, memories, 1)

	memory := memories[0]
	assert.Equal(t, "Task: Prepare quarterly report", memory.Title)
	assert.Equal(t, storage.MemoryTypeEpisodic, memory.Type)
	assert.InDelta(t, 0.8, memory.Importance, 1e-9)
	assert.Contains(t, memory.Tags, "work")
	assert.Contains(t, memory.Tags, "due-soon")
	assert.Contains(t, memory.Content, "The task is due tomorrow.")
	assert.Equal(t, []string{"t1"}, memory.SourceRecords)
}

func TestProcessTaskOverdue(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	record := &TaskRecord{
		ID:      "t2",
		Title:   "File expense report",
		DueDate: time.Now().Add(-72 * time.Hour),
	}
	require.NoError(t, engine.ProcessTask(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"task"}, 10)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.InDelta(t, 0.9, memories[0].Importance, 1e-9)
	assert.Contains(t, memories[0].Tags, "overdue")
	assert.Contains(t, memories[0].Content, "overdue by 3 days")
}

func TestProcessTaskCreatesProjectGraph(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	record := &TaskRecord{
		ID:      "t3",
		Title:   "Draft landing page",
		Project: "Website Relaunch",
	}
	require.NoError(t, engine.ProcessTask(ctx, "u1", record))

	projectEntity, err := store.FindEntity(ctx, "u1", storage.EntityTypeProject, "Website Relaunch")
	require.NoError(t, err)

	// The task memory is connected to the project entity.
	connections, err := engine.GetEntityConnections(ctx, "u1", projectEntity.ID)
	require.NoError(t, err)
	var belongs bool
	for _, conn := range connections {
		if conn.Type == storage.ConnectionBelongsToProject {
			belongs = true
		}
	}
	assert.True(t, belongs, "expected a belongs_to_project edge")

	// A procedural project memory accumulates the project's tasks.
	projectMemories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"project"}, 10)
	require.NoError(t, err)
	require.Len(t, projectMemories, 1)
	assert.Equal(t, storage.MemoryTypeProcedural, projectMemories[0].Type)
	assert.Equal(t, "Working on project: Website Relaunch", projectMemories[0].Title)
	assert.Contains(t, projectMemories[0].Content, "Draft landing page")
}

func TestProcessHabit(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	record := &HabitRecord{
		ID:       "h1",
		Name:     "Morning run",
		Type:     "exercise",
		Status:   "completed",
		Priority: 2,
		Streak:   9,
	}
	require.NoError(t, engine.ProcessHabit(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"habit"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, memories)

	var habitMemory *storage.Memory
	for _, memory := range memories {
		if memory.Title == "Habit: Morning run" {
			habitMemory = memory
		}
	}
	require.NotNil(t, habitMemory)
	assert.InDelta(t, 0.88, habitMemory.Importance, 1e-9, "0.5 + 2*0.1 + 9*0.02")
	assert.Contains(t, habitMemory.Content, "Current streak: 9 days.")
	assert.Contains(t, habitMemory.Content, "This is a significant streak!")
	assert.Contains(t, habitMemory.Tags, "exercise")
	assert.Contains(t, habitMemory.Tags, "completed")
}

func TestProcessHabitLongStreakCreatesPattern(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	record := &HabitRecord{
		ID:     "h2",
		Name:   "Meditation",
		Type:   "wellness",
		Status: "completed",
		Streak: 14,
	}
	require.NoError(t, engine.ProcessHabit(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"pattern"}, 10)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, storage.MemoryTypeProcedural, memories[0].Type)
	assert.Equal(t, "Habit formation patterns", memories[0].Title)
	assert.Contains(t, memories[0].Content, "Meditation")
}

func TestProcessDailyLogSkipsEmpty(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.ProcessDailyLog(ctx, "u1", &DailyLogRecord{ID: "d0"}))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestProcessDailyLog(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	date := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	record := &DailyLogRecord{
		ID:      "d1",
		Date:    date,
		Summary: "Shipped the release.",
		Feeling: "energized",
		Score:   5,
		Bath:    true,
	}
	require.NoError(t, engine.ProcessDailyLog(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"daily_log"}, 10)
	require.NoError(t, err)
	require.Len(t, memories, 1)

	memory := memories[0]
	assert.Equal(t, "Daily Log: Mar 14, 2026", memory.Title)
	assert.Contains(t, memory.Content, "Daily reflection for March 14, 2026")
	assert.Contains(t, memory.Content, "Feeling: energized")
	assert.Contains(t, memory.Content, "Day rated 5/5")
	assert.Contains(t, memory.Content, "Took a bath today")
	assert.Contains(t, memory.Content, "Shipped the release.")
	assert.Subset(t, memory.Tags, []string{"daily_log", "feeling", "energized", "bath", "good-day"})
	assert.InDelta(t, 0.75, memory.Importance, 1e-9, "0.6 base + 0.15 for a rated-high day")
}

func TestProcessDailyLogFeelingPattern(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		record := &DailyLogRecord{
			ID:      fmt.Sprintf("d%d", i+1),
			Feeling: "tired",
		}
		require.NoError(t, engine.ProcessDailyLog(ctx, "u1", record))
	}

	patterns, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"pattern"}, 10)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, storage.MemoryTypeSemantic, patterns[0].Type)
	assert.Equal(t, "Pattern of feeling: tired", patterns[0].Title)

	connections, err := engine.GetMemoryConnections(ctx, "u1", patterns[0].ID)
	require.NoError(t, err)
	var contributes bool
	for _, conn := range connections {
		if conn.Type == storage.ConnectionContributesToPattern {
			contributes = true
		}
	}
	assert.True(t, contributes)
}

func TestProcessLifeBalanceRequiresThreeScores(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	record := &LifeBalanceRecord{
		ID:     "b0",
		Scores: map[string]int{"health": 7, "career": 5},
	}
	require.NoError(t, engine.ProcessLifeBalance(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestProcessLifeBalance(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	record := &LifeBalanceRecord{
		ID:   "b1",
		Date: time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
		Scores: map[string]int{
			"health": 9,
			"career": 5,
			"growth": 6,
			"social": 2,
		},
	}
	require.NoError(t, engine.ProcessLifeBalance(ctx, "u1", record))

	assessments, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"assessment"}, 10)
	require.NoError(t, err)
	require.Len(t, assessments, 1)

	memory := assessments[0]
	assert.Equal(t, "Life Balance: May 2, 2026", memory.Title)
	assert.Contains(t, memory.Tags, "strength-health")
	assert.Contains(t, memory.Tags, "challenge-social")
	assert.Contains(t, memory.Content, "Health: 9/10.")
	assert.Contains(t, memory.Content, "Strongest area is Health (9/10)")
	assert.InDelta(t, 0.7, memory.Importance, 1e-9, "0.6 base + 0.1 for an extreme area score")
	assert.Equal(t, 9, memory.TemporalContext["health"])

	// Extreme areas get semantic understanding memories.
	healthMemories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"positive"}, 10)
	require.NoError(t, err)
	require.Len(t, healthMemories, 1)
	assert.Equal(t, "Understanding of health area", healthMemories[0].Title)
	assert.Equal(t, storage.MemoryTypeSemantic, healthMemories[0].Type)

	socialMemories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"negative"}, 10)
	require.NoError(t, err)
	require.Len(t, socialMemories, 1)
	assert.Equal(t, "Understanding of social area", socialMemories[0].Title)
}

func TestProcessLifeBalanceDetectsTrend(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for i, health := range []int{6, 7, 8} {
		record := &LifeBalanceRecord{
			ID: fmt.Sprintf("b%d", i+1),
			Scores: map[string]int{
				"health": health,
				"career": 5,
				"social": 5,
			},
		}
		require.NoError(t, engine.ProcessLifeBalance(ctx, "u1", record))
	}

	trends, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"trend"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, trends)

	var improving *storage.Memory
	for _, memory := range trends {
		if memory.Title == "Improving trend in health" {
			improving = memory
		}
	}
	require.NotNil(t, improving)
	assert.Equal(t, storage.MemoryTypeProcedural, improving.Type)
	assert.Contains(t, improving.Content, "showing improvement over time")
}

func TestProcessTrackItemSkipsShortSessions(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	begin := time.Now().Add(-30 * time.Second)
	record := &TrackItemRecord{
		ID: "tr0", App: "Chrome", Begin: begin, End: time.Now(),
	}
	require.NoError(t, engine.ProcessTrackItem(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestProcessTrackItem(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	begin := time.Date(2026, 4, 10, 9, 15, 0, 0, time.UTC)
	record := &TrackItemRecord{
		ID:       "tr1",
		App:      "Visual Studio Code",
		Title:    "engram retrieval scoring",
		DeviceID: "macbook",
		Begin:    begin,
		End:      begin.Add(45 * time.Minute),
	}
	require.NoError(t, engine.ProcessTrackItem(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"app_usage"}, 10)
	require.NoError(t, err)
	require.Len(t, memories, 1)

	memory := memories[0]
	assert.Equal(t, "Using Visual Studio Code: Worked on: engram retrieval scoring", memory.Title)
	assert.Contains(t, memory.Content, "Used Visual Studio Code for 45 minutes on April 10, 2026.")
	assert.Contains(t, memory.Tags, "development")
	assert.Contains(t, memory.Tags, "morning")
	assert.Contains(t, memory.Tags, "medium-session")
	assert.InDelta(t, 0.5, memory.Importance, 1e-9, "0.3 base + 0.1 length + 0.1 category")

	deviceEntity, err := store.FindEntity(ctx, "u1", storage.EntityTypeDevice, "Device macbook")
	require.NoError(t, err)

	connections, err := engine.GetMemoryConnections(ctx, "u1", memory.ID)
	require.NoError(t, err)
	var usedDevice bool
	for _, conn := range connections {
		if conn.Type == storage.ConnectionUsedDevice && conn.TargetID == deviceEntity.ID {
			usedDevice = true
		}
	}
	assert.True(t, usedDevice, "expected a used_device edge")
}

func TestProcessTrackItemUsagePattern(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		begin := time.Now().Add(time.Duration(-4+i) * time.Hour)
		record := &TrackItemRecord{
			ID:    fmt.Sprintf("tr%d", i+1),
			App:   "Figma",
			Begin: begin,
			End:   begin.Add(40 * time.Minute),
		}
		require.NoError(t, engine.ProcessTrackItem(ctx, "u1", record))
	}

	patterns, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"pattern"}, 10)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, storage.MemoryTypeProcedural, patterns[0].Type)
	assert.Equal(t, "Figma usage pattern", patterns[0].Title)
	assert.Contains(t, patterns[0].Content, "Regular usage of Figma")
}

func TestProcessFocusSessionSkipsShort(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	begin := time.Now().Add(-3 * time.Minute)
	record := &FocusRecord{ID: "f0", Begin: begin, End: time.Now()}
	require.NoError(t, engine.ProcessFocusSession(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestProcessFocusSession(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	begin := time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC)
	record := &FocusRecord{
		ID:    "f1",
		Tags:  []string{"writing"},
		Notes: "Outlined the essay.",
		Begin: begin,
		End:   begin.Add(60 * time.Minute),
	}
	require.NoError(t, engine.ProcessFocusSession(ctx, "u1", record))

	memories, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"focus_session"}, 10)
	require.NoError(t, err)
	require.Len(t, memories, 1)

	memory := memories[0]
	assert.Equal(t, "Focus Session: writing", memory.Title)
	assert.Contains(t, memory.Content, "Focused for 1 hour on April 10, 2026.")
	assert.Contains(t, memory.Content, "Focus categories: writing.")
	assert.Contains(t, memory.Content, "Notes: Outlined the essay.")
	assert.Subset(t, memory.Tags, []string{"focus_session", "writing", "afternoon", "medium-focus"})
	assert.InDelta(t, 0.75, memory.Importance, 1e-9, "0.6 base + 0.1 length + 0.05 category")
}

func TestProcessFocusSessionPattern(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		begin := time.Now().Add(time.Duration(-6+i) * time.Hour)
		record := &FocusRecord{
			ID:    fmt.Sprintf("f%d", i+1),
			Tags:  []string{"deepwork"},
			Begin: begin,
			End:   begin.Add(50 * time.Minute),
		}
		require.NoError(t, engine.ProcessFocusSession(ctx, "u1", record))
	}

	patterns, err := engine.GetRecentMemoriesByTags(ctx, "u1", []string{"pattern"}, 10)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, storage.MemoryTypeSemantic, patterns[0].Type)
	assert.Equal(t, "Focus pattern: deepwork", patterns[0].Title)
}
