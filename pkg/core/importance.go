package core

import (
	"strings"
	"time"

	"github.com/quantself/engram-go/pkg/storage"
)

// emotionalKeywords raise importance when they appear in memory text.
var emotionalKeywords = []string{
	"amazing", "terrible", "wonderful", "awful", "excited", "happy", "sad", "angry",
	"thrilled", "depressed", "love", "hate", "important", "critical", "urgent",
	"frustrated", "anxious", "proud", "disappointed", "grateful", "overwhelmed",
	"exhausted", "energized", "inspired", "stressed",
}

// urgencyKeywords mark time pressure in memory text.
var urgencyKeywords = []string{
	"tomorrow", "today", "immediately", "urgent", "deadline", "soon", "now",
}

// calculateImportance determines the importance of a memory from its type,
// source stream, content, and due-date proximity. The result is in [0, 1].
func (e *Engine) calculateImportance(input MemoryInput) float64 {
	importance := 0.5 // base importance

	switch input.Type {
	case storage.MemoryTypeEpisodic:
		importance += 0.1
	case storage.MemoryTypeSemantic:
		importance += 0.0
	case storage.MemoryTypeProcedural:
		importance += 0.05
	}

	switch input.SourceKind {
	case KindTasks:
		importance += 0.1
	case KindHabits:
		importance += 0.05
	case KindDailyLog:
		importance += 0.05
	case KindLifeBalance:
		importance += 0.15
	case KindTrackFocus:
		importance += 0.1
	}

	content := strings.ToLower(input.Title + " " + input.Content)

	for _, keyword := range emotionalKeywords {
		if strings.Contains(content, keyword) {
			importance += 0.05
			break
		}
	}

	for _, keyword := range urgencyKeywords {
		if strings.Contains(content, keyword) {
			importance += 0.1
			break
		}
	}

	if input.Metadata != nil {
		if dueDate, ok := input.Metadata["due_date"].(time.Time); ok {
			daysUntilDue := time.Until(dueDate).Hours() / 24
			if daysUntilDue < 0 {
				importance += 0.3 // overdue
			} else if daysUntilDue < 1 {
				importance += 0.25 // due today
			} else if daysUntilDue < 3 {
				importance += 0.15 // due soon
			} else if daysUntilDue < 7 {
				importance += 0.05 // due this week
			}
		}
	}

	if importance > 1.0 {
		importance = 1.0
	}
	if importance < 0.0 {
		importance = 0.0
	}

	return importance
}
