package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// stopWords are excluded from keyword matching and text similarity.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"day": true, "get": true, "has": true, "him": true, "his": true,
	"how": true, "man": true, "new": true, "now": true, "old": true,
	"see": true, "two": true, "way": true, "who": true, "its": true,
	"did": true, "with": true, "this": true, "that": true, "from": true,
	"they": true, "have": true, "been": true, "were": true, "their": true,
	"said": true, "each": true, "which": true, "will": true, "would": true,
	"there": true, "what": true, "about": true, "when": true, "your": true,
	"some": true, "them": true, "these": true, "than": true, "then": true,
	"into": true, "very": true, "just": true, "over": true, "also": true,
}

func isStopWord(word string) bool {
	return stopWords[word]
}

// cosineSimilarity calculates the cosine similarity between two vectors.
// Mismatched or empty vectors score zero.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// textSimilarity calculates the Jaccard similarity of the non-trivial word
// sets of two texts.
func textSimilarity(text1, text2 string) float64 {
	freq1 := wordSet(text1)
	freq2 := wordSet(text2)

	commonWords := 0
	for word := range freq1 {
		if freq2[word] {
			commonWords++
		}
	}

	uniqueWords := len(freq1) + len(freq2) - commonWords
	if uniqueWords == 0 {
		return 0.0
	}

	return float64(commonWords) / float64(uniqueWords)
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, `.,!?():;"'`)
		if len(word) > 1 && !isStopWord(word) {
			set[word] = true
		}
	}
	return set
}

// extractExcerpt cuts text down to maxLength, preferring a sentence break.
func extractExcerpt(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}

	for i := maxLength; i > 0; i-- {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			return text[:i+1]
		}
	}

	return text[:maxLength] + "..."
}

// App name keyword lists used to categorize usage sessions.
var (
	productivityApps = []string{
		"word", "excel", "powerpoint", "notes", "evernote", "notion", "onenote",
		"docs", "sheets", "slides", "calendar", "reminders", "outlook", "gmail",
		"trello", "asana", "jira", "slack", "teams", "zoom", "meet",
	}
	developmentApps = []string{
		"code", "vscode", "visual studio", "intellij", "pycharm", "android studio",
		"xcode", "sublime", "vim", "emacs", "terminal", "powershell", "command",
		"github", "gitlab", "bitbucket", "sourcetree",
	}
	creativityApps = []string{
		"photoshop", "illustrator", "indesign", "lightroom", "premiere", "after effects",
		"figma", "sketch", "canva", "gimp", "blender", "maya", "garageband", "logic",
		"audacity", "protools", "ableton",
	}
	entertainmentApps = []string{
		"netflix", "hulu", "disney", "youtube", "spotify", "apple music", "prime video",
		"hbo", "twitch", "games", "steam", "epic games", "xbox", "playstation",
	}
	socialApps = []string{
		"facebook", "instagram", "twitter", "snapchat", "tiktok", "whatsapp", "telegram",
		"signal", "messenger", "discord", "reddit", "linkedin",
	}
	browserApps = []string{
		"chrome", "firefox", "safari", "edge", "opera", "brave", "browser",
	}
)

// categorizeApp classifies an application by its purpose.
func categorizeApp(appName string) string {
	appLower := strings.ToLower(appName)

	categories := []struct {
		name string
		apps []string
	}{
		{"productivity", productivityApps},
		{"development", developmentApps},
		{"creativity", creativityApps},
		{"entertainment", entertainmentApps},
		{"social", socialApps},
		{"web-browsing", browserApps},
	}

	for _, category := range categories {
		for _, app := range category.apps {
			if strings.Contains(appLower, app) {
				return category.name
			}
		}
	}

	return "other"
}

// timeOfDayTag buckets an hour into morning, afternoon, evening, or night.
func timeOfDayTag(t time.Time) string {
	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%d hour%s %d minute%s",
				hours, pluralS(hours), minutes, pluralS(minutes))
		}
		return fmt.Sprintf("%d hour%s", hours, pluralS(hours))
	}

	return fmt.Sprintf("%d minute%s", minutes, pluralS(minutes))
}

// pluralS returns "s" for plural counts.
func pluralS(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}

// titleCase capitalizes the first letter of a word.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
