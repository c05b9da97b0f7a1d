package entity

// buildCommonWords builds the set of words too common to be entities.
func buildCommonWords() map[string]bool {
	words := []string{
		// Common English words
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "when", "at", "from",
		"by", "for", "with", "about", "against", "between", "into", "through", "during",
		"before", "after", "above", "below", "to", "of", "in", "out", "on", "off", "over",
		"under", "again", "further", "once", "here", "there", "where", "why", "how",
		"all", "any", "both", "each", "few", "more", "most", "other", "some", "such", "no",
		"nor", "not", "only", "own", "same", "so", "than", "too", "very", "this", "that",
		"these", "those", "one", "two", "three", "four", "five", "first", "last", "next",
		"many", "much", "will", "shall", "may", "might", "must", "can", "could", "would",
		"should", "ought", "need", "want", "like", "hate", "love", "think", "know", "feel",
		"see", "hear", "smell", "taste", "touch", "look", "watch", "listen", "say", "tell",
		"make", "create", "build", "break", "read", "write", "speak", "talk", "walk", "run",
		"take", "put", "send", "receive", "buy", "sell", "pay", "cost", "find", "lose",
		"start", "stop", "begin", "end", "open", "close", "show", "hide", "come", "go",
		"move", "stand", "sit", "lie", "rise", "fall", "increase", "decrease", "grow",
		"help", "play", "work", "study", "learn", "teach", "change", "try", "attempt",

		// Common terms in tasks and daily notes
		"today", "tomorrow", "yesterday", "week", "month", "year", "morning", "afternoon",
		"evening", "night", "plan", "task", "todo", "meeting", "call", "email", "message",
		"update", "review", "check", "finish", "complete", "done", "pending", "progress",
		"continue", "follow", "priority", "high", "medium", "low",
		"important", "urgent", "later", "soon", "now", "never", "always", "sometimes",
		"often", "rarely", "regular", "routine", "daily", "weekly", "monthly", "yearly",
		"goal", "target", "deadline", "due", "schedule", "calendar", "appointment", "event",

		// Common feelings and states
		"happy", "sad", "angry", "frustrated", "excited", "bored", "tired", "energetic",
		"focused", "distracted", "productive", "unproductive", "motivated", "unmotivated",
		"stressed", "relaxed", "busy", "free", "available", "unavailable", "present", "absent",

		// Common action words
		"add", "remove", "edit", "delete", "modify", "adjust",
		"fix", "repair", "improve", "enhance", "optimize", "simplify", "complicate",
	}

	result := make(map[string]bool, len(words))
	for _, word := range words {
		result[word] = true
	}

	return result
}
