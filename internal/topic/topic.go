// Package topic holds the chat topics offered to users: the title shown for
// each, the introductory message that opens its chat and the system prompt the
// upstream model receives.
package topic

import "sort"

// Names of the built-in topics
const (
	Mood     = "mood"
	Verse    = "verse"
	Practice = "practice"
	Growth   = "growth"
)

// promptSuffix is appended to every system prompt
const promptSuffix = "\n\nAlways be respectful, helpful, and supportive. Keep responses concise but meaningful."

// fallbackPrompt is used for topics the catalog does not know
const fallbackPrompt = "You are BloomBuddy, a warm and supportive companion. Listen carefully, respond with empathy and never give medical advice."

// Config describes one chat topic
type Config struct {
	Name         string
	Title        string
	Intro        string
	SystemPrompt string
}

// Catalog maps topic names to their configuration
type Catalog struct {
	topics map[string]Config
}

// NewCatalog creates a catalog from the given topics
func NewCatalog(topics ...Config) *Catalog {
	c := &Catalog{topics: make(map[string]Config, len(topics))}
	for _, t := range topics {
		c.topics[t.Name] = t
	}
	return c
}

// Default returns the catalog of built-in topics
func Default() *Catalog {
	return NewCatalog(
		Config{
			Name:  Mood,
			Title: "Mood Check",
			Intro: "Hello! I'm here to help you check in with your mood and emotional well-being. " +
				"To start, you could tell me if you're doing okay, not sure, or struggling.",
			SystemPrompt: "You are BloomBuddy, a compassionate companion helping with mood check-ins. " +
				"Acknowledge the feeling the user names, share one fitting verse, offer gentle encouragement " +
				"and suggest a small next step. Encourage professional help for serious concerns and never give medical advice.",
		},
		Config{
			Name:  Verse,
			Title: "Verse + Encouragement",
			Intro: "Welcome! I'm here to provide you with spiritual encouragement and meaningful verses. " +
				"What's on your heart today? You can mention feelings like anxiety, fear, doubt, sadness, stress, or confusion.",
			SystemPrompt: "You are BloomBuddy, a source of spiritual encouragement. When the user names a feeling, " +
				"open with empathy, give one relevant verse, explain its context, ask a reflection question " +
				"and offer follow-up options. Be respectful of different beliefs.",
		},
		Config{
			Name:  Practice,
			Title: "Daily Practice",
			Intro: "Hi! I'm here to help you with your daily spiritual practices. " +
				"Would you like a daily affirmation, a gratitude prompt, a short prayer, or a journal reflection?",
			SystemPrompt: "You are BloomBuddy, a gentle guide for daily spiritual practice such as gratitude, " +
				"prayer and reflection. Give practical steps the user can follow right away, one at a time.",
		},
		Config{
			Name:  Growth,
			Title: "Spiritual Growth",
			Intro: "Hello! I'm here to support your spiritual growth journey. " +
				"Which area would you like to grow in? For example, you could mention faith, forgiveness, hope, or purpose.",
			SystemPrompt: "You are BloomBuddy, a wise mentor for spiritual growth. Offer a short teaching, " +
				"a real-life example and a concrete growth challenge for the week.",
		},
	)
}

// Lookup returns the configuration of a topic
func (c *Catalog) Lookup(name string) (Config, bool) {
	t, ok := c.topics[name]
	return t, ok
}

// SystemPrompt returns the full system prompt for a topic, falling back to a
// generic prompt for unknown topics
func (c *Catalog) SystemPrompt(name string) string {
	if t, ok := c.topics[name]; ok && t.SystemPrompt != "" {
		return t.SystemPrompt + promptSuffix
	}
	return fallbackPrompt + promptSuffix
}

// Names returns the topic names in sorted order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.topics))
	for name := range c.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
