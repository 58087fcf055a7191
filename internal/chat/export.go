package chat

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/topic"
)

// ErrNothingToExport is returned when the open conversation has no turns
var ErrNothingToExport = errors.New("chat: there is no conversation to export")

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9]`)

// ExportTranscript writes the context window of the open session as plain
// text: a title header, the topic introduction, then one paragraph per message.
func ExportTranscript(w io.Writer, s *Session, catalog *topic.Catalog, at time.Time) error {
	history := s.CurrentContext()
	if len(history) == 0 {
		return ErrNothingToExport
	}

	cfg, ok := catalog.Lookup(s.Topic())
	title := "BloomBuddy Chat"
	if ok && cfg.Title != "" {
		title = cfg.Title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Chat History: %s\n", title)
	fmt.Fprintf(&b, "Exported on: %s\n\n", at.Format("2006-01-02"))
	if ok && cfg.Intro != "" {
		fmt.Fprintf(&b, "BloomBuddy: %s\n\n", cfg.Intro)
	}
	for _, m := range history {
		prefix := "BloomBuddy:"
		if m.Role == domain.RoleUser {
			prefix = "You:"
		}
		fmt.Fprintf(&b, "%s %s\n\n", prefix, m.Content)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ExportFilename derives the download name for a topic title
func ExportFilename(title string) string {
	safe := unsafeFilenameChars.ReplaceAllString(strings.ToLower(title), "_")
	return fmt.Sprintf("BloomBuddy_Chat_%s.txt", safe)
}
