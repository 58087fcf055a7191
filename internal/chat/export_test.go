package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/localstore"
	"github.com/Rrens/bloombuddy/internal/topic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportTranscript(t *testing.T) {
	ctx := context.Background()
	catalog := topic.Default()
	s := NewSession(localstore.NewMemory(), catalog)

	require.NoError(t, s.Open(ctx, topic.Verse))

	var b strings.Builder
	assert.ErrorIs(t, ExportTranscript(&b, s, catalog, testTime), ErrNothingToExport)

	require.NoError(t, s.AppendTurn(ctx,
		domain.NewMessage(domain.RoleUser, "I need hope", testTime),
		domain.NewMessage(domain.RoleAssistant, "Here is a verse.", testTime),
	))
	require.NoError(t, ExportTranscript(&b, s, catalog, testTime))

	cfg, _ := catalog.Lookup(topic.Verse)
	want := "Chat History: " + cfg.Title + "\n" +
		"Exported on: 2025-03-01\n\n" +
		"BloomBuddy: " + cfg.Intro + "\n\n" +
		"You: I need hope\n\n" +
		"BloomBuddy: Here is a verse.\n\n"
	assert.Equal(t, want, b.String())
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "BloomBuddy_Chat_verse___encouragement.txt", ExportFilename("Verse + Encouragement"))
}
