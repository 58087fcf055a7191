package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("Requires database connection - set POSTGRES_TEST_DSN to run as integration test")
	}
	require.NoError(t, RunMigrations(dsn, "file://../../../migrations"))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestConversationRepository_Archive(t *testing.T) {
	repo := NewConversationRepository(testPool(t))
	ctx := context.Background()
	userID := "user-" + uuid.NewString()
	start := time.Now().UTC().Truncate(time.Millisecond)

	older := &domain.Conversation{ID: uuid.NewString(), UserID: userID, Topic: "mood", StartedAt: start}
	newer := &domain.Conversation{ID: uuid.NewString(), UserID: userID, Topic: "verse", StartedAt: start.Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	list, err := repo.List(ctx, domain.ConversationFilter{UserID: userID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	list, err = repo.List(ctx, domain.ConversationFilter{UserID: userID, Topic: "mood", Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)

	for i, role := range []domain.MessageRole{domain.RoleUser, domain.RoleAssistant} {
		require.NoError(t, repo.AppendMessage(ctx, &domain.ConversationMessage{
			ID:             uuid.NewString(),
			ConversationID: older.ID,
			Role:           role,
			Content:        string(role),
			Timestamp:      start.Add(time.Duration(i) * time.Second),
		}))
	}

	messages, err := repo.ListMessages(ctx, older.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, messages[1].Role)

	_, err = repo.Get(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
