package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateConversation(ctx, "c1", "First chat", "test/model"))
	require.NoError(t, s.CreateConversation(ctx, "c2", "Second chat", "test/model"))

	records, err := s.GetConversations(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	ids := []string{records[0].ID, records[1].ID}
	assert.Contains(t, ids, "c1")
	assert.Contains(t, ids, "c2")
}

func TestMessageMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, "c1", "chat", "test/model"))

	msg := types.Message{
		ID:             "m1",
		ConversationID: "c1",
		Role:           types.RoleAssistant,
		Content:        "grounded answer",
		Thoughts:       "reasoning trace",
		Metadata: types.ResponseMetadata{
			UsageMetadata: &types.UsageMetadata{PromptTokenCount: 3, TotalTokenCount: 9},
			GroundingChunks: []types.GroundingChunk{
				{Web: &types.GroundingWeb{URI: "https://example.com", Title: "Example"}},
			},
			WebSearchQueries: []string{"example"},
			ModelVersion:     "model-v1",
			ResponseID:       "resp-1",
		},
	}
	require.NoError(t, s.CreateMessage(ctx, msg))

	loaded, err := s.GetMessagesForConversation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, "grounded answer", got.Content)
	assert.Equal(t, "reasoning trace", got.Thoughts)
	assert.Equal(t, "model-v1", got.Metadata.ModelVersion)
	assert.Equal(t, "resp-1", got.Metadata.ResponseID)
	require.NotNil(t, got.Metadata.UsageMetadata)
	assert.Equal(t, 9, got.Metadata.UsageMetadata.TotalTokenCount)
	require.Len(t, got.Metadata.GroundingChunks, 1)
	assert.Equal(t, "https://example.com", got.Metadata.GroundingChunks[0].Web.URI)
	assert.Equal(t, []string{"example"}, got.Metadata.WebSearchQueries)
}

func TestMessageWithoutMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, "c1", "chat", "m"))
	require.NoError(t, s.CreateMessage(ctx, types.Message{
		ID: "m1", ConversationID: "c1", Role: types.RoleUser, Content: "plain",
	}))

	loaded, err := s.GetMessagesForConversation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Nil(t, loaded[0].Metadata.UsageMetadata)
	assert.Empty(t, loaded[0].Metadata.GroundingChunks)
	assert.Empty(t, loaded[0].Thoughts)
}

func TestMessageFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, "c1", "chat", "m"))
	require.NoError(t, s.CreateMessage(ctx, types.Message{ID: "m1", ConversationID: "c1", Role: types.RoleUser}))

	raw := []byte{0x89, 0x50, 0x4E, 0x47}
	require.NoError(t, s.CreateMessageFile(ctx, types.MessageFile{
		ID: "f1", MessageID: "m1", FileName: "pic.png", MimeType: "image/png",
		Data: raw, Size: int64(len(raw)),
	}))

	files, err := s.GetFilesForMessage(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pic.png", files[0].FileName)
	assert.Equal(t, raw, files[0].Data)
	assert.Equal(t, int64(len(raw)), files[0].Size)
}

func TestDeleteConversationCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, "c1", "chat", "m"))
	require.NoError(t, s.CreateMessage(ctx, types.Message{ID: "m1", ConversationID: "c1", Role: types.RoleUser}))
	require.NoError(t, s.CreateMessageFile(ctx, types.MessageFile{ID: "f1", MessageID: "m1", FileName: "a.txt", MimeType: "text/plain"}))

	require.NoError(t, s.DeleteConversation(ctx, "c1"))

	records, err := s.GetConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	messages, err := s.GetMessagesForConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, messages)

	files, err := s.GetFilesForMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, files)
}
