package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

func TestAppendAndOrder(t *testing.T) {
	s := NewStore()
	s.Create("c1", "model", "title")

	s.AppendMessage(types.Message{ID: "m1", ConversationID: "c1", Role: types.RoleUser, Content: "one"})
	s.AppendMessage(types.Message{ID: "m2", ConversationID: "c1", Role: types.RoleAssistant, Content: "two"})
	// messages for another conversation are ignored
	s.AppendMessage(types.Message{ID: "mx", ConversationID: "other", Content: "nope"})

	conv := s.Open()
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "m1", conv.Messages[0].ID)
	assert.Equal(t, "m2", conv.Messages[1].ID)
}

func TestReplaceMessage(t *testing.T) {
	s := NewStore()
	s.Create("c1", "model", "title")
	s.AppendMessage(types.Message{ID: "m1", ConversationID: "c1", Content: "partial", Streaming: true})

	ok := s.ReplaceMessage("m1", types.Message{ID: "m1", ConversationID: "c1", Content: "full", Streaming: false})
	assert.True(t, ok)

	conv := s.Open()
	assert.Equal(t, "full", conv.Messages[0].Content)
	assert.False(t, conv.Messages[0].Streaming)

	// replacing a message that is not in the open conversation is a no-op
	assert.False(t, s.ReplaceMessage("missing", types.Message{ID: "missing"}))
}

func TestRemoveOpenAndMessages(t *testing.T) {
	s := NewStore()
	s.Create("c1", "model", "title")
	s.AppendMessage(types.Message{ID: "m1", ConversationID: "c1"})
	s.AppendMessage(types.Message{ID: "m2", ConversationID: "c1"})

	s.RemoveMessage("m1")
	conv := s.Open()
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "m2", conv.Messages[0].ID)

	s.RemoveOpen()
	assert.Nil(t, s.Open())
	assert.Empty(t, s.OpenID())
}

func TestOverlaySubstitution(t *testing.T) {
	s := NewStore()
	s.Create("c1", "model", "title")
	s.AppendMessage(types.Message{ID: "u1", ConversationID: "c1", Role: types.RoleUser, Content: "hi"})
	s.AppendMessage(types.Message{ID: "s1", ConversationID: "c1", Role: types.RoleAssistant, Streaming: true})

	s.PutOverlay("s1", types.Message{ID: "s1", ConversationID: "c1", Role: types.RoleAssistant, Content: "str", Streaming: true})

	rendered := s.Rendered("c1")
	require.Len(t, rendered, 2)
	assert.Equal(t, "str", rendered[1].Content)

	s.DropOverlay("s1")
	assert.Zero(t, s.OverlayCount())
	rendered = s.Rendered("c1")
	assert.Empty(t, rendered[1].Content)
}

func TestOverlayFromOtherConversationIsFiltered(t *testing.T) {
	s := NewStore()
	s.Create("c1", "model", "title")
	s.AppendMessage(types.Message{ID: "u1", ConversationID: "c1", Content: "hi"})

	// a stream targeting a conversation that is no longer open
	s.PutOverlay("s-other", types.Message{ID: "s-other", ConversationID: "c2", Content: "elsewhere"})

	rendered := s.Rendered("c1")
	require.Len(t, rendered, 1)
	assert.Equal(t, "u1", rendered[0].ID)

	rendered = s.Rendered("c2")
	require.Len(t, rendered, 1)
	assert.Equal(t, "s-other", rendered[0].ID)
}

func TestSidebar(t *testing.T) {
	sb := NewSidebar()
	sb.Add(SidebarEntry{ID: "c1", Title: "first"})
	sb.Add(SidebarEntry{ID: "c2", Title: "second"})
	sb.SetActive("c2")

	entries := sb.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "c2", entries[0].ID) // newest first
	assert.True(t, sb.Contains("c1"))
	assert.Equal(t, "c2", sb.Active())

	sb.Remove("c2")
	assert.False(t, sb.Contains("c2"))
	assert.Empty(t, sb.Active())
}
