// Package conversation holds the in-memory conversation state: exactly one
// open conversation plus a keyed overlay of in-flight stream snapshots. All
// mutation goes through the narrow append/replace/remove API; each mutation
// runs to completion under the store lock, so concurrent streams never see a
// half-applied update.
package conversation

import (
	"sync"

	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// Store is the authoritative state for the currently open conversation.
type Store struct {
	mu      sync.RWMutex
	open    *types.Conversation
	overlay map[string]types.Message // streamID -> in-flight assistant snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{overlay: make(map[string]types.Message)}
}

// Open returns a copy of the open conversation, or nil when none is open.
func (s *Store) Open() *types.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.open == nil {
		return nil
	}
	conv := *s.open
	conv.Messages = append([]types.Message(nil), s.open.Messages...)
	return &conv
}

// OpenID returns the id of the open conversation, or "".
func (s *Store) OpenID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.open == nil {
		return ""
	}
	return s.open.ID
}

// Create opens a fresh conversation, replacing any previously open one.
func (s *Store) Create(id, modelID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = &types.Conversation{ID: id, ModelID: modelID, Title: title}
}

// SetOpen replaces the open conversation wholesale (used when loading a
// persisted conversation).
func (s *Store) SetOpen(conv *types.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = conv
}

// RemoveOpen closes the open conversation (rollback path).
func (s *Store) RemoveOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = nil
}

// AppendMessage appends to the open conversation. Messages are never
// reordered after insertion.
func (s *Store) AppendMessage(msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil || s.open.ID != msg.ConversationID {
		return
	}
	s.open.Messages = append(s.open.Messages, msg)
}

// ReplaceMessage replaces the message with the given id in place. Used for
// streaming deltas and the final streaming=false commit. A miss is a no-op:
// the stream may target a conversation that is no longer open.
func (s *Store) ReplaceMessage(id string, msg types.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return false
	}
	for i := range s.open.Messages {
		if s.open.Messages[i].ID == id {
			s.open.Messages[i] = msg
			return true
		}
	}
	return false
}

// RemoveMessage deletes the message with the given id (rollback path).
func (s *Store) RemoveMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return
	}
	filtered := s.open.Messages[:0]
	for _, m := range s.open.Messages {
		if m.ID != id {
			filtered = append(filtered, m)
		}
	}
	s.open.Messages = filtered
}

// PutOverlay stores the in-flight snapshot for a stream.
func (s *Store) PutOverlay(streamID string, msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay[streamID] = msg
}

// DropOverlay removes a stream's snapshot once the stream terminates.
func (s *Store) DropOverlay(streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlay, streamID)
}

// OverlayCount reports how many streams currently have snapshots.
func (s *Store) OverlayCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overlay)
}

// Rendered returns the message list for the given conversation: persisted
// messages with overlay snapshots substituted by id, plus overlay entries
// for messages not yet in the conversation. Overlay entries belonging to
// other conversations are filtered out.
func (s *Store) Rendered(conversationID string) []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var base []types.Message
	if s.open != nil && s.open.ID == conversationID {
		base = append(base, s.open.Messages...)
	}

	seen := make(map[string]int, len(base))
	for i, m := range base {
		seen[m.ID] = i
	}
	for streamID, m := range s.overlay {
		if m.ConversationID != conversationID {
			continue
		}
		if i, ok := seen[streamID]; ok {
			base[i] = m
		} else {
			base = append(base, m)
		}
	}
	return base
}
