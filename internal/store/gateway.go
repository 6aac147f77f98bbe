// Package store implements the persistence gateway: the durable home of
// conversations, messages, and message files. The orchestrator only depends
// on the Gateway interface; the SQLite implementation lives alongside it.
package store

import (
	"context"

	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// ConversationRecord is one persisted conversation row.
type ConversationRecord struct {
	ID      string
	Title   string
	ModelID string
}

// Gateway is the persistence call contract consumed by the orchestrator.
type Gateway interface {
	CreateConversation(ctx context.Context, id, title, modelID string) error

	// CreateMessage persists a message including its metadata columns
	// (grounding, usage, model version, response id, thoughts).
	CreateMessage(ctx context.Context, msg types.Message) error

	// CreateMessageFile persists one attachment; the owning message id is
	// assigned here, at persistence time.
	CreateMessageFile(ctx context.Context, file types.MessageFile) error

	GetConversations(ctx context.Context) ([]ConversationRecord, error)
	GetMessagesForConversation(ctx context.Context, conversationID string) ([]types.Message, error)
	GetFilesForMessage(ctx context.Context, messageID string) ([]types.MessageFile, error)

	DeleteConversation(ctx context.Context, id string) error

	Close() error
}
