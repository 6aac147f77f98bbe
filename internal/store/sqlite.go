package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aaleccoder/taulechat-sub000/internal/logging"
	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT,
	model_id   TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id                 TEXT PRIMARY KEY,
	conversation_id    TEXT NOT NULL,
	role               TEXT NOT NULL,
	content            TEXT NOT NULL DEFAULT '',
	tokens_used        INTEGER,
	grounding_chunks   TEXT,
	grounding_supports TEXT,
	web_search_queries TEXT,
	usage_metadata     TEXT,
	model_version      TEXT,
	response_id        TEXT,
	thoughts           TEXT,
	created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);

CREATE TABLE IF NOT EXISTS message_files (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL,
	file_name  TEXT NOT NULL,
	mime_type  TEXT NOT NULL,
	data       BLOB,
	size       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_files_message ON message_files(message_id);
`

// SQLiteStore implements Gateway on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logging.Store("opening database at %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set synchronous=NORMAL: %v", err)
	}

	s := &SQLiteStore{db: db, dbPath: path}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a conversation row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, id, title, modelID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, title, model_id) VALUES (?, ?, ?)",
		id, title, modelID)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	logging.StoreDebug("created conversation %s (%q)", id, title)
	return nil
}

// marshalOrNull JSON-encodes v, returning SQL NULL for nil values.
func marshalOrNull(v interface{}) (sql.NullString, error) {
	switch typed := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case *types.UsageMetadata:
		if typed == nil {
			return sql.NullString{}, nil
		}
	case []types.GroundingChunk:
		if typed == nil {
			return sql.NullString{}, nil
		}
	case []types.GroundingSupport:
		if typed == nil {
			return sql.NullString{}, nil
		}
	case []string:
		if typed == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// CreateMessage persists a message with its metadata columns.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg types.Message) error {
	grounding, err := marshalOrNull(msg.Metadata.GroundingChunks)
	if err != nil {
		return fmt.Errorf("failed to marshal grounding chunks: %w", err)
	}
	supports, err := marshalOrNull(msg.Metadata.GroundingSupports)
	if err != nil {
		return fmt.Errorf("failed to marshal grounding supports: %w", err)
	}
	queries, err := marshalOrNull(msg.Metadata.WebSearchQueries)
	if err != nil {
		return fmt.Errorf("failed to marshal web search queries: %w", err)
	}
	usage, err := marshalOrNull(msg.Metadata.UsageMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal usage metadata: %w", err)
	}

	var tokensUsed sql.NullInt64
	if msg.Metadata.UsageMetadata != nil {
		tokensUsed = sql.NullInt64{Int64: int64(msg.Metadata.UsageMetadata.TotalTokenCount), Valid: true}
	}
	modelVersion := nullIfEmpty(msg.Metadata.ModelVersion)
	responseID := nullIfEmpty(msg.Metadata.ResponseID)
	thoughts := nullIfEmpty(msg.Thoughts)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages
			(id, conversation_id, role, content, tokens_used,
			 grounding_chunks, grounding_supports, web_search_queries,
			 usage_metadata, model_version, response_id, thoughts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, tokensUsed,
		grounding, supports, queries, usage, modelVersion, responseID, thoughts)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		msg.ConversationID)
	if err != nil {
		logging.StoreDebug("failed to touch conversation %s: %v", msg.ConversationID, err)
	}
	logging.StoreDebug("created message %s role=%s content_len=%d", msg.ID, msg.Role, len(msg.Content))
	return nil
}

// CreateMessageFile persists one attachment row.
func (s *SQLiteStore) CreateMessageFile(ctx context.Context, file types.MessageFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_files (id, message_id, file_name, mime_type, data, size)
		VALUES (?, ?, ?, ?, ?, ?)`,
		file.ID, file.MessageID, file.FileName, file.MimeType, file.Data, file.Size)
	if err != nil {
		return fmt.Errorf("failed to create message file: %w", err)
	}
	logging.StoreDebug("created message file %s (%s, %d bytes)", file.ID, file.MimeType, file.Size)
	return nil
}

// GetConversations lists conversations, newest activity first.
func (s *SQLiteStore) GetConversations(ctx context.Context) ([]ConversationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, COALESCE(title, ''), COALESCE(model_id, '') FROM conversations ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var records []ConversationRecord
	for rows.Next() {
		var r ConversationRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.ModelID); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetMessagesForConversation loads the ordered message history.
func (s *SQLiteStore) GetMessagesForConversation(ctx context.Context, conversationID string) ([]types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content,
		       grounding_chunks, grounding_supports, web_search_queries,
		       usage_metadata, model_version, response_id, thoughts, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		var msg types.Message
		var role string
		var grounding, supports, queries, usage sql.NullString
		var modelVersion, responseID, thoughts sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content,
			&grounding, &supports, &queries, &usage,
			&modelVersion, &responseID, &thoughts, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = types.Role(role)
		msg.CreatedAt = createdAt
		msg.Thoughts = thoughts.String
		msg.Metadata.ModelVersion = modelVersion.String
		msg.Metadata.ResponseID = responseID.String
		if grounding.Valid {
			json.Unmarshal([]byte(grounding.String), &msg.Metadata.GroundingChunks)
		}
		if supports.Valid {
			json.Unmarshal([]byte(supports.String), &msg.Metadata.GroundingSupports)
		}
		if queries.Valid {
			json.Unmarshal([]byte(queries.String), &msg.Metadata.WebSearchQueries)
		}
		if usage.Valid {
			json.Unmarshal([]byte(usage.String), &msg.Metadata.UsageMetadata)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetFilesForMessage loads the attachments of one message.
func (s *SQLiteStore) GetFilesForMessage(ctx context.Context, messageID string) ([]types.MessageFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, file_name, mime_type, data, size, created_at
		FROM message_files WHERE message_id = ? ORDER BY created_at ASC, id ASC`,
		messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query message files: %w", err)
	}
	defer rows.Close()

	var files []types.MessageFile
	for rows.Next() {
		var f types.MessageFile
		if err := rows.Scan(&f.ID, &f.MessageID, &f.FileName, &f.MimeType, &f.Data, &f.Size, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteConversation removes a conversation and everything under it.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM message_files WHERE message_id IN (SELECT id FROM messages WHERE conversation_id = ?)", id); err != nil {
		return fmt.Errorf("failed to delete message files: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	logging.Store("deleted conversation %s", id)
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
