package chat

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// MessageStore durably records chat messages. Recording happens before
// broadcast; a message that fails to record is never delivered to anyone.
type MessageStore interface {
	Save(ctx context.Context, msg Message) error
}

// MemoryMessageStore keeps messages in memory, for tests and local runs.
type MemoryMessageStore struct {
	mu       sync.Mutex
	messages []Message
}

// NewMemoryMessageStore returns a new empty in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{}
}

// Save implements MessageStore.Save.
func (s *MemoryMessageStore) Save(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of all recorded messages in record order.
func (s *MemoryMessageStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SQLiteMessageStore records messages in a SQLite comments table.
type SQLiteMessageStore struct {
	db *sql.DB
}

// NewSQLiteMessageStore prepares the comments table on db and returns a store
// using it. The db handle is shared with the caller and not closed here.
func NewSQLiteMessageStore(db *sql.DB) (*SQLiteMessageStore, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS comments (
			id         TEXT PRIMARY KEY,
			video_id   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create comments table: %w", err)
	}
	return &SQLiteMessageStore{db: db}, nil
}

// Save implements MessageStore.Save.
func (s *SQLiteMessageStore) Save(ctx context.Context, msg Message) error {
	const query = `
		INSERT INTO comments (id, video_id, user_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.VideoID, msg.UserID, msg.Content, msg.CreatedAt); err != nil {
		return fmt.Errorf("insert comment %q: %w", msg.ID, err)
	}
	return nil
}
