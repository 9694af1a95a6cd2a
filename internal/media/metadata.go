package media

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MetadataStore is the external collaborator that owns video metadata.
// The core only lists records and bumps view counters through it.
type MetadataStore interface {
	// List returns all video records, newest first.
	List(ctx context.Context) ([]VideoMetadata, error)

	// IncrementViews atomically bumps the view counter for id.
	// Unknown ids return ErrNotFound.
	IncrementViews(ctx context.Context, id VideoID) error
}

// MemoryMetadataStore is an in-memory MetadataStore for tests and demos.
type MemoryMetadataStore struct {
	mu     sync.Mutex
	videos map[VideoID]VideoMetadata
}

// NewMemoryMetadataStore returns a new empty in-memory metadata store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{videos: make(map[VideoID]VideoMetadata)}
}

// Put inserts or replaces a metadata record.
func (s *MemoryMetadataStore) Put(v VideoMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.ID] = v
}

// List implements MetadataStore.List.
func (s *MemoryMetadataStore) List(_ context.Context) ([]VideoMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VideoMetadata, 0, len(s.videos))
	for _, v := range s.videos {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// IncrementViews implements MetadataStore.IncrementViews.
func (s *MemoryMetadataStore) IncrementViews(_ context.Context, id VideoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return ErrNotFound
	}
	v.Views++
	s.videos[id] = v
	return nil
}

// SQLiteMetadataStore is a MetadataStore backed by a SQLite database.
type SQLiteMetadataStore struct {
	db *sql.DB
}

// NewSQLiteMetadataStore prepares the videos table on db and returns a store
// using it. The db handle is shared with the caller and not closed here.
func NewSQLiteMetadataStore(db *sql.DB) (*SQLiteMetadataStore, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS videos (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			user_id      TEXT NOT NULL,
			channel_name TEXT NOT NULL DEFAULT '',
			views        INTEGER NOT NULL DEFAULT 0,
			likes        INTEGER NOT NULL DEFAULT 0,
			is_live      INTEGER NOT NULL DEFAULT 0,
			duration     REAL NOT NULL DEFAULT 0,
			created_at   TIMESTAMP NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create videos table: %w", err)
	}
	return &SQLiteMetadataStore{db: db}, nil
}

// Create inserts a new metadata record. It is used by the upload collaborator,
// not by the serving path.
func (s *SQLiteMetadataStore) Create(ctx context.Context, v VideoMetadata) error {
	const query = `
		INSERT INTO videos (id, title, description, user_id, channel_name, views, likes, is_live, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx, query,
		string(v.ID), v.Title, v.Description, v.UserID, v.ChannelName,
		v.Views, v.Likes, v.IsLive, v.Duration, v.CreatedAt); err != nil {
		return fmt.Errorf("insert video %q: %w", v.ID, err)
	}
	return nil
}

// List implements MetadataStore.List.
func (s *SQLiteMetadataStore) List(ctx context.Context) ([]VideoMetadata, error) {
	const query = `
		SELECT id, title, description, user_id, channel_name, views, likes, is_live, duration, created_at
		FROM videos ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var out []VideoMetadata
	for rows.Next() {
		var v VideoMetadata
		var id string
		if err := rows.Scan(&id, &v.Title, &v.Description, &v.UserID, &v.ChannelName,
			&v.Views, &v.Likes, &v.IsLive, &v.Duration, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video row: %w", err)
		}
		v.ID = VideoID(id)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video rows: %w", err)
	}
	return out, nil
}

// IncrementViews implements MetadataStore.IncrementViews.
func (s *SQLiteMetadataStore) IncrementViews(ctx context.Context, id VideoID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE videos SET views = views + 1 WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("increment views for %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment views for %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
