package media

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func newTestSQLiteStore(t *testing.T) *SQLiteMetadataStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteMetadataStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteMetadataStore: %v", err)
	}
	return store
}

func TestSQLiteMetadataStore_listNewestFirst(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []VideoID{"old", "mid", "new"} {
		err := store.Create(ctx, VideoMetadata{
			ID:        id,
			Title:     string(id) + " title",
			UserID:    "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	videos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(videos) != 3 {
		t.Fatalf("expected 3 videos, got %d", len(videos))
	}
	if videos[0].ID != "new" || videos[2].ID != "old" {
		t.Errorf("expected newest first, got %v, %v, %v", videos[0].ID, videos[1].ID, videos[2].ID)
	}
}

func TestSQLiteMetadataStore_incrementViews(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, VideoMetadata{ID: "v1", Title: "t", UserID: "u1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.IncrementViews(ctx, "v1"); err != nil {
			t.Fatalf("IncrementViews: %v", err)
		}
	}

	videos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if videos[0].Views != 3 {
		t.Errorf("expected 3 views, got %d", videos[0].Views)
	}
}

func TestSQLiteMetadataStore_incrementViews_unknown(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.IncrementViews(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryMetadataStore_incrementViews(t *testing.T) {
	store := NewMemoryMetadataStore()
	store.Put(VideoMetadata{ID: "v1", Title: "t"})

	if err := store.IncrementViews(context.Background(), "v1"); err != nil {
		t.Fatalf("IncrementViews: %v", err)
	}
	videos, _ := store.List(context.Background())
	if videos[0].Views != 1 {
		t.Errorf("expected 1 view, got %d", videos[0].Views)
	}

	if err := store.IncrementViews(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
