package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when no blob or metadata record exists for a video id.
var ErrNotFound = errors.New("video not found")

// Blob is a read cursor over one stored object. Responses are built from
// section readers over the ReaderAt, so the amount of memory a response
// needs is independent of the blob's size regardless of how the store
// materializes content.
type Blob interface {
	io.ReaderAt
	io.Closer

	// Size returns the exact content length in bytes.
	Size() int64

	// ContentType returns the declared MIME type of the content.
	ContentType() string
}

// BlobStore resolves video ids to stored content. It is read-only from the
// serving path's perspective; writes happen through the upload collaborator.
type BlobStore interface {
	OpenVideo(ctx context.Context, id VideoID) (Blob, error)
	OpenThumbnail(ctx context.Context, id VideoID) (Blob, error)
}

// memoryBlob is an in-memory Blob backed by a byte slice. The embedded
// bytes.Reader provides ReaderAt and Size.
type memoryBlob struct {
	*bytes.Reader
	contentType string
}

func (b *memoryBlob) ContentType() string { return b.contentType }
func (b *memoryBlob) Close() error        { return nil }

// MemoryBlobStore is an in-memory BlobStore, used in tests and for seeding
// demo content.
type MemoryBlobStore struct {
	mu     sync.RWMutex
	videos map[VideoID]*memoryBlob
	thumbs map[VideoID]*memoryBlob
}

// NewMemoryBlobStore returns a new empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		videos: make(map[VideoID]*memoryBlob),
		thumbs: make(map[VideoID]*memoryBlob),
	}
}

// PutVideo stores video content under id.
func (s *MemoryBlobStore) PutVideo(id VideoID, contentType string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[id] = &memoryBlob{Reader: bytes.NewReader(content), contentType: contentType}
}

// PutThumbnail stores thumbnail content under id.
func (s *MemoryBlobStore) PutThumbnail(id VideoID, contentType string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumbs[id] = &memoryBlob{Reader: bytes.NewReader(content), contentType: contentType}
}

// OpenVideo implements BlobStore.OpenVideo.
func (s *MemoryBlobStore) OpenVideo(_ context.Context, id VideoID) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// OpenThumbnail implements BlobStore.OpenThumbnail.
func (s *MemoryBlobStore) OpenThumbnail(_ context.Context, id VideoID) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.thumbs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// FSBlobStore serves blobs from a directory tree:
// <root>/videos/<id>.mp4 and <root>/thumbnails/<id>.jpg.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore returns a filesystem-backed blob store rooted at root.
// The videos and thumbnails subdirectories are created if absent.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	for _, dir := range []string{"videos", "thumbnails"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create blob dir: %w", err)
		}
	}
	return &FSBlobStore{root: root}, nil
}

// fileBlob is a Blob backed by an open file.
type fileBlob struct {
	*os.File
	size        int64
	contentType string
}

func (b *fileBlob) Size() int64         { return b.size }
func (b *fileBlob) ContentType() string { return b.contentType }

func (s *FSBlobStore) open(path, contentType string) (Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat blob: %w", err)
	}
	return &fileBlob{File: f, size: info.Size(), contentType: contentType}, nil
}

// OpenVideo implements BlobStore.OpenVideo.
func (s *FSBlobStore) OpenVideo(_ context.Context, id VideoID) (Blob, error) {
	return s.open(filepath.Join(s.root, "videos", string(id)+".mp4"), "video/mp4")
}

// OpenThumbnail implements BlobStore.OpenThumbnail.
func (s *FSBlobStore) OpenThumbnail(_ context.Context, id VideoID) (Blob, error) {
	return s.open(filepath.Join(s.root, "thumbnails", string(id)+".jpg"), "image/jpeg")
}
