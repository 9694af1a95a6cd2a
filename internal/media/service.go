package media

import (
	"context"
	"io"
)

// StreamResponse describes how to answer one stream request: a reader over
// exactly the bytes to send, plus the header material. Partial is nil for a
// full-content response. Close releases the underlying blob.
type StreamResponse struct {
	Reader      io.Reader
	ContentType string
	TotalSize   int64
	Partial     *ByteRange

	blob Blob
}

// Length returns the number of bytes the response body will carry.
func (r *StreamResponse) Length() int64 {
	if r.Partial != nil {
		return r.Partial.Length()
	}
	return r.TotalSize
}

// Close releases the blob backing the response.
func (r *StreamResponse) Close() error {
	return r.blob.Close()
}

// Service resolves video ids against the blob and metadata stores and applies
// the byte-range contract. It is stateless; requests are independent.
type Service struct {
	blobs BlobStore
	meta  MetadataStore
}

// NewService returns a Service reading from the given stores.
func NewService(blobs BlobStore, meta MetadataStore) *Service {
	return &Service{blobs: blobs, meta: meta}
}

// Stream resolves id and the optional Range header value rangeSpec (empty
// string for none) into a StreamResponse. The caller must Close the response.
// Errors: ErrNotFound, ErrMalformedRange, ErrRangeNotSatisfiable.
func (s *Service) Stream(ctx context.Context, id VideoID, rangeSpec string) (*StreamResponse, error) {
	blob, err := s.blobs.OpenVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &StreamResponse{
		ContentType: blob.ContentType(),
		TotalSize:   blob.Size(),
		blob:        blob,
	}

	if rangeSpec == "" {
		resp.Reader = io.NewSectionReader(blob, 0, blob.Size())
		return resp, nil
	}

	rng, err := ParseRange(rangeSpec, blob.Size())
	if err != nil {
		blob.Close()
		return nil, err
	}
	resp.Partial = &rng
	resp.Reader = io.NewSectionReader(blob, rng.Start, rng.Length())
	return resp, nil
}

// VideoSize returns the total content length for id, used to build the
// Content-Range header on range-not-satisfiable responses.
func (s *Service) VideoSize(ctx context.Context, id VideoID) (int64, error) {
	blob, err := s.blobs.OpenVideo(ctx, id)
	if err != nil {
		return 0, err
	}
	defer blob.Close()
	return blob.Size(), nil
}

// Thumbnail resolves id to its thumbnail blob. The caller must Close it.
func (s *Service) Thumbnail(ctx context.Context, id VideoID) (Blob, error) {
	return s.blobs.OpenThumbnail(ctx, id)
}

// ListVideos returns all metadata records, newest first.
func (s *Service) ListVideos(ctx context.Context) ([]VideoMetadata, error) {
	return s.meta.List(ctx)
}

// RecordView bumps the view counter for id.
func (s *Service) RecordView(ctx context.Context, id VideoID) error {
	return s.meta.IncrementViews(ctx, id)
}
