package ingest

// ChunkCache is the bounded fast-join cache of recent media chunks. A newly
// attaching viewer is served its contents before live chunks so playback can
// start without waiting for the next keyframe. The cache restarts at each
// keyframe, so its contents always begin at a decodable point.
//
// The cache is owned by a single session loop and needs no locking.
type ChunkCache struct {
	capacity int
	chunks   []Chunk
}

// NewChunkCache returns an empty cache holding at most capacity chunks.
func NewChunkCache(capacity int) *ChunkCache {
	return &ChunkCache{
		capacity: capacity,
		chunks:   make([]Chunk, 0, capacity),
	}
}

// Add appends ch, restarting the cache when ch is a keyframe and evicting
// the oldest chunk once capacity is exceeded.
func (c *ChunkCache) Add(ch Chunk) {
	if ch.Keyframe {
		c.chunks = c.chunks[:0]
	}
	if len(c.chunks) == c.capacity {
		copy(c.chunks, c.chunks[1:])
		c.chunks = c.chunks[:c.capacity-1]
	}
	c.chunks = append(c.chunks, ch)
}

// Snapshot returns a copy of the cached chunks, oldest first.
func (c *ChunkCache) Snapshot() []Chunk {
	out := make([]Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// Len returns the number of cached chunks.
func (c *ChunkCache) Len() int {
	return len(c.chunks)
}
