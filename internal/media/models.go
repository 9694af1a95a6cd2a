package media

import "time"

// VideoID uniquely identifies a stored video.
type VideoID string

// ByteRange is an inclusive byte interval within a blob's content.
// A ByteRange produced by ParseRange is always satisfiable against the
// size it was parsed for: 0 <= Start <= End < size.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// VideoMetadata describes a stored video for listing purposes.
// Persistence and querying of these records belongs to the metadata store;
// the core only reads them and bumps view counters.
type VideoMetadata struct {
	ID          VideoID   `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      string    `json:"userId"`
	ChannelName string    `json:"channelName"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
	IsLive      bool      `json:"isLive"`
	Duration    float64   `json:"duration"`
	CreatedAt   time.Time `json:"createdAt"`
}
