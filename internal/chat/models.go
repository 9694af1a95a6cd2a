package chat

import "time"

// Message is one chat message scoped to a video's room. Immutable after
// creation; recorded durably before any member sees it.
type Message struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// Event is a server-to-client push frame on the chat connection.
type Event struct {
	Type      string    `json:"type"`
	VideoID   string    `json:"videoId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// Event types pushed to clients.
const (
	EventNewMessage = "newMessage"
	EventError      = "error"
)

// newMessageEvent converts a recorded message into its push frame.
func newMessageEvent(msg Message) Event {
	return Event{
		Type:      EventNewMessage,
		VideoID:   msg.VideoID,
		UserID:    msg.UserID,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	}
}
