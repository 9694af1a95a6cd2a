package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// memberBuffer is the outbound queue depth per connection. A member whose
// buffer is full has the overflowing event dropped rather than blocking the
// room's loop.
const memberBuffer = 64

// Member is one connection's handle into the broker. Events broadcast to a
// room the member has joined arrive on its Events channel.
type Member struct {
	id  string
	out chan Event
}

// NewMember returns a fresh member handle.
func NewMember() *Member {
	return &Member{
		id:  ulid.Make().String(),
		out: make(chan Event, memberBuffer),
	}
}

// Events returns the channel of events broadcast to this member.
// It is closed by Close.
func (m *Member) Events() <-chan Event {
	return m.out
}

// Close closes the event channel. The member must have left every room
// first, otherwise a concurrent broadcast could hit the closed channel.
func (m *Member) Close() {
	close(m.out)
}

func (m *Member) deliver(ev Event) bool {
	select {
	case m.out <- ev:
		return true
	default:
		return false
	}
}

// command is a typed message placed on a room's mailbox.
type command interface{}

type joinCmd struct{ m *Member }

type leaveCmd struct {
	m    *Member
	done chan struct{}
}

type sendCmd struct {
	ctx   context.Context
	msg   Message
	reply chan error
}

// room is one video's chat room. Its queue is guarded by Broker.mu; all other
// room state lives inside the owning goroutine (single writer per room).
type room struct {
	videoID string
	queue   []command
	wake    chan struct{}
}

// Broker tracks which connections are interested in which video and fans
// recorded messages out to them. Each room is owned by one goroutine, so
// operations on the same room are serialized while distinct rooms proceed
// concurrently.
type Broker struct {
	store MessageStore
	log   *slog.Logger

	mu    sync.Mutex
	rooms map[string]*room
}

// NewBroker returns a Broker recording messages through store.
func NewBroker(store MessageStore, log *slog.Logger) *Broker {
	return &Broker{
		store: store,
		log:   log,
		rooms: make(map[string]*room),
	}
}

// dispatch enqueues c on the room for videoID, creating the room (and its
// owning goroutine) if absent.
func (b *Broker) dispatch(videoID string, c command) {
	b.mu.Lock()
	r, ok := b.rooms[videoID]
	if !ok {
		r = &room{videoID: videoID, wake: make(chan struct{}, 1)}
		b.rooms[videoID] = r
		go b.run(r)
	}
	r.queue = append(r.queue, c)
	select {
	case r.wake <- struct{}{}:
	default:
	}
	b.mu.Unlock()
}

// run is the room's owning goroutine. It exits, removing the room from the
// registry, once the room has no members and no queued commands, so empty
// rooms do not accumulate.
func (b *Broker) run(r *room) {
	members := make(map[*Member]struct{})
	for {
		b.mu.Lock()
		if len(r.queue) == 0 {
			if len(members) == 0 {
				delete(b.rooms, r.videoID)
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
			<-r.wake
			continue
		}
		batch := r.queue
		r.queue = nil
		b.mu.Unlock()

		for _, c := range batch {
			switch c := c.(type) {
			case joinCmd:
				members[c.m] = struct{}{}
			case leaveCmd:
				delete(members, c.m)
				close(c.done)
			case sendCmd:
				if err := b.store.Save(c.ctx, c.msg); err != nil {
					c.reply <- fmt.Errorf("record message: %w", err)
					continue
				}
				ev := newMessageEvent(c.msg)
				for m := range members {
					if !m.deliver(ev) {
						b.log.Warn("dropping event for slow chat member",
							slog.String("video_id", r.videoID),
							slog.String("member", m.id))
					}
				}
				c.reply <- nil
			}
		}
	}
}

// Join associates m with the room for videoID, creating the room if absent.
// Only messages sent after the join are delivered; rooms are not logs and no
// backlog is replayed.
func (b *Broker) Join(videoID string, m *Member) {
	b.dispatch(videoID, joinCmd{m: m})
}

// Leave removes m from the room for videoID. It returns once the membership
// change is applied, after which no further events for that room reach m.
func (b *Broker) Leave(videoID string, m *Member) {
	done := make(chan struct{})
	b.dispatch(videoID, leaveCmd{m: m, done: done})
	<-done
}

// Send records a message for videoID and, on success, broadcasts it to every
// current room member in record order. A message that fails to record is not
// broadcast and the failure is returned to the sender.
func (b *Broker) Send(ctx context.Context, videoID, userID, content string) (Message, error) {
	msg := Message{
		ID:        ulid.Make().String(),
		VideoID:   videoID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	reply := make(chan error, 1)
	b.dispatch(videoID, sendCmd{ctx: ctx, msg: msg, reply: reply})
	if err := <-reply; err != nil {
		return Message{}, err
	}
	return msg, nil
}

// RoomCount returns the number of live rooms. Used for metrics.
func (b *Broker) RoomCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms)
}
