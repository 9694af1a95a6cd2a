package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"vidcast/internal/platform/metrics"

	"github.com/oklog/ulid/v2"
)

// subscriberBuffer is the live headroom in a subscriber's channel beyond the
// fast-join preload. A subscriber that falls further behind has chunks
// dropped rather than blocking the session loop.
const subscriberBuffer = 64

// Subscriber is a viewer or relay attached to a live session. Its channel
// first carries the fast-join cache, then live chunks, and is closed when
// the subscriber detaches or the session ends.
type Subscriber struct {
	ch     chan Chunk
	once   sync.Once
	detach func(*Subscriber)
}

// Chunks returns the subscriber's chunk channel.
func (s *Subscriber) Chunks() <-chan Chunk {
	return s.ch
}

// Close detaches the subscriber from its session.
func (s *Subscriber) Close() {
	s.once.Do(func() { s.detach(s) })
}

// Session is one publisher's live-ingest session. The run loop is the single
// writer for its state, chunk cache, and subscriber set; the connection
// reader and attach/detach callers talk to it over channels only.
type Session struct {
	ID          string
	PublisherID string

	conn    net.Conn
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	onClose func(*Session)

	state   atomic.Int32
	frames  chan frame
	readErr chan error
	attach  chan *Subscriber
	detachq chan *Subscriber
	done    chan struct{}
}

func newSession(conn net.Conn, publisherID string, cfg Config, log *slog.Logger, m *metrics.Metrics, onClose func(*Session)) *Session {
	s := &Session{
		ID:          ulid.Make().String(),
		PublisherID: publisherID,
		conn:        conn,
		cfg:         cfg,
		log:         log,
		metrics:     m,
		onClose:     onClose,
		frames:      make(chan frame),
		readErr:     make(chan error, 1),
		attach:      make(chan *Subscriber),
		detachq:     make(chan *Subscriber),
		done:        make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// subscribe attaches a new subscriber, failing if the session has closed.
func (s *Session) subscribe() (*Subscriber, error) {
	sub := &Subscriber{ch: make(chan Chunk, s.cfg.CacheCapacity+subscriberBuffer)}
	sub.detach = func(sub *Subscriber) {
		select {
		case s.detachq <- sub:
		case <-s.done:
		}
	}
	select {
	case s.attach <- sub:
		return sub, nil
	case <-s.done:
		return nil, ErrNotFound
	}
}

// readFrames feeds inbound frames to the run loop. It exits on read error or
// session teardown.
func (s *Session) readFrames() {
	for {
		f, err := readFrame(s.conn, s.cfg.MaxChunkSize+1)
		if err != nil {
			select {
			case s.readErr <- err:
			case <-s.done:
			}
			return
		}
		select {
		case s.frames <- f:
		case <-s.done:
			return
		}
	}
}

// run owns the session until it closes. Liveness: a ping is written every
// PingInterval and the session goes Idle; any inbound frame returns it to
// Publishing; no inbound activity for PingTimeout closes the session.
func (s *Session) run() {
	go s.readFrames()

	var cache *ChunkCache
	if s.cfg.FastJoinCache {
		cache = NewChunkCache(s.cfg.CacheCapacity)
	}
	subs := make(map[*Subscriber]struct{})
	var seq uint64

	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()
	idleTimer := time.NewTimer(s.cfg.PingTimeout)
	defer idleTimer.Stop()

	defer func() {
		s.setState(StateClosed)
		close(s.done)
		s.conn.Close()
		for sub := range subs {
			close(sub.ch)
		}
		s.onClose(s)
	}()

	for {
		select {
		case f := <-s.frames:
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(s.cfg.PingTimeout)
			if s.State() == StateIdle {
				s.setState(StatePublishing)
			}

			switch f.typ {
			case frameChunk:
				if len(f.payload) == 0 {
					s.protocolError("empty chunk frame")
					return
				}
				seq++
				ch := Chunk{
					Sequence:   seq,
					Keyframe:   f.payload[0]&chunkFlagKeyframe != 0,
					Data:       f.payload[1:],
					ReceivedAt: time.Now().UTC(),
				}
				if cache != nil {
					cache.Add(ch)
				}
				for sub := range subs {
					select {
					case sub.ch <- ch:
					default:
						// Slow viewer; drop the chunk, never the loop.
					}
				}
				if s.metrics != nil {
					s.metrics.IncIngestChunks()
				}

			case framePong:
				// Liveness acknowledged; the timer reset above covers it.

			case framePing:
				if err := writeFrame(s.conn, framePong, nil); err != nil {
					return
				}

			case frameClose:
				s.log.Info("publisher closed session",
					slog.String("publisher_id", s.PublisherID),
					slog.String("session_id", s.ID))
				return

			default:
				s.protocolError(fmt.Sprintf("unexpected frame 0x%02x", f.typ))
				return
			}

		case err := <-s.readErr:
			if errors.Is(err, ErrProtocolViolation) {
				s.protocolError(err.Error())
			} else {
				s.log.Info("publisher disconnected",
					slog.String("publisher_id", s.PublisherID),
					slog.String("session_id", s.ID),
					slog.String("error", err.Error()))
			}
			return

		case <-pingTicker.C:
			if err := writeFrame(s.conn, framePing, nil); err != nil {
				return
			}
			s.setState(StateIdle)

		case <-idleTimer.C:
			s.log.Warn("session timed out",
				slog.String("publisher_id", s.PublisherID),
				slog.String("session_id", s.ID))
			writeFrame(s.conn, frameError, []byte("session timeout"))
			return

		case sub := <-s.attach:
			if cache != nil {
				// The channel is sized to hold the whole cache.
				for _, ch := range cache.Snapshot() {
					sub.ch <- ch
				}
			}
			subs[sub] = struct{}{}

		case sub := <-s.detachq:
			if _, ok := subs[sub]; ok {
				delete(subs, sub)
				close(sub.ch)
			}
		}
	}
}

func (s *Session) protocolError(msg string) {
	s.log.Warn("ingest protocol violation",
		slog.String("publisher_id", s.PublisherID),
		slog.String("session_id", s.ID),
		slog.String("error", msg))
	writeFrame(s.conn, frameError, []byte(msg))
}
