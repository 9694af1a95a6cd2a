package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"vidcast/internal/platform/metrics"
)

// Defaults mirror common RTMP ingest settings.
const (
	DefaultAddr          = ":1935"
	DefaultMaxChunkSize  = 60000
	DefaultCacheCapacity = 128
	DefaultPingInterval  = 30 * time.Second
	DefaultPingTimeout   = 60 * time.Second
)

// maxHandshakeSize bounds the first frame of a connection, before any
// session exists.
const maxHandshakeSize = 512

// Config holds the ingest gateway knobs.
type Config struct {
	Addr          string
	MaxChunkSize  int
	FastJoinCache bool
	CacheCapacity int
	PingInterval  time.Duration
	PingTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = DefaultMaxChunkSize
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = DefaultPingTimeout
	}
	return c
}

// Gateway accepts publisher connections over TCP, maintains their sessions,
// and exposes live streams for viewer attachment.
type Gateway struct {
	cfg      Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	registry *Registry

	mu     sync.Mutex
	lis    net.Listener
	closed bool
	wg     sync.WaitGroup
}

// NewGateway returns a Gateway with the given config. Metrics may be nil.
func NewGateway(cfg Config, log *slog.Logger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		cfg:      cfg.withDefaults(),
		log:      log,
		metrics:  m,
		registry: NewRegistry(),
	}
}

// ListenAndServe listens on the configured address and serves publishers
// until Shutdown.
func (g *Gateway) ListenAndServe() error {
	lis, err := net.Listen("tcp", g.cfg.Addr)
	if err != nil {
		return fmt.Errorf("ingest listen on %s: %w", g.cfg.Addr, err)
	}
	return g.Serve(lis)
}

// Serve accepts publisher connections on lis until Shutdown or a fatal
// accept error.
func (g *Gateway) Serve(lis net.Listener) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		lis.Close()
		return nil
	}
	g.lis = lis
	g.mu.Unlock()

	g.log.Info("ingest gateway listening", slog.String("addr", lis.Addr().String()))

	for {
		conn, err := lis.Accept()
		if err != nil {
			g.mu.Lock()
			closed := g.closed
			g.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("ingest accept: %w", err)
		}
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.handleConn(conn)
		}()
	}
}

// handleConn performs the handshake and, on success, runs the publisher's
// session until it closes. A malformed handshake is rejected before any
// session is created.
func (g *Gateway) handleConn(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(g.cfg.PingTimeout))
	f, err := readFrame(conn, maxHandshakeSize)
	if err != nil {
		g.log.Warn("ingest handshake read failed",
			slog.String("remote", conn.RemoteAddr().String()),
			slog.String("error", err.Error()))
		writeFrame(conn, frameError, []byte("malformed handshake"))
		conn.Close()
		return
	}
	publisherID, err := parseHandshake(f)
	if err != nil {
		g.log.Warn("ingest handshake rejected",
			slog.String("remote", conn.RemoteAddr().String()),
			slog.String("error", err.Error()))
		writeFrame(conn, frameError, []byte("malformed handshake"))
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	s := newSession(conn, publisherID, g.cfg, g.log, g.metrics, func(s *Session) {
		g.registry.Remove(s)
		g.log.Info("session closed",
			slog.String("publisher_id", s.PublisherID),
			slog.String("session_id", s.ID))
	})
	if err := g.registry.Put(s); err != nil {
		g.log.Warn("duplicate publisher rejected", slog.String("publisher_id", publisherID))
		writeFrame(conn, frameError, []byte("publisher already live"))
		conn.Close()
		return
	}
	if err := writeFrame(conn, frameHandshakeAck, nil); err != nil {
		g.registry.Remove(s)
		// Unblock any Attach that found the session before eviction.
		s.setState(StateClosed)
		close(s.done)
		conn.Close()
		return
	}
	s.setState(StatePublishing)

	g.log.Info("publisher connected",
		slog.String("publisher_id", publisherID),
		slog.String("session_id", s.ID),
		slog.String("remote", conn.RemoteAddr().String()))

	s.run()
}

// Attach subscribes a viewer or relay to publisherID's live stream. The
// subscriber is first served the fast-join cache, then live chunks.
// ErrNotFound if the publisher has no live session.
func (g *Gateway) Attach(publisherID string) (*Subscriber, error) {
	s, ok := g.registry.Get(publisherID)
	if !ok {
		return nil, ErrNotFound
	}
	return s.subscribe()
}

// ActiveSessionCount returns the number of live sessions. Used for metrics.
func (g *Gateway) ActiveSessionCount() int {
	return g.registry.Count()
}

// Shutdown stops accepting connections and tears down all live sessions,
// waiting for them up to ctx's deadline.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	lis := g.lis
	g.mu.Unlock()

	if lis != nil {
		lis.Close()
	}
	for _, s := range g.registry.Sessions() {
		// Closing the conn unblocks the session's reader; the run loop
		// tears the session down and evicts it.
		s.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
