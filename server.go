// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"context"
	"net"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// InitHandler is invoked once per accepted connection, before any bytes are
// read, so the caller can load a schema and otherwise configure the
// connection's FramingEngine.
type InitHandler func(engine *FramingEngine)

// ServerReadHandler is invoked for every Request a connection's engine
// completes or times out.
type ServerReadHandler func(engine *FramingEngine, req *Request)

// TCPServer listens on a TCP port and binds one FramingEngine per accepted
// connection. It runs a bounded pool of worker goroutines servicing
// accepted connections (default runtime.GOMAXPROCS(0), minimum 4): a
// semaphore caps how many connection read-pumps run concurrently. When
// every slot is taken, the accept loop waits for one to free up before it
// accepts the next connection.
type TCPServer struct {
	name string
	addr string

	logger  zerolog.Logger
	metrics *Metrics

	maxWorkers int
	engineOpts []Option

	initHandler InitHandler
	readHandler ServerReadHandler

	mu       sync.Mutex
	listener net.Listener
	group    *errgroup.Group
	cancel   context.CancelFunc
	conns    map[uuid.UUID]*serverConn
	running  bool
}

type serverConn struct {
	stream *TCPStream
	engine *FramingEngine
}

// NewTCPServer constructs a server harness bound to addr (e.g. ":9000").
// metrics, if non-nil, is attached to every connection's FramingEngine and
// also tracks the active-connection gauge. engineOpts are applied to every
// connection's FramingEngine before its InitHandler runs, after the metrics
// option, so they may override it.
func NewTCPServer(name, addr string, logger zerolog.Logger, metrics *Metrics, engineOpts ...Option) *TCPServer {
	return &TCPServer{
		name:       name,
		addr:       addr,
		logger:     logger,
		metrics:    metrics,
		engineOpts: engineOpts,
		conns:      make(map[uuid.UUID]*serverConn),
	}
}

// SetInitHandler sets the per-connection initialization callback.
func (s *TCPServer) SetInitHandler(h InitHandler) {
	s.mu.Lock()
	s.initHandler = h
	s.mu.Unlock()
}

// SetReadHandler sets the per-connection, per-request callback.
func (s *TCPServer) SetReadHandler(h ServerReadHandler) {
	s.mu.Lock()
	s.readHandler = h
	s.mu.Unlock()
}

// Begin starts listening and accepting connections. It returns once the
// listener is bound; accepting and serving happen in the background until
// ctx is canceled or End is called.
func (s *TCPServer) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = ln
	s.running = true

	maxWorkers := runtime.GOMAXPROCS(0)
	if maxWorkers < 4 {
		maxWorkers = 4
	}
	s.maxWorkers = maxWorkers

	gctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	group, gctx := errgroup.WithContext(gctx)
	s.group = group
	s.mu.Unlock()

	sem := make(chan struct{}, maxWorkers)
	group.Go(func() error { return s.acceptLoop(gctx, sem) })
	return nil
}

func (s *TCPServer) acceptLoop(ctx context.Context, sem chan struct{}) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Str("server", s.name).Err(err).Msg("minbit: accept error")
			return err
		}
		s.logger.Info().Str("server", s.name).Str("remote", conn.RemoteAddr().String()).
			Msg("minbit: client connected")

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			_ = conn.Close()
			return nil
		}

		c := conn
		s.group.Go(func() error {
			defer func() { <-sem }()
			s.handleConn(ctx, c)
			return nil
		})
	}
}

func (s *TCPServer) handleConn(ctx context.Context, conn net.Conn) {
	stream := NewTCPStream(conn)
	opts := append([]Option{WithMetrics(s.metrics)}, s.engineOpts...)
	engine := NewFramingEngine(s.name, stream, nil, opts...)
	id := uuid.New()

	s.mu.Lock()
	initHandler := s.initHandler
	readHandler := s.readHandler
	s.conns[id] = &serverConn{stream: stream, engine: engine}
	s.mu.Unlock()
	s.metrics.connectionOpened()

	defer func() {
		_ = stream.Close()
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		s.metrics.connectionClosed()
	}()

	if initHandler != nil {
		initHandler(engine)
	}
	if readHandler != nil {
		engine.SetReadHandler(func(req *Request) { readHandler(engine, req) })
	}

	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := stream.Read(buf)
		if n > 0 {
			engine.Feed(buf[:n])
		}
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Info().Str("server", s.name).Str("conn", id.String()).Err(err).
					Msg("minbit: connection closed")
			}
			return
		}
	}
}

// IsConnected reports whether at least one connection's stream is open.
func (s *TCPServer) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if c.stream.IsOpen() {
			return true
		}
	}
	return false
}

// Protocols returns the FramingEngine for every currently tracked
// connection.
func (s *TCPServer) Protocols() []*FramingEngine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FramingEngine, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.engine)
	}
	return out
}

// End stops accepting new connections, closes every tracked stream, and
// waits for all worker goroutines to return.
func (s *TCPServer) End() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	listener := s.listener
	group := s.group
	conns := make([]*serverConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if listener != nil {
		_ = listener.Close()
	}
	for _, c := range conns {
		_ = c.stream.Close()
	}
	if group != nil {
		_ = group.Wait()
	}
	return nil
}
