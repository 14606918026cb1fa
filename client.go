// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ClientReadHandler is invoked for every Request the client's engine
// completes or times out.
type ClientReadHandler func(req *Request)

// TCPClient connects to a host:port and runs one dedicated read-pump
// goroutine that repeatedly calls FetchData on a short interval. A client
// has exactly one connection to service, so it needs no worker pool.
type TCPClient struct {
	name string

	logger     zerolog.Logger
	metrics    *Metrics
	engineOpts []Option
	pollEvery  time.Duration

	readHandler ClientReadHandler

	mu     sync.Mutex
	stream *TCPStream
	engine *FramingEngine
	cancel context.CancelFunc
	done   chan struct{}
	open   bool
}

// NewTCPClient constructs a client harness. metrics, if non-nil, is
// attached to the connection's FramingEngine and also tracks the
// active-connection gauge. pollEvery is the interval between FetchData
// calls; zero or negative selects the 5ms default.
func NewTCPClient(name string, logger zerolog.Logger, metrics *Metrics, pollEvery time.Duration, engineOpts ...Option) *TCPClient {
	if pollEvery <= 0 {
		pollEvery = 5 * time.Millisecond
	}
	return &TCPClient{
		name:       name,
		logger:     logger,
		metrics:    metrics,
		engineOpts: engineOpts,
		pollEvery:  pollEvery,
	}
}

// SetReadHandler installs the callback invoked for every completed or
// timed-out Request.
func (c *TCPClient) SetReadHandler(h ClientReadHandler) {
	c.mu.Lock()
	c.readHandler = h
	c.mu.Unlock()
}

// Begin dials addr and starts the polling read-pump goroutine.
func (c *TCPClient) Begin(ctx context.Context, addr string) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	stream := NewTCPStream(conn)
	opts := append([]Option{WithMetrics(c.metrics)}, c.engineOpts...)
	engine := NewFramingEngine(c.name, stream, nil, opts...)

	c.mu.Lock()
	if c.readHandler != nil {
		engine.SetReadHandler(func(req *Request) { c.readHandler(req) })
	}
	c.stream = stream
	c.engine = engine
	c.open = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.metrics.connectionOpened()
	c.logger.Info().Str("client", c.name).Str("remote", addr).Msg("minbit: connected")

	go c.pump(runCtx)
	return nil
}

func (c *TCPClient) pump(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.engine.FetchData(); err != nil {
				c.logger.Info().Str("client", c.name).Err(err).Msg("minbit: read pump stopping")
				c.mu.Lock()
				c.open = false
				c.mu.Unlock()
				return
			}
		}
	}
}

// IsOpen reports whether the underlying stream is still open.
func (c *TCPClient) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && c.stream != nil && c.stream.IsOpen()
}

// Protocol returns the client's single FramingEngine, or nil before Begin.
func (c *TCPClient) Protocol() *FramingEngine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// End stops the read pump and closes the connection.
func (c *TCPClient) End() error {
	c.mu.Lock()
	cancel := c.cancel
	stream := c.stream
	done := c.done
	c.open = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if stream != nil {
		err = stream.Close()
	}
	if done != nil {
		<-done
	}
	c.metrics.connectionClosed()
	return err
}
