// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"io"
	"net"
	"sync/atomic"
)

// ByteStream is the capability a FramingEngine needs from its transport: an
// in-order, duplex byte channel. No assumption of atomicity beyond "bytes
// delivered in order" is made. Any value satisfying this interface plugs
// into a FramingEngine — a TCP socket, a Unix socket, an in-memory pipe.
type ByteStream interface {
	io.Reader
	io.Writer

	// IsOpen reports whether the stream can still be read from or written
	// to.
	IsOpen() bool

	// Close closes the stream. Idempotent.
	Close() error
}

// TCPStream adapts a net.Conn to ByteStream.
type TCPStream struct {
	conn   net.Conn
	closed int32
}

// NewTCPStream wraps an already-connected net.Conn.
func NewTCPStream(conn net.Conn) *TCPStream {
	return &TCPStream{conn: conn}
}

func (s *TCPStream) Read(p []byte) (int, error) {
	if !s.IsOpen() {
		return 0, ErrStreamClosed
	}
	return s.conn.Read(p)
}

func (s *TCPStream) Write(p []byte) (int, error) {
	if !s.IsOpen() {
		return 0, ErrStreamClosed
	}
	return s.conn.Write(p)
}

// IsOpen reports whether Close has been called yet. It does not probe the
// socket; a peer-initiated close is discovered by the next Read/Write
// error.
func (s *TCPStream) IsOpen() bool {
	return atomic.LoadInt32(&s.closed) == 0
}

// Close closes the underlying connection. Safe to call more than once.
func (s *TCPStream) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	return s.conn.Close()
}

// RemoteAddr returns the peer address, or nil if unavailable.
func (s *TCPStream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// LoopbackStream is an in-memory, io.Pipe-backed duplex ByteStream, used by
// tests and by anything that wants two FramingEngines talking to each other
// without a real socket. Modeled directly on the capability-based stream
// design note: a second concrete ByteStream provider alongside TCPStream.
type LoopbackStream struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	closed int32
}

// NewLoopbackPair returns two LoopbackStreams wired so that writes to one
// arrive as reads on the other.
func NewLoopbackPair() (a, b *LoopbackStream) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a = &LoopbackStream{r: ar, w: aw}
	b = &LoopbackStream{r: br, w: bw}
	return a, b
}

func (s *LoopbackStream) Read(p []byte) (int, error) {
	if !s.IsOpen() {
		return 0, ErrStreamClosed
	}
	return s.r.Read(p)
}

func (s *LoopbackStream) Write(p []byte) (int, error) {
	if !s.IsOpen() {
		return 0, ErrStreamClosed
	}
	return s.w.Write(p)
}

func (s *LoopbackStream) IsOpen() bool {
	return atomic.LoadInt32(&s.closed) == 0
}

func (s *LoopbackStream) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	_ = s.r.Close()
	return s.w.Close()
}
