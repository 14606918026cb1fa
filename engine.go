// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package minbit implements the MinBiT framing protocol: a bidirectional,
// byte-oriented, length-aware request/response protocol that multiplexes
// typed messages over a single duplex byte stream. It maintains three
// concurrent queues against that stream (unsent, in-flight outgoing,
// current incoming), supports both fixed- and variable-length payloads,
// distinguishes an inbound header as either a new incoming request or a
// response to an outstanding outgoing request, and enforces a per-request
// timeout. See PacketSchema for the header->length tables and FramingEngine
// for the state machine.
//
// Wire format: a packet is either
//
//	fixed-length:    [header:u8] [payload: L bytes]
//	variable-length: [header:u8] [length:u8] [payload: length bytes]
//
// where L is resolved from a PacketSchema for the header (VariableLength
// means "read the length byte"). There is no magic byte, no delimiter, and
// no checksum; a schema mismatch forces a destructive read-buffer flush and
// resync at the next header boundary.
package minbit

import (
	"sync"
	"time"
)

// ReadHandler is invoked once per Request that reaches a terminal state
// (Complete or TimedOut), never twice for the same Request.
type ReadHandler func(*Request)

// FramingEngine is the core state machine described in the package
// documentation. One FramingEngine owns exactly one ByteStream and is
// normally used behind a TCPServer or TCPClient harness, though it can be
// driven directly (see FetchData and Feed).
//
// All mutable engine-wide state (read/write buffers, the three queues,
// reservedBytes) is guarded by mu. Each Request additionally guards its own
// mutable fields with a per-Request mutex, so a handler can inspect a
// Request without taking the engine's lock. The engine always releases mu
// before invoking the read handler.
type FramingEngine struct {
	name   string
	stream ByteStream
	schema *PacketSchema
	opts   Options

	mu               sync.Mutex
	readBuffer       []byte
	writeBuffer      []byte
	unsentRequests   []*Request
	outgoingRequests []*Request
	currentRequest   *Request
	reservedBytes    int

	readHandler ReadHandler
}

// NewFramingEngine constructs an engine bound to stream. schema may be nil,
// in which case an empty PacketSchema is used (every header is then
// "unknown" until SetSchema installs real tables — useful when a
// ServerHarness init handler loads the schema after construction).
func NewFramingEngine(name string, stream ByteStream, schema *PacketSchema, opts ...Option) *FramingEngine {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if schema == nil {
		schema = NewPacketSchema()
	}
	return &FramingEngine{
		name:   name,
		stream: stream,
		schema: schema,
		opts:   o,
	}
}

// SetSchema replaces the engine's PacketSchema. Safe to call at any time;
// takes effect on the next header the engine hunts for (an in-flight
// currentRequest already characterized against the old schema is
// unaffected).
func (e *FramingEngine) SetSchema(schema *PacketSchema) {
	if schema == nil {
		schema = NewPacketSchema()
	}
	e.mu.Lock()
	e.schema = schema
	e.mu.Unlock()
}

// SetReadHandler installs the callback invoked for every Request that
// reaches a terminal state.
func (e *FramingEngine) SetReadHandler(h ReadHandler) {
	e.mu.Lock()
	e.readHandler = h
	e.mu.Unlock()
}

// Stream returns the underlying ByteStream.
func (e *FramingEngine) Stream() ByteStream { return e.stream }

// Name returns the engine's diagnostic name, used in log lines.
func (e *FramingEngine) Name() string { return e.name }

// ReadBufferSize reports the current number of buffered, unparsed bytes.
func (e *FramingEngine) ReadBufferSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.readBuffer)
}

// WriteBufferSize reports the current number of bytes queued for the next
// SendAll.
func (e *FramingEngine) WriteBufferSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.writeBuffer)
}

// NumOutgoingRequests reports how many outgoing requests are in flight
// (flushed to the stream, awaiting a response).
func (e *FramingEngine) NumOutgoingRequests() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outgoingRequests)
}

// ReservedBytes reports how many bytes at the head of the read buffer
// belong to an already-characterized payload awaiting handler consumption.
func (e *FramingEngine) ReservedBytes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reservedBytes
}

// CurrentRequest returns the request currently being framed from inbound
// bytes, or nil.
func (e *FramingEngine) CurrentRequest() *Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentRequest
}

// Flush discards all buffered, unparsed read bytes. Used internally to
// resync after a schema mismatch or a timeout; exported for callers that
// want to force a resync (e.g. after reconfiguring the schema mid-stream).
func (e *FramingEngine) Flush() {
	e.mu.Lock()
	e.readBuffer = e.readBuffer[:0]
	e.reservedBytes = 0
	e.mu.Unlock()
}

// --- outbound path -----------------------------------------------------

// WriteRequest constructs a new Outgoing Request, enqueues it in
// unsentRequests, and writes its header byte into the write buffer. The
// caller attaches payload bytes with WriteBytes/WriteByte/... and releases
// the packet with SendAll.
func (e *FramingEngine) WriteRequest(header byte) *Request {
	req := newRequest(header, Outgoing)
	e.mu.Lock()
	e.unsentRequests = append(e.unsentRequests, req)
	e.writeBuffer = putU8(e.writeBuffer, header)
	mode := e.opts.WriteMode
	e.mu.Unlock()
	if mode == Immediate {
		_ = e.SendAll()
	}
	return req
}

// WriteBytes appends buf to the write buffer, flushing immediately if the
// engine's WriteMode is Immediate.
func (e *FramingEngine) WriteBytes(buf []byte) error {
	e.mu.Lock()
	e.writeBuffer = append(e.writeBuffer, buf...)
	mode := e.opts.WriteMode
	e.mu.Unlock()
	if mode == Immediate {
		return e.SendAll()
	}
	return nil
}

// WriteByte appends a single byte.
func (e *FramingEngine) WriteByte(v byte) error { return e.WriteBytes([]byte{v}) }

// WriteI16 appends a 16-bit integer using the engine's configured byte order.
func (e *FramingEngine) WriteI16(v int16) error {
	return e.WriteBytes(putI16(nil, v, e.opts.ByteOrder))
}

// WriteF32 appends a 32-bit float using the engine's configured byte order.
func (e *FramingEngine) WriteF32(v float32) error {
	return e.WriteBytes(putF32(nil, v, e.opts.ByteOrder))
}

// WriteU64 appends a 64-bit unsigned integer using the engine's configured
// byte order.
func (e *FramingEngine) WriteU64(v uint64) error {
	return e.WriteBytes(putU64(nil, v, e.opts.ByteOrder))
}

// WriteVec3 appends a 3-vector as three f32s: x, y, z.
func (e *FramingEngine) WriteVec3(v Vec3) error {
	return e.WriteBytes(putVec3(nil, v, e.opts.ByteOrder))
}

// WriteQuat appends a quaternion as four f32s in coefficient order x, y, z, w.
func (e *FramingEngine) WriteQuat(q Quat) error {
	return e.WriteBytes(putQuat(nil, q, e.opts.ByteOrder))
}

// SendAll drains unsentRequests into outgoingRequests (calling Start on
// each, recording sentTime) and then submits the entire write buffer to the
// stream in one write, clearing the buffer. Step 1 happens before step 2 is
// issued: a response cannot legitimately arrive before the byte that
// provoked it, so moving requests to outgoingRequests before the write
// completes is safe as long as nothing parses ahead of this call on the
// same stream (true for a single-writer engine).
func (e *FramingEngine) SendAll() error {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return ErrInvalidArgument
	}
	if !e.stream.IsOpen() {
		e.mu.Unlock()
		return ErrStreamClosed
	}

	for _, req := range e.unsentRequests {
		req.start()
		e.outgoingRequests = append(e.outgoingRequests, req)
	}
	e.unsentRequests = e.unsentRequests[:0]

	out := e.writeBuffer
	e.writeBuffer = nil
	e.mu.Unlock()

	if len(out) == 0 {
		return nil
	}

	n, err := e.stream.Write(out)
	if err != nil {
		e.opts.Logger.Error().Str("engine", e.name).Err(err).Msg("minbit: error writing bytes")
		return err
	}
	if n < len(out) {
		e.opts.Logger.Error().Str("engine", e.name).Int("wrote", n).Int("want", len(out)).
			Msg("minbit: partial write detected, data considered lost")
		return ErrWriteFailed
	}
	return nil
}

// --- inbound path --------------------------------------------------------

// ReadBytes consumes n bytes from the head of the read buffer, which must
// be within the current request's reserved (already-characterized) payload
// region. Each call decrements ReservedBytes by n. Asking for more bytes
// than are reserved is a programmer error, reported as ErrBufferUnderflow
// rather than silently short-reading.
func (e *FramingEngine) ReadBytes(n int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n < 0 || n > e.reservedBytes || n > len(e.readBuffer) {
		return nil, ErrBufferUnderflow
	}
	out := make([]byte, n)
	copy(out, e.readBuffer[:n])
	e.readBuffer = e.readBuffer[n:]
	e.reservedBytes -= n
	return out, nil
}

// ReadByte consumes and returns a single payload byte.
func (e *FramingEngine) ReadByte() (byte, error) {
	b, err := e.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadI16 consumes a 16-bit integer using the engine's configured byte order.
func (e *FramingEngine) ReadI16() (int16, error) {
	b, err := e.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return getI16(b, e.opts.ByteOrder), nil
}

// ReadF32 consumes a 32-bit float using the engine's configured byte order.
func (e *FramingEngine) ReadF32() (float32, error) {
	b, err := e.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return getF32(b, e.opts.ByteOrder), nil
}

// ReadU64 consumes a 64-bit unsigned integer using the engine's configured
// byte order.
func (e *FramingEngine) ReadU64() (uint64, error) {
	b, err := e.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return getU64(b, e.opts.ByteOrder), nil
}

// ReadVec3 consumes a 3-vector (three f32s: x, y, z).
func (e *FramingEngine) ReadVec3() (Vec3, error) {
	b, err := e.ReadBytes(12)
	if err != nil {
		return Vec3{}, err
	}
	return getVec3(b, e.opts.ByteOrder), nil
}

// ReadQuat consumes a quaternion (four f32s in coefficient order x, y, z,
// w), reconstructed in memory as Quat{W, X, Y, Z}.
func (e *FramingEngine) ReadQuat() (Quat, error) {
	b, err := e.ReadBytes(16)
	if err != nil {
		return Quat{}, err
	}
	return getQuat(b, e.opts.ByteOrder), nil
}

// --- packet characterization state machine --------------------------------

// resolveLength resolves the expected length for req: Outgoing requests
// check OutgoingByResponse first, falling back to OutgoingByRequest;
// Incoming requests check IncomingByRequest only.
// Callers must hold e.mu.
func (e *FramingEngine) resolveLength(req *Request) (int16, bool) {
	if req.IsOutgoing() {
		return e.schema.LookupOutgoing(req.Header(), req.ResponseHeader())
	}
	return e.schema.LookupIncoming(req.Header())
}

// discardCurrentLocked abandons the current request (if any), flushes the
// read buffer, and resumes header-hunting on the next call. Callers must
// hold e.mu.
func (e *FramingEngine) discardCurrentLocked() {
	if e.currentRequest != nil && e.currentRequest.IsOutgoing() && len(e.outgoingRequests) > 0 {
		e.outgoingRequests = e.outgoingRequests[1:]
	}
	e.currentRequest = nil
	e.readBuffer = e.readBuffer[:0]
	e.reservedBytes = 0
}

// characterizePacket implements the six-step algorithm: reserved-bytes
// guard, header hunt (with the documented incoming-wins tie-break),
// idempotent early exit, size resolution (fixed or u8-length-prefixed),
// waiting for the full packet, and commit (consuming header/length bytes,
// marking Complete, reserving the payload). It returns the completed
// Request and true exactly when a full packet has just been committed;
// otherwise (nil, false), meaning "need more data, or nothing to do".
//
// It never invokes the read handler; the caller (runReadCycle) does that
// after this call returns, with the engine's mutex released, per the
// concurrency contract.
func (e *FramingEngine) characterizePacket() (*Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// 1. Guard: a previously completed packet's payload hasn't been fully
	// consumed by its handler yet.
	if e.reservedBytes > 0 {
		return nil, false
	}

	// 2. Hunt for a header if there is no request in flight.
	if e.currentRequest == nil {
		if len(e.readBuffer) == 0 {
			return nil, false
		}
		h := e.readBuffer[0]

		switch {
		case e.schema.HasIncoming(h):
			// Ambiguous-header tie-break: a header known as an incoming
			// request type always wins over a pending outgoing response.
			e.currentRequest = newRequest(h, Incoming)
		case len(e.outgoingRequests) > 0:
			req := e.outgoingRequests[0]
			req.setResponseHeader(h)
			e.currentRequest = req
		default:
			e.opts.Logger.Warn().Str("engine", e.name).Uint8("header", h).
				Msg("minbit: no packet found for received header")
			e.opts.Metrics.headerDiscarded()
			e.discardCurrentLocked()
			return nil, false
		}

		length, ok := e.resolveLength(e.currentRequest)
		if !ok {
			if e.currentRequest.IsOutgoing() {
				e.opts.Logger.Warn().Str("engine", e.name).Uint8("header", e.currentRequest.Header()).
					Msg("minbit: no response length found for outgoing request header")
			} else {
				e.opts.Logger.Warn().Str("engine", e.name).Uint8("header", e.currentRequest.Header()).
					Msg("minbit: no packet length found for incoming request header")
			}
			e.opts.Metrics.headerDiscarded()
			e.discardCurrentLocked()
			return nil, false
		}
		e.currentRequest.setExpectedLength(length)
	}

	req := e.currentRequest

	// 3. Idempotent early exit.
	if req.Status() == Complete {
		return nil, false
	}

	// 4. Size resolution.
	if req.Status() != Characterized {
		expected := req.ExpectedLength()
		var payloadLength, totalLength int
		if expected >= 0 {
			payloadLength = int(expected)
			totalLength = 1 + payloadLength
		} else {
			if len(e.readBuffer) < 2 {
				return nil, false
			}
			payloadLength = int(e.readBuffer[1])
			totalLength = 2 + payloadLength
		}
		req.setSizing(payloadLength, totalLength)
		req.setStatus(Characterized)
	}

	// 5. Wait for the full packet.
	if len(e.readBuffer) < req.TotalPacketLength() {
		return nil, false
	}

	// 6. Commit: consume header (+ length byte if variable-length).
	consumed := 1
	if req.ExpectedLength() == VariableLength {
		consumed = 2
	}
	e.readBuffer = e.readBuffer[consumed:]
	req.setStatus(Complete)
	e.reservedBytes += req.PayloadLength()
	return req, true
}

// clearRequest nulls currentRequest and, if it was Outgoing, pops it from
// outgoingRequests.
func (e *FramingEngine) clearRequest() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentRequest == nil {
		return
	}
	if e.currentRequest.IsOutgoing() && len(e.outgoingRequests) > 0 && e.outgoingRequests[0] == e.currentRequest {
		e.outgoingRequests = e.outgoingRequests[1:]
	}
	e.currentRequest = nil
}

// dispatch invokes the read handler and records metrics, without holding
// e.mu (the engine must have already released its lock). Timed-out requests
// are counted by checkForTimeouts, not here.
func (e *FramingEngine) dispatch(req *Request) {
	if req.Status() == Complete {
		e.opts.Metrics.completed(req.Direction())
	}
	e.mu.Lock()
	h := e.readHandler
	e.mu.Unlock()
	if h != nil {
		h(req)
	}
}

// checkForTimeouts checks only the oldest outstanding outgoing request
// (packets are expected in order, so a blocked head implies the line is
// stuck, not that later requests have overtaken it). On timeout it marks
// the request TimedOut, removes it from outgoingRequests, flushes the
// entire read buffer (any partial bytes belonged to the timed-out exchange
// and cannot be reliably interpreted; this also drops unrelated incoming
// bytes buffered behind the dead response, a known hazard), and dispatches
// the timed-out Request to the read handler exactly like a normal
// completion.
func (e *FramingEngine) checkForTimeouts() {
	e.mu.Lock()
	if len(e.outgoingRequests) == 0 {
		e.mu.Unlock()
		return
	}
	req := e.outgoingRequests[0]
	timeout := e.opts.RequestTimeout
	e.mu.Unlock()

	if time.Since(req.SentTime()) <= timeout {
		return
	}

	req.setStatus(TimedOut)

	e.mu.Lock()
	if len(e.outgoingRequests) > 0 && e.outgoingRequests[0] == req {
		e.outgoingRequests = e.outgoingRequests[1:]
	}
	if e.currentRequest == req {
		e.currentRequest = nil
	}
	e.readBuffer = e.readBuffer[:0]
	e.reservedBytes = 0
	e.mu.Unlock()

	e.opts.Logger.Warn().Str("engine", e.name).Uint8("header", req.Header()).
		Dur("timeout", timeout).Msg("minbit: outgoing request timed out")
	e.opts.Metrics.timedOut()
	e.dispatch(req)
}

// runReadCycle drains every packet characterizePacket can complete from
// currently buffered bytes, dispatching each to the read handler in order,
// then runs one timeout check. Complete wins over TimedOut when both are
// resolvable from bytes already in the buffer within the same cycle,
// because this loop exhausts characterizePacket before checkForTimeouts
// ever runs.
func (e *FramingEngine) runReadCycle() {
	for {
		req, ok := e.characterizePacket()
		if !ok {
			break
		}
		e.dispatch(req)
		e.clearRequest()
	}
	e.checkForTimeouts()
}

// Feed appends externally-read bytes (e.g. from a ServerHarness read pump)
// to the read buffer and runs one full dispatch cycle. Safe to call from
// any goroutine; per-connection ordering is the caller's responsibility
// (the harnesses only ever feed one connection's engine from its own
// dedicated read pump, which is what keeps byte order intact).
func (e *FramingEngine) Feed(data []byte) {
	if len(data) == 0 {
		return
	}
	e.mu.Lock()
	e.readBuffer = append(e.readBuffer, data...)
	e.mu.Unlock()
	e.runReadCycle()
}

// FetchData drains whatever is currently available on the stream and
// dispatches characterization, per the ClientHarness polling contract. It
// performs exactly one Read call; callers (ClientHarness) invoke it on a
// short interval.
func (e *FramingEngine) FetchData() error {
	buf := make([]byte, 4096)
	n, err := e.stream.Read(buf)
	if n > 0 {
		e.Feed(buf[:n])
	}
	if err != nil {
		return err
	}
	return nil
}
