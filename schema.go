// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"encoding/json"
	"os"
	"sync"
)

// NoLength is a Request's expected length before its header has been
// resolved against a schema. It has the same value as VariableLength; a
// missing schema entry is reported by the Lookup methods' false result.
const NoLength int16 = -1

// VariableLength is the sentinel schema value meaning "the byte immediately
// following the header is a u8 payload length".
const VariableLength int16 = -1

// Standardized response headers.
const (
	ACK  byte = 0x01
	NACK byte = 0x02
)

// PacketSchema is the static mapping from header byte to payload length
// that lets FramingEngine characterize packets without first seeing their
// payload. It holds three independent tables:
//
//   - OutgoingByRequest: expected response length when we sent header h.
//   - OutgoingByResponse: override keyed on the peer's response header,
//     consulted before OutgoingByRequest.
//   - IncomingByRequest: expected payload length when the peer initiates
//     with header h.
//
// A length of VariableLength (-1) means a u8 length byte follows the
// header; any value >= 0 is a literal payload length. PacketSchema is safe
// for concurrent use: every engine may share one schema instance, or each
// connection may own its own (see SchemaWatcher for the hot-reload case).
type PacketSchema struct {
	mu                 sync.RWMutex
	outgoingByRequest  map[byte]int16
	outgoingByResponse map[byte]int16
	incomingByRequest  map[byte]int16
}

// NewPacketSchema returns an empty schema. Use the Set* methods or LoadJSON
// to populate it before attaching it to a FramingEngine.
func NewPacketSchema() *PacketSchema {
	return &PacketSchema{
		outgoingByRequest:  make(map[byte]int16),
		outgoingByResponse: make(map[byte]int16),
		incomingByRequest:  make(map[byte]int16),
	}
}

// SetOutgoingByRequest registers the expected response length for header h
// when we initiate with it.
func (s *PacketSchema) SetOutgoingByRequest(h byte, length int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outgoingByRequest[h] = length
}

// SetOutgoingByResponse registers the expected response length keyed on the
// peer's response header, taking priority over SetOutgoingByRequest.
func (s *PacketSchema) SetOutgoingByResponse(h byte, length int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outgoingByResponse[h] = length
}

// SetIncomingByRequest registers the expected payload length for a
// peer-initiated header h.
func (s *PacketSchema) SetIncomingByRequest(h byte, length int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomingByRequest[h] = length
}

// LookupIncoming reports the expected payload length for a peer-initiated
// header.
func (s *PacketSchema) LookupIncoming(h byte) (int16, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	length, ok := s.incomingByRequest[h]
	return length, ok
}

// LookupOutgoing resolves the expected length for an outgoing Request:
// OutgoingByResponse[responseHeader] takes priority, falling back to
// OutgoingByRequest[header]. Returns false if neither table has an entry.
func (s *PacketSchema) LookupOutgoing(header, responseHeader byte) (int16, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if length, ok := s.outgoingByResponse[responseHeader]; ok {
		return length, true
	}
	length, ok := s.outgoingByRequest[header]
	return length, ok
}

// HasIncoming reports whether h has an entry in IncomingByRequest, used by
// characterizePacket's header hunt to decide incoming-vs-response framing.
func (s *PacketSchema) HasIncoming(h byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.incomingByRequest[h]
	return ok
}

// schemaEntry mirrors one row of the schema JSON file format.
type schemaEntry struct {
	Header byte  `json:"header"`
	Length int16 `json:"length"`
}

// schemaDocument mirrors the on-disk JSON schema file shape.
type schemaDocument struct {
	OutgoingByRequest  []schemaEntry `json:"outgoingByRequest"`
	OutgoingByResponse []schemaEntry `json:"outgoingByResponse"`
	IncomingByRequest  []schemaEntry `json:"incomingByRequest"`
}

// LoadJSON populates the schema from a JSON file of the documented shape.
// On any parse or read failure it returns a wrapped ErrSchemaLoad and
// leaves the existing tables completely untouched.
func (s *PacketSchema) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return joinSchemaErr(err)
	}
	var doc schemaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return joinSchemaErr(err)
	}

	outReq := make(map[byte]int16, len(doc.OutgoingByRequest))
	for _, e := range doc.OutgoingByRequest {
		outReq[e.Header] = e.Length
	}
	outResp := make(map[byte]int16, len(doc.OutgoingByResponse))
	for _, e := range doc.OutgoingByResponse {
		outResp[e.Header] = e.Length
	}
	inReq := make(map[byte]int16, len(doc.IncomingByRequest))
	for _, e := range doc.IncomingByRequest {
		inReq[e.Header] = e.Length
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.outgoingByRequest = outReq
	s.outgoingByResponse = outResp
	s.incomingByRequest = inReq
	return nil
}

func joinSchemaErr(cause error) error {
	return &schemaLoadError{cause: cause}
}

type schemaLoadError struct{ cause error }

func (e *schemaLoadError) Error() string { return ErrSchemaLoad.Error() + ": " + e.cause.Error() }
func (e *schemaLoadError) Unwrap() error { return ErrSchemaLoad }
func (e *schemaLoadError) Cause() error  { return e.cause }
