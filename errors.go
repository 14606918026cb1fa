// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import "errors"

// Sentinel errors for the taxonomy in the protocol's error handling design:
// the engine never aborts the process on any of these, it logs, recovers by
// flushing/resyncing, and (for Timeout) still delivers the Request to the
// read handler.
//
// The engine itself returns ErrInvalidArgument, ErrStreamClosed,
// ErrBufferUnderflow and ErrWriteFailed, and LoadJSON returns
// ErrSchemaLoad. ErrUnknownHeader, ErrMissingSchemaLength and ErrTimeout
// name their conditions for callers but are never returned: the engine
// logs an unknown header or missing length, and reports a timeout through
// the Request's TimedOut status.
var (
	// ErrInvalidArgument reports a nil stream, schema, or other invalid
	// construction argument.
	ErrInvalidArgument = errors.New("minbit: invalid argument")

	// ErrStreamClosed reports that the underlying ByteStream is closed or
	// failed; further I/O on the owning engine has halted.
	ErrStreamClosed = errors.New("minbit: stream closed")

	// ErrUnknownHeader reports a header byte with no schema entry and no
	// outstanding outgoing request to pair it with. The read buffer is
	// flushed and parsing resumes at the next header boundary.
	ErrUnknownHeader = errors.New("minbit: unknown header, no outstanding outgoing request")

	// ErrMissingSchemaLength reports a characterized request whose header
	// resolved to no length entry in the schema. The current request is
	// discarded and the read buffer is flushed.
	ErrMissingSchemaLength = errors.New("minbit: no schema length for header")

	// ErrBufferUnderflow reports a handler reading more payload bytes than
	// were reserved for the current request. Treated as a programmer bug,
	// not a stream condition.
	ErrBufferUnderflow = errors.New("minbit: buffer underflow on read")

	// ErrWriteFailed reports a partial or failed write to the underlying
	// stream. The buffered data is considered lost.
	ErrWriteFailed = errors.New("minbit: write failed or partial")

	// ErrTimeout names the condition of a Request that exceeded the
	// engine's request timeout while waiting for a response.
	ErrTimeout = errors.New("minbit: request timed out")

	// ErrSchemaLoad reports a failure to parse or read a schema JSON file.
	// Existing schema tables are left untouched.
	ErrSchemaLoad = errors.New("minbit: failed to load schema")
)
