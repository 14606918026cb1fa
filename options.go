// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"encoding/binary"
	"time"

	"github.com/rs/zerolog"
)

// WriteMode controls how FramingEngine.Write* calls reach the stream.
type WriteMode uint8

const (
	// Bulk batches written fields in the write buffer until SendAll is
	// called explicitly. Use this when assembling a multi-field packet
	// before releasing it; it is the only mode safe with concurrent
	// writers on the same engine, since SendAll is the sole atomic flush
	// point.
	Bulk WriteMode = iota

	// Immediate flushes every logical field as its own call to SendAll.
	// Retained for resource-poor peers that write one field at a time.
	// It can interleave with a concurrent writer on the same engine and
	// SHOULD NOT be used when more than one goroutine writes to an
	// engine.
	Immediate
)

// Options configures a FramingEngine.
type Options struct {
	ByteOrder binary.ByteOrder

	// WriteMode selects Bulk or Immediate flushing. Default Bulk.
	WriteMode WriteMode

	// RequestTimeout bounds how long an outgoing Request waits for a
	// response before checkForTimeouts marks it TimedOut.
	RequestTimeout time.Duration

	// WaitPollInterval is stored with the engine's options. Request.Wait
	// does not read it: Wait takes its poll interval as an argument and
	// uses 5ms when that argument is non-positive.
	WaitPollInterval time.Duration

	// Logger receives protocol-recoverable and I/O-failure log lines.
	// The zero value (zerolog.Nop()) discards everything.
	Logger zerolog.Logger

	// Metrics is optional; nil means no metrics are recorded.
	Metrics *Metrics
}

var defaultOptions = Options{
	ByteOrder:        binary.BigEndian,
	WriteMode:        Bulk,
	RequestTimeout:   1000 * time.Millisecond,
	WaitPollInterval: 5 * time.Millisecond,
	Logger:           zerolog.Nop(),
	Metrics:          nil,
}

// Option configures an Options value during FramingEngine construction.
type Option func(*Options)

// WithByteOrder sets the engine's endianness for all multi-byte primitives.
// Default is big-endian (network byte order). Mismatched endianness between
// peers is a silent corruption condition; the engine does not detect it.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *Options) { o.ByteOrder = order }
}

// WithWriteMode sets Bulk or Immediate write flushing.
func WithWriteMode(mode WriteMode) Option {
	return func(o *Options) { o.WriteMode = mode }
}

// WithRequestTimeout sets the per-request timeout checked by
// checkForTimeouts against the oldest outstanding outgoing request.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) { o.RequestTimeout = d }
}

// WithWaitPollInterval sets Options.WaitPollInterval. Request.Wait does not
// consult it; Wait's own interval argument governs its polling.
func WithWaitPollInterval(d time.Duration) Option {
	return func(o *Options) { o.WaitPollInterval = d }
}

// WithLogger attaches a structured logger. Unset, the engine logs nothing.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithMetrics attaches a Metrics recorder. Unset, no metrics are recorded.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}
