// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketSchema_LookupIncoming(t *testing.T) {
	s := NewPacketSchema()
	s.SetIncomingByRequest(0x10, 12)

	length, ok := s.LookupIncoming(0x10)
	require.True(t, ok)
	require.Equal(t, int16(12), length)

	_, ok = s.LookupIncoming(0x11)
	require.False(t, ok)
}

func TestPacketSchema_LookupOutgoing_ResponsePriorityOverRequest(t *testing.T) {
	s := NewPacketSchema()
	s.SetOutgoingByRequest(0x20, 4)
	s.SetOutgoingByResponse(ACK, 0)

	length, ok := s.LookupOutgoing(0x20, ACK)
	require.True(t, ok)
	require.Equal(t, int16(0), length)

	length, ok = s.LookupOutgoing(0x20, 0x99)
	require.True(t, ok)
	require.Equal(t, int16(4), length)
}

func TestPacketSchema_LookupOutgoing_NoEntry(t *testing.T) {
	s := NewPacketSchema()
	_, ok := s.LookupOutgoing(0x30, 0x00)
	require.False(t, ok)
}

func TestPacketSchema_HasIncoming(t *testing.T) {
	s := NewPacketSchema()
	require.False(t, s.HasIncoming(0x40))
	s.SetIncomingByRequest(0x40, VariableLength)
	require.True(t, s.HasIncoming(0x40))
}

func TestPacketSchema_LoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	doc := `{
		"outgoingByRequest": [{"header": 16, "length": 4}],
		"outgoingByResponse": [{"header": 1, "length": 0}],
		"incomingByRequest": [{"header": 32, "length": -1}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s := NewPacketSchema()
	require.NoError(t, s.LoadJSON(path))

	length, ok := s.LookupOutgoing(16, 0x00)
	require.True(t, ok)
	require.Equal(t, int16(4), length)

	require.True(t, s.HasIncoming(32))
	length, ok = s.LookupIncoming(32)
	require.True(t, ok)
	require.Equal(t, VariableLength, length)
}

func TestPacketSchema_LoadJSON_FailureLeavesTablesUntouched(t *testing.T) {
	s := NewPacketSchema()
	s.SetIncomingByRequest(0x10, 8)

	err := s.LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSchemaLoad)

	length, ok := s.LookupIncoming(0x10)
	require.True(t, ok)
	require.Equal(t, int16(8), length)
}

func TestPacketSchema_LoadJSON_InvalidJSONLeavesTablesUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewPacketSchema()
	s.SetIncomingByRequest(0x10, 8)

	err := s.LoadJSON(path)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSchemaLoad)

	length, ok := s.LookupIncoming(0x10)
	require.True(t, ok)
	require.Equal(t, int16(8), length)
}
