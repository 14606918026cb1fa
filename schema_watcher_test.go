// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchemaWatcher_InitialLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"incomingByRequest": [{"header": 1, "length": 0}]
	}`), 0o644))

	schema := NewPacketSchema()
	w, err := NewSchemaWatcher(schema, path, testLogger(), nil)
	require.NoError(t, err)
	defer w.Close()

	require.True(t, schema.HasIncoming(0x01))
}

func TestSchemaWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"incomingByRequest": [{"header": 1, "length": 0}]
	}`), 0o644))

	schema := NewPacketSchema()
	w, err := NewSchemaWatcher(schema, path, testLogger(), nil)
	require.NoError(t, err)
	defer w.Close()

	require.True(t, schema.HasIncoming(0x01))
	require.False(t, schema.HasIncoming(0x02))

	require.NoError(t, os.WriteFile(path, []byte(`{
		"incomingByRequest": [{"header": 2, "length": 4}]
	}`), 0o644))

	waitFor(t, 2*time.Second, func() bool { return schema.HasIncoming(0x02) })
	require.False(t, schema.HasIncoming(0x01))
}

func TestSchemaWatcher_ConstructionSurvivesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.json")

	schema := NewPacketSchema()
	w, err := NewSchemaWatcher(schema, path, testLogger(), nil)
	require.NoError(t, err)
	defer w.Close()
}
