// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// SchemaWatcher hot-reloads a PacketSchema from its backing JSON file
// whenever the file changes on disk. It is entirely optional: a
// PacketSchema never needs one, and LoadJSON's own failure contract
// (existing tables untouched) is unchanged whether or not a watcher is
// attached.
type SchemaWatcher struct {
	schema  *PacketSchema
	path    string
	logger  zerolog.Logger
	metrics *Metrics
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSchemaWatcher loads path into schema once, then starts watching its
// containing directory (watching the directory rather than the file
// directly survives editors that replace the file via rename-on-save).
// The caller must call Close to stop the background goroutine.
func NewSchemaWatcher(schema *PacketSchema, path string, logger zerolog.Logger, metrics *Metrics) (*SchemaWatcher, error) {
	if schema == nil {
		return nil, ErrInvalidArgument
	}
	if err := schema.LoadJSON(path); err != nil {
		metrics.schemaLoadError()
		logger.Warn().Err(err).Str("path", path).Msg("minbit: initial schema load failed")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	sw := &SchemaWatcher{
		schema:  schema,
		path:    filepath.Clean(path),
		logger:  logger,
		metrics: metrics,
		watcher: w,
		done:    make(chan struct{}),
	}
	go sw.run()
	return sw, nil
}

func (sw *SchemaWatcher) run() {
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != sw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := sw.schema.LoadJSON(sw.path); err != nil {
				sw.metrics.schemaLoadError()
				sw.logger.Warn().Err(err).Str("path", sw.path).Msg("minbit: schema reload failed, keeping previous tables")
				continue
			}
			sw.logger.Info().Str("path", sw.path).Msg("minbit: schema reloaded")
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warn().Err(err).Msg("minbit: schema watcher error")
		case <-sw.done:
			return
		}
	}
}

// Close stops the watcher goroutine and releases its file descriptor.
func (sw *SchemaWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}
