// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import "github.com/rs/zerolog"

// testLogger returns a discarding logger so test output stays quiet; swap
// for zerolog.New(os.Stdout) locally when debugging a failing case.
func testLogger() zerolog.Logger { return zerolog.Nop() }
