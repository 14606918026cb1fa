// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import (
	"encoding/binary"
	"math"
)

// Vec3 is a 3-component single-precision vector, serialized as three f32s
// in order x, y, z.
type Vec3 struct {
	X, Y, Z float32
}

// Quat is a unit quaternion. On the wire it is always four f32s in
// coefficient order x, y, z, w; in memory it is stored w, x, y, z so that
// callers read it the way a rotation is usually reasoned about. The
// coefficient-order serialization must stay stable across peers: encoding
// writes x, y, z, w and decoding reconstructs Quat{W: w, X: x, Y: y, Z: z}.
type Quat struct {
	W, X, Y, Z float32
}

// putU8 appends a single byte.
func putU8(buf []byte, v byte) []byte { return append(buf, v) }

// putI16 appends a 16-bit integer in the given byte order.
func putI16(buf []byte, v int16, order binary.ByteOrder) []byte {
	var tmp [2]byte
	order.PutUint16(tmp[:], uint16(v))
	return append(buf, tmp[:]...)
}

// putF32 appends a 32-bit float, bit-reinterpreted and byte-swapped
// according to order.
func putF32(buf []byte, v float32, order binary.ByteOrder) []byte {
	var tmp [4]byte
	order.PutUint32(tmp[:], math.Float32bits(v))
	return append(buf, tmp[:]...)
}

// putU64 appends a 64-bit unsigned integer in the given byte order.
func putU64(buf []byte, v uint64, order binary.ByteOrder) []byte {
	var tmp [8]byte
	order.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// putVec3 appends a Vec3 as three f32s: x, y, z.
func putVec3(buf []byte, v Vec3, order binary.ByteOrder) []byte {
	buf = putF32(buf, v.X, order)
	buf = putF32(buf, v.Y, order)
	buf = putF32(buf, v.Z, order)
	return buf
}

// putQuat appends a Quat as four f32s in coefficient order x, y, z, w.
func putQuat(buf []byte, q Quat, order binary.ByteOrder) []byte {
	buf = putF32(buf, q.X, order)
	buf = putF32(buf, q.Y, order)
	buf = putF32(buf, q.Z, order)
	buf = putF32(buf, q.W, order)
	return buf
}

func getU8(b []byte) byte { return b[0] }

func getI16(b []byte, order binary.ByteOrder) int16 {
	return int16(order.Uint16(b))
}

func getF32(b []byte, order binary.ByteOrder) float32 {
	return math.Float32frombits(order.Uint32(b))
}

func getU64(b []byte, order binary.ByteOrder) uint64 {
	return order.Uint64(b)
}

func getVec3(b []byte, order binary.ByteOrder) Vec3 {
	return Vec3{
		X: getF32(b[0:4], order),
		Y: getF32(b[4:8], order),
		Z: getF32(b[8:12], order),
	}
}

// getQuat reads four f32s in coefficient order x, y, z, w and reconstructs
// Quat{W, X, Y, Z}.
func getQuat(b []byte, order binary.ByteOrder) Quat {
	x := getF32(b[0:4], order)
	y := getF32(b[4:8], order)
	z := getF32(b[8:12], order)
	w := getF32(b[12:16], order)
	return Quat{W: w, X: x, Y: y, Z: z}
}
