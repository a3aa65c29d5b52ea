// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rhs

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// nullQString is the length prefix Qt writes for a null string.
const nullQString = 0xFFFFFFFF

// cursor is a sequential reader over an in-memory byte buffer.
type cursor struct {
	buf   []byte
	off   int
	order binary.ByteOrder
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf, order: binary.LittleEndian}
}

func (c *cursor) offset() int64 { return int64(c.off) }

func (c *cursor) remaining() int { return len(c.buf) - c.off }

func (c *cursor) eof() bool { return c.off >= len(c.buf) }

// next returns the following n bytes and advances past them.
func (c *cursor) next(n int) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, newError(KindTruncated, c.offset(), "", "need %d bytes, have %d", n, c.remaining())
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) uint16() (uint16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}
	return c.order.Uint16(b), nil
}

func (c *cursor) int16() (int16, error) {
	v, err := c.uint16()
	return int16(v), err
}

func (c *cursor) uint32() (uint32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return c.order.Uint32(b), nil
}

func (c *cursor) float32() (float32, error) {
	v, err := c.uint32()
	return math.Float32frombits(v), err
}

func (c *cursor) bool16() (bool, error) {
	v, err := c.int16()
	return v != 0, err
}

// qstring reads a Qt QString: a uint32 byte count followed by UTF-16 code units.
// A null string decodes as "" with null set. Unpaired surrogates decode as U+FFFD.
func (c *cursor) qstring() (s string, null bool, err error) {
	start := c.offset()
	length, err := c.uint32()
	if err != nil {
		return "", false, err
	}
	if length == nullQString {
		return "", true, nil
	}
	if length%2 != 0 {
		return "", false, newError(KindCorruptHeader, start, "", "odd string length %d", length)
	}
	if int64(length) > int64(c.remaining()) {
		return "", false, newError(KindTruncated, c.offset(), "", "string of %d bytes exceeds remaining %d", length, c.remaining())
	}
	b, _ := c.next(int(length))
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = c.order.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units)), false, nil
}
