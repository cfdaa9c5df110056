// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zchunk

import (
	"fmt"
	"io"
)

// maxVarintBytes is the largest number of bytes a varint may occupy when
// decoded to a 64-bit unsigned value.
const maxVarintBytes = 10

// varint is a little-endian, base-128 variable-length encoding of a uint64.
// Unlike the common LEB128 convention, the continuation bit is set on the
// terminal byte and cleared on every byte that precedes it.
type varint struct {
	b []byte
}

// newVarint encodes n as a varint.
func newVarint(n uint64) varint {
	var b []byte
	for n >= 0x80 {
		b = append(b, byte(n)&0x7f)
		n >>= 7
	}
	b = append(b, byte(n)|0x80)
	return varint{b: b}
}

// varintFromBytes wraps an already-encoded varint byte slice without
// re-validating it. Used when reconstructing a value whose raw bytes were
// read directly from a stream.
func varintFromBytes(b []byte) varint {
	return varint{b: b}
}

// byteSize returns the number of bytes this varint occupies on the wire.
func (v varint) byteSize() int {
	return len(v.b)
}

// uint64 decodes the varint to a uint64.
func (v varint) uint64() (uint64, error) {
	if len(v.b) > maxVarintBytes {
		return 0, ErrVarintTooLong
	}

	var n uint64
	for i, b := range v.b {
		n |= uint64(b&0x7f) << (7 * i)
		if b&0x80 != 0 {
			return n, nil
		}
	}
	return n, nil
}

// writeTo writes the varint's wire bytes to w.
func (v varint) writeTo(w io.Writer) error {
	if _, err := w.Write(v.b); err != nil {
		return fmt.Errorf("%w: writing varint: %w", errZchunk, err)
	}
	return nil
}

// readVarint reads a single varint from r, consuming bytes until one with
// the high bit set is found. It fails if more than maxVarintBytes bytes are
// consumed without finding a terminator.
func readVarint(r io.Reader) (varint, error) {
	var b []byte
	buf := make([]byte, 1)
	for {
		if len(b) >= maxVarintBytes {
			return varint{}, ErrVarintTooLong
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return varint{}, fmt.Errorf("%w: reading varint: %w", errZchunk, err)
		}
		b = append(b, buf[0])
		if buf[0]&0x80 != 0 {
			break
		}
	}
	return varint{b: b}, nil
}
