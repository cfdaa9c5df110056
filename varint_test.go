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
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVarintEncode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		n    uint64
		want []byte
	}{
		{
			name: "zero",
			n:    0,
			want: []byte{0x80},
		},
		{
			name: "127",
			n:    127,
			want: []byte{0xff},
		},
		{
			name: "255",
			n:    255,
			want: []byte{0x7f, 0x81},
		},
		{
			name: "16384",
			n:    16384,
			want: []byte{0x00, 0x00, 0x81},
		},
		{
			name: "max uint64",
			n:    ^uint64(0),
			want: []byte{0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x81},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			v := newVarint(tc.n)
			if diff := cmp.Diff(tc.want, v.b); diff != "" {
				t.Errorf("newVarint(%d) (-want, +got):\n%s", tc.n, diff)
			}

			var buf bytes.Buffer
			if err := v.writeTo(&buf); err != nil {
				t.Fatalf("writeTo: %v", err)
			}
			if diff := cmp.Diff(tc.want, buf.Bytes()); diff != "" {
				t.Errorf("writeTo (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestVarintRoundTrip(t *testing.T) {
	t.Parallel()

	values := []uint64{0, 1, 127, 128, 255, 256, 16383, 16384, 1 << 32, ^uint64(0)}
	for _, n := range values {
		v := newVarint(n)

		var buf bytes.Buffer
		if err := v.writeTo(&buf); err != nil {
			t.Fatalf("writeTo(%d): %v", n, err)
		}

		got, err := readVarint(&buf)
		if err != nil {
			t.Fatalf("readVarint(%d): %v", n, err)
		}

		decoded, err := got.uint64()
		if err != nil {
			t.Fatalf("uint64(%d): %v", n, err)
		}
		if decoded != n {
			t.Errorf("round trip %d: got %d", n, decoded)
		}
	}
}

func TestReadVarintTooLong(t *testing.T) {
	t.Parallel()

	// 11 bytes, none with the terminator (high) bit set; readVarint gives up
	// after the 10th.
	buf := bytes.NewReader(bytes.Repeat([]byte{0x01}, 11))
	_, err := readVarint(buf)
	if !errors.Is(err, ErrVarintTooLong) {
		t.Errorf("readVarint: got %v, want ErrVarintTooLong", err)
	}
}
