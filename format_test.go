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
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestLeadRoundTrip(t *testing.T) {
	t.Parallel()

	l := newLead(42)

	var buf bytes.Buffer
	if err := l.writeTo(&buf, false); err != nil {
		t.Fatalf("writeTo: %v", err)
	}
	if buf.Len() != l.byteSize() {
		t.Fatalf("byteSize() = %d, want %d", l.byteSize(), buf.Len())
	}

	got, err := readLead(&buf)
	if err != nil {
		t.Fatalf("readLead: %v", err)
	}
	if diff := cmp.Diff(l, got, cmp.AllowUnexported(lead{}, varint{})); diff != "" {
		t.Errorf("readLead round trip (-want, +got):\n%s", diff)
	}
}

func TestReadLeadInvalidMagic(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	_, err := readLead(buf)
	if !errors.Is(err, ErrInvalidLeaderID) {
		t.Errorf("readLead: got %v, want ErrInvalidLeaderID", err)
	}
}

func TestChunkEquality(t *testing.T) {
	t.Parallel()

	a := newChunk([16]byte{1, 2, 3}, 10, 20)
	b := newChunk([16]byte{1, 2, 3}, 10, 20)
	c := newChunk([16]byte{1, 2, 3}, 10, 21)

	s := newVarint(99)
	withStream := a
	withStream.stream = &s

	if !a.equal(b) {
		t.Errorf("a.equal(b) = false, want true")
	}
	if a.equal(c) {
		t.Errorf("a.equal(c) = true, want false")
	}
	if !a.equal(withStream) {
		t.Errorf("a.equal(withStream) = false, want true: stream must be excluded from equality")
	}
}

func TestChunkFingerprintIsComparable(t *testing.T) {
	t.Parallel()

	a := newChunk([16]byte{9}, 100, 200)
	b := newChunk([16]byte{9}, 100, 200)

	fa, err := a.fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	fb, err := b.fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fa != fb {
		t.Errorf("fingerprints of equal chunks differ: %+v != %+v", fa, fb)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	t.Parallel()

	chunks := []chunk{
		newChunk([16]byte{1}, 100, 200),
		newChunk([16]byte{2}, 150, 250),
		newChunk([16]byte{3}, 10, 10),
	}
	idx := newIndex(chunks)

	var buf bytes.Buffer
	if err := idx.writeTo(&buf); err != nil {
		t.Fatalf("writeTo: %v", err)
	}
	if buf.Len() != idx.byteSize() {
		t.Fatalf("byteSize() = %d, want %d", idx.byteSize(), buf.Len())
	}

	got, err := readIndex(&buf, newPrefaceFlags(0))
	if err != nil {
		t.Fatalf("readIndex: %v", err)
	}

	opts := cmp.AllowUnexported(index{}, chunk{}, varint{})
	if diff := cmp.Diff(idx, got, opts, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("readIndex round trip (-want, +got):\n%s", diff)
	}

	offsets, err := got.dataOffsets()
	if err != nil {
		t.Fatalf("dataOffsets: %v", err)
	}
	want := []uint64{0, 100, 250}
	if diff := cmp.Diff(want, offsets); diff != "" {
		t.Errorf("dataOffsets (-want, +got):\n%s", diff)
	}
}

func TestIndexTruncatedSizeRejected(t *testing.T) {
	t.Parallel()

	idx := newIndex([]chunk{newChunk([16]byte{1}, 10, 20)})

	var buf bytes.Buffer
	if err := idx.writeTo(&buf); err != nil {
		t.Fatalf("writeTo: %v", err)
	}

	// Corrupt the declared size (first varint byte) so it disagrees with the
	// actual extent of the remaining fields.
	corrupted := buf.Bytes()
	corrupted[0] = 0x81 // varint(1), far smaller than the real size.

	_, err := readIndex(bytes.NewReader(corrupted), newPrefaceFlags(0))
	if !errors.Is(err, ErrInvalidIndexSize) {
		t.Errorf("readIndex: got %v, want ErrInvalidIndexSize", err)
	}
}

func TestHeaderChecksumRoundTrip(t *testing.T) {
	t.Parallel()

	idx := newIndex([]chunk{newChunk([16]byte{1}, 10, 20)})
	pre := newPreface([32]byte{1, 2, 3})
	sigs := newSignatures(nil)

	headerSize := sigs.byteSize() + idx.byteSize() + pre.byteSize()
	h := header{lead: newLead(uint64(headerSize)), preface: pre, index: idx, signatures: sigs}

	if err := h.computeAndSetChecksum(); err != nil {
		t.Fatalf("computeAndSetChecksum: %v", err)
	}
	if err := h.verifyChecksum(); err != nil {
		t.Errorf("verifyChecksum: %v", err)
	}

	h.lead.headerChecksum[0] ^= 0xff
	if err := h.verifyChecksum(); err == nil {
		t.Errorf("verifyChecksum with corrupted checksum: got nil error")
	}
}
