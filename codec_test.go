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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// newTempSpool returns a fresh read/write/seek temp file under t.TempDir(),
// matching the teacher's practice of exercising real files rather than
// in-memory fakes for I/O-heavy tests.
func newTempSpool(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "zchunk-spool-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func encodeToBytes(t *testing.T, src []byte) []byte {
	t.Helper()

	var out bytes.Buffer
	if err := Encode(&out, bytes.NewReader(src), newTempSpool(t)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return out.Bytes()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "small", data: []byte("hello, zchunk")},
		{name: "multi-chunk", data: pseudoRandomBytes(3*chunkerMaxSize, 7)},
		{name: "repetitive", data: bytes.Repeat([]byte("abcdefgh"), 50000)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			encoded := encodeToBytes(t, tc.data)

			var decoded bytes.Buffer
			if err := Decode(&decoded, bytes.NewReader(encoded)); err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if diff := cmp.Diff(tc.data, decoded.Bytes()); diff != "" {
				t.Errorf("round trip (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	t.Parallel()

	encoded := encodeToBytes(t, pseudoRandomBytes(2*chunkerMaxSize, 3))

	// Flip a byte well past the header, inside the data region.
	corrupted := make([]byte, len(encoded))
	copy(corrupted, encoded)
	flipAt := len(corrupted) - 1
	corrupted[flipAt] ^= 0xff

	var decoded bytes.Buffer
	err := Decode(&decoded, bytes.NewReader(corrupted))
	if err == nil {
		t.Fatalf("Decode of corrupted data: got nil error")
	}
}

func TestSyncReusesCachedChunks(t *testing.T) {
	t.Parallel()

	shared := pseudoRandomBytes(4*chunkerMaxSize, 11)

	// The source and cache share a long common prefix (so several leading
	// content-defined chunks line up exactly) and then diverge.
	source := append(append([]byte{}, shared...), []byte(" extra source tail data")...)
	cache := append(append([]byte{}, shared...), []byte(" a completely different tail")...)

	sourceEncoded := encodeToBytes(t, source)
	cacheEncoded := encodeToBytes(t, cache)

	sourceDec, err := NewDecoder(bytes.NewReader(sourceEncoded))
	if err != nil {
		t.Fatalf("NewDecoder(source): %v", err)
	}
	cacheDec, err := NewDecoder(bytes.NewReader(cacheEncoded))
	if err != nil {
		t.Fatalf("NewDecoder(cache): %v", err)
	}

	var synced bytes.Buffer
	if err := Sync(&synced, sourceDec, cacheDec); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	var decoded bytes.Buffer
	if err := Decode(&decoded, bytes.NewReader(synced.Bytes())); err != nil {
		t.Fatalf("Decode(synced): %v", err)
	}

	if diff := cmp.Diff(source, decoded.Bytes()); diff != "" {
		t.Errorf("sync(source, cache) decoded (-want, +got):\n%s", diff)
	}
}

func TestEncodeFileRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "input.txt")
	data := []byte("the quick brown fox jumps over the lazy dog, repeated.\n")

	if err := os.WriteFile(srcPath, bytes.Repeat(data, 1000), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	var encoded bytes.Buffer
	if err := Encode(&encoded, src, newTempSpool(t)); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded bytes.Buffer
	if err := Decode(&decoded, bytes.NewReader(encoded.Bytes())); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want, err := os.ReadFile(srcPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if diff := cmp.Diff(want, decoded.Bytes()); diff != "" {
		t.Errorf("file round trip (-want, +got):\n%s", diff)
	}
}
