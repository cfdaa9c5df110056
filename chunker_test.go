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
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// pseudoRandomBytes fills n bytes using a small deterministic LCG so tests
// don't depend on any external fixture file or on math/rand's unspecified
// stream.
func pseudoRandomBytes(n int, seed uint64) []byte {
	out := make([]byte, n)
	x := seed
	for i := range out {
		x = x*6364136223846793005 + 1442695040888963407
		out[i] = byte(x >> 56)
	}
	return out
}

func TestChunkerEmpty(t *testing.T) {
	t.Parallel()

	c := newChunker(bytes.NewReader(nil))
	_, err := c.next()
	if err != io.EOF {
		t.Fatalf("next() on empty input: got %v, want io.EOF", err)
	}
}

func TestChunkerShorterThanMin(t *testing.T) {
	t.Parallel()

	data := pseudoRandomBytes(100, 1)
	c := newChunker(bytes.NewReader(data))

	chunk, err := c.next()
	if err != nil {
		t.Fatalf("next(): %v", err)
	}
	if diff := cmp.Diff(data, chunk); diff != "" {
		t.Errorf("first chunk (-want, +got):\n%s", diff)
	}

	_, err = c.next()
	if err != io.EOF {
		t.Fatalf("second next(): got %v, want io.EOF", err)
	}
}

func TestChunkerReconstructsInput(t *testing.T) {
	t.Parallel()

	sizes := []int{0, 1, chunkerMinSize - 1, chunkerMinSize, chunkerMinSize + 1, 5 * chunkerMaxSize}
	for _, size := range sizes {
		data := pseudoRandomBytes(size, uint64(size)+1)

		c := newChunker(bytes.NewReader(data))
		var reconstructed []byte
		var chunkCount int
		for {
			chunk, err := c.next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("size %d: next(): %v", size, err)
			}
			reconstructed = append(reconstructed, chunk...)
			chunkCount++
		}

		if len(data) == 0 {
			if chunkCount != 0 {
				t.Errorf("size 0: got %d chunks, want 0", chunkCount)
			}
			continue
		}

		if diff := cmp.Diff(data, reconstructed); diff != "" {
			t.Errorf("size %d: reconstructed input (-want, +got):\n%s", size, diff)
		}
	}
}

func TestChunkerRespectsMaxSize(t *testing.T) {
	t.Parallel()

	// Highly compressible, repetitive input is the adversarial case for a
	// rolling hash: a run of identical bytes can go arbitrarily long without
	// a hash match, so the max-size cutoff must still fire.
	data := bytes.Repeat([]byte{0x41}, 5*chunkerMaxSize)

	c := newChunker(bytes.NewReader(data))
	for {
		chunk, err := c.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next(): %v", err)
		}
		if len(chunk) > chunkerMaxSize {
			t.Errorf("chunk length %d exceeds max %d", len(chunk), chunkerMaxSize)
		}
	}
}
