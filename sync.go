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

// Sync assembles the byte-exact contents of source's zchunk file into dst,
// reusing chunk bytes already present in cache wherever their fingerprints
// match. It never trusts the cache's bytes blindly: every reused chunk is
// re-verified against its checksum by [Decoder.getChunkData] before being
// written.
func Sync(dst io.Writer, source, cache *Decoder) error {
	cw := &countingWriter{w: dst}
	if err := source.header.writeTo(cw, false); err != nil {
		return err
	}

	dictBytes, err := syncDictChunk(source, cache)
	if err != nil {
		return err
	}
	if _, err := cw.Write(dictBytes); err != nil {
		return fmt.Errorf("%w: writing dict chunk: %w", errZchunk, err)
	}

	reuse, err := buildReuseMap(cache)
	if err != nil {
		return err
	}

	sourceOffsets, err := source.header.index.dataOffsets()
	if err != nil {
		return err
	}

	for i, c := range source.header.index.dataChunks {
		fp, err := c.fingerprint()
		if err != nil {
			return err
		}

		var data []byte
		if cacheOffset, ok := reuse[fp]; ok {
			data, err = cache.getChunkData(cacheOffset, c)
		} else {
			data, err = source.getChunkData(sourceOffsets[i], c)
		}
		if err != nil {
			return err
		}

		if _, err := cw.Write(data); err != nil {
			return fmt.Errorf("%w: writing chunk %d: %w", errZchunk, i, err)
		}
	}

	return nil
}

// syncDictChunk resolves the bytes of the dict chunk, preferring the cache
// when its dict chunk is content-identical to the source's (avoiding a
// redundant read from the source).
func syncDictChunk(source, cache *Decoder) ([]byte, error) {
	dict := source.header.index.dictChunk
	if cache.header.hasDictChunk(dict) {
		return cache.getChunkData(0, dict)
	}
	return source.getChunkData(0, dict)
}

// buildReuseMap indexes cache's data chunks by fingerprint, recording the
// offset of the first occurrence of each distinct fingerprint.
func buildReuseMap(cache *Decoder) (map[fingerprint]uint64, error) {
	offsets, err := cache.header.index.dataOffsets()
	if err != nil {
		return nil, err
	}

	reuse := make(map[fingerprint]uint64, len(cache.header.index.dataChunks))
	for i, c := range cache.header.index.dataChunks {
		fp, err := c.fingerprint()
		if err != nil {
			return nil, err
		}
		if _, ok := reuse[fp]; !ok {
			reuse[fp] = offsets[i]
		}
	}
	return reuse, nil
}
