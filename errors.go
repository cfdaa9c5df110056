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
	"errors"
	"fmt"
)

// errZchunk is the base error for all zchunk errors.
var errZchunk = errors.New("zchunk")

var (
	// ErrInvalidLeaderID indicates the Lead's magic bytes matched neither
	// the full-file nor detached-header magic.
	ErrInvalidLeaderID = fmt.Errorf("%w: invalid leader id", errZchunk)

	// ErrInvalidChecksumType indicates a checksum type code outside the set
	// accepted for its context (header checksum vs. chunk checksum).
	ErrInvalidChecksumType = fmt.Errorf("%w: invalid checksum type", errZchunk)

	// ErrInvalidCompressionType indicates a compression type code other
	// than none or zstd.
	ErrInvalidCompressionType = fmt.Errorf("%w: invalid compression type", errZchunk)

	// ErrInvalidHeaderSize indicates the declared header size did not match
	// the parsed extent of Preface‖Index‖Signatures.
	ErrInvalidHeaderSize = fmt.Errorf("%w: invalid header size", errZchunk)

	// ErrInvalidIndexSize indicates the Index's declared size did not match
	// the parsed extent of its fields.
	ErrInvalidIndexSize = fmt.Errorf("%w: invalid index size", errZchunk)

	// ErrHeaderNotFound indicates Encoder.WriteTo was called before
	// Encoder.PrepareChunks.
	ErrHeaderNotFound = fmt.Errorf("%w: header not found", errZchunk)

	// ErrChunkNotFound indicates a sync lookup referenced an index entry
	// that does not exist.
	ErrChunkNotFound = fmt.Errorf("%w: chunk not found", errZchunk)

	// ErrChunkChecksumMismatch indicates a chunk's computed digest did not
	// match its stored checksum, or the recomputed header checksum did not
	// match the Lead's header_checksum field.
	ErrChunkChecksumMismatch = fmt.Errorf("%w: chunk checksum does not match", errZchunk)

	// ErrSliceConversion indicates a raw byte slice did not match a
	// fixed-size field width.
	ErrSliceConversion = fmt.Errorf("%w: slice conversion failure", errZchunk)

	// ErrVarintTooLong indicates a varint was not terminated within 10
	// bytes.
	ErrVarintTooLong = fmt.Errorf("%w: varint exceeds 10 bytes", errZchunk)
)
