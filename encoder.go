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
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdCompressionLevel is the level used to compress every chunk. The
// reference encoder always compresses at zstd level 3 and never builds a
// dictionary.
const zstdCompressionLevel = 3

// Encoder implements the zchunk encode operation. It drives the chunker,
// compresses and checksums each chunk, and spools the compressed bytes to a
// temporary store until the header can be finalized.
//
// An Encoder progresses through three states: fresh, prepared (after
// [Encoder.PrepareChunks] succeeds) and finalized (after
// [Encoder.WriteTo] succeeds). [Encoder.WriteTo] called before
// [Encoder.PrepareChunks] returns [ErrHeaderNotFound].
//
// Encoder requires a read+write+seek temporary store because the header
// cannot be finalized until every chunk has been compressed and
// checksummed; the spool may be an *os.File or an in-memory
// io.ReadWriteSeeker.
type Encoder struct {
	temp   io.ReadWriteSeeker
	header *header
}

// NewEncoder returns an Encoder that will spool compressed chunk data to
// temp. The caller retains ownership of temp and must not use it
// concurrently with the Encoder.
func NewEncoder(temp io.ReadWriteSeeker) *Encoder {
	return &Encoder{temp: temp}
}

// PrepareChunks reads all of src, splitting it into content-defined chunks,
// compressing each with zstd, and recording its checksum and offset. It
// must be called exactly once, before [Encoder.WriteTo].
func (e *Encoder) PrepareChunks(src io.Reader) error {
	c := newChunker(src)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(zstdCompressionLevel)))
	if err != nil {
		return fmt.Errorf("%w: creating zstd encoder: %w", errZchunk, err)
	}
	defer enc.Close()

	var chunks []chunk
	totalHasher := sha256.New()

	for {
		uncompressed, err := c.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		compressed := enc.EncodeAll(uncompressed, nil)

		digest := sha512.Sum512(compressed)
		totalHasher.Write(compressed)

		if _, err := e.temp.Write(compressed); err != nil {
			return fmt.Errorf("%w: spooling chunk: %w", errZchunk, err)
		}

		chunks = append(chunks, newChunk(truncate16(digest[:]), uint64(len(compressed)), uint64(len(uncompressed))))
	}

	var dataChecksum [32]byte
	copy(dataChecksum[:], totalHasher.Sum(nil))

	sigs := newSignatures(nil)
	idx := newIndex(chunks)
	pre := newPreface(dataChecksum)
	headerSize := sigs.byteSize() + idx.byteSize() + pre.byteSize()
	ld := newLead(uint64(headerSize))

	h := &header{lead: ld, preface: pre, index: idx, signatures: sigs}
	if err := h.computeAndSetChecksum(); err != nil {
		return err
	}

	e.header = h
	return nil
}

// WriteTo writes the finalized header followed by the spooled chunk data to
// w. It requires [Encoder.PrepareChunks] to have already succeeded.
func (e *Encoder) WriteTo(w io.Writer) (int64, error) {
	if e.header == nil {
		return 0, ErrHeaderNotFound
	}

	cw := &countingWriter{w: w}
	if err := e.header.writeTo(cw, false); err != nil {
		return cw.n, err
	}

	if _, err := e.temp.Seek(0, io.SeekStart); err != nil {
		return cw.n, fmt.Errorf("%w: rewinding spool: %w", errZchunk, err)
	}
	if _, err := io.Copy(cw, e.temp); err != nil {
		return cw.n, fmt.Errorf("%w: writing chunk data: %w", errZchunk, err)
	}

	return cw.n, nil
}

// countingWriter tracks the number of bytes written, so WriteTo can report
// its total regardless of whether the underlying writer does.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Encode is a convenience wrapper that encodes src into a fully-formed
// zchunk file written to dst, using temp as the encoder's spool.
func Encode(dst io.Writer, src io.Reader, temp io.ReadWriteSeeker) error {
	e := NewEncoder(temp)
	if err := e.PrepareChunks(src); err != nil {
		return err
	}
	_, err := e.WriteTo(dst)
	return err
}
