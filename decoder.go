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

	"github.com/klauspost/compress/zstd"
)

// Decoder parses a zchunk header and provides random access to its indexed
// chunks. It owns its reader exclusively for the duration of its use.
type Decoder struct {
	header        header
	headerSizeEnd int64
	r             io.ReadSeeker
}

// NewDecoder parses the Lead, Preface, Index and Signatures from r, which
// must be positioned at the start of a zchunk file or detached header. It
// validates every header invariant described in the format and returns the
// first violation encountered.
func NewDecoder(r io.ReadSeeker) (*Decoder, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seeking to start: %w", errZchunk, err)
	}

	countingR := &countingReader{r: r}

	l, err := readLead(countingR)
	if err != nil {
		return nil, err
	}
	p, err := readPreface(countingR)
	if err != nil {
		return nil, err
	}
	idx, err := readIndex(countingR, p.flags)
	if err != nil {
		return nil, err
	}
	sigs, err := readSignatures(countingR)
	if err != nil {
		return nil, err
	}

	h := header{lead: l, preface: p, index: idx, signatures: sigs}

	headerSize, err := l.headerSize.uint64()
	if err != nil {
		return nil, err
	}
	expect := int64(l.byteSize()) + int64(headerSize)
	if countingR.n != expect {
		return nil, fmt.Errorf("%w: expected %d, found %d", ErrInvalidHeaderSize, expect, countingR.n)
	}

	if err := h.verifyChecksum(); err != nil {
		return nil, err
	}

	return &Decoder{header: h, headerSizeEnd: expect, r: r}, nil
}

// countingReader wraps an io.Reader, tracking the number of bytes read from
// it so the decoder can confirm its position against the declared header
// size without relying on the underlying reader supporting Seek-based
// position queries.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Index returns the compressed and uncompressed length of each data chunk
// in index order, primarily for inspection by the CLI's list subcommand.
// The dict chunk is not included.
func (d *Decoder) Index() []ChunkInfo {
	out := make([]ChunkInfo, len(d.header.index.dataChunks))
	for i, c := range d.header.index.dataChunks {
		length, _ := c.length.uint64()
		uncompressedLength, _ := c.uncompressedLength.uint64()
		out[i] = ChunkInfo{Length: length, UncompressedLength: uncompressedLength}
	}
	return out
}

// ChunkInfo summarizes one data chunk entry for inspection purposes.
type ChunkInfo struct {
	Length             uint64
	UncompressedLength uint64
}

// ChecksumType returns the chunk checksum algorithm code declared in the
// Index (one of Checksum{SHA1,SHA256,SHA512,SHA512_128}).
func (d *Decoder) ChecksumType() (uint64, error) {
	return d.header.index.checksumType.uint64()
}

// getChunkData reads and verifies the compressed bytes of c at offset
// (relative to the start of the data region). It does not decompress.
func (d *Decoder) getChunkData(offset uint64, c chunk) ([]byte, error) {
	length, err := c.length.uint64()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	if _, err := d.r.Seek(d.headerSizeEnd+int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seeking to chunk: %w", errZchunk, err)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading chunk: %w", errZchunk, err)
	}

	checksumType, err := d.header.index.checksumType.uint64()
	if err != nil {
		return nil, err
	}
	hasher, err := newHash(checksumType)
	if err != nil {
		return nil, err
	}
	hasher.Write(buf)
	got := truncate16(hasher.Sum(nil))

	if c.checksum != got {
		return nil, fmt.Errorf("%w: length %d: expected %x, found %x", ErrChunkChecksumMismatch, length, c.checksum, got)
	}

	return buf, nil
}

// getUncompressedDict fetches the dict chunk and, if non-empty,
// decompresses it to form a zstd dictionary.
func (d *Decoder) getUncompressedDict() ([]byte, error) {
	data, err := d.getChunkData(0, d.header.index.dictChunk)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating zstd decoder: %w", errZchunk, err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing dict chunk: %w", errZchunk, err)
	}
	return out, nil
}

// WriteTo decompresses every data chunk, in index order, and writes the
// reconstructed original byte stream to w.
func (d *Decoder) WriteTo(w io.Writer) (int64, error) {
	dict, err := d.getUncompressedDict()
	if err != nil {
		return 0, err
	}

	var opts []zstd.DOption
	if dict != nil {
		opts = append(opts, zstd.WithDecoderDicts(dict))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return 0, fmt.Errorf("%w: creating zstd decoder: %w", errZchunk, err)
	}
	defer dec.Close()

	offsets, err := d.header.index.dataOffsets()
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	for i, c := range d.header.index.dataChunks {
		compressed, err := d.getChunkData(offsets[i], c)
		if err != nil {
			return cw.n, err
		}
		if len(compressed) == 0 {
			continue
		}
		out, err := dec.DecodeAll(compressed, nil)
		if err != nil {
			return cw.n, fmt.Errorf("%w: decompressing chunk %d: %w", errZchunk, i, err)
		}
		if _, err := cw.Write(out); err != nil {
			return cw.n, fmt.Errorf("%w: writing decoded output: %w", errZchunk, err)
		}
	}

	return cw.n, nil
}

// Decode is a convenience wrapper that decodes the zchunk file read from r
// and writes the original byte stream to w.
func Decode(w io.Writer, r io.ReadSeeker) error {
	d, err := NewDecoder(r)
	if err != nil {
		return err
	}
	_, err = d.WriteTo(w)
	return err
}
