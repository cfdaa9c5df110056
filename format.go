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
	"crypto/sha1" //nolint:gosec // SHA-1 is an accepted header checksum algorithm per the wire format.
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
)

// Checksum type codes, as they appear on the wire in the Lead and Index.
const (
	ChecksumSHA1       = 0
	ChecksumSHA256     = 1
	ChecksumSHA512     = 2
	ChecksumSHA512_128 = 3
)

// Compression type codes, as they appear on the wire in the Preface.
const (
	CompressionNone = 0
	CompressionZstd = 2
)

// leadMagicFull is the 5-byte magic identifying a full zchunk file.
var leadMagicFull = [5]byte{0x00, 'Z', 'C', 'K', '1'}

// leadMagicDetached is the 5-byte magic identifying a detached zchunk
// header (header present, data region absent).
var leadMagicDetached = [5]byte{0x00, 'Z', 'H', 'R', '1'}

// newHash returns a hash.Hash for the given checksum type code, or
// ErrInvalidChecksumType if the code is not one of the four defined
// algorithms.
func newHash(checksumType uint64) (hash.Hash, error) {
	switch checksumType {
	case ChecksumSHA1:
		return sha1.New(), nil //nolint:gosec // see ChecksumSHA1 above.
	case ChecksumSHA256:
		return sha256.New(), nil
	case ChecksumSHA512, ChecksumSHA512_128:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidChecksumType, checksumType)
	}
}

// truncate16 returns the first 16 bytes of digest, as used for the stored
// chunk checksum field.
func truncate16(digest []byte) [16]byte {
	var out [16]byte
	copy(out[:], digest)
	return out
}

// lead is the fixed prefix of every zchunk file.
type lead struct {
	id             [5]byte
	checksumType   varint
	headerSize     varint
	headerChecksum [32]byte
}

// newLead constructs a Lead for a freshly-prepared file. The header
// checksum is always computed with SHA-256 by this implementation, even
// though the field nominally selects the algorithm.
func newLead(headerSize uint64) lead {
	return lead{
		id:           leadMagicFull,
		checksumType: newVarint(ChecksumSHA256),
		headerSize:   newVarint(headerSize),
	}
}

func (l lead) byteSize() int {
	return len(l.id) + l.checksumType.byteSize() + l.headerSize.byteSize() + len(l.headerChecksum)
}

// writeTo writes the Lead. When zeroChecksum is true, the header_checksum
// field is written as 32 zero bytes; this is used while computing the
// checksum over the rest of the header.
func (l lead) writeTo(w io.Writer, zeroChecksum bool) error {
	if _, err := w.Write(l.id[:]); err != nil {
		return fmt.Errorf("%w: writing lead id: %w", errZchunk, err)
	}
	if err := l.checksumType.writeTo(w); err != nil {
		return err
	}
	if err := l.headerSize.writeTo(w); err != nil {
		return err
	}
	checksum := l.headerChecksum
	if zeroChecksum {
		checksum = [32]byte{}
	}
	if _, err := w.Write(checksum[:]); err != nil {
		return fmt.Errorf("%w: writing header checksum: %w", errZchunk, err)
	}
	return nil
}

func readLead(r io.Reader) (lead, error) {
	var l lead
	if _, err := io.ReadFull(r, l.id[:]); err != nil {
		return lead{}, fmt.Errorf("%w: reading lead id: %w", errZchunk, err)
	}
	if l.id != leadMagicFull && l.id != leadMagicDetached {
		return lead{}, fmt.Errorf("%w: %x", ErrInvalidLeaderID, l.id)
	}

	checksumType, err := readVarint(r)
	if err != nil {
		return lead{}, err
	}
	ct, err := checksumType.uint64()
	if err != nil {
		return lead{}, err
	}
	if ct != ChecksumSHA1 && ct != ChecksumSHA256 {
		return lead{}, fmt.Errorf("%w: %d", ErrInvalidChecksumType, ct)
	}
	l.checksumType = checksumType

	headerSize, err := readVarint(r)
	if err != nil {
		return lead{}, err
	}
	l.headerSize = headerSize

	if _, err := io.ReadFull(r, l.headerChecksum[:]); err != nil {
		return lead{}, fmt.Errorf("%w: reading header checksum: %w", errZchunk, err)
	}

	return l, nil
}

// isDetached reports whether the Lead's magic identifies a detached header
// (data region absent).
func (l lead) isDetached() bool {
	return l.id == leadMagicDetached
}

// prefaceFlags is the Preface's bitfield. Bit 0 selects whether Chunk
// entries carry a stream field; bit 1 selects whether an
// optional_element_count field follows the compression type. Other bits
// are reserved and ignored both on read and write.
type prefaceFlags struct {
	v varint
	n uint64
}

func newPrefaceFlags(n uint64) prefaceFlags {
	return prefaceFlags{v: newVarint(n), n: n}
}

func prefaceFlagsFromVarint(v varint) (prefaceFlags, error) {
	n, err := v.uint64()
	if err != nil {
		return prefaceFlags{}, err
	}
	return prefaceFlags{v: v, n: n}, nil
}

func (f prefaceFlags) hasStream() bool   { return f.n&0x01 != 0 }
func (f prefaceFlags) hasOptional() bool { return f.n&0x02 != 0 }

func (f prefaceFlags) byteSize() int { return f.v.byteSize() }

func (f prefaceFlags) writeTo(w io.Writer) error { return f.v.writeTo(w) }

// preface carries the compression parameters and the data checksum.
type preface struct {
	dataChecksum         [32]byte
	flags                prefaceFlags
	compressionType      varint
	optionalElementCount *varint
}

// newPreface constructs a Preface for a freshly-encoded file: no flags set,
// zstd compression, no optional element count.
func newPreface(dataChecksum [32]byte) preface {
	return preface{
		dataChecksum:    dataChecksum,
		flags:           newPrefaceFlags(0),
		compressionType: newVarint(CompressionZstd),
	}
}

func (p preface) byteSize() int {
	n := len(p.dataChecksum) + p.flags.byteSize() + p.compressionType.byteSize()
	if p.optionalElementCount != nil {
		n += p.optionalElementCount.byteSize()
	}
	return n
}

func (p preface) writeTo(w io.Writer) error {
	if _, err := w.Write(p.dataChecksum[:]); err != nil {
		return fmt.Errorf("%w: writing data checksum: %w", errZchunk, err)
	}
	if err := p.flags.writeTo(w); err != nil {
		return err
	}
	if err := p.compressionType.writeTo(w); err != nil {
		return err
	}
	if p.optionalElementCount != nil {
		if err := p.optionalElementCount.writeTo(w); err != nil {
			return err
		}
	}
	return nil
}

func readPreface(r io.Reader) (preface, error) {
	var p preface
	if _, err := io.ReadFull(r, p.dataChecksum[:]); err != nil {
		return preface{}, fmt.Errorf("%w: reading data checksum: %w", errZchunk, err)
	}

	flagsVarint, err := readVarint(r)
	if err != nil {
		return preface{}, err
	}
	flags, err := prefaceFlagsFromVarint(flagsVarint)
	if err != nil {
		return preface{}, err
	}
	p.flags = flags

	compressionType, err := readVarint(r)
	if err != nil {
		return preface{}, err
	}
	ct, err := compressionType.uint64()
	if err != nil {
		return preface{}, err
	}
	if ct != CompressionNone && ct != CompressionZstd {
		return preface{}, fmt.Errorf("%w: %d", ErrInvalidCompressionType, ct)
	}
	p.compressionType = compressionType

	if flags.hasOptional() {
		count, err := readVarint(r)
		if err != nil {
			return preface{}, err
		}
		p.optionalElementCount = &count
	}

	return p, nil
}

// chunk is a single entry in the Index: the dict chunk (entry zero) or one
// data chunk. Equality for sync matching is defined on (checksum, length,
// uncompressedLength); stream is excluded.
type chunk struct {
	stream             *varint
	checksum           [16]byte
	length             varint
	uncompressedLength varint
}

func newChunk(checksum [16]byte, length, uncompressedLength uint64) chunk {
	return chunk{
		checksum:           checksum,
		length:             newVarint(length),
		uncompressedLength: newVarint(uncompressedLength),
	}
}

func (c chunk) byteSize() int {
	n := len(c.checksum) + c.length.byteSize() + c.uncompressedLength.byteSize()
	if c.stream != nil {
		n += c.stream.byteSize()
	}
	return n
}

func (c chunk) writeTo(w io.Writer) error {
	if c.stream != nil {
		if err := c.stream.writeTo(w); err != nil {
			return err
		}
	}
	if _, err := w.Write(c.checksum[:]); err != nil {
		return fmt.Errorf("%w: writing chunk checksum: %w", errZchunk, err)
	}
	if err := c.length.writeTo(w); err != nil {
		return err
	}
	if err := c.uncompressedLength.writeTo(w); err != nil {
		return err
	}
	return nil
}

func readChunk(r io.Reader, flags prefaceFlags) (chunk, error) {
	var c chunk
	if flags.hasStream() {
		s, err := readVarint(r)
		if err != nil {
			return chunk{}, err
		}
		c.stream = &s
	}

	if _, err := io.ReadFull(r, c.checksum[:]); err != nil {
		return chunk{}, fmt.Errorf("%w: reading chunk checksum: %w", errZchunk, err)
	}

	length, err := readVarint(r)
	if err != nil {
		return chunk{}, err
	}
	c.length = length

	uncompressedLength, err := readVarint(r)
	if err != nil {
		return chunk{}, err
	}
	c.uncompressedLength = uncompressedLength

	return c, nil
}

// equal implements the sync-matching equality: checksum, length and
// uncompressedLength must agree. stream is deliberately excluded.
func (c chunk) equal(o chunk) bool {
	return c.checksum == o.checksum &&
		bytes.Equal(c.length.b, o.length.b) &&
		bytes.Equal(c.uncompressedLength.b, o.uncompressedLength.b)
}

// fingerprint is a comparable key derived from chunk equality, suitable for
// use as a map key (chunk itself holds slices and is not comparable).
type fingerprint struct {
	checksum           [16]byte
	length             uint64
	uncompressedLength uint64
}

func (c chunk) fingerprint() (fingerprint, error) {
	length, err := c.length.uint64()
	if err != nil {
		return fingerprint{}, err
	}
	uncompressedLength, err := c.uncompressedLength.uint64()
	if err != nil {
		return fingerprint{}, err
	}
	return fingerprint{
		checksum:           c.checksum,
		length:             length,
		uncompressedLength: uncompressedLength,
	}, nil
}

// index is the third section of a zchunk header: the checksum algorithm
// used for chunk data, and the dict chunk plus data chunk entries.
type index struct {
	size         varint
	checksumType varint
	chunksCount  varint
	dictChunk    chunk
	dataChunks   []chunk
}

// newIndex builds an Index from the data chunks collected during encoding.
// The dict chunk is always empty in output produced by this implementation.
func newIndex(dataChunks []chunk) index {
	dict := newChunk([16]byte{}, 0, 0)
	checksumType := newVarint(ChecksumSHA512_128)
	chunksCount := newVarint(uint64(len(dataChunks)) + 1)

	size := checksumType.byteSize() + chunksCount.byteSize() + dict.byteSize()
	for _, c := range dataChunks {
		size += c.byteSize()
	}

	return index{
		size:         newVarint(uint64(size)),
		checksumType: checksumType,
		chunksCount:  chunksCount,
		dictChunk:    dict,
		dataChunks:   dataChunks,
	}
}

func (idx index) byteSize() int {
	n := idx.size.byteSize() + idx.checksumType.byteSize() + idx.chunksCount.byteSize() + idx.dictChunk.byteSize()
	for _, c := range idx.dataChunks {
		n += c.byteSize()
	}
	return n
}

func (idx index) writeTo(w io.Writer) error {
	if err := idx.size.writeTo(w); err != nil {
		return err
	}
	if err := idx.checksumType.writeTo(w); err != nil {
		return err
	}
	if err := idx.chunksCount.writeTo(w); err != nil {
		return err
	}
	if err := idx.dictChunk.writeTo(w); err != nil {
		return err
	}
	for _, c := range idx.dataChunks {
		if err := c.writeTo(w); err != nil {
			return err
		}
	}
	return nil
}

func readIndex(r io.Reader, flags prefaceFlags) (index, error) {
	size, err := readVarint(r)
	if err != nil {
		return index{}, err
	}

	checksumType, err := readVarint(r)
	if err != nil {
		return index{}, err
	}
	ct, err := checksumType.uint64()
	if err != nil {
		return index{}, err
	}
	switch ct {
	case ChecksumSHA1, ChecksumSHA256, ChecksumSHA512, ChecksumSHA512_128:
	default:
		return index{}, fmt.Errorf("%w: %d", ErrInvalidChecksumType, ct)
	}

	chunksCount, err := readVarint(r)
	if err != nil {
		return index{}, err
	}
	count, err := chunksCount.uint64()
	if err != nil {
		return index{}, err
	}

	dictChunk, err := readChunk(r, flags)
	if err != nil {
		return index{}, err
	}

	dataChunks := make([]chunk, 0, count)
	if count > 0 {
		for i := uint64(0); i < count-1; i++ {
			c, err := readChunk(r, flags)
			if err != nil {
				return index{}, err
			}
			dataChunks = append(dataChunks, c)
		}
	}

	expectSize := checksumType.byteSize() + chunksCount.byteSize() + dictChunk.byteSize()
	for _, c := range dataChunks {
		expectSize += c.byteSize()
	}
	declaredSize, err := size.uint64()
	if err != nil {
		return index{}, err
	}
	if uint64(expectSize) != declaredSize {
		return index{}, fmt.Errorf("%w: expected %d, found %d", ErrInvalidIndexSize, expectSize, declaredSize)
	}

	return index{
		size:         size,
		checksumType: checksumType,
		chunksCount:  chunksCount,
		dictChunk:    dictChunk,
		dataChunks:   dataChunks,
	}, nil
}

// dataOffsets returns, for each data chunk in order, its byte offset
// relative to the start of the data region. The dict chunk's data occupies
// the start of that region, so the first data chunk's offset is the dict
// chunk's length.
func (idx index) dataOffsets() ([]uint64, error) {
	offsets := make([]uint64, len(idx.dataChunks))
	dictLen, err := idx.dictChunk.length.uint64()
	if err != nil {
		return nil, err
	}
	offset := dictLen
	for i, c := range idx.dataChunks {
		offsets[i] = offset
		length, err := c.length.uint64()
		if err != nil {
			return nil, err
		}
		offset += length
	}
	return offsets, nil
}

// signature is a single opaque signature entry.
type signature struct {
	typ  varint
	size varint
	data []byte
}

func (s signature) byteSize() int {
	return s.typ.byteSize() + s.size.byteSize() + len(s.data)
}

func (s signature) writeTo(w io.Writer) error {
	if err := s.typ.writeTo(w); err != nil {
		return err
	}
	if err := s.size.writeTo(w); err != nil {
		return err
	}
	if _, err := w.Write(s.data); err != nil {
		return fmt.Errorf("%w: writing signature data: %w", errZchunk, err)
	}
	return nil
}

func readSignature(r io.Reader) (signature, error) {
	typ, err := readVarint(r)
	if err != nil {
		return signature{}, err
	}
	size, err := readVarint(r)
	if err != nil {
		return signature{}, err
	}
	n, err := size.uint64()
	if err != nil {
		return signature{}, err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return signature{}, fmt.Errorf("%w: reading signature data: %w", errZchunk, err)
	}
	return signature{typ: typ, size: size, data: data}, nil
}

// signatures is the final header section: an opaque, round-tripped list of
// signature entries. This package does not verify or produce signatures.
type signatures struct {
	count varint
	sigs  []signature
}

func newSignatures(sigs []signature) signatures {
	return signatures{count: newVarint(uint64(len(sigs))), sigs: sigs}
}

func (s signatures) byteSize() int {
	n := s.count.byteSize()
	for _, sig := range s.sigs {
		n += sig.byteSize()
	}
	return n
}

func (s signatures) writeTo(w io.Writer) error {
	if err := s.count.writeTo(w); err != nil {
		return err
	}
	for _, sig := range s.sigs {
		if err := sig.writeTo(w); err != nil {
			return err
		}
	}
	return nil
}

func readSignatures(r io.Reader) (signatures, error) {
	count, err := readVarint(r)
	if err != nil {
		return signatures{}, err
	}
	n, err := count.uint64()
	if err != nil {
		return signatures{}, err
	}
	sigs := make([]signature, 0, n)
	for i := uint64(0); i < n; i++ {
		sig, err := readSignature(r)
		if err != nil {
			return signatures{}, err
		}
		sigs = append(sigs, sig)
	}
	return signatures{count: count, sigs: sigs}, nil
}

// header bundles the four header sections shared by the encoder, decoder
// and sync engine.
type header struct {
	lead       lead
	preface    preface
	index      index
	signatures signatures
}

// writeTo writes Lead‖Preface‖Index‖Signatures. When zeroChecksum is true
// the Lead's header_checksum field is zeroed, as required while computing
// that checksum.
func (h header) writeTo(w io.Writer, zeroChecksum bool) error {
	if err := h.lead.writeTo(w, zeroChecksum); err != nil {
		return err
	}
	if err := h.preface.writeTo(w); err != nil {
		return err
	}
	if err := h.index.writeTo(w); err != nil {
		return err
	}
	if err := h.signatures.writeTo(w); err != nil {
		return err
	}
	return nil
}

// computeAndSetChecksum serializes the header with header_checksum zeroed,
// hashes it with SHA-256, and stores the result in h.lead.headerChecksum.
func (h *header) computeAndSetChecksum() error {
	var buf bytes.Buffer
	if err := h.writeTo(&buf, true); err != nil {
		return err
	}
	sum := sha256.Sum256(buf.Bytes())
	h.lead.headerChecksum = sum
	return nil
}

// verifyChecksum recomputes the header checksum using the algorithm named
// by h.lead.checksumType and compares it against the stored value.
func (h header) verifyChecksum() error {
	checksumType, err := h.lead.checksumType.uint64()
	if err != nil {
		return err
	}
	hasher, err := newHash(checksumType)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := h.writeTo(&buf, true); err != nil {
		return err
	}
	hasher.Write(buf.Bytes())
	sum := hasher.Sum(nil)

	n := min(len(sum), len(h.lead.headerChecksum))
	if !bytes.Equal(h.lead.headerChecksum[:n], sum[:n]) {
		return fmt.Errorf("%w: header checksum does not match", ErrChunkChecksumMismatch)
	}
	return nil
}

// hasDictChunk reports whether c is equal (by chunk equality) to the
// header's dict chunk.
func (h header) hasDictChunk(c chunk) bool {
	return h.index.dictChunk.equal(c)
}
