// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"fmt"
	"math"
)

// Record flags byte bits.
const (
	entryFlagEncrypted = 1 << 0
	entryFlagDeleted   = 1 << 1
)

// methodIDNone marks an uncompressed record; other identifiers are 1-based
// references into the active method table.
const methodIDNone uint32 = 0

// compressionBlock is one independently decodable chunk range. Offsets are
// record-relative in memory regardless of revision; legacy absolute ranges
// are rebased on decode.
type compressionBlock struct {
	start uint64
	end   uint64
}

// entryRecord is one file's metadata. The index holds the authoritative copy;
// a second copy with a zeroed offset field precedes the payload on disk.
type entryRecord struct {
	offset       uint64
	compressed   uint64 // true size, excluding encryption padding
	uncompressed uint64
	timestamp    uint64
	blocks       []compressionBlock
	hash         [shaSize]byte
	method       uint32
	blockSize    uint32
	flags        uint8
}

func (e *entryRecord) encrypted() bool { return e.flags&entryFlagEncrypted != 0 }

func (e *entryRecord) deleted() bool { return e.flags&entryFlagDeleted != 0 }

// storedSize returns the on-disk payload length: block sizes are rounded up
// to the cipher granularity for encrypted records.
func (e *entryRecord) storedSize() uint64 {
	if !e.encrypted() {
		return e.compressed
	}

	if len(e.blocks) == 0 {
		return align16(e.compressed)
	}

	var total uint64
	for _, b := range e.blocks {
		total += align16(b.end - b.start)
	}

	return total
}

// recordSerializedSize returns the full record's on-wire byte length.
func recordSerializedSize(caps Capabilities, method uint32, blockCount int) int64 {
	size := int64(8 + 8 + 8)
	size += int64(caps.MethodFieldBytes)

	if caps.HasTimestamp {
		size += 8
	}

	size += shaSize

	if caps.HasCompressionBlocks {
		if method != methodIDNone {
			size += 4 + int64(blockCount)*16
		}

		size += 1 + 4
	}

	return size
}

// headerSize returns the byte length of the record copy written in front of
// this record's payload.
func (e *entryRecord) headerSize(caps Capabilities) int64 {
	return recordSerializedSize(caps, e.method, len(e.blocks))
}

// decodeRecord reads one full record.
func decodeRecord(r *wireReader, caps Capabilities) (entryRecord, error) {
	var (
		e   entryRecord
		err error
	)

	if e.offset, err = r.u64(); err != nil {
		return e, fmt.Errorf("record offset: %w", err)
	}
	if e.compressed, err = r.u64(); err != nil {
		return e, fmt.Errorf("record compressed size: %w", err)
	}
	if e.uncompressed, err = r.u64(); err != nil {
		return e, fmt.Errorf("record uncompressed size: %w", err)
	}

	if caps.MethodFieldBytes == 1 {
		b, err := r.u8()
		if err != nil {
			return e, fmt.Errorf("record method: %w", err)
		}

		e.method = uint32(b)
	} else {
		if e.method, err = r.u32(); err != nil {
			return e, fmt.Errorf("record method: %w", err)
		}
	}

	if caps.HasTimestamp {
		if e.timestamp, err = r.u64(); err != nil {
			return e, fmt.Errorf("record timestamp: %w", err)
		}
	}

	if e.hash, err = r.sha1(); err != nil {
		return e, fmt.Errorf("record hash: %w", err)
	}

	if !caps.HasCompressionBlocks {
		return e, nil
	}

	if e.method != methodIDNone {
		count, err := r.u32()
		if err != nil {
			return e, fmt.Errorf("record block count: %w", err)
		}
		if int(count) > r.remaining()/16 {
			return e, fmt.Errorf("%w: block count %d exceeds index size", ErrFormat, count)
		}

		e.blocks = make([]compressionBlock, count)
		for i := range e.blocks {
			if e.blocks[i].start, err = r.u64(); err != nil {
				return e, fmt.Errorf("record block start: %w", err)
			}
			if e.blocks[i].end, err = r.u64(); err != nil {
				return e, fmt.Errorf("record block end: %w", err)
			}
		}
	}

	flags, err := r.u8()
	if err != nil {
		return e, fmt.Errorf("record flags: %w", err)
	}

	e.flags = flags

	if e.blockSize, err = r.u32(); err != nil {
		return e, fmt.Errorf("record block size: %w", err)
	}

	return e, nil
}

// normalizeBlocks rebases legacy absolute block ranges onto the record start.
func (e *entryRecord) normalizeBlocks(caps Capabilities) error {
	if caps.HasRelativeOffsets || len(e.blocks) == 0 {
		return nil
	}

	for i, b := range e.blocks {
		if b.start < e.offset || b.end < b.start {
			return fmt.Errorf("%w: block %d range [%d..%d] before record offset %d",
				ErrFormat, i, b.start, b.end, e.offset)
		}

		e.blocks[i].start = b.start - e.offset
		e.blocks[i].end = b.end - e.offset
	}

	return nil
}

// encode writes the full record. dataRegion selects the copy in front of the
// payload, which stores a zero offset field; block ranges always rebase onto
// the real offset for revisions with absolute ranges.
func (e *entryRecord) encode(w *wireWriter, caps Capabilities, dataRegion bool) {
	offset := e.offset
	if dataRegion {
		offset = 0
	}

	w.u64(offset)
	w.u64(e.compressed)
	w.u64(e.uncompressed)

	if caps.MethodFieldBytes == 1 {
		w.u8(uint8(e.method))
	} else {
		w.u32(e.method)
	}

	if caps.HasTimestamp {
		w.u64(e.timestamp)
	}

	w.sha1(e.hash)

	if !caps.HasCompressionBlocks {
		return
	}

	if e.method != methodIDNone {
		w.u32(uint32(len(e.blocks)))

		for _, b := range e.blocks {
			start, end := b.start, b.end
			if !caps.HasRelativeOffsets {
				start += e.offset
				end += e.offset
			}

			w.u64(start)
			w.u64(end)
		}
	}

	w.u8(e.flags)
	w.u32(e.blockSize)
}

// Encoded record flag word layout (split index revisions).
const (
	encodedBlockSizeMask  = uint32(0x3f)
	encodedBlockSizeShift = 11
	encodedBlockSizeRaw   = uint32(0x3f)
	encodedCountShift     = 6
	encodedCountMask      = uint32(0xffff)
	encodedEncryptedBit   = uint32(1) << 22
	encodedMethodShift    = 23
	encodedMethodMask     = uint32(0x3f)
	encodedSizeU32Bit     = uint32(1) << 29
	encodedUncompU32Bit   = uint32(1) << 30
	encodedOffsetU32Bit   = uint32(1) << 31
)

// encodable reports whether the record fits the bit-packed encoded form.
// Oversized block tables and delete markers fall back to full records.
func (e *entryRecord) encodable() bool {
	if e.deleted() {
		return false
	}

	return uint32(len(e.blocks)) <= encodedCountMask
}

// decodeEncodedRecord reads one bit-packed record of the split index.
func decodeEncodedRecord(r *wireReader, caps Capabilities) (entryRecord, error) {
	var e entryRecord

	bits, err := r.u32()
	if err != nil {
		return e, fmt.Errorf("encoded flags: %w", err)
	}

	e.method = (bits >> encodedMethodShift) & encodedMethodMask
	if bits&encodedEncryptedBit != 0 {
		e.flags |= entryFlagEncrypted
	}

	blockCount := (bits >> encodedCountShift) & encodedCountMask

	e.blockSize = bits & encodedBlockSizeMask
	if e.blockSize == encodedBlockSizeRaw {
		if e.blockSize, err = r.u32(); err != nil {
			return e, fmt.Errorf("encoded block size: %w", err)
		}
	} else {
		e.blockSize <<= encodedBlockSizeShift
	}

	readVar := func(bit uint32) (uint64, error) {
		if bits&bit != 0 {
			v, err := r.u32()

			return uint64(v), err
		}

		return r.u64()
	}

	if e.offset, err = readVar(encodedOffsetU32Bit); err != nil {
		return e, fmt.Errorf("encoded offset: %w", err)
	}
	if e.uncompressed, err = readVar(encodedUncompU32Bit); err != nil {
		return e, fmt.Errorf("encoded uncompressed size: %w", err)
	}

	e.compressed = e.uncompressed
	if e.method != methodIDNone {
		if e.compressed, err = readVar(encodedSizeU32Bit); err != nil {
			return e, fmt.Errorf("encoded compressed size: %w", err)
		}
	}

	// Split index revisions always use record-relative block ranges, so the
	// first block starts right after the record header copy.
	base := uint64(recordSerializedSize(caps, e.method, int(blockCount)))

	switch {
	case blockCount == 1 && !e.encrypted():
		e.blocks = []compressionBlock{{start: base, end: base + e.compressed}}
	case blockCount > 0:
		e.blocks = make([]compressionBlock, 0, blockCount)
		next := base

		for i := uint32(0); i < blockCount; i++ {
			size, err := r.u32()
			if err != nil {
				return e, fmt.Errorf("encoded block %d size: %w", i, err)
			}

			e.blocks = append(e.blocks, compressionBlock{start: next, end: next + uint64(size)})

			step := uint64(size)
			if e.encrypted() {
				step = align16(step)
			}

			next += step
		}
	}

	return e, nil
}

// encodeEncodedRecord writes the bit-packed record form. Callers check
// encodable first.
func encodeEncodedRecord(w *wireWriter, e *entryRecord) {
	bits := uint32(0)

	bsField := (e.blockSize >> encodedBlockSizeShift) & encodedBlockSizeMask
	explicitBlockSize := bsField<<encodedBlockSizeShift != e.blockSize
	if explicitBlockSize {
		bsField = encodedBlockSizeRaw
	}

	bits |= bsField
	bits |= uint32(len(e.blocks)) << encodedCountShift

	if e.encrypted() {
		bits |= encodedEncryptedBit
	}

	bits |= (e.method & encodedMethodMask) << encodedMethodShift

	if e.compressed <= math.MaxUint32 {
		bits |= encodedSizeU32Bit
	}
	if e.uncompressed <= math.MaxUint32 {
		bits |= encodedUncompU32Bit
	}
	if e.offset <= math.MaxUint32 {
		bits |= encodedOffsetU32Bit
	}

	w.u32(bits)

	if explicitBlockSize {
		w.u32(e.blockSize)
	}

	writeVar := func(v uint64, bit uint32) {
		if bits&bit != 0 {
			w.u32(uint32(v))
		} else {
			w.u64(v)
		}
	}

	writeVar(e.offset, encodedOffsetU32Bit)
	writeVar(e.uncompressed, encodedUncompU32Bit)

	if e.method == methodIDNone {
		return
	}

	writeVar(e.compressed, encodedSizeU32Bit)

	// A single unencrypted block is implicit; readers reconstruct it from the
	// compressed size.
	if len(e.blocks) > 1 || (len(e.blocks) == 1 && e.encrypted()) {
		for _, b := range e.blocks {
			w.u32(uint32(b.end - b.start))
		}
	}
}
