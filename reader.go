// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"context"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // Pak format requires SHA1.
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Open opens a pak file by path and parses footer and index structures.
func Open(path string) (*Archive, error) {
	return OpenWithOptions(path, ReaderOptions{})
}

// OpenWithOptions opens a pak file by path and parses footer and index
// structures using explicit reader options.
func OpenWithOptions(path string, opts ReaderOptions) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pak: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	a, err := NewArchiveFromReaderAtWithOptions(f, fi.Size(), opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	a.file = f
	return a, nil
}

// NewArchiveFromReaderAt parses a pak container from an existing ReaderAt
// and known size.
func NewArchiveFromReaderAt(ra io.ReaderAt, size int64) (*Archive, error) {
	return NewArchiveFromReaderAtWithOptions(ra, size, ReaderOptions{})
}

// NewArchiveFromReaderAtWithOptions parses a pak container from an existing
// ReaderAt and known size using explicit reader options. The mapping is fully
// decoded before the Archive is returned; payloads stay on the source stream
// until read.
func NewArchiveFromReaderAtWithOptions(ra io.ReaderAt, size int64, opts ReaderOptions) (*Archive, error) {
	opts.applyDefaults()

	if ra == nil {
		return nil, ErrNilReader
	}
	if len(opts.Key) != 0 && len(opts.Key) != aesKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(opts.Key), aesKeySize)
	}

	f, err := readFooter(ra, size)
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug("decoded footer",
		"version", f.version,
		"index_offset", f.indexOffset,
		"index_size", f.indexSize,
		"encrypted_index", f.encryptedIndex)

	idx, err := readIndex(ra, &f, activeKey(opts.Key), opts.Logger)
	if err != nil {
		return nil, err
	}

	names := f.names
	if f.version.caps().NameSlots == 0 {
		names = legacyMethods
	}

	entries := make(map[string]*archiveEntry, len(idx.entries))
	for path, rec := range idx.entries {
		entries[path] = &archiveEntry{record: rec}
	}

	a := &Archive{
		ra:          ra,
		codecs:      opts.Codecs,
		log:         opts.Logger,
		size:        size,
		entries:     entries,
		methodNames: names,
		srcVersion:  f.version,
		mount:       idx.mount,
		version:     f.version,
		seed:        idx.seed,
		keyGUID:     f.keyGUID,
	}

	if len(opts.Key) != 0 {
		a.key = make([]byte, aesKeySize)
		copy(a.key, opts.Key)
	}

	return a, nil
}

// ReadFile returns the full decoded content of one entry.
func (a *Archive) ReadFile(path string) ([]byte, error) {
	return a.ReadFileContext(context.Background(), path)
}

// ReadFileContext returns the full decoded content of one entry: payload
// blocks are read from the source, decrypted and decompressed as the record
// demands, and the result is verified against the record digest.
func (a *Archive) ReadFileContext(ctx context.Context, path string) ([]byte, error) {
	if a == nil {
		return nil, ErrNilReader
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e, key, err := a.resolveEntry(path)
	if err != nil {
		return nil, err
	}

	if e.record == nil {
		out := make([]byte, len(e.pending))
		copy(out, e.pending)
		return out, nil
	}

	return a.decodeEntry(ctx, path, e.record, key)
}

// decodeEntry runs the block pipeline for one stream-backed record.
func (a *Archive) decodeEntry(ctx context.Context, path string, rec *entryRecord, key []byte) ([]byte, error) {
	if a.ra == nil {
		return nil, ErrNilReader
	}

	pipe, err := a.newEntryPipeline(path, rec, key)
	if err != nil {
		return nil, err
	}

	outLen, err := checkedInt(rec.uncompressed)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", path, err)
	}

	out := make([]byte, outLen)

	if len(pipe.plan) > 1 {
		err = pipe.decodeParallel(ctx, out)
	} else {
		err = pipe.decodeSequential(ctx, out)
	}
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", path, err)
	}

	if sha1.Sum(out) != rec.hash {
		if rec.encrypted() {
			return nil, fmt.Errorf("%w: entry %s content hash mismatch (wrong or missing encryption key?)",
				ErrIntegrity, path)
		}

		return nil, fmt.Errorf("%w: entry %s content hash mismatch", ErrIntegrity, path)
	}

	return out, nil
}

// entryPipeline is everything one payload decode needs, resolved up front so
// block workers share no archive state.
type entryPipeline struct {
	ra        io.ReaderAt
	codec     Codec
	block     cipher.Block
	plan      []blockPlan
	encrypted bool
}

// blockPlan describes one independent decode unit of an entry payload.
type blockPlan struct {
	// diskOffset is the absolute offset of the stored block.
	diskOffset int64
	// outOffset is the block position in the decoded payload.
	outOffset int64
	// readLen is the stored length including encryption padding.
	readLen int
	// dataLen is the true stored length.
	dataLen int
	// outLen is the decoded length.
	outLen int
}

// newEntryPipeline resolves the codec, cipher and block layout for a record.
func (a *Archive) newEntryPipeline(path string, rec *entryRecord, key []byte) (*entryPipeline, error) {
	name, err := methodNameFor(rec.method, a.methodNames)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", path, err)
	}

	pipe := &entryPipeline{ra: a.ra, encrypted: rec.encrypted()}

	if name != "" {
		if pipe.codec, err = a.codecs.lookup(name); err != nil {
			return nil, fmt.Errorf("entry %s: %w", path, err)
		}
	}

	if pipe.encrypted {
		if pipe.block, err = newCipher(activeKey(key)); err != nil {
			return nil, fmt.Errorf("entry %s: %w", path, err)
		}
	}

	if pipe.plan, err = entryBlockPlan(rec, a.srcVersion.caps(), a.size); err != nil {
		return nil, fmt.Errorf("entry %s: %w", path, err)
	}

	return pipe, nil
}

// entryBlockPlan lays out the decode units of one record and validates them
// against the source bounds.
func entryBlockPlan(rec *entryRecord, caps Capabilities, sourceSize int64) ([]blockPlan, error) {
	if len(rec.blocks) == 0 {
		return singleBlockPlan(rec, caps, sourceSize)
	}

	if rec.blockSize == 0 && len(rec.blocks) > 1 {
		return nil, fmt.Errorf("%w: %d compression blocks with zero block size", ErrFormat, len(rec.blocks))
	}

	plan := make([]blockPlan, len(rec.blocks))
	remaining := rec.uncompressed

	for i, b := range rec.blocks {
		if b.end < b.start {
			return nil, fmt.Errorf("%w: block %d range [%d, %d)", ErrFormat, i, b.start, b.end)
		}

		outLen := uint64(rec.blockSize)
		if i == len(rec.blocks)-1 || outLen > remaining {
			outLen = remaining
		}
		if outLen == 0 && b.end != b.start {
			return nil, fmt.Errorf("%w: block %d has data beyond declared size", ErrFormat, i)
		}

		p, err := newBlockPlan(rec.offset+b.start, b.end-b.start, outLen, rec.encrypted(), sourceSize)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}

		p.outOffset = int64(rec.uncompressed - remaining)
		plan[i] = p
		remaining -= outLen
	}

	if remaining != 0 {
		return nil, fmt.Errorf("%w: blocks cover %d of %d bytes",
			ErrFormat, rec.uncompressed-remaining, rec.uncompressed)
	}

	return plan, nil
}

// singleBlockPlan covers stored payloads and whole-payload compression of
// revisions without block tables.
func singleBlockPlan(rec *entryRecord, caps Capabilities, sourceSize int64) ([]blockPlan, error) {
	p, err := newBlockPlan(rec.offset+uint64(rec.headerSize(caps)), rec.compressed, rec.uncompressed,
		rec.encrypted(), sourceSize)
	if err != nil {
		return nil, err
	}

	return []blockPlan{p}, nil
}

// newBlockPlan validates one decode unit against the source bounds.
func newBlockPlan(diskOffset, dataLen, outLen uint64, encrypted bool, sourceSize int64) (blockPlan, error) {
	readLen := dataLen
	if encrypted {
		readLen = align16(dataLen)
	}

	if diskOffset > uint64(math.MaxInt64) || readLen > uint64(math.MaxInt64)-diskOffset {
		return blockPlan{}, fmt.Errorf("%w: block offset overflows", ErrFormat)
	}
	if int64(diskOffset)+int64(readLen) > sourceSize {
		return blockPlan{}, fmt.Errorf("%w: block [%d, %d) outside %d byte source",
			ErrFormat, diskOffset, diskOffset+readLen, sourceSize)
	}

	read, err := checkedInt(readLen)
	if err != nil {
		return blockPlan{}, err
	}

	data, err := checkedInt(dataLen)
	if err != nil {
		return blockPlan{}, err
	}

	out, err := checkedInt(outLen)
	if err != nil {
		return blockPlan{}, err
	}

	return blockPlan{
		diskOffset: int64(diskOffset),
		readLen:    read,
		dataLen:    data,
		outLen:     out,
	}, nil
}

// decodeSequential decodes the plan one block at a time into out.
func (p *entryPipeline) decodeSequential(ctx context.Context, out []byte) error {
	for i := range p.plan {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.decodeBlockInto(i, out); err != nil {
			return err
		}
	}

	return nil
}

// decodeParallel fans block decoding out over a bounded worker group. Blocks
// are independent, so completion order does not matter.
func (p *entryPipeline) decodeParallel(ctx context.Context, out []byte) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range p.plan {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			return p.decodeBlockInto(i, out)
		})
	}

	return g.Wait()
}

// decodeBlockInto decodes one block into its slice of the decoded payload.
func (p *entryPipeline) decodeBlockInto(i int, out []byte) error {
	chunk, err := p.decodeBlock(i)
	if err != nil {
		return err
	}

	copy(out[p.plan[i].outOffset:], chunk)
	return nil
}

// decodeBlock reads, decrypts and decompresses one block of the plan.
func (p *entryPipeline) decodeBlock(i int) ([]byte, error) {
	plan := p.plan[i]

	buf := make([]byte, plan.readLen)
	if _, err := p.ra.ReadAt(buf, plan.diskOffset); err != nil {
		return nil, fmt.Errorf("read block %d: %w", i, err)
	}

	if p.block != nil {
		if err := decryptBlocks(p.block, buf); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}

	data := buf[:plan.dataLen]
	if p.codec == nil {
		if len(data) != plan.outLen {
			return nil, fmt.Errorf("%w: stored block %d is %d bytes, want %d",
				ErrFormat, i, len(data), plan.outLen)
		}

		return data, nil
	}

	decoded, err := p.codec.Decompress(data, plan.outLen)
	if err != nil {
		if p.encrypted {
			return nil, fmt.Errorf("%w: block %d does not decompress (wrong or missing encryption key?)",
				ErrIntegrity, i)
		}

		return nil, fmt.Errorf("decompress block %d: %w", i, err)
	}

	return decoded, nil
}

// checkedInt converts an unsigned wire size to int with a platform-safe
// overflow check.
func checkedInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("%w: size %d overflows", ErrFormat, v)
	}

	return int(v), nil
}
