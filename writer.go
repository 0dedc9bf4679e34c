// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"context"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // Pak format requires SHA1.
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// methodTable resolves method names to record identifiers for one Write pass.
// Name-slot revisions grow the table as methods are first used; older
// revisions carry the fixed legacy numbering and accept nothing outside it.
type methodTable struct {
	names   []string
	version Version
	slots   int
	fixed   bool
}

// newMethodTable builds the identifier table for the target revision.
func newMethodTable(v Version) *methodTable {
	caps := v.caps()
	if caps.NameSlots == 0 {
		return &methodTable{names: legacyMethods, version: v, fixed: true}
	}

	return &methodTable{version: v, slots: caps.NameSlots}
}

// id resolves a method name, registering it in a free name slot when the
// revision has one.
func (t *methodTable) id(name string) (uint32, error) {
	if id, ok := methodIDFor(name, t.names); ok {
		return id, nil
	}

	if t.fixed {
		return 0, fmt.Errorf("%w: version %s has no %q in its fixed method numbering",
			ErrUnsupportedFeature, t.version, name)
	}
	if len(t.names) >= t.slots {
		return 0, fmt.Errorf("%w: version %s has %d method name slots, all taken",
			ErrUnsupportedFeature, t.version, t.slots)
	}

	t.names = append(t.names, name)

	return uint32(len(t.names)), nil
}

// footerNames returns the name slots to record; legacy revisions record none.
func (t *methodTable) footerNames() []string {
	if t.fixed {
		return nil
	}

	return t.names
}

// offsetWriter tracks the absolute stream position of sequential writes.
type offsetWriter struct {
	w      io.Writer
	offset int64
}

func (w *offsetWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.offset += int64(n)

	return n, err
}

// writePlanItem is one entry scheduled for the payload pass.
type writePlanItem struct {
	slot *archiveEntry
	path string
}

// Write serializes the archive to out with default options.
func (a *Archive) Write(ctx context.Context, out io.Writer) (*WriteResult, error) {
	return a.WriteWithOptions(ctx, out, WriteOptions{})
}

// WriteFile serializes the archive into a new file at outPath.
func (a *Archive) WriteFile(ctx context.Context, outPath string, opts WriteOptions) (*WriteResult, error) {
	f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create pak file: %w", err)
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()

	res, err := a.WriteWithOptions(ctx, f, opts)
	if err != nil {
		return nil, err
	}

	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync pak file: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close pak file: %w", err)
	}
	f = nil

	return res, nil
}

// WriteWithOptions serializes the archive to out in two passes: every entry
// payload first, with offsets, sizes and hashes settling as bytes land, then
// the index region built from the settled records, then the footer locating
// the index. Re-opening the written stream reproduces the identical mapping.
func (a *Archive) WriteWithOptions(ctx context.Context, out io.Writer, opts WriteOptions) (*WriteResult, error) {
	startedAt := time.Now()

	if out == nil {
		return nil, ErrNilWriter
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()

	plan, cfg, err := a.snapshotForWrite()
	if err != nil {
		return nil, err
	}

	caps := cfg.version.caps()

	matcher, err := newCompressMatcher(opts.Compress, opts.CompressMatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("compile compress rules: %w", err)
	}

	dataCipher, indexCipher, err := writeCiphers(caps, cfg, &opts)
	if err != nil {
		return nil, err
	}

	table := newMethodTable(cfg.version)
	w := &offsetWriter{w: out}
	records := make(map[string]*entryRecord, len(plan))
	res := &WriteResult{}

	for _, item := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, modTime, err := a.entryContent(ctx, item.path, item.slot, cfg.key)
		if err != nil {
			return nil, err
		}

		rec, err := encodeEntryPayload(w, item.path, content, caps, cfg.codecs, table, &opts, matcher, dataCipher)
		if err != nil {
			return nil, err
		}

		if caps.HasTimestamp && !modTime.IsZero() {
			rec.timestamp = timestampFromTime(modTime)
		}

		records[item.path] = rec
		res.WrittenEntries++

		if rec.method != methodIDNone {
			res.CompressedEntries++
		} else if shouldCompress(&opts, matcher, item.path, len(content)) && opts.Compression != "" {
			res.SkippedCompressionEntries++
		}

		if opts.OnEntryDone != nil {
			opts.OnEntryDone(writtenEntryInfo(item.path, rec, table.names))
		}
	}

	res.DataSize = w.offset

	paths := make([]string, 0, len(plan))
	for _, item := range plan {
		paths = append(paths, item.path)
	}

	parts, err := buildIndex(paths, records, cfg.mount, cfg.seed, caps, indexCipher, uint64(w.offset))
	if err != nil {
		return nil, err
	}

	foot := footer{
		version:        cfg.version,
		names:          table.footerNames(),
		indexOffset:    uint64(w.offset),
		indexSize:      uint64(len(parts.primary.data)),
		indexHash:      parts.primary.hash,
		encryptedIndex: indexCipher != nil,
		keyGUID:        cfg.keyGUID,
	}

	if _, err := w.Write(parts.primary.data); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}

	for _, region := range parts.regions() {
		if _, err := w.Write(region); err != nil {
			return nil, fmt.Errorf("write index region: %w", err)
		}
	}

	res.IndexSize = w.offset - res.DataSize

	fw := &wireWriter{}
	if err := foot.encode(fw); err != nil {
		return nil, err
	}

	if _, err := w.Write(fw.bytesOut()); err != nil {
		return nil, fmt.Errorf("write footer: %w", err)
	}

	res.Duration = time.Since(startedAt)

	opts.Logger.Debug("wrote archive",
		"version", cfg.version,
		"entries", res.WrittenEntries,
		"data_size", res.DataSize,
		"index_size", res.IndexSize)

	return res, nil
}

// writeConfig is the archive-level state a Write pass works from.
type writeConfig struct {
	codecs  *Registry
	mount   string
	key     []byte
	version Version
	seed    uint64
	keyGUID [16]byte
}

// snapshotForWrite captures settings and the sorted entry plan under the read
// lock, so concurrent readers stay unblocked during the payload pass.
// Delete markers read from patch archives are not carried into a full rewrite.
func (a *Archive) snapshotForWrite() ([]writePlanItem, writeConfig, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, writeConfig{}, ErrClosed
	}

	cfg := writeConfig{
		codecs:  a.codecs,
		version: a.version,
		mount:   a.mount,
		seed:    a.seed,
		key:     a.key,
		keyGUID: a.keyGUID,
	}

	plan := make([]writePlanItem, 0, len(a.entries))
	for path, e := range a.entries {
		if e.record != nil && e.record.deleted() {
			continue
		}

		plan = append(plan, writePlanItem{path: path, slot: e})
	}

	sort.Slice(plan, func(i, j int) bool { return plan[i].path < plan[j].path })

	return plan, cfg, nil
}

// writeCiphers validates the encryption configuration against the target
// revision and builds the payload and index ciphers.
func writeCiphers(caps Capabilities, cfg writeConfig, opts *WriteOptions) (data, index cipher.Block, err error) {
	if opts.EncryptData && !caps.HasCompressionBlocks {
		return nil, nil, fmt.Errorf("%w: version %d records carry no encryption flag",
			ErrUnsupportedFeature, caps.Major)
	}
	if opts.EncryptIndex && !caps.HasIndexEncryption {
		return nil, nil, fmt.Errorf("%w: version %d footer carries no index encryption flag",
			ErrUnsupportedFeature, caps.Major)
	}

	if !opts.EncryptData && !opts.EncryptIndex {
		return nil, nil, nil
	}

	block, err := newCipher(cfg.key)
	if err != nil {
		return nil, nil, err
	}

	if opts.EncryptData {
		data = block
	}
	if opts.EncryptIndex {
		index = block
	}

	return data, index, nil
}

// entryContent materializes the raw bytes of one entry for the payload pass:
// staged entries are used as given, stream-backed ones are decoded through
// the normal read pipeline.
func (a *Archive) entryContent(ctx context.Context, path string, e *archiveEntry, key []byte) ([]byte, time.Time, error) {
	if e.record == nil {
		return e.pending, e.modTime, nil
	}

	content, err := a.decodeEntry(ctx, path, e.record, key)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("re-encode %s: %w", path, err)
	}

	var modTime time.Time
	if e.record.timestamp != 0 {
		modTime = time.Unix(int64(e.record.timestamp), 0)
	}

	return content, modTime, nil
}

// encodeEntryPayload compresses, encrypts and writes one entry payload with
// its leading record header copy, returning the settled record.
func encodeEntryPayload(w *offsetWriter, path string, content []byte, caps Capabilities,
	codecs *Registry, table *methodTable, opts *WriteOptions, matcher *compressMatcher,
	dataCipher cipher.Block) (*entryRecord, error) {
	rec := &entryRecord{
		offset:       uint64(w.offset),
		compressed:   uint64(len(content)),
		uncompressed: uint64(len(content)),
		hash:         sha1.Sum(content),
	}

	if dataCipher != nil {
		rec.flags |= entryFlagEncrypted
	}

	payload := content

	if opts.Compression != "" && shouldCompress(opts, matcher, path, len(content)) {
		compressed, err := compressEntry(rec, path, content, caps, codecs, table, opts)
		if err != nil {
			return nil, err
		}

		if compressed != nil {
			payload = compressed
		}
	}

	header := &wireWriter{}
	rec.encode(header, caps, true)

	if _, err := w.Write(header.bytesOut()); err != nil {
		return nil, fmt.Errorf("write %s record header: %w", path, err)
	}

	if err := writePayloadBlocks(w, rec, payload, dataCipher); err != nil {
		return nil, fmt.Errorf("write %s payload: %w", path, err)
	}

	return rec, nil
}

// compressEntry compresses content block by block and fills the record's
// method, sizes and block table. It returns nil when compression does not
// shrink the payload, leaving the record in its stored form.
func compressEntry(rec *entryRecord, path string, content []byte, caps Capabilities,
	codecs *Registry, table *methodTable, opts *WriteOptions) ([]byte, error) {
	if codecs == nil {
		codecs = defaultRegistry()
	}

	codec, err := codecs.lookup(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", path, err)
	}

	id, err := table.id(codec.Name())
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", path, err)
	}

	// Revisions without block tables compress the payload as one unit.
	blockSize := int(opts.CompressionBlockSize)
	if !caps.HasCompressionBlocks || blockSize > len(content) {
		blockSize = len(content)
	}

	chunks := make([][]byte, 0, (len(content)+blockSize-1)/blockSize)

	var total int
	for off := 0; off < len(content); off += blockSize {
		end := off + blockSize
		if end > len(content) {
			end = len(content)
		}

		chunk, err := codec.Compress(content[off:end])
		if errors.Is(err, errIncompressible) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("compress %s: %w", path, err)
		}

		chunks = append(chunks, chunk)
		total += len(chunk)
	}

	if total >= len(content) {
		return nil, nil
	}

	rec.method = id
	rec.compressed = uint64(total)

	if caps.HasCompressionBlocks {
		rec.blockSize = uint32(blockSize)
		rec.blocks = make([]compressionBlock, len(chunks))

		next := uint64(recordSerializedSize(caps, id, len(chunks)))
		for i, chunk := range chunks {
			rec.blocks[i] = compressionBlock{start: next, end: next + uint64(len(chunk))}

			step := uint64(len(chunk))
			if rec.encrypted() {
				step = align16(step)
			}

			next += step
		}
	}

	out := make([]byte, 0, total)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}

	return out, nil
}

// writePayloadBlocks writes the payload region of one record, padding and
// encrypting each block independently when the record is encrypted.
func writePayloadBlocks(w *offsetWriter, rec *entryRecord, payload []byte, block cipher.Block) error {
	if block == nil {
		_, err := w.Write(payload)

		return err
	}

	if len(rec.blocks) == 0 {
		_, err := w.Write(encryptBlocks(block, payload))

		return err
	}

	// Block ranges hold true lengths; the ciphertext of each block is padded
	// to the cipher granularity, which the range math already accounts for.
	var consumed uint64
	for _, b := range rec.blocks {
		n := b.end - b.start
		if _, err := w.Write(encryptBlocks(block, payload[consumed:consumed+n])); err != nil {
			return err
		}

		consumed += n
	}

	return nil
}

// writtenEntryInfo builds the progress view of one settled record.
func writtenEntryInfo(path string, rec *entryRecord, names []string) EntryInfo {
	info := EntryInfo{
		Path:             path,
		Offset:           rec.offset,
		CompressedSize:   rec.compressed,
		UncompressedSize: rec.uncompressed,
		Timestamp:        rec.timestamp,
		Hash:             rec.hash,
		Blocks:           len(rec.blocks),
		BlockSize:        rec.blockSize,
		Encrypted:        rec.encrypted(),
	}

	if name, err := methodNameFor(rec.method, names); err == nil {
		info.Method = name
	}

	return info
}

// timestampFromTime clamps a time to the record's unsigned seconds field.
func timestampFromTime(t time.Time) uint64 {
	u := t.Unix()
	if u < 0 {
		return 0
	}

	return uint64(u)
}

// AddInputs reads every input stream fully and stages its content, feeding a
// directory walk or any other (path, bytes) producer into the mapping.
func (a *Archive) AddInputs(ctx context.Context, inputs []Input) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if in.Open == nil {
			return fmt.Errorf("input %s: Open is nil", in.Path)
		}

		rc, err := in.Open()
		if err != nil {
			return fmt.Errorf("open input %s: %w", in.Path, err)
		}

		data, err := readInput(rc, in.SizeHint)
		closeErr := rc.Close()
		if err != nil {
			return fmt.Errorf("read input %s: %w", in.Path, err)
		}
		if closeErr != nil {
			return fmt.Errorf("close input %s: %w", in.Path, closeErr)
		}

		if err := a.AddFileWithOptions(in.Path, data, AddOptions{ModTime: in.ModTime}); err != nil {
			return err
		}
	}

	return nil
}

// readInput drains one input stream, presizing from the hint when available.
func readInput(r io.Reader, sizeHint int64) ([]byte, error) {
	var out []byte
	if sizeHint > 0 {
		out = make([]byte, 0, sizeHint)
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)

		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
