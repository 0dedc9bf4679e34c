// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // Index format requires SHA1.
	"fmt"
	"io"
	"log/slog"
	"sort"
)

// decodedIndex carries everything the index region holds.
type decodedIndex struct {
	entries map[string]*entryRecord
	phi     map[uint64]int32
	mount   string
	seed    uint64
}

// blobLocation points at one sealed index region on disk.
type blobLocation struct {
	offset uint64
	size   uint64
	hash   [shaSize]byte
	has    bool
}

// readIndex reads, decrypts, verifies and parses the index region located by
// the footer.
func readIndex(ra io.ReaderAt, f *footer, key []byte, log *slog.Logger) (decodedIndex, error) {
	var block cipher.Block

	if f.encryptedIndex {
		var err error
		if block, err = newCipher(key); err != nil {
			return decodedIndex{}, err
		}
	}

	primary, err := readIndexBlob(ra, blobLocation{
		offset: f.indexOffset,
		size:   f.indexSize,
		hash:   f.indexHash,
	}, block)
	if err != nil {
		return decodedIndex{}, fmt.Errorf("primary index: %w", err)
	}

	caps := f.version.caps()
	if !caps.HasPathHashIndex {
		return parseLegacyIndex(primary, caps, log)
	}

	return parseSplitIndex(ra, primary, caps, block, log)
}

// readIndexBlob fetches one index region, decrypts it when the archive index
// is encrypted, and verifies its digest. Verification precedes parsing, so a
// wrong key surfaces here and not as a confusing parse failure.
func readIndexBlob(ra io.ReaderAt, loc blobLocation, block cipher.Block) ([]byte, error) {
	buf := make([]byte, loc.size)
	if _, err := ra.ReadAt(buf, int64(loc.offset)); err != nil {
		return nil, fmt.Errorf("read %d bytes at %d: %w", loc.size, loc.offset, err)
	}

	if block != nil {
		if err := decryptBlocks(block, buf); err != nil {
			return nil, err
		}
	}

	if sha1.Sum(buf) != loc.hash {
		if block != nil {
			return nil, fmt.Errorf("%w: index hash mismatch (wrong or missing encryption key?)", ErrIntegrity)
		}

		return nil, fmt.Errorf("%w: index hash mismatch", ErrIntegrity)
	}

	return buf, nil
}

// parseLegacyIndex parses the sequential (path, record) list of revisions
// before the split layout.
func parseLegacyIndex(blob []byte, caps Capabilities, log *slog.Logger) (decodedIndex, error) {
	idx := decodedIndex{entries: make(map[string]*entryRecord)}
	r := newWireReader(blob)

	var err error
	if idx.mount, err = r.str(); err != nil {
		return idx, fmt.Errorf("index mount point: %w", err)
	}

	count, err := r.u32()
	if err != nil {
		return idx, fmt.Errorf("index entry count: %w", err)
	}
	if int(count) > r.remaining()/minRecordWire {
		return idx, fmt.Errorf("%w: entry count %d exceeds index size", ErrFormat, count)
	}

	for i := uint32(0); i < count; i++ {
		path, err := r.str()
		if err != nil {
			return idx, fmt.Errorf("entry %d path: %w", i, err)
		}

		rec, err := decodeRecord(r, caps)
		if err != nil {
			return idx, fmt.Errorf("entry %q: %w", path, err)
		}
		if err := rec.normalizeBlocks(caps); err != nil {
			return idx, fmt.Errorf("entry %q: %w", path, err)
		}

		idx.entries[path] = &rec
	}

	log.Debug("decoded legacy index", "entries", len(idx.entries), "mount", idx.mount)

	return idx, nil
}

// minRecordWire is the smallest possible record wire size, used for count
// sanity checks before allocation.
const minRecordWire = 8 + 8 + 8 + 1 + shaSize

// splitIndexHeader is the fixed part of the split primary blob.
type splitIndexHeader struct {
	encoded    []byte
	nonEncoded []entryRecord
	mount      string
	phi        blobLocation
	fdi        blobLocation
	seed       uint64
	count      uint32
}

// parseSplitPrimary parses the split layout's primary blob.
func parseSplitPrimary(blob []byte, caps Capabilities) (splitIndexHeader, error) {
	var h splitIndexHeader

	r := newWireReader(blob)

	var err error
	if h.mount, err = r.str(); err != nil {
		return h, fmt.Errorf("index mount point: %w", err)
	}
	if h.count, err = r.u32(); err != nil {
		return h, fmt.Errorf("index entry count: %w", err)
	}
	if h.seed, err = r.u64(); err != nil {
		return h, fmt.Errorf("path hash seed: %w", err)
	}

	for _, loc := range []*blobLocation{&h.phi, &h.fdi} {
		present, err := r.u32()
		if err != nil {
			return h, fmt.Errorf("index section flag: %w", err)
		}
		if present == 0 {
			continue
		}

		loc.has = true

		if loc.offset, err = r.u64(); err != nil {
			return h, fmt.Errorf("index section offset: %w", err)
		}
		if loc.size, err = r.u64(); err != nil {
			return h, fmt.Errorf("index section size: %w", err)
		}
		if loc.hash, err = r.sha1(); err != nil {
			return h, fmt.Errorf("index section hash: %w", err)
		}
	}

	encodedSize, err := r.u32()
	if err != nil {
		return h, fmt.Errorf("encoded records size: %w", err)
	}
	if h.encoded, err = r.take(int(encodedSize)); err != nil {
		return h, fmt.Errorf("encoded records: %w", err)
	}

	nonEncoded, err := r.u32()
	if err != nil {
		return h, fmt.Errorf("non-encoded record count: %w", err)
	}
	if int(nonEncoded) > r.remaining()/minRecordWire {
		return h, fmt.Errorf("%w: non-encoded count %d exceeds index size", ErrFormat, nonEncoded)
	}

	h.nonEncoded = make([]entryRecord, nonEncoded)
	for i := range h.nonEncoded {
		if h.nonEncoded[i], err = decodeRecord(r, caps); err != nil {
			return h, fmt.Errorf("non-encoded record %d: %w", i, err)
		}
	}

	return h, nil
}

// parseSplitIndex parses the split layout: primary blob, then the full
// directory index (authoritative) and the path hash index (accelerator).
func parseSplitIndex(ra io.ReaderAt, primary []byte, caps Capabilities, block cipher.Block, log *slog.Logger) (decodedIndex, error) {
	h, err := parseSplitPrimary(primary, caps)
	if err != nil {
		return decodedIndex{}, err
	}

	idx := decodedIndex{
		entries: make(map[string]*entryRecord),
		mount:   h.mount,
		seed:    h.seed,
	}

	if !h.fdi.has {
		return idx, fmt.Errorf("%w: index has no full directory index", ErrFormat)
	}

	fdiBlob, err := readIndexBlob(ra, h.fdi, block)
	if err != nil {
		return idx, fmt.Errorf("directory index: %w", err)
	}

	if err := parseDirectoryIndex(fdiBlob, &h, caps, &idx); err != nil {
		return idx, err
	}

	if int(h.count) != len(idx.entries) {
		log.Warn("index entry count mismatch", "declared", h.count, "directory", len(idx.entries))
	}

	// The path hash index is only an accelerator; when it is missing or does
	// not survive verification the directory index already has the truth.
	if h.phi.has {
		phiBlob, err := readIndexBlob(ra, h.phi, block)
		if err != nil {
			log.Warn("dropping unreadable path hash index", "error", err)
		} else if idx.phi, err = parsePathHashIndex(phiBlob); err != nil {
			log.Warn("dropping malformed path hash index", "error", err)
		}
	}

	log.Debug("decoded split index",
		"entries", len(idx.entries), "mount", idx.mount, "seed", idx.seed, "hashed", len(idx.phi))

	return idx, nil
}

// parseDirectoryIndex walks directory and file maps, reconstructing full
// paths and resolving each location into a record.
func parseDirectoryIndex(blob []byte, h *splitIndexHeader, caps Capabilities, idx *decodedIndex) error {
	r := newWireReader(blob)

	dirCount, err := r.u32()
	if err != nil {
		return fmt.Errorf("directory count: %w", err)
	}

	for d := uint32(0); d < dirCount; d++ {
		dir, err := r.str()
		if err != nil {
			return fmt.Errorf("directory %d name: %w", d, err)
		}

		fileCount, err := r.u32()
		if err != nil {
			return fmt.Errorf("directory %q file count: %w", dir, err)
		}

		for i := uint32(0); i < fileCount; i++ {
			name, err := r.str()
			if err != nil {
				return fmt.Errorf("directory %q file %d: %w", dir, i, err)
			}

			location, err := r.i32()
			if err != nil {
				return fmt.Errorf("file %q location: %w", name, err)
			}

			path := joinIndexPath(dir, name)

			rec, err := h.resolveRecord(location, caps)
			if err != nil {
				return fmt.Errorf("file %q: %w", path, err)
			}

			idx.entries[path] = rec
		}
	}

	return nil
}

// resolveRecord materializes the record behind one directory index location:
// non-negative offsets decode from the encoded blob, negative ones select a
// non-encoded full record.
func (h *splitIndexHeader) resolveRecord(location int32, caps Capabilities) (*entryRecord, error) {
	if location >= 0 {
		if int(location) >= len(h.encoded) {
			return nil, fmt.Errorf("%w: encoded offset %d outside %d byte blob",
				ErrFormat, location, len(h.encoded))
		}

		r := newWireReader(h.encoded[location:])

		rec, err := decodeEncodedRecord(r, caps)
		if err != nil {
			return nil, err
		}

		return &rec, nil
	}

	i := int(-location) - 1
	if i >= len(h.nonEncoded) {
		return nil, fmt.Errorf("%w: non-encoded record %d of %d", ErrFormat, i, len(h.nonEncoded))
	}

	return &h.nonEncoded[i], nil
}

// parsePathHashIndex decodes hash → location pairs.
func parsePathHashIndex(blob []byte) (map[uint64]int32, error) {
	r := newWireReader(blob)

	count, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("path hash count: %w", err)
	}
	if int(count) > r.remaining()/12 {
		return nil, fmt.Errorf("%w: path hash count %d exceeds blob size", ErrFormat, count)
	}

	phi := make(map[uint64]int32, count)

	for i := uint32(0); i < count; i++ {
		hash, err := r.u64()
		if err != nil {
			return nil, fmt.Errorf("path hash %d: %w", i, err)
		}

		location, err := r.i32()
		if err != nil {
			return nil, fmt.Errorf("path hash %d location: %w", i, err)
		}

		phi[hash] = location
	}

	return phi, nil
}

// sealedBlob is one index region ready for disk.
type sealedBlob struct {
	data []byte
	hash [shaSize]byte
}

// sealIndexBlob hashes and optionally encrypts one index region. The digest
// covers the padded plaintext so readers can verify right after decrypting.
func sealIndexBlob(data []byte, block cipher.Block) sealedBlob {
	if block == nil {
		return sealedBlob{data: data, hash: sha1.Sum(data)}
	}

	padded := make([]byte, align16(uint64(len(data))))
	copy(padded, data)

	return sealedBlob{data: encryptBlocks(block, padded), hash: sha1.Sum(padded)}
}

// encodedIndexParts carries all serialized index regions for the write path.
type encodedIndexParts struct {
	primary sealedBlob
	phi     sealedBlob
	fdi     sealedBlob
}

// regions returns the disk-order regions after the primary blob.
func (p *encodedIndexParts) regions() [][]byte {
	if p.phi.data == nil {
		return nil
	}

	return [][]byte{p.phi.data, p.fdi.data}
}

// buildIndex serializes the index for the given revision. indexOffset is the
// absolute position the primary blob will land at, needed by the split layout
// to record the follow-up region offsets.
func buildIndex(paths []string, entries map[string]*entryRecord, mount string, seed uint64,
	caps Capabilities, block cipher.Block, indexOffset uint64) (encodedIndexParts, error) {
	if !caps.HasPathHashIndex {
		w := &wireWriter{}
		w.str(mount)
		w.u32(uint32(len(paths)))

		for _, path := range paths {
			w.str(path)
			entries[path].encode(w, caps, false)
		}

		return encodedIndexParts{primary: sealIndexBlob(w.bytesOut(), block)}, nil
	}

	return buildSplitIndex(paths, entries, mount, seed, caps, block, indexOffset)
}

// buildSplitIndex serializes the split layout: encoded records, path hash
// index, full directory index, and the primary blob tying them together.
func buildSplitIndex(paths []string, entries map[string]*entryRecord, mount string, seed uint64,
	caps Capabilities, block cipher.Block, indexOffset uint64) (encodedIndexParts, error) {
	encW := &wireWriter{}
	locations := make(map[string]int32, len(paths))

	var nonEncoded []*entryRecord

	for _, path := range paths {
		rec := entries[path]
		if rec.encodable() {
			locations[path] = int32(encW.len())
			encodeEncodedRecord(encW, rec)

			continue
		}

		locations[path] = int32(-(len(nonEncoded) + 1))
		nonEncoded = append(nonEncoded, rec)
	}

	encoded := encW.bytesOut()

	phiW := &wireWriter{}
	phiW.u32(uint32(len(paths)))

	for _, path := range paths {
		phiW.u64(HashPath(path, seed))
		phiW.i32(locations[path])
	}

	phiW.u32(0)

	fdiW := &wireWriter{}
	writeDirectoryIndex(fdiW, paths, locations)

	phi := sealIndexBlob(phiW.bytesOut(), block)
	fdi := sealIndexBlob(fdiW.bytesOut(), block)

	// The primary blob length is fixed by its field set, so the follow-up
	// region offsets are known before serialization.
	primaryLen := serializedStringSize(mount) + 4 + 8 + (4 + 36) + (4 + 36) + 4 + len(encoded) + 4
	for _, rec := range nonEncoded {
		primaryLen += int(recordSerializedSize(caps, rec.method, len(rec.blocks)))
	}

	primaryDisk := uint64(primaryLen)
	if block != nil {
		primaryDisk = align16(primaryDisk)
	}

	phiOffset := indexOffset + primaryDisk
	fdiOffset := phiOffset + uint64(len(phi.data))

	w := &wireWriter{}
	w.str(mount)
	w.u32(uint32(len(paths)))
	w.u64(seed)

	w.u32(1)
	w.u64(phiOffset)
	w.u64(uint64(len(phi.data)))
	w.sha1(phi.hash)

	w.u32(1)
	w.u64(fdiOffset)
	w.u64(uint64(len(fdi.data)))
	w.sha1(fdi.hash)

	w.u32(uint32(len(encoded)))
	w.raw(encoded)

	w.u32(uint32(len(nonEncoded)))
	for _, rec := range nonEncoded {
		rec.encode(w, caps, false)
	}

	if w.len() != primaryLen {
		return encodedIndexParts{}, fmt.Errorf("%w: primary index is %d bytes, planned %d",
			ErrFormat, w.len(), primaryLen)
	}

	return encodedIndexParts{
		primary: sealIndexBlob(w.bytesOut(), block),
		phi:     phi,
		fdi:     fdi,
	}, nil
}

// writeDirectoryIndex groups paths into the directory → file map, including
// every parent directory, in sorted order for deterministic output.
func writeDirectoryIndex(w *wireWriter, paths []string, locations map[string]int32) {
	type dirFiles map[string]int32

	tree := make(map[string]dirFiles)

	ensure := func(dir string) {
		for {
			if _, ok := tree[dir]; ok {
				return
			}

			tree[dir] = make(dirFiles)
			if dir == "/" {
				return
			}

			dir, _ = splitPathChild(dir)
		}
	}

	for _, path := range paths {
		dir, child := splitPathChild(path)
		ensure(dir)
		tree[dir][child] = locations[path]
	}

	dirs := make([]string, 0, len(tree))
	for dir := range tree {
		dirs = append(dirs, dir)
	}

	sort.Strings(dirs)

	w.u32(uint32(len(dirs)))

	for _, dir := range dirs {
		files := tree[dir]

		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}

		sort.Strings(names)

		w.str(dir)
		w.u32(uint32(len(names)))

		for _, name := range names {
			w.str(name)
			w.i32(files[name])
		}
	}
}
