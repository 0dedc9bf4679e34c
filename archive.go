// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// Archive is one pak container held in memory: decoded index metadata for
// entries backed by an open stream, plus raw payloads staged via AddFile.
// The same Archive serves reading an existing container and assembling a
// new one; staged entries shadow stream-backed ones until Write.
type Archive struct {
	// ra is the underlying random-access source for payload reads.
	ra io.ReaderAt
	// file is set when Archive owns an *os.File opened via Open.
	file *os.File
	// codecs resolves compression method names to codec implementations.
	codecs *Registry
	// log receives decode and write debug events.
	log *slog.Logger
	// size is total source size in bytes.
	size int64
	// mu guards the mapping and archive-level settings.
	mu sync.RWMutex
	// entries maps normalized archive paths to their slot.
	entries map[string]*archiveEntry
	// methodNames is the method identifier table resolved at open: footer
	// name slots on revisions that carry them, the fixed legacy table
	// otherwise.
	methodNames []string
	// srcVersion is the revision the source stream was decoded with. It pins
	// record layout math for payload reads even after SetVersion retargets
	// the next Write.
	srcVersion Version
	// mount is the mount point recorded in the index.
	mount string
	// key is the AES key; nil selects the all-zero placeholder.
	key []byte
	// version is the format revision used at next Write.
	version Version
	// seed is the path hash seed.
	seed uint64
	// keyGUID identifies the encryption key in the footer.
	keyGUID [16]byte
	// closed reports whether Close was already called.
	closed bool
}

// archiveEntry is one mapping slot: stream-backed record metadata or staged
// raw bytes, never both.
type archiveEntry struct {
	// record is decoded index metadata for stream-backed entries.
	record *entryRecord
	// pending holds staged raw content until Write. The slice is retained as
	// given to AddFile, not copied.
	pending []byte
	// modTime is an optional timestamp, recorded only by the first revision.
	modTime time.Time
}

// New returns an empty Archive targeting the latest format revision.
func New() *Archive {
	return &Archive{
		entries: make(map[string]*archiveEntry),
		codecs:  defaultRegistry(),
		log:     discardLogger(),
		version: VersionLatest,
		mount:   DefaultMountPoint,
	}
}

// Version returns the format revision used at next Write.
func (a *Archive) Version() Version {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.version
}

// SetVersion selects the format revision used at next Write.
func (a *Archive) SetVersion(v Version) error {
	if !v.valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.version = v
	return nil
}

// MountPoint returns the mount point recorded in the index.
func (a *Archive) MountPoint() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.mount
}

// SetMountPoint sets the mount point recorded at next Write.
func (a *Archive) SetMountPoint(mount string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mount = mount
}

// PathHashSeed returns the path hash seed.
func (a *Archive) PathHashSeed() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.seed
}

// SetPathHashSeed sets the path hash seed used at next Write.
func (a *Archive) SetPathHashSeed(seed uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seed = seed
}

// KeyGUID returns the encryption key identifier from the footer; zero for
// archives built from scratch or revisions without one.
func (a *Archive) KeyGUID() [16]byte {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.keyGUID
}

// SetKey sets the AES key used for encrypted payload and index regions.
// A nil key restores the all-zero placeholder; any other length than 32
// bytes is rejected.
func (a *Archive) SetKey(key []byte) error {
	if key != nil && len(key) != aesKeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), aesKeySize)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if key == nil {
		a.key = nil
		return nil
	}

	a.key = make([]byte, aesKeySize)
	copy(a.key, key)
	return nil
}

// Count returns the number of index mappings, delete markers included.
func (a *Archive) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.entries)
}

// List returns every non-deleted path in canonical (sorted) order.
func (a *Archive) List() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	paths := make([]string, 0, len(a.entries))
	for path, e := range a.entries {
		if e.record != nil && e.record.deleted() {
			continue
		}

		paths = append(paths, path)
	}

	sort.Strings(paths)
	return paths
}

// Entries returns metadata for every non-deleted entry in canonical order.
// Staged entries report their staged size; offsets and hashes settle at Write.
func (a *Archive) Entries() []EntryInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	paths := make([]string, 0, len(a.entries))
	for path, e := range a.entries {
		if e.record != nil && e.record.deleted() {
			continue
		}

		paths = append(paths, path)
	}

	sort.Strings(paths)

	out := make([]EntryInfo, len(paths))
	for i, path := range paths {
		out[i] = a.entryInfoLocked(path, a.entries[path])
	}

	return out
}

// Stat returns metadata for one entry.
func (a *Archive) Stat(path string) (EntryInfo, error) {
	lookup := NormalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.entries[lookup]
	if !ok || (e.record != nil && e.record.deleted()) {
		return EntryInfo{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	return a.entryInfoLocked(lookup, e), nil
}

// entryInfoLocked builds the public view of one slot. Callers hold the lock.
func (a *Archive) entryInfoLocked(path string, e *archiveEntry) EntryInfo {
	if e.record == nil {
		return EntryInfo{
			Path:             path,
			CompressedSize:   uint64(len(e.pending)),
			UncompressedSize: uint64(len(e.pending)),
		}
	}

	rec := e.record
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
		Deleted:          rec.deleted(),
	}

	if name, err := methodNameFor(rec.method, a.methodNames); err == nil {
		info.Method = name
	} else {
		info.Method = fmt.Sprintf("unknown-%d", rec.method)
	}

	return info
}

// AddFile stages content for path, replacing any existing mapping. The data
// slice is retained until Write.
func (a *Archive) AddFile(path string, data []byte) error {
	return a.AddFileWithOptions(path, data, AddOptions{})
}

// AddFileWithOptions stages content for path with explicit options.
func (a *Archive) AddFileWithOptions(path string, data []byte, opts AddOptions) error {
	normalized, err := normalizeEntryPath(path)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	a.entries[normalized] = &archiveEntry{
		pending: data,
		modTime: opts.ModTime,
	}

	return nil
}

// RemoveFile drops the mapping for path and reports whether one existed.
func (a *Archive) RemoveFile(path string) bool {
	lookup := NormalizePath(path)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.entries[lookup]; !ok {
		return false
	}

	delete(a.entries, lookup)
	return true
}

// Close closes the underlying file if the archive owns one. Payload access
// after Close fails with ErrClosed.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true
	if a.file != nil {
		return a.file.Close()
	}

	return nil
}

// resolveEntry looks up one live slot for payload access and snapshots the
// key, the only archive-level setting a concurrent mutator may change.
func (a *Archive) resolveEntry(path string) (*archiveEntry, []byte, error) {
	lookup := NormalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, nil, ErrClosed
	}

	e, ok := a.entries[lookup]
	if !ok || (e.record != nil && e.record.deleted()) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	return e, a.key, nil
}
