// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"fmt"
	"io"
	"os"
)

// ArchiveInfo is the container-level metadata view of one pak file.
type ArchiveInfo struct {
	// Version is the format revision in CLI form ("1".."11", "8a", "8b").
	Version string `json:"version" yaml:"version"`
	// MountPoint is the mount prefix recorded in the index.
	MountPoint string `json:"mount_point" yaml:"mount_point"`
	// MethodNames lists the compression method name slots of the footer;
	// empty on revisions with the fixed legacy numbering.
	MethodNames []string `json:"method_names,omitempty" yaml:"method_names,omitempty"`
	// EntryCount is the number of non-deleted entries.
	EntryCount int `json:"entry_count" yaml:"entry_count"`
	// IndexOffset is the byte position of the primary index region.
	IndexOffset uint64 `json:"index_offset" yaml:"index_offset"`
	// IndexSize is the primary index region size in bytes.
	IndexSize uint64 `json:"index_size" yaml:"index_size"`
	// PathHashSeed is the split-index path hash seed; zero otherwise.
	PathHashSeed uint64 `json:"path_hash_seed,omitempty" yaml:"path_hash_seed,omitempty"`
	// KeyGUID is the encryption key identifier; zero when absent.
	KeyGUID [16]byte `json:"key_guid" yaml:"key_guid"`
	// EncryptedIndex reports whether the index region is stored encrypted.
	EncryptedIndex bool `json:"encrypted_index" yaml:"encrypted_index"`
}

// ReadFooterInfo reads only the footer of a pak file: enough to report the
// version, index location and encryption flags without any key or index parse.
func ReadFooterInfo(path string) (ArchiveInfo, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return ArchiveInfo{}, err
	}
	defer func() { _ = f.Close() }()

	return ReadFooterInfoFromReaderAt(f, size)
}

// ReadFooterInfoFromReaderAt reads footer metadata from a random-access source.
func ReadFooterInfoFromReaderAt(ra io.ReaderAt, size int64) (ArchiveInfo, error) {
	if ra == nil {
		return ArchiveInfo{}, ErrNilReader
	}

	foot, err := readFooter(ra, size)
	if err != nil {
		return ArchiveInfo{}, err
	}

	return ArchiveInfo{
		Version:        foot.version.String(),
		MethodNames:    foot.names,
		IndexOffset:    foot.indexOffset,
		IndexSize:      foot.indexSize,
		KeyGUID:        foot.keyGUID,
		EncryptedIndex: foot.encryptedIndex,
	}, nil
}

// ReadInfo opens a pak file and returns full container metadata, index fields
// included. Encrypted indexes need the key in opts.
func ReadInfo(path string, opts ReaderOptions) (ArchiveInfo, error) {
	a, err := OpenWithOptions(path, opts)
	if err != nil {
		return ArchiveInfo{}, err
	}
	defer func() { _ = a.Close() }()

	return a.Info(), nil
}

// Info returns the container-level metadata of an open archive.
func (a *Archive) Info() ArchiveInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	info := ArchiveInfo{
		Version:      a.version.String(),
		MountPoint:   a.mount,
		EntryCount:   0,
		PathHashSeed: a.seed,
		KeyGUID:      a.keyGUID,
	}

	if a.version.caps().NameSlots > 0 {
		info.MethodNames = a.methodNames
	}

	for _, e := range a.entries {
		if e.record != nil && e.record.deleted() {
			continue
		}

		info.EntryCount++
	}

	return info
}

// ListPaths opens a pak file and returns its non-deleted paths without any
// payload reads.
func ListPaths(path string, opts ReaderOptions) ([]string, error) {
	a, err := OpenWithOptions(path, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	return a.List(), nil
}

// ListEntries opens a pak file and returns entry metadata without payload reads.
func ListEntries(path string, opts ReaderOptions) ([]EntryInfo, error) {
	a, err := OpenWithOptions(path, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	return a.Entries(), nil
}

// openFileWithSize opens a file and returns a handle plus current size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open pak: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat: %w", err)
	}

	return f, fi.Size(), nil
}
