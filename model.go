// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"io"
	"log/slog"
	"time"

	"github.com/woozymasta/pathrules"
)

// Internal binary layout sizes.
const (
	shaSize = 20 // SHA1 digest size in footer, index and records
)

// Default archive parameters.
const (
	// DefaultMountPoint is the mount prefix recorded when none is set.
	DefaultMountPoint = "../../../"
	// DefaultCompressionBlockSize is the per-block chunking for compressed
	// payloads (64 KiB).
	DefaultCompressionBlockSize = 0x10000
)

// EntryInfo describes a single archive entry.
type EntryInfo struct {
	// Path is the entry path as stored in the archive index.
	Path string `json:"path" yaml:"path"`
	// Method is the compression method name; empty for stored entries.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	// Offset is the byte offset of the entry record in the payload region.
	Offset uint64 `json:"offset" yaml:"offset"`
	// CompressedSize is the stored payload size, excluding encryption padding.
	CompressedSize uint64 `json:"compressed_size" yaml:"compressed_size"`
	// UncompressedSize is the decoded payload size.
	UncompressedSize uint64 `json:"uncompressed_size" yaml:"uncompressed_size"`
	// Timestamp is the record modification time in Unix seconds (first
	// revision only); zero otherwise.
	Timestamp uint64 `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	// Hash is the SHA1 digest of the decoded payload.
	Hash [shaSize]byte `json:"hash" yaml:"hash"`
	// Blocks is the compression block count.
	Blocks int `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	// BlockSize is the uncompressed chunking size for compressed entries.
	BlockSize uint32 `json:"block_size,omitempty" yaml:"block_size,omitempty"`
	// Encrypted reports whether the payload is stored encrypted.
	Encrypted bool `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`
	// Deleted reports a delete marker from a patch archive.
	Deleted bool `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// IsCompressed reports whether this entry is stored compressed.
func (e *EntryInfo) IsCompressed() bool {
	return e.Method != ""
}

// Input describes one source stream to be packed into an archive entry.
type Input struct {
	// ModTime is an optional entry timestamp, recorded only by the first
	// format revision.
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	// Open returns the raw source stream for this entry.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
	// Path is the destination path inside the archive.
	Path string `json:"path" yaml:"path"`
	// SizeHint is the expected size in bytes (zero when unknown).
	SizeHint int64 `json:"size_hint,omitempty" yaml:"size_hint,omitempty"`
}

// AddOptions configures one AddFile call.
type AddOptions struct {
	// ModTime is stored only on revisions with record timestamps.
	ModTime time.Time `json:"mod_time,omitzero" yaml:"mod_time,omitzero"`
}

// ReaderOptions configures archive opening.
type ReaderOptions struct {
	// Logger receives decode debug events; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Codecs overrides the compression codec registry; nil uses the built-ins.
	Codecs *Registry `json:"-" yaml:"-"`
	// Key is the 32-byte AES key for encrypted archives. When nil the
	// insecure all-zero placeholder is used, which fails integrity checks
	// against any genuinely encrypted archive.
	Key []byte `json:"-" yaml:"-"`
}

// WriteOptions configures Write and Pack behavior.
type WriteOptions struct {
	// Logger receives write debug events; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// OnEntryDone is called after one entry payload is fully written.
	OnEntryDone func(entry EntryInfo) `json:"-" yaml:"-"`
	// Compression selects the method for candidate entries; empty or "store"
	// stores everything raw.
	Compression string `json:"compression,omitempty" yaml:"compression,omitempty"`
	// Compress defines ordered path rules for compression candidate
	// selection; empty means every entry is a candidate.
	Compress []pathrules.Rule `json:"compress,omitempty" yaml:"compress,omitempty"`
	// CompressMatcherOptions control compression path rule matching.
	CompressMatcherOptions pathrules.MatcherOptions `json:"compress_matcher_options,omitzero" yaml:"compress_matcher_options,omitzero"`
	// CompressionBlockSize is the uncompressed chunk size for compressed
	// payloads. Default is 64 KiB.
	CompressionBlockSize uint32 `json:"compression_block_size,omitempty" yaml:"compression_block_size,omitempty"`
	// MinCompressSize disables compression for entries smaller than this.
	MinCompressSize int `json:"min_compress_size,omitempty" yaml:"min_compress_size,omitempty"`
	// EncryptData encrypts entry payloads with the archive key.
	EncryptData bool `json:"encrypt_data,omitempty" yaml:"encrypt_data,omitempty"`
	// EncryptIndex encrypts the index region with the archive key.
	EncryptIndex bool `json:"encrypt_index,omitempty" yaml:"encrypt_index,omitempty"`
}

// WriteResult contains write output statistics.
type WriteResult struct {
	// WrittenEntries is the number of entries written to the archive.
	WrittenEntries int `json:"written_entries" yaml:"written_entries"`
	// DataSize is total payload bytes written, record headers included.
	DataSize int64 `json:"data_size" yaml:"data_size"`
	// IndexSize is total index bytes written.
	IndexSize int64 `json:"index_size" yaml:"index_size"`
	// CompressedEntries is the number of entries written compressed.
	CompressedEntries int `json:"compressed_entries,omitempty" yaml:"compressed_entries,omitempty"`
	// SkippedCompressionEntries is the number of compression candidates
	// stored raw because compression did not shrink them.
	SkippedCompressionEntries int `json:"skipped_compression_entries,omitempty" yaml:"skipped_compression_entries,omitempty"`
	// Duration is the end-to-end write duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(entry EntryInfo, written int64, outputPath string) `json:"-" yaml:"-"`
	// Include defines ordered path rules limiting extraction; empty means
	// every entry.
	Include []pathrules.Rule `json:"include,omitempty" yaml:"include,omitempty"`
	// MatcherOptions control include path rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// MaxWorkers is the number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeAuto first tries create-only, then falls back to truncate for existing files.
	ExtractFileModeAuto ExtractFileMode = "auto"
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// discardLogger is the default when options carry no logger.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// applyDefaults fills zero-valued reader options with defaults.
func (opts *ReaderOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	if opts.Codecs == nil {
		opts.Codecs = defaultRegistry()
	}
}

// applyDefaults fills zero-valued write options with defaults.
func (opts *WriteOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	if opts.CompressionBlockSize == 0 {
		opts.CompressionBlockSize = DefaultCompressionBlockSize
	}

	if opts.Compression == MethodStore {
		opts.Compression = ""
	}

	if opts.CompressMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.CompressMatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.CompressMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.CompressMatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeAuto
	}

	// No rules selects everything via the nil matcher; once rules exist,
	// unmatched paths stay out.
	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.MatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.MatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}
