// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import "errors"

// Sentinel errors for pak operations. Use errors.Is in callers.
var (
	// ErrFormat means the stream is not a readable pak archive: bad magic,
	// truncated footer or index, or a malformed field.
	ErrFormat = errors.New("invalid pak file")
	// ErrUnsupportedVersion means the format version is outside the known 1..11 range.
	ErrUnsupportedVersion = errors.New("unsupported pak format version")
	// ErrUnsupportedCompression means the entry references a compression method
	// with no registered codec.
	ErrUnsupportedCompression = errors.New("unsupported compression method")
	// ErrIntegrity means an index or entry hash mismatch after decode.
	// The dominant real-world cause is a wrong or missing encryption key.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrNotFound means the requested path is absent from the archive index.
	ErrNotFound = errors.New("file not found in archive")
	// ErrUnsupportedFeature means the selected format version cannot express
	// the requested write configuration.
	ErrUnsupportedFeature = errors.New("feature not supported by format version")
	// ErrInvalidKey means the supplied AES key has a wrong length.
	ErrInvalidKey = errors.New("invalid AES key length")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrNilWriter means the writer is nil.
	ErrNilWriter = errors.New("writer is nil")
	// ErrClosed means the archive or resource is already closed.
	ErrClosed = errors.New("archive or resource already closed")
	// ErrInvalidEntryPath means an entry path is empty or invalid after normalization.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrInvalidCompressPattern means one or more compression rules are invalid.
	ErrInvalidCompressPattern = errors.New("invalid compress rules")
	// ErrInvalidExtractPath means archive entry path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrExtractPathOutsideRoot means resolved extraction path escapes destination root.
	ErrExtractPathOutsideRoot = errors.New("extract path escapes destination root")
)
