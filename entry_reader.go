// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // Pak format requires SHA1.
	"fmt"
	"io"
)

// nopCloser wraps a reader and provides a no-op close.
type nopCloser struct {
	io.Reader
}

// Close closes nopCloser (no-op).
func (nopCloser) Close() error {
	return nil
}

// OpenFile opens one entry for streaming reads. Compressed and encrypted
// payloads are decoded block by block, so large entries never sit fully in
// memory; the content digest is checked after the last block and surfaces as
// a read error at the end of the returned stream.
func (a *Archive) OpenFile(path string) (io.ReadCloser, error) {
	if a == nil {
		return nil, ErrNilReader
	}

	e, key, err := a.resolveEntry(path)
	if err != nil {
		return nil, err
	}

	if e.record == nil {
		return nopCloser{Reader: bytes.NewReader(e.pending)}, nil
	}

	if a.ra == nil {
		return nil, ErrNilReader
	}

	pipe, err := a.newEntryPipeline(path, e.record, key)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go streamEntryBlocks(path, pw, pipe, e.record.hash, e.record.encrypted())

	return pr, nil
}

// streamEntryBlocks decodes plan blocks in order into the pipe writer and
// verifies the running digest against the record.
func streamEntryBlocks(path string, dst *io.PipeWriter, pipe *entryPipeline, want [shaSize]byte, encrypted bool) {
	h := sha1.New() //nolint:gosec // Pak format requires SHA1.

	for i := range pipe.plan {
		chunk, err := pipe.decodeBlock(i)
		if err != nil {
			_ = dst.CloseWithError(fmt.Errorf("entry %s: %w", path, err))
			return
		}

		_, _ = h.Write(chunk)
		if _, err := dst.Write(chunk); err != nil {
			_ = dst.CloseWithError(err)
			return
		}
	}

	var got [shaSize]byte
	copy(got[:], h.Sum(nil))

	if got != want {
		if encrypted {
			_ = dst.CloseWithError(fmt.Errorf(
				"%w: entry %s content hash mismatch (wrong or missing encryption key?)", ErrIntegrity, path))
			return
		}

		_ = dst.CloseWithError(fmt.Errorf("%w: entry %s content hash mismatch", ErrIntegrity, path))
		return
	}

	_ = dst.Close()
}
