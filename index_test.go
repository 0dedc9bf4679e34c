// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"testing"
)

// buildIndexStream serializes an index for entries and returns the simulated
// stream (payload placeholder plus index regions) and its footer.
func buildIndexStream(t *testing.T, version Version, entries map[string]*entryRecord,
	mount string, seed uint64, key []byte, encrypt bool) ([]byte, footer) {
	t.Helper()

	caps := version.caps()

	var block cipher.Block
	if encrypt {
		b, err := newCipher(key)
		if err != nil {
			t.Fatalf("newCipher: %v", err)
		}

		block = b
	}

	paths := make([]string, 0, len(entries))
	for path := range entries {
		paths = append(paths, path)
	}

	// The payload region is irrelevant here; 64 opaque bytes stand in for it.
	payload := bytes.Repeat([]byte{0xEE}, 64)

	parts, err := buildIndex(paths, entries, mount, seed, caps, block, uint64(len(payload)))
	if err != nil {
		t.Fatalf("buildIndex: %v", err)
	}

	stream := append([]byte{}, payload...)
	stream = append(stream, parts.primary.data...)
	for _, region := range parts.regions() {
		stream = append(stream, region...)
	}

	f := footer{
		version:        version,
		indexOffset:    uint64(len(payload)),
		indexSize:      uint64(len(parts.primary.data)),
		indexHash:      parts.primary.hash,
		encryptedIndex: encrypt,
	}

	return stream, f
}

// indexEntriesForTest builds a small record set valid for any revision.
func indexEntriesForTest(caps Capabilities) map[string]*entryRecord {
	recordAt := func(offset uint64, size uint64) *entryRecord {
		e := &entryRecord{offset: offset, compressed: size, uncompressed: size}
		for i := range e.hash {
			e.hash[i] = byte(offset + uint64(i))
		}

		return e
	}

	return map[string]*entryRecord{
		"Game/Content/a.uasset": recordAt(0, 10),
		"Game/Content/b.uexp":   recordAt(16, 20),
		"Game/Config/c.ini":     recordAt(48, 5),
		"root.txt":              recordAt(60, 4),
	}
}

func TestIndexRoundTrip(t *testing.T) {
	t.Parallel()

	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			t.Parallel()

			caps := version.caps()
			entries := indexEntriesForTest(caps)
			stream, f := buildIndexStream(t, version, entries, "../../../", 7, nil, false)

			idx, err := readIndex(bytes.NewReader(stream), &f, nil, discardLogger())
			if err != nil {
				t.Fatalf("readIndex: %v", err)
			}

			if idx.mount != "../../../" {
				t.Fatalf("mount = %q", idx.mount)
			}
			if caps.HasPathHashIndex && idx.seed != 7 {
				t.Fatalf("seed = %d, want 7", idx.seed)
			}
			if len(idx.entries) != len(entries) {
				t.Fatalf("entries = %d, want %d", len(idx.entries), len(entries))
			}

			for path, want := range entries {
				got, ok := idx.entries[path]
				if !ok {
					t.Fatalf("entry %q missing", path)
				}
				if got.offset != want.offset || got.uncompressed != want.uncompressed {
					t.Fatalf("entry %q = (%d, %d), want (%d, %d)",
						path, got.offset, got.uncompressed, want.offset, want.uncompressed)
				}
				if got.hash != want.hash {
					t.Fatalf("entry %q hash differs", path)
				}
			}

			if caps.HasPathHashIndex {
				if len(idx.phi) != len(entries) {
					t.Fatalf("path hash index has %d entries, want %d", len(idx.phi), len(entries))
				}
				for path := range entries {
					if _, ok := idx.phi[HashPath(path, 7)]; !ok {
						t.Fatalf("path hash index misses %q", path)
					}
				}
			}
		})
	}
}

func TestIndexEncryptedRoundTrip(t *testing.T) {
	t.Parallel()

	key := testKey()
	entries := indexEntriesForTest(V11.caps())
	stream, f := buildIndexStream(t, V11, entries, "../../../Game/", 99, key, true)

	idx, err := readIndex(bytes.NewReader(stream), &f, key, discardLogger())
	if err != nil {
		t.Fatalf("readIndex: %v", err)
	}
	if len(idx.entries) != len(entries) {
		t.Fatalf("entries = %d, want %d", len(idx.entries), len(entries))
	}

	wrong := testKey()
	wrong[5] ^= 0x80

	if _, err := readIndex(bytes.NewReader(stream), &f, wrong, discardLogger()); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("readIndex with wrong key = %v, want ErrIntegrity", err)
	}
}

func TestIndexPrimaryCorruptionDetected(t *testing.T) {
	t.Parallel()

	entries := indexEntriesForTest(V11.caps())
	stream, f := buildIndexStream(t, V11, entries, "../../../", 0, nil, false)

	corrupted := bytes.Clone(stream)
	corrupted[f.indexOffset+2] ^= 0x01

	if _, err := readIndex(bytes.NewReader(corrupted), &f, nil, discardLogger()); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("readIndex on corrupt primary = %v, want ErrIntegrity", err)
	}
}

func TestIndexDeclaredSizeMatchesSerialized(t *testing.T) {
	t.Parallel()

	// The split primary blob pre-computes its own length before writing;
	// the footer size field must agree with the serialized bytes exactly.
	entries := indexEntriesForTest(V11.caps())
	_, f := buildIndexStream(t, V11, entries, "../../../deep/mount/point/", 12345, nil, false)

	parts, err := buildIndex([]string{"Game/Content/a.uasset", "Game/Content/b.uexp", "Game/Config/c.ini", "root.txt"},
		entries, "../../../deep/mount/point/", 12345, V11.caps(), nil, f.indexOffset)
	if err != nil {
		t.Fatalf("buildIndex: %v", err)
	}

	if uint64(len(parts.primary.data)) != f.indexSize {
		t.Fatalf("primary blob is %d bytes, footer declared %d", len(parts.primary.data), f.indexSize)
	}
}
