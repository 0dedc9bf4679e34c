// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"bytes"
	"errors"
	"testing"
)

// encodeFooterForTest serializes f and fails the test on error.
func encodeFooterForTest(t *testing.T, f *footer) []byte {
	t.Helper()

	w := &wireWriter{}
	if err := f.encode(w); err != nil {
		t.Fatalf("encode footer: %v", err)
	}

	return w.bytesOut()
}

func TestFooterRoundTripAllVersions(t *testing.T) {
	t.Parallel()

	for _, v := range allVersions {
		t.Run(v.String(), func(t *testing.T) {
			t.Parallel()

			f := footer{
				version:     v,
				indexOffset: 0x1122334455,
				indexSize:   987654,
			}
			for i := range f.indexHash {
				f.indexHash[i] = byte(i + 1)
			}

			caps := v.caps()
			if caps.HasKeyGUID {
				for i := range f.keyGUID {
					f.keyGUID[i] = byte(0xA0 + i)
				}
			}
			if caps.HasIndexEncryption {
				f.encryptedIndex = true
			}
			if caps.NameSlots > 0 {
				f.names = []string{"Zlib", "Oodle"}
			}

			raw := encodeFooterForTest(t, &f)
			if int64(len(raw)) != caps.FooterSize {
				t.Fatalf("encoded %d bytes, want FooterSize %d", len(raw), caps.FooterSize)
			}

			got, err := decodeFooter(raw, v)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if got.indexOffset != f.indexOffset || got.indexSize != f.indexSize {
				t.Fatalf("index location = (%d, %d), want (%d, %d)",
					got.indexOffset, got.indexSize, f.indexOffset, f.indexSize)
			}
			if got.indexHash != f.indexHash {
				t.Fatal("index hash differs")
			}
			if got.keyGUID != f.keyGUID {
				t.Fatal("key guid differs")
			}
			if got.encryptedIndex != f.encryptedIndex {
				t.Fatalf("encrypted flag = %v, want %v", got.encryptedIndex, f.encryptedIndex)
			}
			if caps.NameSlots > 0 {
				if len(got.names) != caps.NameSlots {
					t.Fatalf("name slots = %d, want %d", len(got.names), caps.NameSlots)
				}
				if got.names[0] != "Zlib" || got.names[1] != "Oodle" {
					t.Fatalf("names = %v", got.names[:2])
				}
			}
		})
	}
}

func TestProbeVersionsFindsEveryRevision(t *testing.T) {
	t.Parallel()

	for _, v := range allVersions {
		t.Run(v.String(), func(t *testing.T) {
			t.Parallel()

			f := footer{version: v, indexOffset: 64, indexSize: 16}
			raw := encodeFooterForTest(t, &f)

			// Pad with payload bytes so the tail is longer than any footer.
			stream := append(bytes.Repeat([]byte{0xCC}, 512), raw...)

			got := probeVersions(stream)
			if len(got) != 1 || got[0] != v {
				t.Fatalf("probeVersions = %v, want [%v]", got, v)
			}
		})
	}
}

// A legacy archive whose payload happens to contain the magic followed by a
// newer wire version at a modern probe distance must still open as its real
// revision. The genuine footer sits at the oldest probe position.
func TestOpenPayloadContainingFooterMagic(t *testing.T) {
	t.Parallel()

	a := New()
	if err := a.SetVersion(V3); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	if err := a.AddFile("Game/data.bin", bytes.Repeat([]byte{0xAB}, 400)); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	raw := writeArchiveForTest(t, a, WriteOptions{})

	// Plant a fake version 10 probe inside the payload at the exact distance
	// the 221-byte footer shape is detected from.
	at := len(raw) - 204

	info, err := ReadFooterInfoFromReaderAt(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("ReadFooterInfoFromReaderAt: %v", err)
	}
	if uint64(at+8) > info.IndexOffset {
		t.Fatalf("collision at %d reaches past the payload region ending at %d", at, info.IndexOffset)
	}

	w := &wireWriter{}
	w.u32(pakMagic)
	w.u32(10)
	copy(raw[at:], w.bytesOut())

	got := reopenForTest(t, raw, ReaderOptions{})
	defer func() { _ = got.Close() }()

	if v := got.Version(); v != V3 {
		t.Fatalf("Version = %v, want %v", v, V3)
	}
	if paths := got.List(); len(paths) != 1 || paths[0] != "Game/data.bin" {
		t.Fatalf("List = %v", paths)
	}
}

func TestReadFooterErrors(t *testing.T) {
	t.Parallel()

	t.Run("garbage stream", func(t *testing.T) {
		t.Parallel()

		garbage := bytes.Repeat([]byte{0x5A, 0x01, 0xFE}, 200)

		_, err := readFooter(bytes.NewReader(garbage), int64(len(garbage)))
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("readFooter = %v, want ErrFormat", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		t.Parallel()

		_, err := readFooter(bytes.NewReader([]byte{1, 2, 3}), 3)
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("readFooter = %v, want ErrFormat", err)
		}
	})

	t.Run("index region outside stream", func(t *testing.T) {
		t.Parallel()

		f := footer{version: V11, indexOffset: 1 << 40, indexSize: 1}
		raw := encodeFooterForTest(t, &f)
		stream := append(bytes.Repeat([]byte{0}, 64), raw...)

		_, err := readFooter(bytes.NewReader(stream), int64(len(stream)))
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("readFooter = %v, want ErrFormat", err)
		}
	})

	t.Run("frozen index rejected", func(t *testing.T) {
		t.Parallel()

		f := footer{version: V9, indexOffset: 0, indexSize: 8, frozen: true}
		raw := encodeFooterForTest(t, &f)
		stream := append(bytes.Repeat([]byte{0}, 64), raw...)

		_, err := readFooter(bytes.NewReader(stream), int64(len(stream)))
		if !errors.Is(err, ErrUnsupportedFeature) {
			t.Fatalf("readFooter = %v, want ErrUnsupportedFeature", err)
		}
	})

	t.Run("truncated tail shorter than detected footer", func(t *testing.T) {
		t.Parallel()

		f := footer{version: V9, indexOffset: 0, indexSize: 0}
		raw := encodeFooterForTest(t, &f)

		// Keep the magic probe reachable but cut leading footer bytes off.
		stream := raw[12:]

		_, err := readFooter(bytes.NewReader(stream), int64(len(stream)))
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("readFooter = %v, want ErrFormat", err)
		}
	})
}

func TestFooterEncodeRejectsOversizedNames(t *testing.T) {
	t.Parallel()

	t.Run("too many methods", func(t *testing.T) {
		t.Parallel()

		f := footer{
			version: V8A,
			names:   []string{"Zlib", "Gzip", "Zstd", "LZ4", "LZSS"},
		}

		w := &wireWriter{}
		if err := f.encode(w); !errors.Is(err, ErrUnsupportedFeature) {
			t.Fatalf("encode = %v, want ErrUnsupportedFeature", err)
		}
	})

	t.Run("name exceeds slot width", func(t *testing.T) {
		t.Parallel()

		f := footer{
			version: V11,
			names:   []string{string(bytes.Repeat([]byte{'x'}, nameSlotSize))},
		}

		w := &wireWriter{}
		if err := f.encode(w); !errors.Is(err, ErrFormat) {
			t.Fatalf("encode = %v, want ErrFormat", err)
		}
	})
}
