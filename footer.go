// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"bytes"
	"fmt"
	"io"
)

// pakMagic anchors the footer at the end of every archive.
const pakMagic uint32 = 0x5A6F12E1

// nameSlotSize is the fixed width of one compression method name slot.
const nameSlotSize = 32

// footer is the fixed-size trailer locating and authenticating the index.
// Written last, read first.
type footer struct {
	names          []string
	indexOffset    uint64
	indexSize      uint64
	keyGUID        [16]byte
	indexHash      [shaSize]byte
	version        Version
	encryptedIndex bool
	frozen         bool
}

// footerProbes lists how many bytes before stream end the magic sits for each
// footer shape, oldest-first. On modern archives the short probes land inside
// the footer's own zero-padded name slots and cannot match, while probing
// newest-first would read payload or index bytes of older archives, where
// content is free to collide with the magic.
var footerProbes = []int64{44, 172, 204, 205}

// resolveProbe maps a matched probe position and the wire version next to the
// magic onto a revision.
func resolveProbe(back int64, major uint32) (Version, bool) {
	switch back {
	case 44:
		if major >= 1 && major <= 7 {
			return Version(major), true
		}
	case 172:
		if major == 8 {
			return V8A, true
		}
	case 204:
		switch major {
		case 8:
			return V8B, true
		case 10:
			return V10, true
		case 11:
			return V11, true
		}
	case 205:
		if major == 9 {
			return V9, true
		}
	}

	return 0, false
}

// probeVersions lists every revision whose magic probe matches the stream
// tail, oldest-first. More than one candidate means the older positions hit
// colliding content bytes; the caller settles it by decoding.
func probeVersions(tail []byte) []Version {
	var found []Version

	for _, back := range footerProbes {
		at := int64(len(tail)) - back
		if at < 0 {
			continue
		}

		r := newWireReader(tail[at:])

		magic, err := r.u32()
		if err != nil || magic != pakMagic {
			continue
		}

		major, err := r.u32()
		if err != nil {
			continue
		}

		if v, ok := resolveProbe(back, major); ok {
			found = append(found, v)
		}
	}

	return found
}

// maxFooterSize is the largest footer shape across all revisions.
func maxFooterSize() int64 {
	return capsTable[V9].FooterSize
}

// readFooter detects the revision and decodes the footer from the end of the
// stream.
func readFooter(ra io.ReaderAt, size int64) (footer, error) {
	tailLen := maxFooterSize()
	if size < tailLen {
		tailLen = size
	}

	if tailLen < capsTable[V1].FooterSize {
		return footer{}, fmt.Errorf("%w: %d bytes is too short for a footer", ErrFormat, size)
	}

	tail := make([]byte, tailLen)
	if _, err := ra.ReadAt(tail, size-tailLen); err != nil {
		return footer{}, fmt.Errorf("read footer tail: %w", err)
	}

	candidates := probeVersions(tail)
	if len(candidates) == 0 {
		return footer{}, fmt.Errorf("%w: no footer magic found", ErrFormat)
	}

	// A probe can match content bytes of a newer archive; keep trying until a
	// candidate decodes cleanly at the end-anchored position.
	var f footer
	var err error
	for _, version := range candidates {
		footSize := version.caps().FooterSize
		if tailLen < footSize {
			err = fmt.Errorf("%w: %d bytes is too short for a version %s footer",
				ErrFormat, size, version)
			continue
		}

		f, err = decodeFooter(tail[tailLen-footSize:], version)
		if err == nil {
			break
		}
	}
	if err != nil {
		return footer{}, err
	}

	if f.frozen {
		return footer{}, fmt.Errorf("%w: frozen index", ErrUnsupportedFeature)
	}
	if f.indexOffset > uint64(size) || f.indexSize > uint64(size)-f.indexOffset {
		return footer{}, fmt.Errorf("%w: index region [%d+%d] outside %d byte stream",
			ErrFormat, f.indexOffset, f.indexSize, size)
	}

	return f, nil
}

// decodeFooter parses exactly one footer of the given revision.
func decodeFooter(buf []byte, v Version) (footer, error) {
	caps := v.caps()
	f := footer{version: v}

	if int64(len(buf)) != caps.FooterSize {
		return f, fmt.Errorf("%w: footer is %d bytes, want %d", ErrFormat, len(buf), caps.FooterSize)
	}

	r := newWireReader(buf)

	if caps.HasKeyGUID {
		guid, err := r.take(len(f.keyGUID))
		if err != nil {
			return f, fmt.Errorf("footer key guid: %w", err)
		}

		copy(f.keyGUID[:], guid)
	}

	if caps.HasIndexEncryption {
		b, err := r.u8()
		if err != nil {
			return f, fmt.Errorf("footer encryption flag: %w", err)
		}

		f.encryptedIndex = b != 0
	}

	magic, err := r.u32()
	if err != nil {
		return f, fmt.Errorf("footer magic: %w", err)
	}
	if magic != pakMagic {
		return f, fmt.Errorf("%w: bad footer magic 0x%08x", ErrFormat, magic)
	}

	major, err := r.u32()
	if err != nil {
		return f, fmt.Errorf("footer version: %w", err)
	}
	if major != caps.Major {
		return f, fmt.Errorf("%w: footer version %d does not match detected layout %s",
			ErrFormat, major, v)
	}

	if f.indexOffset, err = r.u64(); err != nil {
		return f, fmt.Errorf("footer index offset: %w", err)
	}
	if f.indexSize, err = r.u64(); err != nil {
		return f, fmt.Errorf("footer index size: %w", err)
	}
	if f.indexHash, err = r.sha1(); err != nil {
		return f, fmt.Errorf("footer index hash: %w", err)
	}

	if caps.HasFrozenFlag {
		b, err := r.u8()
		if err != nil {
			return f, fmt.Errorf("footer frozen flag: %w", err)
		}

		f.frozen = b != 0
	}

	if caps.NameSlots > 0 {
		f.names = make([]string, caps.NameSlots)

		for i := range f.names {
			slot, err := r.take(nameSlotSize)
			if err != nil {
				return f, fmt.Errorf("footer name slot %d: %w", i, err)
			}

			f.names[i] = string(bytes.TrimRight(slot, "\x00"))
		}
	}

	return f, nil
}

// encode serializes the footer; output length always equals the revision's
// FooterSize.
func (f *footer) encode(w *wireWriter) error {
	caps := f.version.caps()
	start := w.len()

	if caps.HasKeyGUID {
		w.raw(f.keyGUID[:])
	}

	if caps.HasIndexEncryption {
		w.bool01(f.encryptedIndex)
	}

	w.u32(pakMagic)
	w.u32(caps.Major)
	w.u64(f.indexOffset)
	w.u64(f.indexSize)
	w.sha1(f.indexHash)

	if caps.HasFrozenFlag {
		w.bool01(f.frozen)
	}

	if len(f.names) > caps.NameSlots {
		return fmt.Errorf("%w: %d compression methods exceed the %d name slots of version %s",
			ErrUnsupportedFeature, len(f.names), caps.NameSlots, f.version)
	}

	for i := 0; i < caps.NameSlots; i++ {
		var slot [nameSlotSize]byte

		if i < len(f.names) {
			if len(f.names[i]) >= nameSlotSize {
				return fmt.Errorf("%w: method name %q exceeds slot width", ErrFormat, f.names[i])
			}

			copy(slot[:], f.names[i])
		}

		w.raw(slot[:])
	}

	if wrote := int64(w.len() - start); wrote != caps.FooterSize {
		return fmt.Errorf("%w: encoded footer is %d bytes, want %d", ErrFormat, wrote, caps.FooterSize)
	}

	return nil
}
