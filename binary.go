// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// wireReader decodes little-endian pak fields from an in-memory blob.
type wireReader struct {
	buf []byte
	pos int
}

// newWireReader wraps a decoded blob for sequential field reads.
func newWireReader(buf []byte) *wireReader {
	return &wireReader{buf: buf}
}

// remaining returns the number of unread bytes.
func (r *wireReader) remaining() int {
	return len(r.buf) - r.pos
}

// take returns the next n raw bytes without copying.
func (r *wireReader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrFormat, n, r.remaining())
	}

	b := r.buf[r.pos : r.pos+n]
	r.pos += n

	return b, nil
}

// u8 reads one byte.
func (r *wireReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// u32 reads a little-endian uint32.
func (r *wireReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

// i32 reads a little-endian int32.
func (r *wireReader) i32() (int32, error) {
	v, err := r.u32()

	return int32(v), err
}

// u64 reads a little-endian uint64.
func (r *wireReader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

// sha1 reads a 20-byte digest.
func (r *wireReader) sha1() ([shaSize]byte, error) {
	var sum [shaSize]byte

	b, err := r.take(shaSize)
	if err != nil {
		return sum, err
	}

	copy(sum[:], b)

	return sum, nil
}

// str reads a length-prefixed string. Positive prefix is a byte count of
// single-byte characters, negative prefix is a UTF-16LE code unit count.
// Trailing NUL terminators are stripped in both forms.
func (r *wireReader) str() (string, error) {
	n, err := r.i32()
	if err != nil {
		return "", err
	}

	switch {
	case n == 0:
		return "", nil
	case n > 0:
		b, err := r.take(int(n))
		if err != nil {
			return "", fmt.Errorf("string body: %w", err)
		}

		return string(bytes.TrimRight(b, "\x00")), nil
	default:
		units := int(-n)
		b, err := r.take(units * 2)
		if err != nil {
			return "", fmt.Errorf("utf16 string body: %w", err)
		}

		raw := make([]uint16, units)
		for i := range raw {
			raw[i] = binary.LittleEndian.Uint16(b[i*2:])
		}

		for len(raw) > 0 && raw[len(raw)-1] == 0 {
			raw = raw[:len(raw)-1]
		}

		return string(utf16.Decode(raw)), nil
	}
}

// wireWriter encodes little-endian pak fields into a growing buffer.
type wireWriter struct {
	buf bytes.Buffer
}

// len returns the number of bytes written so far.
func (w *wireWriter) len() int {
	return w.buf.Len()
}

// bytesOut returns the accumulated encoded bytes.
func (w *wireWriter) bytesOut() []byte {
	return w.buf.Bytes()
}

// u8 writes one byte.
func (w *wireWriter) u8(v uint8) {
	w.buf.WriteByte(v)
}

// bool01 writes a boolean as a single 0/1 byte.
func (w *wireWriter) bool01(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// u32 writes a little-endian uint32.
func (w *wireWriter) u32(v uint32) {
	var b [4]byte

	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// i32 writes a little-endian int32.
func (w *wireWriter) i32(v int32) {
	w.u32(uint32(v))
}

// u64 writes a little-endian uint64.
func (w *wireWriter) u64(v uint64) {
	var b [8]byte

	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// sha1 writes a 20-byte digest.
func (w *wireWriter) sha1(sum [shaSize]byte) {
	w.buf.Write(sum[:])
}

// raw writes bytes verbatim.
func (w *wireWriter) raw(b []byte) {
	w.buf.Write(b)
}

// str writes a length-prefixed NUL-terminated string, choosing the
// single-byte form for pure ASCII input and UTF-16LE otherwise.
func (w *wireWriter) str(s string) {
	if isASCII(s) {
		w.i32(int32(len(s) + 1))
		w.buf.WriteString(s)
		w.buf.WriteByte(0)

		return
	}

	units := utf16.Encode([]rune(s))
	w.i32(int32(-(len(units) + 1)))

	for _, u := range units {
		var b [2]byte

		binary.LittleEndian.PutUint16(b[:], u)
		w.buf.Write(b[:])
	}

	w.u8(0)
	w.u8(0)
}

// isASCII reports whether every byte of s is single-byte safe.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}

// serializedStringSize returns the on-wire size of a string field.
func serializedStringSize(s string) int {
	if isASCII(s) {
		return 4 + len(s) + 1
	}

	return 4 + (len(utf16.Encode([]rune(s)))+1)*2
}
