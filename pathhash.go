// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

// FNV-1a 64-bit parameters; the seed shifts the offset basis.
const (
	fnv64Offset uint64 = 0xcbf29ce484222325
	fnv64Prime  uint64 = 0x00000100000001b3
)

// fnv64 applies seeded FNV-1a over raw bytes.
func fnv64(data []byte, seed uint64) uint64 {
	h := fnv64Offset + seed

	for _, b := range data {
		h ^= uint64(b)
		h *= fnv64Prime
	}

	return h
}

// HashPath computes the path hash index key for a path: the lower-cased path
// is encoded as UTF-16LE and hashed with seeded FNV-1a. The seed must match
// the one recorded in the archive index or lookups silently miss.
func HashPath(p string, seed uint64) uint64 {
	units := utf16.Encode([]rune(strings.ToLower(p)))

	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}

	return fnv64(buf, seed)
}
