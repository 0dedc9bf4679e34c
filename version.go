// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"fmt"
	"strconv"
	"strings"
)

// Version identifies one on-disk layout revision. The wire carries version
// numbers 1..11, but number 8 shipped in two shapes (4 or 5 compression name
// slots in the footer), so the revisions V8A and V8B share wire number 8.
type Version int

// Known format revisions in on-disk evolution order.
const (
	// V1 is the initial layout with per-record timestamps.
	V1 Version = iota + 1
	// V2 drops record timestamps.
	V2
	// V3 adds compression blocks and per-record encryption.
	V3
	// V4 adds the whole-index encryption flag.
	V4
	// V5 switches block offsets to record-relative.
	V5
	// V6 adds delete records for patch archives.
	V6
	// V7 adds the encryption key identifier.
	V7
	// V8A adds a 4-slot compression method name table.
	V8A
	// V8B widens the name table to 5 slots.
	V8B
	// V9 adds the frozen index flag.
	V9
	// V10 splits the index into path-hash and full-directory parts.
	V10
	// V11 fixes path hash seeding in the split index.
	V11
)

// VersionLatest is the default revision for newly written archives.
const VersionLatest = V11

// Capabilities describes which footer and index fields exist for one format
// revision and their sizes. Exactly one row per revision; every codec consults
// a row instead of branching on the raw version number.
type Capabilities struct {
	// Major is the version number written to the footer.
	Major uint32 `json:"major" yaml:"major"`
	// FooterSize is the full on-disk footer size in bytes.
	FooterSize int64 `json:"footer_size" yaml:"footer_size"`
	// NameSlots is the compression method name table length in the footer;
	// zero means the fixed legacy method numbering is in effect.
	NameSlots int `json:"name_slots,omitempty" yaml:"name_slots,omitempty"`
	// MethodFieldBytes is the width of the record compression method field.
	MethodFieldBytes int `json:"method_field_bytes" yaml:"method_field_bytes"`
	// HasTimestamp marks per-record modification timestamps.
	HasTimestamp bool `json:"has_timestamp,omitempty" yaml:"has_timestamp,omitempty"`
	// HasCompressionBlocks marks the record block table, flags byte and block size field.
	HasCompressionBlocks bool `json:"has_compression_blocks,omitempty" yaml:"has_compression_blocks,omitempty"`
	// HasIndexEncryption marks the whole-index encryption flag in the footer.
	HasIndexEncryption bool `json:"has_index_encryption,omitempty" yaml:"has_index_encryption,omitempty"`
	// HasRelativeOffsets marks record-relative compression block offsets.
	HasRelativeOffsets bool `json:"has_relative_offsets,omitempty" yaml:"has_relative_offsets,omitempty"`
	// HasDeleteRecords marks support for delete markers in record flags.
	HasDeleteRecords bool `json:"has_delete_records,omitempty" yaml:"has_delete_records,omitempty"`
	// HasKeyGUID marks the encryption key identifier in the footer.
	HasKeyGUID bool `json:"has_key_guid,omitempty" yaml:"has_key_guid,omitempty"`
	// HasFrozenFlag marks the frozen index byte in the footer.
	HasFrozenFlag bool `json:"has_frozen_flag,omitempty" yaml:"has_frozen_flag,omitempty"`
	// HasPathHashIndex marks the split path-hash plus full-directory index layout.
	HasPathHashIndex bool `json:"has_path_hash_index,omitempty" yaml:"has_path_hash_index,omitempty"`
}

// capsTable holds one row per revision; adding a revision is a data change.
var capsTable = [...]Capabilities{
	V1: {Major: 1, FooterSize: 44, MethodFieldBytes: 4, HasTimestamp: true},
	V2: {Major: 2, FooterSize: 44, MethodFieldBytes: 4},
	V3: {Major: 3, FooterSize: 44, MethodFieldBytes: 4,
		HasCompressionBlocks: true},
	V4: {Major: 4, FooterSize: 45, MethodFieldBytes: 4,
		HasCompressionBlocks: true, HasIndexEncryption: true},
	V5: {Major: 5, FooterSize: 45, MethodFieldBytes: 4,
		HasCompressionBlocks: true, HasIndexEncryption: true, HasRelativeOffsets: true},
	V6: {Major: 6, FooterSize: 45, MethodFieldBytes: 4,
		HasCompressionBlocks: true, HasIndexEncryption: true, HasRelativeOffsets: true,
		HasDeleteRecords: true},
	V7: {Major: 7, FooterSize: 61, MethodFieldBytes: 4,
		HasCompressionBlocks: true, HasIndexEncryption: true, HasRelativeOffsets: true,
		HasDeleteRecords: true, HasKeyGUID: true},
	V8A: {Major: 8, FooterSize: 189, NameSlots: 4, MethodFieldBytes: 1,
		HasCompressionBlocks: true, HasIndexEncryption: true, HasRelativeOffsets: true,
		HasDeleteRecords: true, HasKeyGUID: true},
	V8B: {Major: 8, FooterSize: 221, NameSlots: 5, MethodFieldBytes: 4,
		HasCompressionBlocks: true, HasIndexEncryption: true, HasRelativeOffsets: true,
		HasDeleteRecords: true, HasKeyGUID: true},
	V9: {Major: 9, FooterSize: 222, NameSlots: 5, MethodFieldBytes: 4,
		HasCompressionBlocks: true, HasIndexEncryption: true, HasRelativeOffsets: true,
		HasDeleteRecords: true, HasKeyGUID: true, HasFrozenFlag: true},
	V10: {Major: 10, FooterSize: 221, NameSlots: 5, MethodFieldBytes: 4,
		HasCompressionBlocks: true, HasIndexEncryption: true, HasRelativeOffsets: true,
		HasDeleteRecords: true, HasKeyGUID: true, HasPathHashIndex: true},
	V11: {Major: 11, FooterSize: 221, NameSlots: 5, MethodFieldBytes: 4,
		HasCompressionBlocks: true, HasIndexEncryption: true, HasRelativeOffsets: true,
		HasDeleteRecords: true, HasKeyGUID: true, HasPathHashIndex: true},
}

// valid reports whether v names a known revision.
func (v Version) valid() bool {
	return v >= V1 && v <= V11
}

// caps returns the capability row without validation; callers hold an
// already-validated revision.
func (v Version) caps() Capabilities {
	return capsTable[v]
}

// Capabilities resolves the capability row for this revision.
func (v Version) Capabilities() (Capabilities, error) {
	if !v.valid() {
		return Capabilities{}, fmt.Errorf("%w: revision %d", ErrUnsupportedVersion, int(v))
	}

	return capsTable[v], nil
}

// Major returns the wire version number, or zero for unknown revisions.
func (v Version) Major() uint32 {
	if !v.valid() {
		return 0
	}

	return capsTable[v].Major
}

// String renders the revision the way the CLI accepts it: "1".."11" with
// "8a" and "8b" for the two wire-8 shapes.
func (v Version) String() string {
	switch v {
	case V8A:
		return "8a"
	case V8B:
		return "8b"
	}

	if !v.valid() {
		return fmt.Sprintf("invalid(%d)", int(v))
	}

	return strconv.FormatUint(uint64(v.Major()), 10)
}

// ParseVersion resolves a user-supplied version string: a number 1..11 or the
// explicit forms "8a" and "8b". Plain "8" selects V8A.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "8a":
		return V8A, nil
	case "8b":
		return V8B, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
	}

	return VersionFromMajor(uint32(n))
}

// VersionFromMajor resolves a wire version number 1..11 to a revision.
// Wire number 8 resolves to V8A; readers distinguish V8B by footer size.
func VersionFromMajor(n uint32) (Version, error) {
	switch {
	case n >= 1 && n <= 8:
		return Version(n), nil
	case n >= 9 && n <= 11:
		return Version(n + 1), nil
	default:
		return 0, fmt.Errorf("%w: %d (supported 1..11)", ErrUnsupportedVersion, n)
	}
}
