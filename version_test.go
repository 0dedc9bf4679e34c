// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"errors"
	"testing"
)

// allVersions lists every revision in on-disk evolution order.
var allVersions = []Version{V1, V2, V3, V4, V5, V6, V7, V8A, V8B, V9, V10, V11}

func TestParseVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Version
	}{
		{in: "1", want: V1},
		{in: "7", want: V7},
		{in: "8", want: V8A},
		{in: "8a", want: V8A},
		{in: "8A", want: V8A},
		{in: "8b", want: V8B},
		{in: " 8B ", want: V8B},
		{in: "9", want: V9},
		{in: "10", want: V10},
		{in: "11", want: V11},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseVersion(tc.in)
			if err != nil {
				t.Fatalf("ParseVersion(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseVersion(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	for _, bad := range []string{"", "0", "12", "8c", "v8", "abc"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseVersion(bad); !errors.Is(err, ErrUnsupportedVersion) {
				t.Fatalf("ParseVersion(%q) = %v, want ErrUnsupportedVersion", bad, err)
			}
		})
	}
}

func TestVersionStringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, v := range allVersions {
		got, err := ParseVersion(v.String())
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", v.String(), err)
		}
		if got != v {
			t.Fatalf("ParseVersion(%q) = %v, want %v", v.String(), got, v)
		}
	}
}

func TestVersionFromMajorSkipsSharedWireNumber(t *testing.T) {
	t.Parallel()

	cases := map[uint32]Version{
		1: V1, 7: V7, 8: V8A, 9: V9, 10: V10, 11: V11,
	}

	for major, want := range cases {
		got, err := VersionFromMajor(major)
		if err != nil {
			t.Fatalf("VersionFromMajor(%d): %v", major, err)
		}
		if got != want {
			t.Fatalf("VersionFromMajor(%d) = %v, want %v", major, got, want)
		}
		if got.Major() != major {
			t.Fatalf("Major() = %d, want %d", got.Major(), major)
		}
	}

	for _, bad := range []uint32{0, 12, 255} {
		if _, err := VersionFromMajor(bad); !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("VersionFromMajor(%d) = %v, want ErrUnsupportedVersion", bad, err)
		}
	}
}

func TestCapabilitiesInvalidVersion(t *testing.T) {
	t.Parallel()

	for _, bad := range []Version{0, Version(13), Version(-1)} {
		if _, err := bad.Capabilities(); !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("Capabilities(%d) = %v, want ErrUnsupportedVersion", int(bad), err)
		}
	}
}

func TestCapabilitiesMonotonicFeatures(t *testing.T) {
	t.Parallel()

	// Features never regress across the evolution order, with the single
	// exception of the frozen flag that only V9 carries.
	var prev Capabilities

	for i, v := range allVersions {
		caps := v.caps()

		if i > 0 {
			if prev.HasCompressionBlocks && !caps.HasCompressionBlocks {
				t.Fatalf("%s lost compression blocks", v)
			}
			if prev.HasIndexEncryption && !caps.HasIndexEncryption {
				t.Fatalf("%s lost index encryption", v)
			}
			if prev.HasKeyGUID && !caps.HasKeyGUID {
				t.Fatalf("%s lost key guid", v)
			}
			if prev.HasDeleteRecords && !caps.HasDeleteRecords {
				t.Fatalf("%s lost delete records", v)
			}
		}

		prev = caps
	}
}
