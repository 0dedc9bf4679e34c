// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import "testing"

func TestHashPathCaseInsensitive(t *testing.T) {
	t.Parallel()

	const seed = 0x1234

	lower := HashPath("game/content/hero.uasset", seed)
	upper := HashPath("Game/Content/HERO.uasset", seed)

	if lower != upper {
		t.Fatalf("hash differs by case: %#x vs %#x", lower, upper)
	}
}

func TestHashPathSeedSensitive(t *testing.T) {
	t.Parallel()

	a := HashPath("game/content/hero.uasset", 0)
	b := HashPath("game/content/hero.uasset", 1)

	if a == b {
		t.Fatalf("hash ignores seed: %#x", a)
	}
}

func TestHashPathDeterministic(t *testing.T) {
	t.Parallel()

	// FNV-1a over the UTF-16LE encoding, not over the raw UTF-8 bytes:
	// the two must disagree for any non-empty input.
	if got := HashPath("", 0); got != fnv64Offset {
		t.Fatalf("empty path hash = %#x, want offset basis %#x", got, fnv64Offset)
	}

	utf8Hash := fnv64([]byte("a"), 0)
	if got := HashPath("a", 0); got == utf8Hash {
		t.Fatalf("hash of %q matches the UTF-8 encoding", "a")
	}

	first := HashPath("game/карта.umap", 42)
	second := HashPath("game/карта.umap", 42)

	if first != second {
		t.Fatalf("hash not deterministic: %#x vs %#x", first, second)
	}
}
