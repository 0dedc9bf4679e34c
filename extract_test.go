// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// extractFixture writes a small archive and reopens it for extraction tests.
func extractFixture(t *testing.T) *Archive {
	t.Helper()

	files := map[string][]byte{
		"Game/Content/a.uasset": bytes.Repeat([]byte("alpha "), 1000),
		"Game/Content/b.uexp":   []byte("beta"),
		"Game/Config/c.ini":     []byte("[x]\ny=1\n"),
		"readme.txt":            []byte("hello"),
	}

	a := New()
	for path, data := range files {
		if err := a.AddFile(path, data); err != nil {
			t.Fatalf("AddFile %s: %v", path, err)
		}
	}

	raw := writeArchiveForTest(t, a, WriteOptions{Compression: MethodZlib})

	return reopenForTest(t, raw, ReaderOptions{})
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	a := extractFixture(t)
	dst := t.TempDir()

	var done int
	err := a.Extract(context.Background(), dst, ExtractOptions{
		OnEntryDone: func(EntryInfo, int64, string) { done++ },
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if done != 4 {
		t.Fatalf("done callbacks = %d, want 4", done)
	}

	data, err := os.ReadFile(filepath.Join(dst, "Game", "Content", "a.uasset"))
	if err != nil {
		t.Fatalf("read extracted: %v", err)
	}
	if !bytes.Equal(data, bytes.Repeat([]byte("alpha "), 1000)) {
		t.Fatal("extracted content differs")
	}

	if _, err := os.Stat(filepath.Join(dst, "readme.txt")); err != nil {
		t.Fatalf("top-level entry missing: %v", err)
	}
}

func TestExtractWithIncludeRules(t *testing.T) {
	t.Parallel()

	a := extractFixture(t)
	dst := t.TempDir()

	err := a.Extract(context.Background(), dst, ExtractOptions{
		Include: includeRules("*.ini"),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dst, "Game", "Config", "c.ini")); err != nil {
		t.Fatalf("included entry missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "Game", "Content", "b.uexp")); !os.IsNotExist(err) {
		t.Fatalf("excluded entry present: %v", err)
	}
}

func TestExtractCreateOnlyRefusesExisting(t *testing.T) {
	t.Parallel()

	a := extractFixture(t)
	dst := t.TempDir()

	existing := filepath.Join(dst, "readme.txt")
	if err := os.WriteFile(existing, []byte("keep me"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	err := a.Extract(context.Background(), dst, ExtractOptions{
		FileMode: ExtractFileModeCreateOnly,
	})
	if err == nil {
		t.Fatal("Extract over existing file succeeded, want error")
	}

	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatalf("read seed file: %v", err)
	}
	if string(data) != "keep me" {
		t.Fatalf("seed file overwritten: %q", data)
	}
}

func TestExtractAutoOverwritesExisting(t *testing.T) {
	t.Parallel()

	a := extractFixture(t)
	dst := t.TempDir()

	existing := filepath.Join(dst, "readme.txt")
	if err := os.WriteFile(existing, []byte("stale content much longer than the entry"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := a.Extract(context.Background(), dst, ExtractOptions{}); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatalf("read extracted: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("extracted = %q, want hello", data)
	}
}

func TestExtractCanceledContext(t *testing.T) {
	t.Parallel()

	a := extractFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Extract(ctx, t.TempDir(), ExtractOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract = %v, want context.Canceled", err)
	}
}

func TestFilterEntriesByPrefix(t *testing.T) {
	t.Parallel()

	a := extractFixture(t)

	entries := a.Entries()

	config := FilterEntriesByPrefix(entries, "Game/Config")
	if len(config) != 1 || config[0].Path != "Game/Config/c.ini" {
		t.Fatalf("prefix filter = %+v", config)
	}

	all := FilterEntriesByPrefix(entries, "")
	if len(all) != len(entries) {
		t.Fatalf("empty prefix kept %d of %d", len(all), len(entries))
	}
}
