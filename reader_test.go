// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestOpenRejectsGarbage(t *testing.T) {
	t.Parallel()

	garbage := bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 128)

	_, err := NewArchiveFromReaderAt(bytes.NewReader(garbage), int64(len(garbage)))
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("open garbage = %v, want ErrFormat", err)
	}
}

func TestOpenNilReader(t *testing.T) {
	t.Parallel()

	if _, err := NewArchiveFromReaderAt(nil, 0); !errors.Is(err, ErrNilReader) {
		t.Fatalf("open nil = %v, want ErrNilReader", err)
	}
}

func TestOpenFromFile(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("from disk "), 2000)

	a := New()
	if err := a.AddFile("Game/a.uasset", content); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	pakPath := filepath.Join(t.TempDir(), "test.pak")
	if _, err := a.WriteFile(context.Background(), pakPath, WriteOptions{Compression: MethodZlib}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Open(pakPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = got.Close() }()

	data, err := got.ReadFile("Game/a.uasset")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Fatal("content differs after disk round trip")
	}
}

func TestReadFileAfterClose(t *testing.T) {
	t.Parallel()

	a := New()
	if err := a.AddFile("a.txt", []byte("x")); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	raw := writeArchiveForTest(t, a, WriteOptions{})

	got := reopenForTest(t, raw, ReaderOptions{})
	if err := got.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := got.ReadFile("a.txt"); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReadFile after close = %v, want ErrClosed", err)
	}
}

func TestReadFileContextCanceled(t *testing.T) {
	t.Parallel()

	a := New()
	if err := a.AddFile("a.bin", bytes.Repeat([]byte{1, 2, 3, 4}, 100000)); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	raw := writeArchiveForTest(t, a, WriteOptions{Compression: MethodZlib})
	got := reopenForTest(t, raw, ReaderOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := got.ReadFileContext(ctx, "a.bin"); !errors.Is(err, context.Canceled) {
		t.Fatalf("ReadFileContext = %v, want context.Canceled", err)
	}
}

func TestOpenFileStreamsSameBytes(t *testing.T) {
	t.Parallel()

	content := make([]byte, 200000)
	for i := range content {
		content[i] = byte(i % 17)
	}

	a := New()
	if err := a.AddFile("Game/stream.uexp", content); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	raw := writeArchiveForTest(t, a, WriteOptions{Compression: MethodZstd})
	got := reopenForTest(t, raw, ReaderOptions{})

	whole, err := got.ReadFile("Game/stream.uexp")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	rc, err := got.OpenFile("Game/stream.uexp")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer func() { _ = rc.Close() }()

	streamed, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if !bytes.Equal(whole, streamed) {
		t.Fatal("streamed bytes differ from ReadFile")
	}
	if !bytes.Equal(streamed, content) {
		t.Fatal("streamed bytes differ from source")
	}
}

func TestOpenFileStagedEntry(t *testing.T) {
	t.Parallel()

	a := New()
	if err := a.AddFile("staged.txt", []byte("not yet written")); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	rc, err := a.OpenFile("staged.txt")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "not yet written" {
		t.Fatalf("streamed %q", data)
	}
}

func TestCorruptPayloadFailsIntegrity(t *testing.T) {
	t.Parallel()

	a := New()
	if err := a.AddFile("a.bin", bytes.Repeat([]byte("solid"), 100)); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	raw := writeArchiveForTest(t, a, WriteOptions{})

	// Flip one byte in the payload region, past the leading record copy.
	corrupted := bytes.Clone(raw)
	corrupted[80] ^= 0xFF

	got := reopenForTest(t, corrupted, ReaderOptions{})
	if _, err := got.ReadFile("a.bin"); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("ReadFile = %v, want ErrIntegrity", err)
	}
}
