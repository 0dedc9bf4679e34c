// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	block, err := newCipher(testKey())
	if err != nil {
		t.Fatalf("newCipher: %v", err)
	}

	for _, size := range []int{0, 1, 15, 16, 17, 4096, 100000} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i * 3)
		}

		encrypted := encryptBlocks(block, data)
		if len(encrypted) != int(align16(uint64(size))) {
			t.Fatalf("size %d: ciphertext is %d bytes, want %d", size, len(encrypted), align16(uint64(size)))
		}

		if err := decryptBlocks(block, encrypted); err != nil {
			t.Fatalf("size %d: decrypt: %v", size, err)
		}

		if !bytes.Equal(encrypted[:size], data) {
			t.Fatalf("size %d: round trip differs", size)
		}
	}
}

func TestDecryptWrongKeyYieldsGarbageWithoutError(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("secret payload! "), 4)

	right, err := newCipher(testKey())
	if err != nil {
		t.Fatalf("newCipher: %v", err)
	}

	other := testKey()
	other[31] ^= 0x01

	wrong, err := newCipher(other)
	if err != nil {
		t.Fatalf("newCipher: %v", err)
	}

	encrypted := encryptBlocks(right, data)
	if err := decryptBlocks(wrong, encrypted); err != nil {
		t.Fatalf("decrypt with wrong key: %v", err)
	}

	if bytes.Equal(encrypted[:len(data)], data) {
		t.Fatal("wrong key decrypted to the plaintext")
	}
}

func TestDecryptUnalignedRegion(t *testing.T) {
	t.Parallel()

	block, err := newCipher(nil)
	if err != nil {
		t.Fatalf("newCipher: %v", err)
	}

	if err := decryptBlocks(block, make([]byte, 17)); !errors.Is(err, ErrFormat) {
		t.Fatalf("decrypt 17 bytes = %v, want ErrFormat", err)
	}
}

func TestNewCipherKeyHandling(t *testing.T) {
	t.Parallel()

	// Nil selects the all-zero placeholder so decode paths always have a
	// cipher; genuine archives fail the later hash check instead.
	if _, err := newCipher(nil); err != nil {
		t.Fatalf("newCipher(nil): %v", err)
	}

	for _, size := range []int{1, 16, 31, 33} {
		if _, err := newCipher(make([]byte, size)); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("newCipher(%d bytes) = %v, want ErrInvalidKey", size, err)
		}
	}
}

func TestAlign16(t *testing.T) {
	t.Parallel()

	cases := map[uint64]uint64{0: 0, 1: 16, 15: 16, 16: 16, 17: 32, 65536: 65536}

	for in, want := range cases {
		if got := align16(in); got != want {
			t.Fatalf("align16(%d) = %d, want %d", in, got, want)
		}
	}
}
