// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AES parameters fixed by the format: 256-bit keys, ECB block mode.
const (
	aesKeySize   = 32
	aesBlockSize = 16
)

// placeholderKey is substituted when the caller supplies no key. It cannot
// decrypt any genuinely encrypted archive; integrity checks catch the garbage.
var placeholderKey [aesKeySize]byte

// align16 rounds n up to the cipher block granularity.
func align16(n uint64) uint64 {
	return (n + aesBlockSize - 1) &^ uint64(aesBlockSize-1)
}

// activeKey returns the caller key, or the placeholder when none was supplied.
func activeKey(key []byte) []byte {
	if len(key) == 0 {
		return placeholderKey[:]
	}

	return key
}

// newCipher builds the AES block cipher for a 32-byte key.
func newCipher(key []byte) (cipher.Block, error) {
	key = activeKey(key)
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), aesKeySize)
	}

	return aes.NewCipher(key)
}

// decryptBlocks decrypts buf in place, block by block with no chaining, so
// independently stored regions decrypt independently. Length must be a
// multiple of the cipher block size. A wrong key produces garbage, not an
// error; correctness is established by hash verification afterwards.
func decryptBlocks(block cipher.Block, buf []byte) error {
	if len(buf)%aesBlockSize != 0 {
		return fmt.Errorf("%w: encrypted region of %d bytes is not block aligned", ErrFormat, len(buf))
	}

	for i := 0; i < len(buf); i += aesBlockSize {
		block.Decrypt(buf[i:i+aesBlockSize], buf[i:i+aesBlockSize])
	}

	return nil
}

// encryptBlocks pads data up to the cipher block granularity with zero fill
// and encrypts block by block, returning the padded ciphertext. The true
// unpadded length is tracked by the caller; padding is never interpreted.
func encryptBlocks(block cipher.Block, data []byte) []byte {
	padded := make([]byte, align16(uint64(len(data))))
	copy(padded, data)

	for i := 0; i < len(padded); i += aesBlockSize {
		block.Encrypt(padded[i:i+aesBlockSize], padded[i:i+aesBlockSize])
	}

	return padded
}
